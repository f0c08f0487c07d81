package decision

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// NoticeLogEntry marks one oversight decision as notified. The table is
// append-only: entries are never updated or deleted by this core, and a
// record's presence here keeps it out of the pending-decision view.
type NoticeLogEntry struct {
	ID        int       `gorm:"column:id;primaryKey;autoIncrement"`
	Record    string    `gorm:"column:record;size:100"`
	Timestamp time.Time `gorm:"column:timestamp"`
}

// TableName returns the notification ledger's table name.
func (NoticeLogEntry) TableName() string { return "notice_log" }

// SentNotice identifies one decision whose notification went out.
type SentNotice struct {
	Record    string
	Timestamp time.Time
}

// NoticeLogStore appends to the notification ledger.
type NoticeLogStore struct {
	db *gorm.DB
}

// NewNoticeLogStore creates a new NoticeLogStore.
func NewNoticeLogStore(db *gorm.DB) *NoticeLogStore {
	return &NoticeLogStore{db: db}
}

// AutoMigrate creates or updates the notice_log table. The survey store's
// own tables are owned by the external survey system and are not migrated
// here.
func (s *NoticeLogStore) AutoMigrate() error {
	if err := s.db.AutoMigrate(&NoticeLogEntry{}); err != nil {
		return fmt.Errorf("auto-migrate notice_log: %w", err)
	}
	return nil
}

// LogSent appends the whole batch inside one transaction. A failure on any
// entry rolls back every entry: a decision is never half-marked as
// notified.
func (s *NoticeLogStore) LogSent(notices []SentNotice) error {
	if len(notices) == 0 {
		return nil
	}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		for _, n := range notices {
			entry := NoticeLogEntry{Record: n.Record, Timestamp: n.Timestamp}
			if err := tx.Create(&entry).Error; err != nil {
				return fmt.Errorf("log notice for record %s: %w", n.Record, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("append notice log: %w", err)
	}
	return nil
}
