package migrate

import "time"

// LegacySignature is one row of the legacy system-access signature table.
// The legacy store predates the survey system; its rows become signed
// agreement records in the agreement survey.
type LegacySignature struct {
	RowID      int       `gorm:"column:row_id;primaryKey;autoIncrement"`
	UserID     string    `gorm:"column:user_id"`
	SignedDate time.Time `gorm:"column:signed_date"`
}

// TableName returns the legacy signature table name.
func (LegacySignature) TableName() string { return "system_access_users" }

// LegacyOversightRequest is one row of the legacy oversight request table.
type LegacyOversightRequest struct {
	RequestID          int       `gorm:"column:request_id;primaryKey"`
	UserID             string    `gorm:"column:user_id"`
	ProjectTitle       string    `gorm:"column:project_title"`
	WhatFor            string    `gorm:"column:what_for"`
	DateOfExpiration   string    `gorm:"column:date_of_expiration"`
	DataUseDescription string    `gorm:"column:data_use_description"`
	ApprovalTime       time.Time `gorm:"column:approval_time"`
}

// TableName returns the legacy oversight request table name.
func (LegacyOversightRequest) TableName() string { return "oversight_request" }

// LegacyCandidate is one sponsored team member of a legacy request.
type LegacyCandidate struct {
	ID           int    `gorm:"column:id;primaryKey;autoIncrement"`
	RequestID    int    `gorm:"column:request_id"`
	UserID       string `gorm:"column:user_id"`
	KUMCEmployee string `gorm:"column:kumc_employee"`
	Affiliation  string `gorm:"column:affiliation"`
}

// TableName returns the legacy candidate table name.
func (LegacyCandidate) TableName() string { return "sponsorship_candidates" }
