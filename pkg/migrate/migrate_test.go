package migrate

import (
	"bytes"
	"context"
	"encoding/csv"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/bmi-informatics/oversight/pkg/decision"
	"github.com/bmi-informatics/oversight/pkg/directory"
	"github.com/bmi-informatics/oversight/pkg/eav"
)

func openMemory(t *testing.T, models ...any) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models...))
	return db
}

type captureImporter struct {
	records []map[string]string
	params  map[string]string
}

func (c *captureImporter) ImportRecords(_ context.Context, data []map[string]string, params map[string]string) ([]byte, error) {
	c.records = append(c.records, data...)
	c.params = params
	return []byte("{}"), nil
}

func newMigration(t *testing.T, legacy, newdb *gorm.DB) (*Migration, *captureImporter, *captureImporter) {
	t.Helper()
	saa := &captureImporter{}
	droc := &captureImporter{}
	m := NewMigration(legacy, saa, droc, directory.NewMockDirectory(),
		decision.NewNoticeLogStore(newdb), slog.Default())
	return m, saa, droc
}

func TestMigrateSAA(t *testing.T) {
	legacy := openMemory(t, &LegacySignature{})
	newdb := openMemory(t, &decision.NoticeLogEntry{})
	require.NoError(t, legacy.Create(&LegacySignature{
		UserID: " john.smith ", SignedDate: time.Date(2010, 5, 1, 0, 0, 0, 0, time.UTC),
	}).Error)
	require.NoError(t, legacy.Create(&LegacySignature{UserID: "bill.student"}).Error)

	m, saa, _ := newMigration(t, legacy, newdb)
	n, err := m.MigrateSAA(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.Len(t, saa.records, 2)
	first := saa.records[0]
	assert.Equal(t, "john.smith", first["user_id"])
	assert.Equal(t, "John Smith", first["full_name"])
	assert.Equal(t, "1", first["agree"])
	assert.Equal(t, "2", first["agreement_complete"])
	assert.Equal(t, "overwrite", saa.params["overwriteBehavior"])
}

func TestMigrateSAAUnknownSigner(t *testing.T) {
	legacy := openMemory(t, &LegacySignature{})
	newdb := openMemory(t, &decision.NoticeLogEntry{})
	require.NoError(t, legacy.Create(&LegacySignature{UserID: "ghost.user"}).Error)

	m, _, _ := newMigration(t, legacy, newdb)
	_, err := m.MigrateSAA(context.Background())
	assert.ErrorIs(t, err, directory.ErrNotFound)
}

func TestMigrateOversight(t *testing.T) {
	legacy := openMemory(t, &LegacyOversightRequest{}, &LegacyCandidate{})
	newdb := openMemory(t, &decision.NoticeLogEntry{})

	approved := time.Date(2012, 3, 4, 9, 0, 0, 0, time.UTC)
	require.NoError(t, legacy.Create(&LegacyOversightRequest{
		RequestID:    7,
		UserID:       "john.smith",
		ProjectTitle: "Cure Warts",
		WhatFor:      "1",
		ApprovalTime: approved,
	}).Error)
	require.NoError(t, legacy.Create(&LegacyCandidate{
		RequestID: 7, UserID: "bill.student", KUMCEmployee: "1",
	}).Error)
	require.NoError(t, legacy.Create(&LegacyCandidate{
		RequestID: 7, UserID: "carol.student", KUMCEmployee: "2", Affiliation: "visiting",
	}).Error)

	m, _, droc := newMigration(t, legacy, newdb)
	n, err := m.MigrateOversight(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.Len(t, droc.records, 1)
	rec := droc.records[0]
	assert.Equal(t, "7", rec["participant_id"])
	assert.Equal(t, "John Smith", rec["full_name"])
	assert.Equal(t, "2", rec["heron_oversight_request_complete"])
	assert.Equal(t, "bill.student", rec["user_id_1"])
	assert.Equal(t, "carol.student", rec["user_id_2"])
	assert.Equal(t, "visiting", rec["affiliation_2"])
	assert.Equal(t, "Student, Bill\n\nUndergrad", rec["name_etc_1"])
	assert.NotContains(t, rec, "date_of_expiration")

	// The migrated decision is already notified.
	var entries []decision.NoticeLogEntry
	require.NoError(t, newdb.Find(&entries).Error)
	require.Len(t, entries, 1)
	assert.Equal(t, "7", entries[0].Record)
	assert.True(t, approved.Equal(entries[0].Timestamp))
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func TestExportDecisions(t *testing.T) {
	db := openMemory(t, &eav.AttributeRow{}, &decision.NoticeLogEntry{})
	const project = 34
	seed := func(record string, fields map[string]string) {
		for name, value := range fields {
			require.NoError(t, db.Create(&eav.AttributeRow{
				ProjectID: project, EventID: 1, Record: record,
				FieldName: name, Value: value,
			}).Error)
		}
	}
	seed("1", map[string]string{
		"approve_kuh": "1", "approve_kupi": "1", "approve_kumc": "1",
		"user_id":       "john.smith",
		"project_title": "Cure Warts",
		"what_for":      "1",
		"user_id_1":     "bill.student",
		"user_id_2":     "carol.student",
	})
	seed("2", map[string]string{
		"approve_kuh": "2", "approve_kupi": "2", "approve_kumc": "2",
		"user_id":  "big.wig",
		"what_for": "2",
	})

	dr := decision.NewDecisionRecords(db, directory.NewMockDirectory(),
		fixedClock{t: time.Now()}, decision.DefaultReviewPolicy(), project, nil)

	var buf bytes.Buffer
	require.NoError(t, ExportDecisions(&buf, dr))

	rows, err := csv.NewReader(strings.NewReader(buf.String())).ReadAll()
	require.NoError(t, err)
	// header + two members of record 1 + bare row for record 2
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"record", "decision", "investigator", "member",
		"expiration", "purpose", "title", "description"}, rows[0])
	assert.Equal(t, "bill.student", rows[1][3])
	assert.Equal(t, "carol.student", rows[2][3])
	assert.Equal(t, "Cure Warts", rows[1][6])
	assert.Equal(t, "", rows[3][3])
	assert.Equal(t, "2", rows[3][1])
}
