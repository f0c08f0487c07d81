package agreements

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/bmi-informatics/oversight/pkg/eav"
)

const (
	disclaimerProject = 123
	ackProject        = 1234
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&eav.AttributeRow{}))
	return db
}

func seed(t *testing.T, db *gorm.DB, projectID int, record string, fields map[string]string) {
	t.Helper()
	for name, value := range fields {
		require.NoError(t, db.Create(&eav.AttributeRow{
			ProjectID: projectID,
			EventID:   1,
			Record:    record,
			FieldName: name,
			Value:     value,
		}).Error)
	}
}

func seedDisclaimers(t *testing.T, db *gorm.DB) {
	t.Helper()
	seed(t, db, disclaimerProject, "1", map[string]string{
		"disclaimer_id": "1",
		"url":           "http://example/blog/item/heron-release-xyz",
		"current":       "1",
	})
	seed(t, db, disclaimerProject, "2", map[string]string{
		"disclaimer_id": "2",
		"url":           "http://example/blog/item/heron-release-old",
		"current":       "0",
	})
}

func TestCurrentDisclaimer(t *testing.T) {
	db := setupTestDB(t)
	seedDisclaimers(t, db)
	d := NewDisclaimers(db, disclaimerProject, ackProject)

	cur, err := d.Current()
	require.NoError(t, err)
	assert.Equal(t, "1", cur.ID)
	assert.Equal(t, "http://example/blog/item/heron-release-xyz", cur.URL)
	assert.True(t, cur.Current)
}

func TestNoCurrentDisclaimer(t *testing.T) {
	db := setupTestDB(t)
	d := NewDisclaimers(db, disclaimerProject, ackProject)

	_, err := d.Current()
	assert.ErrorIs(t, err, ErrNoCurrentDisclaimer)
}

func TestAllDisclaimers(t *testing.T) {
	db := setupTestDB(t)
	seedDisclaimers(t, db)
	d := NewDisclaimers(db, disclaimerProject, ackProject)

	all, err := d.All()
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.False(t, all[1].Current)
}

func TestAcknowledgementLookup(t *testing.T) {
	db := setupTestDB(t)
	addr := "http://example/blog/item/heron-release-xyz"
	seed(t, db, ackProject, "2011-09-02 john.smith /heron-release-xyz", map[string]string{
		"ack":                "2011-09-02 john.smith /heron-release-xyz",
		"timestamp":          "2011-09-02 00:00:00",
		"user_id":            "john.smith",
		"disclaimer_address": addr,
	})
	d := NewDisclaimers(db, disclaimerProject, ackProject)

	ack, ok, err := d.Acknowledgement("john.smith", addr)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "2011-09-02 00:00:00", ack.Timestamp)

	_, ok, err = d.Acknowledgement("bill.student", addr)
	require.NoError(t, err)
	assert.False(t, ok)
}

type captureImporter struct {
	records []map[string]string
}

func (c *captureImporter) ImportRecords(_ context.Context, data []map[string]string, _ map[string]string) ([]byte, error) {
	c.records = append(c.records, data...)
	return []byte("{}"), nil
}

func TestAddRecords(t *testing.T) {
	imp := &captureImporter{}
	p := NewAcknowledgementsProject(imp)

	when := time.Date(2011, 9, 2, 10, 30, 0, 0, time.UTC)
	posted, err := p.AddRecords(context.Background(),
		"http://example/blog/item/heron-release-xyz",
		[]WhoWhen{{UserID: "john.smith", When: when}, {UserID: "bill.student", When: when}})
	require.NoError(t, err)
	require.Len(t, posted, 2)
	require.Len(t, imp.records, 2)

	first := imp.records[0]
	assert.Equal(t, "2011-09-02 john.smith /heron-release-xyz", first["ack"])
	assert.Equal(t, "2011-09-02 10:30:00", first["timestamp"])
	assert.Equal(t, "john.smith", first["user_id"])
	assert.Equal(t, "2", first["acknowledgement_complete"])
}

func TestLastSeg(t *testing.T) {
	assert.Equal(t, "/def", lastSeg("abc/def"))
	assert.Equal(t, "plain", lastSeg("plain"))
}
