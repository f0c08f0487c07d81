// Package eav reconstructs typed records from the survey store's
// entity-attribute-value table. Each fact is one row of
// (project_id, event_id, record, field_name, value); a logical record is
// rebuilt by self-joining the table once per wanted field.
package eav

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"gorm.io/gorm"
)

// ErrEmptySchema indicates a schema with no fields. This is a configuration
// error: no join can be built without at least an anchor field.
var ErrEmptySchema = errors.New("eav: schema has no fields")

// ErrBadFieldName indicates a field name that is not a plain identifier.
// Field names become SQL aliases, so anything else is rejected up front.
var ErrBadFieldName = errors.New("eav: field name is not a valid identifier")

// AttributeRow is one EAV fact. The table layout matches the external
// survey system's data table, which this core does not own.
type AttributeRow struct {
	ProjectID int    `gorm:"column:project_id;primaryKey"`
	EventID   int    `gorm:"column:event_id;primaryKey"`
	Record    string `gorm:"column:record;primaryKey;size:100"`
	FieldName string `gorm:"column:field_name;primaryKey;size:100"`
	Value     string `gorm:"column:value;type:text"`
}

// TableName returns the survey store's data table name.
func (AttributeRow) TableName() string { return "redcap_data" }

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Alias returns the join alias used for a field's copy of the data table.
func Alias(field string) string { return "j_" + field }

// ProjectRows returns the project-filtered slice of the data table that
// every join participant is derived from. Filtering on project_id before
// aliasing keeps the per-field scans on the primary key prefix.
func ProjectRows(db *gorm.DB, projectID int) *gorm.DB {
	return db.Session(&gorm.Session{NewDB: true}).
		Model(&AttributeRow{}).
		Select("record, field_name, value").
		Where("project_id = ?", projectID)
}

// Join builds the multi-way self-join that reconstructs one value column
// per field for every record of the project that carries the first field.
// The first field anchors the join: a record missing it does not exist at
// all, while later fields are still required (inner joins) for a row to
// appear. The select list is the record id followed by the value columns
// in field order, each aliased to its field name.
func Join(db *gorm.DB, projectID int, fields []string) (*gorm.DB, error) {
	if len(fields) == 0 {
		return nil, ErrEmptySchema
	}
	for _, f := range fields {
		if !identPattern.MatchString(f) {
			return nil, fmt.Errorf("%w: %q", ErrBadFieldName, f)
		}
	}

	field := func(name string) *gorm.DB {
		return ProjectRows(db, projectID).Where("field_name = ?", name)
	}

	anchor := Alias(fields[0])
	q := db.Session(&gorm.Session{NewDB: true}).
		Table("(?) AS "+anchor, field(fields[0]))

	selects := []string{
		fmt.Sprintf("%s.record AS record", anchor),
		fmt.Sprintf("%s.value AS %s", anchor, fields[0]),
	}
	for _, f := range fields[1:] {
		a := Alias(f)
		q = q.Joins(
			fmt.Sprintf("JOIN (?) AS %s ON %s.record = %s.record", a, a, anchor),
			field(f))
		selects = append(selects, fmt.Sprintf("%s.value AS %s", a, f))
	}

	return q.Select(strings.Join(selects, ", ")).Order(anchor + ".record"), nil
}

// AllFields returns every field of one record as a map. Absent rows mean
// absent keys; an unknown record yields an empty map, not an error. The
// schema bound elsewhere is a view, never a filter, so callers get fields
// beyond their declared schema too.
func AllFields(db *gorm.DB, projectID int, record string) (map[string]string, error) {
	var rows []AttributeRow
	err := db.Where("project_id = ? AND record = ?", projectID, record).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("eav: fetch fields of record %s: %w", record, err)
	}
	fields := make(map[string]string, len(rows))
	for _, r := range rows {
		fields[r.FieldName] = r.Value
	}
	return fields, nil
}
