package eav

import (
	"database/sql"
	"fmt"

	"gorm.io/gorm"
)

// Schema is a named, ordered list of field names. The first field anchors
// record existence. Schemas are plain values shared freely between callers.
type Schema struct {
	Name   string
	Fields []string
}

// Binding pairs a schema with a project id for one query's lifetime.
// Rebinding is just constructing another value, so there is no process-wide
// mapping state to supersede: equal arguments produce an equal Binding.
type Binding struct {
	ProjectID int
	Schema    Schema
}

// Bind attaches the schema to a project id.
func (s Schema) Bind(projectID int) Binding {
	return Binding{ProjectID: projectID, Schema: s}
}

// Record is one reconstructed entity: its record id plus the field values
// the binding's schema selected. Records are read-only; writes go through
// the survey connector, never back through this mapper.
type Record struct {
	ID     string
	Fields map[string]string
}

// Get returns a field value, or the empty string when the field is unset.
func (r Record) Get(field string) string { return r.Fields[field] }

// Filter restricts reconstructed records to those whose field equals value.
type Filter struct {
	Field string
	Value string
}

// Records reconstructs all of the binding's records, optionally filtered.
// A store with no matching rows yields an empty slice.
func (b Binding) Records(db *gorm.DB, filters ...Filter) ([]Record, error) {
	q, err := Join(db, b.ProjectID, b.Schema.Fields)
	if err != nil {
		return nil, err
	}
	for _, f := range filters {
		found := false
		for _, sf := range b.Schema.Fields {
			if sf == f.Field {
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("%w: filter field %q not in schema %s",
				ErrBadFieldName, f.Field, b.Schema.Name)
		}
		q = q.Where(Alias(f.Field)+".value = ?", f.Value)
	}

	rows, err := q.Rows()
	if err != nil {
		return nil, fmt.Errorf("eav: query %s records: %w", b.Schema.Name, err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		cols := make([]sql.NullString, len(b.Schema.Fields)+1)
		ptrs := make([]any, len(cols))
		for i := range cols {
			ptrs[i] = &cols[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("eav: scan %s record: %w", b.Schema.Name, err)
		}
		rec := Record{ID: cols[0].String, Fields: make(map[string]string, len(b.Schema.Fields))}
		for i, f := range b.Schema.Fields {
			if cols[i+1].Valid {
				rec.Fields[f] = cols[i+1].String
			}
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("eav: read %s records: %w", b.Schema.Name, err)
	}
	return out, nil
}

// First returns the first matching record, or false when none match.
func (b Binding) First(db *gorm.DB, filters ...Filter) (Record, bool, error) {
	records, err := b.Records(db, filters...)
	if err != nil || len(records) == 0 {
		return Record{}, false, err
	}
	return records[0], true, nil
}
