package directory

import (
	"bytes"
	_ "embed"
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strings"
)

//go:embed mockdirectory.csv
var mockCSV []byte

// MockDirectory is a CSV-backed Directory for tests and for running the
// CLI without an enterprise directory connection.
type MockDirectory struct {
	byCN  map[string]Principal
	order []string
}

// NewMockDirectory loads the embedded sample directory.
func NewMockDirectory() *MockDirectory {
	d, err := NewMockDirectoryFromCSV(bytes.NewReader(mockCSV))
	if err != nil {
		// The embedded CSV is part of the package; a parse failure is a bug.
		panic(err)
	}
	return d
}

// NewMockDirectoryFromCSV loads a directory from CSV with header
// cn,sn,givenname,mail,ou,title,faculty,trained_thru.
func NewMockDirectoryFromCSV(r io.Reader) (*MockDirectory, error) {
	records, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("directory: parse mock CSV: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("directory: mock CSV has no header")
	}

	col := make(map[string]int, len(records[0]))
	for i, name := range records[0] {
		col[strings.TrimSpace(name)] = i
	}
	field := func(row []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}

	d := &MockDirectory{byCN: make(map[string]Principal, len(records)-1)}
	for _, row := range records[1:] {
		p := Principal{
			CN:          field(row, "cn"),
			Surname:     field(row, "sn"),
			GivenName:   field(row, "givenname"),
			Mail:        field(row, "mail"),
			OU:          field(row, "ou"),
			Title:       field(row, "title"),
			Faculty:     field(row, "faculty") == "Y",
			TrainedThru: field(row, "trained_thru"),
		}
		d.byCN[p.CN] = p
		d.order = append(d.order, p.CN)
	}
	return d, nil
}

// Lookup resolves one principal by exact login id.
func (d *MockDirectory) Lookup(cn string) (Principal, error) {
	p, ok := d.byCN[cn]
	if !ok {
		return Principal{}, fmt.Errorf("%w: %s", ErrNotFound, cn)
	}
	return p, nil
}

// Search evaluates a supported cn filter against the loaded records.
func (d *MockDirectory) Search(pattern string, attrs []string) ([]Principal, error) {
	target, wildcard, err := parsePattern(pattern)
	if err != nil {
		return nil, err
	}

	var out []Principal
	for _, cn := range d.order {
		if cn == target || (wildcard && strings.HasPrefix(cn, target)) {
			out = append(out, restrict(d.byCN[cn], attrs))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CN < out[j].CN })
	return out, nil
}

// LatestTraining reports the principal's training expiry from the CSV.
func (d *MockDirectory) LatestTraining(cn string) (Training, error) {
	p, err := d.Lookup(cn)
	if err != nil {
		return Training{}, err
	}
	if p.TrainedThru == "" {
		return Training{}, fmt.Errorf("%w: no training on file for %s", ErrNotFound, cn)
	}
	return Training{
		Username:  cn,
		Expired:   p.TrainedThru,
		Completed: p.TrainedThru,
		Course:    "Human Subjects 101",
	}, nil
}

// restrict zeroes out fields outside the requested attribute list.
func restrict(p Principal, attrs []string) Principal {
	if len(attrs) == 0 {
		return p
	}
	want := make(map[string]bool, len(attrs))
	for _, a := range attrs {
		want[a] = true
	}
	out := Principal{CN: p.CN}
	if want["sn"] {
		out.Surname = p.Surname
	}
	if want["givenname"] {
		out.GivenName = p.GivenName
	}
	if want["mail"] {
		out.Mail = p.Mail
	}
	if want["ou"] {
		out.OU = p.OU
	}
	if want["title"] {
		out.Title = p.Title
	}
	if want["faculty"] {
		out.Faculty = p.Faculty
	}
	if want["trained_thru"] {
		out.TrainedThru = p.TrainedThru
	}
	return out
}
