package directory

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockLookup(t *testing.T) {
	d := NewMockDirectory()

	p, err := d.Lookup("john.smith")
	require.NoError(t, err)
	assert.Equal(t, "Smith", p.Surname)
	assert.Equal(t, "John", p.GivenName)
	assert.Equal(t, "john.smith@js.example", p.Mail)
	assert.True(t, p.Faculty)
	assert.Equal(t, "John Smith", p.FullName())
	assert.Equal(t, "Smith, John", p.SortName())
}

func TestMockLookupMiss(t *testing.T) {
	d := NewMockDirectory()
	_, err := d.Lookup("ghost.user")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMockSearchExact(t *testing.T) {
	d := NewMockDirectory()

	results, err := d.Search("(cn=john.smith)", []string{"sn", "givenname"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "john.smith", results[0].CN)
	assert.Equal(t, "Smith", results[0].Surname)
	assert.Equal(t, "John", results[0].GivenName)
	// mail was not requested
	assert.Empty(t, results[0].Mail)
}

func TestMockSearchWildcard(t *testing.T) {
	d := NewMockDirectory()

	results, err := d.Search("(cn=b*)", nil)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "big.wig", results[0].CN)
	assert.Equal(t, "bill.student", results[1].CN)
}

func TestMockSearchRejectsOtherFilters(t *testing.T) {
	d := NewMockDirectory()

	for _, pattern := range []string{
		"(mail=x@y)",
		"(cn=*)",
		"(&(cn=a)(sn=b))",
		"cn=john.smith",
	} {
		_, err := d.Search(pattern, nil)
		assert.ErrorIs(t, err, ErrBadPattern, "pattern %q", pattern)
	}
}

func TestMockTraining(t *testing.T) {
	d := NewMockDirectory()

	tr, err := d.LatestTraining("john.smith")
	require.NoError(t, err)
	assert.Equal(t, "2030-01-01", tr.Expired)

	_, err = d.LatestTraining("koam.rin")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMockFromCSVMissingHeader(t *testing.T) {
	_, err := NewMockDirectoryFromCSV(strings.NewReader(""))
	assert.Error(t, err)
}

func TestLDAPConfigDefaults(t *testing.T) {
	cfg := DefaultLDAPConfig()
	assert.Equal(t, "personFaculty", cfg.FacultyAttr)
	assert.Equal(t, "trainedThru", cfg.TrainingAttr)
	assert.NotZero(t, cfg.Timeout)
}
