// Package directory resolves people against the institution's enterprise
// directory: canonical login, name, email, affiliation, and human-subjects
// training expiry. The core consults it per call and never caches results.
package directory

import (
	"errors"
	"fmt"
	"regexp"
)

// ErrNotFound indicates that no directory entry matches the requested login.
var ErrNotFound = errors.New("directory: no such entry")

// ErrBadPattern indicates a search filter outside the supported forms.
// Only exact and trailing-wildcard cn filters are allowed.
var ErrBadPattern = errors.New("directory: unsupported search pattern")

// Principal is one person's directory entry.
type Principal struct {
	CN          string // canonical login id
	Surname     string
	GivenName   string
	Mail        string
	OU          string // organizational unit / department
	Title       string
	Faculty     bool
	TrainedThru string // human-subjects training expiry, ISO date; empty if none on file
}

// FullName returns "Given Surname", falling back to the login id.
func (p Principal) FullName() string {
	if p.GivenName == "" && p.Surname == "" {
		return p.CN
	}
	return p.GivenName + " " + p.Surname
}

// SortName returns "Surname, Given" for roster-style listings.
func (p Principal) SortName() string {
	if p.Surname == "" {
		return p.CN
	}
	return p.Surname + ", " + p.GivenName
}

// Directory is the lookup capability handed to the decision facade and the
// migration tooling. Lookup misses surface ErrNotFound; whether a miss is
// fatal is the caller's policy, not the directory's.
type Directory interface {
	// Lookup resolves one principal by exact login id.
	Lookup(cn string) (Principal, error)
	// Search evaluates a cn filter: "(cn=login)" for an exact match or
	// "(cn=prefix*)" for a trailing wildcard. attrs limits which Principal
	// fields are populated; nil means all.
	Search(pattern string, attrs []string) ([]Principal, error)
}

// Training describes a person's latest human-subjects training.
type Training struct {
	Username  string
	Expired   string // ISO date
	Completed string
	Course    string
}

var cnPattern = regexp.MustCompile(`^\(cn=([^*()=]+)(\*)?\)$`)

// parsePattern splits a supported cn filter into its target and whether it
// carries a trailing wildcard.
func parsePattern(pattern string) (cn string, wildcard bool, err error) {
	m := cnPattern.FindStringSubmatch(pattern)
	if m == nil {
		return "", false, fmt.Errorf("%w: %q", ErrBadPattern, pattern)
	}
	return m[1], m[2] == "*", nil
}
