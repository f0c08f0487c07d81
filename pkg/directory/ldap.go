package directory

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/go-ldap/ldap/v3"
)

// LDAPConfig controls the enterprise directory connection.
type LDAPConfig struct {
	URL          string        // e.g. ldaps://directory.example.edu:636
	BindDN       string        // service account DN; empty for anonymous bind
	BindPassword string
	BaseDN       string        // search base, e.g. ou=people,dc=example,dc=edu
	Timeout      time.Duration // per-search time limit. Default 10s.
	FacultyAttr  string        // attribute carrying the faculty flag ("Y"). Default personFaculty.
	TrainingAttr string        // attribute carrying the training expiry date. Default trainedThru.
}

// DefaultLDAPConfig returns the default directory configuration.
func DefaultLDAPConfig() *LDAPConfig {
	return &LDAPConfig{
		Timeout:      10 * time.Second,
		FacultyAttr:  "personFaculty",
		TrainingAttr: "trainedThru",
	}
}

// LDAPConfigFromEnv loads config from environment variables.
// OVERSIGHT_LDAP_URL, OVERSIGHT_LDAP_BIND_DN, OVERSIGHT_LDAP_BIND_PASSWORD,
// OVERSIGHT_LDAP_BASE_DN, OVERSIGHT_LDAP_TIMEOUT_SECONDS,
// OVERSIGHT_LDAP_FACULTY_ATTR, OVERSIGHT_LDAP_TRAINING_ATTR
func LDAPConfigFromEnv() *LDAPConfig {
	cfg := DefaultLDAPConfig()

	cfg.URL = os.Getenv("OVERSIGHT_LDAP_URL")
	cfg.BindDN = os.Getenv("OVERSIGHT_LDAP_BIND_DN")
	cfg.BindPassword = os.Getenv("OVERSIGHT_LDAP_BIND_PASSWORD")
	cfg.BaseDN = os.Getenv("OVERSIGHT_LDAP_BASE_DN")

	if v := os.Getenv("OVERSIGHT_LDAP_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Timeout = time.Duration(n) * time.Second
		}
	}
	if v := os.Getenv("OVERSIGHT_LDAP_FACULTY_ATTR"); v != "" {
		cfg.FacultyAttr = v
	}
	if v := os.Getenv("OVERSIGHT_LDAP_TRAINING_ATTR"); v != "" {
		cfg.TrainingAttr = v
	}

	return cfg
}

// LDAPDirectory resolves principals against an LDAP server. Each call
// opens its own short-lived connection; nothing is shared across requests.
type LDAPDirectory struct {
	cfg    *LDAPConfig
	logger *slog.Logger
}

// NewLDAPDirectory creates an LDAP-backed Directory.
func NewLDAPDirectory(cfg *LDAPConfig, logger *slog.Logger) *LDAPDirectory {
	if logger == nil {
		logger = slog.Default()
	}
	return &LDAPDirectory{cfg: cfg, logger: logger}
}

// Lookup resolves one principal by exact login id.
func (d *LDAPDirectory) Lookup(cn string) (Principal, error) {
	results, err := d.Search(fmt.Sprintf("(cn=%s)", cn), nil)
	if err != nil {
		return Principal{}, err
	}
	if len(results) == 0 {
		return Principal{}, fmt.Errorf("%w: %s", ErrNotFound, cn)
	}
	return results[0], nil
}

// Search evaluates a supported cn filter against the directory.
func (d *LDAPDirectory) Search(pattern string, attrs []string) ([]Principal, error) {
	target, wildcard, err := parsePattern(pattern)
	if err != nil {
		return nil, err
	}
	filter := "(cn=" + ldap.EscapeFilter(target) + ")"
	if wildcard {
		filter = "(cn=" + ldap.EscapeFilter(target) + "*)"
	}

	conn, err := ldap.DialURL(d.cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("directory: dial %s: %w", d.cfg.URL, err)
	}
	defer conn.Close()
	conn.SetTimeout(d.cfg.Timeout)

	if d.cfg.BindDN != "" {
		if err := conn.Bind(d.cfg.BindDN, d.cfg.BindPassword); err != nil {
			return nil, fmt.Errorf("directory: bind as %s: %w", d.cfg.BindDN, err)
		}
	}

	req := ldap.NewSearchRequest(
		d.cfg.BaseDN, ldap.ScopeWholeSubtree, ldap.NeverDerefAliases,
		0, int(d.cfg.Timeout.Seconds()), false,
		filter, d.requestAttrs(attrs), nil)

	res, err := conn.Search(req)
	if err != nil {
		return nil, fmt.Errorf("directory: search %s: %w", filter, err)
	}

	d.logger.Debug("directory search", "filter", filter, "entries", len(res.Entries))

	principals := make([]Principal, 0, len(res.Entries))
	for _, e := range res.Entries {
		principals = append(principals, Principal{
			CN:          e.GetAttributeValue("cn"),
			Surname:     e.GetAttributeValue("sn"),
			GivenName:   e.GetAttributeValue("givenname"),
			Mail:        e.GetAttributeValue("mail"),
			OU:          e.GetAttributeValue("ou"),
			Title:       e.GetAttributeValue("title"),
			Faculty:     e.GetAttributeValue(d.cfg.FacultyAttr) == "Y",
			TrainedThru: e.GetAttributeValue(d.cfg.TrainingAttr),
		})
	}
	return principals, nil
}

// LatestTraining reports the principal's current training expiry. A person
// with no training on file yields ErrNotFound.
func (d *LDAPDirectory) LatestTraining(cn string) (Training, error) {
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
		Course:    "Human Subjects Training",
	}, nil
}

func (d *LDAPDirectory) requestAttrs(attrs []string) []string {
	if len(attrs) > 0 {
		return attrs
	}
	return []string{"cn", "sn", "givenname", "mail", "ou", "title",
		d.cfg.FacultyAttr, d.cfg.TrainingAttr}
}
