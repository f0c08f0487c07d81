package decision

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/bmi-informatics/oversight/pkg/directory"
	"github.com/bmi-informatics/oversight/pkg/eav"
)

// ErrRecordNotFound indicates an oversight record whose anchor field is
// absent from the store.
var ErrRecordNotFound = errors.New("decision: no such oversight record")

// Clock supplies the current time. Injected so expiration filtering is
// testable against fixed dates.
type Clock interface {
	Now() time.Time
}

// SystemClock is the wall clock.
type SystemClock struct{}

// Now returns the current time.
func (SystemClock) Now() time.Time { return time.Now() }

// Ref identifies a person named in an oversight record: login id, display
// name, and for team members the full "name, title, department" block the
// request form captured.
type Ref struct {
	CN      string
	Name    string
	NameEtc string
}

// DisplayName returns the ref's name, or "?" when none is on file.
func (r Ref) DisplayName() string {
	if r.Name == "" {
		return "?"
	}
	return r.Name
}

// String renders the ref as "Name <login>".
func (r Ref) String() string {
	return fmt.Sprintf("%s <%s>", r.DisplayName(), r.CN)
}

// Sponsorship describes one sponsorship with its project context, for
// presentation to the sponsor or sponsoree.
type Sponsorship struct {
	Record       string
	Investigator Ref
	Title        string
	Description  string
}

// DecisionDetail is everything needed to compose a decision notification:
// the investigator, the sponsored team in form order, and the raw field
// map for caller-specific needs (approval values, project title, ...).
type DecisionDetail struct {
	Investigator Ref
	Team         []Ref
	Fields       map[string]string
}

// DecisionRecords is the oversight facade: sponsorship lookups, decision
// enumeration, detail assembly, and team addressing. It owns no state
// beyond its collaborators; every call runs its own queries.
type DecisionRecords struct {
	db        *gorm.DB
	directory directory.Directory
	clock     Clock
	policy    ReviewPolicy
	projectID int
	logger    *slog.Logger
}

// NewDecisionRecords creates the facade over the survey store and the
// enterprise directory.
func NewDecisionRecords(db *gorm.DB, dir directory.Directory, clock Clock,
	policy ReviewPolicy, projectID int, logger *slog.Logger) *DecisionRecords {
	if clock == nil {
		clock = SystemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DecisionRecords{
		db:        db,
		directory: dir,
		clock:     clock,
		policy:    policy,
		projectID: projectID,
		logger:    logger,
	}
}

// Sponsorships enumerates current (un-expired) approved sponsorships for
// uid as sponsoree, or with investigator=true, sponsored by uid.
// An empty expiration means the sponsorship never expires; otherwise the
// zero-padded ISO date is compared as a string against today, which orders
// correctly and deliberately avoids timezone arithmetic.
func (dr *DecisionRecords) Sponsorships(uid string, investigator bool) ([]SponsorshipRow, error) {
	var rows []SponsorshipRow
	err := sponsorshipView(dr.db, dr.projectID, dr.policy.PartyCount(), investigator).
		Where("who.userid = ?", uid).
		Where("cd.decision = ?", DecisionYes).
		Where("purpose.what_for = ?", PurposeSponsorship).
		Order("cd.record").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query sponsorships for %s: %w", uid, err)
	}

	today := dr.clock.Now().Format("2006-01-02")
	current := rows[:0]
	for _, r := range rows {
		if r.DtExp == "" || r.DtExp >= today {
			current = append(current, r)
		}
	}
	return current, nil
}

// AboutSponsorships returns uid's current sponsorships together with the
// sponsoring investigator and the project's title and description. Detail
// lookup is directory-independent so listings survive directory outages.
func (dr *DecisionRecords) AboutSponsorships(uid string, investigator bool) ([]Sponsorship, error) {
	rows, err := dr.Sponsorships(uid, investigator)
	if err != nil {
		return nil, err
	}

	out := make([]Sponsorship, 0, len(rows))
	for _, r := range rows {
		detail, err := dr.Detail(r.Record, false)
		if err != nil {
			return nil, err
		}
		out = append(out, Sponsorship{
			Record:       r.Record,
			Investigator: detail.Investigator,
			Title:        detail.Fields["project_title"],
			Description:  projectDescription(detail.Fields),
		})
	}
	return out, nil
}

// OversightDecisions lists committee decisions. With pending=true only
// decisions absent from the notice log are returned, in support of email
// notification; with pending=false the full decision view is returned for
// bulk export.
func (dr *DecisionRecords) OversightDecisions(pending bool) ([]DecisionRow, error) {
	q := decisionQuery(dr.db, dr.projectID, dr.policy.PartyCount()).Order("record")
	if pending {
		// A fresh store has no notice log yet; nothing notified reads the
		// same as an empty table.
		if !dr.db.Migrator().HasTable(&NoticeLogEntry{}) {
			if err := NewNoticeLogStore(dr.db).AutoMigrate(); err != nil {
				return nil, err
			}
		}
		q = pendingDecisionsQuery(dr.db, dr.projectID, dr.policy.PartyCount()).Order("cd.record")
	}
	var rows []DecisionRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query oversight decisions: %w", err)
	}
	return rows, nil
}

// Detail reconstructs one oversight record: investigator, team member refs
// in form order, and the raw field map. With lookup=true, team members
// whose request form carried no name block are resolved against the
// directory, best-effort; lookup=false skips the directory entirely so the
// export path tolerates directory unavailability.
func (dr *DecisionRecords) Detail(record string, lookup bool) (DecisionDetail, error) {
	fields, err := eav.AllFields(dr.db, dr.projectID, record)
	if err != nil {
		return DecisionDetail{}, err
	}
	invID, ok := fields["user_id"]
	if !ok {
		return DecisionDetail{}, fmt.Errorf("%w: %s", ErrRecordNotFound, record)
	}

	detail := DecisionDetail{
		Investigator: Ref{CN: invID, Name: fields["full_name"]},
		Fields:       fields,
	}

	var memberKeys []string
	for k := range fields {
		if strings.HasPrefix(k, "user_id_") {
			memberKeys = append(memberKeys, k)
		}
	}
	sort.Slice(memberKeys, func(i, j int) bool {
		return memberOrder(memberKeys[i]) < memberOrder(memberKeys[j]) ||
			(memberOrder(memberKeys[i]) == memberOrder(memberKeys[j]) &&
				memberKeys[i] < memberKeys[j])
	})

	for _, k := range memberKeys {
		cn := fields[k]
		nameEtc := fields[strings.Replace(k, "user_id_", "name_etc_", 1)]
		name, _, _ := strings.Cut(nameEtc, "\n")
		ref := Ref{CN: cn, Name: name, NameEtc: nameEtc}
		if lookup && ref.Name == "" {
			if p, err := dr.directory.Lookup(cn); err == nil {
				ref.Name = p.FullName()
			}
		}
		detail.Team = append(detail.Team, ref)
	}

	return detail, nil
}

// TeamEmail resolves the investigator's email plus those of the team
// members that are on file. The investigator's address is required: a
// directory miss there is the caller's error. A team member who is absent
// from the directory, or has no address on file, is logged and skipped.
func (dr *DecisionRecords) TeamEmail(invUID string, teamUIDs []string) (string, []string, error) {
	inv, err := dr.directory.Lookup(invUID)
	if err != nil {
		return "", nil, fmt.Errorf("resolve investigator %s: %w", invUID, err)
	}
	if inv.Mail == "" {
		return "", nil, fmt.Errorf("%w: no email on file for investigator %s",
			directory.ErrNotFound, invUID)
	}

	var team []string
	for _, uid := range teamUIDs {
		p, err := dr.directory.Lookup(uid)
		if err != nil {
			dr.logger.Warn("cannot get email for team member", "uid", uid, "error", err)
			continue
		}
		if p.Mail == "" {
			dr.logger.Warn("team member has no email on file", "uid", uid)
			continue
		}
		team = append(team, p.Mail)
	}
	return inv.Mail, team, nil
}

// projectDescription prefers the sponsor's description, falling back to
// the data-use description on older request forms.
func projectDescription(fields map[string]string) string {
	if d := fields["description_sponsor"]; d != "" {
		return d
	}
	return fields["data_use_description"]
}

// memberOrder sorts user_id_<n> keys by their numeric suffix so member 10
// follows member 9 rather than member 1.
func memberOrder(key string) int {
	n, err := strconv.Atoi(strings.TrimPrefix(key, "user_id_"))
	if err != nil {
		return 1 << 30
	}
	return n
}
