// Package agreements reads access disclaimers and records user
// acknowledgements. Disclaimers and acknowledgements live in the survey
// store as EAV records; reads go straight to the database while new
// acknowledgements are posted through the survey connector, the only
// supported write path.
package agreements

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/bmi-informatics/oversight/pkg/eav"
)

// ErrNoCurrentDisclaimer indicates that no disclaimer is marked current.
// Exactly one should be at any time; zero means the disclaimer project is
// misconfigured.
var ErrNoCurrentDisclaimer = errors.New("agreements: no current disclaimer")

// DisclaimerSchema names the fields of a disclaimer record.
var DisclaimerSchema = eav.Schema{
	Name:   "disclaimer",
	Fields: []string{"disclaimer_id", "url", "current"},
}

// AcknowledgementSchema names the fields of an acknowledgement record.
var AcknowledgementSchema = eav.Schema{
	Name:   "acknowledgement",
	Fields: []string{"ack", "timestamp", "user_id", "disclaimer_address"},
}

// Disclaimer is one release disclaimer: a pointer to the published
// announcement users must acknowledge before access.
type Disclaimer struct {
	ID      string
	URL     string
	Current bool
}

// Acknowledgement records that a user acknowledged a disclaimer.
type Acknowledgement struct {
	Ack               string
	Timestamp         string
	UserID            string
	DisclaimerAddress string
}

// Disclaimers reads disclaimer and acknowledgement records. Disclaimers
// and acknowledgements live in separate survey projects.
type Disclaimers struct {
	db             *gorm.DB
	disclaimerProj int
	ackProj        int
}

// NewDisclaimers creates a reader over the two projects.
func NewDisclaimers(db *gorm.DB, disclaimerProjectID, ackProjectID int) *Disclaimers {
	return &Disclaimers{db: db, disclaimerProj: disclaimerProjectID, ackProj: ackProjectID}
}

// Current returns the disclaimer marked current.
func (d *Disclaimers) Current() (Disclaimer, error) {
	rec, ok, err := DisclaimerSchema.Bind(d.disclaimerProj).
		First(d.db, eav.Filter{Field: "current", Value: "1"})
	if err != nil {
		return Disclaimer{}, err
	}
	if !ok {
		return Disclaimer{}, ErrNoCurrentDisclaimer
	}
	return Disclaimer{
		ID:      rec.Get("disclaimer_id"),
		URL:     rec.Get("url"),
		Current: true,
	}, nil
}

// All returns every disclaimer on file.
func (d *Disclaimers) All() ([]Disclaimer, error) {
	recs, err := DisclaimerSchema.Bind(d.disclaimerProj).Records(d.db)
	if err != nil {
		return nil, err
	}
	out := make([]Disclaimer, 0, len(recs))
	for _, r := range recs {
		out = append(out, Disclaimer{
			ID:      r.Get("disclaimer_id"),
			URL:     r.Get("url"),
			Current: r.Get("current") == "1",
		})
	}
	return out, nil
}

// Acknowledgement returns the user's acknowledgement of the given
// disclaimer address, if any.
func (d *Disclaimers) Acknowledgement(userID, disclaimerAddr string) (Acknowledgement, bool, error) {
	rec, ok, err := AcknowledgementSchema.Bind(d.ackProj).First(d.db,
		eav.Filter{Field: "user_id", Value: userID},
		eav.Filter{Field: "disclaimer_address", Value: disclaimerAddr})
	if err != nil || !ok {
		return Acknowledgement{}, false, err
	}
	return Acknowledgement{
		Ack:               rec.Get("ack"),
		Timestamp:         rec.Get("timestamp"),
		UserID:            rec.Get("user_id"),
		DisclaimerAddress: rec.Get("disclaimer_address"),
	}, true, nil
}

// RecordImporter is the slice of the survey connector that
// acknowledgement writes need.
type RecordImporter interface {
	ImportRecords(ctx context.Context, data []map[string]string, params map[string]string) ([]byte, error)
}

// WhoWhen is one user acknowledging at one moment.
type WhoWhen struct {
	UserID string
	When   time.Time
}

// AcknowledgementsProject posts acknowledgement records through the
// survey connector.
type AcknowledgementsProject struct {
	importer RecordImporter
}

// NewAcknowledgementsProject creates the write path for acknowledgements.
func NewAcknowledgementsProject(importer RecordImporter) *AcknowledgementsProject {
	return &AcknowledgementsProject{importer: importer}
}

// AddRecords posts one acknowledgement record per (user, time) pair.
// Record ids combine the date, the user and the address's last segment,
// which is unique per user per day since the addresses are chosen here.
func (p *AcknowledgementsProject) AddRecords(ctx context.Context, disclaimerAddr string, whowhen []WhoWhen) ([]map[string]string, error) {
	records := make([]map[string]string, 0, len(whowhen))
	for _, ww := range whowhen {
		records = append(records, map[string]string{
			"ack": fmt.Sprintf("%s %s %s",
				ww.When.Format("2006-01-02"), ww.UserID, lastSeg(disclaimerAddr)),
			"timestamp":                ww.When.Format("2006-01-02 15:04:05"),
			"user_id":                  ww.UserID,
			"disclaimer_address":       disclaimerAddr,
			"acknowledgement_complete": "2",
		})
	}

	if _, err := p.importer.ImportRecords(ctx, records, nil); err != nil {
		return nil, fmt.Errorf("agreements: post acknowledgements: %w", err)
	}
	return records, nil
}

// AddRecord posts a single acknowledgement.
func (p *AcknowledgementsProject) AddRecord(ctx context.Context, userID, disclaimerAddr string, when time.Time) (map[string]string, error) {
	records, err := p.AddRecords(ctx, disclaimerAddr, []WhoWhen{{UserID: userID, When: when}})
	if err != nil {
		return nil, err
	}
	return records[0], nil
}

// lastSeg returns the address's final path segment, slash included.
func lastSeg(addr string) string {
	i := strings.LastIndex(addr, "/")
	if i < 0 {
		return addr
	}
	return addr[i:]
}
