package decision

import (
	"gorm.io/gorm"

	"github.com/bmi-informatics/oversight/pkg/eav"
)

// DecisionRow is one committee decision: a record where every reviewing
// institution recorded the same value.
type DecisionRow struct {
	Record   string `gorm:"column:record"`
	Decision string `gorm:"column:decision"`
	Quorum   int    `gorm:"column:quorum"`
}

// SponsorshipRow is one row of the composite sponsorship view.
type SponsorshipRow struct {
	Record    string `gorm:"column:record"`
	Decision  string `gorm:"column:decision"`
	WhatFor   string `gorm:"column:what_for"`
	Candidate string `gorm:"column:candidate"`
	Sponsor   string `gorm:"column:sponsor"`
	DtExp     string `gorm:"column:dt_exp"` // ISO date; empty means never expires
}

// decisionQuery groups the project's approve_* rows by (record, value) and
// keeps only groups reaching full quorum. A record where institutions
// disagree, or where any institution has not voted, produces no row.
func decisionQuery(db *gorm.DB, projectID, partyCount int) *gorm.DB {
	return eav.ProjectRows(db, projectID).
		Select("record, value AS decision, count(*) AS quorum").
		Where("field_name LIKE ?", "approve_%").
		Group("record, value").
		Having("count(*) = ?", partyCount)
}

// candidateQuery lists (record, userid) pairs: the sponsored team members
// (user_id_1, user_id_2, ...) or, in investigator mode, the requesting
// investigator's own user_id.
func candidateQuery(db *gorm.DB, projectID int, investigator bool) *gorm.DB {
	q := eav.ProjectRows(db, projectID).Select("record, value AS userid")
	if investigator {
		return q.Where("field_name = ?", "user_id")
	}
	return q.Where("field_name LIKE ?", "user_id_%")
}

// fieldQuery extracts one exact field as (record, <label>).
func fieldQuery(db *gorm.DB, projectID int, field, label string) *gorm.DB {
	return eav.ProjectRows(db, projectID).
		Select("record, value AS "+label).
		Where("field_name = ?", field)
}

// sponsorshipView joins the quorum decisions with candidate, sponsor and
// purpose rows, plus an outer join on the expiration date so that requests
// without one (open-ended sponsorships) still appear.
func sponsorshipView(db *gorm.DB, projectID, partyCount int, investigator bool) *gorm.DB {
	return db.Session(&gorm.Session{NewDB: true}).
		Table("(?) AS cd", decisionQuery(db, projectID, partyCount)).
		Joins("JOIN (?) AS who ON who.record = cd.record",
			candidateQuery(db, projectID, investigator)).
		Joins("JOIN (?) AS sponsor ON sponsor.record = cd.record",
			fieldQuery(db, projectID, "user_id", "userid")).
		Joins("JOIN (?) AS purpose ON purpose.record = cd.record",
			fieldQuery(db, projectID, "what_for", "what_for")).
		Joins("LEFT JOIN (?) AS expire ON expire.record = cd.record",
			fieldQuery(db, projectID, "date_of_expiration", "dt_exp")).
		Select("cd.record AS record, cd.decision AS decision, " +
			"purpose.what_for AS what_for, who.userid AS candidate, " +
			"sponsor.userid AS sponsor, expire.dt_exp AS dt_exp")
}

// pendingDecisionsQuery anti-joins the decision view against the notice
// log: a decision already present in notice_log has been notified and is
// excluded.
func pendingDecisionsQuery(db *gorm.DB, projectID, partyCount int) *gorm.DB {
	return db.Session(&gorm.Session{NewDB: true}).
		Table("(?) AS cd", decisionQuery(db, projectID, partyCount)).
		Joins("LEFT JOIN notice_log ON notice_log.record = cd.record").
		Where("notice_log.record IS NULL").
		Select("cd.record AS record, cd.decision AS decision, cd.quorum AS quorum")
}
