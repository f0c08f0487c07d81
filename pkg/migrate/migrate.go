// Package migrate moves approval records from the legacy store into the
// survey system and exports decided requests. Migrations run once per
// deployment; the notice-log backfill keeps already-decided requests from
// being re-notified afterwards.
package migrate

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bmi-informatics/oversight/pkg/decision"
	"github.com/bmi-informatics/oversight/pkg/directory"
)

// Importer is the slice of the survey connector the migration needs.
type Importer interface {
	ImportRecords(ctx context.Context, data []map[string]string, params map[string]string) ([]byte, error)
}

// Migration moves legacy approvals into the survey store.
type Migration struct {
	legacy    *gorm.DB
	saa       Importer
	oversight Importer
	directory directory.Directory
	notices   *decision.NoticeLogStore
	logger    *slog.Logger
}

// NewMigration creates a migration over the legacy store. The two
// importers point at the agreement survey and the oversight survey
// respectively, which live in separate projects with separate tokens.
func NewMigration(legacy *gorm.DB, saa, oversight Importer, dir directory.Directory,
	notices *decision.NoticeLogStore, logger *slog.Logger) *Migration {
	if logger == nil {
		logger = slog.Default()
	}
	return &Migration{
		legacy:    legacy,
		saa:       saa,
		oversight: oversight,
		directory: dir,
		notices:   notices,
		logger:    logger,
	}
}

// MigrateSAA posts one signed agreement record per legacy signature,
// overwriting any earlier import of the same record. Every signer must
// resolve in the directory; a miss aborts the run so the legacy data can
// be corrected first.
func (m *Migration) MigrateSAA(ctx context.Context) (int, error) {
	run := uuid.NewString()
	var sigs []LegacySignature
	if err := m.legacy.Order("row_id").Find(&sigs).Error; err != nil {
		return 0, fmt.Errorf("migrate: read legacy signatures: %w", err)
	}
	m.logger.Info("migrating system access signatures",
		"run", run, "count", len(sigs))

	records := make([]map[string]string, 0, len(sigs))
	for _, sig := range sigs {
		uid := strings.TrimSpace(sig.UserID)
		p, err := m.directory.Lookup(uid)
		if err != nil {
			return 0, fmt.Errorf("migrate: resolve signer %s: %w", uid, err)
		}
		records = append(records, map[string]string{
			"participant_id":     strconv.Itoa(sig.RowID),
			"user_id":            uid,
			"full_name":          p.FullName(),
			"agree":              "1",
			"agreement_complete": "2",
		})
	}

	if len(records) > 0 {
		_, err := m.saa.ImportRecords(ctx, records,
			map[string]string{"overwriteBehavior": "overwrite"})
		if err != nil {
			return 0, fmt.Errorf("migrate: post signatures: %w", err)
		}
	}
	m.logger.Info("migrated system access signatures",
		"run", run, "count", len(records))
	return len(records), nil
}

// MigrateOversight posts one oversight record per legacy request, each
// with its sponsored team as numbered fields, then backfills the notice
// log so migrated decisions are not notified again.
func (m *Migration) MigrateOversight(ctx context.Context) (int, error) {
	run := uuid.NewString()
	var reqs []LegacyOversightRequest
	if err := m.legacy.Order("request_id").Find(&reqs).Error; err != nil {
		return 0, fmt.Errorf("migrate: read legacy requests: %w", err)
	}

	var candidates []LegacyCandidate
	if err := m.legacy.Order("request_id, id").Find(&candidates).Error; err != nil {
		return 0, fmt.Errorf("migrate: read legacy candidates: %w", err)
	}
	byRequest := make(map[int][]LegacyCandidate)
	for _, c := range candidates {
		byRequest[c.RequestID] = append(byRequest[c.RequestID], c)
	}
	m.logger.Info("migrating oversight requests",
		"run", run, "requests", len(reqs), "candidates", len(candidates))

	records := make([]map[string]string, 0, len(reqs))
	for _, req := range reqs {
		uid := strings.TrimSpace(req.UserID)
		p, err := m.directory.Lookup(uid)
		if err != nil {
			return 0, fmt.Errorf("migrate: resolve investigator %s: %w", uid, err)
		}
		rec := map[string]string{
			"participant_id":                   strconv.Itoa(req.RequestID),
			"user_id":                          uid,
			"full_name":                        p.FullName(),
			"project_title":                    req.ProjectTitle,
			"what_for":                         req.WhatFor,
			"heron_oversight_request_complete": "2",
		}
		if req.DateOfExpiration != "" {
			rec["date_of_expiration"] = req.DateOfExpiration
		}
		if req.DataUseDescription != "" {
			rec["data_use_description"] = req.DataUseDescription
		}
		if err := m.memberFields(rec, byRequest[req.RequestID]); err != nil {
			return 0, err
		}
		records = append(records, rec)
	}

	if len(records) > 0 {
		if _, err := m.oversight.ImportRecords(ctx, records, nil); err != nil {
			return 0, fmt.Errorf("migrate: post oversight requests: %w", err)
		}
	}

	notices := make([]decision.SentNotice, 0, len(reqs))
	for _, req := range reqs {
		notices = append(notices, decision.SentNotice{
			Record:    strconv.Itoa(req.RequestID),
			Timestamp: req.ApprovalTime,
		})
	}
	if err := m.notices.LogSent(notices); err != nil {
		return 0, fmt.Errorf("migrate: backfill notice log: %w", err)
	}
	m.logger.Info("migrated oversight requests", "run", run, "count", len(records))
	return len(records), nil
}

// memberFields appends the numbered team member fields for one request.
// The name block mirrors what the request form captures: surname and
// given name, then title, then department.
func (m *Migration) memberFields(rec map[string]string, members []LegacyCandidate) error {
	for i, c := range members {
		n := strconv.Itoa(i + 1)
		uid := strings.TrimSpace(c.UserID)
		rec["user_id_"+n] = uid
		rec["kumc_employee_"+n] = strings.TrimSpace(c.KUMCEmployee)
		rec["affiliation_"+n] = strings.TrimSpace(c.Affiliation)

		p, err := m.directory.Lookup(uid)
		if err != nil {
			return fmt.Errorf("migrate: resolve team member %s: %w", uid, err)
		}
		rec["name_etc_"+n] = fmt.Sprintf("%s, %s\n%s\n%s",
			p.Surname, p.GivenName, p.Title, p.OU)
	}
	return nil
}
