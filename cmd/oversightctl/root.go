package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/bmi-informatics/oversight/pkg/db"
	"github.com/bmi-informatics/oversight/pkg/decision"
	"github.com/bmi-informatics/oversight/pkg/directory"
)

var (
	dbType     string
	dbDSN      string
	policyPath string
	projectID  int
	mockDir    bool
	outputFmt  string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "oversightctl",
	Short: "Operator CLI for the data-access oversight engine",
	Long: `oversightctl inspects committee decisions in the survey store,
marks decision notifications as sent, issues survey invitations, and
migrates legacy approval records.

It reads the survey system's database directly and never modifies survey
data: the only tables it writes are the notice log and the invitation
participants table.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr,
			&slog.HandlerOptions{Level: level})))
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbType, "db-type", "mysql",
		"Survey store type: mysql, postgres, sqlite")
	rootCmd.PersistentFlags().StringVar(&dbDSN, "db-dsn", "",
		"Survey store DSN (default: from OVERSIGHT_DB_DSN)")
	rootCmd.PersistentFlags().StringVar(&policyPath, "policy", "",
		"Review policy YAML (default: from OVERSIGHT_REVIEW_POLICY, else built-in)")
	rootCmd.PersistentFlags().IntVar(&projectID, "project-id", 0,
		"Oversight survey project id (default: from OVERSIGHT_PROJECT_ID)")
	rootCmd.PersistentFlags().BoolVar(&mockDir, "mock-directory", false,
		"Use the built-in sample directory instead of LDAP")
	rootCmd.PersistentFlags().StringVarP(&outputFmt, "output", "o", "table",
		"Output format: table, json, yaml")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"Debug logging")
}

// openStore connects to the survey store, preferring flags over env.
func openStore() (*gorm.DB, error) {
	cfg := db.ConfigFromEnv()
	if dbDSN != "" {
		cfg.Type = dbType
		cfg.DSN = dbDSN
	}
	return db.Connect(cfg)
}

// newDirectory picks the directory backend.
func newDirectory() (directory.Directory, error) {
	if mockDir {
		return directory.NewMockDirectory(), nil
	}
	cfg := directory.LDAPConfigFromEnv()
	if cfg.URL == "" {
		return nil, fmt.Errorf("no LDAP URL configured; set OVERSIGHT_LDAP_URL or pass --mock-directory")
	}
	return directory.NewLDAPDirectory(cfg, slog.Default()), nil
}

// newRecords wires the decision facade from flags and environment.
func newRecords(gdb *gorm.DB) (*decision.DecisionRecords, error) {
	dir, err := newDirectory()
	if err != nil {
		return nil, err
	}

	cfg := decision.ConfigFromEnv()
	if projectID > 0 {
		cfg.ProjectID = projectID
	}
	if cfg.ProjectID == 0 {
		return nil, fmt.Errorf("no oversight project configured; set OVERSIGHT_PROJECT_ID or pass --project-id")
	}
	if policyPath != "" {
		cfg.PolicyPath = policyPath
	}
	policy := decision.DefaultReviewPolicy()
	if cfg.PolicyPath != "" {
		policy, err = decision.LoadReviewPolicy(cfg.PolicyPath)
		if err != nil {
			return nil, err
		}
	}

	return decision.NewDecisionRecords(gdb, dir, decision.SystemClock{},
		policy, cfg.ProjectID, slog.Default()), nil
}
