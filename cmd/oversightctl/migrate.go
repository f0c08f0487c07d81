package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/bmi-informatics/oversight/pkg/db"
	"github.com/bmi-informatics/oversight/pkg/decision"
	"github.com/bmi-informatics/oversight/pkg/migrate"
	"github.com/bmi-informatics/oversight/pkg/surveyapi"
)

var (
	legacyDBType string
	legacyDBDSN  string
)

func newMigration() (*migrate.Migration, error) {
	legacy, err := db.Connect(&db.Config{Type: legacyDBType, DSN: legacyDBDSN})
	if err != nil {
		return nil, fmt.Errorf("connect legacy store: %w", err)
	}
	gdb, err := openStore()
	if err != nil {
		return nil, err
	}
	dir, err := newDirectory()
	if err != nil {
		return nil, err
	}

	apiCfg := surveyapi.ConfigFromEnv()
	if apiCfg.APIURL == "" || apiCfg.Token == "" {
		return nil, fmt.Errorf("no survey API configured; set OVERSIGHT_API_URL and OVERSIGHT_API_TOKEN")
	}
	client := surveyapi.NewClient(apiCfg, slog.Default())

	notices := decision.NewNoticeLogStore(gdb)
	if err := notices.AutoMigrate(); err != nil {
		return nil, err
	}

	// The agreement and oversight surveys share one API endpoint here;
	// deployments with separate tokens run the two migrations separately.
	return migrate.NewMigration(legacy, client, client, dir, notices,
		slog.Default()), nil
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Migrate legacy approval records into the survey store",
}

var migrateSAACmd = &cobra.Command{
	Use:   "saa",
	Short: "Migrate legacy system-access signatures",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := newMigration()
		if err != nil {
			return err
		}
		n, err := m.MigrateSAA(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Migrated %d signature(s)\n", n)
		return nil
	},
}

var migrateOversightCmd = &cobra.Command{
	Use:   "oversight",
	Short: "Migrate legacy oversight requests and backfill the notice log",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := newMigration()
		if err != nil {
			return err
		}
		n, err := m.MigrateOversight(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Migrated %d request(s)\n", n)
		return nil
	},
}

func init() {
	migrateCmd.PersistentFlags().StringVar(&legacyDBType, "legacy-db-type", "mysql",
		"Legacy store type: mysql, postgres, sqlite")
	migrateCmd.PersistentFlags().StringVar(&legacyDBDSN, "legacy-db-dsn", "",
		"Legacy store DSN")
	migrateCmd.AddCommand(migrateSAACmd)
	migrateCmd.AddCommand(migrateOversightCmd)
	rootCmd.AddCommand(migrateCmd)
}
