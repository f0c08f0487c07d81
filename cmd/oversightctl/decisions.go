package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/bmi-informatics/oversight/pkg/decision"
	"github.com/bmi-informatics/oversight/pkg/migrate"
)

var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List decided requests whose notification has not been sent",
	RunE: func(cmd *cobra.Command, args []string) error {
		gdb, err := openStore()
		if err != nil {
			return err
		}
		dr, err := newRecords(gdb)
		if err != nil {
			return err
		}

		rows, err := dr.OversightDecisions(true)
		if err != nil {
			return err
		}

		if outputFmt != "table" {
			return printOutput(rows)
		}

		headers := []string{"Record", "Decision", "Investigator", "Team"}
		table := make([][]string, 0, len(rows))
		for _, r := range rows {
			detail, err := dr.Detail(r.Record, true)
			if err != nil {
				return err
			}
			team := make([]string, 0, len(detail.Team))
			for _, m := range detail.Team {
				team = append(team, m.String())
			}
			table = append(table, []string{
				r.Record,
				decisionWord(r.Decision),
				detail.Investigator.String(),
				strings.Join(team, "; "),
			})
		}
		printTable(headers, table)
		fmt.Printf("Total: %d\n", len(rows))
		return nil
	},
}

var markSentCmd = &cobra.Command{
	Use:   "mark-sent <record>...",
	Short: "Record that decision notifications went out",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		gdb, err := openStore()
		if err != nil {
			return err
		}

		now := time.Now()
		notices := make([]decision.SentNotice, 0, len(args))
		for _, record := range args {
			notices = append(notices, decision.SentNotice{Record: record, Timestamp: now})
		}
		store := decision.NewNoticeLogStore(gdb)
		if err := store.AutoMigrate(); err != nil {
			return err
		}
		if err := store.LogSent(notices); err != nil {
			return err
		}
		fmt.Printf("Marked %d notification(s) as sent\n", len(notices))
		return nil
	},
}

var exportDecisionsCmd = &cobra.Command{
	Use:   "export-decisions",
	Short: "Export every committee decision as CSV",
	RunE: func(cmd *cobra.Command, args []string) error {
		gdb, err := openStore()
		if err != nil {
			return err
		}
		dr, err := newRecords(gdb)
		if err != nil {
			return err
		}
		return migrate.ExportDecisions(os.Stdout, dr)
	},
}

func decisionWord(code string) string {
	switch code {
	case decision.DecisionYes:
		return "approved"
	case decision.DecisionNo:
		return "rejected"
	}
	return code
}

func init() {
	rootCmd.AddCommand(pendingCmd)
	rootCmd.AddCommand(markSentCmd)
	rootCmd.AddCommand(exportDecisionsCmd)
}
