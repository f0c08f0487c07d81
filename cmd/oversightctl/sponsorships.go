package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var asInvestigator bool

var sponsorshipsCmd = &cobra.Command{
	Use:   "sponsorships <uid>",
	Short: "List a user's current approved sponsorships",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		gdb, err := openStore()
		if err != nil {
			return err
		}
		dr, err := newRecords(gdb)
		if err != nil {
			return err
		}

		about, err := dr.AboutSponsorships(args[0], asInvestigator)
		if err != nil {
			return err
		}

		if outputFmt != "table" {
			return printOutput(about)
		}

		headers := []string{"Record", "Investigator", "Title", "Description"}
		rows := make([][]string, 0, len(about))
		for _, s := range about {
			rows = append(rows, []string{
				s.Record, s.Investigator.String(), s.Title,
				truncate(s.Description, 60),
			})
		}
		printTable(headers, rows)
		fmt.Printf("Total: %d\n", len(about))
		return nil
	},
}

var detailCmd = &cobra.Command{
	Use:   "detail <record>",
	Short: "Show one oversight request with its sponsored team",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		gdb, err := openStore()
		if err != nil {
			return err
		}
		dr, err := newRecords(gdb)
		if err != nil {
			return err
		}

		detail, err := dr.Detail(args[0], true)
		if err != nil {
			return err
		}

		if outputFmt != "table" {
			return printOutput(detail)
		}

		fmt.Printf("Record:       %s\n", args[0])
		fmt.Printf("Investigator: %s\n", detail.Investigator)
		fmt.Printf("Title:        %s\n", detail.Fields["project_title"])
		fmt.Println("Team:")
		for _, m := range detail.Team {
			fmt.Printf("  %s\n", m)
		}
		return nil
	},
}

func init() {
	sponsorshipsCmd.Flags().BoolVar(&asInvestigator, "investigator", false,
		"List sponsorships the user sponsors rather than receives")
	rootCmd.AddCommand(sponsorshipsCmd)
	rootCmd.AddCommand(detailCmd)
}
