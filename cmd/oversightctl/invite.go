package main

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/spf13/cobra"

	"github.com/bmi-informatics/oversight/pkg/invite"
)

var (
	surveyID    int
	multiInvite bool
)

func newSecureSurvey() (*invite.SecureSurvey, error) {
	gdb, err := openStore()
	if err != nil {
		return nil, err
	}
	cfg := invite.ConfigFromEnv()
	if surveyID > 0 {
		cfg.SurveyID = surveyID
	}
	if cfg.SurveyID == 0 {
		return nil, fmt.Errorf("no survey configured; set OVERSIGHT_SURVEY_ID or pass --survey-id")
	}
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	return invite.NewSecureSurvey(gdb, rng, cfg.SurveyID, nil), nil
}

var inviteCmd = &cobra.Command{
	Use:   "invite <email>",
	Short: "Issue (or find) a survey invitation code for an email address",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSecureSurvey()
		if err != nil {
			return err
		}
		code, err := s.Invite(args[0], multiInvite)
		if err != nil {
			return err
		}
		fmt.Println(code)
		return nil
	},
}

var responsesCmd = &cobra.Command{
	Use:   "responses <email>",
	Short: "List survey responses for an email address",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSecureSurvey()
		if err != nil {
			return err
		}
		responses, err := s.Responses(args[0])
		if err != nil {
			return err
		}

		if outputFmt != "table" {
			return printOutput(responses)
		}

		headers := []string{"Record", "Completed"}
		rows := make([][]string, 0, len(responses))
		for _, r := range responses {
			completed := ""
			if r.CompletionTime != nil {
				completed = r.CompletionTime.Format(time.RFC3339)
			}
			rows = append(rows, []string{r.Record, completed})
		}
		printTable(headers, rows)
		return nil
	},
}

func init() {
	inviteCmd.Flags().IntVar(&surveyID, "survey-id", 0,
		"Survey id (default: from OVERSIGHT_SURVEY_ID)")
	inviteCmd.Flags().BoolVar(&multiInvite, "multi", false,
		"Allow repeat responses: reissue once the last invitation is answered")
	responsesCmd.Flags().IntVar(&surveyID, "survey-id", 0,
		"Survey id (default: from OVERSIGHT_SURVEY_ID)")
	rootCmd.AddCommand(inviteCmd)
	rootCmd.AddCommand(responsesCmd)
}
