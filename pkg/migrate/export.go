package migrate

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/bmi-informatics/oversight/pkg/decision"
)

// ExportDecisions writes every committee decision as CSV, one row per
// sponsored team member (one bare row for requests with no team). Detail
// lookup skips the directory so exports work when it is unreachable.
func ExportDecisions(w io.Writer, dr *decision.DecisionRecords) error {
	rows, err := dr.OversightDecisions(false)
	if err != nil {
		return err
	}

	out := csv.NewWriter(w)
	header := []string{"record", "decision", "investigator", "member",
		"expiration", "purpose", "title", "description"}
	if err := out.Write(header); err != nil {
		return fmt.Errorf("migrate: write export header: %w", err)
	}

	for _, row := range rows {
		detail, err := dr.Detail(row.Record, false)
		if err != nil {
			return err
		}
		base := []string{
			row.Record,
			row.Decision,
			detail.Investigator.CN,
			"",
			detail.Fields["date_of_expiration"],
			detail.Fields["what_for"],
			detail.Fields["project_title"],
			detail.Fields["data_use_description"],
		}
		if len(detail.Team) == 0 {
			if err := out.Write(base); err != nil {
				return fmt.Errorf("migrate: write export row: %w", err)
			}
			continue
		}
		for _, member := range detail.Team {
			line := append([]string(nil), base...)
			line[3] = member.CN
			if err := out.Write(line); err != nil {
				return fmt.Errorf("migrate: write export row: %w", err)
			}
		}
	}

	out.Flush()
	if err := out.Error(); err != nil {
		return fmt.Errorf("migrate: flush export: %w", err)
	}
	return nil
}
