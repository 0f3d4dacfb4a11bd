// Package report renders correlated alerts for the operator.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/bryanwahyu/ccs-report/internal/domain/alerts"
)

// Format selects how rows are rendered.
type Format string

const (
	// FormatText prints "alert, policy name, policy id" lines.
	FormatText Format = "text"
	// FormatCSV prints RFC 4180 CSV.
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// ParseFormat accepts text, csv or json, case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "", FormatText:
		return FormatText, nil
	case FormatCSV, FormatJSON:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want text, csv or json)", s)
	}
}

var header = []string{"Alert ID", "Policy Name", "Policy ID"}

// Write renders rows to w.
func Write(w io.Writer, format Format, rows []alerts.CorrelatedResult) error {
	switch format {
	case FormatJSON:
		if rows == nil {
			rows = []alerts.CorrelatedResult{}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)

	case FormatCSV:
		cw := csv.NewWriter(w)
		if err := cw.Write(header); err != nil {
			return err
		}
		for _, r := range rows {
			if err := cw.Write([]string{r.AlertID, r.PolicyName, r.PolicyID}); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()

	case FormatText, "":
		if _, err := fmt.Fprintln(w, strings.Join(header, ", ")); err != nil {
			return err
		}
		for _, r := range rows {
			if _, err := fmt.Fprintf(w, "%s, %s, %s\n", r.AlertID, r.PolicyName, r.PolicyID); err != nil {
				return err
			}
		}
		return nil

	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}
