package alerts

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Column headers of the alert export.
const (
	ColumnAlertID     = "Alert ID"
	ColumnPolicyName  = "Policy Name"
	ColumnAlertStatus = "Alert Status"
	ColumnPolicyType  = "Policy Type"
)

var requiredColumns = []string{ColumnAlertID, ColumnPolicyName, ColumnAlertStatus, ColumnPolicyType}

// ParseAlerts reads the exported CSV. The first row is the header. Any
// malformed row fails the whole parse.
func ParseAlerts(r io.Reader) ([]AlertRecord, error) {
	cr := csv.NewReader(r)

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: empty alert export, no header row", ErrFormat)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: reading header: %v", ErrFormat, err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	pos := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(h)
		header[i] = h
		if _, dup := pos[h]; !dup {
			pos[h] = i
		}
	}
	for _, col := range requiredColumns {
		if _, ok := pos[col]; !ok {
			return nil, fmt.Errorf("%w: missing column %q", ErrFormat, col)
		}
	}

	var out []AlertRecord
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrFormat, err)
		}

		fields := make(map[string]string, len(header))
		for i, h := range header {
			if _, ok := fields[h]; !ok {
				fields[h] = row[i]
			}
		}
		out = append(out, AlertRecord{
			AlertID:     row[pos[ColumnAlertID]],
			PolicyName:  row[pos[ColumnPolicyName]],
			AlertStatus: row[pos[ColumnAlertStatus]],
			PolicyType:  row[pos[ColumnPolicyType]],
			Fields:      fields,
		})
	}
	return out, nil
}

// ParseAlertBytes is ParseAlerts over an in-memory artifact.
func ParseAlertBytes(data []byte) ([]AlertRecord, error) {
	return ParseAlerts(bytes.NewReader(data))
}
