// Package export serializes records into downloadable JSON, CSV and text payloads.
package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"iter"
	"strings"

	"payrollforms/internal/core"
)

type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatText Format = "txt"
)

const filePrefix = "payroll-forms"

var csvHeader = []string{"id", "createdAt", "lastModified", "monthKey", "content", "date"}

// ParseFormat accepts json, csv, txt and text, case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return FormatJSON, nil
	case "csv":
		return FormatCSV, nil
	case "txt", "text":
		return FormatText, nil
	default:
		return "", fmt.Errorf("unknown export format %q", s)
	}
}

// Filename returns the download name. Only CSV carries the month key.
func Filename(f Format, monthKey string) string {
	switch f {
	case FormatCSV:
		if monthKey == "" {
			return filePrefix + ".csv"
		}
		return fmt.Sprintf("%s-%s.csv", filePrefix, monthKey)
	case FormatText:
		return filePrefix + ".txt"
	default:
		return filePrefix + ".json"
	}
}

func ContentType(f Format) string {
	switch f {
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatText:
		return "text/plain; charset=utf-8"
	default:
		return "application/json; charset=utf-8"
	}
}

// JSON renders the whole store as an object keyed by id with a two space indent.
// Keys come out sorted, which encoding/json does for maps.
func JSON(s *core.Store) ([]byte, error) {
	data, err := json.MarshalIndent(s.Map(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal records: %w", err)
	}
	return data, nil
}

// CSV quotes every field and doubles embedded quotes. Newlines stay inside the quotes.
func CSV(records iter.Seq[core.Record]) []byte {
	var buf bytes.Buffer
	buf.WriteString(strings.Join(csvHeader, ","))
	buf.WriteByte('\n')
	for r := range records {
		fields := []string{r.ID, r.CreatedAt.String(), r.LastModified.String(), r.MonthKey, r.Content, r.Date}
		for i, f := range fields {
			if i > 0 {
				buf.WriteByte(',')
			}
			buf.WriteString(quote(f))
		}
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// Text writes one labeled block per record, blocks separated by a blank line.
func Text(records iter.Seq[core.Record]) []byte {
	var buf bytes.Buffer
	for r := range records {
		fmt.Fprintf(&buf, "ID: %s\n", r.ID)
		fmt.Fprintf(&buf, "Created At: %s\n", r.CreatedAt)
		fmt.Fprintf(&buf, "Last Modified: %s\n", r.LastModified)
		fmt.Fprintf(&buf, "Month: %s\n", r.MonthKey)
		fmt.Fprintf(&buf, "Date: %s\n", r.Date)
		fmt.Fprintf(&buf, "Content: %s\n\n", r.Content)
	}
	return buf.Bytes()
}
