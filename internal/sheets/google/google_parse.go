package google

import (
	"fmt"
	"strings"
	"time"

	"payrollforms/internal/core"
)

type parseStats struct {
	reconstructed int
	blankIDs      int
}

type columns struct {
	id, content, date, createdAt, lastModified, monthKey int
}

func headerColumns(headers []string) columns {
	return columns{
		id:           indexOf(headers, "id"),
		content:      indexOf(headers, "content"),
		date:         indexOf(headers, "date"),
		createdAt:    indexOf(headers, "createdAt"),
		lastModified: indexOf(headers, "lastModified"),
		monthKey:     indexOf(headers, "monthKey"),
	}
}

// parseRecords maps a used range into a store. Row 0 holds the headers in any
// order. Rows are keyed by their id cell, so a later row with the same id,
// blank ids included, replaces the earlier one.
func parseRecords(values [][]any, now time.Time) (*core.Store, parseStats) {
	store := core.NewStore()
	var stats parseStats
	if len(values) == 0 {
		return store, stats
	}
	cols := headerColumns(toStrings(values[0]))

	for _, raw := range values[1:] {
		row := toStrings(raw)
		if isBlank(row) {
			continue
		}
		r, rebuilt := rowToRecord(row, cols, now)
		if rebuilt {
			stats.reconstructed++
		}
		if r.ID == "" {
			stats.blankIDs++
		}
		store.Put(r)
	}
	return store, stats
}

func rowToRecord(row []string, cols columns, now time.Time) (core.Record, bool) {
	r := core.Record{
		ID:      strings.TrimSpace(safeGet(row, cols.id)),
		Content: safeGet(row, cols.content),
		Date:    strings.TrimSpace(safeGet(row, cols.date)),
	}
	rebuilt := false

	if ts, err := core.ParseTimestamp(safeGet(row, cols.createdAt)); err == nil {
		r.CreatedAt = ts
	} else {
		r.CreatedAt = core.NewTimestamp(guessCreatedAt(r.ID, r.Date, now))
		rebuilt = true
	}

	if ts, err := core.ParseTimestamp(safeGet(row, cols.lastModified)); err == nil {
		r.LastModified = ts
	} else {
		r.LastModified = r.CreatedAt
		rebuilt = true
	}

	if mk := strings.TrimSpace(safeGet(row, cols.monthKey)); core.ValidMonthKey(mk) {
		r.MonthKey = mk
	} else {
		r.MonthKey = core.MonthKey(r.CreatedAt.Local())
		rebuilt = true
	}

	if r.Date == "" {
		r.Date = core.FormatDate(r.CreatedAt.Local())
	}
	return r, rebuilt
}

// guessCreatedAt prefers the millis in a generated id, then the display date,
// then the load time.
func guessCreatedAt(id, date string, now time.Time) time.Time {
	if ms, ok := core.IDMillis(id); ok {
		return time.UnixMilli(ms)
	}
	if d, err := time.ParseInLocation(core.DateLayout, date, time.Local); err == nil {
		return d
	}
	return now
}

// toStrings keeps cell text as is. Content may carry meaningful whitespace.
func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = fmt.Sprint(v)
	}
	return out
}

func isBlank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func indexOf(arr []string, target string) int {
	for i, v := range arr {
		if strings.EqualFold(strings.TrimSpace(v), strings.TrimSpace(target)) {
			return i
		}
	}
	return -1
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return arr[idx]
}
