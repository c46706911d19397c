package core

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"
	"time"
)

// Month identifies a calendar bucket.
type Month struct {
	Year  int
	Month time.Month
}

// MonthOf returns the month containing t, in t's location.
func MonthOf(t time.Time) Month {
	return Month{Year: t.Year(), Month: t.Month()}
}

// MonthKey formats the local year and 1-based month of t as YYYY-MM.
func MonthKey(t time.Time) string {
	return MonthOf(t).Key()
}

func (m Month) Key() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

// Add shifts m by n months in either direction. There is no range limit.
func (m Month) Add(n int) Month {
	t := time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, n, 0)
	return Month{Year: t.Year(), Month: t.Month()}
}

// Label renders the month as "January 2025".
func (m Month) Label() string {
	return fmt.Sprintf("%s %d", m.Month.String(), m.Year)
}

// ParseMonthKey is the inverse of Month.Key.
func ParseMonthKey(s string) (Month, error) {
	if !ValidMonthKey(s) {
		return Month{}, fmt.Errorf("%w: %q", ErrInvalidMonthKey, s)
	}
	year, _ := strconv.Atoi(s[:4])
	month, _ := strconv.Atoi(s[5:])
	if month < 1 || month > 12 {
		return Month{}, fmt.Errorf("%w: month %d out of range", ErrInvalidMonthKey, month)
	}
	return Month{Year: year, Month: time.Month(month)}, nil
}

// IsCurrentMonth compares year and month only.
func IsCurrentMonth(selected Month, now time.Time) bool {
	return selected == MonthOf(now)
}

// RecordsFor returns the records bucketed under monthKey, newest first.
// Records created at the same instant keep their store order.
func RecordsFor(s *Store, monthKey string) []Record {
	var out []Record
	for r := range s.All() {
		if r.MonthKey == monthKey {
			out = append(out, r)
		}
	}
	slices.SortStableFunc(out, func(a, b Record) int {
		return cmp.Compare(b.CreatedAt.UnixMilli(), a.CreatedAt.UnixMilli())
	})
	return out
}

// CountFor returns the number of records bucketed under monthKey.
func CountFor(s *Store, monthKey string) int {
	n := 0
	for r := range s.All() {
		if r.MonthKey == monthKey {
			n++
		}
	}
	return n
}
