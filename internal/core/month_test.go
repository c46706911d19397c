package core

import (
	"errors"
	"testing"
	"time"
)

func TestMonthKeyRoundTrip(t *testing.T) {
	dates := []time.Time{
		time.Date(2025, 1, 1, 0, 0, 0, 0, time.Local),
		time.Date(2025, 12, 31, 23, 59, 59, 0, time.Local),
		time.Date(1999, 2, 28, 12, 0, 0, 0, time.Local),
		time.Date(2024, 2, 29, 12, 0, 0, 0, time.Local),
		time.Date(10, 7, 4, 0, 0, 0, 0, time.Local),
	}
	for _, d := range dates {
		key := MonthKey(d)
		if !ValidMonthKey(key) {
			t.Fatalf("%v produced invalid key %q", d, key)
		}
		m, err := ParseMonthKey(key)
		if err != nil {
			t.Fatalf("parse %q: %v", key, err)
		}
		if m.Year != d.Year() || m.Month != d.Month() {
			t.Fatalf("round trip of %v gave %+v", d, m)
		}
	}
}

func TestParseMonthKeyRejects(t *testing.T) {
	for _, s := range []string{"2025-13", "2025-00", "2025-1", "abcd-ef", ""} {
		if _, err := ParseMonthKey(s); !errors.Is(err, ErrInvalidMonthKey) {
			t.Fatalf("%q: expected ErrInvalidMonthKey, got %v", s, err)
		}
	}
}

func TestMonthAdd(t *testing.T) {
	cases := []struct {
		from Month
		n    int
		want string
	}{
		{Month{2025, time.January}, -1, "2024-12"},
		{Month{2025, time.December}, 1, "2026-01"},
		{Month{2025, time.March}, 0, "2025-03"},
		{Month{2025, time.March}, -27, "2022-12"},
		{Month{2025, time.March}, 120, "2035-03"},
	}
	for _, tc := range cases {
		if got := tc.from.Add(tc.n).Key(); got != tc.want {
			t.Fatalf("%s %+d = %s, want %s", tc.from.Key(), tc.n, got, tc.want)
		}
	}
	if got := (Month{2025, time.July}).Label(); got != "July 2025" {
		t.Fatalf("label = %q", got)
	}
}

func TestIsCurrentMonth(t *testing.T) {
	now := time.Date(2025, 8, 15, 18, 0, 0, 0, time.Local)
	if !IsCurrentMonth(Month{2025, time.August}, now) {
		t.Fatal("same month should be current")
	}
	if IsCurrentMonth(Month{2024, time.August}, now) {
		t.Fatal("different year should not be current")
	}
	if IsCurrentMonth(Month{2025, time.September}, now) {
		t.Fatal("different month should not be current")
	}
}

func TestRecordsForFiltersAndSorts(t *testing.T) {
	s := NewStore()
	base := time.Date(2025, 3, 10, 9, 0, 0, 0, time.Local)

	older := NewRecord("form_a", base, "2025-03")
	newer := NewRecord("form_b", base.Add(10*time.Millisecond), "2025-03")
	other := NewRecord("form_c", base.Add(time.Hour), "2025-04")
	_ = s.Add(older)
	_ = s.Add(other)
	_ = s.Add(newer)

	got := RecordsFor(s, "2025-03")
	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %d", len(got))
	}
	if got[0].ID != "form_b" || got[1].ID != "form_a" {
		t.Fatalf("expected newest first, got %s, %s", got[0].ID, got[1].ID)
	}
	for i := 0; i+1 < len(got); i++ {
		if got[i].CreatedAt.Before(got[i+1].CreatedAt.Time) {
			t.Fatalf("not sorted descending at %d", i)
		}
	}
	for _, r := range got {
		if r.MonthKey != "2025-03" {
			t.Fatalf("record from wrong month: %+v", r)
		}
	}
	if n := CountFor(s, "2025-04"); n != 1 {
		t.Fatalf("count for 2025-04 = %d", n)
	}
	if len(RecordsFor(s, "2030-01")) != 0 {
		t.Fatal("empty month should yield nothing")
	}
}

func TestRecordsForStableOnTies(t *testing.T) {
	s := NewStore()
	at := time.Date(2025, 3, 10, 9, 0, 0, 0, time.Local)
	for _, id := range []string{"form_x", "form_y", "form_z"} {
		_ = s.Add(NewRecord(id, at, "2025-03"))
	}
	got := RecordsFor(s, "2025-03")
	if got[0].ID != "form_x" || got[1].ID != "form_y" || got[2].ID != "form_z" {
		t.Fatalf("ties should keep store order: %v %v %v", got[0].ID, got[1].ID, got[2].ID)
	}
}
