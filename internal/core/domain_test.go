package core

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestNewRecord(t *testing.T) {
	now := time.Date(2025, 3, 7, 14, 5, 9, 123456789, time.Local)
	r := NewRecord("form_1", now, MonthKey(now))

	if r.Content != "" {
		t.Fatalf("expected empty content, got %q", r.Content)
	}
	if r.MonthKey != "2025-03" {
		t.Fatalf("month key = %q", r.MonthKey)
	}
	if r.Date != "07/03/2025" {
		t.Fatalf("date = %q", r.Date)
	}
	if !r.CreatedAt.Equal(r.LastModified.Time) {
		t.Fatalf("createdAt and lastModified differ: %v %v", r.CreatedAt, r.LastModified)
	}
	if r.CreatedAt.Nanosecond()%int(time.Millisecond) != 0 {
		t.Fatalf("createdAt not truncated to ms: %v", r.CreatedAt)
	}
}

func TestRecordDuplicateKeepsMonthKey(t *testing.T) {
	created := time.Date(2025, 1, 31, 10, 0, 0, 0, time.Local)
	orig := NewRecord("form_1", created, "2025-01")
	orig.Content = "hello"

	later := time.Date(2025, 2, 1, 9, 0, 0, 0, time.Local)
	dup := orig.Duplicate("form_2", later)

	if dup.ID != "form_2" || dup.Content != "hello" {
		t.Fatalf("unexpected duplicate: %+v", dup)
	}
	if dup.MonthKey != "2025-01" {
		t.Fatalf("duplicate should keep month key, got %q", dup.MonthKey)
	}
	if dup.Date != "01/02/2025" {
		t.Fatalf("duplicate date = %q", dup.Date)
	}
}

func TestRecordValidate(t *testing.T) {
	cases := []struct {
		key string
		ok  bool
	}{
		{"2025-01", true},
		{"1999-12", true},
		{"2025-1", false},
		{"25-01", false},
		{"", false},
		{"2025-01-01", false},
	}
	for i, tc := range cases {
		err := Record{ID: "x", MonthKey: tc.key}.Validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && !errors.Is(err, ErrInvalidMonthKey) {
			t.Fatalf("case %d expected ErrInvalidMonthKey, got %v", i, err)
		}
	}
}

func TestTimestampJSON(t *testing.T) {
	ts := NewTimestamp(time.Date(2025, 6, 1, 8, 30, 0, 250*int(time.Millisecond), time.UTC))
	data, err := json.Marshal(ts)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `"2025-06-01T08:30:00.250Z"` {
		t.Fatalf("unexpected encoding %s", data)
	}

	var back Timestamp
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back != ts {
		t.Fatalf("round trip mismatch: %v != %v", back, ts)
	}

	if err := json.Unmarshal([]byte(`"2025-06-01T10:30:00+02:00"`), &back); err != nil {
		t.Fatalf("unmarshal offset form: %v", err)
	}
	if !back.Equal(time.Date(2025, 6, 1, 8, 30, 0, 0, time.UTC)) {
		t.Fatalf("offset form parsed to %v", back)
	}

	if err := json.Unmarshal([]byte(`"yesterday"`), &back); err == nil {
		t.Fatal("expected error for garbage timestamp")
	}
}

func TestErrorTypesUnwrap(t *testing.T) {
	cause := errors.New("quota exceeded")
	err := error(&PersistenceError{Backend: "local", Op: "save", Err: &HostIntegrationError{Op: "write", Err: cause}})

	if !errors.Is(err, cause) {
		t.Fatal("expected cause in chain")
	}
	var host *HostIntegrationError
	if !errors.As(err, &host) {
		t.Fatal("expected HostIntegrationError in chain")
	}
	var pe *PersistenceError
	if !errors.As(err, &pe) || pe.Backend != "local" {
		t.Fatalf("expected PersistenceError, got %v", err)
	}
}

func TestIDGenerator(t *testing.T) {
	var g IDGenerator
	now := time.UnixMilli(1700000000000)

	a := g.Next(now)
	b := g.Next(now)
	c := g.Next(now.Add(-time.Second))

	if a != "form_1700000000000" {
		t.Fatalf("first id = %s", a)
	}
	if b != "form_1700000000001" || c != "form_1700000000002" {
		t.Fatalf("ids not monotonic: %s %s %s", a, b, c)
	}

	g.Observe("form_1800000000000")
	if got := g.Next(now); got != "form_1800000000001" {
		t.Fatalf("observe did not advance generator: %s", got)
	}

	if _, ok := IDMillis("note_12"); ok {
		t.Fatal("foreign prefix should not parse")
	}
}
