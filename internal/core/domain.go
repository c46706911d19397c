package core

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

const (
	// IDPrefix is prepended to the creation time in milliseconds.
	IDPrefix = "form_"

	// DateLayout is the display layout of Record.Date.
	DateLayout = "02/01/2006"

	// TimestampLayout matches the ISO form written by browsers (UTC, milliseconds).
	TimestampLayout = "2006-01-02T15:04:05.000Z"
)

type (
	// Timestamp is a millisecond precision instant encoded as an ISO-8601 UTC string.
	Timestamp struct {
		time.Time
	}

	// Record is one user-authored form.
	Record struct {
		ID           string    `json:"id"`
		CreatedAt    Timestamp `json:"createdAt"`
		LastModified Timestamp `json:"lastModified"`
		MonthKey     string    `json:"monthKey"`
		Content      string    `json:"content"`
		Date         string    `json:"date"`
	}
)

var (
	ErrNotFound        = errors.New("record not found")
	ErrDuplicateID     = errors.New("duplicate record id")
	ErrInvalidMonthKey = errors.New("invalid month key")
)

var monthKeyPattern = regexp.MustCompile(`^\d{4}-\d{2}$`)

// PersistenceError reports a failed load or save against a storage backend.
// The in-memory store is never rolled back when one is returned.
type PersistenceError struct {
	Backend string
	Op      string
	Err     error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Backend, e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// HostIntegrationError reports a failed call into the spreadsheet host.
type HostIntegrationError struct {
	Op  string
	Err error
}

func (e *HostIntegrationError) Error() string {
	return fmt.Sprintf("host %s: %v", e.Op, e.Err)
}

func (e *HostIntegrationError) Unwrap() error { return e.Err }

// NewTimestamp normalizes t to UTC milliseconds so that it survives a JSON round trip.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t.UTC().Truncate(time.Millisecond)}
}

func (t Timestamp) String() string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(TimestampLayout)
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.String() + `"`), nil
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		t.Time = time.Time{}
		return nil
	}
	parsed, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// ParseTimestamp accepts the browser ISO form and any RFC 3339 value.
func ParseTimestamp(s string) (Timestamp, error) {
	s = strings.TrimSpace(s)
	if v, err := time.Parse(TimestampLayout, s); err == nil {
		return NewTimestamp(v), nil
	}
	v, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return Timestamp{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return NewTimestamp(v), nil
}

// FormatDate renders t as DD/MM/YYYY in its own location.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// NewRecord builds an empty record created at now, bucketed in monthKey.
func NewRecord(id string, now time.Time, monthKey string) Record {
	ts := NewTimestamp(now)
	return Record{
		ID:           id,
		CreatedAt:    ts,
		LastModified: ts,
		MonthKey:     monthKey,
		Date:         FormatDate(now),
	}
}

// Duplicate copies r under a new id and creation time. MonthKey is kept.
func (r Record) Duplicate(id string, now time.Time) Record {
	ts := NewTimestamp(now)
	d := r
	d.ID = id
	d.CreatedAt = ts
	d.LastModified = ts
	d.Date = FormatDate(now)
	return d
}

func (r Record) Validate() error {
	if !ValidMonthKey(r.MonthKey) {
		return fmt.Errorf("%w: %q", ErrInvalidMonthKey, r.MonthKey)
	}
	return nil
}

// ValidMonthKey reports whether s has the YYYY-MM shape.
func ValidMonthKey(s string) bool {
	return monthKeyPattern.MatchString(s)
}
