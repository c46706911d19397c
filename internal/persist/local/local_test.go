package local

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"payrollforms/internal/core"
	"payrollforms/internal/persist"
)

func seededStore(t *testing.T, n int) *core.Store {
	t.Helper()
	s := core.NewStore()
	var g core.IDGenerator
	base := time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		at := base.Add(time.Duration(i) * time.Second)
		r := core.NewRecord(g.Next(at), at, core.MonthKey(at))
		r.Content = "note"
		if err := s.Add(r); err != nil {
			t.Fatalf("add: %v", err)
		}
	}
	return s
}

func TestLoadAbsentKeyYieldsEmptyStore(t *testing.T) {
	a := New(NewMemoryKV(0), nil)
	s, err := a.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if s.Len() != 0 {
		t.Fatalf("expected empty store, got %d", s.Len())
	}
}

func TestLoadMalformedYieldsEmptyStore(t *testing.T) {
	kv := NewMemoryKV(0)
	_ = kv.Set(context.Background(), StorageKey, "{not json")
	s, err := New(kv, nil).Load(context.Background())
	if err != nil {
		t.Fatalf("load must not fail on malformed data: %v", err)
	}
	if s.Len() != 0 {
		t.Fatalf("expected empty store, got %d", s.Len())
	}
}

func TestSaveThenLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV(0)
	a := New(kv, nil)
	want := seededStore(t, 3)

	if err := a.Save(ctx, want); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := a.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !reflect.DeepEqual(got.Map(), want.Map()) {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got.Map(), want.Map())
	}

	var ids []string
	for r := range got.All() {
		ids = append(ids, r.ID)
	}
	var wantIDs []string
	for r := range want.All() {
		wantIDs = append(wantIDs, r.ID)
	}
	if !reflect.DeepEqual(ids, wantIDs) {
		t.Fatalf("loaded order %v, want oldest first %v", ids, wantIDs)
	}
}

func TestSaveQuotaExceededKeepsMemory(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV(64)
	a := New(kv, nil)
	s := seededStore(t, 5)
	before := s.Map()

	err := a.Save(ctx, s)
	var pe *core.PersistenceError
	if !errors.As(err, &pe) {
		t.Fatalf("expected PersistenceError, got %v", err)
	}
	if pe.Backend != "local" || !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("unexpected error %v", err)
	}
	if !reflect.DeepEqual(before, s.Map()) {
		t.Fatal("failed save changed the in-memory store")
	}
	if _, err := kv.Get(ctx, StorageKey); !errors.Is(err, persist.ErrKeyNotFound) {
		t.Fatalf("nothing should have been written, got %v", err)
	}
}

func TestDecodeRepairsKeysAndMonthKeys(t *testing.T) {
	created := core.NewTimestamp(time.Date(2025, 4, 3, 12, 0, 0, 0, time.UTC))
	stored := map[string]core.Record{
		"form_1": {ID: "form_other", CreatedAt: created, LastModified: created, MonthKey: "2025-04"},
		"form_2": {ID: "form_2", CreatedAt: created, LastModified: created, MonthKey: "april"},
	}
	s := Decode(context.Background(), stored, New(NewMemoryKV(0), nil).logger)

	r1, err := s.Get("form_1")
	if err != nil || r1.ID != "form_1" {
		t.Fatalf("key should win over id: %+v %v", r1, err)
	}
	r2, _ := s.Get("form_2")
	if r2.MonthKey != core.MonthKey(created.Local()) {
		t.Fatalf("month key not repaired: %q", r2.MonthKey)
	}
}

type failingKV struct{ err error }

func (f failingKV) Get(context.Context, string) (string, error) { return "", f.err }
func (f failingKV) Set(context.Context, string, string) error   { return f.err }

func TestLoadReadFailureIsReported(t *testing.T) {
	boom := errors.New("disk gone")
	_, err := New(failingKV{err: boom}, nil).Load(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("expected read error, got %v", err)
	}
}

func TestMemoryKVQuotaCountsReplacedValue(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV(20)
	if err := kv.Set(ctx, "k", "0123456789"); err != nil {
		t.Fatalf("first set: %v", err)
	}
	// replacing the value must not count the old one
	if err := kv.Set(ctx, "k", "9876543210"); err != nil {
		t.Fatalf("replace: %v", err)
	}
	if err := kv.Set(ctx, "other", "0123456789"); !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("expected quota error, got %v", err)
	}
}
