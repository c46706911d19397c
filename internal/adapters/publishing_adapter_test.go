package adapters

import (
	"context"
	"errors"
	"testing"
	"time"

	"payrollforms/internal/amqp"
	"payrollforms/internal/core"
	"payrollforms/internal/log"
	"payrollforms/internal/persist/local"
)

type fakePublisher struct {
	published []*amqp.FormsSavedMessage
	err       error
}

func (f *fakePublisher) PublishFormsSaved(_ context.Context, msg *amqp.FormsSavedMessage) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, msg)
	return nil
}

func storeWith(t *testing.T, ids ...string) *core.Store {
	t.Helper()
	s := core.NewStore()
	at := time.Date(2025, 5, 2, 8, 0, 0, 0, time.UTC)
	for _, id := range ids {
		if err := s.Add(core.NewRecord(id, at, "2025-05")); err != nil {
			t.Fatalf("add: %v", err)
		}
	}
	return s
}

func TestPublishingAdapterPublishesAfterSave(t *testing.T) {
	next := local.New(local.NewMemoryKV(0), log.Discard())
	pub := &fakePublisher{}
	a := NewPublishingAdapter(next, pub, log.Discard())

	if a.Name() != "local" {
		t.Fatalf("name = %q", a.Name())
	}
	if err := a.Save(context.Background(), storeWith(t, "form_1", "form_2")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if len(pub.published) != 1 {
		t.Fatalf("expected one message, got %d", len(pub.published))
	}
	msg := pub.published[0]
	if msg.Backend != "local" || len(msg.Records) != 2 {
		t.Fatalf("unexpected message %+v", msg)
	}

	loaded, err := a.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Len() != 2 {
		t.Fatalf("loaded %d records", loaded.Len())
	}
}

func TestPublishingAdapterIgnoresPublishFailure(t *testing.T) {
	kv := local.NewMemoryKV(0)
	a := NewPublishingAdapter(local.New(kv, log.Discard()), &fakePublisher{err: errors.New("broker down")}, log.Discard())

	if err := a.Save(context.Background(), storeWith(t, "form_1")); err != nil {
		t.Fatalf("publish failure should not fail the save: %v", err)
	}
	if v, err := kv.Get(context.Background(), local.StorageKey); err != nil || v == "" {
		t.Fatalf("snapshot not stored: %q, %v", v, err)
	}
}

func TestPublishingAdapterSkipsPublishOnSaveFailure(t *testing.T) {
	pub := &fakePublisher{}
	// a quota of one byte rejects every write
	a := NewPublishingAdapter(local.New(local.NewMemoryKV(1), log.Discard()), pub, log.Discard())

	err := a.Save(context.Background(), storeWith(t, "form_1"))
	var perr *core.PersistenceError
	if !errors.As(err, &perr) {
		t.Fatalf("expected PersistenceError, got %v", err)
	}
	if len(pub.published) != 0 {
		t.Fatal("nothing should be published when the save fails")
	}
}
