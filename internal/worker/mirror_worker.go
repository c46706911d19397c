// Package worker mirrors saved snapshots into the spreadsheet.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"payrollforms/internal/amqp"
	"payrollforms/internal/log"
	"payrollforms/internal/persist"
	"payrollforms/internal/persist/local"
)

// MirrorWorker writes each published snapshot to a target adapter.
// Each write is single shot; a failed mirror waits for the next save.
type MirrorWorker struct {
	target persist.Adapter
	logger *log.Logger

	mu       sync.Mutex
	lastSeen time.Time
}

func NewMirrorWorker(target persist.Adapter, logger *log.Logger) *MirrorWorker {
	if logger == nil {
		logger = log.Discard()
	}
	return &MirrorWorker{
		target: target,
		logger: logger.WithComponent(log.ComponentWorker),
	}
}

// HandleFormsSaved mirrors one snapshot. Snapshots older than the last
// mirrored one are dropped, since they would roll the sheet back.
func (w *MirrorWorker) HandleFormsSaved(ctx context.Context, msg *amqp.FormsSavedMessage) error {
	w.mu.Lock()
	if msg.Timestamp.Before(w.lastSeen) {
		w.mu.Unlock()
		w.logger.InfoContext(ctx, "Skipping stale snapshot",
			"timestamp", msg.Timestamp,
			"last_seen", w.lastSeen)
		return nil
	}
	w.mu.Unlock()

	s := local.Decode(ctx, msg.Records, w.logger)
	if err := w.target.Save(ctx, s); err != nil {
		return fmt.Errorf("mirror to %s: %w", w.target.Name(), err)
	}

	w.mu.Lock()
	if msg.Timestamp.After(w.lastSeen) {
		w.lastSeen = msg.Timestamp
	}
	w.mu.Unlock()

	w.logger.InfoContext(ctx, "Mirrored snapshot",
		log.FieldOperation, log.OpMirror,
		log.FieldBackend, w.target.Name(),
		log.FieldRecords, s.Len())
	return nil
}

// MirrorNow copies the source store to the target once, used at startup
// to catch up on saves made while the worker was down.
func (w *MirrorWorker) MirrorNow(ctx context.Context, source persist.Adapter) error {
	s, err := source.Load(ctx)
	if err != nil {
		return fmt.Errorf("load %s: %w", source.Name(), err)
	}
	started := time.Now()
	if err := w.target.Save(ctx, s); err != nil {
		return fmt.Errorf("mirror to %s: %w", w.target.Name(), err)
	}

	w.mu.Lock()
	if started.After(w.lastSeen) {
		w.lastSeen = started
	}
	w.mu.Unlock()

	w.logger.InfoContext(ctx, "Initial mirror completed",
		log.FieldBackend, w.target.Name(),
		log.FieldRecords, s.Len())
	return nil
}
