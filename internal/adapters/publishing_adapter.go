// Package adapters decorates persistence adapters with side effects.
package adapters

import (
	"context"

	"payrollforms/internal/amqp"
	"payrollforms/internal/core"
	"payrollforms/internal/log"
	"payrollforms/internal/persist"
)

// Publisher announces saved snapshots to downstream consumers.
type Publisher interface {
	PublishFormsSaved(ctx context.Context, msg *amqp.FormsSavedMessage) error
}

// PublishingAdapter wraps an adapter and publishes every successful save.
// Publishing is best effort; a failed publish never fails the save.
type PublishingAdapter struct {
	next      persist.Adapter
	publisher Publisher
	logger    *log.Logger
}

func NewPublishingAdapter(next persist.Adapter, publisher Publisher, logger *log.Logger) *PublishingAdapter {
	if logger == nil {
		logger = log.Discard()
	}
	return &PublishingAdapter{
		next:      next,
		publisher: publisher,
		logger:    logger.WithComponent(log.ComponentAMQP),
	}
}

// Name implements persist.Adapter
func (a *PublishingAdapter) Name() string { return a.next.Name() }

// Load implements persist.Adapter
func (a *PublishingAdapter) Load(ctx context.Context) (*core.Store, error) {
	return a.next.Load(ctx)
}

// Save implements persist.Adapter
func (a *PublishingAdapter) Save(ctx context.Context, s *core.Store) error {
	if err := a.next.Save(ctx, s); err != nil {
		return err
	}
	msg := amqp.NewFormsSavedMessage(a.next.Name(), s)
	if err := a.publisher.PublishFormsSaved(ctx, msg); err != nil {
		a.logger.WarnContext(ctx, "Failed to publish forms saved message",
			log.FieldOperation, log.OpPublish,
			log.FieldBackend, a.next.Name(),
			log.FieldError, err)
	}
	return nil
}
