package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"clipdraft/internal/dispatch"
	"clipdraft/internal/lifecycle"
	"clipdraft/internal/logging"
	"clipdraft/internal/queue"
	"clipdraft/internal/services"
	"clipdraft/internal/services/gateway"
)

// Ingest records a new item for sourceURL and queues its transcription. It
// returns as soon as the item is stored; a full dispatch queue is logged, not
// returned, and the item waits in Pending for the next resting item sweep.
func (m *Manager) Ingest(ctx context.Context, sourceURL string) (int64, error) {
	normalized, err := gateway.ValidateURL(sourceURL)
	if err != nil {
		return 0, err
	}
	item, err := m.store.Create(ctx, normalized)
	if err != nil {
		m.setLastError(err)
		return 0, err
	}
	requestID := uuid.NewString()
	m.afterTransition(ctx, item, "", lifecycle.EventSubmit, requestID)
	m.submit(item.ID, lifecycle.StepTranscription, requestID)
	return item.ID, nil
}

// Retry resumes a failed item. A research failure with a surviving transcript
// resumes at Transcribed; every other failure restarts transcription.
func (m *Manager) Retry(ctx context.Context, id int64) (*queue.Item, error) {
	item, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if item.State != lifecycle.Failed {
		return nil, fmt.Errorf("%w: item %d is %s; only failed items can be retried", services.ErrStateConflict, id, item.State)
	}
	updated, err := m.store.UpdateIf(ctx, id, lifecycle.Failed, lifecycle.EventRetry, nil)
	if err != nil {
		return nil, err
	}
	requestID := uuid.NewString()
	m.afterTransition(ctx, updated, lifecycle.Failed, lifecycle.EventRetry, requestID)
	if step, ok := lifecycle.StepFor(updated.State); ok {
		m.submit(updated.ID, step, requestID)
	}
	return updated, nil
}

// GetStatus returns a snapshot of one item.
func (m *Manager) GetStatus(ctx context.Context, id int64) (*queue.Item, error) {
	return m.store.Get(ctx, id)
}

// List returns items newest first, optionally filtered by state.
func (m *Manager) List(ctx context.Context, states ...lifecycle.State) ([]*queue.Item, error) {
	return m.store.List(ctx, states...)
}

// History returns the persisted transitions of one item, oldest first.
func (m *Manager) History(ctx context.Context, id int64) ([]queue.Transition, error) {
	return m.store.Events(ctx, id)
}

// Remove deletes an item that has no step in flight.
func (m *Manager) Remove(ctx context.Context, id int64) error {
	if err := m.store.Remove(ctx, id, lifecycle.Transcribing, lifecycle.Researching); err != nil {
		return err
	}
	m.logger.Info("item removed",
		logging.Int64(logging.FieldItemID, id),
		logging.String(logging.FieldEventType, "item_removed"),
	)
	return nil
}

func (m *Manager) submit(id int64, step lifecycle.Step, requestID string) {
	err := m.dispatcher.Submit(dispatch.Task{ItemID: id, Step: step, RequestID: requestID})
	if err == nil {
		return
	}
	attrs := []logging.Attr{
		logging.Int64(logging.FieldItemID, id),
		logging.String(logging.FieldStep, string(step)),
		logging.String(logging.FieldCorrelationID, requestID),
		logging.Error(err),
	}
	switch {
	case errors.Is(err, dispatch.ErrQueueFull):
		attrs = append(attrs,
			logging.String(logging.FieldErrorHint, "raise dispatch.queue_size if this repeats"),
			logging.String(logging.FieldImpact, "item waits for the next resting item sweep"),
		)
		logging.WarnWithContext(m.logger, "dispatch queue full; step not queued", "dispatch_queue_full", attrs...)
	case errors.Is(err, dispatch.ErrAlreadyScheduled):
		m.logger.Debug("step already scheduled", logging.Args(attrs...)...)
	default:
		m.logger.Debug("step not queued", logging.Args(attrs...)...)
	}
}
