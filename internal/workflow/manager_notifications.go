package workflow

import (
	"context"
	"errors"

	"clipdraft/internal/events"
	"clipdraft/internal/lifecycle"
	"clipdraft/internal/logging"
	"clipdraft/internal/queue"
)

// afterTransition runs the side effects of a persisted transition. Failures
// here are logged and never undo the transition.
func (m *Manager) afterTransition(ctx context.Context, item *queue.Item, previous lifecycle.State, ev lifecycle.Event, requestID string) {
	if item == nil {
		return
	}
	m.setLastItem(item)
	logger := logging.WithContext(ctx, m.logger)

	attrs := []logging.Attr{
		logging.Int64(logging.FieldItemID, item.ID),
		logging.String("event", string(ev)),
		logging.String("from_state", string(previous)),
		logging.String("to_state", string(item.State)),
		logging.String(logging.FieldEventType, "item_transition"),
	}
	if requestID != "" {
		attrs = append(attrs, logging.String(logging.FieldCorrelationID, requestID))
	}
	if item.LastError != nil && item.State == lifecycle.Failed {
		attrs = append(attrs, logging.String(logging.FieldErrorKind, string(item.LastError.Kind)))
	}
	logger.Info("item transition", logging.Args(attrs...)...)

	transition := events.Transition{
		ItemID:        item.ID,
		Event:         string(ev),
		PreviousState: string(previous),
		NextState:     string(item.State),
		RequestID:     requestID,
		At:            item.UpdatedAt,
	}
	if item.LastError != nil && item.State == lifecycle.Failed {
		transition.ErrorKind = string(item.LastError.Kind)
		transition.Note = item.LastError.Message
	}
	if err := m.publisher.Publish(ctx, transition); err != nil {
		logging.WarnWithContext(logger, "transition feed publish failed", "transition_publish_failed",
			logging.Int64(logging.FieldItemID, item.ID),
			logging.String(logging.FieldErrorHint, "check redis connectivity"),
			logging.String(logging.FieldImpact, "feed consumers miss this transition"),
			logging.Error(err),
		)
	}

	switch item.State {
	case lifecycle.Drafted:
		m.notify(ctx, "drafted", func(ctx context.Context) error {
			return m.notifier.NotifyDrafted(ctx, item.ID, item.SourceURL, len(item.DraftTweets))
		})
	case lifecycle.Failed:
		failure := item.LastError
		if failure == nil {
			return
		}
		m.notify(ctx, "failed", func(ctx context.Context) error {
			return m.notifier.NotifyFailed(ctx, item.ID, item.SourceURL, string(failure.Step), string(failure.Kind), failure.Message)
		})
	}
}

func (m *Manager) notify(ctx context.Context, label string, send func(context.Context) error) {
	if m.notifier == nil {
		return
	}
	if err := send(context.WithoutCancel(ctx)); err != nil {
		if errors.Is(err, context.Canceled) {
			m.logger.Debug("daemon shutting down, could not send notification", logging.String("notification", label))
			return
		}
		m.logger.Debug("notification failed", logging.String("notification", label), logging.Error(err))
	}
}
