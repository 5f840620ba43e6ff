package workflow

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"clipdraft/internal/dispatch"
	"clipdraft/internal/lifecycle"
	"clipdraft/internal/logging"
	"clipdraft/internal/queue"
	"clipdraft/internal/services"
	"clipdraft/internal/services/gateway"
)

func stepContext(ctx context.Context, task dispatch.Task) context.Context {
	ctx = services.WithItemID(ctx, task.ItemID)
	ctx = services.WithStep(ctx, string(task.Step))
	if task.RequestID != "" {
		ctx = services.WithRequestID(ctx, task.RequestID)
	}
	return ctx
}

func (m *Manager) stepTimeout(step lifecycle.Step) time.Duration {
	if step == lifecycle.StepResearch {
		return m.researchTimeout
	}
	return m.transcriptionTimeout
}

// runStep executes the step the item is resting before. The dispatcher
// already holds the item's execution token. It returns the next step when
// this one succeeded.
func (m *Manager) runStep(ctx context.Context, task dispatch.Task) *dispatch.Task {
	ctx = stepContext(ctx, task)
	logger := logging.WithContext(ctx, m.logger)

	item, err := m.store.Get(ctx, task.ItemID)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			logger.Debug("item removed before step ran")
			return nil
		}
		m.setLastError(err)
		logger.Error("failed to load item for step", logging.Error(err))
		return nil
	}

	step, ok := lifecycle.StepFor(item.State)
	if !ok {
		logger.Info("step skipped; item already moved on",
			logging.String("state", string(item.State)),
			logging.String("expected_state", string(lifecycle.StartState(task.Step))),
			logging.String(logging.FieldEventType, "step_skipped"),
		)
		return nil
	}
	if step != task.Step {
		// A retry moved the item while this task waited.
		logger.Debug("running the step the item is waiting for",
			logging.String("requested_step", string(task.Step)),
			logging.String("state", string(item.State)),
		)
		task.Step = step
		ctx = stepContext(ctx, task)
		logger = logging.WithContext(ctx, m.logger)
	}
	start := item.State

	processing, ok := m.transition(ctx, logger, item.ID, start, lifecycle.StartEvent(task.Step), nil, task.RequestID)
	if !ok {
		return nil
	}

	began := time.Now()
	mutate, callErr := m.callGateway(ctx, task.Step, processing)
	if callErr != nil {
		if errors.Is(callErr, context.Canceled) && ctx.Err() != nil {
			logger.Info("step interrupted by shutdown",
				logging.String(logging.FieldEventType, "step_interrupted"),
				logging.String(logging.FieldImpact, "item is failed on next start and can be retried"),
			)
			return nil
		}
		m.failStep(ctx, logger, processing, task, callErr, time.Since(began))
		return nil
	}

	done, ok := m.transition(ctx, logger, processing.ID, processing.State, lifecycle.SucceededEvent(task.Step), mutate, task.RequestID)
	if !ok {
		return nil
	}
	logger.Info("step completed",
		logging.String(logging.FieldEventType, "step_completed"),
		logging.Duration("step_duration", time.Since(began)),
	)
	next, ok := lifecycle.StepFor(done.State)
	if !ok {
		return nil
	}
	return &dispatch.Task{ItemID: done.ID, Step: next, RequestID: task.RequestID}
}

// callGateway performs the step's single remote call under the step timeout
// and returns the mutation that stores its output.
func (m *Manager) callGateway(ctx context.Context, step lifecycle.Step, item *queue.Item) (func(*queue.Item) error, error) {
	callCtx, cancel := context.WithTimeout(ctx, m.stepTimeout(step))
	defer cancel()

	switch step {
	case lifecycle.StepTranscription:
		transcript, err := m.transcriber.Transcribe(callCtx, item.SourceURL)
		if err == nil {
			err = lateResult(callCtx, gateway.Transcription)
		}
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(transcript) == "" {
			return nil, malformed(gateway.Transcription, "transcript is empty")
		}
		return func(candidate *queue.Item) error {
			candidate.Transcript = transcript
			return nil
		}, nil
	case lifecycle.StepResearch:
		result, err := m.researcher.Research(callCtx, item.Transcript)
		if err == nil {
			err = lateResult(callCtx, gateway.Research)
		}
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(result.Notes) == "" || len(result.DraftTweets) == 0 {
			return nil, malformed(gateway.Research, "research notes and drafts are required")
		}
		citations := make([]queue.Citation, 0, len(result.Citations))
		for _, c := range result.Citations {
			citations = append(citations, queue.Citation{Source: c.Source, Excerpt: c.Excerpt})
		}
		return func(candidate *queue.Item) error {
			candidate.ResearchNotes = result.Notes
			candidate.Citations = citations
			candidate.DraftTweets = append([]string(nil), result.DraftTweets...)
			return nil
		}, nil
	default:
		return nil, services.Wrap(services.ErrInternal, string(step), "run step", "unknown step", nil)
	}
}

func (m *Manager) failStep(ctx context.Context, logger *slog.Logger, item *queue.Item, task dispatch.Task, stepErr error, elapsed time.Duration) {
	kind := services.FailureKind(stepErr)
	message := failureMessage(stepErr)
	m.setLastError(stepErr)
	logging.ErrorWithContext(logger, "step failed", "step_failed",
		logging.String(logging.FieldErrorKind, string(kind)),
		logging.String(logging.FieldErrorHint, services.FailureHint(kind)),
		logging.Duration("step_duration", elapsed),
		logging.Alert("step_failure"),
		logging.Error(stepErr),
	)
	m.transition(ctx, logger, item.ID, item.State, lifecycle.FailedEvent(task.Step), func(candidate *queue.Item) error {
		candidate.LastError = &lifecycle.Failure{Step: task.Step, Kind: kind, Message: message}
		return nil
	}, task.RequestID)
}

// recoverStep fails an item whose step panicked, from whichever processing
// state it reached.
func (m *Manager) recoverStep(ctx context.Context, task dispatch.Task, perr *dispatch.PanicError) {
	ctx = stepContext(context.WithoutCancel(ctx), task)
	logger := logging.WithContext(ctx, m.logger)
	m.setLastError(perr)
	logging.ErrorWithContext(logger, "step panicked", "step_panic",
		logging.String(logging.FieldErrorKind, string(services.KindInternal)),
		logging.String("stack", string(perr.Stack)),
		logging.Alert("step_panic"),
		logging.Error(perr),
	)
	item, err := m.store.Get(ctx, task.ItemID)
	if err != nil {
		logger.Error("failed to load item after panic", logging.Error(err))
		return
	}
	step, ok := lifecycle.StepOf(item.State)
	if !ok {
		logger.Warn("item not in a processing state after panic; left as is", logging.String("state", string(item.State)))
		return
	}
	m.transition(ctx, logger, item.ID, item.State, lifecycle.FailedEvent(step), func(candidate *queue.Item) error {
		candidate.LastError = &lifecycle.Failure{Step: step, Kind: services.KindInternal, Message: perr.Error()}
		return nil
	}, task.RequestID)
}

// transition applies one conditional update. A state conflict means another
// actor already moved the item; it is logged and reported as ok=false.
func (m *Manager) transition(ctx context.Context, logger *slog.Logger, id int64, expected lifecycle.State, ev lifecycle.Event, mutate func(*queue.Item) error, requestID string) (*queue.Item, bool) {
	updated, err := m.store.UpdateIf(ctx, id, expected, ev, mutate)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrStateConflict):
			logger.Info("transition skipped; item changed concurrently",
				logging.String("event", string(ev)),
				logging.String("expected_state", string(expected)),
				logging.String(logging.FieldEventType, "transition_conflict"),
			)
		case errors.Is(err, services.ErrNotFound):
			logger.Debug("item removed during step", logging.String("event", string(ev)))
		case errors.Is(err, context.Canceled):
			logger.Debug("transition abandoned by shutdown", logging.String("event", string(ev)))
		default:
			m.setLastError(err)
			logger.Error("failed to persist transition",
				logging.String("event", string(ev)),
				logging.String(logging.FieldEventType, "transition_persist_failed"),
				logging.Error(err),
			)
		}
		return nil, false
	}
	m.afterTransition(ctx, updated, expected, ev, requestID)
	return updated, true
}

// lateResult discards an answer that arrived after the call's context ended.
func lateResult(callCtx context.Context, name string) error {
	err := callCtx.Err()
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return &services.GatewayError{Gateway: name, Kind: services.KindTimeout, Message: "response arrived after the step timeout", Err: err}
	default:
		return err
	}
}

func malformed(name, message string) error {
	return &services.GatewayError{Gateway: name, Kind: services.KindMalformedResponse, Message: message}
}

func failureMessage(err error) string {
	var gwErr *services.GatewayError
	if errors.As(err, &gwErr) {
		return strings.TrimSpace(gwErr.Error())
	}
	if err == nil {
		return "step failed"
	}
	return strings.TrimSpace(err.Error())
}
