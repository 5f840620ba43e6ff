package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"clipdraft/internal/dispatch"
	"clipdraft/internal/lifecycle"
	"clipdraft/internal/logging"
	"clipdraft/internal/queue"
	"clipdraft/internal/services"
)

const interruptedMessage = "interrupted before completion"

// Start restores runtime gateway URLs, starts the workers, recovers items a
// previous run left behind and begins the periodic sweep of resting items.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	m.running = true
	m.mu.Unlock()

	if err := m.loadGatewaySettings(ctx); err != nil {
		m.markStopped()
		return fmt.Errorf("load gateway settings: %w", err)
	}
	if err := m.dispatcher.Start(ctx); err != nil {
		m.markStopped()
		return err
	}
	if err := m.recover(ctx); err != nil {
		m.dispatcher.Stop()
		m.markStopped()
		return fmt.Errorf("recover items: %w", err)
	}
	sweepCtx, cancel := context.WithCancel(ctx)
	m.mu.Lock()
	m.sweepCancel = cancel
	m.mu.Unlock()
	m.sweepWG.Add(1)
	go m.sweepLoop(sweepCtx)

	m.logger.Info("workflow started",
		logging.Int("workers", m.cfg.Dispatch.Workers),
		logging.Int("queue_size", m.dispatcher.Capacity()),
		logging.Duration("sweep_interval", m.sweepInterval),
		logging.String(logging.FieldEventType, "workflow_started"),
	)
	return nil
}

// Stop cancels in-flight steps and waits for the workers. Items whose step
// was interrupted are failed on the next Start.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	cancel := m.sweepCancel
	m.sweepCancel = nil
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	m.sweepWG.Wait()
	m.dispatcher.Stop()
}

func (m *Manager) markStopped() {
	m.mu.Lock()
	m.running = false
	m.mu.Unlock()
}

func (m *Manager) recover(ctx context.Context) error {
	stuck, err := m.store.List(ctx, lifecycle.Transcribing, lifecycle.Researching)
	if err != nil {
		return err
	}
	for _, item := range stuck {
		if err := m.failInterrupted(ctx, item); err != nil {
			return err
		}
	}

	requeued, err := m.requeueResting(ctx)
	if err != nil {
		return err
	}
	if len(stuck) > 0 || requeued > 0 {
		m.logger.Info("startup recovery complete",
			logging.Int("interrupted", len(stuck)),
			logging.Int("requeued", requeued),
			logging.String(logging.FieldEventType, "startup_recovery"),
		)
	}
	return nil
}

func (m *Manager) sweepLoop(ctx context.Context) {
	defer m.sweepWG.Done()
	ticker := time.NewTicker(m.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			requeued, err := m.requeueResting(ctx)
			if err != nil {
				if ctx.Err() == nil {
					m.setLastError(err)
					m.logger.Warn("resting item sweep failed",
						logging.String(logging.FieldEventType, "sweep_failed"),
						logging.String(logging.FieldImpact, "items waiting for the queue are retried on the next sweep"),
						logging.Error(err),
					)
				}
				continue
			}
			if requeued > 0 {
				m.logger.Info("resting items requeued",
					logging.Int("requeued", requeued),
					logging.String(logging.FieldEventType, "sweep_requeued"),
				)
			}
		}
	}
}

// requeueResting submits Pending and Transcribed items that are not already
// scheduled, oldest first. It stops quietly at a full queue; the next sweep
// picks up the rest.
func (m *Manager) requeueResting(ctx context.Context) (int, error) {
	resting, err := m.store.List(ctx, lifecycle.Pending, lifecycle.Transcribed)
	if err != nil {
		return 0, err
	}
	requeued := 0
	// List is newest first.
	for i := len(resting) - 1; i >= 0; i-- {
		item := resting[i]
		step, ok := lifecycle.StepFor(item.State)
		if !ok || m.dispatcher.Scheduled(item.ID) {
			continue
		}
		err := m.dispatcher.Submit(dispatch.Task{ItemID: item.ID, Step: step, RequestID: uuid.NewString()})
		switch {
		case err == nil:
			requeued++
		case errors.Is(err, dispatch.ErrAlreadyScheduled):
		case errors.Is(err, dispatch.ErrQueueFull):
			m.logger.Debug("dispatch queue full; sweep deferred",
				logging.Int("waiting", i+1),
				logging.Int("requeued", requeued),
			)
			return requeued, nil
		default:
			return requeued, err
		}
	}
	return requeued, nil
}

// failInterrupted fails an item left in a processing state. An item whose
// token is held elsewhere belongs to another live process and is skipped.
func (m *Manager) failInterrupted(ctx context.Context, item *queue.Item) error {
	token, ok, err := m.tokens.Acquire(ctx, item.ID)
	if err != nil {
		return err
	}
	if !ok {
		m.logger.Info("item running elsewhere; recovery skipped",
			logging.Int64(logging.FieldItemID, item.ID),
			logging.String("state", string(item.State)),
		)
		return nil
	}
	defer func() {
		if err := m.tokens.Release(context.WithoutCancel(ctx), token); err != nil {
			m.logger.Warn("token release failed after recovery", logging.Int64(logging.FieldItemID, item.ID), logging.Error(err))
		}
	}()

	step, _ := lifecycle.StepOf(item.State)
	updated, err := m.store.UpdateIf(ctx, item.ID, item.State, lifecycle.FailedEvent(step), func(candidate *queue.Item) error {
		candidate.LastError = &lifecycle.Failure{Step: step, Kind: services.KindInternal, Message: interruptedMessage}
		return nil
	})
	if err != nil {
		if errors.Is(err, services.ErrStateConflict) || errors.Is(err, services.ErrNotFound) {
			return nil
		}
		return err
	}
	m.afterTransition(ctx, updated, item.State, lifecycle.FailedEvent(step), "")
	return nil
}
