package workflow

import (
	"context"

	"clipdraft/internal/lifecycle"
	"clipdraft/internal/logging"
	"clipdraft/internal/queue"
)

// StatusSummary represents lightweight workflow diagnostics.
type StatusSummary struct {
	Running       bool
	LastError     string
	LastItem      *queue.Item
	Counts        map[lifecycle.State]int
	QueueDepth    int
	QueueCapacity int
	Gateways      map[string]string
}

// Status returns the latest workflow information.
func (m *Manager) Status(ctx context.Context) StatusSummary {
	m.mu.RLock()
	running := m.running
	lastErr := m.lastErr
	lastItem := m.lastItem.Clone()
	m.mu.RUnlock()

	stats, err := m.store.Stats(ctx)
	if err != nil {
		m.logger.Warn("failed to read item stats", logging.Error(err))
	}
	counts := make(map[lifecycle.State]int, len(lifecycle.AllStates()))
	for _, state := range lifecycle.AllStates() {
		counts[state] = stats[state]
	}

	summary := StatusSummary{
		Running:       running,
		LastItem:      lastItem,
		Counts:        counts,
		QueueDepth:    m.dispatcher.Depth(),
		QueueCapacity: m.dispatcher.Capacity(),
		Gateways:      m.endpoints.Snapshot(),
	}
	if lastErr != nil {
		summary.LastError = lastErr.Error()
	}
	return summary
}
