package api

import (
	"maps"
	"time"

	"clipdraft/internal/lifecycle"
	"clipdraft/internal/logging"
	"clipdraft/internal/preflight"
	"clipdraft/internal/queue"
	"clipdraft/internal/services"
	"clipdraft/internal/workflow"
)

// FromQueueItem converts a stored item to its API representation.
func FromQueueItem(item *queue.Item) Item {
	if item == nil {
		return Item{}
	}
	dto := Item{
		ID:            item.ID,
		SourceURL:     item.SourceURL,
		State:         string(item.State),
		Transcript:    item.Transcript,
		ResearchNotes: item.ResearchNotes,
		CreatedAt:     formatTime(item.CreatedAt),
		UpdatedAt:     formatTime(item.UpdatedAt),
	}
	if len(item.Citations) > 0 {
		dto.Citations = make([]Citation, 0, len(item.Citations))
		for _, c := range item.Citations {
			dto.Citations = append(dto.Citations, Citation{Source: c.Source, Excerpt: c.Excerpt})
		}
	}
	if len(item.DraftTweets) > 0 {
		dto.DraftTweets = append([]string(nil), item.DraftTweets...)
	}
	if item.LastError != nil {
		dto.LastError = fromFailure(item.LastError)
	}
	return dto
}

// FromQueueItems converts a slice of stored items into API DTOs.
func FromQueueItems(items []*queue.Item) []Item {
	out := make([]Item, 0, len(items))
	for _, item := range items {
		out = append(out, FromQueueItem(item))
	}
	return out
}

func fromFailure(failure *lifecycle.Failure) *Failure {
	return &Failure{
		Step:    string(failure.Step),
		Kind:    string(failure.Kind),
		Message: failure.Message,
		Hint:    services.FailureHint(failure.Kind),
		At:      formatTime(failure.At),
	}
}

// FromTransitions converts an item's history.
func FromTransitions(transitions []queue.Transition) []Transition {
	out := make([]Transition, 0, len(transitions))
	for _, tr := range transitions {
		out = append(out, Transition{
			Event:         string(tr.Event),
			PreviousState: string(tr.PreviousState),
			NextState:     string(tr.NextState),
			Note:          tr.Note,
			At:            formatTime(tr.CreatedAt),
		})
	}
	return out
}

// FromStatusSummary converts workflow diagnostics. Every known state appears in
// Counts, zero or not.
func FromStatusSummary(summary workflow.StatusSummary) WorkflowStatus {
	counts := make(map[string]int, len(lifecycle.AllStates()))
	for _, state := range lifecycle.AllStates() {
		counts[string(state)] = summary.Counts[state]
	}
	status := WorkflowStatus{
		Running:       summary.Running,
		Counts:        counts,
		LastError:     summary.LastError,
		QueueDepth:    summary.QueueDepth,
		QueueCapacity: summary.QueueCapacity,
		Gateways:      maps.Clone(summary.Gateways),
	}
	if summary.LastItem != nil {
		item := FromQueueItem(summary.LastItem)
		status.LastItem = &item
	}
	return status
}

// FromPreflight converts readiness checks.
func FromPreflight(results []preflight.Result) []CheckResult {
	out := make([]CheckResult, 0, len(results))
	for _, r := range results {
		out = append(out, CheckResult{Name: r.Name, Passed: r.Passed, Detail: r.Detail})
	}
	return out
}

// FromLogEvents converts stream hub events.
func FromLogEvents(events []logging.LogEvent) []LogEvent {
	out := make([]LogEvent, 0, len(events))
	for _, evt := range events {
		out = append(out, LogEvent{
			Sequence:      evt.Sequence,
			Timestamp:     formatTime(evt.Timestamp),
			Level:         evt.Level,
			Message:       evt.Message,
			Component:     evt.Component,
			Step:          evt.Step,
			ItemID:        evt.ItemID,
			CorrelationID: evt.CorrelationID,
			EventType:     evt.EventType,
			Fields:        evt.Fields,
		})
	}
	return out
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
