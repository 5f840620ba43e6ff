package queue

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"clipdraft/internal/lifecycle"
	"clipdraft/internal/services"
)

// UpdateIf applies ev to item id only while it is still in expected. mutate
// receives a copy of the current item and may set step outputs or the failure
// record; the resulting state always comes from the lifecycle table. The
// write, its history row, and the state check commit atomically.
//
// A state mismatch or an event that is off the graph returns an error wrapping
// services.ErrStateConflict. An unknown id wraps services.ErrNotFound.
func (s *Store) UpdateIf(ctx context.Context, id int64, expected lifecycle.State, ev lifecycle.Event, mutate func(*Item) error) (*Item, error) {
	ctx = ensureContext(ctx)
	var updated *Item
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		current, err := getItemTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if current.State != expected {
			return fmt.Errorf("%w: item %d is %s, expected %s", services.ErrStateConflict, id, current.State, expected)
		}

		var failedStep lifecycle.Step
		if ev == lifecycle.EventRetry {
			failedStep = lifecycle.RetryStep(lifecycle.ResumeState(current.LastError, current.Transcript))
		}
		next, err := lifecycle.Next(expected, ev, failedStep)
		if err != nil {
			return err
		}

		candidate := current.Clone()
		if mutate != nil {
			if err := mutate(candidate); err != nil {
				return err
			}
		}
		candidate.ID = current.ID
		candidate.SourceURL = current.SourceURL
		candidate.CreatedAt = current.CreatedAt
		candidate.State = next
		if err := s.finishCandidate(candidate, current, expected, ev); err != nil {
			return err
		}

		if err := writeItem(ctx, tx, candidate, expected); err != nil {
			return err
		}
		if err := insertTransition(ctx, tx, id, ev, expected, next, transitionNote(candidate, ev), formatTime(candidate.UpdatedAt)); err != nil {
			return err
		}
		updated = candidate
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("update item: %w", err)
	}
	return updated, nil
}

func (s *Store) finishCandidate(candidate, current *Item, expected lifecycle.State, ev lifecycle.Event) error {
	now := s.now()
	if now.Before(current.UpdatedAt) {
		now = current.UpdatedAt
	}
	candidate.UpdatedAt = now

	switch {
	case ev == lifecycle.EventRetry:
		candidate.LastError = nil
		if candidate.State == lifecycle.Pending {
			candidate.Transcript = ""
		}
	case candidate.State == lifecycle.Failed:
		if candidate.LastError == nil {
			candidate.LastError = &lifecycle.Failure{Kind: services.KindInternal, Message: "step failed"}
		}
		if step, ok := lifecycle.StepOf(expected); ok {
			candidate.LastError.Step = step
		}
		if candidate.LastError.Kind == "" {
			candidate.LastError.Kind = services.KindInternal
		}
		candidate.LastError.At = now
	case ev == lifecycle.EventTranscriptionSucceeded:
		if strings.TrimSpace(candidate.Transcript) == "" {
			return fmt.Errorf("%w: transcript must not be empty", services.ErrValidation)
		}
	case ev == lifecycle.EventResearchSucceeded:
		if strings.TrimSpace(candidate.ResearchNotes) == "" || len(candidate.DraftTweets) == 0 {
			return fmt.Errorf("%w: research notes and drafts are required", services.ErrValidation)
		}
	}
	return nil
}

func writeItem(ctx context.Context, tx *sql.Tx, item *Item, expected lifecycle.State) error {
	citations, err := nullableJSON(item.Citations, len(item.Citations) == 0)
	if err != nil {
		return fmt.Errorf("encode citations: %w", err)
	}
	drafts, err := nullableJSON(item.DraftTweets, len(item.DraftTweets) == 0)
	if err != nil {
		return fmt.Errorf("encode drafts: %w", err)
	}
	var failureStep, failureKind, failureMessage, failedAt any
	if item.LastError != nil {
		failureStep = string(item.LastError.Step)
		failureKind = string(item.LastError.Kind)
		failureMessage = item.LastError.Message
		failedAt = formatTime(item.LastError.At)
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE video_items
         SET state = ?, transcript = ?, research_notes = ?, citations_json = ?, draft_tweets_json = ?,
             failure_step = ?, failure_kind = ?, failure_message = ?, failed_at = ?, updated_at = ?
         WHERE id = ? AND state = ?`,
		string(item.State),
		nullableString(item.Transcript),
		nullableString(item.ResearchNotes),
		citations,
		drafts,
		failureStep,
		failureKind,
		failureMessage,
		failedAt,
		formatTime(item.UpdatedAt),
		item.ID,
		string(expected),
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: item %d left state %s", services.ErrStateConflict, item.ID, expected)
	}
	return nil
}

func transitionNote(item *Item, ev lifecycle.Event) string {
	switch {
	case ev == lifecycle.EventRetry:
		return "resume at " + string(item.State)
	case item.State == lifecycle.Failed && item.LastError != nil:
		return fmt.Sprintf("%s: %s", item.LastError.Kind, item.LastError.Message)
	default:
		return ""
	}
}

func insertTransition(ctx context.Context, tx *sql.Tx, itemID int64, ev lifecycle.Event, previous, next lifecycle.State, note, timestamp string) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO item_events (item_id, event, previous_state, next_state, note, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		itemID, string(ev), nullableString(string(previous)), string(next), nullableString(note), timestamp,
	)
	if err != nil {
		return fmt.Errorf("record transition: %w", err)
	}
	return nil
}

// Events returns the transition history of an item, oldest first.
func (s *Store) Events(ctx context.Context, id int64) ([]Transition, error) {
	ctx = ensureContext(ctx)
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, item_id, event, previous_state, next_state, note, created_at
         FROM item_events WHERE item_id = ? ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("list transitions: %w", err)
	}
	defer rows.Close()

	var out []Transition
	for rows.Next() {
		var (
			tr         Transition
			event      string
			previous   sql.NullString
			next       string
			note       sql.NullString
			createdRaw string
		)
		if err := rows.Scan(&tr.ID, &tr.ItemID, &event, &previous, &next, &note, &createdRaw); err != nil {
			return nil, err
		}
		tr.Event = lifecycle.Event(event)
		tr.PreviousState = lifecycle.State(previous.String)
		tr.NextState = lifecycle.State(next)
		tr.Note = note.String
		if created, err := parseTimeString(createdRaw); err == nil {
			tr.CreatedAt = created
		}
		out = append(out, tr)
	}
	return out, rows.Err()
}
