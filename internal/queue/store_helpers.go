package queue

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"clipdraft/internal/lifecycle"
	"clipdraft/internal/services"
)

const itemColumns = "id, source_url, state, transcript, research_notes, citations_json, draft_tweets_json, failure_step, failure_kind, failure_message, failed_at, created_at, updated_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(scanner rowScanner) (*Item, error) {
	var (
		id             int64
		sourceURL      string
		state          string
		transcript     sql.NullString
		researchNotes  sql.NullString
		citationsJSON  sql.NullString
		draftsJSON     sql.NullString
		failureStep    sql.NullString
		failureKind    sql.NullString
		failureMessage sql.NullString
		failedAtRaw    sql.NullString
		createdRaw     string
		updatedRaw     string
	)
	if err := scanner.Scan(
		&id,
		&sourceURL,
		&state,
		&transcript,
		&researchNotes,
		&citationsJSON,
		&draftsJSON,
		&failureStep,
		&failureKind,
		&failureMessage,
		&failedAtRaw,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	item := &Item{
		ID:            id,
		SourceURL:     sourceURL,
		State:         lifecycle.State(state),
		Transcript:    transcript.String,
		ResearchNotes: researchNotes.String,
	}
	if citationsJSON.Valid && citationsJSON.String != "" {
		if err := json.Unmarshal([]byte(citationsJSON.String), &item.Citations); err != nil {
			return nil, fmt.Errorf("decode citations for item %d: %w", id, err)
		}
	}
	if draftsJSON.Valid && draftsJSON.String != "" {
		if err := json.Unmarshal([]byte(draftsJSON.String), &item.DraftTweets); err != nil {
			return nil, fmt.Errorf("decode drafts for item %d: %w", id, err)
		}
	}
	if failureStep.Valid && failureStep.String != "" {
		failure := &lifecycle.Failure{
			Step:    lifecycle.Step(failureStep.String),
			Kind:    services.ParseKind(failureKind.String),
			Message: failureMessage.String,
		}
		if at, err := parseTimeString(failedAtRaw.String); err == nil {
			failure.At = at
		}
		item.LastError = failure
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		item.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		item.UpdatedAt = updated
	}
	return item, nil
}

func scanItems(rows *sql.Rows) ([]*Item, error) {
	defer rows.Close()
	var items []*Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableJSON(value any, empty bool) (any, error) {
	if empty {
		return nil, nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func formatTime(value time.Time) string {
	return value.UTC().Format(time.RFC3339Nano)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}

func stateArgs(states []lifecycle.State) []any {
	args := make([]any, len(states))
	for i, state := range states {
		args[i] = string(state)
	}
	return args
}
