package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"

	"clipdraft/internal/lifecycle"
	"clipdraft/internal/services"
)

// Create inserts a new Pending item for sourceURL and records the submit
// transition.
func (s *Store) Create(ctx context.Context, sourceURL string) (*Item, error) {
	next, err := lifecycle.Next("", lifecycle.EventSubmit, "")
	if err != nil {
		return nil, err
	}
	var id int64
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		timestamp := formatTime(s.now())
		res, err := tx.ExecContext(ctx,
			`INSERT INTO video_items (source_url, state, created_at, updated_at) VALUES (?, ?, ?, ?)`,
			sourceURL, string(next), timestamp, timestamp,
		)
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("last insert id: %w", err)
		}
		return insertTransition(ctx, tx, id, lifecycle.EventSubmit, "", next, "", timestamp)
	})
	if err != nil {
		return nil, fmt.Errorf("insert item: %w", err)
	}
	return s.Get(ctx, id)
}

// Get fetches an item by identifier. Unknown ids wrap services.ErrNotFound.
func (s *Store) Get(ctx context.Context, id int64) (*Item, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+itemColumns+` FROM video_items WHERE id = ?`, id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("item %d: %w", id, services.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return item, nil
}

func getItemTx(ctx context.Context, tx *sql.Tx, id int64) (*Item, error) {
	item, err := scanItem(tx.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM video_items WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("item %d: %w", id, services.ErrNotFound)
	}
	return item, err
}

// List returns items newest first, filtered by state when any are provided.
func (s *Store) List(ctx context.Context, states ...lifecycle.State) ([]*Item, error) {
	ctx = ensureContext(ctx)
	query := `SELECT ` + itemColumns + ` FROM video_items`
	if len(states) > 0 {
		query += ` WHERE state IN (` + makePlaceholders(len(states)) + `)`
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := s.db.QueryContext(ctx, query, stateArgs(states)...)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	return scanItems(rows)
}

// Remove deletes an item and its history. Items currently in one of the busy
// states are left untouched and reported as a state conflict.
func (s *Store) Remove(ctx context.Context, id int64, busy ...lifecycle.State) error {
	ctx = ensureContext(ctx)
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		current, err := getItemTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if slices.Contains(busy, current.State) {
			return fmt.Errorf("%w: item %d is %s", services.ErrStateConflict, id, current.State)
		}
		_, err = tx.ExecContext(ctx, `DELETE FROM video_items WHERE id = ?`, id)
		return err
	})
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	return nil
}

// Stats returns item counts per state.
func (s *Store) Stats(ctx context.Context) (map[lifecycle.State]int, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT state, COUNT(1) FROM video_items GROUP BY state`)
	if err != nil {
		return nil, fmt.Errorf("item stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[lifecycle.State]int)
	for rows.Next() {
		var state string
		var count int
		if err := rows.Scan(&state, &count); err != nil {
			return nil, err
		}
		stats[lifecycle.State(state)] = count
	}
	return stats, rows.Err()
}
