package api

import (
	"context"
	"fmt"

	"clipdraft/internal/lifecycle"
	"clipdraft/internal/queue"
	"clipdraft/internal/services"
)

// ItemReader abstracts the read-side item operations needed for API queries.
type ItemReader interface {
	List(ctx context.Context, states ...lifecycle.State) ([]*queue.Item, error)
	GetStatus(ctx context.Context, id int64) (*queue.Item, error)
	History(ctx context.Context, id int64) ([]queue.Transition, error)
}

// ItemService exposes read-only item operations returning API DTOs.
type ItemService struct {
	reader ItemReader
}

// NewItemService constructs an ItemService around the provided reader.
func NewItemService(reader ItemReader) *ItemService {
	if reader == nil {
		return nil
	}
	return &ItemService{reader: reader}
}

// List returns items filtered by state names. Unknown names are a validation error.
func (s *ItemService) List(ctx context.Context, stateNames ...string) ([]Item, error) {
	if s == nil || s.reader == nil {
		return []Item{}, nil
	}
	states := make([]lifecycle.State, 0, len(stateNames))
	for _, name := range stateNames {
		state, err := lifecycle.ParseState(name)
		if err != nil {
			return nil, err
		}
		states = append(states, state)
	}
	items, err := s.reader.List(ctx, states...)
	if err != nil {
		return nil, err
	}
	return FromQueueItems(items), nil
}

// Describe fetches a single item.
func (s *ItemService) Describe(ctx context.Context, id int64) (Item, error) {
	if s == nil || s.reader == nil {
		return Item{}, fmt.Errorf("%w: item %d", services.ErrNotFound, id)
	}
	item, err := s.reader.GetStatus(ctx, id)
	if err != nil {
		return Item{}, err
	}
	return FromQueueItem(item), nil
}

// History fetches an item's transitions, oldest first.
func (s *ItemService) History(ctx context.Context, id int64) ([]Transition, error) {
	if s == nil || s.reader == nil {
		return nil, fmt.Errorf("%w: item %d", services.ErrNotFound, id)
	}
	if _, err := s.reader.GetStatus(ctx, id); err != nil {
		return nil, err
	}
	transitions, err := s.reader.History(ctx, id)
	if err != nil {
		return nil, err
	}
	return FromTransitions(transitions), nil
}
