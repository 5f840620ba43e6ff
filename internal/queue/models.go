package queue

import (
	"time"

	"clipdraft/internal/lifecycle"
)

// Citation is one source backing the research notes.
type Citation struct {
	Source  string `json:"source"`
	Excerpt string `json:"excerpt,omitempty"`
}

// Item is a single video link moving through the pipeline.
type Item struct {
	ID            int64
	SourceURL     string
	State         lifecycle.State
	Transcript    string
	ResearchNotes string
	Citations     []Citation
	DraftTweets   []string
	// LastError is overwritten on every failure and cleared by retry.
	LastError *lifecycle.Failure
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Clone returns a deep copy so callers can mutate without aliasing store data.
func (i *Item) Clone() *Item {
	if i == nil {
		return nil
	}
	cp := *i
	if i.Citations != nil {
		cp.Citations = append([]Citation(nil), i.Citations...)
	}
	if i.DraftTweets != nil {
		cp.DraftTweets = append([]string(nil), i.DraftTweets...)
	}
	if i.LastError != nil {
		failure := *i.LastError
		cp.LastError = &failure
	}
	return &cp
}

// Transition is one row of an item's persisted history.
type Transition struct {
	ID            int64
	ItemID        int64
	Event         lifecycle.Event
	PreviousState lifecycle.State
	NextState     lifecycle.State
	Note          string
	CreatedAt     time.Time
}
