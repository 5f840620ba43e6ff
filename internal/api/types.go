package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Item describes a video item in a transport-friendly format.
type Item struct {
	ID            int64      `json:"id"`
	SourceURL     string     `json:"sourceUrl"`
	State         string     `json:"state"`
	Transcript    string     `json:"transcript,omitempty"`
	ResearchNotes string     `json:"researchNotes,omitempty"`
	Citations     []Citation `json:"citations,omitempty"`
	DraftTweets   []string   `json:"draftTweets,omitempty"`
	LastError     *Failure   `json:"lastError,omitempty"`
	CreatedAt     string     `json:"createdAt,omitempty"`
	UpdatedAt     string     `json:"updatedAt,omitempty"`
}

// Citation is one research source.
type Citation struct {
	Source  string `json:"source"`
	Excerpt string `json:"excerpt,omitempty"`
}

// Failure explains why an item is in the failed state.
type Failure struct {
	Step    string `json:"step"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Hint    string `json:"hint,omitempty"`
	At      string `json:"at,omitempty"`
}

// Transition is one entry of an item's history.
type Transition struct {
	Event         string `json:"event"`
	PreviousState string `json:"previousState,omitempty"`
	NextState     string `json:"nextState"`
	Note          string `json:"note,omitempty"`
	At            string `json:"at"`
}

// WorkflowStatus summarizes workflow execution state.
type WorkflowStatus struct {
	Running       bool              `json:"running"`
	Counts        map[string]int    `json:"counts"`
	LastError     string            `json:"lastError,omitempty"`
	LastItem      *Item             `json:"lastItem,omitempty"`
	QueueDepth    int               `json:"queueDepth"`
	QueueCapacity int               `json:"queueCapacity"`
	Gateways      map[string]string `json:"gateways"`
}

// CheckResult mirrors one preflight check.
type CheckResult struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool           `json:"running"`
	PID          int            `json:"pid"`
	DatabasePath string         `json:"databasePath"`
	LockFilePath string         `json:"lockFilePath"`
	Workflow     WorkflowStatus `json:"workflow"`
	Checks       []CheckResult  `json:"checks"`
}

// IngestRequest submits a new video link.
type IngestRequest struct {
	URL string `json:"url"`
}

// IngestResponse returns the id assigned to a new item.
type IngestResponse struct {
	ID int64 `json:"id"`
}

// ItemListResponse wraps a collection of items.
type ItemListResponse struct {
	Items []Item `json:"items"`
}

// ItemResponse wraps a single item.
type ItemResponse struct {
	Item Item `json:"item"`
}

// HistoryResponse wraps an item's transitions, oldest first.
type HistoryResponse struct {
	Events []Transition `json:"events"`
}

// RemoveResponse confirms a delete.
type RemoveResponse struct {
	Removed bool `json:"removed"`
}

// GatewaysResponse lists the gateway base URLs in effect.
type GatewaysResponse struct {
	Gateways map[string]string `json:"gateways"`
}

// GatewayUpdateRequest changes one gateway's base URL. An empty URL restores
// the configured default.
type GatewayUpdateRequest struct {
	URL string `json:"url"`
}

// LogEvent is one structured log line served by /api/logs.
type LogEvent struct {
	Sequence      uint64            `json:"seq"`
	Timestamp     string            `json:"ts"`
	Level         string            `json:"level"`
	Message       string            `json:"msg"`
	Component     string            `json:"component,omitempty"`
	Step          string            `json:"step,omitempty"`
	ItemID        int64             `json:"itemId,omitempty"`
	CorrelationID string            `json:"correlationId,omitempty"`
	EventType     string            `json:"eventType,omitempty"`
	Fields        map[string]string `json:"fields,omitempty"`
}

// LogStreamResponse carries a page of log events and the cursor to resume from.
type LogStreamResponse struct {
	Events []LogEvent `json:"events"`
	Next   uint64     `json:"next"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}
