package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"clipdraft/internal/config"
	"clipdraft/internal/dispatch"
	"clipdraft/internal/events"
	"clipdraft/internal/logging"
	"clipdraft/internal/notifications"
	"clipdraft/internal/queue"
	"clipdraft/internal/services/gateway"
	"clipdraft/internal/services/researcher"
	"clipdraft/internal/services/transcriber"
)

// Transcriber turns a video link into a transcript.
type Transcriber interface {
	Transcribe(ctx context.Context, sourceURL string) (string, error)
}

// Dependencies are the collaborators a Manager needs. Nil fields fall back to
// the defaults built from config.
type Dependencies struct {
	Endpoints   *gateway.Endpoints
	Transcriber Transcriber
	Researcher  researcher.Researcher
	Notifier    notifications.Service
	Publisher   events.Publisher
	Tokens      dispatch.TokenStore
}

// Manager coordinates intake and step execution.
type Manager struct {
	cfg         *config.Config
	store       *queue.Store
	logger      *slog.Logger
	endpoints   *gateway.Endpoints
	transcriber Transcriber
	researcher  researcher.Researcher
	notifier    notifications.Service
	publisher   events.Publisher
	tokens      dispatch.TokenStore
	dispatcher  *dispatch.Dispatcher

	transcriptionTimeout time.Duration
	researchTimeout      time.Duration
	sweepInterval        time.Duration

	mu          sync.RWMutex
	running     bool
	lastErr     error
	lastItem    *queue.Item
	sweepCancel context.CancelFunc
	sweepWG     sync.WaitGroup
}

// ManagerOption configures optional Manager behavior.
type ManagerOption func(*Manager)

// WithStepTimeouts overrides the configured gateway call timeouts.
func WithStepTimeouts(transcription, research time.Duration) ManagerOption {
	return func(m *Manager) {
		if transcription > 0 {
			m.transcriptionTimeout = transcription
		}
		if research > 0 {
			m.researchTimeout = research
		}
	}
}

// WithSweepInterval overrides how often resting items that are not queued are
// handed back to the workers.
func WithSweepInterval(interval time.Duration) ManagerOption {
	return func(m *Manager) {
		if interval > 0 {
			m.sweepInterval = interval
		}
	}
}

// NewManager constructs a workflow manager.
func NewManager(cfg *config.Config, store *queue.Store, logger *slog.Logger, deps Dependencies, opts ...ManagerOption) (*Manager, error) {
	if cfg == nil || store == nil {
		return nil, fmt.Errorf("workflow manager requires config and store")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	endpoints := deps.Endpoints
	if endpoints == nil {
		endpoints = gateway.NewEndpoints(map[string]string{
			gateway.Transcription: cfg.Transcription.BaseURL,
			gateway.Research:      cfg.Research.BaseURL,
		})
	}
	m := &Manager{
		cfg:                  cfg,
		store:                store,
		logger:               logging.NewComponentLogger(logger, "workflow"),
		endpoints:            endpoints,
		transcriber:          deps.Transcriber,
		researcher:           deps.Researcher,
		notifier:             deps.Notifier,
		publisher:            deps.Publisher,
		tokens:               deps.Tokens,
		transcriptionTimeout: cfg.TranscriptionTimeout(),
		researchTimeout:      cfg.ResearchTimeout(),
		sweepInterval:        cfg.SweepInterval(),
	}
	if m.sweepInterval <= 0 {
		m.sweepInterval = 30 * time.Second
	}
	if m.transcriber == nil {
		m.transcriber = transcriber.New(endpoints)
	}
	if m.researcher == nil {
		r, err := researcher.New(cfg, endpoints, nil)
		if err != nil {
			return nil, err
		}
		m.researcher = r
	}
	if m.notifier == nil {
		m.notifier = notifications.NewService(cfg)
	}
	if m.publisher == nil {
		m.publisher = events.Noop{}
	}
	if m.tokens == nil {
		m.tokens = dispatch.NewMemoryTokens()
	}
	for _, opt := range opts {
		opt(m)
	}
	m.dispatcher = dispatch.New(dispatch.Options{
		Workers:   cfg.Dispatch.Workers,
		QueueSize: cfg.Dispatch.QueueSize,
		Tokens:    m.tokens,
		Handler:   m.runStep,
		OnPanic:   m.recoverStep,
		Logger:    logging.NewComponentLogger(logger, "dispatch"),
	})
	return m, nil
}

// Endpoints exposes the runtime gateway registry.
func (m *Manager) Endpoints() *gateway.Endpoints {
	return m.endpoints
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func (m *Manager) setLastItem(item *queue.Item) {
	m.mu.Lock()
	m.lastItem = item.Clone()
	m.mu.Unlock()
}
