package testsupport

import (
	"path/filepath"
	"testing"

	"clipdraft/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Dispatch.Workers = 2
	cfgVal.Dispatch.QueueSize = 16

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithTranscriptionURL points the transcription gateway at baseURL.
func WithTranscriptionURL(baseURL string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Transcription.BaseURL = baseURL
	}
}

// WithResearchURL points the research gateway at baseURL.
func WithResearchURL(baseURL string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Research.BaseURL = baseURL
	}
}

// WithRedis enables Redis-backed tokens and the transition stream.
func WithRedis(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Redis.URL = url
		b.cfg.Dispatch.TokenBackend = config.TokenBackendRedis
	}
}

// WithAPIToken requires bearer authentication on the API.
func WithAPIToken(token string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Paths.APIToken = token
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
