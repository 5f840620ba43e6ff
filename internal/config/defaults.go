package config

const (
	defaultConfigPath           = "~/.config/clipdraft/config.toml"
	defaultDataDir              = "~/.local/share/clipdraft"
	defaultLogDir               = "~/.local/share/clipdraft/logs"
	defaultAPIBind              = "127.0.0.1:7490"
	defaultTranscriptionTimeout = 1200
	defaultResearchProvider     = ResearchProviderService
	defaultResearchTimeout      = 300
	defaultPerplexityBaseURL    = "https://api.perplexity.ai/chat/completions"
	defaultPerplexityModel      = "sonar-deep-research"
	defaultResearchReferer      = "https://github.com/clipdraft/clipdraft"
	defaultResearchTitle        = "clipdraft research"
	defaultDispatchWorkers      = 4
	defaultDispatchQueueSize    = 64
	defaultTokenBackend         = TokenBackendMemory
	defaultTokenTTLSeconds      = 1800
	defaultSweepIntervalSeconds = 30
	tokenTTLMarginSeconds       = 60
	defaultRedisStream          = "clipdraft:transitions"
	defaultRedisStreamMaxLen    = 10000
	defaultRedisKeyPrefix       = "clipdraft"
	defaultNotifyRequestTimeout = 10
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
)

// Research providers.
const (
	ResearchProviderService    = "service"
	ResearchProviderPerplexity = "perplexity"
)

// Execution token backends.
const (
	TokenBackendMemory = "memory"
	TokenBackendRedis  = "redis"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Transcription: Transcription{
			TimeoutSeconds: defaultTranscriptionTimeout,
		},
		Research: Research{
			Provider:       defaultResearchProvider,
			Referer:        defaultResearchReferer,
			Title:          defaultResearchTitle,
			TimeoutSeconds: defaultResearchTimeout,
		},
		Dispatch: Dispatch{
			Workers:         defaultDispatchWorkers,
			QueueSize:       defaultDispatchQueueSize,
			TokenBackend:    defaultTokenBackend,
			TokenTTLSeconds: defaultTokenTTLSeconds,

			SweepIntervalSeconds: defaultSweepIntervalSeconds,
		},
		Redis: Redis{
			Stream:       defaultRedisStream,
			StreamMaxLen: defaultRedisStreamMaxLen,
			KeyPrefix:    defaultRedisKeyPrefix,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			Drafted:        true,
			Failures:       true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
