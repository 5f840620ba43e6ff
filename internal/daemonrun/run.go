// Package daemonrun assembles the clipdraft daemon process from configuration.
package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/redis/go-redis/v9"

	"clipdraft/internal/config"
	"clipdraft/internal/daemon"
	"clipdraft/internal/dispatch"
	"clipdraft/internal/events"
	"clipdraft/internal/logging"
	"clipdraft/internal/queue"
	"clipdraft/internal/redisconn"
	"clipdraft/internal/workflow"
)

const logStreamCapacity = 4096

// Options configures daemon process runtime behavior.
type Options struct {
	// LogLevel overrides logging.level when set.
	LogLevel string
}

// Run starts the clipdraft daemon and blocks until ctx is cancelled or the
// process receives SIGINT/SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	if opts.LogLevel != "" {
		cfg.Logging.Level = opts.LogLevel
	}
	logHub := logging.NewStreamHub(logStreamCapacity)
	logger, err := logging.NewFromConfig(cfg, logHub)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logStartupSnapshot(logger, cfg)

	pidPath := cfg.PIDPath()
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	client, err := redisconn.New(cfg)
	if err != nil {
		return err
	}
	// rdb stays a nil interface when Redis is not configured.
	var rdb redis.UniversalClient
	if client != nil {
		rdb = client
		defer client.Close()
		if err := redisconn.Ping(signalCtx, rdb); err != nil {
			logging.WarnWithContext(logger, "redis unreachable at startup", "redis_unreachable",
				logging.String(logging.FieldErrorHint, "check redis.url and that the server is running"),
				logging.String(logging.FieldImpact, "token acquisition fails until redis recovers"),
				logging.Error(err),
			)
		}
	}

	tokens, err := tokenStore(cfg, rdb)
	if err != nil {
		return err
	}
	publisher := transitionFeed(cfg, rdb)

	store, err := queue.Open(cfg)
	if err != nil {
		logger.Error("open item store", logging.Error(err))
		return err
	}

	mgr, err := workflow.NewManager(cfg, store, logger, workflow.Dependencies{
		Tokens:    tokens,
		Publisher: publisher,
	})
	if err != nil {
		store.Close()
		return fmt.Errorf("create workflow manager: %w", err)
	}

	d, err := daemon.New(cfg, store, logger, mgr, logHub, rdb)
	if err != nil {
		store.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		logging.ErrorWithContext(logger, "daemon start failed", "daemon_start_failed",
			logging.String(logging.FieldErrorHint, "check the lock file, api_bind and item database access"),
			logging.Error(err),
		)
		return err
	}

	<-signalCtx.Done()
	logger.Info("clipdraft daemon shutting down")
	return nil
}

func tokenStore(cfg *config.Config, rdb redis.UniversalClient) (dispatch.TokenStore, error) {
	if cfg.Dispatch.TokenBackend != config.TokenBackendRedis {
		return dispatch.NewMemoryTokens(), nil
	}
	if rdb == nil {
		return nil, fmt.Errorf("dispatch.token_backend is redis but redis.url is not set")
	}
	return dispatch.NewRedisTokens(rdb, cfg.Redis.KeyPrefix, cfg.TokenTTL())
}

func transitionFeed(cfg *config.Config, rdb redis.UniversalClient) events.Publisher {
	if rdb == nil || cfg.Redis.Stream == "" {
		return events.Noop{}
	}
	return events.NewRedisStream(rdb, cfg.Redis.Stream, cfg.Redis.StreamMaxLen)
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logStartupSnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	logger.Info("configuration snapshot",
		logging.String(logging.FieldEventType, "config_snapshot"),
		logging.String("data_dir", cfg.Paths.DataDir),
		logging.String("api_bind", cfg.Paths.APIBind),
		logging.Bool("api_token_set", cfg.Paths.APIToken != ""),
		logging.Bool("transcription_url_set", cfg.Transcription.BaseURL != ""),
		logging.String("research_provider", cfg.Research.Provider),
		logging.Bool("research_key_present", cfg.Research.APIKey != ""),
		logging.Int("workers", cfg.Dispatch.Workers),
		logging.Int("queue_size", cfg.Dispatch.QueueSize),
		logging.String("token_backend", cfg.Dispatch.TokenBackend),
		logging.Bool("redis_enabled", cfg.RedisEnabled()),
		logging.Bool("ntfy_enabled", cfg.Notifications.NtfyTopic != ""),
	)
}
