package preflight

import (
	"context"

	"github.com/redis/go-redis/v9"

	"clipdraft/internal/config"
	"clipdraft/internal/services/gateway"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks. gateways holds the base URLs
// currently in effect, which may differ from cfg after a runtime override. rdb
// is nil when Redis is not configured.
func RunAll(ctx context.Context, cfg *config.Config, gateways map[string]string, rdb redis.UniversalClient) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
	}

	results = append(results,
		CheckGateway(ctx, "Transcription gateway", gateways[gateway.Transcription]),
		CheckGateway(ctx, "Research gateway", gateways[gateway.Research]),
		CheckResearchCredentials(cfg),
	)

	if cfg.RedisEnabled() {
		results = append(results, CheckRedis(ctx, rdb))
	}
	return results
}
