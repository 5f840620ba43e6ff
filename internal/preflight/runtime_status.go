package preflight

import (
	"context"

	"github.com/redis/go-redis/v9"

	"clipdraft/internal/config"
	"clipdraft/internal/redisconn"
)

// CheckResearchCredentials reports whether the selected research provider
// has what it needs to authenticate.
func CheckResearchCredentials(cfg *config.Config) Result {
	const name = "Research credentials"

	if cfg == nil {
		return Result{Name: name, Detail: "Unknown"}
	}
	switch cfg.Research.Provider {
	case config.ResearchProviderPerplexity:
		if cfg.Research.APIKey == "" {
			return Result{Name: name, Detail: "Missing API key (set research.api_key or PERPLEXITY_API_KEY)"}
		}
		return Result{Name: name, Passed: true, Detail: "Perplexity key present, model " + cfg.Research.Model}
	default:
		return Result{Name: name, Passed: true, Detail: "Not required for provider " + cfg.Research.Provider}
	}
}

// CheckRedis pings the shared Redis instance.
func CheckRedis(ctx context.Context, rdb redis.UniversalClient) Result {
	const name = "Redis"

	if rdb == nil {
		return Result{Name: name, Detail: "Configured but no client"}
	}
	if err := redisconn.Ping(ctx, rdb); err != nil {
		return Result{Name: name, Detail: "ping failed: " + err.Error()}
	}
	return Result{Name: name, Passed: true, Detail: "Reachable"}
}
