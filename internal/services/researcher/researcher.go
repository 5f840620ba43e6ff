package researcher

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"clipdraft/internal/config"
	"clipdraft/internal/services"
	"clipdraft/internal/services/gateway"
	"clipdraft/internal/services/llm"
)

// Citation is one source backing the research notes.
type Citation struct {
	Source  string `json:"source"`
	Excerpt string `json:"excerpt"`
}

// Result is a validated research answer.
type Result struct {
	Notes       string
	Citations   []Citation
	DraftTweets []string
}

// Researcher produces research output for a transcript.
type Researcher interface {
	Research(ctx context.Context, transcript string) (Result, error)
}

// New builds the provider selected by cfg.Research.Provider.
func New(cfg *config.Config, endpoints *gateway.Endpoints, httpClient *http.Client) (Researcher, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: research: config required", services.ErrConfiguration)
	}
	switch cfg.Research.Provider {
	case config.ResearchProviderService, "":
		opts := []gateway.Option{gateway.WithHeader("Authorization", bearer(cfg.Research.APIKey))}
		if httpClient != nil {
			opts = append(opts, gateway.WithHTTPClient(httpClient))
		}
		return NewService(endpoints, opts...), nil
	case config.ResearchProviderPerplexity:
		var opts []llm.Option
		if httpClient != nil {
			opts = append(opts, llm.WithHTTPClient(httpClient))
		}
		client := llm.NewClient(llm.Config{
			Gateway: gateway.Research,
			APIKey:  cfg.Research.APIKey,
			Model:   cfg.Research.Model,
			Referer: cfg.Research.Referer,
			Title:   cfg.Research.Title,
		}, opts...)
		return NewPerplexity(endpoints, client), nil
	default:
		return nil, fmt.Errorf("%w: unknown research provider %q", services.ErrConfiguration, cfg.Research.Provider)
	}
}

func bearer(key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return ""
	}
	return "Bearer " + key
}

// validate trims the result and rejects answers the pipeline cannot store.
func validate(result Result) (Result, error) {
	out := Result{Notes: strings.TrimSpace(result.Notes)}
	if out.Notes == "" {
		return Result{}, fmt.Errorf("research notes are empty")
	}
	for _, draft := range result.DraftTweets {
		if trimmed := strings.TrimSpace(draft); trimmed != "" {
			out.DraftTweets = append(out.DraftTweets, trimmed)
		}
	}
	if len(out.DraftTweets) == 0 {
		return Result{}, fmt.Errorf("no tweet drafts returned")
	}
	out.Citations = make([]Citation, 0, len(result.Citations))
	for i, citation := range result.Citations {
		source := strings.TrimSpace(citation.Source)
		if source == "" {
			return Result{}, fmt.Errorf("citation %d has no source", i)
		}
		out.Citations = append(out.Citations, Citation{Source: source, Excerpt: strings.TrimSpace(citation.Excerpt)})
	}
	return out, nil
}
