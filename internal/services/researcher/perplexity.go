package researcher

import (
	"context"
	"strings"

	"clipdraft/internal/services"
	"clipdraft/internal/services/gateway"
	"clipdraft/internal/services/llm"
)

// Completer is the chat-completion call the Perplexity provider needs.
type Completer interface {
	Complete(ctx context.Context, endpoint, systemPrompt, userPrompt string) (llm.Completion, error)
}

// Perplexity researches through a chat-completion model. The registry's
// research URL is the full completions endpoint.
type Perplexity struct {
	endpoints *gateway.Endpoints
	client    Completer
	errs      *gateway.Client
}

// NewPerplexity constructs the chat-completion provider.
func NewPerplexity(endpoints *gateway.Endpoints, client Completer) *Perplexity {
	return &Perplexity{
		endpoints: endpoints,
		client:    client,
		errs:      gateway.NewClient(gateway.Research),
	}
}

type perplexityAnswer struct {
	ResearchNotes string   `json:"research_notes"`
	TweetDrafts   []string `json:"tweet_drafts"`
}

// Research implements Researcher.
func (p *Perplexity) Research(ctx context.Context, transcript string) (Result, error) {
	completion, err := p.client.Complete(ctx, p.endpoints.Get(gateway.Research), perplexitySystemPrompt, perplexityUserPrefix+transcript)
	if err != nil {
		return Result{}, err
	}
	var answer perplexityAnswer
	if err := llm.DecodeLLMJSON(completion.Content, &answer); err != nil {
		return Result{}, p.errs.Fail(services.KindMalformedResponse, 0, "", "decode research answer", err)
	}
	result, err := validate(Result{
		Notes:       answer.ResearchNotes,
		Citations:   citationsFrom(completion),
		DraftTweets: answer.TweetDrafts,
	})
	if err != nil {
		return Result{}, p.errs.Malformed(err.Error())
	}
	return result, nil
}

// citationsFrom merges search results (which carry titles) with bare
// citation URLs, keeping the first occurrence of each URL.
func citationsFrom(completion llm.Completion) []Citation {
	seen := make(map[string]struct{})
	var out []Citation
	add := func(source, excerpt string) {
		source = strings.TrimSpace(source)
		if source == "" {
			return
		}
		if _, ok := seen[source]; ok {
			return
		}
		seen[source] = struct{}{}
		out = append(out, Citation{Source: source, Excerpt: strings.TrimSpace(excerpt)})
	}
	for _, result := range completion.SearchResults {
		add(result.URL, result.Title)
	}
	for _, url := range completion.Citations {
		add(url, "")
	}
	return out
}
