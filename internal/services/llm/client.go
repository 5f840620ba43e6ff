package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"clipdraft/internal/services"
	"clipdraft/internal/services/gateway"
)

// CodeAuthOrQuota marks rejections caused by a bad key or an exhausted quota.
const CodeAuthOrQuota = "auth_or_quota"

// Config captures the runtime settings required to talk to the chat API.
type Config struct {
	// Gateway names the caller in returned errors. Defaults to "llm".
	Gateway     string
	APIKey      string
	Model       string
	Referer     string
	Title       string
	Temperature float64
}

// Client wraps an OpenAI-compatible chat completion API. Each call makes a
// single request.
type Client struct {
	cfg        Config
	httpClient *http.Client
	transport  *gateway.Client
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient constructs a chat client using the supplied configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	client := &Client{
		cfg: Config{
			Gateway:     strings.TrimSpace(cfg.Gateway),
			APIKey:      strings.TrimSpace(cfg.APIKey),
			Model:       strings.TrimSpace(cfg.Model),
			Referer:     strings.TrimSpace(cfg.Referer),
			Title:       strings.TrimSpace(cfg.Title),
			Temperature: cfg.Temperature,
		},
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.cfg.Gateway == "" {
		client.cfg.Gateway = "llm"
	}
	transportOpts := []gateway.Option{
		gateway.WithHeader("Authorization", bearer(client.cfg.APIKey)),
		gateway.WithHeader("HTTP-Referer", client.cfg.Referer),
		gateway.WithHeader("Referer", client.cfg.Referer),
		gateway.WithHeader("X-Title", client.cfg.Title),
	}
	if client.httpClient != nil {
		transportOpts = append(transportOpts, gateway.WithHTTPClient(client.httpClient))
	}
	client.transport = gateway.NewClient(client.cfg.Gateway, transportOpts...)
	return client
}

func bearer(key string) string {
	if key == "" {
		return ""
	}
	return "Bearer " + key
}

// SearchResult is one source the model consulted.
type SearchResult struct {
	Title string `json:"title"`
	URL   string `json:"url"`
	Date  string `json:"date,omitempty"`
}

// Completion is the useful part of a chat completion response.
type Completion struct {
	Content       string
	FinishReason  string
	Citations     []string
	SearchResults []SearchResult
}

type emptyContentError struct {
	FinishReason string
	Refusal      string
	Snippet      string
}

func (e *emptyContentError) Error() string {
	return fmt.Sprintf(
		"empty content (finish_reason=%q, refusal=%q, response_snippet=%s)",
		e.FinishReason,
		e.Refusal,
		e.Snippet,
	)
}

// Complete issues one chat completion request to endpoint with the supplied
// prompts. Failures are *services.GatewayError values; HTTP 401, 402 and 403
// carry CodeAuthOrQuota.
func (c *Client) Complete(ctx context.Context, endpoint, systemPrompt, userPrompt string) (Completion, error) {
	systemPrompt = strings.TrimSpace(systemPrompt)
	userPrompt = strings.TrimSpace(userPrompt)
	if systemPrompt == "" {
		return Completion{}, errors.New("llm complete: system prompt required")
	}
	if userPrompt == "" {
		return Completion{}, errors.New("llm complete: user prompt required")
	}
	if c.cfg.Model == "" {
		return Completion{}, fmt.Errorf("%w: llm complete: model required", services.ErrConfiguration)
	}

	payload := chatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature: c.cfg.Temperature,
	}
	resp, err := c.transport.PostJSON(ctx, endpoint, payload)
	if err != nil {
		return Completion{}, markAuthOrQuota(err)
	}

	var completion chatCompletionResponse
	if err := c.transport.Decode(resp, &completion); err != nil {
		return Completion{}, err
	}
	if completion.Error != nil {
		return Completion{}, c.transport.Fail(services.KindRemoteRejected, resp.StatusCode, "api_error", strings.TrimSpace(completion.Error.Message), nil)
	}
	content, finishReason := extractCompletionPayload(completion)
	if content == "" {
		reason := "empty choices"
		if len(completion.Choices) > 0 {
			reason = (&emptyContentError{
				FinishReason: finishReason,
				Refusal:      extractCompletionRefusal(completion),
				Snippet:      summarizePayloadSnippet(string(resp.Body)),
			}).Error()
		}
		return Completion{}, c.transport.Malformed(reason)
	}
	return Completion{
		Content:       content,
		FinishReason:  finishReason,
		Citations:     compactStrings(completion.Citations),
		SearchResults: completion.SearchResults,
	}, nil
}

func markAuthOrQuota(err error) error {
	var gwErr *services.GatewayError
	if !errors.As(err, &gwErr) || gwErr.Kind != services.KindRemoteRejected {
		return err
	}
	switch gwErr.StatusCode {
	case http.StatusUnauthorized, http.StatusPaymentRequired, http.StatusForbidden:
		gwErr.Code = CodeAuthOrQuota
	}
	return err
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatCompletionMessage `json:"message"`
		// Some providers return the streaming schema (delta) even when
		// stream=false.
		Delta        chatCompletionMessage `json:"delta"`
		Text         string                `json:"text"`
		FinishReason string                `json:"finish_reason"`
	} `json:"choices"`
	Citations     []string       `json:"citations"`
	SearchResults []SearchResult `json:"search_results"`
	Error         *struct {
		Message string `json:"message"`
	} `json:"error"`
}

type chatCompletionMessage struct {
	Content string `json:"content"`
	Refusal string `json:"refusal"`
}

func extractCompletionPayload(completion chatCompletionResponse) (string, string) {
	var finishReason string
	for _, choice := range completion.Choices {
		if finishReason == "" {
			finishReason = strings.TrimSpace(choice.FinishReason)
		}
		if content := firstNonEmpty(
			choice.Message.Content,
			choice.Delta.Content,
			choice.Text,
		); content != "" {
			return content, finishReason
		}
	}
	return "", finishReason
}

func extractCompletionRefusal(completion chatCompletionResponse) string {
	for _, choice := range completion.Choices {
		if refusal := firstNonEmpty(choice.Message.Refusal, choice.Delta.Refusal); refusal != "" {
			return refusal
		}
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func compactStrings(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// DecodeLLMJSON decodes JSON from a model response, handling common formatting quirks.
func DecodeLLMJSON(content string, target any) error {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return errors.New("empty payload")
	}

	directErr := json.Unmarshal([]byte(trimmed), target)
	if directErr == nil {
		return nil
	}

	// Strip code fences or surrounding prose and try again.
	sanitized := sanitizeJSONPayload(trimmed)
	if sanitized == "" || sanitized == trimmed {
		return fmt.Errorf("%w (payload snippet: %s)", directErr, summarizePayloadSnippet(trimmed))
	}

	sanitizedErr := json.Unmarshal([]byte(sanitized), target)
	if sanitizedErr == nil {
		return nil
	}
	return fmt.Errorf("%w (sanitized payload snippet: %s)", sanitizedErr, summarizePayloadSnippet(sanitized))
}

func sanitizeJSONPayload(content string) string {
	trimmed := strings.TrimSpace(stripCodeFenceBlock(content))
	if trimmed == "" {
		return ""
	}
	if trimmed[0] == '{' || trimmed[0] == '[' {
		return trimmed
	}
	if start := strings.Index(trimmed, "{"); start >= 0 {
		if end := strings.LastIndex(trimmed, "}"); end > start {
			return strings.TrimSpace(trimmed[start : end+1])
		}
	}
	return trimmed
}

func stripCodeFenceBlock(content string) string {
	trimmed := strings.TrimSpace(content)
	if start := strings.Index(trimmed, "```"); start > 0 {
		trimmed = trimmed[start:]
	}
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	body := strings.TrimLeft(trimmed[3:], " \t\r\n")
	if len(body) >= 4 && strings.EqualFold(body[:4], "json") {
		body = strings.TrimLeft(body[4:], " \t\r\n")
	}
	if idx := strings.LastIndex(body, "```"); idx >= 0 {
		body = body[:idx]
	}
	return strings.TrimSpace(body)
}

func summarizePayloadSnippet(content string) string {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return "<empty>"
	}
	clean := strings.Join(strings.Fields(trimmed), " ")
	const limit = 160
	runes := []rune(clean)
	if len(runes) > limit {
		clean = string(runes[:limit]) + "..."
	}
	return clean
}
