// Package transcriber calls the remote speech-to-text service that turns a
// video link into a transcript.
package transcriber

import (
	"context"
	"strings"

	"clipdraft/internal/services"
	"clipdraft/internal/services/gateway"
)

const transcribePath = "transcribe"

// Client posts {"url": ...} to {base}/transcribe.
type Client struct {
	endpoints *gateway.Endpoints
	http      *gateway.Client
}

// New constructs a transcription client. The base URL is read from endpoints
// on every call.
func New(endpoints *gateway.Endpoints, opts ...gateway.Option) *Client {
	return &Client{
		endpoints: endpoints,
		http:      gateway.NewClient(gateway.Transcription, opts...),
	}
}

type transcribeRequest struct {
	URL string `json:"url"`
}

type transcribeResponse struct {
	Transcript string `json:"transcript"`
	Text       string `json:"text"`
}

// Transcribe returns the transcript for sourceURL. Errors are
// *services.GatewayError values or context.Canceled.
func (c *Client) Transcribe(ctx context.Context, sourceURL string) (string, error) {
	endpoint, err := c.endpoints.Resolve(gateway.Transcription, transcribePath)
	if err != nil {
		return "", c.http.Fail(services.KindUnreachable, 0, "", "invalid base URL", err)
	}
	resp, err := c.http.PostJSON(ctx, endpoint, transcribeRequest{URL: sourceURL})
	if err != nil {
		return "", err
	}
	var payload transcribeResponse
	if err := c.http.Decode(resp, &payload); err != nil {
		return "", err
	}
	transcript := strings.TrimSpace(payload.Transcript)
	if transcript == "" {
		transcript = strings.TrimSpace(payload.Text)
	}
	if transcript == "" {
		return "", c.http.Malformed("transcript is empty")
	}
	return transcript, nil
}
