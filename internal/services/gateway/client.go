package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"

	"clipdraft/internal/services"
)

// MaxResponseBytes bounds a gateway response body.
const MaxResponseBytes = 32 << 20

// Response is a successful (2xx) reply.
type Response struct {
	StatusCode int
	Body       []byte
}

// Client performs one JSON POST per call against a named gateway.
type Client struct {
	name       string
	httpClient *http.Client
	headers    http.Header
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithHeader adds a header to every request.
func WithHeader(key, value string) Option {
	return func(c *Client) {
		if strings.TrimSpace(value) != "" {
			c.headers.Set(key, value)
		}
	}
}

// NewClient constructs a client for the named gateway. The default HTTP client
// has no timeout of its own; callers bound each call with a context deadline.
func NewClient(name string, opts ...Option) *Client {
	c := &Client{
		name:       name,
		httpClient: &http.Client{},
		headers:    make(http.Header),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name returns the gateway name used in errors.
func (c *Client) Name() string {
	return c.name
}

// PostJSON sends payload to endpoint and returns the 2xx body. Every other
// outcome is a *services.GatewayError, except caller cancellation which
// returns an error matching context.Canceled.
func (c *Client) PostJSON(ctx context.Context, endpoint string, payload any) (*Response, error) {
	if strings.TrimSpace(endpoint) == "" {
		return nil, c.fail(services.KindUnreachable, 0, "", "no base URL configured", nil)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%s gateway: encode request: %w", c.name, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, c.fail(services.KindUnreachable, 0, "", "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for key, values := range c.headers {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.classifyTransport(ctx, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseBytes+1))
	if err != nil {
		return nil, c.classifyTransport(ctx, err)
	}
	if len(data) > MaxResponseBytes {
		return nil, c.fail(services.KindMalformedResponse, resp.StatusCode, "", fmt.Sprintf("response exceeds %d bytes", MaxResponseBytes), nil)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		code, message := rejectionDetail(data)
		if code == "" {
			code = fmt.Sprintf("http_%d", resp.StatusCode)
		}
		if message == "" {
			message = Snippet(data)
		}
		return nil, c.fail(services.KindRemoteRejected, resp.StatusCode, code, message, nil)
	}
	return &Response{StatusCode: resp.StatusCode, Body: data}, nil
}

// Decode unmarshals a 2xx body into target. A 2xx body carrying an error
// payload becomes RemoteRejected; undecodable JSON becomes MalformedResponse.
func (c *Client) Decode(resp *Response, target any) error {
	if resp == nil || len(bytes.TrimSpace(resp.Body)) == 0 {
		return c.fail(services.KindMalformedResponse, 0, "", "empty response body", nil)
	}
	if code, message := rejectionDetail(resp.Body); code != "" {
		return c.fail(services.KindRemoteRejected, resp.StatusCode, code, message, nil)
	}
	if err := json.Unmarshal(resp.Body, target); err != nil {
		return c.fail(services.KindMalformedResponse, resp.StatusCode, "", "decode response: "+Snippet(resp.Body), err)
	}
	return nil
}

// Malformed builds a MalformedResponse error for payloads that decoded but
// failed validation.
func (c *Client) Malformed(message string) error {
	return c.fail(services.KindMalformedResponse, 0, "", message, nil)
}

// Fail builds a GatewayError attributed to this client.
func (c *Client) Fail(kind services.Kind, status int, code, message string, err error) error {
	return c.fail(kind, status, code, message, err)
}

func (c *Client) fail(kind services.Kind, status int, code, message string, err error) *services.GatewayError {
	return &services.GatewayError{
		Gateway:    c.name,
		Kind:       kind,
		StatusCode: status,
		Code:       code,
		Message:    message,
		Err:        err,
	}
}

func (c *Client) classifyTransport(ctx context.Context, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled) {
		return fmt.Errorf("%s gateway: %w", c.name, context.Canceled)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return c.fail(services.KindTimeout, 0, "", "deadline exceeded", err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return c.fail(services.KindTimeout, 0, "", "request timed out", err)
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return c.fail(services.KindUnreachable, 0, "dns", "host not found", err)
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return c.fail(services.KindUnreachable, 0, "connection_refused", "connection refused", err)
	}
	return c.fail(services.KindUnreachable, 0, "", "request failed", err)
}

// rejectionDetail extracts {"error": "...", "reason": "..."} from a body.
// A reason is required for a 2xx body to count as a rejection.
func rejectionDetail(body []byte) (code, message string) {
	var payload struct {
		Error  json.RawMessage `json:"error"`
		Reason string          `json:"reason"`
		Detail string          `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", ""
	}
	message = rawMessageText(payload.Error)
	if message == "" {
		message = strings.TrimSpace(payload.Detail)
	}
	return strings.TrimSpace(payload.Reason), message
}

func rawMessageText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return strings.TrimSpace(text)
	}
	var nested struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &nested); err == nil {
		return strings.TrimSpace(nested.Message)
	}
	return ""
}

// Snippet condenses a response body for error messages.
func Snippet(body []byte) string {
	text := strings.Join(strings.Fields(string(body)), " ")
	const limit = 200
	if len(text) > limit {
		return text[:limit] + "..."
	}
	return text
}
