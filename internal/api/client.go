package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"clipdraft/internal/services"
)

// ErrAPIUnavailable reports that no daemon answered at the configured address.
var ErrAPIUnavailable = errors.New("daemon API unavailable")

// Error is a non-2xx response from the daemon. It matches the services
// sentinel for its status code under errors.Is.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("daemon returned status %d", e.StatusCode)
	}
	return e.Message
}

// Is maps HTTP status codes back onto the error taxonomy.
func (e *Error) Is(target error) bool {
	switch target {
	case services.ErrValidation:
		return e.StatusCode == http.StatusBadRequest
	case services.ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case services.ErrStateConflict:
		return e.StatusCode == http.StatusConflict
	default:
		return false
	}
}

// Client talks to the daemon HTTP API.
type Client struct {
	base  *url.URL
	http  *http.Client
	token string
}

// LogQuery selects log events from /api/logs.
type LogQuery struct {
	Since  uint64
	Limit  int
	Follow bool
	ItemID int64
}

// NewClient builds a client for bind, which may be host:port or a full URL.
func NewClient(bind, token string) (*Client, error) {
	bind = strings.TrimSpace(bind)
	if bind == "" {
		return nil, ErrAPIUnavailable
	}
	if !strings.Contains(bind, "://") {
		bind = "http://" + bind
	}
	base, err := url.Parse(bind)
	if err != nil {
		return nil, err
	}
	base.Path = ""
	base.RawQuery = ""
	base.Fragment = ""

	return &Client{
		base: base,
		// No timeout; log follow blocks until events arrive or the caller cancels.
		http:  &http.Client{},
		token: strings.TrimSpace(token),
	}, nil
}

// Status returns daemon and workflow status with preflight checks.
func (c *Client) Status(ctx context.Context) (DaemonStatus, error) {
	var out DaemonStatus
	err := c.do(ctx, http.MethodGet, "/api/status", nil, nil, &out)
	return out, err
}

// List returns items, optionally filtered by state names.
func (c *Client) List(ctx context.Context, states ...string) ([]Item, error) {
	values := url.Values{}
	for _, state := range states {
		if strings.TrimSpace(state) != "" {
			values.Add("state", state)
		}
	}
	var out ItemListResponse
	if err := c.do(ctx, http.MethodGet, "/api/items", values, nil, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

// Ingest submits a video link and returns the new item id.
func (c *Client) Ingest(ctx context.Context, sourceURL string) (int64, error) {
	var out IngestResponse
	if err := c.do(ctx, http.MethodPost, "/api/items", nil, IngestRequest{URL: sourceURL}, &out); err != nil {
		return 0, err
	}
	return out.ID, nil
}

// Get returns one item.
func (c *Client) Get(ctx context.Context, id int64) (Item, error) {
	var out ItemResponse
	err := c.do(ctx, http.MethodGet, itemPath(id), nil, nil, &out)
	return out.Item, err
}

// History returns an item's transitions.
func (c *Client) History(ctx context.Context, id int64) ([]Transition, error) {
	var out HistoryResponse
	if err := c.do(ctx, http.MethodGet, itemPath(id)+"/history", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Events, nil
}

// Retry resumes a failed item.
func (c *Client) Retry(ctx context.Context, id int64) (Item, error) {
	var out ItemResponse
	err := c.do(ctx, http.MethodPost, itemPath(id)+"/retry", nil, nil, &out)
	return out.Item, err
}

// Remove deletes an item.
func (c *Client) Remove(ctx context.Context, id int64) error {
	var out RemoveResponse
	return c.do(ctx, http.MethodDelete, itemPath(id), nil, nil, &out)
}

// Gateways returns the gateway base URLs in effect.
func (c *Client) Gateways(ctx context.Context) (map[string]string, error) {
	var out GatewaysResponse
	if err := c.do(ctx, http.MethodGet, "/api/gateways", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Gateways, nil
}

// SetGateway changes a gateway base URL; an empty value restores the default.
func (c *Client) SetGateway(ctx context.Context, name, baseURL string) (map[string]string, error) {
	var out GatewaysResponse
	if err := c.do(ctx, http.MethodPut, "/api/gateways/"+url.PathEscape(name), nil, GatewayUpdateRequest{URL: baseURL}, &out); err != nil {
		return nil, err
	}
	return out.Gateways, nil
}

// Logs fetches one page of log events.
func (c *Client) Logs(ctx context.Context, q LogQuery) (LogStreamResponse, error) {
	values := url.Values{}
	if q.Since > 0 {
		values.Set("since", strconv.FormatUint(q.Since, 10))
	}
	if q.Limit > 0 {
		values.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Follow {
		values.Set("follow", "1")
	}
	if q.ItemID > 0 {
		values.Set("item", strconv.FormatInt(q.ItemID, 10))
	}
	var out LogStreamResponse
	err := c.do(ctx, http.MethodGet, "/api/logs", values, nil, &out)
	return out, err
}

func itemPath(id int64) string {
	return "/api/items/" + strconv.FormatInt(id, 10)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, target any) error {
	if c == nil {
		return ErrAPIUnavailable
	}
	endpoint := c.base.ResolveReference(&url.URL{Path: path, RawQuery: query.Encode()})

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var payload ErrorResponse
		_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&payload)
		return &Error{StatusCode: resp.StatusCode, Message: strings.TrimSpace(payload.Error)}
	}
	if target == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// IsAPIUnavailable reports whether err means the daemon could not be reached.
func IsAPIUnavailable(err error) bool {
	if err == nil {
		return false
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		err = urlErr.Err
	}
	var opErr *net.OpError
	return errors.Is(err, ErrAPIUnavailable) || errors.As(err, &opErr)
}
