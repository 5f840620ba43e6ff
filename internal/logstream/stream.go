package logstream

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"clipdraft/internal/api"
)

// ErrFiltersRequireAPI reports an item filter without a reachable daemon.
var ErrFiltersRequireAPI = errors.New("log filters require API access")

const (
	pageSize     = 200
	pollInterval = 500 * time.Millisecond
)

// Fetcher is the part of the API client the stream reads from.
type Fetcher interface {
	Logs(ctx context.Context, q api.LogQuery) (api.LogStreamResponse, error)
}

// Options controls stream behavior.
type Options struct {
	// Lines is how many of the most recent events to print first. Zero means
	// everything still buffered.
	Lines  int
	Follow bool
	ItemID int64
	// LogPath is tailed when the daemon API does not answer.
	LogPath string
}

// Stream emits log events from the daemon API, falling back to tailing the
// log file when the API is unavailable. It returns true when at least one
// event or line was emitted.
func Stream(
	ctx context.Context,
	client Fetcher,
	opts Options,
	onEvent func(api.LogEvent),
	onLine func(string),
) (bool, error) {
	var err error
	if client != nil {
		var printed bool
		printed, err = streamAPI(ctx, client, opts, onEvent)
		if err == nil || !api.IsAPIUnavailable(err) {
			return printed, err
		}
	}
	if opts.ItemID != 0 {
		return false, fmt.Errorf("%w: %w", ErrFiltersRequireAPI, api.ErrAPIUnavailable)
	}
	if strings.TrimSpace(opts.LogPath) == "" {
		return false, api.ErrAPIUnavailable
	}
	return streamFile(ctx, opts, onLine)
}

func streamAPI(ctx context.Context, client Fetcher, opts Options, onEvent func(api.LogEvent)) (bool, error) {
	backlog, next, err := fetchBacklog(ctx, client, opts)
	if err != nil {
		return false, err
	}
	printed := false
	for _, evt := range backlog {
		if onEvent != nil {
			onEvent(evt)
		}
		printed = true
	}
	if !opts.Follow {
		return printed, nil
	}

	query := api.LogQuery{Since: next, Limit: pageSize, Follow: true, ItemID: opts.ItemID}
	for {
		resp, err := client.Logs(ctx, query)
		if err != nil {
			if ctx.Err() != nil {
				return printed, nil
			}
			return printed, err
		}
		for _, evt := range resp.Events {
			if onEvent != nil {
				onEvent(evt)
			}
			printed = true
		}
		query.Since = resp.Next
	}
}

// fetchBacklog pages through the buffered events and keeps the newest
// opts.Lines of them.
func fetchBacklog(ctx context.Context, client Fetcher, opts Options) ([]api.LogEvent, uint64, error) {
	var (
		events []api.LogEvent
		since  uint64
	)
	for {
		resp, err := client.Logs(ctx, api.LogQuery{Since: since, Limit: pageSize, ItemID: opts.ItemID})
		if err != nil {
			return nil, 0, err
		}
		events = append(events, resp.Events...)
		if opts.Lines > 0 && len(events) > opts.Lines {
			events = events[len(events)-opts.Lines:]
		}
		advanced := resp.Next > since
		since = resp.Next
		if len(resp.Events) < pageSize || !advanced {
			return events, since, nil
		}
	}
}

func streamFile(ctx context.Context, opts Options, onLine func(string)) (bool, error) {
	file, err := os.Open(opts.LogPath)
	if err != nil {
		return false, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	lines, err := lastLines(file, opts.Lines)
	if err != nil {
		return false, fmt.Errorf("read log file: %w", err)
	}
	printed := false
	for _, line := range lines {
		if onLine != nil {
			onLine(line)
		}
		printed = true
	}
	if !opts.Follow {
		return printed, nil
	}

	reader := bufio.NewReader(file)
	var partial strings.Builder
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		for {
			chunk, err := reader.ReadString('\n')
			partial.WriteString(chunk)
			if err != nil {
				if errors.Is(err, io.EOF) {
					break
				}
				return printed, fmt.Errorf("read log file: %w", err)
			}
			if onLine != nil {
				onLine(strings.TrimRight(partial.String(), "\r\n"))
			}
			partial.Reset()
			printed = true
		}
		select {
		case <-ctx.Done():
			return printed, nil
		case <-ticker.C:
		}
	}
}

// lastLines reads r to the end and returns its final n lines, or all of them
// when n is not positive. The reader is left positioned at EOF.
func lastLines(r io.Reader, n int) ([]string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
		if n > 0 && len(lines) > n {
			lines = lines[1:]
		}
	}
	return lines, scanner.Err()
}
