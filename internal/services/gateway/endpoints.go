package gateway

import (
	"fmt"
	"net/url"
	"strings"
	"sync"

	"clipdraft/internal/services"
)

// Gateway names.
const (
	Transcription = "transcription"
	Research      = "research"
)

// Names lists the known gateways in display order.
func Names() []string {
	return []string{Transcription, Research}
}

// Endpoints is the runtime base URL registry. Reads happen on every call so a
// URL changed while the daemon runs applies to the next request.
type Endpoints struct {
	mu   sync.RWMutex
	urls map[string]string
}

// NewEndpoints seeds the registry. Unknown names in seed are ignored.
func NewEndpoints(seed map[string]string) *Endpoints {
	e := &Endpoints{urls: make(map[string]string, len(Names()))}
	for _, name := range Names() {
		e.urls[name] = strings.TrimRight(strings.TrimSpace(seed[name]), "/")
	}
	return e
}

// Get returns the current base URL for name, or "" when unset.
func (e *Endpoints) Get(name string) string {
	if e == nil {
		return ""
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.urls[name]
}

// Set replaces the base URL for name. An empty value unsets it.
func (e *Endpoints) Set(name, value string) error {
	if !Known(name) {
		return fmt.Errorf("%w: unknown gateway %q", services.ErrNotFound, name)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.urls[name] = strings.TrimRight(strings.TrimSpace(value), "/")
	return nil
}

// Snapshot copies the registry.
func (e *Endpoints) Snapshot() map[string]string {
	out := make(map[string]string, len(Names()))
	if e == nil {
		return out
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	for name, value := range e.urls {
		out[name] = value
	}
	return out
}

// Known reports whether name is a registered gateway.
func Known(name string) bool {
	for _, candidate := range Names() {
		if candidate == name {
			return true
		}
	}
	return false
}

// ValidateURL trims raw and requires an absolute http or https URL with a
// host.
func ValidateURL(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("%w: url is required", services.ErrValidation)
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("%w: parse url %q: %v", services.ErrValidation, trimmed, err)
	}
	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", fmt.Errorf("%w: url %q must use http or https", services.ErrValidation, trimmed)
	}
	if parsed.Host == "" || parsed.Hostname() == "" {
		return "", fmt.Errorf("%w: url %q has no host", services.ErrValidation, trimmed)
	}
	return trimmed, nil
}

// Resolve joins path onto the current base URL for name. An unset base
// resolves to "", which PostJSON reports as unreachable.
func (e *Endpoints) Resolve(name, path string) (string, error) {
	base := e.Get(name)
	if base == "" {
		return "", nil
	}
	if path == "" {
		return base, nil
	}
	joined, err := url.JoinPath(base, path)
	if err != nil {
		return "", fmt.Errorf("join %s base url: %w", name, err)
	}
	return joined, nil
}
