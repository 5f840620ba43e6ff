package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation    = errors.New("validation error")
	ErrNotFound      = errors.New("not found")
	ErrStateConflict = errors.New("state conflict")
	ErrConfiguration = errors.New("configuration error")
	ErrInternal      = errors.New("internal error")
)

// Kind classifies why a pipeline step failed. It is persisted on the item's
// last error record.
type Kind string

const (
	KindTimeout           Kind = "timeout"
	KindUnreachable       Kind = "unreachable"
	KindRemoteRejected    Kind = "remote_rejected"
	KindMalformedResponse Kind = "malformed_response"
	KindInternal          Kind = "internal_error"
)

// ParseKind converts a persisted kind string back into a Kind. Unknown values
// map to KindInternal.
func ParseKind(value string) Kind {
	switch Kind(strings.TrimSpace(value)) {
	case KindTimeout:
		return KindTimeout
	case KindUnreachable:
		return KindUnreachable
	case KindRemoteRejected:
		return KindRemoteRejected
	case KindMalformedResponse:
		return KindMalformedResponse
	default:
		return KindInternal
	}
}

// GatewayError reports a failed call to an external service. Each call makes a
// single attempt, so the error describes exactly one request.
type GatewayError struct {
	Gateway    string
	Kind       Kind
	StatusCode int
	// Code is a short machine-readable reason, either supplied by the remote
	// service or derived from the HTTP status (http_503).
	Code    string
	Message string
	Err     error
}

func (e *GatewayError) Error() string {
	if e == nil {
		return ""
	}
	var b strings.Builder
	if e.Gateway != "" {
		b.WriteString(e.Gateway)
		b.WriteString(" gateway: ")
	}
	b.WriteString(string(e.Kind))
	if e.Code != "" {
		b.WriteString(" (")
		b.WriteString(e.Code)
		b.WriteString(")")
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *GatewayError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ErrorKind exposes the classification for logging.
func (e *GatewayError) ErrorKind() string {
	if e == nil {
		return ""
	}
	return string(e.Kind)
}

// Wrap builds an error message that includes step context while tagging it with
// the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, step, operation, message string, err error) error {
	detail := buildDetail(step, operation, message)
	if marker == nil {
		marker = ErrInternal
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// FailureKind maps a step error onto the kind persisted with the item's last
// error.
func FailureKind(err error) Kind {
	var gwErr *GatewayError
	switch {
	case err == nil:
		return KindInternal
	case errors.As(err, &gwErr) && gwErr.Kind != "":
		return gwErr.Kind
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	default:
		return KindInternal
	}
}

// FailureHint returns an operator-facing next step for the given kind.
func FailureHint(kind Kind) string {
	switch kind {
	case KindTimeout:
		return "the service took too long; check its load and retry"
	case KindUnreachable:
		return "update the gateway URL with 'clipdraft gateway set' and retry"
	case KindRemoteRejected:
		return "inspect the remote service response and credentials before retrying"
	case KindMalformedResponse:
		return "the service returned an unexpected payload; check its version"
	default:
		return "check daemon logs for details"
	}
}

func buildDetail(step, operation, message string) string {
	parts := make([]string, 0, 3)
	if step = strings.TrimSpace(step); step != "" {
		parts = append(parts, step)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
