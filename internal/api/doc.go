// Package api defines the wire-format types, converters and client for the
// daemon HTTP API. It translates internal item models into transport-friendly
// DTOs that the CLI can render without coupling to the store.
//
// # Key Types
//
// Item: transport representation of a video item with its transcript, research
// notes, citations, drafts and last failure.
//
// WorkflowStatus / DaemonStatus: running state, per-state counts, dispatch
// queue depth, gateway URLs and preflight checks.
//
// Client: the CLI side of every /api route. Non-2xx responses come back as
// *Error, which matches services.ErrValidation, ErrNotFound and
// ErrStateConflict under errors.Is.
//
// # Design Notes
//
// DTOs use camelCase JSON tags. States, steps and failure kinds are exposed as
// lowercase strings. Timestamps use RFC3339 with milliseconds in UTC.
package api
