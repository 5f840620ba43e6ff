// Package services defines shared utilities consumed by the pipeline steps
// and the external gateway integrations.
//
// Key responsibilities:
//   - Context helpers that stamp item IDs, step names, and correlation
//     identifiers for logging.
//   - Sentinel error markers plus the Wrap helper, used by callers to map
//     failures onto HTTP statuses.
//   - GatewayError and FailureKind, which classify a failed gateway call into
//     the kind recorded on the item (timeout, unreachable, remote_rejected,
//     malformed_response, internal_error).
package services
