// Package gateway holds what the transcription and research clients share:
// the runtime endpoint registry and a single-attempt JSON POST that maps
// transport and protocol failures onto services.GatewayError kinds.
//
// A call never retries. Timeouts come from the caller's context; cancelling
// that context surfaces context.Canceled unchanged so shutdown is not
// mistaken for a remote failure.
package gateway
