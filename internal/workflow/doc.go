// Package workflow moves video items through transcription and research.
//
// The Manager owns intake (Ingest, Retry, Remove), read access (GetStatus,
// List, History, Status), and the runtime gateway URLs. Steps run on a
// dispatch.Dispatcher: Ingest and Retry enqueue a task, a worker holding the
// item's execution token calls the gateway under the step timeout, and every
// state change goes through queue.Store.UpdateIf so a stale or duplicate
// worker can never overwrite newer state.
//
// After each persisted transition the Manager publishes it to the transition
// feed, sends a notification for Drafted and Failed, and logs it with an
// event_type. On Start, items left mid-step by a crash are failed with
// internal_error and resting items are re-queued.
package workflow
