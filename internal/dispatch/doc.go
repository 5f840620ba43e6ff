// Package dispatch runs pipeline steps on a fixed pool of workers fed by a
// bounded channel.
//
// Submit never blocks: a full queue returns ErrQueueFull and a task for an
// item that is already queued returns ErrAlreadyScheduled. A task for an item
// a worker is running is held and run once more when the step ends. Before
// each step a worker takes the item's execution token from a TokenStore, so
// two daemons sharing a Redis token store never run the same item at once. A
// handler may return a follow-up task; the same worker runs it under a new
// token, so a started item never waits on queue capacity.
package dispatch
