// Package queue persists video items in SQLite.
//
// The Store manages the database connection, schema initialization, per-state
// stats, runtime settings, and an append-only transition history. Every state
// change goes through UpdateIf, which checks the expected state inside the
// UPDATE and asks the lifecycle table for the next state, so two writers can
// never both move the same item.
//
// Schema changes bump the version in schema.go; older databases must be
// deleted before the daemon starts.
package queue
