// Package logging assembles structured slog loggers used across clipdraft.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so pipeline code can tag log
// lines with item IDs, steps, and correlation IDs. StreamHub keeps a bounded
// tail of recent records for the daemon's /api/logs endpoint.
package logging
