// Package daemon coordinates the long-running clipdraft process.
//
// It wires configuration, item storage and the workflow manager into a single
// lifecycle with flock-based locking to prevent multiple instances sharing one
// data directory, and serves the HTTP API the CLI talks to.
//
// Keep orchestration logic here: pipeline steps live in workflow while the
// daemon focuses on startup, shutdown and the transport surface.
package daemon
