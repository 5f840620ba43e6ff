// Package logstream prints daemon logs for the CLI, reading the API log
// buffer when the daemon is up and the log file when it is not.
package logstream
