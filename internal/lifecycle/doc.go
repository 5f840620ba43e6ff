// Package lifecycle holds the video item state machine: the legal transitions
// between pipeline states and the resume point for operator retries. It has no
// I/O; the store consults it before every conditional write.
package lifecycle
