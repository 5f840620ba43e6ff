// Package daemonctl starts and stops a background clipdraft daemon. It
// probes the daemon through its HTTP API and signals it through the pid file
// the daemon writes on startup.
package daemonctl
