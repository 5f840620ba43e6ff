// Command clipdraft runs the clipdraft daemon and talks to it over HTTP.
//
// `clipdraft serve` starts the daemon in the foreground. Every other command
// except `config init` and `config validate` is a thin client of the daemon
// API at paths.api_bind (or --api).
package main
