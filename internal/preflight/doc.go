// Package preflight provides readiness checks for the filesystem paths and
// remote services clipdraft depends on.
//
// The daemon runs RunAll for every /api/status request so `clipdraft status`
// can show which gateway or credential is missing before items start failing.
// Checks never block item processing; a failed gateway check is advisory
// because a Colab tunnel may come up between polls.
package preflight
