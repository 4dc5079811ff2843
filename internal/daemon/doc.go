// Package daemon runs the long-lived Warden process.
//
// A Daemon holds a flock-based single-instance lock and a pid file, runs the
// startup readiness checks, then runs the verification worker and the HTTP
// API side by side until its context is cancelled. Readiness failures are
// logged with hints but never block startup.
//
// Keep verification logic in the verification package; the daemon only owns
// startup, shutdown and the status summary served at /api/status.
package daemon
