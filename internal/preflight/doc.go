// Package preflight provides readiness checks for the filesystem paths,
// binaries and adapters Warden depends on.
//
// These checks run in two contexts:
//   - The daemon runs RunAll at startup and logs every failure with a hint.
//     Failures do not stop the daemon: submissions that hit a missing source
//     resolve as configuration errors, never as strikes.
//   - The CLI "warden status" command uses the individual checks to display
//     readiness alongside the daemon summary.
//
// The webhook probe is gated by gateway.mode; other checks always run.
package preflight
