// Package api serves the daemon's HTTP surface and provides the typed client
// the CLI uses against it.
//
// # Routes
//
// /healthz and /metrics are public. Everything under /api requires a bearer
// token when api.token is configured:
//
//	GET  /api/status                         daemon, queue and directory summary
//	GET  /api/queue                          queue snapshot with per-job ETAs
//	POST /api/submissions                    enqueue evidence
//	GET  /api/ledger/{community}/locked      locked members
//	GET  /api/ledger/{community}/{user}      one member's attempt record
//	POST /api/ledger/{community}/{user}/unlock
//	POST /api/members/{community}/{user}/join|leave
//	GET  /api/communities[/{community}]      community settings
//	PUT  /api/communities/{community}        partial settings update
//	GET  /api/reviews                        review cases (?community, ?user, ?all)
//	POST /api/reviews/{id}/resolve
//	GET  /api/directory/{id}                 identity directory lookup
//
// # Design Notes
//
// Submission refusals are not errors on the wire: POST /api/submissions
// answers 409, 423 or 412 with a SubmitResponse whose reason and message the
// platform adapter relays to the member. Every other failure uses
// ErrorResponse, with the status derived from the services error markers.
//
// DTOs use snake_case JSON tags. Timestamps are RFC3339 with milliseconds.
package api
