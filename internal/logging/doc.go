// Package logging builds the slog loggers used by the warden daemon and CLI.
//
// New and NewFromConfig return a console or JSON logger. ContextFields and
// WithContext lift submission, member and request identifiers out of a
// context so every line about a submission carries the same keys. The
// daemon tees decision records into a daily JSON audit file via
// OpenAuditHandler; PruneAuditLogs enforces logging.retention_days.
package logging
