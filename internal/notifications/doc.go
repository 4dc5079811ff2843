// Package notifications delivers operator alerts via pluggable transports.
//
// ntfy and Amazon SES are supported and may run side by side; with neither
// configured the service is a no-op. Enumerated events cover escalations,
// configuration errors and daemon lifecycle so callers emit consistent
// messages without duplicating transport glue.
package notifications
