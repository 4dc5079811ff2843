// Package storage owns the SQLite database shared by the ledger, review and
// community packages: connection pragmas, the embedded schema with its
// version guard, and busy-retry helpers.
package storage
