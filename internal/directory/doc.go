// Package directory resolves external identifiers to canonical display
// names from a CSV file. Lookups fail closed and a missing source is a
// configuration error.
package directory
