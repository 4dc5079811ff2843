// Package config loads, normalizes, and validates Warden configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// WARDEN_API_TOKEN and WARDEN_REDIS_URL. The Config type centralizes every knob
// the daemon and CLI need: analyzer regions and thresholds, ledger policy and
// backend, queue ETA smoothing, and operator notification targets.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical lock policies, and clear validation errors.
package config
