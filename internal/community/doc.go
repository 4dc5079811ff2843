// Package community stores per-community verification settings: which
// privilege a verified member receives and where review cases are announced.
package community
