// Package fetch retrieves evidence bytes behind an image reference with a
// bounded timeout and body size.
package fetch
