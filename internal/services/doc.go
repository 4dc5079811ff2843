// Package services defines shared utilities consumed by the verification
// pipeline and its external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp submission IDs, community and user identifiers,
//     and correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper and Classify, which
//     translate failures into the pipeline's error taxonomy (transient,
//     analysis, identity mismatch, configuration).
//
// Use these helpers when wiring new components so operational behaviour (error
// handling, observability, retries) stays uniform across the pipeline.
package services
