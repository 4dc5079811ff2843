// Package evidence holds the value types that flow through the submission
// pipeline: the member key, the immutable Submission, and the tagged
// AnalysisResult the analyzer produces.
package evidence
