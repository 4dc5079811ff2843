package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrExternalTool     = errors.New("external tool error")
	ErrValidation       = errors.New("validation error")
	ErrConfiguration    = errors.New("configuration error")
	ErrNotFound         = errors.New("not found")
	ErrTimeout          = errors.New("timeout")
	ErrTransient        = errors.New("transient failure")
	ErrAnalysis         = errors.New("analysis failure")
	ErrIdentityMismatch = errors.New("identity mismatch")
)

// FailureKind is the operator-facing error taxonomy used for decisions,
// metrics, and review records.
type FailureKind string

const (
	FailureNone             FailureKind = ""
	FailureTransient        FailureKind = "transient"
	FailureAnalysis         FailureKind = "analysis"
	FailureIdentityMismatch FailureKind = "identity_mismatch"
	FailureConfiguration    FailureKind = "configuration"
	FailureValidation       FailureKind = "validation"
	FailureUnexpected       FailureKind = "unexpected"
)

// Wrap builds an error message that includes component context while tagging it with
// the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Classify maps an error to its failure kind. Timeouts and not-found lookups
// fold into the transient and identity mismatch kinds respectively.
func Classify(err error) FailureKind {
	switch {
	case err == nil:
		return FailureNone
	case errors.Is(err, ErrConfiguration):
		return FailureConfiguration
	case errors.Is(err, ErrIdentityMismatch), errors.Is(err, ErrNotFound):
		return FailureIdentityMismatch
	case errors.Is(err, ErrAnalysis):
		return FailureAnalysis
	case errors.Is(err, ErrValidation):
		return FailureValidation
	case errors.Is(err, ErrTransient), errors.Is(err, ErrTimeout), errors.Is(err, ErrExternalTool):
		return FailureTransient
	default:
		return FailureUnexpected
	}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
