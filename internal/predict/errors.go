package predict

import (
	"errors"
	"fmt"
)

// Sentinel errors for the learned path. Both are recovered inside the
// orchestrator via dead-reckoning fallback and never surface to callers
// as request failures.
var (
	ErrUpstreamUnavailable  = errors.New("remote model service unavailable")
	ErrArtifactMissing      = errors.New("model artifact missing")
	ErrArtifactIncompatible = errors.New("model artifact incompatible")
)

// InvalidRequestError rejects a structurally invalid request before it
// reaches any forecaster. Field names the offending request field.
type InvalidRequestError struct {
	Field  string
	Reason string
}

func (e *InvalidRequestError) Error() string {
	return fmt.Sprintf("invalid request: field %q: %s", e.Field, e.Reason)
}

func invalidField(field, format string, args ...any) error {
	return &InvalidRequestError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
