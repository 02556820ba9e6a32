package service

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidCredentials   = errors.New("invalid_credentials")
	ErrUnsupportedGrantType = errors.New("unsupported_grant_type")
	ErrInvalidConfiguration = errors.New("invalid_configuration")
	ErrUpstreamTimeout      = errors.New("upstream_timeout")
	ErrInvalidScope         = errors.New("invalid_scope")
	ErrInvalidRequest       = errors.New("invalid_request")
)

// Phase is where a token request is in its lifecycle.
type Phase string

const (
	PhaseReceived   Phase = "received"
	PhaseValidating Phase = "validating"
	PhaseIssuing    Phase = "issuing"
	PhaseResponded  Phase = "responded"
	PhaseFailed     Phase = "failed"
)

// PhaseError records the phase a token request failed in.
type PhaseError struct {
	Phase Phase
	Err   error
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("%s: %v", e.Phase, e.Err)
}

func (e *PhaseError) Unwrap() error { return e.Err }

// FailedPhase returns the phase recorded on err, or PhaseReceived when none
// was recorded.
func FailedPhase(err error) Phase {
	var pe *PhaseError
	if errors.As(err, &pe) {
		return pe.Phase
	}
	return PhaseReceived
}

func failAt(phase Phase, err error) error {
	return &PhaseError{Phase: phase, Err: err}
}
