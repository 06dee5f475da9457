// Package provider defines the analysis provider interface used to turn
// structured triage findings into narrative prose.
package provider

import (
	"context"
	"errors"
)

// ErrUnavailable is returned when the provider cannot produce a completion.
// Callers degrade to placeholder text; triage never fails on it.
var ErrUnavailable = errors.New("analysis provider unavailable")

// Client produces a prose completion for a system role and a user prompt.
type Client interface {
	// Complete returns the completion text. Errors wrap ErrUnavailable when
	// the provider itself is the problem.
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// Unavailable is the no-provider client. Every call reports ErrUnavailable so
// the pipeline exercises its degradation path.
type Unavailable struct{}

func (Unavailable) Complete(ctx context.Context, system, prompt string) (string, error) {
	return "", ErrUnavailable
}
