// Package llm defines the narrow interface to the text-completion backend
// used for file-reference extraction and fix suggestions, plus the
// production OpenAI implementation and a circuit-breaking wrapper.
package llm

import (
	"context"
	"errors"
)

var (
	// ErrUnavailable means the backend capability is not present or is
	// temporarily blocked; callers degrade rather than crash.
	ErrUnavailable = errors.New("completion backend unavailable")
)

// Backend is a prompt-in, text-out completion capability. Implementations
// must honor ctx cancellation.
type Backend interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Unavailable is a Backend for hosts without a configured provider. Every
// call reports ErrUnavailable.
type Unavailable struct{}

func (Unavailable) Complete(ctx context.Context, prompt string) (string, error) {
	return "", ErrUnavailable
}
