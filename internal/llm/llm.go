// Package llm drives a model backend until its reply validates against a
// schema document, feeding each validation failure back to the model as a
// corrective turn. It also provides Caller implementations for the supported
// backends.
package llm

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message of a conversation.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Caller performs one round trip to a model backend: it sends the ordered
// turns and returns the text of the assistant's reply. Transport, auth and
// availability failures are returned as errors; the generation loop does not
// retry them.
type Caller interface {
	Call(ctx context.Context, turns []Turn) (string, error)
}

// CallerFunc adapts a function to the Caller interface.
type CallerFunc func(ctx context.Context, turns []Turn) (string, error)

func (f CallerFunc) Call(ctx context.Context, turns []Turn) (string, error) {
	return f(ctx, turns)
}

// WithTimeout bounds every call made through c by d. A zero or negative d
// returns c unchanged.
func WithTimeout(c Caller, d time.Duration) Caller {
	if d <= 0 {
		return c
	}
	return CallerFunc(func(ctx context.Context, turns []Turn) (string, error) {
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()
		return c.Call(ctx, turns)
	})
}

// ErrMaxRetriesExceeded is matched by every *MaxRetriesExceededError.
var ErrMaxRetriesExceeded = errors.New("llm: model failed to produce valid output within the retry budget")

// MaxRetriesExceededError is returned when every attempt produced a reply that
// failed validation. No partial value is kept.
type MaxRetriesExceededError struct {
	Attempts int
}

func (e *MaxRetriesExceededError) Error() string {
	return fmt.Sprintf("%v (%d attempts)", ErrMaxRetriesExceeded, e.Attempts)
}

func (e *MaxRetriesExceededError) Is(target error) bool {
	return target == ErrMaxRetriesExceeded
}

// BackendError is a transport, authentication or availability failure from a
// Caller. It ends the generation loop immediately.
type BackendError struct {
	Provider string
	Err      error
}

func (e *BackendError) Error() string {
	if e.Provider == "" {
		return fmt.Sprintf("llm: backend: %v", e.Err)
	}
	return fmt.Sprintf("llm: backend %s: %v", e.Provider, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// asBackendError returns err unchanged when it already is a BackendError and
// wraps it otherwise.
func asBackendError(err error) error {
	var be *BackendError
	if errors.As(err, &be) {
		return err
	}
	return &BackendError{Err: err}
}

// cloneTurns hands callers a private copy of the conversation.
func cloneTurns(turns []Turn) []Turn {
	return slices.Clone(turns)
}

// splitSystem separates system turns (joined with blank lines) from the rest
// of the conversation. Backends with a dedicated system slot use it.
func splitSystem(turns []Turn) (string, []Turn) {
	var system []string
	rest := make([]Turn, 0, len(turns))
	for _, t := range turns {
		if t.Role == RoleSystem {
			system = append(system, t.Content)
			continue
		}
		rest = append(rest, t)
	}
	return strings.Join(system, "\n\n"), rest
}
