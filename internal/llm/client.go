package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// DefaultTimeout bounds a single call when Options.Timeout is zero.
const DefaultTimeout = 60 * time.Second

// ErrTimeout reports that a call exceeded its timeout.
var ErrTimeout = errors.New("model call timed out")

// CallError wraps any non-timeout failure from a provider.
type CallError struct {
	Provider string
	Err      error
}

func (e *CallError) Error() string {
	return fmt.Sprintf("%s call failed: %v", e.Provider, e.Err)
}

func (e *CallError) Unwrap() error { return e.Err }

// Options tune a single call. Zero values defer to the client's defaults;
// a nil Temperature does too, so zero can be requested.
type Options struct {
	Timeout     time.Duration
	Temperature *float64
	MaxTokens   int
}

// Temperature returns a pointer for Options.Temperature or Config.Temperature.
func Temperature(v float64) *float64 { return &v }

// Client produces text for a prompt.
type Client interface {
	Generate(ctx context.Context, prompt string, opts Options) (string, error)
}

// ClientFunc adapts a function to Client.
type ClientFunc func(ctx context.Context, prompt string, opts Options) (string, error)

// Generate implements Client.
func (f ClientFunc) Generate(ctx context.Context, prompt string, opts Options) (string, error) {
	return f(ctx, prompt, opts)
}

// classify maps a raw provider error to ErrTimeout or *CallError. parent is
// the caller's context; a deadline on the per-call context alone is a timeout.
func classify(parent, call context.Context, provider string, timeout time.Duration, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrTimeout) {
		return err
	}
	var ce *CallError
	if errors.As(err, &ce) {
		return err
	}
	if parent.Err() == nil && (errors.Is(call.Err(), context.DeadlineExceeded) || isNetTimeout(err)) {
		return fmt.Errorf("%w: %s after %s", ErrTimeout, provider, timeout)
	}
	return &CallError{Provider: provider, Err: err}
}

func isNetTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// IsTimeout reports whether err is a model timeout.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}
