// Package generator defines the boundary to the handwriting stroke model and
// ships two implementations: a deterministic synthetic model and an HTTP
// client for a remote model server.
package generator

import (
	"context"
	"errors"
	"fmt"

	"github.com/ByLCY/scribe/stroke"
	"github.com/ByLCY/scribe/style"
)

// Generator produces strokes for one word.
type Generator interface {
	Generate(ctx context.Context, text string, ts style.TextStyle) (stroke.Sequence, error)
}

// Func adapts a function to Generator.
type Func func(ctx context.Context, text string, ts style.TextStyle) (stroke.Sequence, error)

func (f Func) Generate(ctx context.Context, text string, ts style.TextStyle) (stroke.Sequence, error) {
	return f(ctx, text, ts)
}

// GenerationError reports a failed generation. Retryable failures are
// transient (rate limits, server errors) and worth another attempt.
type GenerationError struct {
	Text       string
	Retryable  bool
	StatusCode int
	Err        error
}

func (e *GenerationError) Error() string {
	msg := fmt.Sprintf("generate %q", e.Text)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(": status %d", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *GenerationError) Unwrap() error { return e.Err }

// IsRetryable checks if an error is worth retrying.
func IsRetryable(err error) bool {
	var genErr *GenerationError
	return errors.As(err, &genErr) && genErr.Retryable
}
