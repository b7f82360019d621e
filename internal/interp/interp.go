// Package interp turns raw utterances into actionable decisions. The
// primary interpreter asks an OpenAI chat model for a structured verdict;
// a keyword matcher covers the common movement phrases when the model is
// unreachable.
package interp

import (
	"context"
	"errors"

	"github.com/AdibBinKadir/ai-robot-pet/pkg/models"
)

// ErrUnavailable reports that the interpreter backend could not be
// reached. Callers may retry or fall back to keyword matching.
var ErrUnavailable = errors.New("interpreter unavailable")

// Interpreter maps a transcript to a decision.
type Interpreter interface {
	Interpret(ctx context.Context, utterance string) (models.Decision, error)
}

// Func adapts a plain function to the Interpreter interface.
type Func func(ctx context.Context, utterance string) (models.Decision, error)

func (f Func) Interpret(ctx context.Context, utterance string) (models.Decision, error) {
	return f(ctx, utterance)
}
