// Package intake is the write path for new commands: transcribe when the
// input is audio, interpret the utterance, then persist a pending row.
// Interpretation and persistence are fail-fast: a failure at any step
// leaves no row behind.
package intake

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/AdibBinKadir/ai-robot-pet/internal/interp"
	"github.com/AdibBinKadir/ai-robot-pet/internal/otel"
	"github.com/AdibBinKadir/ai-robot-pet/internal/speech"
	"github.com/AdibBinKadir/ai-robot-pet/internal/store"
	"github.com/AdibBinKadir/ai-robot-pet/pkg/models"
)

// DefaultTimeout bounds a single submit, covering transcription,
// interpretation and the insert.
const DefaultTimeout = 30 * time.Second

// Service accepts utterances and records them as pending commands.
type Service struct {
	Store   store.Store
	Interp  interp.Interpreter
	Speech  speech.Transcriber
	Timeout time.Duration
	Logger  *slog.Logger

	// now is swapped in tests.
	now func() time.Time
}

// New wires an intake service. Speech may be nil when only the text
// endpoint is served.
func New(st store.Store, in interp.Interpreter, sp speech.Transcriber, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		Store:   st,
		Interp:  in,
		Speech:  sp,
		Timeout: DefaultTimeout,
		Logger:  logger,
		now:     time.Now,
	}
}

// SubmitText interprets a typed utterance and stores it as pending.
func (s *Service) SubmitText(ctx context.Context, owner, text string) (models.SubmitResult, error) {
	if text == "" {
		return models.SubmitResult{}, fmt.Errorf("empty utterance")
	}
	ctx, cancel := s.bound(ctx)
	defer cancel()
	return s.record(ctx, owner, text)
}

// SubmitAudio transcribes the clip, then proceeds as SubmitText.
func (s *Service) SubmitAudio(ctx context.Context, owner string, audio io.Reader, filename string) (models.SubmitResult, error) {
	if s.Speech == nil {
		return models.SubmitResult{}, fmt.Errorf("audio intake not configured")
	}
	ctx, cancel := s.bound(ctx)
	defer cancel()

	text, err := s.Speech.Transcribe(ctx, audio, filename)
	if err != nil {
		return models.SubmitResult{}, fmt.Errorf("transcribe: %w", err)
	}
	s.Logger.Info("transcribed clip", "owner", owner, "file", filename, "utterance", text)
	return s.record(ctx, owner, text)
}

func (s *Service) record(ctx context.Context, owner, text string) (models.SubmitResult, error) {
	start := s.now()
	decision, err := s.Interp.Interpret(ctx, text)
	if err != nil {
		return models.SubmitResult{}, fmt.Errorf("interpret: %w", err)
	}
	otel.RecordInterpretation(ctx, decision.Kind, time.Since(start))

	cmd := &models.Command{
		ID:        uuid.NewString(),
		Owner:     owner,
		Utterance: text,
		Action:    decision.Action,
		Reply:     decision.Reply,
		Kind:      decision.Kind,
		Status:    models.StatusPending,
		CreatedAt: s.now().UTC(),
	}
	if err := s.Store.Insert(ctx, cmd); err != nil {
		return models.SubmitResult{}, fmt.Errorf("insert command: %w", err)
	}
	s.Logger.Info("command accepted",
		"id", cmd.ID, "owner", owner, "kind", cmd.Kind,
		"action", cmd.Action, "action_name", models.ActionName(cmd.Action))

	return models.SubmitResult{
		CommandID: cmd.ID,
		Utterance: cmd.Utterance,
		Action:    cmd.Action,
		Reply:     cmd.Reply,
		Kind:      cmd.Kind,
	}, nil
}

func (s *Service) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return context.WithTimeout(ctx, timeout)
}
