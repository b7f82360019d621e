// Package speech converts recorded audio into text. The default backend
// is OpenAI's whisper transcription endpoint.
package speech

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	openai "github.com/openai/openai-go/v3"
)

// ErrNoSpeech reports that the audio decoded cleanly but contained no
// recognizable speech.
var ErrNoSpeech = errors.New("no speech detected")

// ErrUnsupportedFormat reports an audio container the backend does not
// accept.
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// Transcriber converts audio to text. Filename carries the container
// extension the backend uses to pick a decoder.
type Transcriber interface {
	Transcribe(ctx context.Context, audio io.Reader, filename string) (string, error)
}

// Containers whisper accepts. Keyed by lowercase extension without dot.
var supportedFormats = map[string]string{
	"wav":  "audio/wav",
	"mp3":  "audio/mpeg",
	"ogg":  "audio/ogg",
	"webm": "audio/webm",
	"m4a":  "audio/mp4",
	"flac": "audio/flac",
}

// ContentType returns the MIME type for a supported audio filename, or
// ErrUnsupportedFormat.
func ContentType(filename string) (string, error) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	ct, ok := supportedFormats[ext]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	return ct, nil
}

// Whisper transcribes audio with the OpenAI audio API.
type Whisper struct {
	Client openai.Client
	Model  openai.AudioModel
	Logger *slog.Logger
}

// NewWhisper builds a transcriber around an existing OpenAI client.
func NewWhisper(client openai.Client, logger *slog.Logger) *Whisper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Whisper{Client: client, Model: openai.AudioModelWhisper1, Logger: logger}
}

func (w *Whisper) Transcribe(ctx context.Context, audio io.Reader, filename string) (string, error) {
	ct, err := ContentType(filename)
	if err != nil {
		return "", err
	}
	resp, err := w.Client.Audio.Transcriptions.New(ctx, openai.AudioTranscriptionNewParams{
		File:  openai.File(audio, filepath.Base(filename), ct),
		Model: w.Model,
	})
	if err != nil {
		return "", fmt.Errorf("whisper transcription: %w", err)
	}
	text := strings.TrimSpace(resp.Text)
	w.Logger.Debug("transcribed audio", "file", filename, "chars", len(text))
	if text == "" {
		return "", ErrNoSpeech
	}
	return text, nil
}
