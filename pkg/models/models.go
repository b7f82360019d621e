// Package models provides shared types for the robopet HTTP API and external tools.
// These types mirror the API JSON and are stable for use by pkg/client and the poller host.
package models

import "time"

// Command is one user request, from utterance to terminal status.
// Everything except Status, Error, and CompletedAt is immutable after intake.
type Command struct {
	ID          string     `json:"id"`
	Owner       string     `json:"owner"`
	Utterance   string     `json:"utterance"`
	Action      int        `json:"action"`
	Reply       string     `json:"reply"`
	Kind        string     `json:"kind"`
	Status      string     `json:"status"`
	Error       *string    `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	ClaimedAt   *time.Time `json:"claimed_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Decision is the interpreter's verdict on a single utterance.
type Decision struct {
	Action int    `json:"action"`
	Reply  string `json:"reply"`
	Kind   string `json:"kind"`
}

// SubmitResult is returned synchronously from submit; physical execution
// has not necessarily happened by the time the caller sees this.
type SubmitResult struct {
	CommandID string `json:"command_id"`
	Utterance string `json:"utterance"`
	Action    int    `json:"action"`
	Reply     string `json:"reply"`
	Kind      string `json:"kind"`
}

// Outcome is the terminal report for a claimed command.
type Outcome struct {
	Status string `json:"status"`          // StatusCompleted or StatusFailed
	Error  string `json:"error,omitempty"` // detail, set only on failure
}

// StatusCounts is the per-status breakdown served by /api/status.
type StatusCounts struct {
	Pending    int64 `json:"pending"`
	Processing int64 `json:"processing"`
	Completed  int64 `json:"completed"`
	Failed     int64 `json:"failed"`
}
