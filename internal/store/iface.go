package store

import (
	"context"
	"errors"
	"time"

	"github.com/AdibBinKadir/ai-robot-pet/pkg/models"
)

// Store contract errors. Both indicate a defect in correct operation:
// duplicate IDs should never be generated, and only a processing row
// may be finished.
var (
	ErrNotFound  = errors.New("command not found in processing state")
	ErrDuplicate = errors.New("duplicate command id")
)

// Store is the durable command table shared by the intake service and
// the poller. It is the only coordination point between the two
// processes; all claim semantics live here.
// Implementations: the SQLite store in this package and *postgres.Store.
type Store interface {
	// Insert persists a freshly interpreted command (status pending).
	// Fails with ErrDuplicate on an id collision.
	Insert(ctx context.Context, cmd *models.Command) error

	// Get returns one command by id, or ErrNotFound.
	Get(ctx context.Context, id string) (*models.Command, error)

	// ClaimPending atomically moves up to limit rows into processing and
	// returns them oldest-first. Eligible rows are pending rows created
	// at or before cutoff, plus processing rows claimed at or before
	// staleBefore (crash-recovery sweep for pollers that died mid-batch).
	// Concurrent callers never receive the same command.
	ClaimPending(ctx context.Context, limit int, cutoff, staleBefore time.Time) ([]models.Command, error)

	// Finish moves a processing row to its terminal status and stamps
	// completed_at exactly once. Fails with ErrNotFound when the row is
	// missing or already terminal (double-finish defense).
	Finish(ctx context.Context, id string, outcome models.Outcome) error

	// History returns the owner's commands, newest first.
	History(ctx context.Context, owner string, limit int) ([]models.Command, error)

	// CountByStatus returns the per-status totals for observability.
	CountByStatus(ctx context.Context) (models.StatusCounts, error)

	Close() error
}
