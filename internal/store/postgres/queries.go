package postgres

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/AdibBinKadir/ai-robot-pet/internal/store"
	"github.com/AdibBinKadir/ai-robot-pet/pkg/models"
)

const commandColumns = `command_id, owner, utterance, action, reply, kind, status, error, created_at, claimed_at, completed_at`

func (s *Store) Insert(ctx context.Context, cmd *models.Command) error {
	if cmd == nil || cmd.ID == "" {
		return errors.New("command id required")
	}
	if cmd.Owner == "" {
		return errors.New("command owner required")
	}
	status := cmd.Status
	if status == "" {
		status = models.StatusPending
	}
	created := cmd.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	_, err := s.Pool.Exec(ctx, `
INSERT INTO commands(command_id, owner, utterance, action, reply, kind, status, created_at)
VALUES($1, $2, $3, $4, $5, $6, $7, $8)`,
		cmd.ID, cmd.Owner, cmd.Utterance, cmd.Action, cmd.Reply, cmd.Kind, status, created)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return store.ErrDuplicate
		}
		return err
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (*models.Command, error) {
	row := s.Pool.QueryRow(ctx, `SELECT `+commandColumns+` FROM commands WHERE command_id = $1`, id)
	cmd, err := scanCommand(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return cmd, nil
}

// ClaimPending takes the whole batch in one statement: candidates are
// locked with SKIP LOCKED so concurrent pollers race on disjoint rows,
// and the status flip happens under the same lock.
func (s *Store) ClaimPending(ctx context.Context, limit int, cutoff, staleBefore time.Time) ([]models.Command, error) {
	if limit <= 0 {
		limit = models.DefaultClaimLimit
	}
	rows, err := s.Pool.Query(ctx, `
WITH candidates AS (
    SELECT command_id
    FROM commands
    WHERE (status = 'pending' AND created_at <= $1)
       OR (status = 'processing' AND claimed_at IS NOT NULL AND claimed_at <= $2)
    ORDER BY created_at ASC, command_id ASC
    LIMIT $3
    FOR UPDATE SKIP LOCKED
)
UPDATE commands AS c
SET status = 'processing', claimed_at = $4
FROM candidates
WHERE c.command_id = candidates.command_id
RETURNING `+qualified(commandColumns, "c"),
		cutoff, staleBefore, limit, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Command
	for rows.Next() {
		cmd, err := scanCommand(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *cmd)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// RETURNING does not guarantee order; keep the oldest-first contract.
	sortByCreated(out)
	return out, nil
}

func (s *Store) Finish(ctx context.Context, id string, outcome models.Outcome) error {
	now := time.Now().UTC()
	var tag pgconn.CommandTag
	var err error
	switch outcome.Status {
	case models.StatusCompleted:
		tag, err = s.Pool.Exec(ctx, `UPDATE commands SET status='completed', completed_at=$1 WHERE command_id=$2 AND status='processing'`, now, id)
	case models.StatusFailed:
		tag, err = s.Pool.Exec(ctx, `UPDATE commands SET status='failed', error=NULLIF($1,''), completed_at=$2 WHERE command_id=$3 AND status='processing'`, outcome.Error, now, id)
	default:
		return errors.New("outcome status must be completed or failed")
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) History(ctx context.Context, owner string, limit int) ([]models.Command, error) {
	if owner == "" {
		return nil, errors.New("owner required")
	}
	if limit <= 0 {
		limit = models.DefaultHistoryLimit
	}
	rows, err := s.Pool.Query(ctx, `
SELECT `+commandColumns+` FROM commands
WHERE owner = $1
ORDER BY created_at DESC, command_id DESC
LIMIT $2`, owner, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Command
	for rows.Next() {
		cmd, err := scanCommand(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *cmd)
	}
	return out, rows.Err()
}

func (s *Store) CountByStatus(ctx context.Context) (models.StatusCounts, error) {
	rows, err := s.Pool.Query(ctx, `SELECT status, COUNT(*) FROM commands GROUP BY status`)
	if err != nil {
		return models.StatusCounts{}, err
	}
	defer rows.Close()

	var counts models.StatusCounts
	for rows.Next() {
		var (
			status string
			n      int64
		)
		if err := rows.Scan(&status, &n); err != nil {
			return models.StatusCounts{}, err
		}
		switch status {
		case models.StatusPending:
			counts.Pending = n
		case models.StatusProcessing:
			counts.Processing = n
		case models.StatusCompleted:
			counts.Completed = n
		case models.StatusFailed:
			counts.Failed = n
		}
	}
	return counts, rows.Err()
}

func scanCommand(row pgx.Row) (*models.Command, error) {
	var (
		cmd         models.Command
		errText     *string
		claimedAt   *time.Time
		completedAt *time.Time
	)
	err := row.Scan(&cmd.ID, &cmd.Owner, &cmd.Utterance, &cmd.Action, &cmd.Reply, &cmd.Kind,
		&cmd.Status, &errText, &cmd.CreatedAt, &claimedAt, &completedAt)
	if err != nil {
		return nil, err
	}
	cmd.Error = errText
	cmd.ClaimedAt = claimedAt
	cmd.CompletedAt = completedAt
	return &cmd, nil
}

func qualified(columns, alias string) string {
	cols := strings.Split(columns, ",")
	for i, c := range cols {
		cols[i] = alias + "." + strings.TrimSpace(c)
	}
	return strings.Join(cols, ", ")
}

func sortByCreated(cmds []models.Command) {
	sort.Slice(cmds, func(i, j int) bool {
		if cmds[i].CreatedAt.Equal(cmds[j].CreatedAt) {
			return cmds[i].ID < cmds[j].ID
		}
		return cmds[i].CreatedAt.Before(cmds[j].CreatedAt)
	})
}
