package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/AdibBinKadir/ai-robot-pet/pkg/models"
)

func (s *sqliteStore) Insert(ctx context.Context, cmd *models.Command) error {
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
	_, err := s.stmtInsert.ExecContext(ctx,
		cmd.ID, cmd.Owner, cmd.Utterance, cmd.Action, cmd.Reply, cmd.Kind, status, created.UnixMilli())
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

func (s *sqliteStore) Get(ctx context.Context, id string) (*models.Command, error) {
	row := s.stmtGet.QueryRowContext(ctx, id)
	cmd, err := scanCommandRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return cmd, nil
}

// ClaimPending implements the optimistic claim scheme: select candidates
// oldest-first, then attempt a conditional status flip per row and keep
// only the rows this caller actually won. Claimed rows carry a fresh
// claimed_at, so a racing caller's stale-row condition cannot re-take them.
func (s *sqliteStore) ClaimPending(ctx context.Context, limit int, cutoff, staleBefore time.Time) ([]models.Command, error) {
	if limit <= 0 {
		limit = models.DefaultClaimLimit
	}
	rows, err := s.DB.QueryContext(ctx, `
SELECT command_id FROM commands
WHERE (status='pending' AND created_at<=?)
   OR (status='processing' AND claimed_at IS NOT NULL AND claimed_at<=?)
ORDER BY created_at ASC, command_id ASC
LIMIT ?`, cutoff.UnixMilli(), staleBefore.UnixMilli(), limit)
	if err != nil {
		return nil, err
	}
	var candidates []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			_ = rows.Close()
			return nil, err
		}
		candidates = append(candidates, id)
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	var claimed []models.Command
	for _, id := range candidates {
		res, err := s.stmtClaimRow.ExecContext(ctx, now.UnixMilli(), id, cutoff.UnixMilli(), staleBefore.UnixMilli())
		if err != nil {
			return claimed, err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			continue // another claimer won this row
		}
		cmd, err := s.Get(ctx, id)
		if err != nil {
			return claimed, err
		}
		claimed = append(claimed, *cmd)
	}
	return claimed, nil
}

func (s *sqliteStore) Finish(ctx context.Context, id string, outcome models.Outcome) error {
	now := time.Now().UTC().UnixMilli()
	var (
		res sql.Result
		err error
	)
	switch outcome.Status {
	case models.StatusCompleted:
		res, err = s.stmtFinishComplete.ExecContext(ctx, now, id)
	case models.StatusFailed:
		res, err = s.stmtFinishFailed.ExecContext(ctx, nullIfEmpty(outcome.Error), now, id)
	default:
		return errors.New("outcome status must be completed or failed")
	}
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *sqliteStore) History(ctx context.Context, owner string, limit int) ([]models.Command, error) {
	if owner == "" {
		return nil, errors.New("owner required")
	}
	if limit <= 0 {
		limit = models.DefaultHistoryLimit
	}
	rows, err := s.stmtHistory.QueryContext(ctx, owner, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []models.Command
	for rows.Next() {
		cmd, err := scanCommandRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *cmd)
	}
	return out, rows.Err()
}

func (s *sqliteStore) CountByStatus(ctx context.Context) (models.StatusCounts, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT status, COUNT(*) FROM commands GROUP BY status`)
	if err != nil {
		return models.StatusCounts{}, err
	}
	defer func() { _ = rows.Close() }()

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

// scanCommandRow scans one row in commandColumns order.
func scanCommandRow(row interface{ Scan(dest ...any) error }) (*models.Command, error) {
	var (
		cmd         models.Command
		errText     sql.NullString
		createdAt   int64
		claimedAt   sql.NullInt64
		completedAt sql.NullInt64
	)
	err := row.Scan(&cmd.ID, &cmd.Owner, &cmd.Utterance, &cmd.Action, &cmd.Reply, &cmd.Kind,
		&cmd.Status, &errText, &createdAt, &claimedAt, &completedAt)
	if err != nil {
		return nil, err
	}
	if errText.Valid {
		cmd.Error = &errText.String
	}
	cmd.CreatedAt = time.UnixMilli(createdAt).UTC()
	if claimedAt.Valid {
		t := time.UnixMilli(claimedAt.Int64).UTC()
		cmd.ClaimedAt = &t
	}
	if completedAt.Valid {
		t := time.UnixMilli(completedAt.Int64).UTC()
		cmd.CompletedAt = &t
	}
	return &cmd, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
