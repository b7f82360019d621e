// Package poller runs the executor loop on the robot host: claim a batch
// of pending commands, drive the motors for command-kind rows, and record
// the terminal outcome. Commands run one at a time so physical movements
// keep their submission order.
package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/AdibBinKadir/ai-robot-pet/internal/actuator"
	"github.com/AdibBinKadir/ai-robot-pet/internal/otel"
	"github.com/AdibBinKadir/ai-robot-pet/pkg/models"
)

// Source is the claim/finish slice of the command store. Satisfied by
// store.Store directly and by pkg/client for polling over HTTP.
type Source interface {
	ClaimPending(ctx context.Context, limit int, cutoff, staleBefore time.Time) ([]models.Command, error)
	Finish(ctx context.Context, id string, outcome models.Outcome) error
}

const (
	DefaultInterval    = 2 * time.Second
	DefaultStaleAfter  = 5 * time.Minute
	DefaultExecTimeout = 30 * time.Second
)

// Poller claims and executes commands on a fixed interval.
type Poller struct {
	Source Source
	Driver actuator.Driver

	// Interval between claim attempts.
	Interval time.Duration
	// Limit caps commands claimed per tick.
	Limit int
	// StaleAfter is how long a processing row may sit unclaimed before
	// another poller may reclaim it (crashed executor recovery).
	StaleAfter time.Duration
	// ExecTimeout bounds a single actuator run.
	ExecTimeout time.Duration

	Logger *slog.Logger

	now func() time.Time
}

// New builds a poller with defaults filled in.
func New(src Source, drv actuator.Driver, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		Source:      src,
		Driver:      drv,
		Interval:    DefaultInterval,
		Limit:       models.DefaultClaimLimit,
		StaleAfter:  DefaultStaleAfter,
		ExecTimeout: DefaultExecTimeout,
		Logger:      logger,
		now:         time.Now,
	}
}

// Run ticks until ctx is cancelled. Claim errors are logged and retried
// next tick; they never stop the loop.
func (p *Poller) Run(ctx context.Context) error {
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	p.Logger.Info("poller started",
		"interval", interval, "limit", p.Limit, "stale_after", p.StaleAfter)
	for {
		select {
		case <-ctx.Done():
			p.Logger.Info("poller stopped")
			return ctx.Err()
		case <-ticker.C:
			if _, err := p.Tick(ctx); err != nil && !errors.Is(err, context.Canceled) {
				p.Logger.Error("poll tick failed", "err", err)
			}
		}
	}
}

// Tick claims one batch and executes it. Returns how many commands
// reached a terminal status this tick.
func (p *Poller) Tick(ctx context.Context) (int, error) {
	nowFn := p.now
	if nowFn == nil {
		nowFn = time.Now
	}
	now := nowFn().UTC()
	limit := p.Limit
	if limit <= 0 {
		limit = models.DefaultClaimLimit
	}
	staleAfter := p.StaleAfter
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}

	claimed, err := p.Source.ClaimPending(ctx, limit, now, now.Add(-staleAfter))
	if err != nil {
		return 0, fmt.Errorf("claim pending: %w", err)
	}
	if len(claimed) == 0 {
		return 0, nil
	}
	p.Logger.Debug("claimed commands", "count", len(claimed))

	done := 0
	for i := range claimed {
		if ctx.Err() != nil {
			return done, ctx.Err()
		}
		p.execute(ctx, &claimed[i])
		done++
	}
	return done, nil
}

// execute drives one claimed command to a terminal status. Failures are
// recorded on the row, never returned, so one bad command cannot block
// the rest of the batch.
func (p *Poller) execute(ctx context.Context, cmd *models.Command) {
	log := p.Logger.With("id", cmd.ID, "owner", cmd.Owner, "kind", cmd.Kind,
		"action", cmd.Action, "action_name", models.ActionName(cmd.Action))

	// Conversations never touch the motors.
	if cmd.Kind == models.KindConversation {
		p.finish(ctx, log, cmd.ID, models.Outcome{Status: models.StatusCompleted})
		otel.RecordCommandOp(ctx, "finish", cmd.Kind, models.StatusCompleted)
		log.Info("conversation completed")
		return
	}

	execCtx := ctx
	if p.ExecTimeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, p.ExecTimeout)
		defer cancel()
	}

	start := time.Now()
	err := p.Driver.Execute(execCtx, cmd.Action)
	otel.RecordActuatorRun(ctx, models.ActionName(cmd.Action), time.Since(start), err != nil)
	if err != nil {
		msg := err.Error()
		p.finish(ctx, log, cmd.ID, models.Outcome{Status: models.StatusFailed, Error: msg})
		otel.RecordCommandOp(ctx, "finish", cmd.Kind, models.StatusFailed)
		log.Error("command failed", "err", err)
		return
	}
	p.finish(ctx, log, cmd.ID, models.Outcome{Status: models.StatusCompleted})
	otel.RecordCommandOp(ctx, "finish", cmd.Kind, models.StatusCompleted)
	log.Info("command completed", "duration", time.Since(start))
}

func (p *Poller) finish(ctx context.Context, log *slog.Logger, id string, outcome models.Outcome) {
	if err := p.Source.Finish(ctx, id, outcome); err != nil {
		// Either reclaimed by a peer after the stale window or the store
		// is unreachable. The row stays processing and is reclaimed later.
		log.Error("finish failed", "status", outcome.Status, "err", err)
	}
}
