package daemon

import (
	"context"
	"log/slog"
	"time"

	"github.com/AdibBinKadir/ai-robot-pet/internal/actuator"
	"github.com/AdibBinKadir/ai-robot-pet/internal/httpapi"
	"github.com/AdibBinKadir/ai-robot-pet/internal/poller"
	"github.com/AdibBinKadir/ai-robot-pet/pkg/models"
)

// runLocalPoller drives the executor loop against the in-process store.
// Used when the daemon and the robot motors share a machine; remote
// setups run `robopet poll` on the Pi instead.
func runLocalPoller(ctx context.Context, opts StartOptions, app *httpapi.App) {
	var drv actuator.Driver
	if opts.ActuatorCmd != "" {
		drv = actuator.NewScript(opts.ActuatorCmd, opts.ActuatorArgs, slog.Default())
	} else {
		drv = actuator.Nop{Logger: slog.Default()}
	}

	p := poller.New(hubSource{app: app}, drv, slog.Default())
	if opts.IntervalSec > 0 {
		p.Interval = time.Duration(opts.IntervalSec * float64(time.Second))
	}
	if opts.ClaimLimit > 0 {
		p.Limit = opts.ClaimLimit
	}
	if opts.StaleAfterSec > 0 {
		p.StaleAfter = time.Duration(opts.StaleAfterSec) * time.Second
	}
	if opts.ExecTimeoutSec > 0 {
		p.ExecTimeout = time.Duration(opts.ExecTimeoutSec) * time.Second
	}
	_ = p.Run(ctx)
}

// hubSource wraps the app store so local claim/finish transitions reach
// SSE subscribers, same as the HTTP endpoints.
type hubSource struct {
	app *httpapi.App
}

func (s hubSource) ClaimPending(ctx context.Context, limit int, cutoff, staleBefore time.Time) ([]models.Command, error) {
	claimed, err := s.app.Store.ClaimPending(ctx, limit, cutoff, staleBefore)
	for i := range claimed {
		s.publish(claimed[i].ID, claimed[i].Owner, claimed[i].Status)
	}
	return claimed, err
}

func (s hubSource) Finish(ctx context.Context, id string, outcome models.Outcome) error {
	if err := s.app.Store.Finish(ctx, id, outcome); err != nil {
		return err
	}
	if cmd, err := s.app.Store.Get(ctx, id); err == nil {
		s.publish(cmd.ID, cmd.Owner, cmd.Status)
	}
	return nil
}

func (s hubSource) publish(id, owner, status string) {
	s.app.Hub.PublishJSON(map[string]any{
		"type":   "command_update",
		"id":     id,
		"owner":  owner,
		"status": status,
	})
}
