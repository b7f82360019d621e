package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/AdibBinKadir/ai-robot-pet/internal/actuator"
	"github.com/AdibBinKadir/ai-robot-pet/internal/config"
	"github.com/AdibBinKadir/ai-robot-pet/internal/poller"
	"github.com/AdibBinKadir/ai-robot-pet/pkg/client"
)

// poll is the robot-side executor: it claims pending commands from a
// remote command server and drives the motors. Configuration comes from
// <home>/poller.yaml, with flags winning over the file.
func newPollCmd() *cobra.Command {
	var (
		server      string
		apiKey      string
		configFile  string
		actuatorCmd string
		once        bool
	)

	cmd := &cobra.Command{
		Use:   "poll",
		Short: "Run the actuator poller against a command server",
		RunE: func(cmd *cobra.Command, args []string) error {
			home := config.MustHomeFrom(cmd.Context())
			if configFile == "" {
				configFile = filepath.Join(home, "poller.yaml")
			}
			cfg, err := config.LoadPollerConfig(configFile)
			if err != nil {
				return err
			}
			if server != "" {
				cfg.ServerURL = server
			}
			if apiKey != "" {
				cfg.APIKey = apiKey
			}
			if actuatorCmd != "" {
				cfg.Actuator.Command = actuatorCmd
			}

			c := client.New(cfg.ServerURL, cfg.APIKey)
			c.Owner = cfg.Owner
			c.StaleAfter = cfg.StaleAfter()

			var drv actuator.Driver
			if cfg.Actuator.Command != "" {
				drv = actuator.NewScript(cfg.Actuator.Command, cfg.Actuator.Args, slog.Default())
			} else {
				slog.Warn("no actuator configured, running dry")
				drv = actuator.Nop{Logger: slog.Default()}
			}

			p := poller.New(c, drv, slog.Default())
			p.Interval = cfg.Interval()
			p.Limit = cfg.ClaimLimit
			p.StaleAfter = cfg.StaleAfter()
			p.ExecTimeout = cfg.ExecTimeout()

			if once {
				n, err := p.Tick(cmd.Context())
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "executed %d command(s)\n", n)
				return nil
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			slog.Info("poller starting", "server", cfg.ServerURL, "interval", p.Interval)
			if err := p.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&server, "server", "", "Server base URL (overrides poller.yaml)")
	cmd.Flags().StringVar(&apiKey, "api-key", os.Getenv("ROBOPET_API_KEY"), "API key sent as X-API-Key (overrides poller.yaml)")
	cmd.Flags().StringVar(&configFile, "config", "", "Path to poller.yaml (default: <home>/poller.yaml)")
	cmd.Flags().StringVar(&actuatorCmd, "actuator", "", "Actuator program (overrides poller.yaml); empty with no config = dry run")
	cmd.Flags().BoolVar(&once, "once", false, "Run a single claim-execute pass and exit")

	return cmd
}
