package cli

import (
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"runtime"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/AdibBinKadir/ai-robot-pet/internal/config"
	"github.com/AdibBinKadir/ai-robot-pet/internal/daemon"
)

func newStartCmd() *cobra.Command {
	var (
		port         int
		foreground   bool
		dev          bool
		pprofAddr    string
		envFile      string
		dbDriver     string
		dbURL        string
		enableOtel   bool
		localPoll    bool
		actuatorCmd  string
		actuatorArgs []string
		intervalSec  float64
		claimLimit   int
	)

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the robopet command server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if envFile != "" {
				if err := godotenv.Load(envFile); err != nil {
					return fmt.Errorf("load env file: %w", err)
				}
			}
			home := config.MustHomeFrom(cmd.Context())

			opts := daemon.StartOptions{
				Home:         home,
				Port:         port,
				Dev:          dev,
				PprofAddr:    pprofAddr,
				DBDriver:     dbDriver,
				DBURL:        dbURL,
				EnableOtel:   enableOtel,
				LocalPoll:    localPoll,
				ActuatorCmd:  actuatorCmd,
				ActuatorArgs: actuatorArgs,
				IntervalSec:  intervalSec,
				ClaimLimit:   claimLimit,
			}

			api := (&url.URL{Scheme: "http", Host: fmt.Sprintf("localhost:%d", port)}).String()

			if foreground {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Starting robopet in foreground on %s\n", api)
				return daemon.StartForeground(cmd.Context(), opts)
			}

			pid, err := daemon.StartBackground(cmd.Context(), opts)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "robopet started (pid %d)\n", pid)
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "API: %s\n", api)

			// Best-effort open browser on the status page (Linux: xdg-open, macOS: open, Windows: start).
			_ = openBrowser(api)
			return nil
		},
	}

	cmd.Flags().IntVar(&port, "port", 8787, "Port for the HTTP API")
	cmd.Flags().BoolVar(&foreground, "foreground", false, "Run in foreground (do not daemonize)")
	cmd.Flags().BoolVar(&dev, "dev", false, "Enable dev mode (permissive CORS)")
	cmd.Flags().StringVar(&pprofAddr, "pprof", "", "Enable pprof on address (e.g. 127.0.0.1:6060)")
	cmd.Flags().StringVar(&envFile, "env-file", "", "Load env vars from file (KEY=VALUE per line) before starting")
	cmd.Flags().StringVar(&dbDriver, "db-driver", "sqlite", "Store driver: sqlite or postgres")
	cmd.Flags().StringVar(&dbURL, "db-url", "", "DB connection string (for postgres; or set DATABASE_URL)")
	cmd.Flags().BoolVar(&enableOtel, "otel", true, "Enable OpenTelemetry metrics (Prometheus exporter)")
	cmd.Flags().BoolVar(&localPoll, "local-poll", false, "Run the actuator poller in-process (server host drives the motors)")
	cmd.Flags().StringVar(&actuatorCmd, "actuator", "", "Actuator program invoked per command (with --local-poll); empty = dry run")
	cmd.Flags().StringSliceVar(&actuatorArgs, "actuator-args", nil, "Extra args passed to the actuator program")
	cmd.Flags().Float64Var(&intervalSec, "interval", 2.0, "Local poller interval (seconds)")
	cmd.Flags().IntVar(&claimLimit, "claim-limit", 10, "Max commands claimed per local poll")

	return cmd
}

func openBrowser(u string) error {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", u).Start()
	case "windows":
		return exec.Command("cmd", "/c", "start", u).Start()
	default:
		// Linux and others
		if _, err := exec.LookPath("xdg-open"); err != nil {
			return err
		}
		return exec.Command("xdg-open", u).Start()
	}
}

// apiBase resolves the server base URL for client commands: explicit
// --server flag, then ROBOPET_SERVER, then localhost on the default port.
func apiBase(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if v := os.Getenv("ROBOPET_SERVER"); v != "" {
		return v
	}
	return "http://127.0.0.1:8787"
}
