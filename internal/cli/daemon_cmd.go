package cli

import (
	"github.com/spf13/cobra"

	"github.com/AdibBinKadir/ai-robot-pet/internal/config"
	"github.com/AdibBinKadir/ai-robot-pet/internal/daemon"
)

func newDaemonCmd() *cobra.Command {
	var (
		port         int
		dev          bool
		pprofAddr    string
		enableOtel   bool
		dbDriver     string
		dbURL        string
		localPoll    bool
		actuatorCmd  string
		actuatorArgs []string
		intervalSec  float64
		claimLimit   int
		logFile      string
	)

	cmd := &cobra.Command{
		Use:    "daemon",
		Short:  "Internal: run daemon process",
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			home := config.MustHomeFrom(cmd.Context())
			return daemon.StartForeground(cmd.Context(), daemon.StartOptions{
				Home:         home,
				Port:         port,
				Dev:          dev,
				PprofAddr:    pprofAddr,
				EnableOtel:   enableOtel,
				DBDriver:     dbDriver,
				DBURL:        dbURL,
				LocalPoll:    localPoll,
				ActuatorCmd:  actuatorCmd,
				ActuatorArgs: actuatorArgs,
				IntervalSec:  intervalSec,
				ClaimLimit:   claimLimit,
				LogFile:      logFile,
			})
		},
	}

	cmd.Flags().IntVar(&port, "port", 8787, "Port for the HTTP API")
	cmd.Flags().BoolVar(&dev, "dev", false, "Enable dev mode")
	cmd.Flags().StringVar(&pprofAddr, "pprof", "", "Enable pprof on address (e.g. 127.0.0.1:6060)")
	cmd.Flags().BoolVar(&enableOtel, "otel", false, "Enable OpenTelemetry metrics")
	cmd.Flags().StringVar(&dbDriver, "db-driver", "sqlite", "Store driver: sqlite or postgres")
	cmd.Flags().StringVar(&dbURL, "db-url", "", "DB connection string (for postgres)")
	cmd.Flags().BoolVar(&localPoll, "local-poll", false, "Run the actuator poller in-process")
	cmd.Flags().StringVar(&actuatorCmd, "actuator", "", "Actuator program invoked per command")
	cmd.Flags().StringSliceVar(&actuatorArgs, "actuator-args", nil, "Extra args passed to the actuator program")
	cmd.Flags().Float64Var(&intervalSec, "interval", 2.0, "Local poller interval (seconds)")
	cmd.Flags().IntVar(&claimLimit, "claim-limit", 10, "Max commands claimed per local poll")
	cmd.Flags().StringVar(&logFile, "log-file", "", "Write JSON logs to this rotated file instead of stderr")

	return cmd
}
