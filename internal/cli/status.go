package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AdibBinKadir/ai-robot-pet/internal/config"
	"github.com/AdibBinKadir/ai-robot-pet/internal/daemon"
	"github.com/AdibBinKadir/ai-robot-pet/internal/store"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon status and command queue counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			home := config.MustHomeFrom(cmd.Context())
			st, err := daemon.Status(cmd.Context(), home)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !st.Running {
				_, _ = fmt.Fprintln(out, "robopet not running")
			} else {
				_, _ = fmt.Fprintf(out, "robopet running (pid %d, addr %s)\n", st.PID, st.Addr)
			}

			// Queue counts come straight from the local store so they work
			// whether or not the daemon is up.
			db, err := store.Open(home)
			if err != nil {
				return nil // no store yet, nothing to report
			}
			defer func() { _ = db.Close() }()
			counts, err := db.CountByStatus(cmd.Context())
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(out, "commands: %d pending, %d processing, %d completed, %d failed\n",
				counts.Pending, counts.Processing, counts.Completed, counts.Failed)
			return nil
		},
	}
	return cmd
}
