package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AdibBinKadir/ai-robot-pet/internal/config"
	"github.com/AdibBinKadir/ai-robot-pet/internal/store"
	"github.com/AdibBinKadir/ai-robot-pet/pkg/models"
)

// command subcommands operate on the local store directly, bypassing the
// HTTP API. Useful for repair work when the daemon is down.
func newCommandCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "command",
		Short: "Inspect and repair stored commands (local store, daemon not required)",
	}
	cmd.AddCommand(newCommandGetCmd())
	cmd.AddCommand(newCommandFinishCmd())
	return cmd
}

func newCommandGetCmd() *cobra.Command {
	var id string

	cmd := &cobra.Command{
		Use:   "get",
		Short: "Print one command as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			if id == "" {
				return fmt.Errorf("--id is required")
			}
			home := config.MustHomeFrom(cmd.Context())
			st, err := store.Open(home)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			c, err := st.Get(cmd.Context(), id)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(c)
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "Command ID")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func newCommandFinishCmd() *cobra.Command {
	var (
		id       string
		status   string
		errorMsg string
	)

	cmd := &cobra.Command{
		Use:   "finish",
		Short: "Force a processing command to a terminal status",
		RunE: func(cmd *cobra.Command, args []string) error {
			if id == "" {
				return fmt.Errorf("--id is required")
			}
			if !models.TerminalStatus(status) {
				return fmt.Errorf("--status must be %q or %q", models.StatusCompleted, models.StatusFailed)
			}
			home := config.MustHomeFrom(cmd.Context())
			st, err := store.Open(home)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			if err := st.Finish(cmd.Context(), id, models.Outcome{Status: status, Error: errorMsg}); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Command %s finished as %s\n", id, status)
			return nil
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "Command ID")
	cmd.Flags().StringVar(&status, "status", models.StatusCompleted, "Terminal status (completed or failed)")
	cmd.Flags().StringVar(&errorMsg, "error", "", "Failure detail (with --status failed)")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}
