package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/AdibBinKadir/ai-robot-pet/pkg/client"
)

func newHistoryCmd() *cobra.Command {
	var (
		server string
		apiKey string
		owner  string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the owner's recent commands, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.New(apiBase(server), apiKey)
			c.Owner = owner

			cmds, err := c.History(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(cmds) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "no commands yet")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "CREATED\tSTATUS\tKIND\tACTION\tUTTERANCE")
			for _, c := range cmds {
				_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
					c.CreatedAt.Local().Format("2006-01-02 15:04:05"), c.Status, c.Kind, c.Action, c.Utterance)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&server, "server", "", "Server base URL (default: ROBOPET_SERVER or http://127.0.0.1:8787)")
	cmd.Flags().StringVar(&apiKey, "api-key", os.Getenv("ROBOPET_API_KEY"), "API key sent as X-API-Key")
	cmd.Flags().StringVar(&owner, "owner", "", "Owner identity sent as X-User-ID")
	cmd.Flags().IntVar(&limit, "limit", 20, "Max rows to return")

	return cmd
}
