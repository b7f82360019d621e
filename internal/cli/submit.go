package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AdibBinKadir/ai-robot-pet/pkg/client"
	"github.com/AdibBinKadir/ai-robot-pet/pkg/models"
)

func newSubmitCmd() *cobra.Command {
	var (
		server    string
		apiKey    string
		owner     string
		audioFile string
	)

	cmd := &cobra.Command{
		Use:   "submit [utterance]",
		Short: "Submit an utterance (or audio file) to the command server",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.New(apiBase(server), apiKey)
			c.Owner = owner

			var (
				res *models.SubmitResult
				err error
			)
			switch {
			case audioFile != "":
				f, ferr := os.Open(audioFile)
				if ferr != nil {
					return ferr
				}
				defer func() { _ = f.Close() }()
				res, err = c.SubmitAudio(cmd.Context(), f, filepath.Base(audioFile))
			case len(args) > 0:
				res, err = c.Submit(cmd.Context(), strings.Join(args, " "))
			default:
				return fmt.Errorf("provide an utterance or --audio")
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "%s\n", res.Reply)
			if res.Kind == models.KindCommand {
				_, _ = fmt.Fprintf(out, "queued %s: %s (%s)\n", res.CommandID, models.ActionName(res.Action), res.Utterance)
			} else {
				_, _ = fmt.Fprintf(out, "chat %s: %s\n", res.CommandID, res.Utterance)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&server, "server", "", "Server base URL (default: ROBOPET_SERVER or http://127.0.0.1:8787)")
	cmd.Flags().StringVar(&apiKey, "api-key", os.Getenv("ROBOPET_API_KEY"), "API key sent as X-API-Key")
	cmd.Flags().StringVar(&owner, "owner", "", "Owner identity sent as X-User-ID")
	cmd.Flags().StringVar(&audioFile, "audio", "", "Submit this audio file instead of text (wav, mp3, ogg, webm, m4a, flac)")

	return cmd
}
