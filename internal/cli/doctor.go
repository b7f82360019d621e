package cli

import (
	"errors"
	"fmt"
	"os"
	"os/exec"

	"github.com/spf13/cobra"

	"github.com/AdibBinKadir/ai-robot-pet/internal/config"
)

func newDoctorCmd() *cobra.Command {
	var actuatorCmd string

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Verify runtime dependencies",
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = config.MustHomeFrom(cmd.Context()) // currently unused, but ensures home resolves

			var problems []string

			// Without an OpenAI key the server falls back to keyword matching
			// and audio intake is disabled. Worth a warning, not a failure.
			if os.Getenv("OPENAI_API_KEY") == "" {
				_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "warning: OPENAI_API_KEY not set (keyword matching only, no audio intake)")
			}

			if actuatorCmd != "" {
				if _, err := exec.LookPath(actuatorCmd); err != nil {
					problems = append(problems, fmt.Sprintf("actuator program %q not found on PATH", actuatorCmd))
				}
			}

			if len(problems) > 0 {
				for _, p := range problems {
					_, _ = fmt.Fprintln(cmd.ErrOrStderr(), p)
				}
				return errors.New("doctor checks failed")
			}

			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	}
	cmd.Flags().StringVar(&actuatorCmd, "actuator", "", "Also check that this actuator program is on PATH")
	return cmd
}
