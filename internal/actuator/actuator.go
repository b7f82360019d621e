// Package actuator drives the robot hardware. The default driver shells
// out to a motor control script on the Pi; a no-op driver serves dry runs
// and machines without motors.
package actuator

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"

	"github.com/AdibBinKadir/ai-robot-pet/pkg/models"
)

// Driver executes a single movement action. Implementations must respect
// ctx cancellation; a hung motor script is killed when the deadline
// passes.
type Driver interface {
	Execute(ctx context.Context, action int) error
}

// Script runs an external motor control program, passing the action
// number and its name as arguments. Stderr is captured for the error
// message when the program fails.
type Script struct {
	// Command is the program to run, e.g. "/usr/local/bin/robot-motor".
	Command string
	// Args are prepended before the action arguments.
	Args   []string
	Logger *slog.Logger
}

// NewScript builds a script driver for the given program.
func NewScript(command string, args []string, logger *slog.Logger) *Script {
	if logger == nil {
		logger = slog.Default()
	}
	return &Script{Command: command, Args: args, Logger: logger}
}

func (s *Script) Execute(ctx context.Context, action int) error {
	if !models.ValidAction(action) {
		return fmt.Errorf("unknown action %d", action)
	}
	if action == models.ActionNone {
		return nil
	}
	args := append(append([]string(nil), s.Args...),
		strconv.Itoa(action), models.ActionName(action))
	cmd := exec.CommandContext(ctx, s.Command, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	s.Logger.Debug("running actuator script", "command", s.Command, "action", action)
	if err := cmd.Run(); err != nil {
		if msg := bytes.TrimSpace(stderr.Bytes()); len(msg) > 0 {
			return fmt.Errorf("actuator %s: %w: %s", models.ActionName(action), err, msg)
		}
		return fmt.Errorf("actuator %s: %w", models.ActionName(action), err)
	}
	return nil
}

// Nop validates the action and does nothing. Useful for development and
// for hosts that only relay commands.
type Nop struct {
	Logger *slog.Logger
}

func (n Nop) Execute(_ context.Context, action int) error {
	if !models.ValidAction(action) {
		return fmt.Errorf("unknown action %d", action)
	}
	if n.Logger != nil {
		n.Logger.Info("dry-run action", "action", action, "name", models.ActionName(action))
	}
	return nil
}
