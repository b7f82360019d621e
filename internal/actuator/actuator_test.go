package actuator

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/AdibBinKadir/ai-robot-pet/pkg/models"
)

func TestNopRejectsUnknownAction(t *testing.T) {
	var d Nop
	if err := d.Execute(context.Background(), 9); err == nil {
		t.Fatal("expected error for action 9")
	}
	if err := d.Execute(context.Background(), -1); err == nil {
		t.Fatal("expected error for action -1")
	}
	for a := models.ActionNone; a <= models.ActionRight; a++ {
		if err := d.Execute(context.Background(), a); err != nil {
			t.Fatalf("action %d: %v", a, err)
		}
	}
}

func TestScriptPassesActionArgs(t *testing.T) {
	// sh -c 'test "$1" = 1 -a "$2" = forward' checks the arguments
	// the driver appends.
	d := NewScript("sh", []string{"-c", `test "$1" = 1 -a "$2" = forward`, "sh"}, nil)
	if err := d.Execute(context.Background(), models.ActionForward); err != nil {
		t.Fatalf("Execute: %v", err)
	}
}

func TestScriptCapturesStderr(t *testing.T) {
	d := NewScript("sh", []string{"-c", "echo motor stall >&2; exit 1", "sh"}, nil)
	err := d.Execute(context.Background(), models.ActionLeft)
	if err == nil {
		t.Fatal("expected failure")
	}
	if !strings.Contains(err.Error(), "motor stall") {
		t.Fatalf("error = %v, want stderr message included", err)
	}
	if !strings.Contains(err.Error(), "turn_left") {
		t.Fatalf("error = %v, want action name included", err)
	}
}

func TestScriptRespectsContext(t *testing.T) {
	d := NewScript("sh", []string{"-c", "sleep 10", "sh"}, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	if err := d.Execute(ctx, models.ActionForward); err == nil {
		t.Fatal("expected error from cancelled context")
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("Execute took %v, context deadline not honored", elapsed)
	}
}

func TestScriptSkipsActionNone(t *testing.T) {
	// Action 0 must never invoke the program.
	d := NewScript("false", nil, nil)
	if err := d.Execute(context.Background(), models.ActionNone); err != nil {
		t.Fatalf("Execute(0): %v", err)
	}
}
