package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/AdibBinKadir/ai-robot-pet/internal/httpapi"
	"github.com/AdibBinKadir/ai-robot-pet/internal/interp"
	"github.com/AdibBinKadir/ai-robot-pet/internal/otel"
	"github.com/AdibBinKadir/ai-robot-pet/internal/speech"
	"github.com/AdibBinKadir/ai-robot-pet/internal/store"
)

var errNotRunning = errors.New("robopet is not running")

func StartForeground(ctx context.Context, opts StartOptions) error {
	if opts.Home == "" {
		return errors.New("home is required")
	}
	if opts.Port == 0 {
		opts.Port = 8787
	}

	// Ensure dirs exist.
	if err := os.MkdirAll(protectedDir(opts.Home), 0o755); err != nil {
		return err
	}

	if opts.LogFile != "" {
		slog.SetDefault(slog.New(slog.NewJSONHandler(&lumberjack.Logger{
			Filename:   opts.LogFile,
			MaxSize:    20, // MiB
			MaxBackups: 3,
			MaxAge:     14, // days
		}, nil)))
	}

	// Acquire singleton lock (released on exit).
	lock, err := acquireLock(lockPath(opts.Home))
	if err != nil {
		return err
	}
	defer lock.release()

	// Optional pprof.
	startPprof(opts.PprofAddr)

	// Ensure DB schema exists before serving (SQLite only; Postgres migrates on connect).
	if opts.DBDriver != "postgres" {
		if err := store.EnsureSchema(opts.Home); err != nil {
			return err
		}
	}

	// Write PID + addr files.
	pid := os.Getpid()
	if err := os.WriteFile(pidPath(opts.Home), []byte(strconv.Itoa(pid)+"\n"), 0o644); err != nil {
		return err
	}
	addr := fmt.Sprintf("0.0.0.0:%d", opts.Port)
	_ = os.WriteFile(addrPath(opts.Home), []byte(addr+"\n"), 0o644)
	defer func() {
		_ = os.Remove(pidPath(opts.Home))
		_ = os.Remove(addrPath(opts.Home))
	}()

	// Early port check for clearer error.
	if err := checkPortAvailable(opts.Port); err != nil {
		return err
	}

	if opts.OpenAIKey == "" {
		opts.OpenAIKey = os.Getenv("OPENAI_API_KEY")
	}
	if opts.InterpModel == "" {
		opts.InterpModel = os.Getenv("ROBOPET_INTERP_MODEL")
	}
	srvOpts := httpapi.ServerOptions{
		Home:     opts.Home,
		Addr:     addr,
		Dev:      opts.Dev,
		APIKey:   os.Getenv("ROBOPET_API_KEY"),
		DBDriver: opts.DBDriver,
		DBURL:    opts.DBURL,
	}
	if opts.OpenAIKey != "" {
		ai := openai.NewClient(option.WithAPIKey(opts.OpenAIKey))
		srvOpts.Interp = interp.NewOpenAI(ai, openai.ChatModel(opts.InterpModel), slog.Default())
		srvOpts.Speech = speech.NewWhisper(ai, slog.Default())
	} else {
		slog.Warn("OPENAI_API_KEY not set, using keyword matching, audio intake disabled")
	}
	if opts.EnableOtel {
		metricsHandler, err := otel.InitMeterProvider(ctx, "robopet")
		if err != nil {
			slog.Warn("otel init failed, using legacy metrics", "err", err)
		} else {
			srvOpts.MetricsHandler = metricsHandler
			srvOpts.UseOtelHTTP = true
		}
	}
	app, err := httpapi.NewApp(srvOpts)
	if err != nil {
		return err
	}
	if opts.EnableOtel {
		_ = otel.InitMetricsWithCommandCount(ctx, func() (pending, processing, completed, failed int64) {
			counts, err := app.Store.CountByStatus(context.Background())
			if err != nil {
				return 0, 0, 0, 0
			}
			return counts.Pending, counts.Processing, counts.Completed, counts.Failed
		})
	}

	slog.Info("daemon starting", "addr", addr, "home", opts.Home)
	errCh := make(chan error, 1)
	go func() {
		// Local executor runs alongside the HTTP server when the daemon
		// host also drives the motors.
		if opts.LocalPoll {
			go runLocalPoller(ctx, opts, app)
		}
		errCh <- app.Server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = app.Server.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if err == nil || errors.Is(err, context.Canceled) {
			return nil
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func StartBackground(ctx context.Context, opts StartOptions) (int, error) {
	exe, err := os.Executable()
	if err != nil {
		return 0, err
	}

	// Ensure dirs exist before starting.
	if err := os.MkdirAll(protectedDir(opts.Home), 0o755); err != nil {
		return 0, err
	}

	// Best-effort: refuse to start if already running.
	if st, _ := Status(ctx, opts.Home); st.Running {
		return 0, fmt.Errorf("robopet already running (pid %d)", st.PID)
	}

	args := []string{
		"daemon",
		"--home", opts.Home,
		"--port", strconv.Itoa(opts.Port),
		"--log-file", logPath(opts.Home),
	}
	if opts.Dev {
		args = append(args, "--dev")
	}
	if opts.PprofAddr != "" {
		args = append(args, "--pprof", opts.PprofAddr)
	}
	if opts.EnableOtel {
		args = append(args, "--otel")
	}
	if opts.DBDriver != "" {
		args = append(args, "--db-driver", opts.DBDriver)
	}
	if opts.DBURL != "" {
		args = append(args, "--db-url", opts.DBURL)
	}
	if opts.LocalPoll {
		args = append(args, "--local-poll")
		if opts.ActuatorCmd != "" {
			args = append(args, "--actuator", opts.ActuatorCmd)
		}
		for _, a := range opts.ActuatorArgs {
			args = append(args, "--actuator-args", a)
		}
		if opts.IntervalSec > 0 {
			args = append(args, "--interval", strconv.FormatFloat(opts.IntervalSec, 'f', -1, 64))
		}
		if opts.ClaimLimit > 0 {
			args = append(args, "--claim-limit", strconv.Itoa(opts.ClaimLimit))
		}
	}

	cmd := exec.Command(exe, args...)
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard // child logs to the rotated file via --log-file
	setDaemonSysProcAttr(cmd)

	if err := cmd.Start(); err != nil {
		return 0, err
	}

	// Wait briefly for pid file to appear or process to die.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if st, _ := Status(ctx, opts.Home); st.Running {
			return st.PID, nil
		}
		time.Sleep(50 * time.Millisecond)
	}

	// Fallback to started pid even if status isn't ready yet.
	return cmd.Process.Pid, nil
}

func Stop(ctx context.Context, home string) (bool, error) {
	st, err := Status(ctx, home)
	if err != nil {
		return false, err
	}
	if !st.Running {
		return false, nil
	}

	proc, err := os.FindProcess(st.PID)
	if err != nil {
		// On unix FindProcess always succeeds; keep this for completeness.
		return false, errNotRunning
	}
	if err := signalTerm(proc); err != nil {
		return false, err
	}

	deadline := time.Now().Add(15 * time.Second)
	for time.Now().Before(deadline) {
		if st2, _ := Status(ctx, home); !st2.Running {
			return true, nil
		}
		time.Sleep(100 * time.Millisecond)
	}

	_ = proc.Kill()
	return true, nil
}

func Status(ctx context.Context, home string) (StatusInfo, error) {
	pb, err := os.ReadFile(pidPath(home))
	if err != nil {
		return StatusInfo{Running: false}, nil
	}
	pidStr := strings.TrimSpace(string(pb))
	pid, err := strconv.Atoi(pidStr)
	if err != nil || pid <= 0 {
		return StatusInfo{Running: false}, nil
	}

	if !processExists(pid) {
		_ = os.Remove(pidPath(home))
		return StatusInfo{Running: false}, nil
	}

	addr := ""
	if ab, err := os.ReadFile(addrPath(home)); err == nil {
		addr = strings.TrimSpace(string(ab))
	}
	if addr == "" {
		addr = "unknown"
	}
	return StatusInfo{Running: true, PID: pid, Addr: addr}, nil
}

func checkPortAvailable(port int) error {
	ln, err := net.Listen("tcp", fmt.Sprintf("0.0.0.0:%d", port))
	if err != nil {
		return fmt.Errorf("port %d is already in use", port)
	}
	_ = ln.Close()
	return nil
}

func logPath(home string) string {
	return filepath.Join(protectedDir(home), "daemon.log")
}
