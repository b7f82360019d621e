package daemon

// StartOptions configures the daemon (home, port, interpreter, DB, local poller, etc.).
type StartOptions struct {
	Home      string
	Port      int
	Dev       bool
	PprofAddr string
	DBDriver  string // "sqlite" (default) or "postgres"
	DBURL     string // for postgres: connection string (or DATABASE_URL env)

	// Interpreter/transcriber backend. Empty OpenAIKey falls back to
	// keyword matching and disables audio intake.
	OpenAIKey   string // OPENAI_API_KEY
	InterpModel string // e.g. gpt-4o-mini

	// LocalPoll runs the executor in-process against the store, for
	// single-host setups where the daemon and the motors share a machine.
	LocalPoll      bool
	IntervalSec    float64
	ClaimLimit     int
	StaleAfterSec  int
	ExecTimeoutSec int
	ActuatorCmd    string   // motor control program; empty means dry-run
	ActuatorArgs   []string

	// LogFile, when set, sends slog output to a size-rotated file instead
	// of stderr. Used by the background daemon.
	LogFile string

	EnableOtel bool // enable OpenTelemetry metrics (Prometheus exporter + HTTP/SSE instrumentation)
}

// StatusInfo is the result of Status (running or not, PID, listen addr).
type StatusInfo struct {
	Running bool
	PID     int
	Addr    string
}
