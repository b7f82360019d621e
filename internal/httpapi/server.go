package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/AdibBinKadir/ai-robot-pet/internal/intake"
	"github.com/AdibBinKadir/ai-robot-pet/internal/interp"
	"github.com/AdibBinKadir/ai-robot-pet/internal/otel"
	"github.com/AdibBinKadir/ai-robot-pet/internal/poller"
	"github.com/AdibBinKadir/ai-robot-pet/internal/speech"
	"github.com/AdibBinKadir/ai-robot-pet/internal/store"
	"github.com/AdibBinKadir/ai-robot-pet/internal/store/postgres"
	"github.com/AdibBinKadir/ai-robot-pet/pkg/models"
)

// ownerHeader identifies the submitting user. Anonymous submissions share
// one owner bucket.
const (
	ownerHeader  = "X-User-ID"
	defaultOwner = "anonymous"
)

// limitBody wraps r.Body with http.MaxBytesReader so handlers cannot read more than maxBytes.
func limitBody(w http.ResponseWriter, r *http.Request, maxBytes int64) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
}

// bodyLimitMiddleware limits request body size for POST, PUT, PATCH to prevent OOM.
// The audio upload route carries its own larger limit.
func bodyLimitMiddleware(maxBytes int64, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			if r.URL.Path != "/api/commands/audio" {
				limitBody(w, r, maxBytes)
			}
		}
		next.ServeHTTP(w, r)
	})
}

// corsMiddleware sets CORS headers for dev mode (web frontend on a different origin).
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-API-Key, X-User-ID")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ServerOptions configures the HTTP server (home dir, listen addr, API key, DB, metrics).
type ServerOptions struct {
	Home           string
	Addr           string
	Dev            bool
	APIKey         string       // if set, require X-API-Key header or query api_key
	DBDriver       string       // "sqlite" (default) or "postgres"
	DBURL          string       // for postgres: connection string (or set DATABASE_URL env)
	MetricsHandler http.Handler // if set, used for /metrics (e.g. OTel Prometheus handler)
	UseOtelHTTP    bool         // if true, wrap handler with otelhttp for request metrics

	// Interp handles utterances; nil falls back to keyword matching so the
	// server works without an OpenAI key.
	Interp interp.Interpreter
	// Speech transcribes audio uploads; nil disables /api/commands/audio.
	Speech speech.Transcriber
}

// App holds the HTTP server, SSE hub, command store and intake service.
type App struct {
	Server *http.Server
	Hub    *SSEHub
	Store  store.Store
	Intake *intake.Service
	Home   string
}

// NewApp creates the HTTP app (server, hub, store, intake) and registers all routes.
func NewApp(opts ServerOptions) (*App, error) {
	hub := NewSSEHub()
	mux := http.NewServeMux()

	var st store.Store
	var err error
	if opts.DBDriver == "postgres" {
		st, err = postgres.Open(opts.DBURL)
	} else {
		st, err = store.Open(opts.Home)
	}
	if err != nil {
		return nil, err
	}

	in := opts.Interp
	if in == nil {
		in = interp.Keywords{}
	}
	svc := intake.New(st, in, opts.Speech, slog.Default())

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	})

	if opts.MetricsHandler != nil {
		mux.Handle("/metrics", opts.MetricsHandler)
	} else {
		mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			counts, _ := st.CountByStatus(r.Context())
			_, _ = w.Write([]byte("# TYPE robopet_commands_total gauge\n"))
			for _, row := range []struct {
				status string
				n      int64
			}{
				{models.StatusPending, counts.Pending},
				{models.StatusProcessing, counts.Processing},
				{models.StatusCompleted, counts.Completed},
				{models.StatusFailed, counts.Failed},
			} {
				_, _ = w.Write([]byte("robopet_commands_total{status=\"" + row.status + "\"} " + strconv.FormatInt(row.n, 10) + "\n"))
			}
		})
	}

	mux.HandleFunc("/stream", hub.Handler())

	app := &App{Hub: hub, Store: st, Intake: svc, Home: opts.Home}

	// --- Command intake ---
	mux.HandleFunc("/api/commands", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		app.handleSubmitText(w, r)
	})
	mux.HandleFunc("/api/commands/audio", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		limitBody(w, r, models.DefaultMaxAudioBodyBytes)
		app.handleSubmitAudio(w, r)
	})

	// --- Executor endpoints (remote poller) ---
	mux.HandleFunc("/api/commands/claim", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		app.handleClaim(w, r)
	})

	// /api/commands/{id} and /api/commands/{id}/finish
	mux.HandleFunc("/api/commands/", func(w http.ResponseWriter, r *http.Request) {
		rest := strings.TrimPrefix(r.URL.Path, "/api/commands/")
		parts := strings.Split(rest, "/")
		switch {
		case len(parts) == 1 && parts[0] != "":
			if r.Method != http.MethodGet {
				writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
				return
			}
			app.handleGet(w, r, parts[0])
		case len(parts) == 2 && parts[1] == "finish":
			if r.Method != http.MethodPost {
				writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
				return
			}
			app.handleFinish(w, r, parts[0])
		default:
			writeJSONError(w, http.StatusNotFound, "not found")
		}
	})

	// --- Projections ---
	mux.HandleFunc("/api/history", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		app.handleHistory(w, r)
	})
	mux.HandleFunc("/api/status", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		app.handleStatus(w, r)
	})

	var handler http.Handler = mux
	handler = bodyLimitMiddleware(models.DefaultMaxRequestBodyBytes, handler)
	if opts.Dev {
		handler = corsMiddleware(handler)
	}
	if opts.APIKey != "" {
		handler = apiKeyMiddleware(opts.APIKey, handler)
	}
	handler = requestLogMiddleware(handler)
	if opts.UseOtelHTTP {
		handler = otelhttp.NewHandler(handler, "robopet")
	}
	srv := &http.Server{
		Addr:              opts.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	srv.RegisterOnShutdown(func() {
		_ = st.Close()
	})
	app.Server = srv
	return app, nil
}

func ownerFrom(r *http.Request) string {
	if o := strings.TrimSpace(r.Header.Get(ownerHeader)); o != "" {
		return o
	}
	return defaultOwner
}

func (a *App) handleSubmitText(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if strings.TrimSpace(body.Text) == "" {
		writeJSONError(w, http.StatusBadRequest, "text required")
		return
	}
	owner := ownerFrom(r)
	res, err := a.Intake.SubmitText(r.Context(), owner, strings.TrimSpace(body.Text))
	if err != nil {
		writeJSONError(w, submitErrorCode(err), err.Error())
		return
	}
	otel.RecordCommandOp(r.Context(), "submit", res.Kind, models.StatusPending)
	a.publishCommandUpdate(res.CommandID, owner, models.StatusPending)
	writeJSON(w, res)
}

func (a *App) handleSubmitAudio(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(models.DefaultMaxAudioBodyBytes); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("audio")
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "audio file required")
		return
	}
	defer func() { _ = file.Close() }()

	owner := ownerFrom(r)
	res, err := a.Intake.SubmitAudio(r.Context(), owner, file, header.Filename)
	if err != nil {
		writeJSONError(w, submitErrorCode(err), err.Error())
		return
	}
	otel.RecordCommandOp(r.Context(), "submit", res.Kind, models.StatusPending)
	a.publishCommandUpdate(res.CommandID, owner, models.StatusPending)
	writeJSON(w, res)
}

func (a *App) handleGet(w http.ResponseWriter, r *http.Request, id string) {
	cmd, err := a.Store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeJSONError(w, http.StatusNotFound, "command not found")
			return
		}
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, cmd)
}

func (a *App) handleClaim(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Limit             int `json:"limit"`
		StaleAfterSeconds int `json:"stale_after_seconds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	limit := body.Limit
	if limit <= 0 {
		limit = models.DefaultClaimLimit
	}
	if limit > models.MaxClaimLimit {
		limit = models.MaxClaimLimit
	}
	staleAfter := time.Duration(body.StaleAfterSeconds) * time.Second
	if staleAfter <= 0 {
		staleAfter = poller.DefaultStaleAfter
	}
	now := time.Now().UTC()
	claimed, err := a.Store.ClaimPending(r.Context(), limit, now, now.Add(-staleAfter))
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	for i := range claimed {
		otel.RecordCommandOp(r.Context(), "claim", claimed[i].Kind, models.StatusProcessing)
		a.publishCommandUpdate(claimed[i].ID, claimed[i].Owner, models.StatusProcessing)
	}
	writeJSON(w, map[string]any{"commands": claimed})
}

func (a *App) handleFinish(w http.ResponseWriter, r *http.Request, id string) {
	var outcome models.Outcome
	if err := json.NewDecoder(r.Body).Decode(&outcome); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if !models.TerminalStatus(outcome.Status) {
		writeJSONError(w, http.StatusBadRequest, "status must be completed or failed")
		return
	}
	if err := a.Store.Finish(r.Context(), id, outcome); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeJSONError(w, http.StatusNotFound, "no processing command with that id")
			return
		}
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	cmd, err := a.Store.Get(r.Context(), id)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	otel.RecordCommandOp(r.Context(), "finish", cmd.Kind, cmd.Status)
	a.publishCommandUpdate(cmd.ID, cmd.Owner, cmd.Status)
	writeJSON(w, cmd)
}

func (a *App) handleHistory(w http.ResponseWriter, r *http.Request) {
	owner := ownerFrom(r)
	limit := models.DefaultHistoryLimit
	if l := r.URL.Query().Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n <= 0 {
			writeJSONError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
		if limit > models.MaxHistoryLimit {
			limit = models.MaxHistoryLimit
		}
	}
	history, err := a.Store.History(r.Context(), owner, limit)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, map[string]any{"owner": owner, "commands": history})
}

func (a *App) handleStatus(w http.ResponseWriter, r *http.Request) {
	counts, err := a.Store.CountByStatus(r.Context())
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, counts)
}

func (a *App) publishCommandUpdate(id, owner, status string) {
	a.Hub.PublishJSON(map[string]any{
		"type":   "command_update",
		"id":     id,
		"owner":  owner,
		"status": status,
	})
}

// submitErrorCode maps intake failures to HTTP codes: bad audio is the
// caller's fault, a dead interpreter or transcriber backend is not.
func submitErrorCode(err error) int {
	switch {
	case errors.Is(err, speech.ErrUnsupportedFormat):
		return http.StatusBadRequest
	case errors.Is(err, speech.ErrNoSpeech):
		return http.StatusUnprocessableEntity
	case errors.Is(err, interp.ErrUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, store.ErrDuplicate):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// responseRecorder captures status code for logging and forwards Flusher if supported.
type responseRecorder struct {
	http.ResponseWriter
	status int
}

func (r *responseRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func apiKeyMiddleware(apiKey string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		if path == "/health" || path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}
		key := r.Header.Get("X-API-Key")
		if key == "" {
			key = r.URL.Query().Get("api_key")
		}
		if key != apiKey {
			writeJSONError(w, http.StatusUnauthorized, "invalid or missing API key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func requestLogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		rec := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, req)
		slog.Info("request",
			"method", req.Method,
			"path", req.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds())
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

// writeJSONError sends a JSON body {"error": "message"} with the given status code.
func writeJSONError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": message})
}
