package httpapi

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestServerSmoke(t *testing.T) {
	t.Parallel()

	home := t.TempDir()
	app, err := NewApp(ServerOptions{Home: home, Addr: "127.0.0.1:0"})
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}

	ts := httptest.NewServer(app.Server.Handler)
	t.Cleanup(ts.Close)

	// health
	r1, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	if r1.StatusCode != 200 {
		t.Fatalf("/health status=%d", r1.StatusCode)
	}

	// submit a text command
	resp, err := http.Post(ts.URL+"/api/commands", "application/json", strings.NewReader(`{"text":"go forward"}`))
	if err != nil {
		t.Fatalf("POST /api/commands: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("POST /api/commands status=%d", resp.StatusCode)
	}
	var submit struct {
		CommandID string `json:"command_id"`
		Action    int    `json:"action"`
		Kind      string `json:"kind"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&submit); err != nil {
		t.Fatalf("decode submit: %v", err)
	}
	if submit.CommandID == "" || submit.Action != 1 || submit.Kind != "command" {
		t.Fatalf("submit: got %+v", submit)
	}

	// GET command by id
	r2, _ := http.Get(ts.URL + "/api/commands/" + submit.CommandID)
	if r2.StatusCode != 200 {
		t.Fatalf("GET command status=%d", r2.StatusCode)
	}
	var cmd map[string]any
	if err := json.NewDecoder(r2.Body).Decode(&cmd); err != nil {
		t.Fatalf("decode command: %v", err)
	}
	if cmd["status"] != "pending" || cmd["utterance"] != "go forward" {
		t.Fatalf("command: got %v", cmd)
	}

	// SSE should produce initial connected event quickly.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	req, _ := http.NewRequestWithContext(ctx, "GET", ts.URL+"/stream", nil)
	sseResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /stream: %v", err)
	}
	defer func() { _ = sseResp.Body.Close() }()

	sc := bufio.NewScanner(sseResp.Body)
	found := false
	for sc.Scan() {
		line := sc.Text()
		if strings.HasPrefix(line, "data: ") && strings.Contains(line, `"type":"connected"`) {
			found = true
			break
		}
	}
	if !found {
		t.Fatalf("did not see connected event")
	}

	// JSON error on not found
	r3, _ := http.Get(ts.URL + "/api/commands/no-such-id")
	if r3.StatusCode != 404 {
		t.Fatalf("GET missing command status=%d", r3.StatusCode)
	}
	var errBody struct{ Error string }
	if err := json.NewDecoder(r3.Body).Decode(&errBody); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if errBody.Error == "" {
		t.Fatalf("expected error message in JSON")
	}

	// status counts include the pending command
	r4, _ := http.Get(ts.URL + "/api/status")
	if r4.StatusCode != 200 {
		t.Fatalf("GET /api/status status=%d", r4.StatusCode)
	}
	var counts struct {
		Pending int64 `json:"pending"`
	}
	if err := json.NewDecoder(r4.Body).Decode(&counts); err != nil {
		t.Fatalf("decode counts: %v", err)
	}
	if counts.Pending != 1 {
		t.Fatalf("pending = %d, want 1", counts.Pending)
	}
}

func TestServerAPIKey(t *testing.T) {
	t.Parallel()

	app, err := NewApp(ServerOptions{Home: t.TempDir(), Addr: "127.0.0.1:0", APIKey: "sekret"})
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}
	ts := httptest.NewServer(app.Server.Handler)
	t.Cleanup(ts.Close)

	// /health is exempt
	r1, _ := http.Get(ts.URL + "/health")
	if r1.StatusCode != 200 {
		t.Fatalf("/health status=%d", r1.StatusCode)
	}

	// protected route without key
	r2, _ := http.Post(ts.URL+"/api/commands", "application/json", strings.NewReader(`{"text":"hi"}`))
	if r2.StatusCode != http.StatusUnauthorized {
		t.Fatalf("no key status=%d", r2.StatusCode)
	}

	// with key
	req, _ := http.NewRequest("POST", ts.URL+"/api/commands", strings.NewReader(`{"text":"hi"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", "sekret")
	r3, _ := http.DefaultClient.Do(req)
	if r3.StatusCode != 200 {
		t.Fatalf("with key status=%d", r3.StatusCode)
	}
}
