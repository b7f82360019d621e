package httpapi

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestServer(t *testing.T, opts ServerOptions) (*App, *httptest.Server) {
	t.Helper()
	if opts.Home == "" {
		opts.Home = t.TempDir()
	}
	if opts.Addr == "" {
		opts.Addr = "127.0.0.1:0"
	}
	app, err := NewApp(opts)
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}
	ts := httptest.NewServer(app.Server.Handler)
	t.Cleanup(ts.Close)
	return app, ts
}

func submitText(t *testing.T, ts *httptest.Server, owner, text string) string {
	t.Helper()
	req, _ := http.NewRequest("POST", ts.URL+"/api/commands", strings.NewReader(`{"text":"`+text+`"}`))
	req.Header.Set("Content-Type", "application/json")
	if owner != "" {
		req.Header.Set("X-User-ID", owner)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != 200 {
		t.Fatalf("submit status=%d", resp.StatusCode)
	}
	var body struct {
		CommandID string `json:"command_id"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&body)
	if body.CommandID == "" {
		t.Fatal("empty command_id")
	}
	return body.CommandID
}

func TestSubmitRejectsBadBodies(t *testing.T) {
	t.Parallel()
	_, ts := newTestServer(t, ServerOptions{})

	r1, _ := http.Post(ts.URL+"/api/commands", "application/json", strings.NewReader(`{"text":""}`))
	if r1.StatusCode != http.StatusBadRequest {
		t.Fatalf("empty text status=%d", r1.StatusCode)
	}
	r2, _ := http.Post(ts.URL+"/api/commands", "application/json", strings.NewReader(`not json`))
	if r2.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad json status=%d", r2.StatusCode)
	}
	r3, _ := http.Get(ts.URL + "/api/commands")
	if r3.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("GET submit status=%d", r3.StatusCode)
	}
}

func TestClaimAndFinishFlow(t *testing.T) {
	t.Parallel()
	_, ts := newTestServer(t, ServerOptions{})
	id := submitText(t, ts, "u1", "turn right")

	// claim
	resp, _ := http.Post(ts.URL+"/api/commands/claim", "application/json", strings.NewReader(`{"limit":10}`))
	if resp.StatusCode != 200 {
		t.Fatalf("claim status=%d", resp.StatusCode)
	}
	var claim struct {
		Commands []struct {
			ID     string `json:"id"`
			Status string `json:"status"`
			Action int    `json:"action"`
		} `json:"commands"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&claim); err != nil {
		t.Fatalf("decode claim: %v", err)
	}
	if len(claim.Commands) != 1 || claim.Commands[0].ID != id {
		t.Fatalf("claim = %+v", claim)
	}
	if claim.Commands[0].Status != "processing" || claim.Commands[0].Action != 4 {
		t.Fatalf("claimed command = %+v", claim.Commands[0])
	}

	// second claim finds nothing
	resp2, _ := http.Post(ts.URL+"/api/commands/claim", "application/json", strings.NewReader(`{}`))
	var claim2 struct {
		Commands []json.RawMessage `json:"commands"`
	}
	_ = json.NewDecoder(resp2.Body).Decode(&claim2)
	if len(claim2.Commands) != 0 {
		t.Fatalf("second claim = %d commands", len(claim2.Commands))
	}

	// finish failed with detail
	r3, _ := http.Post(ts.URL+"/api/commands/"+id+"/finish", "application/json",
		strings.NewReader(`{"status":"failed","error":"motor stall"}`))
	if r3.StatusCode != 200 {
		t.Fatalf("finish status=%d", r3.StatusCode)
	}
	var finished struct {
		Status string  `json:"status"`
		Error  *string `json:"error"`
	}
	_ = json.NewDecoder(r3.Body).Decode(&finished)
	if finished.Status != "failed" || finished.Error == nil || *finished.Error != "motor stall" {
		t.Fatalf("finished = %+v", finished)
	}

	// double finish is a 404 (row no longer processing)
	r4, _ := http.Post(ts.URL+"/api/commands/"+id+"/finish", "application/json",
		strings.NewReader(`{"status":"completed"}`))
	if r4.StatusCode != http.StatusNotFound {
		t.Fatalf("double finish status=%d", r4.StatusCode)
	}
}

func TestFinishValidatesStatus(t *testing.T) {
	t.Parallel()
	_, ts := newTestServer(t, ServerOptions{})
	id := submitText(t, ts, "u1", "go forward")

	for _, status := range []string{"pending", "processing", "done", ""} {
		r, _ := http.Post(ts.URL+"/api/commands/"+id+"/finish", "application/json",
			strings.NewReader(`{"status":"`+status+`"}`))
		if r.StatusCode != http.StatusBadRequest {
			t.Fatalf("finish %q status=%d", status, r.StatusCode)
		}
	}
}

func TestHistoryScopedToOwner(t *testing.T) {
	t.Parallel()
	_, ts := newTestServer(t, ServerOptions{})
	submitText(t, ts, "alice", "go forward")
	time.Sleep(5 * time.Millisecond) // created_at is millisecond precision
	submitText(t, ts, "alice", "turn left")
	submitText(t, ts, "bob", "go backward")

	req, _ := http.NewRequest("GET", ts.URL+"/api/history", nil)
	req.Header.Set("X-User-ID", "alice")
	resp, _ := http.DefaultClient.Do(req)
	if resp.StatusCode != 200 {
		t.Fatalf("history status=%d", resp.StatusCode)
	}
	var body struct {
		Owner    string `json:"owner"`
		Commands []struct {
			Owner     string `json:"owner"`
			Utterance string `json:"utterance"`
		} `json:"commands"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if body.Owner != "alice" || len(body.Commands) != 2 {
		t.Fatalf("history = %+v", body)
	}
	// newest first
	if body.Commands[0].Utterance != "turn left" {
		t.Fatalf("order = %+v", body.Commands)
	}
	for _, c := range body.Commands {
		if c.Owner != "alice" {
			t.Fatalf("leaked row: %+v", c)
		}
	}
}

func TestHistoryLimitValidation(t *testing.T) {
	t.Parallel()
	_, ts := newTestServer(t, ServerOptions{})
	r, _ := http.Get(ts.URL + "/api/history?limit=zero")
	if r.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad limit status=%d", r.StatusCode)
	}
	r2, _ := http.Get(ts.URL + "/api/history?limit=-3")
	if r2.StatusCode != http.StatusBadRequest {
		t.Fatalf("negative limit status=%d", r2.StatusCode)
	}
}

func TestSubmitAudioWithoutTranscriber(t *testing.T) {
	t.Parallel()
	// No Speech configured: upload must fail cleanly, not panic.
	_, ts := newTestServer(t, ServerOptions{})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, _ := mw.CreateFormFile("audio", "clip.wav")
	_, _ = fw.Write([]byte("RIFF"))
	_ = mw.Close()

	resp, _ := http.Post(ts.URL+"/api/commands/audio", mw.FormDataContentType(), &buf)
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("audio without transcriber status=%d", resp.StatusCode)
	}
}

func TestMetricsFallback(t *testing.T) {
	t.Parallel()
	_, ts := newTestServer(t, ServerOptions{})
	submitText(t, ts, "u1", "go forward")

	resp, _ := http.Get(ts.URL + "/metrics")
	if resp.StatusCode != 200 {
		t.Fatalf("/metrics status=%d", resp.StatusCode)
	}
	buf := new(bytes.Buffer)
	_, _ = buf.ReadFrom(resp.Body)
	if !strings.Contains(buf.String(), `robopet_commands_total{status="pending"} 1`) {
		t.Fatalf("metrics body = %q", buf.String())
	}
}
