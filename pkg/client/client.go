// Package client provides a Go SDK for the robopet HTTP API. The poller
// on the robot host uses it to claim and finish commands over the wire.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/AdibBinKadir/ai-robot-pet/pkg/models"
)

// Client calls the robopet HTTP API. It is safe for concurrent use.
type Client struct {
	BaseURL    string       // e.g. "http://localhost:8787"
	APIKey     string       // optional; set for X-API-Key
	Owner      string       // optional; sent as X-User-ID on submit/history
	HTTPClient *http.Client // optional; nil uses http.DefaultClient

	// StaleAfter is sent with claims so the server can reclaim rows left
	// processing by a crashed executor. Zero means the server default.
	StaleAfter time.Duration
}

// New returns a client for the given base URL (e.g. "http://localhost:8787").
// APIKey is optional; when set, requests use the X-API-Key header.
func New(baseURL, apiKey string) *Client {
	return &Client{BaseURL: baseURL, APIKey: apiKey}
}

func (c *Client) client() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(b)
	}
	u := c.BaseURL + path
	req, err := http.NewRequestWithContext(ctx, method, u, bodyReader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.APIKey != "" {
		req.Header.Set("X-API-Key", c.APIKey)
	}
	if c.Owner != "" {
		req.Header.Set("X-User-ID", c.Owner)
	}
	return c.client().Do(req)
}

func (c *Client) doJSON(ctx context.Context, method, path string, body any, out any) error {
	resp, err := c.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errBody struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&errBody)
		if errBody.Error != "" {
			return fmt.Errorf("api %s %s: %s", method, path, errBody.Error)
		}
		return fmt.Errorf("api %s %s: status %d", method, path, resp.StatusCode)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// Health returns the /health response (ok: true).
func (c *Client) Health(ctx context.Context) (ok bool, err error) {
	var out struct {
		OK bool `json:"ok"`
	}
	err = c.doJSON(ctx, http.MethodGet, "/health", nil, &out)
	return out.OK, err
}

// Submit sends a typed utterance and returns the interpreter's verdict.
func (c *Client) Submit(ctx context.Context, text string) (*models.SubmitResult, error) {
	var out models.SubmitResult
	err := c.doJSON(ctx, http.MethodPost, "/api/commands", map[string]string{"text": text}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// SubmitAudio uploads a recorded clip for transcription and interpretation.
func (c *Client) SubmitAudio(ctx context.Context, audio io.Reader, filename string) (*models.SubmitResult, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("audio", filename)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(fw, audio); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/commands/audio", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if c.APIKey != "" {
		req.Header.Set("X-API-Key", c.APIKey)
	}
	if c.Owner != "" {
		req.Header.Set("X-User-ID", c.Owner)
	}
	resp, err := c.client().Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errBody struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&errBody)
		if errBody.Error != "" {
			return nil, fmt.Errorf("api POST /api/commands/audio: %s", errBody.Error)
		}
		return nil, fmt.Errorf("api POST /api/commands/audio: status %d", resp.StatusCode)
	}
	var out models.SubmitResult
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetCommand returns one command by id.
func (c *Client) GetCommand(ctx context.Context, id string) (*models.Command, error) {
	var out models.Command
	err := c.doJSON(ctx, http.MethodGet, "/api/commands/"+url.PathEscape(id), nil, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// History returns the caller's commands, newest first (limit 0 = server default).
func (c *Client) History(ctx context.Context, limit int) ([]models.Command, error) {
	path := "/api/history"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var out struct {
		Commands []models.Command `json:"commands"`
	}
	err := c.doJSON(ctx, http.MethodGet, path, nil, &out)
	return out.Commands, err
}

// Status returns the per-status command counts.
func (c *Client) Status(ctx context.Context) (*models.StatusCounts, error) {
	var out models.StatusCounts
	err := c.doJSON(ctx, http.MethodGet, "/api/status", nil, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ClaimPending atomically claims up to limit executable commands, oldest
// first. The cutoff argument exists to satisfy the poller source contract;
// the server always claims relative to its own clock.
func (c *Client) ClaimPending(ctx context.Context, limit int, _ time.Time, _ time.Time) ([]models.Command, error) {
	body := map[string]int{"limit": limit}
	if c.StaleAfter > 0 {
		body["stale_after_seconds"] = int(c.StaleAfter / time.Second)
	}
	var out struct {
		Commands []models.Command `json:"commands"`
	}
	err := c.doJSON(ctx, http.MethodPost, "/api/commands/claim", body, &out)
	return out.Commands, err
}

// Finish reports the terminal outcome for a claimed command.
func (c *Client) Finish(ctx context.Context, id string, outcome models.Outcome) error {
	return c.doJSON(ctx, http.MethodPost, "/api/commands/"+url.PathEscape(id)+"/finish", outcome, nil)
}
