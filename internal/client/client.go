// Package client provides the HTTP client used by the terminal UI to talk
// to a running server: REST calls for files, status, config, and printing,
// plus a reconnecting subscriber for the live event stream.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/printerpal/printerpal/internal/printcfg"
	"github.com/printerpal/printerpal/internal/status"
	"github.com/printerpal/printerpal/internal/uploads"
)

// TokenHeader is the request header carrying the shared secret.
const TokenHeader = "X-PrinterPal-Token"

// Client talks to a server over its JSON API.
type Client struct {
	baseURL    string
	httpClient *http.Client

	mu    sync.RWMutex
	token string
}

// Config holds client configuration.
type Config struct {
	BaseURL string
	Timeout time.Duration
	Token   string
}

// New creates a client for the server at cfg.BaseURL.
func New(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
		token:      cfg.Token,
	}
}

// SetToken replaces the shared secret sent with privileged requests.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

func (c *Client) applyToken(req *http.Request) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.token != "" {
		req.Header.Set(TokenHeader, c.token)
	}
}

// APIError is a non-2xx response decoded from the server's error envelope.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

// errorFromResponse decodes the {"error": ...} envelope, falling back to the
// raw body when the server sent something else.
func errorFromResponse(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var envelope struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	msg := ""
	if err := json.Unmarshal(body, &envelope); err == nil {
		if envelope.Error != "" {
			msg = envelope.Error
		} else if envelope.Message != "" {
			msg = envelope.Message
		}
	}
	if msg == "" {
		msg = strings.TrimSpace(string(body))
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return &APIError{StatusCode: resp.StatusCode, Message: msg}
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	c.applyToken(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errorFromResponse(resp)
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Health reports whether the server and its print scheduler are up.
type Health struct {
	OK   bool `json:"ok"`
	CUPS bool `json:"cups"`
}

// FetchHealth probes the health endpoint.
func (c *Client) FetchHealth(ctx context.Context) (Health, error) {
	var h Health
	err := c.do(ctx, http.MethodGet, "/healthz", nil, &h)
	return h, err
}

// FetchFiles returns the current upload listing.
func (c *Client) FetchFiles(ctx context.Context) ([]uploads.File, error) {
	var out struct {
		Files []uploads.File `json:"files"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/files", nil, &out); err != nil {
		return nil, err
	}
	return out.Files, nil
}

// FetchStatus returns a full printer/queue snapshot.
func (c *Client) FetchStatus(ctx context.Context) (status.Snapshot, error) {
	var snap status.Snapshot
	err := c.do(ctx, http.MethodGet, "/api/status", nil, &snap)
	return snap, err
}

// FetchConfig returns the server's live configuration document.
func (c *Client) FetchConfig(ctx context.Context) (printcfg.Config, error) {
	var out struct {
		Config printcfg.Config `json:"config"`
	}
	err := c.do(ctx, http.MethodGet, "/api/config", nil, &out)
	return out.Config, err
}

// SaveConfig replaces the server configuration wholesale and returns the
// document the server persisted.
func (c *Client) SaveConfig(ctx context.Context, cfg printcfg.Config) (printcfg.Config, error) {
	body := struct {
		Config printcfg.Config `json:"config"`
	}{Config: cfg}
	var out struct {
		Config printcfg.Config `json:"config"`
	}
	err := c.do(ctx, http.MethodPost, "/api/config", body, &out)
	return out.Config, err
}

// PrintRequest names an uploaded file and how to print it.
type PrintRequest struct {
	Filename string `json:"filename"`
	Mode     string `json:"mode,omitempty"`
	Printer  string `json:"printer,omitempty"`
	Copies   int    `json:"copies,omitempty"`
}

// Print submits a print job and returns the spooler's stdout.
func (c *Client) Print(ctx context.Context, req PrintRequest) (string, error) {
	var out struct {
		LPStdout string `json:"lp_stdout"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/print", req, &out); err != nil {
		return "", err
	}
	return out.LPStdout, nil
}

// EnsureAirPrint asks the server to re-register AirPrint services and
// returns the helper's output.
func (c *Client) EnsureAirPrint(ctx context.Context) (string, error) {
	var out struct {
		Output string `json:"output"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/airprint/ensure", nil, &out); err != nil {
		return "", err
	}
	return out.Output, nil
}

// RestartHost asks the server to reboot its host.
func (c *Client) RestartHost(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/restart-host", nil, nil)
}

// DeleteFile removes an uploaded document.
func (c *Client) DeleteFile(ctx context.Context, name string) error {
	return c.do(ctx, http.MethodDelete, "/uploads/"+url.PathEscape(name), nil, nil)
}

// PreviewURL builds the URL of a rendered preview page. The cacheBust token
// forces a fresh fetch; pass a fresh value whenever mode, page, or width
// change.
func (c *Client) PreviewURL(filename, mode string, page, width int, cacheBust string) string {
	q := url.Values{}
	q.Set("mode", mode)
	q.Set("page", strconv.Itoa(page))
	q.Set("w", strconv.Itoa(width))
	if cacheBust != "" {
		q.Set("_", cacheBust)
	}
	return c.baseURL + "/api/preview/" + url.PathEscape(filename) + "?" + q.Encode()
}

// FetchPreview downloads a rendered preview page as PNG bytes.
func (c *Client) FetchPreview(ctx context.Context, filename, mode string, page, width int) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.PreviewURL(filename, mode, page, width, ""), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	c.applyToken(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch preview: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errorFromResponse(resp)
	}
	return io.ReadAll(resp.Body)
}
