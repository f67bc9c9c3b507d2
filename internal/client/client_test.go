package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/printerpal/printerpal/internal/printcfg"
	"github.com/printerpal/printerpal/internal/status"
	"github.com/printerpal/printerpal/internal/uploads"
)

func TestFetchFiles(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/files" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"files": []uploads.File{
				{Name: "report.pdf", Size: 1024, SizeH: "1.0 KB", MTime: 1700000000},
			},
		})
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL})
	files, err := c.FetchFiles(context.Background())
	if err != nil {
		t.Fatalf("FetchFiles: %v", err)
	}
	if len(files) != 1 || files[0].Name != "report.pdf" {
		t.Fatalf("unexpected files: %+v", files)
	}
}

func TestFetchStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"cups_available":true,"default_printer":"HP_LaserJet","printers":[{"name":"HP_LaserJet","state":"idle","is_default":true,"accepting":true}]}`)
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL})
	snap, err := c.FetchStatus(context.Background())
	if err != nil {
		t.Fatalf("FetchStatus: %v", err)
	}
	if !snap.CUPSAvailable || snap.DefaultPrinter != "HP_LaserJet" {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	if !snap.HasPrinter("HP_LaserJet") {
		t.Fatal("expected HP_LaserJet in printer list")
	}
}

func TestPrintSendsToken(t *testing.T) {
	var gotToken string
	var gotBody PrintRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotToken = r.Header.Get(TokenHeader)
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(map[string]any{"ok": true, "lp_stdout": "request id is HP_LaserJet-42"})
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, Token: "sekrit"})
	out, err := c.Print(context.Background(), PrintRequest{Filename: "report.pdf", Mode: "bw", Copies: 2})
	if err != nil {
		t.Fatalf("Print: %v", err)
	}
	if out != "request id is HP_LaserJet-42" {
		t.Fatalf("unexpected stdout %q", out)
	}
	if gotToken != "sekrit" {
		t.Fatalf("token header = %q", gotToken)
	}
	if gotBody.Filename != "report.pdf" || gotBody.Mode != "bw" || gotBody.Copies != 2 {
		t.Fatalf("unexpected body: %+v", gotBody)
	}
}

func TestErrorEnvelope(t *testing.T) {
	tests := []struct {
		name string
		code int
		body string
		want string
	}{
		{"error field", 400, `{"ok":false,"error":"filename is required"}`, "filename is required"},
		{"message field", 500, `{"message":"lp failed"}`, "lp failed"},
		{"raw body", 502, "bad gateway", "bad gateway"},
		{"empty body", 503, "", "Service Unavailable"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.code)
				fmt.Fprint(w, tt.body)
			}))
			defer srv.Close()

			c := New(Config{BaseURL: srv.URL})
			_, err := c.Print(context.Background(), PrintRequest{Filename: "x.pdf"})
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("expected APIError, got %v", err)
			}
			if apiErr.StatusCode != tt.code || apiErr.Message != tt.want {
				t.Fatalf("got %d %q, want %d %q", apiErr.StatusCode, apiErr.Message, tt.code, tt.want)
			}
		})
	}
}

func TestSaveConfigRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Config printcfg.Config `json:"config"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{"ok": true, "config": body.Config})
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL})
	cfg := printcfg.Default()
	cfg.Printing.DefaultMode = "dither"
	saved, err := c.SaveConfig(context.Background(), cfg)
	if err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}
	if saved.Printing.DefaultMode != "dither" {
		t.Fatalf("default_mode = %q", saved.Printing.DefaultMode)
	}
}

func TestPreviewURL(t *testing.T) {
	c := New(Config{BaseURL: "http://box:8080"})
	u := c.PreviewURL("scan 1.pdf", "bw", 3, 800, "tok123")
	if !strings.HasPrefix(u, "http://box:8080/api/preview/scan%201.pdf?") {
		t.Fatalf("unexpected prefix: %s", u)
	}
	for _, part := range []string{"mode=bw", "page=3", "w=800", "_=tok123"} {
		if !strings.Contains(u, part) {
			t.Errorf("missing %q in %s", part, u)
		}
	}
}

func TestSubscriberReceivesUpdates(t *testing.T) {
	update := status.StatusUpdate{
		TS:    1700000000,
		Files: []uploads.File{{Name: "a.pdf"}},
	}
	payload, _ := json.Marshal(update)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/events" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		fmt.Fprintf(w, "event: status\ndata: %s\n\n", payload)
		flusher.Flush()
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub := NewSubscriber(New(Config{BaseURL: srv.URL}))
	updates, links := sub.Subscribe(ctx)

	select {
	case got := <-updates:
		if got.TS != 1700000000 || len(got.Files) != 1 || got.Files[0].Name != "a.pdf" {
			t.Fatalf("unexpected update: %+v", got)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for update")
	}

	select {
	case state := <-links:
		if state != LinkLive {
			t.Fatalf("link state = %v, want live", state)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for link state")
	}
}

func TestSubscriberReconnects(t *testing.T) {
	var conns atomic.Int32
	payload, _ := json.Marshal(status.StatusUpdate{TS: 42})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conns.Add(1)
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		fmt.Fprintf(w, "event: status\ndata: %s\n\n", payload)
		flusher.Flush()
		// Close immediately so the subscriber has to reconnect.
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub := NewSubscriber(New(Config{BaseURL: srv.URL}))
	sub.reconnectMin = 10 * time.Millisecond
	updates, links := sub.Subscribe(ctx)

	sawReconnect := false
	received := 0
	deadline := time.After(3 * time.Second)
	for received < 2 || !sawReconnect {
		select {
		case <-updates:
			received++
		case state := <-links:
			if state == LinkReconnecting {
				sawReconnect = true
			}
		case <-deadline:
			t.Fatalf("timed out: received=%d sawReconnect=%v conns=%d", received, sawReconnect, conns.Load())
		}
	}
	if conns.Load() < 2 {
		t.Fatalf("expected at least 2 connections, got %d", conns.Load())
	}
}

func TestSubscriberIgnoresErrorEvents(t *testing.T) {
	good, _ := json.Marshal(status.StatusUpdate{TS: 7})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		fmt.Fprint(w, "event: error\ndata: {\"ts\":1,\"error\":\"encode failed\"}\n\n")
		fmt.Fprintf(w, "event: status\ndata: %s\n\n", good)
		flusher.Flush()
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub := NewSubscriber(New(Config{BaseURL: srv.URL}))
	updates, _ := sub.Subscribe(ctx)

	select {
	case got := <-updates:
		if got.TS != 7 {
			t.Fatalf("expected the status event, got %+v", got)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for update")
	}
}
