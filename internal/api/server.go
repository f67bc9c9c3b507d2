// Package api provides the HTTP server and handlers.
package api

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"net/http"
	"os"

	"github.com/printerpal/printerpal/internal/airprint"
	"github.com/printerpal/printerpal/internal/cups"
	"github.com/printerpal/printerpal/internal/events"
	"github.com/printerpal/printerpal/internal/logging"
	"github.com/printerpal/printerpal/internal/metrics"
	"github.com/printerpal/printerpal/internal/preview"
	"github.com/printerpal/printerpal/internal/printcfg"
	"github.com/printerpal/printerpal/internal/status"
	"github.com/printerpal/printerpal/internal/uploads"
	"github.com/printerpal/printerpal/webapp"
)

// Server is the HTTP server.
type Server struct {
	files       *uploads.Store
	cfgStore    *printcfg.Store
	cfg         *printcfg.State
	gateway     *cups.Gateway
	aggregator  *status.Aggregator
	broadcaster *events.Broadcaster
	renderer    *preview.Renderer
	helper      *airprint.Helper

	// nudge pokes the collector for an immediate push after a local
	// mutation (upload, config change). May be nil.
	nudge func()
}

// NewServer creates a new server. nudge may be nil.
func NewServer(
	files *uploads.Store,
	cfgStore *printcfg.Store,
	cfg *printcfg.State,
	gateway *cups.Gateway,
	aggregator *status.Aggregator,
	broadcaster *events.Broadcaster,
	renderer *preview.Renderer,
	helper *airprint.Helper,
	nudge func(),
) *Server {
	return &Server{
		files:       files,
		cfgStore:    cfgStore,
		cfg:         cfg,
		gateway:     gateway,
		aggregator:  aggregator,
		broadcaster: broadcaster,
		renderer:    renderer,
		helper:      helper,
		nudge:       nudge,
	}
}

// Handler returns the HTTP handler with logging and metrics middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealthz)

	mux.HandleFunc("GET /api/files", s.handleFiles)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/printer/{name}", s.handlePrinterDetail)
	mux.HandleFunc("GET /api/config", s.handleConfigGet)
	mux.HandleFunc("POST /api/config", s.requireToken(s.handleConfigSet))
	mux.HandleFunc("POST /api/print", s.requireToken(s.handlePrint))
	mux.HandleFunc("GET /api/preview/{filename}", s.handlePreview)
	mux.HandleFunc("POST /api/airprint/ensure", s.requireToken(s.handleAirPrintEnsure))
	mux.HandleFunc("POST /api/restart-host", s.requireToken(s.handleRestartHost))

	mux.HandleFunc("GET /events", s.handleEvents)

	mux.HandleFunc("GET /uploads/{filename}", s.handleDownload)
	mux.HandleFunc("POST /upload", s.handleUpload)
	mux.HandleFunc("DELETE /uploads/{filename}", s.requireToken(s.handleDeleteUpload))

	// Web app. WEBAPP_DIR overrides embedded assets for live-reload
	// during development.
	var appHandler http.Handler
	if dir := os.Getenv("WEBAPP_DIR"); dir != "" {
		appHandler = http.FileServer(http.Dir(dir))
	} else {
		appFS, _ := fs.Sub(webapp.Assets, ".")
		appHandler = http.FileServer(http.FS(appFS))
	}
	mux.Handle("/", appHandler)

	return metrics.Middleware(logging.Middleware(mux))
}

// requireToken gates a mutating handler behind the shared token when
// security.require_token is set. Required-but-unconfigured is a
// deployment error and answers 503 rather than letting requests through.
func (s *Server) requireToken(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sec := s.cfg.Get().Security
		if !sec.RequireToken {
			next(w, r)
			return
		}
		if sec.Token == "" {
			s.sendError(w, http.StatusServiceUnavailable, "auth token required but not configured")
			return
		}
		provided := r.Header.Get("X-PrinterPal-Token")
		if provided == "" {
			provided = r.URL.Query().Get("token")
		}
		if provided != sec.Token {
			s.sendError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		next(w, r)
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.sendJSON(w, http.StatusOK, map[string]any{
		"ok":   true,
		"cups": s.gateway.Available(r.Context()),
	})
}

// ─── SSE Events ─────────────────────────────────────────────────────────────

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.sendError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := s.broadcaster.Subscribe()
	defer s.broadcaster.Unsubscribe(ch)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-ch:
			if !ok {
				return
			}
			data, err := events.MarshalUpdate(update)
			if err != nil {
				// Keep the channel alive; the client shows the error inline.
				errData, _ := json.Marshal(map[string]any{"ts": update.TS, "error": err.Error()})
				fmt.Fprintf(w, "event: error\ndata: %s\n\n", errData)
				flusher.Flush()
				continue
			}
			fmt.Fprintf(w, "event: status\ndata: %s\n\n", data)
			flusher.Flush()
		}
	}
}

// ─── Helpers ────────────────────────────────────────────────────────────────

func (s *Server) sendJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) sendError(w http.ResponseWriter, code int, msg string) {
	s.sendJSON(w, code, map[string]any{"ok": false, "error": msg})
}
