package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/printerpal/printerpal/internal/logging"
	"github.com/printerpal/printerpal/internal/metrics"
	"github.com/printerpal/printerpal/internal/preview"
	"github.com/printerpal/printerpal/internal/printcfg"
)

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.sendJSON(w, http.StatusOK, s.aggregator.Snapshot(r.Context()))
}

func (s *Server) handlePrinterDetail(w http.ResponseWriter, r *http.Request) {
	detail, err := s.gateway.PrinterDetail(r.Context(), r.PathValue("name"))
	if err != nil {
		s.sendError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.sendJSON(w, http.StatusOK, detail)
}

type printRequest struct {
	Filename string `json:"filename"`
	Mode     string `json:"mode"`
	Printer  string `json:"printer"`
	Copies   int    `json:"copies"`
}

func (s *Server) handlePrint(w http.ResponseWriter, r *http.Request) {
	var req printRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	req.Filename = strings.TrimSpace(req.Filename)
	if req.Filename == "" {
		s.sendError(w, http.StatusBadRequest, "filename required")
		return
	}

	cfg := s.cfg.Get()
	mode := strings.ToLower(strings.TrimSpace(req.Mode))
	if mode == "" {
		mode = cfg.Printing.DefaultMode
	}
	if !printcfg.IsValidMode(mode) {
		s.sendError(w, http.StatusBadRequest, "unsupported mode: "+mode)
		return
	}
	copies := req.Copies
	if copies == 0 {
		copies = cfg.Printing.DefaultCopies
	}

	path, err := s.files.Path(req.Filename)
	if err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid filename")
		return
	}
	if _, err := os.Stat(path); err != nil {
		s.sendError(w, http.StatusNotFound, "file not found")
		return
	}

	prepared, err := s.renderer.PrepareForPrint(r.Context(), path, preview.PrepareOptions{
		Mode:        mode,
		PrintDPI:    cfg.Printing.PrintDPI,
		MaxPDFPages: cfg.Printing.MaxPDFPagesProcess,
		Threshold:   uint8(cfg.Printing.BWThreshold),
	})
	if err != nil {
		metrics.RecordPrintSubmission("prepare_error")
		var ierr *preview.InputError
		if errors.As(err, &ierr) {
			s.sendError(w, http.StatusBadRequest, ierr.Reason)
			return
		}
		logging.Error("print preparation failed", zap.String("file", req.Filename), zap.Error(err))
		s.sendError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if prepared.Prepared {
		defer os.Remove(prepared.Path)
	}

	stdout, err := s.gateway.Print(r.Context(), prepared.Path, strings.TrimSpace(req.Printer), copies, "PrinterPal: "+req.Filename)
	if err != nil {
		metrics.RecordPrintSubmission("error")
		logging.Error("print submission failed",
			zap.String("file", req.Filename),
			zap.String("printer", req.Printer),
			zap.Error(err))
		s.sendError(w, http.StatusInternalServerError, err.Error())
		return
	}

	metrics.RecordPrintSubmission("ok")
	logging.Info("print submitted",
		zap.String("file", req.Filename),
		zap.String("printer", req.Printer),
		zap.String("mode", mode),
		zap.Int("copies", copies))
	if s.nudge != nil {
		s.nudge()
	}
	s.sendJSON(w, http.StatusOK, map[string]any{"ok": true, "lp_stdout": stdout})
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	cfg := s.cfg.Get()

	mode := r.URL.Query().Get("mode")
	if mode == "" {
		mode = cfg.Printing.DefaultMode
	}
	page := queryInt(r, "page", 1)
	width := queryInt(r, "w", 720)

	path, err := s.files.Path(r.PathValue("filename"))
	if err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid filename")
		return
	}
	if _, err := os.Stat(path); err != nil {
		s.sendError(w, http.StatusNotFound, "file not found")
		return
	}

	png, err := s.renderer.Render(r.Context(), path, preview.Options{
		Mode:       mode,
		Page:       page,
		Width:      width,
		PreviewDPI: cfg.Printing.PreviewDPI,
		Threshold:  uint8(cfg.Printing.BWThreshold),
	})
	if err != nil {
		var ierr *preview.InputError
		if errors.As(err, &ierr) {
			metrics.RecordPreviewRender(mode, "bad_request", time.Since(start))
			s.sendError(w, http.StatusBadRequest, ierr.Reason)
			return
		}
		metrics.RecordPreviewRender(mode, "error", time.Since(start))
		logging.Warn("preview render failed", zap.String("path", path), zap.Error(err))
		s.sendError(w, http.StatusInternalServerError, err.Error())
		return
	}

	metrics.RecordPreviewRender(mode, "ok", time.Since(start))
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(png)
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
