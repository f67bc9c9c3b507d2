package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/printerpal/printerpal/internal/logging"
	"github.com/printerpal/printerpal/internal/printcfg"
)

func (s *Server) handleConfigGet(w http.ResponseWriter, r *http.Request) {
	s.sendJSON(w, http.StatusOK, map[string]any{"config": s.cfg.Get()})
}

func (s *Server) handleConfigSet(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Config *printcfg.Config `json:"config"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Config == nil {
		s.sendError(w, http.StatusBadRequest, "expected JSON body: {config: {...}}")
		return
	}

	saved, err := s.cfgStore.Save(*req.Config)
	if err != nil {
		var verr *printcfg.ValidationError
		if errors.As(err, &verr) {
			s.sendError(w, http.StatusBadRequest, verr.Error())
			return
		}
		logging.Error("config save failed", zap.Error(err))
		s.sendError(w, http.StatusInternalServerError, "failed to save config")
		return
	}
	s.cfg.Set(saved)
	logging.Info("config updated")

	// Re-advertise right away when auto-AirPrint was just turned on.
	if saved.AirPrint.AutoEnable && s.helper != nil {
		if _, err := s.helper.Ensure(r.Context()); err != nil {
			logging.Warn("airprint ensure after config save failed", zap.Error(err))
		}
	}
	if s.nudge != nil {
		s.nudge()
	}

	s.sendJSON(w, http.StatusOK, map[string]any{"ok": true, "config": saved})
}

func (s *Server) handleAirPrintEnsure(w http.ResponseWriter, r *http.Request) {
	out, err := s.helper.Ensure(r.Context())
	if err != nil {
		logging.Error("airprint ensure failed", zap.Error(err))
		s.sendError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.sendJSON(w, http.StatusOK, map[string]any{"ok": true, "output": out})
}

func (s *Server) handleRestartHost(w http.ResponseWriter, r *http.Request) {
	logging.Warn("host restart requested")
	if err := s.helper.RestartHost(r.Context()); err != nil {
		logging.Error("host restart failed", zap.Error(err))
		s.sendError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.sendJSON(w, http.StatusOK, map[string]any{"ok": true})
}
