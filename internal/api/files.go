package api

import (
	"errors"
	"mime"
	"net/http"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/printerpal/printerpal/internal/logging"
	"github.com/printerpal/printerpal/internal/uploads"
)

func (s *Server) handleFiles(w http.ResponseWriter, r *http.Request) {
	s.sendJSON(w, http.StatusOK, map[string]any{"files": s.files.List()})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	maxBytes := int64(s.cfg.Get().App.MaxUploadMB) << 20
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.sendError(w, http.StatusRequestEntityTooLarge, "file too large")
			return
		}
		s.sendError(w, http.StatusBadRequest, "no file provided")
		return
	}
	defer file.Close()

	name := uploads.SecureFilename(header.Filename)
	if name == "" {
		s.sendError(w, http.StatusBadRequest, "invalid filename")
		return
	}
	if !uploads.AllowedExtension(name) {
		s.sendError(w, http.StatusUnsupportedMediaType, "unsupported file type, use PDF or common image formats")
		return
	}

	stored, err := s.files.Save(name, file)
	if err != nil {
		logging.Error("upload save failed", zap.String("name", name), zap.Error(err))
		s.sendError(w, http.StatusInternalServerError, "failed to store upload")
		return
	}

	logging.Info("file uploaded", zap.String("name", stored))
	if s.nudge != nil {
		s.nudge()
	}

	// Browser form posts get sent back to the app; API clients read JSON.
	if r.Header.Get("Accept") == "application/json" {
		s.sendJSON(w, http.StatusCreated, map[string]any{"ok": true, "name": stored})
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("filename")
	path, err := s.files.Path(name)
	if err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid filename")
		return
	}
	if _, err := os.Stat(path); err != nil {
		s.sendError(w, http.StatusNotFound, "file not found")
		return
	}

	ct := mime.TypeByExtension(filepath.Ext(name))
	if ct == "" {
		ct = "application/octet-stream"
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	http.ServeFile(w, r, path)
}

func (s *Server) handleDeleteUpload(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("filename")
	if err := s.files.Delete(name); err != nil {
		if os.IsNotExist(err) {
			s.sendError(w, http.StatusNotFound, "file not found")
			return
		}
		s.sendError(w, http.StatusBadRequest, err.Error())
		return
	}
	logging.Info("file deleted", zap.String("name", name))
	if s.nudge != nil {
		s.nudge()
	}
	s.sendJSON(w, http.StatusOK, map[string]any{"ok": true})
}
