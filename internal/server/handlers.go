package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/transmatch/internal/config"
	"github.com/hyperjump/transmatch/internal/export"
	"github.com/hyperjump/transmatch/internal/manifest"
	"github.com/hyperjump/transmatch/internal/models"
	"github.com/hyperjump/transmatch/internal/oracle"
	"github.com/hyperjump/transmatch/internal/pipeline"
	"github.com/hyperjump/transmatch/internal/storage"
)

const maxManifestUpload = 32 << 20

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	cfg := s.baseConfig()
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, cfg); err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		config.ApplyDefaults(cfg)
	}

	runID, err := s.pipeline.Start(cfg)
	switch {
	case err == nil:
		s.respondJSON(w, http.StatusAccepted, map[string]string{"runId": runID, "status": "started"})
	case errors.Is(err, pipeline.ErrAlreadyRunning), errors.Is(err, pipeline.ErrLocked):
		s.respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, pipeline.ErrInvalidConfig), errors.Is(err, oracle.ErrNoAPIKey):
		s.respondError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error("pipeline start failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if !s.pipeline.Stop() {
		s.respondJSON(w, http.StatusOK, map[string]any{"stopRequested": false, "status": "not_running"})
		return
	}
	s.respondJSON(w, http.StatusAccepted, map[string]any{"stopRequested": true, "status": "stopping"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.pipeline.Status())
}

// handleStream sends log events as server-sent events until the client goes away.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if s.broker == nil {
		s.respondError(w, http.StatusNotImplemented, "log stream not enabled")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.respondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	events, cancel := s.broker.Subscribe()
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	ticker := time.NewTicker(s.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case ev, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: log\ndata: %s\n\n", data)
			flusher.Flush()
		}
	}
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	matches, err := s.storage.ListMatches(r.Context())
	if err != nil {
		s.logger.Error("list matches failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if matches == nil {
		matches = []*models.Match{}
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"matches": matches, "count": len(matches)})
}

func (s *Server) handleCandidates(w http.ResponseWriter, r *http.Request) {
	minConf := 0.0
	if v := r.URL.Query().Get("min_confidence"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 || f > 1 {
			s.respondError(w, http.StatusBadRequest, "min_confidence must be a number between 0 and 1")
			return
		}
		minConf = f
	}
	cands, err := s.storage.ListCandidates(r.Context(), minConf)
	if err != nil {
		s.logger.Error("list candidates failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if cands == nil {
		cands = []*models.CandidateRecord{}
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"candidates": cands, "count": len(cands)})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	matches, err := s.storage.ListMatches(r.Context())
	if err != nil {
		s.logger.Error("export: list matches failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="transmatch-matches.%s"`, format))
	if err := export.Write(w, format, matches); err != nil {
		s.logger.Error("export failed", zap.Error(err))
	}
}

func (s *Server) handleSheets(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		path = s.baseConfig().TargetCorpus.ManifestPath
	}
	if path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required")
		return
	}
	wb, err := manifest.Read(path)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"path": path, "sheets": wb.Info()})
}

// handleSheetsUpload lists the sheets of a manifest sent as multipart field "file".
func (s *Server) handleSheetsUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxManifestUpload)
	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "multipart field \"file\" is required")
		return
	}
	defer file.Close()
	wb, err := manifest.ReadFrom(file)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"filename": header.Filename, "sheets": wb.Info()})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if s.index == nil {
		s.respondError(w, http.StatusNotImplemented, "document search not enabled")
		return
	}
	q := r.URL.Query()
	query := models.SearchQuery{
		Query: q.Get("q"),
		Side:  models.CorpusSide(q.Get("side")),
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		query.Limit = n
	}
	if v := q.Get("fuzzy"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "fuzzy must be a boolean")
			return
		}
		query.Fuzzy = b
	}
	if err := query.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Debug("search request", zap.String("query", query.Query), zap.Int("limit", query.Limit))
	res, err := s.index.Search(r.Context(), query)
	if err != nil {
		s.logger.Error("search failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, res)
}

// handleAITest checks the oracle credentials, optionally with AI settings from the body.
func (s *Server) handleAITest(w http.ResponseWriter, r *http.Request) {
	ai := s.baseConfig().AI
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<16))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &ai); err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	o, err := s.newOracle(ai)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	hc, ok := o.(oracle.HealthChecker)
	if !ok {
		s.respondError(w, http.StatusNotImplemented, "oracle does not support health checks")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()
	if err := hc.HealthCheck(ctx); err != nil {
		s.logger.Warn("oracle health check failed", zap.String("provider", ai.Provider), zap.Error(err))
		s.respondJSON(w, http.StatusBadGateway, map[string]any{"ok": false, "provider": ai.Provider, "error": err.Error()})
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"ok": true, "provider": ai.Provider, "model": ai.VerificationModel})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resp := map[string]any{"status": "ok", "pipeline": s.pipeline.Status().State}

	if n, err := s.storage.CountDocuments(ctx, models.SideSource); err == nil {
		resp["source_documents"] = n
	}
	if n, err := s.storage.CountDocuments(ctx, models.SideTarget); err == nil {
		resp["target_documents"] = n
	}
	if n, err := s.storage.CountMatches(ctx); err == nil {
		resp["matches"] = n
	}
	if s.index != nil {
		if n, err := s.index.DocCount(); err == nil {
			resp["indexed_documents"] = n
		}
	}
	cfg := s.baseConfig()
	if usage, total, err := storage.DiskUsage(map[string]string{
		"database": cfg.Storage.DatabasePath,
		"index":    cfg.Storage.BleveIndexPath,
	}); err == nil {
		resp["disk_usage"] = usage
		resp["disk_usage_bytes"] = total
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
