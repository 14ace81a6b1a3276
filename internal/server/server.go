// Package server exposes the blob engine over HTTP and WebSocket.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/normanking/cortexblob/internal/blob"
	"github.com/normanking/cortexblob/internal/bus"
	"github.com/normanking/cortexblob/internal/config"
	"github.com/normanking/cortexblob/internal/emotion"
	"github.com/normanking/cortexblob/internal/logging"
	"github.com/normanking/cortexblob/internal/session"
)

const maxBodySize = 64 * 1024

// Engine is the part of the blob engine the API drives.
type Engine interface {
	ApplyPreset(name string) bool
	OnSentiment(label string) bool

	ExportPresets() emotion.Presets
	Preset(name string) (emotion.Vector, error)
	SavePreset(name string) (emotion.Vector, error)
	UpsertPreset(name string, v emotion.Vector) error
	RemovePreset(name string) error

	StartSession() (uuid.UUID, error)
	EndSession() (session.Summary, error)
	SessionSummary() map[string]string
	SessionState() (uuid.UUID, bool)

	Frame() blob.Frame
	Bus() *bus.EventBus
}

// Server handles the HTTP API and WebSocket clients
type Server struct {
	cfg        config.ServerConfig
	engine     Engine
	logger     *logging.Logger
	hub        *hub
	httpServer *http.Server
}

func New(cfg config.ServerConfig, engine Engine, logger *logging.Logger) *Server {
	if cfg.FrameStride <= 0 {
		cfg.FrameStride = 1
	}

	s := &Server{
		cfg:    cfg,
		engine: engine,
		logger: logger,
		hub:    newHub(logger),
	}

	engine.Bus().SubscribeAll(func(ev bus.Event) {
		s.hub.broadcast(outbound{Type: "event", Data: ev})
	})
	logger.SetOnLog(func(entry logging.LogEntry) {
		s.hub.broadcast(outbound{Type: "log", Data: entry})
	})
	return s
}

// Handler returns the API routes
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/v1/frame", s.handleFrame)

	mux.HandleFunc("GET /api/v1/presets", s.handleListPresets)
	mux.HandleFunc("GET /api/v1/presets/{name}", s.handleGetPreset)
	mux.HandleFunc("PUT /api/v1/presets/{name}", s.handlePutPreset)
	mux.HandleFunc("DELETE /api/v1/presets/{name}", s.handleDeletePreset)
	mux.HandleFunc("POST /api/v1/presets/{name}/apply", s.handleApplyPreset)
	mux.HandleFunc("POST /api/v1/presets/{name}/save", s.handleSavePreset)

	mux.HandleFunc("POST /api/v1/sentiment", s.handleSentiment)

	mux.HandleFunc("GET /api/v1/session", s.handleSessionState)
	mux.HandleFunc("POST /api/v1/session/start", s.handleSessionStart)
	mux.HandleFunc("POST /api/v1/session/end", s.handleSessionEnd)
	mux.HandleFunc("GET /api/v1/session/summary", s.handleSessionSummary)

	mux.HandleFunc("GET /api/v1/logs", s.handleLogs)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /ws", s.handleWebSocket)

	return mux
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	s.logger.Info("server", "Starting API server", map[string]any{"addr": s.cfg.Addr})

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.hub.closeAll()
		return s.httpServer.Shutdown(shutdownCtx)
	}
}

// OnFrame pushes every FrameStride-th frame to websocket clients
func (s *Server) OnFrame(f blob.Frame) {
	if f.Index%uint64(s.cfg.FrameStride) != 0 {
		return
	}
	s.hub.broadcast(outbound{Type: "frame", Data: f})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	_, active := s.engine.SessionState()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"preset":  s.engine.Frame().Preset,
		"session": active,
		"clients": s.hub.count(),
	})
}

func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Frame())
}

func (s *Server) handleListPresets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.ExportPresets())
}

func (s *Server) handleGetPreset(w http.ResponseWriter, r *http.Request) {
	v, err := s.engine.Preset(r.PathValue("name"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// handlePutPreset decodes the body over the stored preset, or over the
// defaults for a new name, so partial updates are allowed.
func (s *Server) handlePutPreset(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	v, err := s.engine.Preset(name)
	if err != nil {
		v = emotion.DefaultVector()
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		http.Error(w, "invalid preset body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if !v.Modifier.Valid() {
		http.Error(w, "invalid modifier "+strconv.Itoa(int(v.Modifier)), http.StatusBadRequest)
		return
	}

	if err := s.engine.UpsertPreset(name, v); err != nil {
		writeError(w, err)
		return
	}
	s.logger.Info("server", "Preset stored", map[string]any{"preset": name})
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleDeletePreset(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if err := s.engine.RemovePreset(name); err != nil {
		writeError(w, err)
		return
	}
	s.logger.Info("server", "Preset removed", map[string]any{"preset": name})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleApplyPreset(w http.ResponseWriter, r *http.Request) {
	s.writeQueued(w, s.engine.ApplyPreset(r.PathValue("name")))
}

func (s *Server) handleSavePreset(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	v, err := s.engine.SavePreset(name)
	if err != nil {
		writeError(w, err)
		return
	}
	s.logger.Info("server", "Live state saved", map[string]any{"preset": name})
	writeJSON(w, http.StatusOK, v)
}

type sentimentRequest struct {
	Label string `json:"label"`
}

func (s *Server) handleSentiment(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)

	var req sentimentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	s.writeQueued(w, s.engine.OnSentiment(req.Label))
}

func (s *Server) handleSessionState(w http.ResponseWriter, r *http.Request) {
	id, active := s.engine.SessionState()
	writeJSON(w, http.StatusOK, sessionState(id, active))
}

func (s *Server) handleSessionStart(w http.ResponseWriter, r *http.Request) {
	id, err := s.engine.StartSession()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionState(id, true))
}

func (s *Server) handleSessionEnd(w http.ResponseWriter, r *http.Request) {
	summary, err := s.engine.EndSession()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"summary":     summary.String(),
		"percentages": summary.Percentages(),
	})
}

func (s *Server) handleSessionSummary(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.SessionSummary())
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}
	writeJSON(w, http.StatusOK, s.logger.GetHistory(limit))
}

func (s *Server) writeQueued(w http.ResponseWriter, queued bool) {
	if !queued {
		http.Error(w, "event queue full", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]bool{"queued": true})
}

func sessionState(id uuid.UUID, active bool) map[string]any {
	state := map[string]any{"active": active}
	if id != uuid.Nil {
		state["id"] = id.String()
	}
	return state
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// statusFor maps engine errors onto HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, emotion.ErrPresetNotFound):
		return http.StatusNotFound
	case errors.Is(err, emotion.ErrEmptyName):
		return http.StatusBadRequest
	case errors.Is(err, emotion.ErrProtectedPreset),
		errors.Is(err, emotion.ErrCannotRemoveLast),
		errors.Is(err, session.ErrAlreadyActive),
		errors.Is(err, session.ErrNotActive):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), map[string]string{"error": err.Error()})
}
