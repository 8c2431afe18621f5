package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/IshaanNene/newsgoat/internal/config"
	"github.com/IshaanNene/newsgoat/internal/engine"
	"github.com/IshaanNene/newsgoat/internal/observability"
)

// maxHistory bounds the number of run reports kept for /runs.
const maxHistory = 20

// Server exposes run status, run history and metrics over HTTP.
type Server struct {
	mux     *http.ServeMux
	port    int
	logger  *slog.Logger
	metrics *observability.Metrics

	engineCtrl EngineController
	trigger    TriggerFunc

	history   []*engine.Report
	historyMu sync.RWMutex

	srv *http.Server
}

// EngineController is the view of the engine the API needs.
type EngineController interface {
	GetState() engine.State
	LastReport() *engine.Report
}

// TriggerFunc starts a run in the background. It returns
// engine.ErrAlreadyRunning when a run is in progress.
type TriggerFunc func() error

// NewServer creates a new API server. metricsPath may be empty to disable
// the Prometheus endpoint.
func NewServer(port int, metricsPath string, metrics *observability.Metrics, logger *slog.Logger) *Server {
	s := &Server{
		mux:     http.NewServeMux(),
		port:    port,
		logger:  logger.With("component", "api_server"),
		metrics: metrics,
	}

	s.registerRoutes(metricsPath)
	return s
}

// SetEngine sets the engine controller.
func (s *Server) SetEngine(engine EngineController) {
	s.engineCtrl = engine
}

// SetTrigger enables POST /runs.
func (s *Server) SetTrigger(fn TriggerFunc) {
	s.trigger = fn
}

// Record appends a finished run to the history.
func (s *Server) Record(report *engine.Report) {
	if report == nil {
		return
	}
	s.historyMu.Lock()
	defer s.historyMu.Unlock()
	s.history = append(s.history, report)
	if len(s.history) > maxHistory {
		s.history = s.history[len(s.history)-maxHistory:]
	}
}

// Handler returns the server's routes.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start listens on the configured port and serves until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	s.srv = &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("API server starting", "addr", addr)

	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("API server shutdown", "error", err)
		}
	}()

	return nil
}

func (s *Server) registerRoutes(metricsPath string) {
	s.mux.HandleFunc("GET /health", s.handleHealth)

	s.mux.HandleFunc("GET /runs", s.handleListRuns)
	s.mux.HandleFunc("GET /runs/latest", s.handleLatestRun)
	s.mux.HandleFunc("POST /runs", s.handleTriggerRun)

	s.mux.HandleFunc("GET /stats", s.handleStats)

	if metricsPath != "" {
		s.mux.Handle("GET "+metricsPath, s.metrics.Handler())
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	state := "unknown"
	if s.engineCtrl != nil {
		state = s.engineCtrl.GetState().String()
	}
	s.jsonResponse(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": config.Version,
		"state":   state,
	})
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	s.historyMu.RLock()
	defer s.historyMu.RUnlock()

	runs := make([]*engine.Report, 0, len(s.history))
	for i := len(s.history) - 1; i >= 0; i-- {
		runs = append(runs, s.history[i])
	}
	s.jsonResponse(w, http.StatusOK, runs)
}

func (s *Server) handleLatestRun(w http.ResponseWriter, r *http.Request) {
	var report *engine.Report
	if s.engineCtrl != nil {
		report = s.engineCtrl.LastReport()
	}
	if report == nil {
		s.jsonResponse(w, http.StatusNotFound, map[string]string{"error": "no run finished yet"})
		return
	}
	s.jsonResponse(w, http.StatusOK, report)
}

func (s *Server) handleTriggerRun(w http.ResponseWriter, r *http.Request) {
	if s.trigger == nil {
		s.jsonResponse(w, http.StatusServiceUnavailable, map[string]string{"error": "runs cannot be triggered"})
		return
	}
	if err := s.trigger(); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, engine.ErrAlreadyRunning) {
			status = http.StatusConflict
		}
		s.jsonResponse(w, status, map[string]string{"error": err.Error()})
		return
	}
	s.jsonResponse(w, http.StatusAccepted, map[string]string{"status": "started"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, s.metrics.Snapshot())
}

func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Debug("response write failed", "error", err)
	}
}
