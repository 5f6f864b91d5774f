package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/maverikod/mcp-dochub-server/internal/api"
	"github.com/maverikod/mcp-dochub-server/internal/config"
	"github.com/maverikod/mcp-dochub-server/internal/logging"
	"github.com/maverikod/mcp-dochub-server/internal/queue"
)

type apiServer struct {
	bind     string
	daemon   *Daemon
	queueSvc *api.QueueService

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon) *apiServer {
	srv := &apiServer{
		bind:     cfg.Paths.APIBind,
		daemon:   d,
		queueSvc: api.NewQueueService(d.manager),
	}

	router := chi.NewRouter()
	router.Use(authMiddleware(cfg.Paths.APIToken))
	router.Get("/api/status", srv.handleStatus)
	router.Route("/api/tasks", func(r chi.Router) {
		r.Post("/", srv.handleSubmit)
		r.Get("/", srv.handleList)
		r.Get("/{id}", srv.handleGet)
		r.Post("/{id}/cancel", srv.handleCancel)
		r.Get("/{id}/logs", srv.handleLogs)
	})
	router.Route("/api/queue", func(r chi.Router) {
		r.Get("/stats", srv.handleStats)
		r.Post("/pause", srv.handlePause)
		r.Post("/resume", srv.handleResume)
		r.Post("/clear", srv.handleClear)
	})

	srv.server = &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

func (s *apiServer) start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.daemon.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.daemon.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

// addr returns the bound listen address, useful when binding to port 0.
func (s *apiServer) addr() string {
	if s.listener == nil {
		return s.bind
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.daemon.Status(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, status)
}

func (s *apiServer) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req api.SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErrorStatus(w, http.StatusBadRequest, fmt.Sprintf("decode request: %s", err))
		return
	}
	resp, err := s.queueSvc.Submit(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, resp)
}

func (s *apiServer) handleList(w http.ResponseWriter, r *http.Request) {
	resp, err := s.queueSvc.List(r.Context(), r.URL.Query()["state"], r.URL.Query().Get("key"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) handleGet(w http.ResponseWriter, r *http.Request) {
	snapshot, err := s.queueSvc.Status(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, snapshot)
}

func (s *apiServer) handleCancel(w http.ResponseWriter, r *http.Request) {
	resp, err := s.queueSvc.Cancel(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) handleLogs(w http.ResponseWriter, r *http.Request) {
	resp, err := s.queueSvc.Logs(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) handleStats(w http.ResponseWriter, r *http.Request) {
	resp, err := s.queueSvc.Stats(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) handlePause(w http.ResponseWriter, r *http.Request) {
	s.queueSvc.Pause()
	s.writeJSON(w, http.StatusOK, map[string]bool{"paused": true})
}

func (s *apiServer) handleResume(w http.ResponseWriter, r *http.Request) {
	s.queueSvc.Resume()
	s.writeJSON(w, http.StatusOK, map[string]bool{"paused": false})
}

func (s *apiServer) handleClear(w http.ResponseWriter, r *http.Request) {
	resp, err := s.queueSvc.Clear(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.daemon.logger.Warn("failed to encode api response", logging.Error(err))
	}
}

// writeError maps queue taxonomy errors onto HTTP status codes.
func (s *apiServer) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, queue.ErrNotFound):
		s.writeErrorStatus(w, http.StatusNotFound, err.Error())
	case errors.Is(err, queue.ErrValidation):
		s.writeErrorStatus(w, http.StatusBadRequest, err.Error())
	default:
		s.writeErrorStatus(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *apiServer) writeErrorStatus(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(api.ErrorResponse{Error: message})
}
