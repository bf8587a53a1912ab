package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"soundcheck/internal/config"
	"soundcheck/internal/gateway"
	"soundcheck/internal/logging"
)

const (
	maxTaskPayload = 8 << 20
	// responseMargin is the write time left after a task's deadline expires.
	responseMargin = 15 * time.Second
)

type apiServer struct {
	bind        string
	logger      *slog.Logger
	daemon      *Daemon
	taskTimeout time.Duration

	listener net.Listener
	server   *http.Server
}

// TaskResponse wraps a task result for HTTP callers. Result is JSON null when
// the task produced its fallback value.
type TaskResponse struct {
	Task   string `json:"task"`
	Result any    `json:"result"`
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	if cfg == nil || d == nil {
		return nil
	}
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil
	}

	srv := &apiServer{
		bind:        bind,
		logger:      logger,
		daemon:      d,
		taskTimeout: taskBudget(cfg, d.gateway.Strategies()),
	}
	srv.server = &http.Server{
		Handler:           srv.routes(cfg.Paths.APIToken),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      srv.taskTimeout + responseMargin,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

// taskBudget bounds one HTTP task: every strategy in the chain may spend a
// full decode timeout, and the direct strategy may retry once.
func taskBudget(cfg *config.Config, strategies []string) time.Duration {
	attempts := len(strategies) + 1
	return time.Duration(attempts)*cfg.DecodeTimeout() + 5*time.Second
}

func (s *apiServer) routes(token string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/status", authMiddleware(token, s.handleStatus))
	mux.HandleFunc("GET /api/tasks", authMiddleware(token, s.handleListTasks))
	mux.HandleFunc("POST /api/tasks/{name}", authMiddleware(token, s.handleTask))
	return mux
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.log().Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
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

func (s *apiServer) address() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.daemon.Status(r.Context()))
}

func (s *apiServer) handleListTasks(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string][]string{"tasks": gateway.Tasks()})
}

func (s *apiServer) handleTask(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxTaskPayload))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, http.StatusRequestEntityTooLarge, "payload too large")
			return
		}
		s.writeError(w, http.StatusBadRequest, "read payload: "+err.Error())
		return
	}

	ctx := logging.WithRequestID(r.Context(), r.Header.Get("X-Request-ID"))
	if s.taskTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.taskTimeout)
		defer cancel()
	}
	result, err := s.daemon.gateway.Dispatch(ctx, name, json.RawMessage(body))
	if err != nil {
		if errors.Is(err, gateway.ErrUnknownTask) {
			s.writeError(w, http.StatusNotFound, err.Error())
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, TaskResponse{Task: name, Result: result})
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func (s *apiServer) log() *slog.Logger {
	if s.logger != nil {
		return s.logger.With(logging.String(logging.FieldComponent, "api-server"))
	}
	return logging.NewNop()
}
