package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"ytqueue/internal/api"
	"ytqueue/internal/config"
	"ytqueue/internal/logging"
	"ytqueue/internal/services"
)

const (
	maxRequestBody  = 1 << 20
	longPollTimeout = 25 * time.Second
	requestIDHeader = "X-Request-ID"
)

type apiServer struct {
	bind    string
	logger  *slog.Logger
	daemon  *Daemon
	handler http.Handler

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	srv := &apiServer{
		bind:   strings.TrimSpace(cfg.API.Bind),
		logger: logger,
		daemon: d,
	}
	srv.handler = srv.routes(cfg)
	return srv
}

func (s *apiServer) routes(cfg *config.Config) http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/api/add", s.handleAdd).Methods(http.MethodPost)
	r.HandleFunc("/api/delete", s.handleDelete).Methods(http.MethodPost)
	r.HandleFunc("/api/start", s.handleStart).Methods(http.MethodPost)
	r.HandleFunc("/api/queue", s.handleQueue).Methods(http.MethodGet)
	r.HandleFunc("/api/history", s.handleHistory).Methods(http.MethodGet)
	r.HandleFunc("/api/events", s.handleEvents).Methods(http.MethodGet)
	r.HandleFunc("/api/logs", s.handleLogs).Methods(http.MethodGet)
	r.HandleFunc("/api/status", s.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/api/version", s.handleVersion).Methods(http.MethodGet)
	r.HandleFunc("/api/concurrency", s.handleGetConcurrency).Methods(http.MethodGet)
	r.HandleFunc("/api/concurrency", s.handleSetConcurrency).Methods(http.MethodPut)
	r.HandleFunc("/api/custom-dirs", s.handleCustomDirs).Methods(http.MethodGet)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		s.writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	var handler http.Handler = authMiddleware(cfg.API.Token, r)
	handler = s.requestIDMiddleware(handler)
	if len(cfg.API.CORSAllowedOrigins) > 0 {
		handler = cors.New(cors.Options{
			AllowedOrigins: cfg.API.CORSAllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type", requestIDHeader},
		}).Handler(handler)
	}
	return handler
}

func (s *apiServer) start(ctx context.Context) error {
	if s.bind == "" {
		s.log().Info("api server disabled")
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	server := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      longPollTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	s.mu.Lock()
	s.listener = listener
	s.server = server
	s.mu.Unlock()

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("api server error", logging.Error(err))
		}
	}()

	s.log().Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	s.mu.Lock()
	server, listener := s.server, s.listener
	s.server, s.listener = nil, nil
	s.mu.Unlock()

	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}
	if listener != nil {
		_ = listener.Close()
	}
}

func (s *apiServer) address() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// requestIDMiddleware tags each request with an id taken from the client or
// generated, and logs the request once it completes.
func (s *apiServer) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		started := time.Now()
		next.ServeHTTP(w, r.WithContext(services.WithRequestID(r.Context(), id)))
		s.log().Debug("api request",
			logging.String(logging.FieldCorrelationID, id),
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
			logging.Duration("elapsed", time.Since(started)),
		)
	})
}

func (s *apiServer) handleAdd(w http.ResponseWriter, r *http.Request) {
	var req api.AddRequest
	if !s.decode(w, r, &req) {
		return
	}
	resp, err := s.daemon.Queue().Add(r.Context(), req)
	s.writeStatus(w, resp, err)
}

func (s *apiServer) handleDelete(w http.ResponseWriter, r *http.Request) {
	var req api.DeleteRequest
	if !s.decode(w, r, &req) {
		return
	}
	resp, err := s.daemon.Queue().Delete(r.Context(), req)
	s.writeStatus(w, resp, err)
}

func (s *apiServer) handleStart(w http.ResponseWriter, r *http.Request) {
	var req api.StartRequest
	if !s.decode(w, r, &req) {
		return
	}
	resp, err := s.daemon.Queue().Start(r.Context(), req)
	s.writeStatus(w, resp, err)
}

func (s *apiServer) handleQueue(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.daemon.Queue().Queue())
}

func (s *apiServer) handleHistory(w http.ResponseWriter, r *http.Request) {
	history, err := s.daemon.Queue().History(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, services.Message(err))
		return
	}
	s.writeJSON(w, http.StatusOK, history)
}

func (s *apiServer) handleEvents(w http.ResponseWriter, r *http.Request) {
	hub := s.daemon.Events()
	query := r.URL.Query()
	since, _ := strconv.ParseUint(query.Get("since"), 10, 64)
	limit, _ := strconv.Atoi(query.Get("limit"))
	wait := queryFlag(query.Get("wait"))

	ctx, cancel := context.WithTimeout(r.Context(), longPollTimeout)
	defer cancel()
	events, next, err := hub.Fetch(ctx, since, limit, wait)
	if err != nil && !isContextDone(err) {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.EventsResponse{Events: api.FromEvents(events), Next: next})
}

func (s *apiServer) handleLogs(w http.ResponseWriter, r *http.Request) {
	hub := s.daemon.LogStream()
	query := r.URL.Query()
	since, _ := strconv.ParseUint(query.Get("since"), 10, 64)
	limit, _ := strconv.Atoi(query.Get("limit"))
	if limit <= 0 {
		limit = 200
	}
	follow := queryFlag(query.Get("follow"))
	component := strings.TrimSpace(query.Get("component"))
	jobID := strings.TrimSpace(query.Get("job"))

	var (
		events []logging.LogEvent
		next   uint64
	)
	if queryFlag(query.Get("tail")) && since == 0 && !follow {
		events, next = hub.Tail(limit)
	} else {
		ctx, cancel := context.WithTimeout(r.Context(), longPollTimeout)
		defer cancel()
		var err error
		events, next, err = hub.Fetch(ctx, since, limit, follow)
		if err != nil && !isContextDone(err) {
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}

	filtered := make([]logging.LogEvent, 0, len(events))
	for _, evt := range events {
		if component != "" && !strings.EqualFold(component, evt.Component) {
			continue
		}
		if jobID != "" && evt.JobID != jobID {
			continue
		}
		filtered = append(filtered, evt)
	}
	s.writeJSON(w, http.StatusOK, api.FromLogEvents(filtered, next))
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.daemon.Status(r.Context()).APIStatus())
}

func (s *apiServer) handleVersion(w http.ResponseWriter, r *http.Request) {
	resp, err := s.daemon.Version(r.Context())
	if err != nil {
		s.log().Warn("yt-dlp version lookup failed", logging.Error(err))
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) handleGetConcurrency(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.daemon.Queue().Status())
}

func (s *apiServer) handleSetConcurrency(w http.ResponseWriter, r *http.Request) {
	var req api.ConcurrencyRequest
	if !s.decode(w, r, &req) {
		return
	}
	status, err := s.daemon.Queue().SetConcurrency(req)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, services.Message(err))
		return
	}
	s.writeJSON(w, http.StatusOK, status)
}

func (s *apiServer) handleCustomDirs(w http.ResponseWriter, _ *http.Request) {
	dirs, err := api.ListCustomDirs(s.daemon.cfg)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, services.Message(err))
		return
	}
	s.writeJSON(w, http.StatusOK, dirs)
}

func (s *apiServer) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func (s *apiServer) writeStatus(w http.ResponseWriter, resp api.StatusResponse, err error) {
	switch {
	case err == nil:
		s.writeJSON(w, http.StatusOK, resp)
	case api.IsRequestError(err):
		s.writeError(w, http.StatusBadRequest, services.Message(err))
	default:
		s.writeError(w, http.StatusInternalServerError, services.Message(err))
	}
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
		return s.logger
	}
	return logging.NewNop()
}

func queryFlag(value string) bool {
	return value == "1" || strings.EqualFold(value, "true")
}

func isContextDone(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
