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
	"strconv"
	"strings"
	"sync"
	"time"

	"clipdraft/internal/api"
	"clipdraft/internal/config"
	"clipdraft/internal/logging"
	"clipdraft/internal/services"
)

const (
	maxRequestBody   = 64 << 10
	defaultLogLimit  = 200
	logFollowTimeout = 25 * time.Second
)

type apiServer struct {
	bind    string
	logger  *slog.Logger
	daemon  *Daemon
	items   *api.ItemService
	handler http.Handler

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	srv := &apiServer{
		bind:   strings.TrimSpace(cfg.Paths.APIBind),
		logger: logging.NewComponentLogger(logger, "api-server"),
		daemon: d,
		items:  api.NewItemService(d.workflow),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/status", srv.handleStatus)
	mux.HandleFunc("GET /api/items", srv.handleList)
	mux.HandleFunc("POST /api/items", srv.handleIngest)
	mux.HandleFunc("GET /api/items/{id}", srv.handleGet)
	mux.HandleFunc("GET /api/items/{id}/history", srv.handleHistory)
	mux.HandleFunc("POST /api/items/{id}/retry", srv.handleRetry)
	mux.HandleFunc("DELETE /api/items/{id}", srv.handleRemove)
	mux.HandleFunc("GET /api/gateways", srv.handleGateways)
	mux.HandleFunc("PUT /api/gateways/{name}", srv.handleSetGateway)
	mux.HandleFunc("GET /api/logs", srv.handleLogs)
	srv.handler = authMiddleware(cfg.Paths.APIToken, mux)
	return srv
}

func (s *apiServer) start(ctx context.Context) error {
	if s.bind == "" {
		s.logger.Info("api disabled; paths.api_bind is empty")
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
		WriteTimeout:      logFollowTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	s.mu.Lock()
	s.listener = listener
	s.server = server
	s.mu.Unlock()

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	s.mu.Lock()
	server := s.server
	s.server = nil
	s.listener = nil
	s.mu.Unlock()
	if server == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)
}

func (s *apiServer) addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := s.daemon.Status(r.Context())
	s.writeJSON(w, http.StatusOK, api.DaemonStatus{
		Running:      status.Running,
		PID:          status.PID,
		DatabasePath: status.DatabasePath,
		LockFilePath: status.LockFilePath,
		Workflow:     api.FromStatusSummary(status.Workflow),
		Checks:       api.FromPreflight(status.Checks),
	})
}

func (s *apiServer) handleList(w http.ResponseWriter, r *http.Request) {
	var states []string
	for _, value := range r.URL.Query()["state"] {
		for _, part := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				states = append(states, trimmed)
			}
		}
	}
	items, err := s.items.List(r.Context(), states...)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.ItemListResponse{Items: items})
}

func (s *apiServer) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req api.IngestRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	id, err := s.daemon.workflow.Ingest(r.Context(), req.URL)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, api.IngestResponse{ID: id})
}

func (s *apiServer) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := s.itemID(w, r)
	if !ok {
		return
	}
	item, err := s.items.Describe(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.ItemResponse{Item: item})
}

func (s *apiServer) handleHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := s.itemID(w, r)
	if !ok {
		return
	}
	events, err := s.items.History(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.HistoryResponse{Events: events})
}

func (s *apiServer) handleRetry(w http.ResponseWriter, r *http.Request) {
	id, ok := s.itemID(w, r)
	if !ok {
		return
	}
	item, err := s.daemon.workflow.Retry(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.ItemResponse{Item: api.FromQueueItem(item)})
}

func (s *apiServer) handleRemove(w http.ResponseWriter, r *http.Request) {
	id, ok := s.itemID(w, r)
	if !ok {
		return
	}
	if err := s.daemon.workflow.Remove(r.Context(), id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.RemoveResponse{Removed: true})
}

func (s *apiServer) handleGateways(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, api.GatewaysResponse{Gateways: s.daemon.workflow.GatewayURLs()})
}

func (s *apiServer) handleSetGateway(w http.ResponseWriter, r *http.Request) {
	var req api.GatewayUpdateRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if err := s.daemon.workflow.SetGatewayURL(r.Context(), r.PathValue("name"), req.URL); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.GatewaysResponse{Gateways: s.daemon.workflow.GatewayURLs()})
}

func (s *apiServer) handleLogs(w http.ResponseWriter, r *http.Request) {
	hub := s.daemon.LogStream()
	if hub == nil {
		s.writeJSON(w, http.StatusOK, api.LogStreamResponse{Events: []api.LogEvent{}})
		return
	}

	query := r.URL.Query()
	since, _ := strconv.ParseUint(query.Get("since"), 10, 64)
	limit, _ := strconv.Atoi(query.Get("limit"))
	if limit <= 0 {
		limit = defaultLogLimit
	}
	follow := query.Get("follow") == "1" || strings.EqualFold(query.Get("follow"), "true")
	var itemID int64
	if value := strings.TrimSpace(query.Get("item")); value != "" {
		parsed, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid item id")
			return
		}
		itemID = parsed
	}

	ctx := r.Context()
	if follow {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, logFollowTimeout)
		defer cancel()
	}
	events, next, err := hub.Fetch(ctx, logging.StreamQuery{Since: since, Limit: limit, Wait: follow, ItemID: itemID})
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.LogStreamResponse{Events: api.FromLogEvents(events), Next: next})
}

func (s *apiServer) itemID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		s.writeError(w, http.StatusBadRequest, "invalid item id")
		return 0, false
	}
	return id, true
}

func (s *apiServer) decodeBody(w http.ResponseWriter, r *http.Request, target any) bool {
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	if err := decoder.Decode(target); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

// writeServiceError maps the error taxonomy onto HTTP status codes.
func (s *apiServer) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, services.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, services.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, services.ErrStateConflict):
		status = http.StatusConflict
	default:
		s.logger.Error("api request failed",
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
			logging.String(logging.FieldEventType, "api_request_failed"),
			logging.Error(err),
		)
	}
	s.writeError(w, status, err.Error())
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, api.ErrorResponse{Error: message})
}
