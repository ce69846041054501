// Package server exposes agent runs over HTTP and WebSocket.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hupe1980/proverbs/core"
	"github.com/hupe1980/proverbs/logging"
	"github.com/hupe1980/proverbs/tool"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// ErrInputRequired is returned for run requests without input.
var ErrInputRequired = errors.New("input is required")

// Runner starts runs and seeds session history. *runner.Runner satisfies it.
type Runner interface {
	Run(ctx context.Context, sessionID string, userContent core.Content) (string, <-chan core.Event, <-chan error, error)
	Seed(sessionID string, history []core.Content) error
}

// Options configures a Server.
type Options struct {
	// Addr is the listen address used by ListenAndServe.
	Addr string
	// AllowedOrigins lists origins accepted by the WebSocket endpoint. "*"
	// accepts any origin. An empty list only accepts same-host requests.
	AllowedOrigins []string
	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration
	// Metrics is mounted at /metrics when set.
	Metrics http.Handler
	Logger  logging.Logger
}

// Server serves the run API, the proverb resync endpoint and the tool listing.
type Server struct {
	runner   Runner
	catalog  *tool.Catalog
	proverbs core.ProverbStore

	addr            string
	allowedOrigins  []string
	shutdownTimeout time.Duration
	metrics         http.Handler
	logger          logging.Logger

	upgrader websocket.Upgrader
}

// New creates a Server.
func New(runner Runner, catalog *tool.Catalog, proverbs core.ProverbStore, optFns ...func(o *Options)) *Server {
	opts := Options{
		Addr:            ":8000",
		ShutdownTimeout: 10 * time.Second,
		Logger:          logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	s := &Server{
		runner:          runner,
		catalog:         catalog,
		proverbs:        proverbs,
		addr:            opts.Addr,
		allowedOrigins:  opts.AllowedOrigins,
		shutdownTimeout: opts.ShutdownTimeout,
		metrics:         opts.Metrics,
		logger:          opts.Logger,
	}

	s.upgrader = websocket.Upgrader{CheckOrigin: s.checkOrigin}

	return s
}

// Handler returns the HTTP routes of the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/run", s.handleRun)
	mux.HandleFunc("GET /api/run/ws", s.handleRunStream)
	mux.HandleFunc("GET /api/proverbs", s.handleProverbs)
	mux.HandleFunc("GET /api/tools", s.handleTools)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics)
	}

	return mux
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.addr, err)
	}

	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	s.logger.Info("server.start", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("server.shutdown", "timeout", s.shutdownTimeout.String())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	return nil
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	sessionID, content, err := s.prepare(&req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	result, err := s.execute(r.Context(), sessionID, content, nil)
	if err != nil {
		s.logger.Warn("server.run.failed", "run_id", result.RunID, "session_id", sessionID, "error", err)
		writeJSON(w, http.StatusBadGateway, ErrorResponse{Error: err.Error(), Result: partial(result)})
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleRunStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("server.ws.upgrade_failed", "error", err)
		return
	}
	defer conn.Close()

	connID, _ := gonanoid.New()
	s.logger.Debug("server.ws.connected", "conn_id", connID, "remote", r.RemoteAddr)

	var req RunRequest
	if err := conn.ReadJSON(&req); err != nil {
		_ = conn.WriteJSON(Frame{Type: FrameError, Error: fmt.Sprintf("invalid run request: %v", err)})
		return
	}

	sessionID, content, err := s.prepare(&req)
	if err != nil {
		_ = conn.WriteJSON(Frame{Type: FrameError, Error: err.Error()})
		return
	}

	// Hijacked connections do not cancel the request context; the reader
	// goroutine does once the client goes away.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ctx = core.WithLogFields(ctx, "conn_id", connID)

	result, err := s.execute(ctx, sessionID, content, func(ev core.Event) error {
		return conn.WriteJSON(Frame{Type: FrameEvent, Event: toEventFrame(ev)})
	})
	if err != nil {
		s.logger.Warn("server.run.failed", "conn_id", connID, "run_id", result.RunID, "session_id", sessionID, "error", err)
		_ = conn.WriteJSON(Frame{Type: FrameError, Error: err.Error(), Result: partial(result)})
		return
	}

	if err := conn.WriteJSON(Frame{Type: FrameResult, Result: &result}); err != nil {
		s.logger.Warn("server.ws.write_failed", "conn_id", connID, "error", err)
		return
	}

	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func (s *Server) handleProverbs(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, core.StateSnapshot{Proverbs: s.proverbs.GetAll()})
}

func (s *Server) handleTools(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.catalog.Definitions())
}

// prepare validates req, assigns a session id and seeds client history.
func (s *Server) prepare(req *RunRequest) (string, core.Content, error) {
	if strings.TrimSpace(req.Input) == "" {
		return "", core.Content{}, ErrInputRequired
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = core.NewID()
	}

	if len(req.Messages) > 0 {
		history := make([]core.Content, 0, len(req.Messages))
		for _, m := range req.Messages {
			if m.Role != "user" && m.Role != "assistant" {
				return "", core.Content{}, fmt.Errorf("unsupported message role %q", m.Role)
			}
			history = append(history, core.NewTextContent(m.Role, m.Content))
		}

		if err := s.runner.Seed(sessionID, history); err != nil {
			return "", core.Content{}, err
		}
	}

	return sessionID, core.NewTextContent("user", req.Input), nil
}

// execute runs to completion, handing every event to onEvent when set. When
// the run fails after it started, the result built so far is returned along
// with the error; tool calls that already mutated the store stay visible.
func (s *Server) execute(ctx context.Context, sessionID string, content core.Content, onEvent func(core.Event) error) (RunResult, error) {
	runID, eventsCh, errorsCh, err := s.runner.Run(ctx, sessionID, content)
	if err != nil {
		return RunResult{}, err
	}

	b := newResultBuilder(sessionID)

	var sendErr error
	for ev := range eventsCh {
		b.add(ev)
		if onEvent != nil && sendErr == nil {
			sendErr = onEvent(ev)
		}
	}

	if err := <-errorsCh; err != nil {
		return b.build(runID), err
	}

	if sendErr != nil {
		return b.build(runID), fmt.Errorf("stream events: %w", sendErr)
	}

	return b.build(runID), nil
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	if len(s.allowedOrigins) == 0 {
		u, err := url.Parse(origin)
		return err == nil && strings.EqualFold(u.Host, r.Host)
	}

	return slices.Contains(s.allowedOrigins, "*") || slices.Contains(s.allowedOrigins, origin)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, ErrorResponse{Error: err.Error()})
}

// partial returns result unless the run never started.
func partial(result RunResult) *RunResult {
	if result.RunID == "" {
		return nil
	}
	return &result
}
