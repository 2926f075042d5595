package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/nerrad567/nativehost/internal/dispatch"
	"github.com/nerrad567/nativehost/internal/history"
	"github.com/nerrad567/nativehost/internal/infrastructure/config"
	"github.com/nerrad567/nativehost/internal/process"
)

// gracefulShutdownTimeout bounds how long Close waits for in-flight requests.
const gracefulShutdownTimeout = 10 * time.Second

// Logger is satisfied by *logging.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Invoker runs native operations; *dispatch.Dispatcher implements it.
type Invoker interface {
	Dispatch(ctx context.Context, req dispatch.Request) (dispatch.Response, error)
}

// ProcessLister is implemented by *process.Supervisor.
type ProcessLister interface {
	List() []process.Info
}

// HistoryReader is implemented by *history.Store.
type HistoryReader interface {
	Recent(ctx context.Context, limit int) ([]history.Record, error)
}

// HealthChecker is any component with a HealthCheck method.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps holds the dependencies of the API server.
type Deps struct {
	Config    config.APIConfig
	WS        config.WebSocketConfig
	Logger    Logger
	Invoker   Invoker
	Processes ProcessLister
	History   HistoryReader // nil when history is disabled
	Hub       *Hub          // created by New when nil

	// TokenSecret enables bearer-token auth when non-empty.
	TokenSecret string

	// Checks are reported by the health endpoint, keyed by component name.
	Checks  map[string]HealthChecker
	Version string
}

// Server is the HTTP API and WebSocket endpoint of the host.
type Server struct {
	cfg         config.APIConfig
	wsCfg       config.WebSocketConfig
	logger      Logger
	invoker     Invoker
	processes   ProcessLister
	history     HistoryReader
	hub         *Hub
	tokenSecret string
	checks      map[string]HealthChecker
	version     string

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
	cancel   context.CancelFunc
}

// New validates deps and builds a server. Start begins listening.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Invoker == nil {
		return nil, fmt.Errorf("invoker is required")
	}
	if deps.Processes == nil {
		return nil, fmt.Errorf("process lister is required")
	}

	hub := deps.Hub
	if hub == nil {
		hub = NewHub(deps.WS, deps.Logger)
	}
	return &Server{
		cfg:         deps.Config,
		wsCfg:       deps.WS,
		logger:      deps.Logger,
		invoker:     deps.Invoker,
		processes:   deps.Processes,
		history:     deps.History,
		hub:         hub,
		tokenSecret: deps.TokenSecret,
		checks:      deps.Checks,
		version:     deps.Version,
	}, nil
}

// Hub returns the notification hub; register it as the supervisor's sink.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Handler returns the routed handler with all middleware applied.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start binds the listener and serves in the background. The bound
// address is available from Addr, which matters when port 0 is configured.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}

	srvCtx, cancel := context.WithCancel(ctx)
	go s.hub.Run(srvCtx)

	srv := &http.Server{
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	s.mu.Lock()
	s.server, s.listener, s.cancel = srv, ln, cancel
	s.mu.Unlock()

	go func() {
		s.logger.Info("API server listening", "address", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close stops the hub and shuts the HTTP server down gracefully.
func (s *Server) Close() error {
	s.mu.Lock()
	srv, cancel := s.server, s.cancel
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	cancel()

	ctx, done := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer done()

	s.logger.Info("API server shutting down")
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck reports whether the server has been started.
func (s *Server) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("api health check: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server == nil {
		return fmt.Errorf("api server not started")
	}
	return nil
}
