package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/codefionn/notificationd/internal/consts"
	"github.com/codefionn/notificationd/internal/logger"
)

// ErrSocketInUse is returned by Start when another process serves the socket
var ErrSocketInUse = errors.New("control socket is in use by another process")

// Server answers control queries on a Unix socket
type Server struct {
	socketPath string
	provider   Provider
	gatherer   prometheus.Gatherer
	log        *logger.Logger

	router *httprouter.Router

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
}

// NewServer creates a control server. A nil gatherer disables /metrics.
func NewServer(socketPath string, provider Provider, gatherer prometheus.Gatherer, log *logger.Logger) *Server {
	if log == nil {
		log = logger.Global()
	}

	s := &Server{
		socketPath: socketPath,
		provider:   provider,
		gatherer:   gatherer,
		log:        log.WithPrefix("control"),
		router:     httprouter.New(),
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/status", s.handleStatus)
	s.router.GET("/who", s.handleWho)
	if s.gatherer != nil {
		s.router.Handler(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
}

// Handler returns the router, for serving on other listeners and in tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on the socket and serves in the background
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		return fmt.Errorf("control server is already running")
	}

	if err := os.MkdirAll(filepath.Dir(s.socketPath), 0o755); err != nil {
		return fmt.Errorf("failed to create socket directory: %w", err)
	}

	if socketInUse(s.socketPath) {
		return fmt.Errorf("%w: %s", ErrSocketInUse, s.socketPath)
	}

	// A stale socket from a crashed daemon blocks Listen
	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove existing socket file: %w", err)
	}

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to listen on Unix socket %s: %w", s.socketPath, err)
	}
	if err := os.Chmod(s.socketPath, 0o666); err != nil {
		s.log.Warn("Failed to set socket permissions: %v", err)
	}

	s.listener = listener
	s.server = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: consts.Timeout5Seconds,
		ErrorLog:          logger.StdLogger(s.log, slog.LevelWarn),
	}

	go func(srv *http.Server) {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("Control server failed: %v", err)
		}
	}(s.server)

	s.log.Info("Control socket listening on %s", s.socketPath)
	return nil
}

// Stop shuts the server down and removes the socket file
func (s *Server) Stop() error {
	s.mu.Lock()
	srv := s.server
	s.server = nil
	s.listener = nil
	s.mu.Unlock()

	if srv == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), consts.Timeout5Seconds)
	defer cancel()
	err := srv.Shutdown(ctx)

	if removeErr := os.Remove(s.socketPath); removeErr != nil && !os.IsNotExist(removeErr) {
		s.log.Warn("Failed to remove socket file %s: %v", s.socketPath, removeErr)
	}

	s.log.Info("Control socket stopped")
	return err
}

// SocketPath returns the socket path
func (s *Server) SocketPath() string {
	return s.socketPath
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	writeJSON(w, s.provider.Status())
}

func (s *Server) handleWho(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	clients := s.provider.Who()
	if clients == nil {
		clients = []Peer{}
	}
	writeJSON(w, WhoResponse{Clients: clients})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// socketInUse reports whether something accepts connections on path
func socketInUse(path string) bool {
	if !IsSocket(path) {
		return false
	}
	conn, err := net.DialTimeout("unix", path, consts.Timeout1Second)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}
