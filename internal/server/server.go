package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/net/netutil"

	"github.com/codefionn/notificationd/internal/consts"
	"github.com/codefionn/notificationd/internal/control"
	"github.com/codefionn/notificationd/internal/logger"
)

// Config configures the listeners of a Server
type Config struct {
	// Bind is the TCP address of the line protocol
	Bind string
	// WebSocketBind enables the WebSocket transport when non-empty
	WebSocketBind string
	// MaxConnections caps concurrently accepted TCP connections
	MaxConnections int
	Logger         *logger.Logger
}

// Server accepts connections and runs a Session for each of them
type Server struct {
	cfg Config
	reg *Registry
	log *logger.Logger

	mu       sync.Mutex
	running  bool
	listener net.Listener
	ws       *WebSocketListener
	stopOnce sync.Once

	connIDCounter atomic.Uint64
}

// New creates a server dispatching into reg
func New(cfg Config, reg *Registry) *Server {
	if cfg.Bind == "" {
		cfg.Bind = consts.DefaultBind
	}
	if cfg.MaxConnections <= 0 {
		cfg.MaxConnections = consts.DefaultMaxConnections
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Global()
	}

	return &Server{
		cfg: cfg,
		reg: reg,
		log: cfg.Logger.WithPrefix("server"),
	}
}

// Start opens the listeners and begins accepting in the background. The
// server stops when ctx is cancelled or Stop is called.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("server is already running")
	}

	listener, err := net.Listen("tcp", s.cfg.Bind)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Bind, err)
	}
	s.listener = netutil.LimitListener(listener, s.cfg.MaxConnections)

	if s.cfg.WebSocketBind != "" {
		s.ws = newWebSocketListener(s.cfg.WebSocketBind, s.reg, s.nextConnID, s.cfg.Logger)
		if err := s.ws.Start(ctx); err != nil {
			_ = s.listener.Close()
			return err
		}
	}

	s.running = true
	go s.acceptLoop(ctx, s.listener)
	go func() {
		<-ctx.Done()
		_ = s.Stop()
	}()

	s.log.Info("Listening on %s (max connections: %d)", s.listener.Addr(), s.cfg.MaxConnections)
	return nil
}

// Stop closes the listeners and every live session
func (s *Server) Stop() error {
	var err error
	s.stopOnce.Do(func() {
		s.mu.Lock()
		listener, ws := s.listener, s.ws
		s.running = false
		s.mu.Unlock()

		if listener != nil {
			if cerr := listener.Close(); cerr != nil && !errors.Is(cerr, net.ErrClosed) {
				err = fmt.Errorf("failed to close listener: %w", cerr)
			}
		}
		if ws != nil {
			ws.Stop()
		}

		s.reg.Shutdown()
		s.log.Info("Server stopped")
	})
	return err
}

func (s *Server) acceptLoop(ctx context.Context, listener net.Listener) {
	for {
		conn, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				s.log.Debug("Listener closed, exiting accept loop")
				return
			}
			s.log.Error("Error accepting connection: %v", err)
			time.Sleep(50 * time.Millisecond)
			continue
		}

		session := NewSession(s.nextConnID(), conn, s.reg)
		session.Start(ctx)
	}
}

func (s *Server) nextConnID() string {
	return fmt.Sprintf("conn_%d", s.connIDCounter.Add(1))
}

// Addr returns the TCP listener address, nil before Start
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// WebSocketAddr returns the WebSocket listener address, nil when disabled
func (s *Server) WebSocketAddr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ws == nil {
		return nil
	}
	return s.ws.Addr()
}

// Registry returns the session registry
func (s *Server) Registry() *Registry {
	return s.reg
}

// IsRunning reports whether the server accepts connections
func (s *Server) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Status reports the server for the control socket
func (s *Server) Status() control.Status {
	bind := s.cfg.Bind
	if addr := s.Addr(); addr != nil {
		bind = addr.String()
	}
	return control.Status{
		Server: &control.ServerStatus{
			Bind:        bind,
			Connections: s.reg.SessionCount(),
			Persistent:  s.reg.HasPersistence(),
		},
	}
}

// Who reports the authenticated sessions for the control socket
func (s *Server) Who() []control.Peer {
	roster := s.reg.Roster()
	peers := make([]control.Peer, 0, len(roster))
	for _, p := range roster {
		peers = append(peers, control.Peer{Login: p.Login, Consume: p.Consume, Address: p.Address})
	}
	return peers
}
