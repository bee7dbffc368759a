package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/codefionn/notificationd/internal/consts"
	"github.com/codefionn/notificationd/internal/logger"
)

// WebSocketListener serves the line protocol over WebSocket. Inbound text
// frames carry one or more lines; each outbound write is one text frame.
type WebSocketListener struct {
	addr   string
	reg    *Registry
	nextID func() string
	log    *logger.Logger

	upgrader websocket.Upgrader

	mu       sync.Mutex
	listener net.Listener
	http     *http.Server
}

func newWebSocketListener(addr string, reg *Registry, nextID func() string, log *logger.Logger) *WebSocketListener {
	return &WebSocketListener{
		addr:   addr,
		reg:    reg,
		nextID: nextID,
		log:    log.WithPrefix("websocket"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  consts.BufferSize4KB,
			WriteBufferSize: consts.BufferSize4KB,
			// Clients are relays and CLIs, not browsers
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Start listens on the configured address and serves upgrades in the background
func (l *WebSocketListener) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", l.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", l.addr, err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		l.serve(ctx, w, r)
	})

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: consts.Timeout10Seconds,
		ErrorLog:          logger.StdLogger(l.log, slog.LevelWarn),
	}

	l.mu.Lock()
	l.listener = listener
	l.http = srv
	l.mu.Unlock()

	go func() {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.log.Error("WebSocket server failed: %v", err)
		}
	}()

	l.log.Info("Listening on %s", listener.Addr())
	return nil
}

func (l *WebSocketListener) serve(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	ws, err := l.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied with an HTTP error
		l.log.Debug("Upgrade from %s failed: %v", r.RemoteAddr, err)
		return
	}
	ws.SetReadLimit(consts.BufferSize64KB)

	session := NewSession(l.nextID(), newWSConn(ws), l.reg)
	session.Start(ctx)
}

// Addr returns the listener address, nil before Start
func (l *WebSocketListener) Addr() net.Addr {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.listener == nil {
		return nil
	}
	return l.listener.Addr()
}

// Stop closes the listener. Upgraded sessions are owned by the registry.
func (l *WebSocketListener) Stop() {
	l.mu.Lock()
	srv := l.http
	l.mu.Unlock()

	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), consts.Timeout5Seconds)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		l.log.Warn("WebSocket shutdown: %v", err)
	}
}

// wsConn adapts a WebSocket to the byte stream a Session reads lines from
type wsConn struct {
	ws  *websocket.Conn
	buf *bytes.Reader
}

func newWSConn(ws *websocket.Conn) *wsConn {
	return &wsConn{ws: ws, buf: bytes.NewReader(nil)}
}

func (c *wsConn) Read(p []byte) (int, error) {
	for c.buf.Len() == 0 {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return 0, io.EOF
			}
			return 0, err
		}
		if len(data) == 0 {
			continue
		}
		if data[len(data)-1] != '\n' {
			data = append(data, '\n')
		}
		c.buf.Reset(data)
	}
	return c.buf.Read(p)
}

// Write sends p as a single text frame. Only the session's write loop writes.
func (c *wsConn) Write(p []byte) (int, error) {
	if err := c.ws.WriteMessage(websocket.TextMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (c *wsConn) Close() error {
	return c.ws.Close()
}

func (c *wsConn) RemoteAddr() net.Addr {
	return c.ws.RemoteAddr()
}

func (c *wsConn) SetWriteDeadline(t time.Time) error {
	return c.ws.SetWriteDeadline(t)
}
