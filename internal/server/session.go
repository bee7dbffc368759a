package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"runtime/debug"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/codefionn/notificationd/internal/consts"
	"github.com/codefionn/notificationd/internal/logger"
	"github.com/codefionn/notificationd/internal/notification"
	"github.com/codefionn/notificationd/internal/protocol"
)

// Conn is the transport a Session runs on. net.Conn satisfies it, and so does
// the WebSocket adapter.
type Conn interface {
	io.ReadWriteCloser
	RemoteAddr() net.Addr
}

type writeDeadliner interface {
	SetWriteDeadline(t time.Time) error
}

// historyTimeFormat is the timestamp layout of HISTORY headers (UTC)
const historyTimeFormat = "2006-01-02 15:04:05"

var errQuit = errors.New("client quit")

type handlerFunc func(s *Session, ctx context.Context, msg protocol.Message) error

// handlers maps upper-cased commands to their implementation. Everything but
// LOGIN requires an authenticated session.
var handlers = map[string]handlerFunc{
	"LOGIN":   (*Session).handleLogin,
	"TITLE":   (*Session).handleTitle,
	"BODY":    (*Session).handleBody,
	"TAGS":    (*Session).handleTags,
	"RESET":   (*Session).handleReset,
	"CONSUME": (*Session).handleConsume,
	"SEND":    (*Session).handleSend,
	"VERSION": (*Session).handleVersion,
	"WHO":     (*Session).handleWho,
	"HISTORY": (*Session).handleHistory,
	"QUIT":    (*Session).handleQuit,
}

// Session is one accepted connection: its protocol state plus a read loop that
// dispatches commands and a write loop that drains the outbound queue.
type Session struct {
	ID string

	conn     Conn
	peerAddr string
	reg      *Registry
	log      *logger.Logger

	// Outbound lines, drained in order by writeLoop
	send chan string

	mu      sync.Mutex
	login   string
	consume bool
	builder *notification.Builder
	closed  bool

	stopOnce sync.Once
	done     chan struct{}
}

// NewSession creates a session for conn. It is not registered until Start.
func NewSession(id string, conn Conn, reg *Registry) *Session {
	peerAddr := ""
	if addr := conn.RemoteAddr(); addr != nil {
		peerAddr = addr.String()
	}

	return &Session{
		ID:       id,
		conn:     conn,
		peerAddr: peerAddr,
		reg:      reg,
		log:      reg.opts.Logger.WithPrefix("session:" + id),
		send:     make(chan string, reg.opts.SendQueueSize),
		consume:  reg.opts.DefaultConsume,
		builder:  notification.NewBuilder(),
		done:     make(chan struct{}),
	}
}

// Start registers the session and starts its read and write loops. A
// session arriving after the registry shut down is stopped right away.
func (s *Session) Start(ctx context.Context) {
	if !s.reg.Add(s) {
		s.Stop()
		return
	}

	go s.readLoop(ctx)
	go s.writeLoop()

	s.log.Info("Connected from %s", s.peerAddr)
}

// Stop unregisters the session and closes its connection. Safe to call more
// than once and from any goroutine.
func (s *Session) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		close(s.send)
		s.mu.Unlock()

		s.reg.Remove(s)

		if err := s.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			s.log.Debug("Error closing connection: %v", err)
		}

		close(s.done)
		s.log.Info("Disconnected")
	})
}

// Done is closed once the session has stopped
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Login returns the identity, empty until LOGIN succeeds
func (s *Session) Login() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.login
}

// Consuming reports the consume flag
func (s *Session) Consuming() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.consume
}

func (s *Session) receivesBroadcasts() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.login != "" && s.consume && !s.closed
}

func (s *Session) peer() (Peer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.login == "" {
		return Peer{}, false
	}
	return Peer{Login: s.login, Consume: s.consume, Address: s.peerAddr}, true
}

// enqueue queues data without blocking; false when the queue is full or the
// session is closed
func (s *Session) enqueue(data string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}

	select {
	case s.send <- data:
		return true
	default:
		return false
	}
}

func (s *Session) reply(data string) {
	if !s.enqueue(data) {
		s.log.Warn("Send queue full or closed, reply dropped")
	}
}

func (s *Session) readLoop(ctx context.Context) {
	defer s.Stop()

	scanner := bufio.NewScanner(s.conn)
	scanner.Buffer(make([]byte, consts.BufferSize4KB), consts.BufferSize64KB)

	for scanner.Scan() {
		if err := s.handleLine(ctx, scanner.Text()); err != nil {
			if !errors.Is(err, errQuit) {
				s.log.Error("Closing session: %v", err)
			}
			return
		}
	}

	if err := scanner.Err(); err != nil && !errors.Is(err, net.ErrClosed) {
		s.log.Warn("Read error: %v", err)
	}
}

func (s *Session) writeLoop() {
	for data := range s.send {
		if d, ok := s.conn.(writeDeadliner); ok {
			_ = d.SetWriteDeadline(time.Now().Add(consts.Timeout10Seconds))
		}

		if _, err := io.WriteString(s.conn, data); err != nil {
			if !errors.Is(err, net.ErrClosed) {
				s.log.Warn("Write error: %v", err)
			}
			// unblocks the read loop, which performs the cleanup
			_ = s.conn.Close()
			return
		}
	}
}

// handleLine parses and dispatches one inbound line. A non-nil error ends the
// session.
func (s *Session) handleLine(ctx context.Context, line string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("Panic while handling %q: %v\n%s", line, r, debug.Stack())
			err = fmt.Errorf("panic in command dispatch: %v", r)
		}
	}()

	if strings.TrimSpace(line) == "" {
		return nil
	}

	msg, perr := protocol.Parse(line)
	if perr != nil {
		s.reg.metrics.parseError()
		s.log.Debug("Parse error: %v", perr)
		s.reply(protocol.FormatFailure(nil, "ERR", protocol.CodeParse, protocol.Text(perr.Error())))
		return nil
	}

	return s.dispatch(ctx, msg)
}

func (s *Session) dispatch(ctx context.Context, msg protocol.Message) error {
	if msg.IsReply() {
		s.reply(protocol.FormatFailure(msg.ID, "ERR", protocol.CodeInvalidMessage,
			protocol.Text("You can't send a reply message to a server.")))
		return nil
	}

	verb := msg.Verb()
	if verb != "LOGIN" && s.Login() == "" {
		s.reply(protocol.FormatFailure(msg.ID, "ERR", protocol.CodeNoLogin, protocol.Text("Please login first.")))
		return nil
	}

	handler, ok := handlers[verb]
	if !ok {
		s.reply(protocol.FormatFailure(msg.ID, "ERR", protocol.CodeUnknownCmd,
			protocol.Text("I do not know "+msg.Command)))
		return nil
	}

	return handler(s, ctx, msg)
}

func (s *Session) handleLogin(_ context.Context, msg protocol.Message) error {
	name := msg.Arg(0)
	if name == "" {
		s.reply(protocol.FormatFailure(msg.ID, "LOGIN", protocol.CodeMissingArg, nil))
		return nil
	}

	s.mu.Lock()
	current := s.login
	if current == "" {
		s.login = name
	}
	s.mu.Unlock()

	if current != "" {
		s.reply(protocol.FormatFailure(msg.ID, "LOGIN", protocol.CodeAlreadyLoggedIn,
			protocol.Text(fmt.Sprintf("You are already logged in as %s. Please reconnect.", current))))
		return nil
	}

	s.log.Info("%s logged in as %s", s.peerAddr, name)
	s.reply(protocol.FormatReply(msg.ID, true, "LOGIN", nil, protocol.Text("Welcome "+name)))
	return nil
}

func (s *Session) handleTitle(_ context.Context, msg protocol.Message) error {
	if msg.Trailing == nil {
		s.reply(protocol.FormatFailure(msg.ID, "TITLE", protocol.CodeMissingTrailing, nil))
		return nil
	}

	s.mu.Lock()
	s.builder.SetTitle(*msg.Trailing)
	s.mu.Unlock()
	return nil
}

func (s *Session) handleBody(_ context.Context, msg protocol.Message) error {
	reset := strings.EqualFold(msg.Arg(0), "RST")

	s.mu.Lock()
	err := s.builder.AppendBody(msg.Trailing, reset)
	s.mu.Unlock()

	if errors.Is(err, notification.ErrMissingTrailing) {
		s.reply(protocol.FormatFailure(msg.ID, "BODY", protocol.CodeMissingTrailing, nil))
	}
	return nil
}

func (s *Session) handleTags(_ context.Context, msg protocol.Message) error {
	reset := strings.EqualFold(msg.Arg(0), "RST")
	if msg.Trailing == nil && !reset {
		s.reply(protocol.FormatFailure(msg.ID, "TAGS", protocol.CodeMissingTrailing, nil))
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if reset {
		s.builder.ClearTags()
	}
	if msg.Trailing != nil {
		s.builder.AddTags(notification.SplitTags(*msg.Trailing)...)
	}
	return nil
}

func (s *Session) handleReset(_ context.Context, _ protocol.Message) error {
	s.mu.Lock()
	s.builder.Reset()
	s.mu.Unlock()
	return nil
}

func (s *Session) handleConsume(_ context.Context, msg protocol.Message) error {
	arg := "on"
	if len(msg.Arguments) > 0 {
		arg = strings.ToLower(msg.Arguments[0])
	}

	var consume bool
	switch arg {
	case "on", "true":
		consume = true
	case "off", "false":
		consume = false
	default:
		s.reply(protocol.FormatFailure(msg.ID, "CONSUME", protocol.CodeInvalidArg, nil))
		return nil
	}

	s.mu.Lock()
	s.consume = consume
	s.mu.Unlock()

	s.reply(protocol.FormatReply(msg.ID, true, "CONSUME", []string{arg}, nil))
	return nil
}

func (s *Session) handleSend(ctx context.Context, msg protocol.Message) error {
	s.mu.Lock()
	env := s.builder.Snapshot(s.login, s.reg.NextID(), s.reg.now())
	s.builder.Reset()
	s.mu.Unlock()

	count := s.reg.Publish(ctx, env)
	s.reply(protocol.FormatReply(msg.ID, true, "SEND", []string{strconv.Itoa(count)}, nil))
	return nil
}

func (s *Session) handleVersion(_ context.Context, msg protocol.Message) error {
	s.reply(protocol.FormatReply(msg.ID, true, "VERSION", []string{consts.AppName, consts.Version}, nil))
	return nil
}

func (s *Session) handleWho(_ context.Context, msg protocol.Message) error {
	var b strings.Builder
	for _, peer := range s.reg.Roster() {
		args := []string{peer.Login}
		if peer.Consume {
			args = append(args, "CONSUME")
		}
		b.WriteString(protocol.FormatReply(msg.ID, true, "WHO", args, protocol.Text(peer.Address)))
	}
	b.WriteString(protocol.FormatReply(msg.ID, true, "WHO", []string{"END"}, nil))

	s.reply(b.String())
	return nil
}

func (s *Session) handleHistory(ctx context.Context, msg protocol.Message) error {
	if !s.reg.HasPersistence() {
		s.reply(protocol.FormatFailure(msg.ID, "HISTORY", protocol.CodeNoDB, nil))
		return nil
	}

	limit := 0
	if arg := msg.Arg(0); arg != "" {
		n, err := strconv.Atoi(arg)
		if err != nil || n <= 0 {
			s.reply(protocol.FormatFailure(msg.ID, "HISTORY", protocol.CodeInvalidArg, nil))
			return nil
		}
		limit = n
	}

	envs, err := s.reg.History(ctx, limit)
	if err != nil {
		s.log.Error("Failed to load history: %v", err)
		s.reply(protocol.FormatFailure(msg.ID, "HISTORY", protocol.CodeDBFail, nil))
		return nil
	}

	var b strings.Builder
	for _, env := range envs {
		b.WriteString(protocol.FormatReply(msg.ID, true, "HISTORY",
			[]string{strconv.FormatUint(uint64(env.ID), 10), env.User},
			protocol.Text(env.Timestamp.UTC().Format(historyTimeFormat))))
		if env.Title != nil {
			b.WriteString(protocol.FormatReply(msg.ID, true, "HISTORY", []string{"TITLE"}, env.Title))
		}
		if len(env.Tags) > 0 {
			b.WriteString(protocol.FormatReply(msg.ID, true, "HISTORY", []string{"TAGS"},
				protocol.Text(notification.JoinTags(env.Tags))))
		}
		for _, line := range env.BodyLines() {
			b.WriteString(protocol.FormatReply(msg.ID, true, "HISTORY", []string{"BODY"}, protocol.Text(line)))
		}
	}
	b.WriteString(protocol.FormatReply(msg.ID, true, "HISTORY", []string{"END"}, nil))

	s.reply(b.String())
	return nil
}

func (s *Session) handleQuit(_ context.Context, _ protocol.Message) error {
	return errQuit
}
