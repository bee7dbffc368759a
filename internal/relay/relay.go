// Package relay implements the forwarding client: it logs into a relay
// server as a consumer and hands every received notification to a display
// sink, reconnecting when the connection drops.
package relay

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/user"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/codefionn/notificationd/internal/consts"
	"github.com/codefionn/notificationd/internal/control"
	"github.com/codefionn/notificationd/internal/display"
	"github.com/codefionn/notificationd/internal/logger"
	"github.com/codefionn/notificationd/internal/protocol"
)

// ErrLoginRejected is returned when the server refuses the login
var ErrLoginRejected = errors.New("login rejected by server")

var errConnectionClosed = errors.New("connection closed by server")

// Config configures a Client
type Config struct {
	// Server is the host:port of the relay server
	Server string
	// Login is the identity claimed on connect; see DefaultLogin
	Login string
	// Consume requests notification delivery
	Consume bool
	// Reconnect keeps retrying with exponential backoff after a drop
	Reconnect bool

	DialTimeout       time.Duration
	ReconnectDelay    time.Duration
	ReconnectMaxDelay time.Duration
	Logger            *logger.Logger
}

// Client is a forwarding client
type Client struct {
	cfg  Config
	sink display.Sink
	log  *logger.Logger

	connected atomic.Bool
	// logins since the backoff policy last looked
	loginCount atomic.Int32
}

// DefaultLogin returns <user>@<host> for the invoking user
func DefaultLogin() string {
	name := strconv.Itoa(os.Getuid())
	if u, err := user.Current(); err == nil && u.Username != "" {
		name = u.Username
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "localhost"
	}
	return name + "@" + host
}

// New creates a client delivering to sink
func New(cfg Config, sink display.Sink) *Client {
	if cfg.Login == "" {
		cfg.Login = DefaultLogin()
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = consts.Timeout10Seconds
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = consts.Timeout1Second
	}
	if cfg.ReconnectMaxDelay <= 0 {
		cfg.ReconnectMaxDelay = consts.Timeout30Seconds
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Global()
	}

	return &Client{
		cfg:  cfg,
		sink: sink,
		log:  cfg.Logger.WithPrefix("relay"),
	}
}

// Run connects and forwards notifications until ctx is cancelled. Without
// Reconnect it returns when the first connection ends.
func (c *Client) Run(ctx context.Context) error {
	if !c.cfg.Reconnect {
		err := c.runOnce(ctx)
		if ctx.Err() != nil {
			return nil
		}
		return err
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.cfg.ReconnectDelay
	policy.MaxInterval = c.cfg.ReconnectMaxDelay
	policy.MaxElapsedTime = 0

	operation := func() error {
		err := c.runOnce(ctx)
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		if errors.Is(err, ErrLoginRejected) {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, wait time.Duration) {
		c.log.Warn("Connection to %s lost: %v, reconnecting in %s", c.cfg.Server, err, wait.Round(time.Millisecond))
	}

	err := backoff.RetryNotify(operation, backoff.WithContext(&resettingBackOff{ExponentialBackOff: policy, client: c}, ctx), notify)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// resettingBackOff restarts the delay sequence after a connection that
// reached the logged-in state
type resettingBackOff struct {
	*backoff.ExponentialBackOff
	client *Client
}

func (b *resettingBackOff) NextBackOff() time.Duration {
	if b.client.loggedInSinceLastCheck() {
		b.Reset()
	}
	return b.ExponentialBackOff.NextBackOff()
}

func (c *Client) loggedInSinceLastCheck() bool {
	return c.loginCount.Swap(0) > 0
}

func (c *Client) runOnce(ctx context.Context) error {
	dialer := net.Dialer{Timeout: c.cfg.DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", c.cfg.Server)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", c.cfg.Server, err)
	}

	done := make(chan struct{})
	defer func() {
		close(done)
		c.connected.Store(false)
		_ = conn.Close()
	}()

	// unblock the read loop on cancellation
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	c.log.Info("Connected to %s, logging in as %s", c.cfg.Server, c.cfg.Login)

	consume := "off"
	if c.cfg.Consume {
		consume = "on"
	}
	hello := protocol.Message{Command: "LOGIN", Arguments: []string{c.cfg.Login}}.String() +
		protocol.Message{Command: "CONSUME", Arguments: []string{consume}}.String()
	if _, err := io.WriteString(conn, hello); err != nil {
		return fmt.Errorf("failed to send login: %w", err)
	}

	return c.readLoop(ctx, conn)
}

func (c *Client) readLoop(ctx context.Context, conn net.Conn) error {
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, consts.BufferSize4KB), consts.BufferSize64KB)

	var assembler protocol.Assembler

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}

		msg, err := protocol.Parse(line)
		if err != nil {
			c.log.Debug("Ignoring unparsable line %q: %v", line, err)
			continue
		}

		if msg.IsReply() {
			if err := c.handleReply(msg); err != nil {
				return err
			}
			continue
		}

		env, complete, err := assembler.Feed(msg)
		if err != nil {
			c.log.Warn("Dropping notification: %v", err)
			continue
		}
		if !complete {
			continue
		}

		if err := c.sink.Display(ctx, env); err != nil {
			c.log.Error("Failed to display notification %d: %v", env.ID, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read failed: %w", err)
	}
	return errConnectionClosed
}

func (c *Client) handleReply(msg protocol.Message) error {
	switch msg.Verb() {
	case "LOGIN":
		if msg.Sign == protocol.SignFailure {
			reason := msg.Arg(0)
			if msg.Trailing != nil {
				reason += ": " + *msg.Trailing
			}
			return fmt.Errorf("%w: %s", ErrLoginRejected, reason)
		}
		c.connected.Store(true)
		c.loginCount.Add(1)
		c.log.Info("Logged in to %s as %s", c.cfg.Server, c.cfg.Login)
	case "CONSUME":
		if msg.Sign == protocol.SignFailure {
			c.log.Warn("Server rejected CONSUME: %s", msg.Arg(0))
		}
	default:
		c.log.Debug("Reply %s", msg.String())
	}
	return nil
}

// Connected reports whether the client is logged in right now
func (c *Client) Connected() bool {
	return c.connected.Load()
}

// Status reports the client for the control socket
func (c *Client) Status() control.Status {
	return control.Status{
		Client: &control.ClientStatus{
			Server:    c.cfg.Server,
			Login:     c.cfg.Login,
			Consume:   c.cfg.Consume,
			Connected: c.Connected(),
		},
	}
}

// Who is empty in client mode
func (c *Client) Who() []control.Peer {
	return []control.Peer{}
}
