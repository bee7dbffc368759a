package server

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/codefionn/notificationd/internal/consts"
	"github.com/codefionn/notificationd/internal/logger"
	"github.com/codefionn/notificationd/internal/notification"
	"github.com/codefionn/notificationd/internal/protocol"
	"github.com/codefionn/notificationd/internal/store"
)

// Options configures a Registry
type Options struct {
	// DefaultConsume is the consume flag of new sessions
	DefaultConsume bool
	// HistoryLimit bounds HISTORY without an explicit limit
	HistoryLimit int
	// SendQueueSize is the capacity of each session's outbound queue
	SendQueueSize int
	Metrics       *Metrics
	Logger        *logger.Logger
}

// Peer is one authenticated session as reported by WHO and the control socket
type Peer struct {
	Login   string
	Consume bool
	Address string
}

// Registry tracks live sessions, issues notification ids and fans
// notifications out to consuming sessions.
type Registry struct {
	mu       sync.Mutex
	sessions map[*Session]struct{}
	// closed is set by Shutdown; later sessions are refused
	closed bool

	// lastID holds the most recently issued id
	lastID atomic.Uint32

	store   store.Store
	opts    Options
	metrics *Metrics
	log     *logger.Logger
	now     func() time.Time
}

// NewRegistry creates a registry backed by st. A nil st disables history.
func NewRegistry(st store.Store, opts Options) *Registry {
	if st == nil {
		st = store.Disabled{}
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = consts.DefaultHistoryLimit
	}
	if opts.SendQueueSize <= 0 {
		opts.SendQueueSize = consts.DefaultSendQueueSize
	}
	if opts.Logger == nil {
		opts.Logger = logger.Global()
	}

	return &Registry{
		sessions: make(map[*Session]struct{}),
		store:    st,
		opts:     opts,
		metrics:  opts.Metrics,
		log:      opts.Logger.WithPrefix("registry"),
		now:      time.Now,
	}
}

// Seed continues id issuance after the last persisted id
func (r *Registry) Seed(ctx context.Context) error {
	if !r.store.Enabled() {
		return nil
	}
	last, err := r.store.LastID(ctx)
	if err != nil {
		return fmt.Errorf("failed to read last notification id: %w", err)
	}
	r.lastID.Store(last)
	r.log.Info("Continuing notification ids after %d", last)
	return nil
}

// NextID issues a new notification id. Ids are never reused.
func (r *Registry) NextID() uint32 {
	return r.lastID.Add(1)
}

// Add registers a session. It returns false once Shutdown has run.
func (r *Registry) Add(s *Session) bool {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		r.log.Debug("Session %s refused, registry is shut down", s.ID)
		return false
	}
	_, exists := r.sessions[s]
	r.sessions[s] = struct{}{}
	total := len(r.sessions)
	r.mu.Unlock()

	if !exists {
		r.metrics.sessionOpened()
		r.log.Debug("Session %s registered (total: %d)", s.ID, total)
	}
	return true
}

// Remove unregisters a session. Removing an unknown session is a no-op.
func (r *Registry) Remove(s *Session) {
	r.mu.Lock()
	_, exists := r.sessions[s]
	delete(r.sessions, s)
	total := len(r.sessions)
	r.mu.Unlock()

	if exists {
		r.metrics.sessionClosed()
		r.log.Debug("Session %s unregistered (total: %d)", s.ID, total)
	}
}

func (r *Registry) snapshot() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	sessions := make([]*Session, 0, len(r.sessions))
	for s := range r.sessions {
		sessions = append(sessions, s)
	}
	return sessions
}

// Broadcast queues frame on every authenticated, consuming session and
// returns how many accepted it. The registry lock is not held while queueing.
func (r *Registry) Broadcast(frame string) int {
	delivered, _ := r.broadcast(frame)
	return delivered
}

func (r *Registry) broadcast(frame string) (delivered, dropped int) {
	for _, s := range r.snapshot() {
		if !s.receivesBroadcasts() {
			continue
		}
		if s.enqueue(frame) {
			delivered++
			continue
		}
		dropped++
		r.log.Warn("Send queue of session %s is full, notification dropped", s.ID)
	}
	return delivered, dropped
}

// Publish persists env (best effort) and broadcasts its frame
func (r *Registry) Publish(ctx context.Context, env notification.Envelope) int {
	if r.store.Enabled() {
		if _, err := r.store.Save(ctx, env); err != nil {
			r.metrics.persistenceError()
			r.log.Error("Failed to save notification %d: %v", env.ID, err)
		}
	}

	delivered, dropped := r.broadcast(protocol.NotificationFrame(env))
	r.metrics.notificationSent(delivered, dropped)
	r.log.Info("Notification %d from %s delivered to %d session(s)", env.ID, env.User, delivered)
	return delivered
}

// History loads stored notifications, oldest first. A limit <= 0 uses the
// configured default.
func (r *Registry) History(ctx context.Context, limit int) ([]notification.Envelope, error) {
	if limit <= 0 {
		limit = r.opts.HistoryLimit
	}
	envs, err := r.store.LoadAll(ctx, limit)
	if err != nil {
		r.metrics.persistenceError()
		return nil, err
	}
	return envs, nil
}

// Roster lists the authenticated sessions
func (r *Registry) Roster() []Peer {
	sessions := r.snapshot()
	peers := make([]Peer, 0, len(sessions))
	for _, s := range sessions {
		if peer, ok := s.peer(); ok {
			peers = append(peers, peer)
		}
	}
	sort.Slice(peers, func(i, j int) bool {
		if peers[i].Login != peers[j].Login {
			return peers[i].Login < peers[j].Login
		}
		return peers[i].Address < peers[j].Address
	})
	return peers
}

// HasPersistence reports whether history is stored
func (r *Registry) HasPersistence() bool {
	return r.store.Enabled()
}

// SessionCount returns the number of live sessions
func (r *Registry) SessionCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Shutdown stops every live session and refuses new ones
func (r *Registry) Shutdown() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	sessions := r.snapshot()
	r.log.Info("Closing %d session(s)", len(sessions))
	for _, s := range sessions {
		s.Stop()
	}
}
