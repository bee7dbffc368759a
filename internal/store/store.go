// Package store persists sent notifications so HISTORY can replay them.
package store

import (
	"context"
	"errors"

	"github.com/codefionn/notificationd/internal/notification"
)

// ErrDisabled is returned by every operation of a disabled store
var ErrDisabled = errors.New("history is disabled")

// Store saves and loads notification records
type Store interface {
	// Enabled reports whether records are actually kept
	Enabled() bool
	// Save stores env under env.ID and returns the record id
	Save(ctx context.Context, env notification.Envelope) (uint32, error)
	// LoadAll returns the limit most recent records, oldest first.
	// A limit <= 0 returns every record.
	LoadAll(ctx context.Context, limit int) ([]notification.Envelope, error)
	// LastID returns the highest stored id, 0 when empty
	LastID(ctx context.Context) (uint32, error)
	Close() error
}

// Disabled is the Store used when history is turned off
type Disabled struct{}

func (Disabled) Enabled() bool { return false }

func (Disabled) Save(context.Context, notification.Envelope) (uint32, error) {
	return 0, ErrDisabled
}

func (Disabled) LoadAll(context.Context, int) ([]notification.Envelope, error) {
	return nil, ErrDisabled
}

func (Disabled) LastID(context.Context) (uint32, error) {
	return 0, ErrDisabled
}

func (Disabled) Close() error { return nil }
