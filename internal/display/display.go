// Package display renders notifications received by the forwarding client.
package display

import (
	"context"
	"os"

	"github.com/codefionn/notificationd/internal/notification"
)

// Sink renders one received notification
type Sink interface {
	Display(ctx context.Context, env notification.Envelope) error
}

var stdout = os.Stdout

// Sink names accepted in the configuration
const (
	SinkTerminal   = "terminal"
	SinkNotifySend = "notify-send"
)

func textOr(s *string, fallback string) string {
	if s == nil {
		return fallback
	}
	return *s
}
