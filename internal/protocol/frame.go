package protocol

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/codefionn/notificationd/internal/notification"
)

// Frame commands
const (
	CommandNotifyStart = "NOTIFY_START"
	CommandNotifyEnd   = "NOTIFY_END"
	CommandTitle       = "TITLE"
	CommandTags        = "TAGS"
	CommandBody        = "BODY"
)

// ErrFrame is wrapped by every Assembler error
var ErrFrame = errors.New("malformed notification frame")

// NotificationFrame renders the lines broadcast for one notification
func NotificationFrame(env notification.Envelope) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s %s %d\r\n", CommandNotifyStart, env.User, env.ID)
	if env.Title != nil {
		fmt.Fprintf(&b, "%s: %s\r\n", CommandTitle, *env.Title)
	}
	if len(env.Tags) > 0 {
		fmt.Fprintf(&b, "%s: %s\r\n", CommandTags, notification.JoinTags(env.Tags))
	}
	for _, line := range env.BodyLines() {
		fmt.Fprintf(&b, "%s: %s\r\n", CommandBody, line)
	}
	fmt.Fprintf(&b, "%s %d\r\n", CommandNotifyEnd, env.ID)

	return b.String()
}

// Assembler rebuilds notifications from the frame lines a client receives.
// Replies and lines outside a frame are ignored.
type Assembler struct {
	// Now stamps assembled notifications; defaults to time.Now
	Now func() time.Time

	current *notification.Envelope
}

// InProgress reports whether a frame has been started but not finished
func (a *Assembler) InProgress() bool {
	return a.current != nil
}

// Feed consumes one message. It returns the envelope and true when msg
// completes a frame.
func (a *Assembler) Feed(msg Message) (notification.Envelope, bool, error) {
	if msg.IsReply() {
		return notification.Envelope{}, false, nil
	}

	switch msg.Verb() {
	case CommandNotifyStart:
		restarted := a.current != nil
		a.current = nil
		id, err := strconv.ParseUint(msg.Arg(1), 10, 32)
		if msg.Arg(0) == "" || err != nil {
			return notification.Envelope{}, false, fmt.Errorf("%w: bad start %q", ErrFrame, strings.TrimSpace(msg.String()))
		}
		a.current = &notification.Envelope{
			ID:        uint32(id),
			User:      msg.Arg(0),
			Timestamp: a.now(),
		}
		if restarted {
			return notification.Envelope{}, false, fmt.Errorf("%w: start before previous end", ErrFrame)
		}

	case CommandTitle:
		if a.current != nil {
			a.current.Title = Text(trailingOrEmpty(msg))
		}

	case CommandTags:
		if a.current != nil {
			a.current.Tags = notification.SplitTags(trailingOrEmpty(msg))
		}

	case CommandBody:
		if a.current != nil {
			body := trailingOrEmpty(msg) + "\n"
			if a.current.Body != nil {
				body = *a.current.Body + body
			}
			a.current.Body = &body
		}

	case CommandNotifyEnd:
		if a.current == nil {
			return notification.Envelope{}, false, nil
		}
		env := *a.current
		a.current = nil
		if msg.Arg(0) != strconv.FormatUint(uint64(env.ID), 10) {
			return notification.Envelope{}, false, fmt.Errorf("%w: end %q does not match start %d", ErrFrame, msg.Arg(0), env.ID)
		}
		return env, true, nil
	}

	return notification.Envelope{}, false, nil
}

func (a *Assembler) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

func trailingOrEmpty(msg Message) string {
	if msg.Trailing == nil {
		return ""
	}
	return *msg.Trailing
}
