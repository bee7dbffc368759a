package display

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/codefionn/notificationd/internal/notification"
)

// Command hands notifications to an external program, notify-send by default,
// as: <program> -a <user> -- <title> <body>
type Command struct {
	Program string

	run func(ctx context.Context, name string, args ...string) error
}

// NewCommand creates a sink running program; empty means notify-send
func NewCommand(program string) *Command {
	if program == "" {
		program = SinkNotifySend
	}
	return &Command{Program: program, run: runCommand}
}

// Display runs the program for env
func (c *Command) Display(ctx context.Context, env notification.Envelope) error {
	user := env.User
	if user == "" {
		user = "notificationd"
	}
	body := strings.Join(env.BodyLines(), "\n")

	// "--" keeps publisher-supplied text from being read as options
	return c.run(ctx, c.Program, "-a", user, "--", textOr(env.Title, ""), body)
}

func runCommand(ctx context.Context, name string, args ...string) error {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		msg := strings.TrimSpace(string(out))
		if msg != "" {
			return fmt.Errorf("%s failed: %w: %s", name, err, msg)
		}
		return fmt.Errorf("%s failed: %w", name, err)
	}
	return nil
}

// New returns the sink named kind
func New(kind string) (Sink, error) {
	switch kind {
	case "", SinkTerminal:
		return NewTerminal(stdout), nil
	case SinkNotifySend:
		return NewCommand(""), nil
	default:
		return nil, fmt.Errorf("unknown display sink %q", kind)
	}
}
