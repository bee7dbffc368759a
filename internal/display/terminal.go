package display

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"
	"golang.org/x/term"

	"github.com/codefionn/notificationd/internal/notification"
)

const defaultWidth = 80

// Terminal prints notifications as styled, word-wrapped blocks
type Terminal struct {
	out   io.Writer
	width int

	mu          sync.Mutex
	headerStyle lipgloss.Style
	titleStyle  lipgloss.Style
	tagStyle    lipgloss.Style
	bodyStyle   lipgloss.Style
}

// NewTerminal creates a sink writing to out. When out is a terminal its width
// is used for wrapping.
func NewTerminal(out io.Writer) *Terminal {
	width := defaultWidth
	if f, ok := out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		if w, _, err := term.GetSize(int(f.Fd())); err == nil && w > 0 {
			width = w
		}
	}

	renderer := lipgloss.NewRenderer(out)
	return &Terminal{
		out:         out,
		width:       width,
		headerStyle: renderer.NewStyle().Foreground(lipgloss.Color("241")),
		titleStyle:  renderer.NewStyle().Bold(true).Foreground(lipgloss.Color("205")),
		tagStyle:    renderer.NewStyle().Foreground(lipgloss.Color("214")),
		bodyStyle:   renderer.NewStyle().PaddingLeft(2),
	}
}

// Display writes env to the terminal
func (t *Terminal) Display(_ context.Context, env notification.Envelope) error {
	var sb strings.Builder

	header := fmt.Sprintf("#%d %s", env.ID, env.User)
	if !env.Timestamp.IsZero() {
		header += " " + env.Timestamp.Local().Format("15:04:05")
	}
	sb.WriteString(t.headerStyle.Render(header))
	sb.WriteString("\n")

	if env.Title != nil {
		sb.WriteString(t.titleStyle.Render(*env.Title))
		sb.WriteString("\n")
	}

	if len(env.Tags) > 0 {
		tags := make([]string, len(env.Tags))
		for i, tag := range env.Tags {
			tags[i] = "#" + tag
		}
		sb.WriteString(t.tagStyle.Render(strings.Join(tags, " ")))
		sb.WriteString("\n")
	}

	if lines := env.BodyLines(); len(lines) > 0 {
		body := wordwrap.String(strings.Join(lines, "\n"), max(t.width-2, 10))
		sb.WriteString(t.bodyStyle.Render(body))
		sb.WriteString("\n")
	}

	sb.WriteString("\n")

	t.mu.Lock()
	defer t.mu.Unlock()
	_, err := io.WriteString(t.out, sb.String())
	return err
}
