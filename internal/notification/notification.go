// Package notification holds the notification record passed between the
// session layer, persistence and the fan-out, and the per-session builder that
// accumulates one before SEND.
package notification

import (
	"errors"
	"strings"
	"time"
)

// ErrMissingTrailing is returned when a field update needs text and none was given.
var ErrMissingTrailing = errors.New("missing trailing text")

// Envelope is a finalized notification. Title and Body are nil when unset;
// a set-but-empty title is distinct from no title.
type Envelope struct {
	ID        uint32
	User      string
	Title     *string
	Body      *string
	Tags      []string
	Timestamp time.Time
}

// BodyLines splits the body into the lines it was built from.
func (e Envelope) BodyLines() []string {
	if e.Body == nil {
		return nil
	}
	return SplitLines(*e.Body)
}

// SplitLines splits newline-terminated text into lines. A trailing newline does
// not produce an extra empty line, and a carriage return before a newline is dropped.
func SplitLines(text string) []string {
	if text == "" {
		return nil
	}
	lines := strings.Split(strings.TrimSuffix(text, "\n"), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines
}

// JoinTags renders tags the way they are stored and sent: space separated.
func JoinTags(tags []string) string {
	return strings.Join(tags, " ")
}

// SplitTags is the inverse of JoinTags; empty fields are skipped.
func SplitTags(s string) []string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return nil
	}
	return fields
}

// Builder accumulates the fields of the next notification of one session.
// It is not safe for concurrent use; the owning session serializes access.
type Builder struct {
	title *string
	body  *string
	tags  []string
}

// NewBuilder returns an empty builder
func NewBuilder() *Builder {
	return &Builder{}
}

// SetTitle overwrites the title
func (b *Builder) SetTitle(text string) {
	b.title = &text
}

// AppendBody adds a line to the body. With reset, or when there is no body yet,
// the body restarts at line. A nil line with reset clears the body; a nil line
// without reset is ErrMissingTrailing.
func (b *Builder) AppendBody(line *string, reset bool) error {
	if line == nil {
		if !reset {
			return ErrMissingTrailing
		}
		b.body = nil
		return nil
	}

	if reset || b.body == nil {
		body := *line + "\n"
		b.body = &body
		return nil
	}

	body := *b.body + *line + "\n"
	b.body = &body
	return nil
}

// AddTags appends tags that are not present yet, keeping first-seen order.
func (b *Builder) AddTags(tags ...string) {
	for _, tag := range tags {
		if tag == "" || b.hasTag(tag) {
			continue
		}
		b.tags = append(b.tags, tag)
	}
}

// ClearTags removes all tags
func (b *Builder) ClearTags() {
	b.tags = nil
}

func (b *Builder) hasTag(tag string) bool {
	for _, existing := range b.tags {
		if existing == tag {
			return true
		}
	}
	return false
}

// Reset clears all fields
func (b *Builder) Reset() {
	b.title = nil
	b.body = nil
	b.tags = nil
}

// Snapshot freezes the current fields into an Envelope. The builder keeps its
// state; callers reset it explicitly after a successful SEND.
func (b *Builder) Snapshot(user string, id uint32, ts time.Time) Envelope {
	env := Envelope{
		ID:        id,
		User:      user,
		Timestamp: ts,
	}
	if b.title != nil {
		title := *b.title
		env.Title = &title
	}
	if b.body != nil {
		body := *b.body
		env.Body = &body
	}
	if len(b.tags) > 0 {
		env.Tags = append([]string(nil), b.tags...)
	}
	return env
}
