package protocol

import (
	"fmt"
	"strconv"
	"strings"
)

// Sign marks a message as a reply
type Sign byte

const (
	// SignNone marks a request
	SignNone Sign = 0
	// SignSuccess marks a successful reply
	SignSuccess Sign = '+'
	// SignFailure marks a failed reply
	SignFailure Sign = '-'
)

// Message is one parsed protocol line
type Message struct {
	ID        *uint32
	Sign      Sign
	Command   string
	Arguments []string
	Trailing  *string
}

// Verb returns the command normalized for dispatch
func (m Message) Verb() string {
	return strings.ToUpper(m.Command)
}

// IsReply reports whether the message carries a sign
func (m Message) IsReply() bool {
	return m.Sign != SignNone
}

// Arg returns the i-th argument, or "" when absent
func (m Message) Arg(i int) string {
	if i < 0 || i >= len(m.Arguments) {
		return ""
	}
	return m.Arguments[i]
}

// String renders the message back into a wire line, terminator included
func (m Message) String() string {
	var b strings.Builder
	if m.ID != nil {
		b.WriteString(strconv.FormatUint(uint64(*m.ID), 10))
		b.WriteByte(' ')
	}
	if m.Sign != SignNone {
		b.WriteByte(byte(m.Sign))
	}
	b.WriteString(m.Command)
	for _, arg := range m.Arguments {
		b.WriteByte(' ')
		b.WriteString(arg)
	}
	if m.Trailing != nil {
		b.WriteString(" : ")
		b.WriteString(*m.Trailing)
	}
	b.WriteString("\r\n")
	return b.String()
}

// ParseError describes where a line stopped matching the grammar
type ParseError struct {
	Line  string
	Pos   int
	Stage string
}

func (e *ParseError) Error() string {
	if e.Pos < len(e.Line) {
		return fmt.Sprintf("invalid %s at column %d near %q", e.Stage, e.Pos+1, e.Line[e.Pos:])
	}
	return fmt.Sprintf("invalid %s at end of line", e.Stage)
}

// Parse parses one line. A single trailing "\r\n" or "\n" is accepted but not
// required, so Parse also works on exact substrings of a buffer.
func Parse(raw string) (Message, error) {
	line := strings.TrimSuffix(raw, "\n")
	line = strings.TrimSuffix(line, "\r")

	var msg Message
	p := 0

	// [<id> ]: digits followed by at least one blank. Anything else is left for
	// the command, so "404" alone is a command, not an id.
	if end := scan(line, p, isDigit); end > p {
		if blanks := scan(line, end, isBlank); blanks > end {
			if id, err := strconv.ParseUint(line[p:end], 10, 32); err == nil {
				id32 := uint32(id)
				msg.ID = &id32
				p = blanks
			}
		}
	}

	if p < len(line) && (line[p] == '+' || line[p] == '-') {
		msg.Sign = Sign(line[p])
		p++
	}

	end := scan(line, p, isCommandChar)
	if end == p {
		return Message{}, &ParseError{Line: line, Pos: p, Stage: "command"}
	}
	msg.Command = line[p:end]
	p = end

	for {
		blanks := scan(line, p, isBlank)
		if blanks == p {
			break
		}
		argEnd := scan(line, blanks, isArgChar)
		if argEnd == blanks {
			break
		}
		msg.Arguments = append(msg.Arguments, line[blanks:argEnd])
		p = argEnd
	}

	if colon := scan(line, p, isBlank); colon < len(line) && line[colon] == ':' {
		start := scan(line, colon+1, isBlank)
		trailing := line[start:]
		msg.Trailing = &trailing
		p = len(line)
	} else {
		// trailing blanks after the command or last argument are ignored
		p = colon
	}

	if p != len(line) {
		return Message{}, &ParseError{Line: line, Pos: p, Stage: "argument"}
	}

	return msg, nil
}

func scan(s string, from int, accept func(byte) bool) int {
	i := from
	for i < len(s) && accept(s[i]) {
		i++
	}
	return i
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isBlank(c byte) bool {
	return c == ' ' || c == '\t'
}

func isCommandChar(c byte) bool {
	return isDigit(c) || c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isArgChar(c byte) bool {
	return c != ' ' && c != '\t' && c != '\r' && c != '\n' && c != ':'
}
