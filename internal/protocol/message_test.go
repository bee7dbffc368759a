package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func u32(v uint32) *uint32 { return &v }

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		line string
		want Message
	}{
		{
			name: "bare command",
			line: "QUIT\r\n",
			want: Message{Command: "QUIT"},
		},
		{
			name: "command with argument",
			line: "LOGIN alice",
			want: Message{Command: "LOGIN", Arguments: []string{"alice"}},
		},
		{
			name: "id and trailing",
			line: "7 TITLE : Build finished\r\n",
			want: Message{ID: u32(7), Command: "TITLE", Trailing: Text("Build finished")},
		},
		{
			name: "arguments and trailing",
			line: "BODY RST : first line",
			want: Message{Command: "BODY", Arguments: []string{"RST"}, Trailing: Text("first line")},
		},
		{
			name: "empty trailing",
			line: "BODY :",
			want: Message{Command: "BODY", Trailing: Text("")},
		},
		{
			name: "colon without spaces",
			line: "TITLE:hello: world",
			want: Message{Command: "TITLE", Trailing: Text("hello: world")},
		},
		{
			name: "blank after command",
			line: "SEND ",
			want: Message{Command: "SEND"},
		},
		{
			name: "blank after last argument",
			line: "LOGIN alice \r\n",
			want: Message{Command: "LOGIN", Arguments: []string{"alice"}},
		},
		{
			name: "tab after argument",
			line: "CONSUME on\t",
			want: Message{Command: "CONSUME", Arguments: []string{"on"}},
		},
		{
			name: "success reply",
			line: "3 +SEND 2\r\n",
			want: Message{ID: u32(3), Sign: SignSuccess, Command: "SEND", Arguments: []string{"2"}},
		},
		{
			name: "failure reply",
			line: "-LOGIN ALREADY_LOGGED_IN : You are already logged in as bob. Please reconnect.",
			want: Message{
				Sign:      SignFailure,
				Command:   "LOGIN",
				Arguments: []string{"ALREADY_LOGGED_IN"},
				Trailing:  Text("You are already logged in as bob. Please reconnect."),
			},
		},
		{
			name: "numeric command without id",
			line: "404",
			want: Message{Command: "404"},
		},
		{
			name: "tabs separate arguments",
			line: "CONSUME\ttrue",
			want: Message{Command: "CONSUME", Arguments: []string{"true"}},
		},
		{
			name: "trailing space before end",
			line: "WHO ",
			want: Message{Command: "WHO"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.line)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseErrors(t *testing.T) {
	for _, line := range []string{
		"",
		"\r\n",
		"   ",
		": just trailing",
		"12 ",
		"LOGIN@host",
		"+",
	} {
		t.Run(line, func(t *testing.T) {
			_, err := Parse(line)
			require.Error(t, err)
			var perr *ParseError
			assert.ErrorAs(t, err, &perr)
		})
	}
}

func TestParseErrorMessage(t *testing.T) {
	_, err := Parse("LOGIN@host")
	require.Error(t, err)
	assert.Equal(t, `invalid argument at column 6 near "@host"`, err.Error())

	_, err = Parse("")
	require.Error(t, err)
	assert.Equal(t, "invalid command at end of line", err.Error())
}

func TestVerbIsCaseInsensitive(t *testing.T) {
	msg, err := Parse("login alice")
	require.NoError(t, err)
	assert.Equal(t, "login", msg.Command)
	assert.Equal(t, "LOGIN", msg.Verb())
	assert.Equal(t, "alice", msg.Arg(0))
	assert.Equal(t, "", msg.Arg(1))
	assert.False(t, msg.IsReply())
}

func TestMessageStringRoundTrip(t *testing.T) {
	for _, line := range []string{
		"QUIT\r\n",
		"1 LOGIN alice\r\n",
		"2 BODY RST : a line with: colons\r\n",
		"+WHO alice CONSUME : 127.0.0.1:4000\r\n",
		"9 -ERR PARSE : invalid command at end of line\r\n",
		"TITLE : \r\n",
	} {
		msg, err := Parse(line)
		require.NoError(t, err, line)
		assert.Equal(t, line, msg.String())
	}
}
