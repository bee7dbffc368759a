package notification

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func str(s string) *string { return &s }

func TestBuilder_AppendBody(t *testing.T) {
	b := NewBuilder()

	require.NoError(t, b.AppendBody(str("line1"), false))
	require.NoError(t, b.AppendBody(str("line2"), false))

	env := b.Snapshot("alice", 1, time.Time{})
	require.NotNil(t, env.Body)
	assert.Equal(t, "line1\nline2\n", *env.Body)

	require.NoError(t, b.AppendBody(str("line3"), true))
	env = b.Snapshot("alice", 2, time.Time{})
	assert.Equal(t, "line3\n", *env.Body)
}

func TestBuilder_AppendBodyWithoutLine(t *testing.T) {
	b := NewBuilder()
	require.NoError(t, b.AppendBody(str("kept"), false))

	err := b.AppendBody(nil, false)
	assert.ErrorIs(t, err, ErrMissingTrailing)
	assert.Equal(t, "kept\n", *b.Snapshot("a", 1, time.Time{}).Body, "failed append must not touch the body")

	require.NoError(t, b.AppendBody(nil, true))
	assert.Nil(t, b.Snapshot("a", 1, time.Time{}).Body)
}

func TestBuilder_EmptyLine(t *testing.T) {
	b := NewBuilder()
	require.NoError(t, b.AppendBody(str(""), false))

	env := b.Snapshot("a", 1, time.Time{})
	assert.Equal(t, "\n", *env.Body)
	assert.Equal(t, []string{""}, env.BodyLines())
}

func TestBuilder_Tags(t *testing.T) {
	b := NewBuilder()
	b.AddTags("build", "ci", "build", "", "deploy")
	assert.Equal(t, []string{"build", "ci", "deploy"}, b.Snapshot("a", 1, time.Time{}).Tags)

	b.ClearTags()
	assert.Nil(t, b.Snapshot("a", 1, time.Time{}).Tags)
}

func TestBuilder_ResetAndSnapshotIsolation(t *testing.T) {
	b := NewBuilder()
	b.SetTitle("first")
	b.AddTags("x")
	require.NoError(t, b.AppendBody(str("hello"), false))

	ts := time.Unix(1700000000, 0)
	env := b.Snapshot("bob@host", 7, ts)

	b.SetTitle("second")
	b.Reset()

	assert.Equal(t, uint32(7), env.ID)
	assert.Equal(t, "bob@host", env.User)
	assert.Equal(t, "first", *env.Title)
	assert.Equal(t, []string{"x"}, env.Tags)
	assert.Equal(t, ts, env.Timestamp)

	empty := b.Snapshot("bob@host", 8, ts)
	assert.Nil(t, empty.Title)
	assert.Nil(t, empty.Body)
	assert.Empty(t, empty.Tags)
}

func TestSplitLines(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"\n", []string{""}},
		{"a\nb\n", []string{"a", "b"}},
		{"a\r\nb", []string{"a", "b"}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SplitLines(tt.in), "SplitLines(%q)", tt.in)
	}
}

func TestTagsRoundTrip(t *testing.T) {
	assert.Equal(t, "a b c", JoinTags([]string{"a", "b", "c"}))
	assert.Equal(t, []string{"a", "b"}, SplitTags(" a  b "))
	assert.Nil(t, SplitTags(""))
}
