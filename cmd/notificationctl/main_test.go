package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codefionn/notificationd/internal/control"
	"github.com/codefionn/notificationd/internal/logger"
)

type fakeProvider struct {
	status control.Status
	peers  []control.Peer
}

func (f *fakeProvider) Status() control.Status { return f.status }

func (f *fakeProvider) Who() []control.Peer { return f.peers }

func startControl(t *testing.T, provider control.Provider) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "ndctl")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(dir) })

	socket := filepath.Join(dir, "c.sock")
	srv := control.NewServer(socket, provider, nil, logger.NewWithWriter(logger.LevelNone, io.Discard, ""))
	require.NoError(t, srv.Start())
	t.Cleanup(func() { _ = srv.Stop() })
	return socket
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	socketPath, userSocket, jsonOutput = "", false, false

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestStatusServer(t *testing.T) {
	socket := startControl(t, &fakeProvider{
		status: control.Status{Server: &control.ServerStatus{Bind: "0.0.0.0:6606", Connections: 3, Persistent: true}},
	})

	out, err := execute(t, "status", "--socket", socket)
	require.NoError(t, err)
	assert.Contains(t, out, "Mode:        server\n")
	assert.Contains(t, out, "Bind:        0.0.0.0:6606\n")
	assert.Contains(t, out, "Connections: 3\n")
	assert.Contains(t, out, "History:     enabled\n")
}

func TestStatusClientJSON(t *testing.T) {
	socket := startControl(t, &fakeProvider{
		status: control.Status{Client: &control.ClientStatus{Server: "relay:6606", Login: "me@box", Consume: true}},
	})

	out, err := execute(t, "--json", "status", "--socket", socket)
	require.NoError(t, err)
	assert.JSONEq(t, `{"client":{"server":"relay:6606","login":"me@box","consume":true,"connected":false}}`, out)
}

func TestWho(t *testing.T) {
	socket := startControl(t, &fakeProvider{
		peers: []control.Peer{
			{Login: "alice", Consume: true, Address: "10.0.0.1:4000"},
			{Login: "bob", Consume: false, Address: "10.0.0.2:4000"},
		},
	})

	out, err := execute(t, "who", "--socket", socket)
	require.NoError(t, err)
	lines := bytes.Split(bytes.TrimSpace([]byte(out)), []byte("\n"))
	require.Len(t, lines, 3)
	assert.Equal(t, "LOGIN  CONSUME  ADDRESS", string(bytes.TrimSpace(lines[0])))
	assert.Equal(t, "alice  on       10.0.0.1:4000", string(bytes.TrimSpace(lines[1])))
	assert.Equal(t, "bob    off      10.0.0.2:4000", string(bytes.TrimSpace(lines[2])))
}

func TestWhoEmpty(t *testing.T) {
	socket := startControl(t, &fakeProvider{})

	out, err := execute(t, "who", "--socket", socket)
	require.NoError(t, err)
	assert.Equal(t, "No clients logged in\n", out)
}

func TestMissingSocket(t *testing.T) {
	_, err := execute(t, "status", "--socket", filepath.Join(t.TempDir(), "absent.sock"))
	assert.ErrorContains(t, err, "no notificationd control socket")
}

func TestResolveSocket(t *testing.T) {
	socketPath, userSocket = "", false
	assert.Equal(t, control.Address(0), resolveSocket())

	userSocket = true
	assert.Equal(t, control.Address(os.Getuid()), resolveSocket())

	socketPath = "/tmp/x.sock"
	assert.Equal(t, "/tmp/x.sock", resolveSocket())
	socketPath, userSocket = "", false
}
