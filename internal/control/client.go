package control

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"

	"github.com/codefionn/notificationd/internal/consts"
)

// Client queries a control socket
type Client struct {
	socketPath string
	http       *http.Client
}

// NewClient creates a client for the socket at socketPath
func NewClient(socketPath string) *Client {
	dialer := &net.Dialer{Timeout: consts.Timeout5Seconds}
	transport := &http.Transport{
		DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
			return dialer.DialContext(ctx, "unix", socketPath)
		},
	}

	return &Client{
		socketPath: socketPath,
		http: &http.Client{
			Transport: transport,
			Timeout:   consts.Timeout10Seconds,
		},
	}
}

// Status fetches GET /status
func (c *Client) Status(ctx context.Context) (Status, error) {
	var status Status
	err := c.get(ctx, "/status", &status)
	return status, err
}

// Who fetches GET /who
func (c *Client) Who(ctx context.Context) ([]Peer, error) {
	var resp WhoResponse
	if err := c.get(ctx, "/who", &resp); err != nil {
		return nil, err
	}
	return resp.Clients, nil
}

// Close releases idle connections
func (c *Client) Close() {
	c.http.CloseIdleConnections()
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	// The host is ignored by the Unix dialer
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://notificationd"+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach %s: %w", c.socketPath, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("control request %s failed: %s: %s", path, resp.Status, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}
