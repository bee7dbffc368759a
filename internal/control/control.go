// Package control serves the out-of-band status and roster queries of a
// running notificationd over a Unix socket, and provides the matching client.
package control

// ServerStatus describes a daemon running in server mode
type ServerStatus struct {
	Bind        string `json:"bind"`
	Connections int    `json:"connections"`
	Persistent  bool   `json:"persistent"`
}

// ClientStatus describes a daemon running as a forwarding client
type ClientStatus struct {
	Server    string `json:"server"`
	Login     string `json:"login"`
	Consume   bool   `json:"consume"`
	Connected bool   `json:"connected"`
}

// Status is the answer to GET /status. Exactly one field is set.
type Status struct {
	Server *ServerStatus `json:"server,omitempty"`
	Client *ClientStatus `json:"client,omitempty"`
}

// Peer is one authenticated connection
type Peer struct {
	Login   string `json:"login"`
	Consume bool   `json:"consume"`
	Address string `json:"address"`
}

// WhoResponse is the answer to GET /who
type WhoResponse struct {
	Clients []Peer `json:"clients"`
}

// Provider supplies the data served on the control socket
type Provider interface {
	Status() Status
	Who() []Peer
}
