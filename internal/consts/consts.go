package consts

import "time"

// Identity reported by VERSION and the control socket
var (
	// AppName is the program name sent in VERSION replies
	AppName = "notificationd"
	// Version is overridden at build time with -ldflags "-X ..."
	Version = "0.3.0"
)

// Network defaults
const (
	// DefaultPort is the TCP port the relay listens on
	DefaultPort = 6606
	// DefaultBind is the default server bind address
	DefaultBind = "0.0.0.0:6606"
	// ControlSocketName is the file name of the control socket
	ControlSocketName = "notificationd.sock"
)

// Buffer sizes for various operations
const (
	// BufferSize4KB is 4 kilobytes
	BufferSize4KB = 4 * 1024
	// BufferSize64KB is 64 kilobytes
	BufferSize64KB = 64 * 1024
	// DefaultSendQueueSize is the per-session outbound queue capacity
	DefaultSendQueueSize = 1024
	// DefaultMaxConnections caps concurrently accepted connections
	DefaultMaxConnections = 1024
	// DefaultHistoryLimit is the number of records HISTORY returns without an argument
	DefaultHistoryLimit = 100
)

// Timeouts for various operations
const (
	// Timeout1Second is a 1 second timeout
	Timeout1Second = 1 * time.Second
	// Timeout5Seconds is a 5 second timeout
	Timeout5Seconds = 5 * time.Second
	// Timeout10Seconds is a 10 second timeout
	Timeout10Seconds = 10 * time.Second
	// Timeout30Seconds is a 30 second timeout
	Timeout30Seconds = 30 * time.Second
	// Timeout2Minutes is a 2 minute timeout
	Timeout2Minutes = 2 * time.Minute
)
