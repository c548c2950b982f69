package transport

import "time"

// Role defines which side of the connection this process is.
type Role uint8

const (
	RoleNone   Role = iota // networking disabled
	RoleClient             // connects to a server
	RoleServer             // accepts connections
)

// Kind selects the underlying connection type.
type Kind string

const (
	KindTCP       Kind = "tcp"
	KindWebSocket Kind = "ws"
)

// Config holds transport configuration.
type Config struct {
	Role Role
	Kind Kind

	// Address to bind (server) or connect to (client). For WebSocket clients this is
	// host:port; Path is appended.
	Address string
	Path    string

	MaxPeers int

	ConnectTimeout    time.Duration
	WriteTimeout      time.Duration
	HeartbeatInterval time.Duration

	SendQueueSize int
}

// DefaultConfig returns defaults suitable for a LAN session.
func DefaultConfig() *Config {
	return &Config{
		Role:              RoleNone,
		Kind:              KindTCP,
		Address:           ":7777",
		Path:              "/sync",
		MaxPeers:          16,
		ConnectTimeout:    5 * time.Second,
		WriteTimeout:      5 * time.Second,
		HeartbeatInterval: 10 * time.Second,
		SendQueueSize:     256,
	}
}
