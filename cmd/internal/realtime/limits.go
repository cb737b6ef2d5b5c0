package realtime

import "time"

const (
	// Clients only send hello and ping, so frames stay small.
	maxFrameBytes = 16 << 10

	// Hello tokens longer than this are rejected before verification.
	maxHelloTokenBytes = 4 << 10
)

const (
	heartbeatInterval = 25 * time.Second
	heartbeatTimeout  = 5 * time.Second

	// Per-connection inbound limit (events per window).
	rateLimitEvents = 60
	rateLimitWindow = 10 * time.Second

	// Time allowed for an unauthenticated connection to send hello.
	handshakeTimeout = 10 * time.Second
)
