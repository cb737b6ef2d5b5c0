package realtime

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// GatewayConfig controls the websocket feed.
type GatewayConfig struct {
	// DevInsecure disables websocket.Accept's origin verification. Dev only.
	DevInsecure bool `env:"TASKTRACK_WS_DEV_INSECURE" envDefault:"false"`

	OriginRequired bool     `env:"TASKTRACK_WS_ORIGIN_REQUIRED" envDefault:"true"`
	AllowedOrigins []string `env:"TASKTRACK_WS_ALLOWED_ORIGINS" envDefault:"http://localhost,http://127.0.0.1" envSeparator:","`

	WriteTimeout time.Duration `env:"TASKTRACK_WS_WRITE_TIMEOUT" envDefault:"5s"`
	// ReadIdleTimeout bounds how long a session may go without an inbound frame
	// or an answered ping.
	ReadIdleTimeout  time.Duration `env:"TASKTRACK_WS_READ_IDLE_TIMEOUT" envDefault:"2m"`
	HandshakeTimeout time.Duration `env:"TASKTRACK_WS_HANDSHAKE_TIMEOUT" envDefault:"10s"`
	SendQueue        int           `env:"TASKTRACK_WS_SEND_QUEUE" envDefault:"256"`

	HeartbeatInterval time.Duration `env:"TASKTRACK_WS_HEARTBEAT_INTERVAL" envDefault:"25s"`
	HeartbeatTimeout  time.Duration `env:"TASKTRACK_WS_HEARTBEAT_TIMEOUT" envDefault:"5s"`

	RateEvents int           `env:"TASKTRACK_WS_RATE_EVENTS" envDefault:"60"`
	RateWindow time.Duration `env:"TASKTRACK_WS_RATE_WINDOW" envDefault:"10s"`
}

// DefaultGatewayConfig mirrors the envDefault tags.
func DefaultGatewayConfig() GatewayConfig {
	return GatewayConfig{
		OriginRequired:    true,
		AllowedOrigins:    []string{"http://localhost", "http://127.0.0.1"},
		WriteTimeout:      wsDefaultWriteTimeout,
		ReadIdleTimeout:   wsDefaultReadIdle,
		HandshakeTimeout:  handshakeTimeout,
		SendQueue:         wsDefaultSendQueueSize,
		HeartbeatInterval: heartbeatInterval,
		HeartbeatTimeout:  heartbeatTimeout,
		RateEvents:        rateLimitEvents,
		RateWindow:        rateLimitWindow,
	}
}

// LoadGatewayConfigFromEnv reads TASKTRACK_WS_* variables. Non-positive values fall back to defaults.
func LoadGatewayConfigFromEnv() (GatewayConfig, error) {
	var cfg GatewayConfig
	if err := env.Parse(&cfg); err != nil {
		return GatewayConfig{}, fmt.Errorf("realtime: config: %w", err)
	}
	cfg.normalize()
	return cfg, nil
}

func (c *GatewayConfig) normalize() {
	def := DefaultGatewayConfig()
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	if c.ReadIdleTimeout <= 0 {
		c.ReadIdleTimeout = def.ReadIdleTimeout
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = def.HandshakeTimeout
	}
	if c.SendQueue < wsMinSendQueueSize {
		c.SendQueue = wsMinSendQueueSize
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = def.HeartbeatInterval
	}
	if c.HeartbeatTimeout <= 0 {
		c.HeartbeatTimeout = def.HeartbeatTimeout
	}
	if c.RateEvents <= 0 {
		c.RateEvents = def.RateEvents
	}
	if c.RateWindow <= 0 {
		c.RateWindow = def.RateWindow
	}
}
