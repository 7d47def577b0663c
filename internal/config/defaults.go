package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultListenAddr     = ":8080"
	DefaultHealthPort     = 9090
	DefaultWriteTimeout   = 5 * time.Second
	DefaultPingInterval   = 15 * time.Second
	DefaultReadTimeout    = 60 * time.Second
	DefaultMaxMessageSize = 64 * 1024
	DefaultSendBufferSize = 256
	DefaultDBPort         = 5432
	DefaultDBSSLMode      = "prefer"
	DefaultMaxConns       = 10
	DefaultMinConns       = 2
	DefaultRecordTTL      = 24 * time.Hour
	DefaultSweepInterval  = 10 * time.Minute
	DefaultClientPolicy   = "complement"
)

func (c *RelayConfig) applyDefaults() {
	// Server defaults
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultListenAddr
	}
	if c.Server.HealthPort == 0 {
		c.Server.HealthPort = DefaultHealthPort
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = DefaultWriteTimeout
	}
	if c.Server.PingInterval == 0 {
		c.Server.PingInterval = DefaultPingInterval
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = DefaultReadTimeout
	}
	if c.Server.MaxMessageSize == 0 {
		c.Server.MaxMessageSize = DefaultMaxMessageSize
	}
	if c.Server.SendBufferSize == 0 {
		c.Server.SendBufferSize = DefaultSendBufferSize
	}

	// Database defaults
	applyDBDefaults(&c.Database.Postgres)

	// Directory defaults
	if c.Directory.TTL == 0 {
		c.Directory.TTL = DefaultRecordTTL
	}
	if c.Directory.SweepInterval == 0 {
		c.Directory.SweepInterval = DefaultSweepInterval
	}

	// Routing defaults
	if c.Routing.ClientPolicy == "" {
		c.Routing.ClientPolicy = DefaultClientPolicy
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
