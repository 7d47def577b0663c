package config

import "time"

// RelayConfig is the root configuration for a relay instance.
type RelayConfig struct {
	Instance  InstanceConfig  `yaml:"instance"`
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Directory DirectoryConfig `yaml:"directory"`
	Routing   RoutingConfig   `yaml:"routing"`
}

// InstanceConfig identifies this relay instance.
type InstanceConfig struct {
	ID string `yaml:"id"`
	AZ string `yaml:"az"`
}

// ServerConfig holds the WebSocket gateway settings.
type ServerConfig struct {
	Addr           string        `yaml:"addr"`             // Listen address for websocket upgrades
	HealthPort     int           `yaml:"health_port"`      // Port for the /health endpoint
	WriteTimeout   time.Duration `yaml:"write_timeout"`    // Write deadline for outbound frames
	PingInterval   time.Duration `yaml:"ping_interval"`    // Interval between control pings
	ReadTimeout    time.Duration `yaml:"read_timeout"`     // Max time without a pong before the socket is stale
	MaxMessageSize int64         `yaml:"max_message_size"` // Max inbound frame size in bytes
	SendBufferSize int           `yaml:"send_buffer_size"` // Per-connection outbound queue length
}

// DatabaseConfig holds the Postgres connection for the directory store.
type DatabaseConfig struct {
	Postgres DBConfig `yaml:"postgres"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// DirectoryConfig holds connection-record lifetime settings.
type DirectoryConfig struct {
	TTL           time.Duration `yaml:"ttl"`            // Record lifetime; 0 disables expiry
	SweepInterval time.Duration `yaml:"sweep_interval"` // How often the janitor purges expired records
}

// RoutingConfig holds recipient selection settings.
type RoutingConfig struct {
	// ClientPolicy selects which client side receives an event relative to
	// the client that produced it: "complement" (backend events go to
	// frontend connections and vice versa), "same", or "any".
	ClientPolicy string `yaml:"client_policy"`
}
