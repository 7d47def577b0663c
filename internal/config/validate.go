package config

import (
	"errors"
	"fmt"
)

// Validate checks that all required fields are set and values are valid.
func (c *RelayConfig) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}

	if c.Server.Addr == "" {
		return errors.New("server.addr is required")
	}
	if c.Server.HealthPort < 1 || c.Server.HealthPort > 65535 {
		return fmt.Errorf("server.health_port must be between 1 and 65535, got %d", c.Server.HealthPort)
	}
	if c.Server.PingInterval >= c.Server.ReadTimeout {
		return fmt.Errorf("server.ping_interval (%s) must be shorter than read_timeout (%s)",
			c.Server.PingInterval, c.Server.ReadTimeout)
	}

	if err := c.Database.Postgres.validate("database.postgres"); err != nil {
		return err
	}

	if c.Directory.TTL < 0 {
		return errors.New("directory.ttl must be >= 0")
	}
	if c.Directory.TTL > 0 && c.Directory.SweepInterval < 1 {
		return errors.New("directory.sweep_interval must be >= 1 when ttl is set")
	}

	switch c.Routing.ClientPolicy {
	case "complement", "same", "any":
	default:
		return fmt.Errorf("routing.client_policy must be one of complement, same, any, got %q",
			c.Routing.ClientPolicy)
	}

	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
