package config

import (
	"errors"
	"fmt"
	"net/url"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if _, err := url.ParseRequestURI(c.Source.BaseURL); err != nil {
		return fmt.Errorf("source.base_url is invalid: %w", err)
	}
	if c.Source.RequestsPerSecond < 0 {
		return errors.New("source.requests_per_second must be >= 0")
	}

	if c.Partitions.Dir == "" {
		return errors.New("partitions.dir is required")
	}
	if c.Partitions.ChunkSize < 1 {
		return errors.New("partitions.chunk_size must be >= 1")
	}

	switch c.Warehouse.Driver {
	case DriverDuckDB:
	case DriverPostgres:
		if err := c.Warehouse.Postgres.validate("warehouse.postgres"); err != nil {
			return err
		}
	default:
		return fmt.Errorf("warehouse.driver must be %q or %q, got %q", DriverDuckDB, DriverPostgres, c.Warehouse.Driver)
	}
	if c.Warehouse.QueryTimeout < 0 {
		return errors.New("warehouse.query_timeout must be >= 0")
	}

	if c.Ingest.Concurrency < 1 {
		return errors.New("ingest.concurrency must be >= 1")
	}

	if _, err := url.ParseRequestURI(c.Benchmark.BaseURL); err != nil {
		return fmt.Errorf("benchmark.base_url is invalid: %w", err)
	}
	for name, id := range c.Benchmark.Series {
		if name == "" {
			return errors.New("benchmark.series names must not be empty")
		}
		if id < 1 {
			return fmt.Errorf("benchmark.series.%s must be a positive series id, got %d", name, id)
		}
	}

	if _, ok := c.Benchmark.Series[c.Returns.Benchmark]; !ok {
		return fmt.Errorf("returns.benchmark %q is not a configured benchmark series", c.Returns.Benchmark)
	}
	if c.Returns.GapPolicy != GapPolicyCarryForward && c.Returns.GapPolicy != GapPolicyFlat {
		return fmt.Errorf("returns.gap_policy must be %q or %q, got %q", GapPolicyCarryForward, GapPolicyFlat, c.Returns.GapPolicy)
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}

	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be \"text\" or \"json\", got %q", c.Logging.Format)
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
