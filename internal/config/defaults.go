package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultSourceBaseURL     = "https://dados.cvm.gov.br/dados/FI/DOC/INF_DIARIO/DADOS"
	DefaultSourceTimeout     = 5 * time.Minute
	DefaultRequestsPerSecond = 2
	DefaultUserAgent         = "fund-data/1.0"
	DefaultPartitionDir      = "data/partitions"
	DefaultChunkSize         = 400_000
	DefaultWarehouseDriver   = DriverDuckDB
	DefaultWarehousePath     = "data/warehouse.duckdb"
	DefaultQueryTimeout      = 30 * time.Second
	DefaultDBPort            = 5432
	DefaultDBSSLMode         = "prefer"
	DefaultMaxConns          = 10
	DefaultMinConns          = 2
	DefaultIngestConcurrency = 4
	DefaultBenchmarkBaseURL  = "https://api.bcb.gov.br/dados/serie"
	DefaultBenchmarkTimeout  = 30 * time.Second
	DefaultBenchmark         = "CDI"
	DefaultGapPolicy         = GapPolicyCarryForward
	DefaultServerPort        = 8080
	DefaultReadTimeout       = 15 * time.Second
	DefaultWriteTimeout      = 60 * time.Second
	DefaultShutdownTimeout   = 10 * time.Second
	DefaultMetricsPath       = "/metrics"
	DefaultLogLevel          = "info"
	DefaultLogFormat         = "text"
)

// Warehouse drivers.
const (
	DriverDuckDB   = "duckdb"
	DriverPostgres = "postgres"
)

// Benchmark gap policies.
const (
	GapPolicyCarryForward = "carry_forward"
	GapPolicyFlat         = "flat"
)

// DefaultBenchmarkSeries maps rate names to their central bank SGS series ids.
func DefaultBenchmarkSeries() map[string]int {
	return map[string]int{
		"CDI":  4391,
		"IPCA": 433,
		"TR":   7811,
	}
}

func (c *Config) applyDefaults() {
	// Source defaults
	if c.Source.BaseURL == "" {
		c.Source.BaseURL = DefaultSourceBaseURL
	}
	if c.Source.Timeout == 0 {
		c.Source.Timeout = DefaultSourceTimeout
	}
	if c.Source.RequestsPerSecond == 0 {
		c.Source.RequestsPerSecond = DefaultRequestsPerSecond
	}
	if c.Source.UserAgent == "" {
		c.Source.UserAgent = DefaultUserAgent
	}

	// Partition defaults
	if c.Partitions.Dir == "" {
		c.Partitions.Dir = DefaultPartitionDir
	}
	if c.Partitions.ChunkSize == 0 {
		c.Partitions.ChunkSize = DefaultChunkSize
	}

	// Warehouse defaults
	if c.Warehouse.Driver == "" {
		c.Warehouse.Driver = DefaultWarehouseDriver
	}
	if c.Warehouse.Driver == DriverDuckDB && c.Warehouse.Path == "" {
		c.Warehouse.Path = DefaultWarehousePath
	}
	if c.Warehouse.QueryTimeout == 0 {
		c.Warehouse.QueryTimeout = DefaultQueryTimeout
	}
	applyDBDefaults(&c.Warehouse.Postgres)

	// Ingest defaults
	if c.Ingest.Concurrency == 0 {
		c.Ingest.Concurrency = DefaultIngestConcurrency
	}

	// Benchmark defaults
	if c.Benchmark.BaseURL == "" {
		c.Benchmark.BaseURL = DefaultBenchmarkBaseURL
	}
	if c.Benchmark.Timeout == 0 {
		c.Benchmark.Timeout = DefaultBenchmarkTimeout
	}
	if len(c.Benchmark.Series) == 0 {
		c.Benchmark.Series = DefaultBenchmarkSeries()
	}

	// Returns defaults
	if c.Returns.Benchmark == "" {
		c.Returns.Benchmark = DefaultBenchmark
	}
	if c.Returns.GapPolicy == "" {
		c.Returns.GapPolicy = DefaultGapPolicy
	}

	// Server defaults
	if c.Server.Port == 0 {
		c.Server.Port = DefaultServerPort
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = DefaultReadTimeout
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = DefaultWriteTimeout
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = DefaultShutdownTimeout
	}

	// Metrics defaults
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}

	// Logging defaults
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
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
