package config

import "time"

// Config is the root configuration for the fund data tools.
type Config struct {
	Source     SourceConfig     `yaml:"source" split_words:"true"`
	Partitions PartitionsConfig `yaml:"partitions" split_words:"true"`
	Warehouse  WarehouseConfig  `yaml:"warehouse" split_words:"true"`
	Ingest     IngestConfig     `yaml:"ingest" split_words:"true"`
	Benchmark  BenchmarkConfig  `yaml:"benchmark" split_words:"true"`
	Returns    ReturnsConfig    `yaml:"returns" split_words:"true"`
	Names      NamesConfig      `yaml:"names" split_words:"true"`
	Server     ServerConfig     `yaml:"server" split_words:"true"`
	Metrics    MetricsConfig    `yaml:"metrics" split_words:"true"`
	Logging    LoggingConfig    `yaml:"logging" split_words:"true"`
}

// SourceConfig holds the regulator's open-data endpoint settings.
type SourceConfig struct {
	BaseURL           string        `yaml:"base_url" split_words:"true"`
	Timeout           time.Duration `yaml:"timeout" split_words:"true"`
	RequestsPerSecond float64       `yaml:"requests_per_second" split_words:"true"`
	UserAgent         string        `yaml:"user_agent" split_words:"true"`
}

// PartitionsConfig holds the monthly partition directory settings.
type PartitionsConfig struct {
	Dir       string `yaml:"dir" split_words:"true"`
	ChunkSize int    `yaml:"chunk_size" split_words:"true"` // Rows per normalizer chunk
}

// WarehouseConfig selects and configures the analytical store.
type WarehouseConfig struct {
	Driver       string        `yaml:"driver" split_words:"true"` // "duckdb" or "postgres"
	Path         string        `yaml:"path" split_words:"true"`   // DuckDB database file ("" = in-memory)
	Postgres     DBConfig      `yaml:"postgres" split_words:"true"`
	QueryTimeout time.Duration `yaml:"query_timeout" split_words:"true"`
}

// DBConfig holds a single PostgreSQL connection.
type DBConfig struct {
	Host     string `yaml:"host" split_words:"true"`
	Port     int    `yaml:"port" split_words:"true"`
	Name     string `yaml:"name" split_words:"true"`
	User     string `yaml:"user" split_words:"true"`
	Password string `yaml:"password" split_words:"true"`
	SSLMode  string `yaml:"ssl_mode" split_words:"true"`
	MaxConns int    `yaml:"max_conns" split_words:"true"`
	MinConns int    `yaml:"min_conns" split_words:"true"`
}

// IngestConfig holds monthly ingestion settings.
type IngestConfig struct {
	Concurrency int `yaml:"concurrency" split_words:"true"` // Months fetched/normalized/written in parallel
}

// BenchmarkConfig holds the central bank time-series settings.
type BenchmarkConfig struct {
	BaseURL string         `yaml:"base_url" split_words:"true"`
	Timeout time.Duration  `yaml:"timeout" split_words:"true"`
	Series  map[string]int `yaml:"series" split_words:"true"` // Rate name -> SGS series id
}

// ReturnsConfig holds aggregation defaults.
type ReturnsConfig struct {
	Benchmark string `yaml:"benchmark" split_words:"true"`  // Default rate name
	GapPolicy string `yaml:"gap_policy" split_words:"true"` // "carry_forward" or "flat"
}

// NamesConfig points at the cadastral files used for display names.
type NamesConfig struct {
	HistoryFile string `yaml:"history_file" split_words:"true"` // cad_fi_hist_denom_social.csv
	ExtractFile string `yaml:"extract_file" split_words:"true"` // extrato_fi.csv
}

// ServerConfig holds the HTTP query server settings.
type ServerConfig struct {
	Port            int           `yaml:"port" split_words:"true"`
	ReadTimeout     time.Duration `yaml:"read_timeout" split_words:"true"`
	WriteTimeout    time.Duration `yaml:"write_timeout" split_words:"true"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" split_words:"true"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Path     string `yaml:"path" split_words:"true"`
	Textfile string `yaml:"textfile" split_words:"true"` // Batch runs write metrics here when set
}

// LoggingConfig holds slog handler settings.
type LoggingConfig struct {
	Level  string `yaml:"level" split_words:"true"`  // debug, info, warn, error
	Format string `yaml:"format" split_words:"true"` // text or json
}
