package warehouse

var duckDBSchema = []string{
	`CREATE TABLE IF NOT EXISTS quotes (
		entity_key        VARCHAR NOT NULL,
		as_of_date        DATE NOT NULL,
		quote_value       DOUBLE,
		net_assets        DOUBLE,
		net_subscriptions DOUBLE,
		net_redemptions   DOUBLE,
		holder_count      BIGINT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_quotes_entity_date ON quotes (entity_key, as_of_date)`,
	`CREATE TABLE IF NOT EXISTS benchmark_rates (
		month_end DATE NOT NULL,
		rate_name VARCHAR NOT NULL,
		rate      DOUBLE NOT NULL,
		PRIMARY KEY (month_end, rate_name)
	)`,
	`CREATE TABLE IF NOT EXISTS partition_loads (
		month      VARCHAR PRIMARY KEY,
		generation VARCHAR NOT NULL,
		run_id     VARCHAR NOT NULL,
		row_count  BIGINT NOT NULL,
		loaded_at  TIMESTAMP NOT NULL
	)`,
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS quotes (
		entity_key        TEXT NOT NULL,
		as_of_date        DATE NOT NULL,
		quote_value       DOUBLE PRECISION,
		net_assets        DOUBLE PRECISION,
		net_subscriptions DOUBLE PRECISION,
		net_redemptions   DOUBLE PRECISION,
		holder_count      BIGINT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_quotes_entity_date ON quotes (entity_key, as_of_date)`,
	`CREATE INDEX IF NOT EXISTS idx_quotes_date ON quotes (as_of_date)`,
	`CREATE TABLE IF NOT EXISTS benchmark_rates (
		month_end DATE NOT NULL,
		rate_name TEXT NOT NULL,
		rate      DOUBLE PRECISION NOT NULL,
		PRIMARY KEY (month_end, rate_name)
	)`,
	`CREATE TABLE IF NOT EXISTS partition_loads (
		month      TEXT PRIMARY KEY,
		generation TEXT NOT NULL,
		run_id     TEXT NOT NULL,
		row_count  BIGINT NOT NULL,
		loaded_at  TIMESTAMPTZ NOT NULL
	)`,
}

const quoteColumns = `entity_key, as_of_date, quote_value, net_assets, net_subscriptions, net_redemptions, holder_count`

const upsertLoadSQL = `
	INSERT INTO partition_loads (month, generation, run_id, row_count, loaded_at)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (month) DO UPDATE SET
		generation = excluded.generation,
		run_id = excluded.run_id,
		row_count = excluded.row_count,
		loaded_at = excluded.loaded_at`
