// Package warehouse is the analytical store holding every loaded partition.
//
// Two drivers implement Store:
//   - DuckDB: embedded, single-writer file database (default)
//   - PostgreSQL: shared server database via pgxpool
//
// Tables:
//   - quotes: union of loaded partitions, indexed on (entity_key, as_of_date)
//   - benchmark_rates: one row per (month_end, rate_name)
//   - partition_loads: the partition generation last loaded for each month
//
// A month is replaced with delete+insert inside one transaction, so readers
// see either the old or the new content of a month, never a mix.
package warehouse
