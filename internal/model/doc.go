// Package model defines shared data types used across the fund data platform.
//
// All types mirror the warehouse schema created by internal/warehouse.
//
// Conventions:
//   - Dates: time.Time at midnight UTC, day granularity
//   - Months: Month value, rendered as "YYYYMM" (the source file key)
//   - Optional numerics: nil pointer means the source value was missing or unparseable
//   - Entity keys: normalized fund/share-class registration number (CNPJ), kept as text
package model
