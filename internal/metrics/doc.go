// Package metrics provides Prometheus metrics for monitoring.
//
// Key metrics:
//   - Months processed by ingestion outcome
//   - Rows published, rows dropped and coercion warnings
//   - Warehouse load latency by outcome
//   - Return aggregation requests by outcome and latency
//
// A nil *Metrics is valid and records nothing, so components can run without
// a registry in tests.
package metrics
