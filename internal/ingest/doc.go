// Package ingest runs the monthly ingestion pipeline.
//
// Each pending month is fetched, normalized and published as a partition
// concurrently with the others. Published months are then loaded into the
// warehouse one at a time in ascending order. A failure in one month is
// recorded in the Report and never stops the remaining months.
package ingest
