// Package partition writes and reads the immutable monthly quote partitions.
//
// A partition is one Parquet file per source month named
// quotes_YYYYMM_<generation>.parquet, where generation is a ULID. Publishing
// writes a temporary file in the same directory, syncs it and renames it into
// place, so readers only ever see complete files. The newest generation of a
// month is the visible partition; older generations are removed once the new
// one is in place.
//
// Rows inside a partition are sorted by (as_of_date, entity_key) and unique on
// (entity_key, as_of_date). When the source repeats a key the last occurrence
// wins.
package partition
