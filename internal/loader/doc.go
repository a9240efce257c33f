// Package loader keeps the warehouse in step with the published partitions.
//
// Each month is loaded by replacing its rows in one warehouse transaction.
// The warehouse records the partition generation it last loaded per month,
// so a sync reloads exactly the months whose visible partition changed.
// Loading the same partition twice leaves the warehouse unchanged.
package loader
