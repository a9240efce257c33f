// Package normalize turns raw daily-quote CSV files into model.QuoteRecord rows.
//
// The regulator has renamed and added columns over the years. A declarative
// alias table maps every historical column name to one canonical field, so a
// single code path reads all vintages. Values are coerced leniently: a cell
// that cannot be parsed becomes null and is reported as a CoercionWarning
// while the row is kept.
package normalize
