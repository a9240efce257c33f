// Package benchmark downloads reference rates from the central bank's SGS
// time-series service and stores them as monthly rates.
//
// Series are served as ';'-separated CSV with a "data;valor" header,
// day-first dates and decimal commas:
//
//	https://api.bcb.gov.br/dados/serie/bcdata.sgs.{id}/dados?formato=csv
package benchmark
