// Package returns computes calendar-aligned cumulative-return series for a set
// of funds against a monthly benchmark rate.
//
// Alignment: every series starts at the true start, the latest of the funds'
// first quote dates in the window, and covers only the dates on which every
// fund has a quote. Comparisons across funds are meaningful only from the
// date all of them have data.
//
// The benchmark is published monthly. A ProxyStrategy spreads each month's
// rate over that month's retained dates so it shares the funds' date axis.
//
// Conditions that leave nothing or only part of a request computable are not
// errors. They are reported as Diagnostics on the Result so callers can
// render a message.
package returns
