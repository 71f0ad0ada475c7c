// Package aggregate turns a columnar table of health-check test runs into one
// summary per test.
//
// decode.go converts the seven raw columns (index, name, result code,
// failure rate, result date, success count, failure count) into RawTestRun
// values. Result dates are OLE Automation dates (oadate.go) holding wall-clock
// time in the management system's location, so decoding takes a
// *time.Location. Rows with an undecodable date are skipped and counted.
//
// aggregate.go provides the pure Aggregate(runs, start, end) function: runs
// outside the inclusive [start, end] window are dropped, the latest run per
// test name supplies the descriptive fields (index, result, failure rate,
// timestamp), and success/failure counters are summed over every in-window
// run to derive the long-duration failure rate. Output follows the order in
// which test names were first seen.
//
// No state survives a call; callers run one pass per request.
package aggregate
