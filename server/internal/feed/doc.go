// Package feed is the data source served to the reporting layer.
//
// A Source answers three questions: which columns a page has (Columns), which
// input arguments a caller must supply (Arguments), and what the page for a
// given time window holds (Page). Each Page call:
//
//  1. resolves the health check element; anything but exactly one match
//     yields an empty page,
//  2. fetches its results table once,
//  3. decodes the rows with result dates in the source location,
//  4. converts the UTC window bounds into that location and aggregates,
//  5. shapes one row per test, with timestamps back in UTC.
//
// Failures never reach the caller: each maps to an empty page and an outcome
// label on checkfeed_pages_total. BuildPage is the pure part of the flow and
// is shared with the offline CLI.
package feed
