// Package sources retrieves plugin listings from the configured registry
// mirrors.
//
// A Fetcher issues one bounded request per source URL, all concurrently,
// and concatenates the records found in each feed's "objects" array in
// source order. A failing source (timeout, non-2xx status, network error,
// unparseable body) is logged, reported in its SourceReport and contributes
// no records; FetchAll itself never fails.
//
// Sources are usually http(s) URLs. file:// URLs and bare paths are read
// from the local filesystem, which is handy for offline runs and fixtures.
package sources
