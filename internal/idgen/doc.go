// Package idgen generates instance ids, continuation token ids and queue
// message ids. Callers treat the values as opaque strings; tests may replace
// NewFunc to get predictable ids.
package idgen
