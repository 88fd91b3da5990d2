// Package window provides a bounded, most-recent-first view of keyed
// records. It backs the stream client's observable buffer of recent
// trace records: updates to a known record replace it in place, new
// records push the oldest one out once the capacity is reached.
package window
