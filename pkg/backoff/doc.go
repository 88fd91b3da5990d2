// Package backoff provides bounded exponential backoff state for
// reconnect scheduling. Unlike a retry loop, it only tracks the delay
// sequence; the caller owns the timer and decides when to attempt.
package backoff
