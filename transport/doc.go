// Package transport defines the adapter interface between logical
// commands and the backend, the static command lookup table, and the
// once-per-process selection between the embedded host's direct channel
// and the HTTP channel.
package transport
