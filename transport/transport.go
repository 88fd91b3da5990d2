package transport

import (
	"context"
	"encoding/json"
)

// Request describes one logical command invocation. Args is the
// canonical JSON encoding of the command arguments; nil means the
// command takes no arguments.
type Request struct {
	Command string
	Args    json.RawMessage
}

// Transport produces a single outbound call for a request. Exactly one
// implementation is selected per process at startup: the direct channel
// when running inside the embedded host, the HTTP channel otherwise.
type Transport interface {
	// Invoke issues the call and returns the raw response payload.
	// Failures are transport errors, propagated to the caller; the
	// transport performs no retries.
	Invoke(ctx context.Context, req Request) (json.RawMessage, error)

	// Kind identifies the implementation ("direct" or "http").
	Kind() string

	// Close releases the underlying connection, if any.
	Close() error
}
