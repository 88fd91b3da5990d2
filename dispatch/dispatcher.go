package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/agentreplay/agentreplay-sub002/errors"
	"github.com/agentreplay/agentreplay-sub002/transport"
)

// call is one in-flight transport invocation shared by every waiter
// with the same command signature.
type call struct {
	done   chan struct{}
	result json.RawMessage
	err    error
}

// Dispatcher translates logical command invocations into transport
// calls. Concurrent invocations of a declared read-only command with
// structurally equal arguments share a single underlying call; every
// waiter observes the same result or error. Write commands always issue
// a fresh call.
type Dispatcher struct {
	transport transport.Transport
	logger    *slog.Logger
	metrics   *Metrics

	mu       sync.Mutex
	inflight map[string]*call
}

// Option configures a Dispatcher
type Option func(*Dispatcher)

// WithLogger sets a structured logger
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithMetrics enables Prometheus metrics for the dispatcher
func WithMetrics(m *Metrics) Option {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

// New creates a Dispatcher over the given transport. The transport is
// selected once per process and is immutable for the dispatcher's
// lifetime.
func New(t transport.Transport, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		transport: t,
		logger:    slog.Default(),
		inflight:  make(map[string]*call),
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Transport returns the transport this dispatcher was built with.
func (d *Dispatcher) Transport() transport.Transport {
	return d.transport
}

// Invoke issues a logical command and returns the raw result payload.
// args may be nil, a struct, or a map; it is serialized once and, for
// read-only commands, canonicalized into the deduplication signature.
func (d *Dispatcher) Invoke(ctx context.Context, command string, args any) (json.RawMessage, error) {
	encoded, err := encodeArgs(args)
	if err != nil {
		return nil, errors.WrapInvalid(err, "Dispatcher", "Invoke", "encode arguments")
	}

	req := transport.Request{Command: command, Args: encoded}

	if !transport.ReadOnly(command) {
		// Writes are never deduplicated
		if d.metrics != nil {
			d.metrics.invocations.WithLabelValues(command, "write").Inc()
		}
		return d.call(ctx, req)
	}

	sig, err := signature(command, encoded)
	if err != nil {
		return nil, errors.WrapInvalid(err, "Dispatcher", "Invoke", "compute signature")
	}

	d.mu.Lock()
	if c, ok := d.inflight[sig]; ok {
		d.mu.Unlock()
		if d.metrics != nil {
			d.metrics.dedupHits.WithLabelValues(command).Inc()
		}
		d.logger.Debug("joining in-flight command", "command", command)
		return wait(ctx, c)
	}

	c := &call{done: make(chan struct{})}
	d.inflight[sig] = c
	d.mu.Unlock()

	if d.metrics != nil {
		d.metrics.invocations.WithLabelValues(command, "read").Inc()
		d.metrics.inflight.Inc()
	}

	// The shared call must run to completion even if the originating
	// caller goes away; waiters that joined later still expect a result.
	result, callErr := d.call(context.WithoutCancel(ctx), req)

	// Remove the entry before resolving waiters so a fresh invocation
	// issued after settlement always reaches the transport.
	d.mu.Lock()
	delete(d.inflight, sig)
	d.mu.Unlock()

	if d.metrics != nil {
		d.metrics.inflight.Dec()
	}

	c.result, c.err = result, callErr
	close(c.done)

	return wait(ctx, c)
}

// call issues one transport invocation.
func (d *Dispatcher) call(ctx context.Context, req transport.Request) (json.RawMessage, error) {
	result, err := d.transport.Invoke(ctx, req)
	if err != nil {
		if d.metrics != nil {
			d.metrics.failures.WithLabelValues(req.Command).Inc()
		}
		return nil, errors.Wrap(err, "Dispatcher", "Invoke", req.Command)
	}
	return result, nil
}

// wait blocks until the shared call settles or the waiter's context is
// cancelled. Cancellation abandons the wait only; the underlying call
// still runs to completion for the remaining waiters.
func wait(ctx context.Context, c *call) (json.RawMessage, error) {
	select {
	case <-c.done:
		return c.result, c.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Stats is a point-in-time snapshot of dispatcher state.
type Stats struct {
	InFlight int
}

// Snapshot returns current dispatcher statistics.
func (d *Dispatcher) Snapshot() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return Stats{InFlight: len(d.inflight)}
}

// encodeArgs serializes arguments to JSON. nil stays nil so that "no
// arguments" has a single representation.
func encodeArgs(args any) (json.RawMessage, error) {
	if args == nil {
		return nil, nil
	}
	if raw, ok := args.(json.RawMessage); ok {
		if len(raw) == 0 {
			return nil, nil
		}
		return raw, nil
	}
	return json.Marshal(args)
}

// signature derives the deduplication key: the command name plus a
// canonical serialization of the arguments. Re-encoding through a map
// sorts object keys, so structurally equal arguments produced by
// different callers collapse to the same signature.
func signature(command string, args json.RawMessage) (string, error) {
	if len(args) == 0 || bytes.Equal(args, []byte("null")) {
		return command + "()", nil
	}

	var decoded any
	if err := json.Unmarshal(args, &decoded); err != nil {
		return "", err
	}
	canonical, err := json.Marshal(decoded)
	if err != nil {
		return "", err
	}
	return command + "(" + string(canonical) + ")", nil
}
