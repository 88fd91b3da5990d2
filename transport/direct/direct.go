// Package direct implements the embedded host's command channel: a
// NATS request/reply round trip per command, bypassing HTTP entirely.
// The embedded host serves the backend in-process and exposes it on a
// fixed local NATS address.
package direct

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/agentreplay/agentreplay-sub002/errors"
	"github.com/agentreplay/agentreplay-sub002/transport"
)

const (
	// SubjectPrefix is where the embedded host answers commands:
	// one reply subject per logical command.
	SubjectPrefix = "agentreplay.cmd."

	defaultTimeout = 10 * time.Second
	clientName     = "agentreplay-sync"
)

// reply is the embedded host's response envelope.
type reply struct {
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error,omitempty"`
}

// Transport is the direct-channel implementation of transport.Transport.
type Transport struct {
	conn     *nats.Conn
	timeout  time.Duration
	logger   *slog.Logger
	ownsConn bool
}

// Option configures a Transport
type Option func(*Transport)

// WithTimeout bounds each request/reply round trip
func WithTimeout(d time.Duration) Option {
	return func(t *Transport) {
		if d > 0 {
			t.timeout = d
		}
	}
}

// WithLogger sets a structured logger for request debugging
func WithLogger(logger *slog.Logger) Option {
	return func(t *Transport) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// New connects to the embedded host's NATS address and returns a direct
// transport owning the connection.
func New(url string, opts ...Option) (*Transport, error) {
	conn, err := nats.Connect(url,
		nats.Name(clientName),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, errors.WrapFatal(
			fmt.Errorf("%w: %v", errors.ErrConnectionFailed, err),
			"direct", "New", "connect to embedded host")
	}

	t := NewWithConn(conn, opts...)
	t.ownsConn = true
	return t, nil
}

// NewWithConn wraps an existing NATS connection, typically handed over
// by the embedded host itself. The caller retains ownership of conn.
func NewWithConn(conn *nats.Conn, opts ...Option) *Transport {
	t := &Transport{
		conn:    conn,
		timeout: defaultTimeout,
		logger:  slog.Default(),
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// Kind identifies this transport as the direct channel
func (t *Transport) Kind() string { return "direct" }

// Close drains the connection if this transport owns it.
func (t *Transport) Close() error {
	if !t.ownsConn || t.conn == nil {
		return nil
	}
	if err := t.conn.Drain(); err != nil {
		t.conn.Close()
		return errors.WrapTransient(err, "direct", "Close", "drain connection")
	}
	return nil
}

// Invoke passes the command through as a request/reply round trip on
// agentreplay.cmd.<command>. Arguments are forwarded untouched; the
// HTTP lookup table does not apply on this channel.
func (t *Transport) Invoke(ctx context.Context, req transport.Request) (json.RawMessage, error) {
	if t.conn == nil || t.conn.IsClosed() {
		return nil, errors.WrapTransient(errors.ErrConnectionClosed, "direct", "Invoke", req.Command)
	}

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	subject := SubjectPrefix + req.Command
	payload := []byte(req.Args)
	if payload == nil {
		payload = []byte("null")
	}

	t.logger.Debug("invoking command over direct channel",
		"command", req.Command, "subject", subject)

	msg, err := t.conn.RequestWithContext(ctx, subject, payload)
	if err != nil {
		return nil, errors.WrapTransient(
			fmt.Errorf("%w: %v", errors.ErrRequestFailed, err),
			"direct", "Invoke", req.Command)
	}

	var rep reply
	if err := json.Unmarshal(msg.Data, &rep); err != nil {
		return nil, errors.WrapInvalid(err, "direct", "Invoke", "decode reply")
	}
	if rep.Error != "" {
		return nil, errors.WrapTransient(
			fmt.Errorf("%w: %s", errors.ErrRemoteRejected, rep.Error),
			"direct", "Invoke", req.Command)
	}

	return rep.Result, nil
}
