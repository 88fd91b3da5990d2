package stream

import (
	"log/slog"
	"net/http"

	"github.com/agentreplay/agentreplay-sub002/errors"
	"github.com/agentreplay/agentreplay-sub002/metric"
	"github.com/agentreplay/agentreplay-sub002/pkg/backoff"
	"github.com/agentreplay/agentreplay-sub002/trace"
)

// Option configures a Client
type Option func(*Client) error

// WithLogger sets the logger for connection lifecycle events
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) error {
		if logger != nil {
			c.logger = logger
		}
		return nil
	}
}

// WithMetrics registers the client's Prometheus metrics under the given
// component name. A nil registry disables metrics.
func WithMetrics(registry *metric.Registry, componentName string) Option {
	return func(c *Client) error {
		m, err := NewMetrics(registry, componentName)
		if err != nil {
			return errors.WrapTransient(err, "Client", "WithMetrics", "metrics registration")
		}
		c.metrics = m
		return nil
	}
}

// WithBackoff replaces the reconnect schedule. Useful for tests and for
// deployments that need tighter or looser reconnect bounds.
func WithBackoff(b *backoff.Backoff) Option {
	return func(c *Client) error {
		if b != nil {
			c.boff = b
		}
		return nil
	}
}

// WithHTTPClient replaces the HTTP client used for SSE endpoints. The
// client must not set an overall request timeout, or the stream will be
// cut off when it fires.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) error {
		if hc != nil {
			c.httpClient = hc
		}
		return nil
	}
}

// WithRecordHandler sets the callback invoked for every trace record
// after it has been applied to the window
func WithRecordHandler(fn func(rec trace.DataRecord)) Option {
	return func(c *Client) error {
		c.onRecord = fn
		return nil
	}
}

// WithLagHandler sets the callback invoked when the server reports
// skipped records
func WithLagHandler(fn func(skipped int64)) Option {
	return func(c *Client) error {
		c.onLag = fn
		return nil
	}
}

// WithErrorHandler sets the callback invoked when a connection attempt
// fails or a live connection drops
func WithErrorHandler(fn func(err error)) Option {
	return func(c *Client) error {
		c.onError = fn
		return nil
	}
}

// WithConnectHandler sets the callback invoked on every successful
// connection, including reconnects
func WithConnectHandler(fn func()) Option {
	return func(c *Client) error {
		c.onConnect = fn
		return nil
	}
}

// WithDisconnectHandler sets the callback invoked when a previously
// live connection drops, before the error handler fires
func WithDisconnectHandler(fn func()) Option {
	return func(c *Client) error {
		c.onDisconnect = fn
		return nil
	}
}
