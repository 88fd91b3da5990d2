package stream

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/agentreplay/agentreplay-sub002/config"
	"github.com/agentreplay/agentreplay-sub002/errors"
	"github.com/agentreplay/agentreplay-sub002/pkg/backoff"
	"github.com/agentreplay/agentreplay-sub002/pkg/window"
	"github.com/agentreplay/agentreplay-sub002/trace"
)

// Config holds the stream client configuration.
type Config struct {
	// Enabled gates the subscription entirely; a disabled client stays
	// Idle on Start
	Enabled bool

	// Endpoint is the push-stream URL. http(s) schemes consume
	// server-sent events, ws(s) schemes consume a WebSocket feed.
	Endpoint string

	// MaxRecords caps the observable window of recent records
	// (default 100)
	MaxRecords int
}

// Client owns a single logical subscription to the backend's push
// stream. It reconnects with bounded exponential backoff, keeps a
// bounded most-recent-first window of records, and routes every
// incoming payload to the matching callback.
//
// Every connection attempt is stamped with a monotonically increasing
// epoch. Callbacks, reads and reconnect timers carry the epoch they
// were created under and become no-ops once it is superseded, so no
// effect of an abandoned connection is ever observable - including
// after Stop.
//
// Callbacks run on the client's connection goroutine while its state
// lock is held: Stop blocks until an in-flight callback returns, and
// once Stop returns no callback fires again. For the same reason,
// callbacks must not call Start or Stop.
type Client struct {
	cfg        Config
	logger     *slog.Logger
	metrics    *Metrics
	boff       *backoff.Backoff
	window     *window.Window[trace.DataRecord]
	httpClient *http.Client

	onRecord     func(trace.DataRecord)
	onLag        func(int64)
	onError      func(error)
	onConnect    func()
	onDisconnect func()

	state      atomic.Int32 // State; written under mu, read lock-free
	reconnects atomic.Int64

	mu         sync.Mutex
	epoch      int64
	conn       streamConn
	cancelDial context.CancelFunc
	timer      *time.Timer
}

// New creates a stream client. The returned client is Idle; nothing
// connects until Start.
func New(cfg Config, opts ...Option) (*Client, error) {
	if cfg.MaxRecords <= 0 {
		cfg.MaxRecords = config.DefaultMaxRecords
	}
	if cfg.Enabled && cfg.Endpoint == "" {
		return nil, errors.WrapFatal(errors.ErrNoBaseURL, "Client", "New", "validate endpoint")
	}

	c := &Client{
		cfg:    cfg,
		logger: slog.Default(),
		boff:   backoff.New(0, 0),
		// No overall timeout: the stream response stays open for the
		// lifetime of the subscription
		httpClient: &http.Client{
			Transport: &http.Transport{ResponseHeaderTimeout: 30 * time.Second},
		},
	}

	w, err := window.New(cfg.MaxRecords, func(r trace.DataRecord) string { return r.ID })
	if err != nil {
		return nil, err
	}
	c.window = w

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// Start begins (or restarts) the subscription. Any previous attempt is
// torn down first, so Start is always an idempotent restart. A disabled
// client stays Idle. Starting a stopped client is an error: Stop is
// terminal, mount a new client instead.
func (c *Client) Start() error {
	c.mu.Lock()

	if State(c.state.Load()) == StateStopped {
		c.mu.Unlock()
		return errors.WrapInvalid(errors.ErrStopped, "Client", "Start", "restart stopped client")
	}

	c.teardownLocked()

	if !c.cfg.Enabled {
		c.setStateLocked(StateIdle)
		c.mu.Unlock()
		return nil
	}

	c.epoch++
	epoch := c.epoch
	c.setStateLocked(StateConnecting)
	c.mu.Unlock()

	go c.run(epoch)
	return nil
}

// Stop permanently ends the subscription: the epoch is advanced so any
// in-flight callback or timer from the previous attempt is neutralized,
// the pending reconnect timer is cancelled, and the live transport is
// closed. Safe to call multiple times and from any state.
func (c *Client) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if State(c.state.Load()) == StateStopped {
		return
	}

	c.epoch++
	c.teardownLocked()
	c.setStateLocked(StateStopped)
}

// teardownLocked cancels the reconnect timer and closes any live or
// in-progress connection. Caller holds mu.
func (c *Client) teardownLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	if c.cancelDial != nil {
		c.cancelDial()
		c.cancelDial = nil
	}
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
}

// run is one connection attempt, valid only while epoch is current.
func (c *Client) run(epoch int64) {
	ctx, cancel := context.WithCancel(context.Background())

	c.mu.Lock()
	if epoch != c.epoch {
		c.mu.Unlock()
		cancel()
		return
	}
	c.cancelDial = cancel
	c.mu.Unlock()

	conn, err := c.dial(ctx, c.cfg.Endpoint)
	if err != nil {
		c.handleFailure(epoch, err)
		return
	}

	c.mu.Lock()
	if epoch != c.epoch {
		c.mu.Unlock()
		conn.Close()
		return
	}
	c.conn = conn
	c.setStateLocked(StateConnected)
	c.boff.Reset()
	if c.metrics != nil {
		c.metrics.connects.Inc()
	}
	c.logger.Info("stream connected", "endpoint", c.cfg.Endpoint)
	if c.onConnect != nil {
		c.onConnect()
	}
	c.mu.Unlock()

	for {
		payload, err := conn.Recv()
		if err != nil {
			c.handleFailure(epoch, err)
			return
		}
		if !c.deliver(epoch, payload) {
			conn.Close()
			return
		}
	}
}

// deliver routes one payload. Returns false if the epoch was superseded
// and the caller should abandon the connection.
func (c *Client) deliver(epoch int64, payload []byte) bool {
	rec, parseErr := trace.ParseRecord(payload)

	c.mu.Lock()
	defer c.mu.Unlock()

	if epoch != c.epoch {
		return false
	}

	if parseErr != nil {
		// Never fatal: log, count, and keep the stream alive
		c.logger.Warn("dropping malformed stream payload", "error", parseErr)
		if c.metrics != nil {
			c.metrics.parseErrors.Inc()
		}
		return true
	}

	if rec.IsLag() {
		if c.metrics != nil {
			c.metrics.lagNotices.Inc()
			c.metrics.lagSkipped.Add(float64(rec.Lag.Skipped))
		}
		if c.onLag != nil {
			c.onLag(rec.Lag.Skipped)
		}
		return true
	}

	c.window.Upsert(*rec.Data)
	if c.metrics != nil {
		c.metrics.records.Inc()
	}
	if c.onRecord != nil {
		c.onRecord(*rec.Data)
	}
	return true
}

// handleFailure records a dropped connection and schedules the
// epoch-guarded reconnect.
func (c *Client) handleFailure(epoch int64, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if epoch != c.epoch {
		return
	}

	c.teardownLocked()
	c.setStateLocked(StateDisconnected)

	if c.onDisconnect != nil {
		c.onDisconnect()
	}
	if c.onError != nil {
		c.onError(err)
	}

	c.reconnects.Add(1)
	delay := c.boff.Next()
	if c.metrics != nil {
		c.metrics.reconnectAttempts.Inc()
	}
	c.logger.Info("stream disconnected, reconnect scheduled",
		"delay", delay, "error", err)

	c.timer = time.AfterFunc(delay, func() { c.reconnect(epoch) })
}

// reconnect fires when the backoff delay elapses. It re-checks enabled
// and the epoch: a client that was stopped or restarted in the meantime
// must not spawn a new attempt.
func (c *Client) reconnect(epoch int64) {
	c.mu.Lock()

	if !c.cfg.Enabled || epoch != c.epoch {
		c.mu.Unlock()
		return
	}

	c.timer = nil
	c.epoch++
	next := c.epoch
	c.setStateLocked(StateConnecting)
	c.mu.Unlock()

	go c.run(next)
}

func (c *Client) setStateLocked(s State) {
	c.state.Store(int32(s))
	if c.metrics != nil {
		c.metrics.state.Set(float64(s))
	}
}

// State returns the current connection state. Safe to call from
// callbacks.
func (c *Client) State() State {
	return State(c.state.Load())
}

// Records returns a copy of the bounded window of recent records, most
// recent first. Safe to call from callbacks.
func (c *Client) Records() []trace.DataRecord {
	return c.window.Snapshot()
}

// Reconnects returns the number of reconnects scheduled since Start.
func (c *Client) Reconnects() int64 {
	return c.reconnects.Load()
}

// WindowStats exposes the record window statistics.
func (c *Client) WindowStats() *window.Statistics {
	return c.window.Stats()
}
