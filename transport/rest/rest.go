// Package rest implements the HTTP command channel: commands resolve
// to REST endpoints under <base>/api/v1 according to the static lookup
// table, with a generic POST fallback for unmapped commands.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/agentreplay/agentreplay-sub002/errors"
	"github.com/agentreplay/agentreplay-sub002/transport"
)

const defaultTimeout = 30 * time.Second

// Transport is the HTTP implementation of transport.Transport.
type Transport struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// Option configures a Transport
type Option func(*Transport)

// WithHTTPClient overrides the underlying HTTP client
func WithHTTPClient(c *http.Client) Option {
	return func(t *Transport) {
		if c != nil {
			t.client = c
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

// WithTimeout bounds each outbound call
func WithTimeout(d time.Duration) Option {
	return func(t *Transport) {
		if d > 0 {
			t.client.Timeout = d
		}
	}
}

// New creates an HTTP transport rooted at baseURL.
func New(baseURL string, opts ...Option) (*Transport, error) {
	if baseURL == "" {
		return nil, errors.WrapFatal(errors.ErrNoBaseURL, "rest", "New", "validate base URL")
	}

	t := &Transport{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: defaultTimeout},
		logger:  slog.Default(),
	}

	for _, opt := range opts {
		opt(t)
	}

	return t, nil
}

// Kind identifies this transport as the HTTP channel
func (t *Transport) Kind() string { return "http" }

// Close implements transport.Transport; the HTTP client holds no
// connection that needs explicit teardown beyond idle ones.
func (t *Transport) Close() error {
	t.client.CloseIdleConnections()
	return nil
}

// Invoke issues one REST call for the command and returns the raw
// response body. Non-2xx responses are transport errors.
func (t *Transport) Invoke(ctx context.Context, req transport.Request) (json.RawMessage, error) {
	route := transport.RouteFor(req.Command)

	endpoint := t.baseURL + route.Path
	var body io.Reader

	switch route.Args {
	case transport.ArgsInQuery:
		if len(req.Args) > 0 {
			query, err := argsToQuery(req.Args)
			if err != nil {
				return nil, errors.WrapInvalid(err, "rest", "Invoke", "encode query arguments")
			}
			if query != "" {
				endpoint += "?" + query
			}
		}
	case transport.ArgsInBody:
		if len(req.Args) > 0 {
			body = bytes.NewReader(req.Args)
		}
	}

	httpReq, err := http.NewRequestWithContext(ctx, route.Method, endpoint, body)
	if err != nil {
		return nil, errors.WrapInvalid(err, "rest", "Invoke", "build request")
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Request-ID", uuid.NewString())
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	t.logger.Debug("invoking command over HTTP",
		"command", req.Command, "method", route.Method, "endpoint", endpoint)

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, errors.WrapTransient(
			fmt.Errorf("%w: %v", errors.ErrRequestFailed, err),
			"rest", "Invoke", req.Command)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, errors.WrapTransient(
			fmt.Errorf("%w: read response: %v", errors.ErrRequestFailed, err),
			"rest", "Invoke", req.Command)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.WrapTransient(
			fmt.Errorf("%w: status %d: %s", errors.ErrRemoteRejected,
				resp.StatusCode, truncate(payload, 256)),
			"rest", "Invoke", req.Command)
	}

	return payload, nil
}

// maxResponseBytes caps a single command response; point queries are
// paginated server-side and never approach this.
const maxResponseBytes = 32 << 20

// argsToQuery flattens a top-level JSON object into URL query params.
// Nested values are re-encoded as JSON strings.
func argsToQuery(args json.RawMessage) (string, error) {
	var fields map[string]any
	if err := json.Unmarshal(args, &fields); err != nil {
		return "", fmt.Errorf("query arguments must be a JSON object: %w", err)
	}

	values := url.Values{}
	for key, v := range fields {
		switch val := v.(type) {
		case nil:
			continue
		case string:
			values.Set(key, val)
		case bool:
			values.Set(key, fmt.Sprintf("%t", val))
		case float64:
			values.Set(key, trimFloat(val))
		default:
			nested, err := json.Marshal(val)
			if err != nil {
				return "", err
			}
			values.Set(key, string(nested))
		}
	}
	return values.Encode(), nil
}

// trimFloat renders JSON numbers without a trailing ".0" for integers
func trimFloat(f float64) string {
	if f == float64(int64(f)) {
		return fmt.Sprintf("%d", int64(f))
	}
	return fmt.Sprintf("%g", f)
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
