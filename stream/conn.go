package stream

import (
	"context"
	"net/url"

	"github.com/agentreplay/agentreplay-sub002/errors"
)

// streamConn is one live push subscription, regardless of the wire
// protocol underneath. Recv blocks until the next payload arrives or
// the connection dies; Close is safe to call concurrently with Recv
// and unblocks it.
type streamConn interface {
	Recv() ([]byte, error)
	Close() error
}

// dial opens the push stream. The wire protocol follows the endpoint
// scheme: http(s) consumes server-sent events, ws(s) consumes a
// WebSocket feed. ctx covers the lifetime of the whole subscription,
// not just the handshake; cancelling it tears the connection down.
func (c *Client) dial(ctx context.Context, endpoint string) (streamConn, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, errors.WrapFatal(err, "Client", "dial", "parse endpoint")
	}

	switch u.Scheme {
	case "http", "https":
		return c.dialSSE(ctx, endpoint)
	case "ws", "wss":
		return c.dialWS(ctx, endpoint)
	default:
		return nil, errors.WrapFatal(
			errors.ErrInvalidConfig,
			"Client", "dial", "unsupported stream scheme "+u.Scheme)
	}
}
