package stream

import (
	"context"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"github.com/agentreplay/agentreplay-sub002/errors"
)

// wsConn consumes the push feed over a WebSocket connection; each text
// message is one payload.
type wsConn struct {
	conn *websocket.Conn
}

func (c *Client) dialWS(ctx context.Context, endpoint string) (streamConn, error) {
	dialer := &websocket.Dialer{
		HandshakeTimeout: 45 * time.Second,
	}

	conn, resp, err := dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		if resp != nil {
			return nil, errors.WrapTransient(
				fmt.Errorf("%w: status %d: %v", errors.ErrStreamRejected, resp.StatusCode, err),
				"Client", "dialWS", "open stream")
		}
		return nil, errors.WrapTransient(
			fmt.Errorf("%w: %v", errors.ErrConnectionFailed, err),
			"Client", "dialWS", "open stream")
	}

	// Tear the socket down when the attempt context dies so a blocked
	// ReadMessage is unblocked by Stop or restart.
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	return &wsConn{conn: conn}, nil
}

func (w *wsConn) Recv() ([]byte, error) {
	_, payload, err := w.conn.ReadMessage()
	if err != nil {
		return nil, errors.WrapTransient(
			fmt.Errorf("%w: %v", errors.ErrConnectionClosed, err),
			"Client", "Recv", "read stream")
	}
	return payload, nil
}

func (w *wsConn) Close() error {
	return w.conn.Close()
}
