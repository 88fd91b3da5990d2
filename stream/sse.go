package stream

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/agentreplay/agentreplay-sub002/errors"
)

// sseConn consumes a text/event-stream response. Each event's data
// lines are concatenated and handed to the client as one payload.
type sseConn struct {
	resp    *http.Response
	scanner *bufio.Scanner
}

// sseBufferSize bounds a single event line; trace records are small,
// but search payloads embedded in records can run long.
const sseBufferSize = 1 << 20

func (c *Client) dialSSE(ctx context.Context, endpoint string) (streamConn, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, errors.WrapFatal(err, "Client", "dialSSE", "build request")
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.WrapTransient(
			fmt.Errorf("%w: %v", errors.ErrConnectionFailed, err),
			"Client", "dialSSE", "open stream")
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, errors.WrapTransient(
			fmt.Errorf("%w: status %d", errors.ErrStreamRejected, resp.StatusCode),
			"Client", "dialSSE", "open stream")
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.Contains(ct, "text/event-stream") {
		resp.Body.Close()
		return nil, errors.WrapTransient(
			fmt.Errorf("%w: unexpected content type %q", errors.ErrStreamRejected, ct),
			"Client", "dialSSE", "open stream")
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 4096), sseBufferSize)

	return &sseConn{resp: resp, scanner: scanner}, nil
}

// Recv returns the data of the next server-sent event. Comment lines,
// event names, ids and retry hints are skipped; only data matters here.
func (s *sseConn) Recv() ([]byte, error) {
	var data [][]byte

	for s.scanner.Scan() {
		line := s.scanner.Bytes()

		if len(bytes.TrimSpace(line)) == 0 {
			// Blank line terminates an event
			if len(data) > 0 {
				return bytes.Join(data, []byte("\n")), nil
			}
			continue
		}

		if line[0] == ':' {
			continue // comment / keep-alive
		}

		field, value, _ := bytes.Cut(line, []byte(":"))
		value = bytes.TrimPrefix(value, []byte(" "))

		if string(field) == "data" {
			// Copy: the scanner reuses its buffer on the next Scan
			data = append(data, bytes.Clone(value))
		}
		// event:, id:, retry: are irrelevant to this feed
	}

	if err := s.scanner.Err(); err != nil {
		return nil, errors.WrapTransient(
			fmt.Errorf("%w: %v", errors.ErrConnectionClosed, err),
			"Client", "Recv", "read stream")
	}
	return nil, errors.WrapTransient(errors.ErrConnectionClosed, "Client", "Recv", "read stream")
}

func (s *sseConn) Close() error {
	return s.resp.Body.Close()
}
