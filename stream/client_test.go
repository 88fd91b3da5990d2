package stream

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/agentreplay/agentreplay-sub002/errors"
	"github.com/agentreplay/agentreplay-sub002/pkg/backoff"
	"github.com/agentreplay/agentreplay-sub002/trace"
)

// sseWriter pushes server-sent events to one connected client.
type sseWriter struct {
	w http.ResponseWriter
	f http.Flusher
}

func (s *sseWriter) send(payload string) {
	fmt.Fprintf(s.w, "data: %s\n\n", payload)
	s.f.Flush()
}

func (s *sseWriter) comment(text string) {
	fmt.Fprintf(s.w, ": %s\n\n", text)
	s.f.Flush()
}

// newSSEServer runs handler once per incoming stream connection. The
// handler returning closes that connection.
func newSSEServer(t *testing.T, handler func(s *sseWriter, r *http.Request)) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		require.True(t, ok, "httptest recorder must support flushing")

		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		handler(&sseWriter{w: w, f: flusher}, r)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func spanPayload(id string, durationUs int64) string {
	return fmt.Sprintf(
		`{"type":"span","id":%q,"trace_id":"t1","timestamp_us":100,"duration_us":%d,"span_type":"llm"}`,
		id, durationUs)
}

func lagPayload(skipped int64) string {
	return fmt.Sprintf(`{"type":"lag","skipped":%d}`, skipped)
}

// fastBackoff keeps reconnect delays tiny so tests stay quick.
func fastBackoff() *backoff.Backoff {
	return backoff.New(10*time.Millisecond, 40*time.Millisecond)
}

func TestNew_EnabledRequiresEndpoint(t *testing.T) {
	_, err := New(Config{Enabled: true})
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, apperrors.ErrNoBaseURL))
	assert.True(t, apperrors.IsFatal(err))
}

func TestClient_DisabledStaysIdle(t *testing.T) {
	var dials atomic.Int64
	srv := newSSEServer(t, func(s *sseWriter, r *http.Request) {
		dials.Add(1)
		<-r.Context().Done()
	})

	c, err := New(Config{Enabled: false, Endpoint: srv.URL})
	require.NoError(t, err)

	require.NoError(t, c.Start())
	time.Sleep(50 * time.Millisecond)

	assert.Equal(t, StateIdle, c.State())
	assert.Equal(t, int64(0), dials.Load())
	c.Stop()
}

func TestClient_ConnectDeliversRecordsInOrder(t *testing.T) {
	srv := newSSEServer(t, func(s *sseWriter, r *http.Request) {
		s.comment("hello")
		s.send(spanPayload("a", 10))
		s.send(spanPayload("b", 20))
		s.send(spanPayload("c", 30))
		<-r.Context().Done()
	})

	connected := make(chan struct{}, 1)
	var got []trace.DataRecord
	seen := make(chan struct{}, 8)

	c, err := New(Config{Enabled: true, Endpoint: srv.URL},
		WithBackoff(fastBackoff()),
		WithConnectHandler(func() { connected <- struct{}{} }),
		WithRecordHandler(func(rec trace.DataRecord) {
			got = append(got, rec)
			seen <- struct{}{}
		}),
	)
	require.NoError(t, err)
	require.NoError(t, c.Start())
	defer c.Stop()

	select {
	case <-connected:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for connect")
	}

	for i := 0; i < 3; i++ {
		select {
		case <-seen:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for record %d", i)
		}
	}

	assert.Equal(t, StateConnected, c.State())

	// Callbacks fire in arrival order
	require.Len(t, got, 3)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "b", got[1].ID)
	assert.Equal(t, "c", got[2].ID)

	// The window holds the most recent record first
	recs := c.Records()
	require.Len(t, recs, 3)
	assert.Equal(t, "c", recs[0].ID)
	assert.Equal(t, "b", recs[1].ID)
	assert.Equal(t, "a", recs[2].ID)
}

func TestClient_WindowEvictsOldest(t *testing.T) {
	srv := newSSEServer(t, func(s *sseWriter, r *http.Request) {
		s.send(spanPayload("a", 1))
		s.send(spanPayload("b", 2))
		s.send(spanPayload("c", 3))
		<-r.Context().Done()
	})

	seen := make(chan string, 8)
	c, err := New(Config{Enabled: true, Endpoint: srv.URL, MaxRecords: 2},
		WithBackoff(fastBackoff()),
		WithRecordHandler(func(rec trace.DataRecord) { seen <- rec.ID }),
	)
	require.NoError(t, err)
	require.NoError(t, c.Start())
	defer c.Stop()

	for i := 0; i < 3; i++ {
		select {
		case <-seen:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for records")
		}
	}

	recs := c.Records()
	require.Len(t, recs, 2)
	assert.Equal(t, "c", recs[0].ID)
	assert.Equal(t, "b", recs[1].ID)
}

func TestClient_UpsertReplacesInPlace(t *testing.T) {
	srv := newSSEServer(t, func(s *sseWriter, r *http.Request) {
		s.send(spanPayload("a", 1))
		s.send(spanPayload("b", 2))
		s.send(spanPayload("a", 99)) // updated span, same id
		<-r.Context().Done()
	})

	seen := make(chan string, 8)
	c, err := New(Config{Enabled: true, Endpoint: srv.URL},
		WithBackoff(fastBackoff()),
		WithRecordHandler(func(rec trace.DataRecord) { seen <- rec.ID }),
	)
	require.NoError(t, err)
	require.NoError(t, c.Start())
	defer c.Stop()

	for i := 0; i < 3; i++ {
		select {
		case <-seen:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for records")
		}
	}

	// "a" keeps its slot but carries the new payload
	recs := c.Records()
	require.Len(t, recs, 2)
	assert.Equal(t, "b", recs[0].ID)
	assert.Equal(t, "a", recs[1].ID)
	assert.Equal(t, int64(99), recs[1].DurationUs)
}

func TestClient_LagNoticeBypassesWindow(t *testing.T) {
	srv := newSSEServer(t, func(s *sseWriter, r *http.Request) {
		s.send(spanPayload("a", 1))
		s.send(lagPayload(42))
		<-r.Context().Done()
	})

	lagged := make(chan int64, 1)
	seen := make(chan struct{}, 4)
	c, err := New(Config{Enabled: true, Endpoint: srv.URL},
		WithBackoff(fastBackoff()),
		WithRecordHandler(func(trace.DataRecord) { seen <- struct{}{} }),
		WithLagHandler(func(skipped int64) { lagged <- skipped }),
	)
	require.NoError(t, err)
	require.NoError(t, c.Start())
	defer c.Stop()

	select {
	case skipped := <-lagged:
		assert.Equal(t, int64(42), skipped)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for lag notice")
	}

	<-seen
	assert.Len(t, c.Records(), 1)
	assert.Equal(t, StateConnected, c.State())
}

func TestClient_MalformedPayloadIsDropped(t *testing.T) {
	srv := newSSEServer(t, func(s *sseWriter, r *http.Request) {
		s.send(`{not json`)
		s.send(`{"id":"x"}`)              // missing type
		s.send(`{"type":"mystery"}`)      // unknown type
		s.send(`{"type":"span","id":""}`) // missing id
		s.send(spanPayload("good", 7))
		<-r.Context().Done()
	})

	seen := make(chan trace.DataRecord, 4)
	var errs atomic.Int64
	c, err := New(Config{Enabled: true, Endpoint: srv.URL},
		WithBackoff(fastBackoff()),
		WithRecordHandler(func(rec trace.DataRecord) { seen <- rec }),
		WithErrorHandler(func(error) { errs.Add(1) }),
	)
	require.NoError(t, err)
	require.NoError(t, c.Start())
	defer c.Stop()

	select {
	case rec := <-seen:
		assert.Equal(t, "good", rec.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the valid record")
	}

	// Bad payloads are dropped without disturbing the connection
	assert.Equal(t, StateConnected, c.State())
	assert.Equal(t, int64(0), errs.Load())
	assert.Len(t, c.Records(), 1)
}

func TestClient_ReconnectsAfterDrop(t *testing.T) {
	var conns atomic.Int64
	srv := newSSEServer(t, func(s *sseWriter, r *http.Request) {
		n := conns.Add(1)
		if n == 1 {
			s.send(spanPayload("first", 1))
			return // server drops the stream
		}
		s.send(spanPayload("second", 2))
		<-r.Context().Done()
	})

	var disconnects, errs atomic.Int64
	seen := make(chan string, 8)
	c, err := New(Config{Enabled: true, Endpoint: srv.URL},
		WithBackoff(fastBackoff()),
		WithDisconnectHandler(func() { disconnects.Add(1) }),
		WithErrorHandler(func(err error) {
			assert.True(t, apperrors.IsTransient(err))
			errs.Add(1)
		}),
		WithRecordHandler(func(rec trace.DataRecord) { seen <- rec.ID }),
	)
	require.NoError(t, err)
	require.NoError(t, c.Start())
	defer c.Stop()

	for _, want := range []string{"first", "second"} {
		select {
		case id := <-seen:
			assert.Equal(t, want, id)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for %q", want)
		}
	}

	assert.Equal(t, StateConnected, c.State())
	assert.Equal(t, int64(2), conns.Load())
	assert.GreaterOrEqual(t, c.Reconnects(), int64(1))
	assert.GreaterOrEqual(t, disconnects.Load(), int64(1))
	assert.GreaterOrEqual(t, errs.Load(), int64(1))

	// Both records survived the reconnect in the window
	assert.Len(t, c.Records(), 2)
}

func TestClient_BackoffResetsAfterConnect(t *testing.T) {
	// Reject the first two attempts at the handshake so the delay
	// grows, then accept and stream.
	var conns atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if conns.Add(1) < 3 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		flusher := w.(http.Flusher)
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()
		(&sseWriter{w: w, f: flusher}).send(spanPayload("ok", 1))
		<-r.Context().Done()
	}))
	defer srv.Close()

	b := fastBackoff()
	seen := make(chan struct{}, 1)
	c, err := New(Config{Enabled: true, Endpoint: srv.URL},
		WithBackoff(b),
		WithRecordHandler(func(trace.DataRecord) { seen <- struct{}{} }),
	)
	require.NoError(t, err)
	require.NoError(t, c.Start())
	defer c.Stop()

	select {
	case <-seen:
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for a successful connect")
	}

	// Two consecutive failures advanced the delay; the successful
	// connect brought it back to the minimum.
	assert.Equal(t, 10*time.Millisecond, b.Current())
	assert.GreaterOrEqual(t, c.Reconnects(), int64(2))
}

func TestClient_RejectedStreamSchedulesRetry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	errCh := make(chan error, 8)
	c, err := New(Config{Enabled: true, Endpoint: srv.URL},
		WithBackoff(fastBackoff()),
		WithErrorHandler(func(err error) { errCh <- err }),
	)
	require.NoError(t, err)
	require.NoError(t, c.Start())
	defer c.Stop()

	select {
	case err := <-errCh:
		assert.True(t, stderrors.Is(err, apperrors.ErrStreamRejected))
		assert.True(t, apperrors.IsTransient(err))
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for rejection")
	}

	// The retry loop cycles between disconnected and connecting; it
	// never reaches connected against a rejecting server.
	assert.NotEqual(t, StateConnected, c.State())
}

func TestClient_StopSilencesCallbacks(t *testing.T) {
	srv := newSSEServer(t, func(s *sseWriter, r *http.Request) {
		for {
			select {
			case <-r.Context().Done():
				return
			default:
			}
			s.send(spanPayload("tick", 1))
			time.Sleep(5 * time.Millisecond)
		}
	})

	var records atomic.Int64
	c, err := New(Config{Enabled: true, Endpoint: srv.URL},
		WithBackoff(fastBackoff()),
		WithRecordHandler(func(trace.DataRecord) { records.Add(1) }),
	)
	require.NoError(t, err)
	require.NoError(t, c.Start())

	require.Eventually(t, func() bool { return records.Load() > 0 },
		2*time.Second, 5*time.Millisecond)

	c.Stop()
	assert.Equal(t, StateStopped, c.State())

	// Once Stop returns, no callback fires again
	after := records.Load()
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, after, records.Load())
}

func TestClient_StopCancelsPendingReconnect(t *testing.T) {
	// Point at a closed server so every attempt fails fast
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	endpoint := srv.URL
	srv.Close()

	var errs atomic.Int64
	c, err := New(Config{Enabled: true, Endpoint: endpoint},
		WithBackoff(fastBackoff()),
		WithErrorHandler(func(error) { errs.Add(1) }),
	)
	require.NoError(t, err)
	require.NoError(t, c.Start())

	require.Eventually(t, func() bool { return errs.Load() >= 2 },
		2*time.Second, 5*time.Millisecond)

	c.Stop()
	after := errs.Load()
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, after, errs.Load(), "reconnect timer kept firing after Stop")
}

func TestClient_StopIsIdempotentAndTerminal(t *testing.T) {
	c, err := New(Config{Enabled: false})
	require.NoError(t, err)
	require.NoError(t, c.Start())

	c.Stop()
	c.Stop()
	assert.Equal(t, StateStopped, c.State())

	err = c.Start()
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, apperrors.ErrStopped))
	assert.True(t, apperrors.IsInvalid(err))
}

func TestClient_StartRestartsSubscription(t *testing.T) {
	var conns atomic.Int64
	srv := newSSEServer(t, func(s *sseWriter, r *http.Request) {
		n := conns.Add(1)
		s.send(spanPayload(fmt.Sprintf("r%d", n), 1))
		<-r.Context().Done()
	})

	seen := make(chan string, 8)
	c, err := New(Config{Enabled: true, Endpoint: srv.URL},
		WithBackoff(fastBackoff()),
		WithRecordHandler(func(rec trace.DataRecord) { seen <- rec.ID }),
	)
	require.NoError(t, err)
	require.NoError(t, c.Start())
	defer c.Stop()

	select {
	case <-seen:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for first subscription")
	}

	require.NoError(t, c.Start())

	select {
	case id := <-seen:
		assert.Equal(t, "r2", id)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for restarted subscription")
	}
	assert.Equal(t, int64(2), conns.Load())
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateIdle, "idle"},
		{StateConnecting, "connecting"},
		{StateConnected, "connected"},
		{StateDisconnected, "disconnected"},
		{StateStopped, "stopped"},
		{State(99), "unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.state.String())
	}
}
