// Package agentreplay is the client-side synchronization layer between
// an observability frontend and its trace backend. It keeps a live,
// self-healing view of recent trace activity and provides exactly one
// request path for every command the frontend issues.
//
// # Architecture
//
// Two cooperating halves share a resolved environment:
//
//   - stream.Client subscribes to the backend's push stream
//     (server-sent events over http(s), WebSocket over ws(s)),
//     reconnects with bounded exponential backoff, and maintains a
//     bounded most-recent-first window of trace records keyed by id.
//   - dispatch.Dispatcher routes commands over a single transport.Transport
//     and collapses concurrent identical read-only invocations into one
//     in-flight request, so every waiter observes the same result.
//
// The transport is chosen once per process by config.Resolve: an
// embedded backend is reached over in-process NATS request/reply
// (transport/direct), anything else over REST (transport/rest).
// dispatch.Connect performs the whole startup in one call.
//
// # Supporting packages
//
//   - trace: the stream payload model (data records, lag notices) and
//     duration helpers.
//   - errors: classified errors (transient, invalid, fatal) shared by
//     every component.
//   - pkg/backoff: the reconnect delay schedule.
//   - pkg/window: the generic bounded upsert window.
//   - metric: optional Prometheus registration shared by all components.
package agentreplay
