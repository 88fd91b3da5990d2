// Package stream maintains a resilient subscription to the backend's
// trace push stream.
//
// A Client connects to the configured endpoint, consuming server-sent
// events over http(s) or a WebSocket feed over ws(s). When the
// connection drops, for any reason, it reconnects with bounded
// exponential backoff and resets the delay after each successful
// connect. Incoming payloads are decoded into trace records or lag
// notices; records are applied to a bounded most-recent-first window
// (upsert by id) and handed to the registered callbacks.
//
// The client is built around connection epochs: Stop and Start advance
// the epoch, and every read, callback and reconnect timer checks the
// epoch it was created under before taking effect. Once Stop returns,
// nothing from the old subscription is ever observed again.
package stream
