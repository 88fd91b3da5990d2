// Package config resolves the runtime environment once per process:
// embedded host (direct channel at a fixed local address), development
// proxy passthrough, or explicit remote server. The resolved Config is
// immutable; transports and the stream client consume it at startup.
package config
