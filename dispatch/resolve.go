package dispatch

import (
	"github.com/agentreplay/agentreplay-sub002/config"
	"github.com/agentreplay/agentreplay-sub002/errors"
	"github.com/agentreplay/agentreplay-sub002/transport"
	"github.com/agentreplay/agentreplay-sub002/transport/direct"
	"github.com/agentreplay/agentreplay-sub002/transport/rest"
)

// ResolveTransport selects the single transport implementation for this
// process from the resolved environment: the direct channel when
// running inside the embedded host, the HTTP channel otherwise
// (including dev-proxy passthrough). The choice is immutable; callers
// hold the returned transport for the process lifetime.
func ResolveTransport(cfg config.Config) (transport.Transport, error) {
	switch cfg.Mode {
	case config.ModeEmbedded:
		return direct.New(cfg.NATSURL)

	case config.ModeRemote, config.ModeDevProxy:
		return rest.New(cfg.BaseURL)

	default:
		return nil, errors.WrapFatal(errors.ErrNoBaseURL, "dispatch", "ResolveTransport", "select transport")
	}
}

// Connect resolves the environment, selects the transport, and returns
// a ready Dispatcher. This is the one-call startup path for consumers
// that do not need to customize either step.
func Connect(opts ...Option) (*Dispatcher, error) {
	cfg, err := config.Resolve()
	if err != nil {
		return nil, err
	}

	t, err := ResolveTransport(cfg)
	if err != nil {
		return nil, err
	}

	return New(t, opts...), nil
}
