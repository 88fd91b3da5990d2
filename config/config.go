package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/agentreplay/agentreplay-sub002/errors"
)

// API surface shared by both transports and the stream client.
const (
	// APIPrefix is the REST prefix every command endpoint lives under
	APIPrefix = "/api/v1"
	// StreamPath is the push-stream endpoint, relative to the base URL
	StreamPath = "/api/v1/traces/stream"
)

// Defaults applied when the environment does not override them.
const (
	// DefaultEmbeddedNATSURL is the embedded host's fixed local address
	// for the direct command channel
	DefaultEmbeddedNATSURL = "nats://127.0.0.1:4222"
	// DefaultEmbeddedBaseURL is the embedded host's fixed local HTTP
	// address, used for the push stream when running embedded
	DefaultEmbeddedBaseURL = "http://127.0.0.1:8129"
	// DefaultDevProxyURL is the development proxy origin used when
	// dev-proxy passthrough is requested without an explicit address
	DefaultDevProxyURL = "http://127.0.0.1:5173"
	// DefaultMaxRecords is the stream client's record window capacity
	DefaultMaxRecords = 100
)

// Environment variables consulted during probing.
const (
	EnvConfigFile = "AGENTREPLAY_CONFIG"
	EnvEmbedded   = "AGENTREPLAY_EMBEDDED"
	EnvNATSURL    = "AGENTREPLAY_NATS_URL"
	EnvServerURL  = "AGENTREPLAY_SERVER_URL"
	EnvDevProxy   = "AGENTREPLAY_DEV_PROXY"
)

// Mode identifies which transport environment was detected. Exactly one
// mode is chosen per process start and is immutable afterwards.
type Mode int

const (
	// ModeUnknown means probing has not run or found nothing usable
	ModeUnknown Mode = iota
	// ModeEmbedded means the embedded host's direct channel is used
	ModeEmbedded
	// ModeDevProxy means commands pass through a development proxy
	ModeDevProxy
	// ModeRemote means an explicit remote server address is used
	ModeRemote
)

// String returns the string representation of Mode
func (m Mode) String() string {
	switch m {
	case ModeEmbedded:
		return "embedded"
	case ModeDevProxy:
		return "devproxy"
	case ModeRemote:
		return "remote"
	default:
		return "unknown"
	}
}

// Config is the resolved environment for one process lifetime.
type Config struct {
	Mode       Mode
	BaseURL    string // HTTP origin for command and stream endpoints
	NATSURL    string // direct channel address (embedded mode only)
	StreamURL  string // explicit stream endpoint override, may be empty
	MaxRecords int    // stream record window capacity
}

// StreamEndpoint returns the push-stream URL: the explicit override if
// one was configured, otherwise the base URL plus the stream path. The
// scheme may be http(s) for server-sent events or ws(s) for WebSocket.
func (c Config) StreamEndpoint() string {
	if c.StreamURL != "" {
		return c.StreamURL
	}
	return c.BaseURL + StreamPath
}

// fileConfig is the optional YAML configuration file shape.
type fileConfig struct {
	Mode        string `yaml:"mode"`
	ServerURL   string `yaml:"server_url"`
	NATSURL     string `yaml:"nats_url"`
	DevProxyURL string `yaml:"dev_proxy_url"`
	StreamURL   string `yaml:"stream_url"`
	MaxRecords  int    `yaml:"max_records"`
}

// Resolve probes the environment and returns the configuration for
// this process. Sources, in increasing precedence: the YAML file named
// by AGENTREPLAY_CONFIG, then environment variables. Mode selection
// order: embedded host detection, explicit remote address, development
// proxy. Finding none is a configuration error, surfaced immediately
// and never retried.
func Resolve() (Config, error) {
	var fc fileConfig
	if path := os.Getenv(EnvConfigFile); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, errors.WrapFatal(err, "config", "Resolve", "read config file")
		}
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return Config{}, errors.WrapFatal(err, "config", "Resolve", "parse config file")
		}
	}

	cfg := Config{
		StreamURL:  fc.StreamURL,
		MaxRecords: fc.MaxRecords,
	}
	if cfg.MaxRecords <= 0 {
		cfg.MaxRecords = DefaultMaxRecords
	}

	mode, err := probeMode(fc)
	if err != nil {
		return Config{}, err
	}
	cfg.Mode = mode

	switch mode {
	case ModeEmbedded:
		cfg.NATSURL = firstNonEmpty(os.Getenv(EnvNATSURL), fc.NATSURL, DefaultEmbeddedNATSURL)
		cfg.BaseURL = firstNonEmpty(fc.ServerURL, DefaultEmbeddedBaseURL)

	case ModeRemote:
		cfg.BaseURL = firstNonEmpty(os.Getenv(EnvServerURL), fc.ServerURL)

	case ModeDevProxy:
		// Passthrough: the proxy origin stands in for the backend
		cfg.BaseURL = firstNonEmpty(os.Getenv(EnvDevProxy), fc.DevProxyURL, DefaultDevProxyURL)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// probeMode decides which environment this process is running in.
func probeMode(fc fileConfig) (Mode, error) {
	if fc.Mode != "" {
		switch strings.ToLower(fc.Mode) {
		case "embedded":
			return ModeEmbedded, nil
		case "devproxy":
			return ModeDevProxy, nil
		case "remote":
			return ModeRemote, nil
		default:
			return ModeUnknown, errors.WrapFatal(
				fmt.Errorf("%w: unknown mode %q", errors.ErrInvalidConfig, fc.Mode),
				"config", "probeMode", "validate mode")
		}
	}

	if isTruthy(os.Getenv(EnvEmbedded)) || os.Getenv(EnvNATSURL) != "" {
		return ModeEmbedded, nil
	}
	if os.Getenv(EnvServerURL) != "" || fc.ServerURL != "" {
		return ModeRemote, nil
	}
	if _, devProxy := os.LookupEnv(EnvDevProxy); devProxy || fc.DevProxyURL != "" {
		return ModeDevProxy, nil
	}

	return ModeUnknown, errors.WrapFatal(errors.ErrNoBaseURL, "config", "probeMode", "probe environment")
}

// Validate checks that the resolved configuration is usable.
func (c Config) Validate() error {
	if c.Mode == ModeUnknown {
		return errors.WrapFatal(errors.ErrNoBaseURL, "config", "Validate", "check mode")
	}

	if c.BaseURL == "" {
		return errors.WrapFatal(errors.ErrNoBaseURL, "config", "Validate", "check base URL")
	}
	if err := checkURL(c.BaseURL, "http", "https"); err != nil {
		return errors.WrapFatal(err, "config", "Validate", "check base URL")
	}

	if c.StreamURL != "" {
		if err := checkURL(c.StreamURL, "http", "https", "ws", "wss"); err != nil {
			return errors.WrapFatal(err, "config", "Validate", "check stream URL")
		}
	}

	if c.Mode == ModeEmbedded {
		if err := checkURL(c.NATSURL, "nats", "tls"); err != nil {
			return errors.WrapFatal(err, "config", "Validate", "check NATS URL")
		}
	}

	return nil
}

func checkURL(raw string, schemes ...string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", errors.ErrInvalidConfig, err)
	}
	for _, s := range schemes {
		if u.Scheme == s {
			return nil
		}
	}
	return fmt.Errorf("%w: unsupported scheme %q in %q", errors.ErrInvalidConfig, u.Scheme, raw)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func isTruthy(v string) bool {
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
