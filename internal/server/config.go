package server

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/zeusync/entisync/internal/core/observability/log"
	"github.com/zeusync/entisync/internal/core/protocol"
	"github.com/zeusync/entisync/internal/core/protocol/quic"
	"github.com/zeusync/entisync/internal/core/protocol/websocket"
	"github.com/zeusync/entisync/pkg/vector"
)

const (
	TransportWebsocket = "websocket"
	TransportQUIC      = "quic"
)

// Config holds server configuration
type Config struct {
	ListenAddr string `yaml:"listen_addr"`
	Transport  string `yaml:"transport"`

	// Spawn is handed to every client in game init.
	Spawn vector.Vec2 `yaml:"spawn"`

	// InboxSize bounds messages queued for the event loop.
	InboxSize int `yaml:"inbox_size"`
	// SendTimeout bounds every write issued from the event loop.
	SendTimeout time.Duration `yaml:"send_timeout"`
	// ResumeWindow is how long a disconnected session that still owns
	// entities can be resumed. Zero forgets sessions on disconnect.
	ResumeWindow time.Duration `yaml:"resume_window"`

	// Authorization is "trust" or "owner".
	Authorization string `yaml:"authorization"`

	Channel   protocol.ChannelConfig `yaml:"channel"`
	Websocket websocket.Config       `yaml:"websocket"`
	QUIC      quic.Config            `yaml:"quic"`
	CertFile  string                 `yaml:"cert_file"`
	KeyFile   string                 `yaml:"key_file"`

	// MetricsInterval is the aggregation window of the in-memory sink.
	MetricsInterval time.Duration `yaml:"metrics_interval"`
	LogLevel        log.Level     `yaml:"log_level"`
}

// DefaultConfig returns default server configuration
func DefaultConfig() Config {
	return Config{
		ListenAddr:      "127.0.0.1:8080",
		Transport:       TransportWebsocket,
		Spawn:           vector.New(0, 0),
		InboxSize:       1024,
		SendTimeout:     5 * time.Second,
		ResumeWindow:    2 * time.Minute,
		Authorization:   AuthorizationTrust,
		Channel:         protocol.DefaultChannelConfig(),
		Websocket:       websocket.DefaultConfig(),
		QUIC:            quic.DefaultConfig(),
		MetricsInterval: 10 * time.Second,
		LogLevel:        log.LevelInfo,
	}
}

// LoadConfig reads a YAML file over the defaults.
func LoadConfig(path string) (Config, error) {
	config := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return config, fmt.Errorf("read config: %w", err)
	}
	if err = yaml.Unmarshal(data, &config); err != nil {
		return config, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return config, config.Validate()
}

func (c Config) Validate() error {
	switch c.Transport {
	case TransportWebsocket, TransportQUIC:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownTransport, c.Transport)
	}
	if _, err := NewAuthorizer(c.Authorization); err != nil {
		return err
	}
	if c.InboxSize <= 0 {
		return fmt.Errorf("%w: inbox_size must be positive", ErrInvalidConfig)
	}
	if c.ResumeWindow < 0 {
		return fmt.Errorf("%w: resume_window is negative", ErrInvalidConfig)
	}
	if c.ListenAddr == "" {
		return fmt.Errorf("%w: listen_addr is empty", ErrInvalidConfig)
	}
	return nil
}
