package client

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/zeusync/entisync/internal/core/ecs"
	"github.com/zeusync/entisync/internal/core/observability/log"
	"github.com/zeusync/entisync/internal/core/protocol"
	"github.com/zeusync/entisync/internal/core/protocol/quic"
	"github.com/zeusync/entisync/internal/core/protocol/websocket"
	"github.com/zeusync/entisync/internal/core/reconcile"
)

const (
	TransportWebsocket = "websocket"
	TransportQUIC      = "quic"
)

// Config holds configuration for the client
type Config struct {
	ServerAddr string `yaml:"server_addr"`
	Transport  string `yaml:"transport"`

	// TickRate is the interval between world ticks.
	TickRate time.Duration `yaml:"tick_rate"`
	// SyncInterval is how often owned entities publish their changes.
	SyncInterval time.Duration `yaml:"sync_interval"`
	// RequestTimeout bounds blocking requests such as game init.
	RequestTimeout time.Duration `yaml:"request_timeout"`
	// InboxSize bounds work queued for the loop.
	InboxSize int `yaml:"inbox_size"`

	// LocalIDBase is the first id of entities that exist only locally, far
	// above ids the server hands out.
	LocalIDBase ecs.EntityID `yaml:"local_id_base"`

	Interpolation reconcile.InterpolationConfig `yaml:"interpolation"`
	Channel       protocol.ChannelConfig        `yaml:"channel"`
	Websocket     websocket.Config              `yaml:"websocket"`
	QUIC          quic.Config                   `yaml:"quic"`

	StoragePath string    `yaml:"storage_path"`
	LogLevel    log.Level `yaml:"log_level"`
}

// DefaultConfig returns default client configuration
func DefaultConfig() Config {
	return Config{
		ServerAddr:     "127.0.0.1:8080",
		Transport:      TransportWebsocket,
		TickRate:       16 * time.Millisecond,
		SyncInterval:   100 * time.Millisecond,
		RequestTimeout: 10 * time.Second,
		InboxSize:      1024,
		LocalIDBase:    1 << 48,
		Interpolation:  reconcile.DefaultInterpolationConfig(),
		Channel:        protocol.DefaultChannelConfig(),
		Websocket:      websocket.DefaultConfig(),
		QUIC:           quic.DefaultConfig(),
		LogLevel:       log.LevelInfo,
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
		return config, fmt.Errorf("parse config: %w", err)
	}
	return config, nil
}
