package protocol

import "time"

// ChannelConfig holds per-connection channel settings.
type ChannelConfig struct {
	// AckTimeout bounds Request calls whose context carries no deadline.
	// Callbacks registered with EmitWithAck never time out.
	AckTimeout time.Duration `yaml:"ack_timeout"`
	// MaxMessageSize limits encoded envelopes in both directions.
	MaxMessageSize int `yaml:"max_message_size"`
}

func DefaultChannelConfig() ChannelConfig {
	return ChannelConfig{
		AckTimeout:     10 * time.Second,
		MaxMessageSize: 1024 * 1024, // 1MB
	}
}
