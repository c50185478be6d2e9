package quic

import (
	"time"

	"github.com/quic-go/quic-go"
)

// ALPN is the application protocol negotiated on every connection.
const ALPN = "entisync-quic"

type Config struct {
	MaxIdleTimeout   time.Duration `yaml:"max_idle_timeout"`
	KeepAlivePeriod  time.Duration `yaml:"keep_alive_period"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	MaxMessageSize   uint32        `yaml:"max_message_size"`
	// InsecureSkipVerify accepts any server certificate when dialing.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`
}

func DefaultConfig() Config {
	return Config{
		MaxIdleTimeout:     30 * time.Second,
		KeepAlivePeriod:    15 * time.Second,
		HandshakeTimeout:   10 * time.Second,
		MaxMessageSize:     1024 * 1024, // 1MB
		InsecureSkipVerify: true,
	}
}

func (c Config) quicConfig() *quic.Config {
	return &quic.Config{
		MaxIdleTimeout:        c.MaxIdleTimeout,
		KeepAlivePeriod:       c.KeepAlivePeriod,
		HandshakeIdleTimeout:  c.HandshakeTimeout,
		MaxIncomingStreams:    1,
		MaxIncomingUniStreams: -1,
	}
}
