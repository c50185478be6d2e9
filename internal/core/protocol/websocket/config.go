package websocket

import "time"

// Config holds websocket link settings.
type Config struct {
	Path            string        `yaml:"path"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	MaxMessageSize  int64         `yaml:"max_message_size"`
	ReadBufferSize  int           `yaml:"read_buffer_size"`
	WriteBufferSize int           `yaml:"write_buffer_size"`
	// CheckOrigin disables the same-origin check when false.
	CheckOrigin bool `yaml:"check_origin"`
}

func DefaultConfig() Config {
	return Config{
		Path:            "/ws",
		ReadTimeout:     0,
		WriteTimeout:    10 * time.Second,
		MaxMessageSize:  1024 * 1024, // 1MB
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     false,
	}
}
