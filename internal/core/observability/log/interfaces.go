package log

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log is the structured logger every package receives through its constructor.
type Log interface {
	Log(level Level, msg string, fields ...Field)

	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	Fatal(msg string, fields ...Field)

	With(fields ...Field) Log

	SetLevel(level Level)
	GetLevel() Level
}

type Level uint8

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

var levels = [...]struct {
	name string
	zap  zapcore.Level
}{
	LevelDebug: {"debug", zapcore.DebugLevel},
	LevelInfo:  {"info", zapcore.InfoLevel},
	LevelWarn:  {"warn", zapcore.WarnLevel},
	LevelError: {"error", zapcore.ErrorLevel},
	LevelFatal: {"fatal", zapcore.FatalLevel},
}

func (l Level) String() string {
	if int(l) < len(levels) {
		return levels[l].name
	}
	return fmt.Sprintf("level(%d)", uint8(l))
}

func (l Level) zap() zapcore.Level {
	if int(l) < len(levels) {
		return levels[l].zap
	}
	return zapcore.InfoLevel
}

// ParseLevel maps a config string onto a Level. The empty string is info.
func ParseLevel(s string) (Level, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	switch name {
	case "":
		return LevelInfo, nil
	case "warning":
		return LevelWarn, nil
	}
	for l, entry := range levels {
		if entry.name == name {
			return Level(l), nil
		}
	}
	return LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// UnmarshalText lets Level be decoded straight from YAML and flags.
func (l *Level) UnmarshalText(text []byte) error {
	parsed, err := ParseLevel(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// Field is a zap field; the helpers below keep callers off the zap import.
type Field = zap.Field

func Any(key string, val any) Field { return zap.Any(key, val) }
func Bool(key string, val bool) Field { return zap.Bool(key, val) }
func Duration(key string, val time.Duration) Field { return zap.Duration(key, val) }
func Float64(key string, val float64) Field { return zap.Float64(key, val) }
func Int(key string, val int) Field { return zap.Int(key, val) }
func String(key string, val string) Field { return zap.String(key, val) }
func Strings(key string, val []string) Field { return zap.Strings(key, val) }
func Uint64(key string, val uint64) Field { return zap.Uint64(key, val) }
func Error(err error) Field { return zap.Error(err) }
func NamedError(key string, err error) Field { return zap.NamedError(key, err) }
