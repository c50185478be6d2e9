package log

import (
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var _ Log = (*Logger)(nil)

const samplingTick = time.Second

// Logger gates every entry on its own atomic level, so SetLevel also holds
// for loggers wrapped with FromZap.
type Logger struct {
	z     *zap.Logger
	level zap.AtomicLevel
}

// New builds a JSON logger writing to stderr.
func New(level Level) *Logger {
	atomic := zap.NewAtomicLevelAt(level.zap())

	encoder := zap.NewProductionEncoderConfig()
	encoder.TimeKey = "ts"
	encoder.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewSamplerWithOptions(
		zapcore.NewCore(zapcore.NewJSONEncoder(encoder), zapcore.Lock(os.Stderr), atomic),
		samplingTick, 100, 100,
	)
	return &Logger{z: zap.New(core), level: atomic}
}

// NewNop discards everything.
func NewNop() *Logger {
	return &Logger{z: zap.NewNop(), level: zap.NewAtomicLevelAt(zapcore.InfoLevel)}
}

// FromZap wraps an existing zap logger, e.g. one built on zaptest/observer.
func FromZap(z *zap.Logger, level Level) *Logger {
	return &Logger{z: z, level: zap.NewAtomicLevelAt(level.zap())}
}

func (l *Logger) Log(level Level, msg string, fields ...Field) {
	lvl := level.zap()
	if !l.level.Enabled(lvl) {
		return
	}
	l.z.Log(lvl, msg, fields...)
}

func (l *Logger) Debug(msg string, fields ...Field) { l.Log(LevelDebug, msg, fields...) }
func (l *Logger) Info(msg string, fields ...Field) { l.Log(LevelInfo, msg, fields...) }
func (l *Logger) Warn(msg string, fields ...Field) { l.Log(LevelWarn, msg, fields...) }
func (l *Logger) Error(msg string, fields ...Field) { l.Log(LevelError, msg, fields...) }

// Fatal logs and exits regardless of the configured level.
func (l *Logger) Fatal(msg string, fields ...Field) {
	l.z.Fatal(msg, fields...)
}

func (l *Logger) With(fields ...Field) Log {
	return &Logger{z: l.z.With(fields...), level: l.level}
}

func (l *Logger) SetLevel(level Level) {
	l.level.SetLevel(level.zap())
}

func (l *Logger) GetLevel() Level {
	current := l.level.Level()
	for lvl, entry := range levels {
		if entry.zap == current {
			return Level(lvl)
		}
	}
	return LevelInfo
}

// Sync flushes buffered entries.
func (l *Logger) Sync() error {
	return l.z.Sync()
}
