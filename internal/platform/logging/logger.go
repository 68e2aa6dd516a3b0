package logging

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// rfc3339Micros renders timestamps with fixed microsecond precision.
const rfc3339Micros = "2006-01-02T15:04:05.000000Z07:00"

var (
	mu        sync.Mutex
	level     = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	base      *zap.Logger
	buildErr  error
	buildOnce sync.Once
	output    = "stdout"
)

// ParseLevel maps a textual level ("debug", "info", "warn", "error") to a zap level.
func ParseLevel(text string) (zapcore.Level, error) {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(strings.ToLower(strings.TrimSpace(text)))); err != nil {
		return zapcore.InfoLevel, fmt.Errorf("invalid log level %q: %w", text, err)
	}
	return lvl, nil
}

// Configure sets the minimum level of the process logger. It may be called
// before or after the first log line; the level is atomic.
func Configure(text string) error {
	lvl, err := ParseLevel(text)
	if err != nil {
		return err
	}
	level.SetLevel(lvl)
	return nil
}

// WriteToStderr routes the process logger to stderr. It only takes effect
// when called before the first log line.
func WriteToStderr() {
	mu.Lock()
	output = "stderr"
	mu.Unlock()
}

func build() {
	mu.Lock()
	out := output
	mu.Unlock()

	cfg := zap.NewProductionConfig()
	cfg.Level = level
	cfg.OutputPaths = []string{out}
	cfg.ErrorOutputPaths = []string{out}
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(t.UTC().Format(rfc3339Micros))
	}
	cfg.EncoderConfig.LevelKey = "severity"
	cfg.EncoderConfig.EncodeLevel = encodeSeverity
	cfg.EncoderConfig.MessageKey = "message"
	cfg.EncoderConfig.CallerKey = "caller"

	logger, err := cfg.Build(zap.AddCaller())
	if err != nil {
		buildErr = err
		logger = zap.NewNop()
	}
	mu.Lock()
	if base == nil {
		base = logger
	}
	mu.Unlock()
}

// encodeSeverity maps zap levels to Cloud Logging severity names.
func encodeSeverity(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(severity(l))
}

func severity(l zapcore.Level) string {
	switch l {
	case zapcore.DebugLevel:
		return "DEBUG"
	case zapcore.InfoLevel:
		return "INFO"
	case zapcore.WarnLevel:
		return "WARNING"
	case zapcore.ErrorLevel:
		return "ERROR"
	case zapcore.DPanicLevel:
		return "CRITICAL"
	case zapcore.PanicLevel:
		return "ALERT"
	case zapcore.FatalLevel:
		return "EMERGENCY"
	default:
		return "DEFAULT"
	}
}

// Logger returns the process-wide zap.Logger instance.
func Logger() *zap.Logger {
	buildOnce.Do(build)
	mu.Lock()
	defer mu.Unlock()
	return base
}

// ReplaceLogger swaps the process logger and returns a function restoring the
// previous one. Intended for tests that observe log output.
func ReplaceLogger(l *zap.Logger) func() {
	buildOnce.Do(build)
	mu.Lock()
	prev := base
	base = l
	mu.Unlock()
	return func() {
		mu.Lock()
		base = prev
		mu.Unlock()
	}
}

// Sync flushes buffered log entries. Call during shutdown.
func Sync() error {
	return Logger().Sync()
}

// Err reports initialization failure, if any.
func Err() error {
	buildOnce.Do(build)
	return buildErr
}
