package logger

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log is the process-wide logger. It is usable from init time; Configure
// re-levels it once the CLI flags have been parsed.
var Log *zap.Logger

var level = zap.NewAtomicLevelAt(zapcore.InfoLevel)

func parseLevel(levelStr string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(levelStr)) {
	case "debug":
		return zapcore.DebugLevel, nil
	case "", "info":
		return zapcore.InfoLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", levelStr)
	}
}

func init() {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", r)
			Log = zap.NewNop()
		}
	}()

	if lvl, err := parseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		level.SetLevel(lvl)
	}

	config := zap.NewProductionEncoderConfig()
	config.EncodeTime = zapcore.ISO8601TimeEncoder

	consoleEncoder := zapcore.NewConsoleEncoder(config)
	core := zapcore.NewCore(consoleEncoder, zapcore.Lock(os.Stderr), level)

	Log = zap.New(core, zap.AddStacktrace(zapcore.ErrorLevel))
}

// Configure sets the level from the --loglevel flag. An unknown level keeps
// the current one and logs a warning rather than failing the run.
func Configure(levelStr string) {
	lvl, err := parseLevel(levelStr)
	if err != nil {
		Log.Warn("Invalid log level, keeping current", zap.String("value", levelStr), zap.Error(err))
		return
	}
	level.SetLevel(lvl)
}

// Sugared returns the sugared form of the process logger.
func Sugared() *zap.SugaredLogger {
	return Log.Sugar()
}

// Close flushes buffered log entries. Call on process exit.
func Close() error {
	if Log != nil {
		return Log.Sync()
	}
	return nil
}
