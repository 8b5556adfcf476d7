package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/natefinch/lumberjack"

	"github.com/Im-Vestor/im-vestor-full-sub002/config"
)

var (
	mu       sync.RWMutex
	instance *slog.Logger
)

// Init builds the process logger from settings and installs it as the
// slog default so library code logging through slog ends up in the same sink.
func Init(settings config.LoggerSettings) error {
	l, err := New(settings)
	if err != nil {
		return err
	}

	mu.Lock()
	instance = l
	mu.Unlock()
	slog.SetDefault(l)
	return nil
}

// L returns the configured logger, or slog's default before Init runs.
func L() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	if instance == nil {
		return slog.Default()
	}
	return instance
}

func New(settings config.LoggerSettings) (*slog.Logger, error) {
	opts := &slog.HandlerOptions{Level: parseLevel(settings.LogLevel)}

	switch settings.LogType {
	case config.LogTypeConsole, "":
		return slog.New(slog.NewTextHandler(os.Stdout, opts)), nil
	case config.LogTypeFile:
		if settings.FilePath == "" {
			return nil, fmt.Errorf("file path required for file logger")
		}
		return slog.New(slog.NewJSONHandler(fileWriter(settings), opts)), nil
	default:
		return nil, fmt.Errorf("unsupported log type: %s", settings.LogType)
	}
}

func fileWriter(settings config.LoggerSettings) io.Writer {
	return &lumberjack.Logger{
		Filename:   settings.FilePath,
		MaxSize:    settings.MaxSize,
		MaxBackups: settings.MaxBackups,
		MaxAge:     settings.MaxAge,
		Compress:   true,
	}
}

func parseLevel(level string) slog.Level {
	switch level {
	case config.LogLevelDebug:
		return slog.LevelDebug
	case config.LogLevelInfo:
		return slog.LevelInfo
	case config.LogLevelWarning:
		return slog.LevelWarn
	case config.LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
