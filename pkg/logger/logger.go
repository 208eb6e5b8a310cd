package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"golang.org/x/term"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Config struct {
	Level  string
	Format string
	// File enables a rotated log file next to stdout when set.
	File string
}

var (
	logger      *slog.Logger
	atomicLevel = new(slog.LevelVar)
)

// Init builds the process logger and installs it as the slog default.
func Init(cfg Config) *slog.Logger {
	atomicLevel.Set(ParseLevel(cfg.Level))

	writers := []io.Writer{os.Stdout}
	if cfg.File != "" {
		writers = append(writers, &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    50,
			MaxBackups: 5,
			MaxAge:     30,
			Compress:   true,
		})
	}
	w := io.MultiWriter(writers...)

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: atomicLevel})
	} else {
		noColor := cfg.File != "" || !isTerminal(os.Stdout)
		handler = newTintHandler(w, noColor)
	}

	logger = slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// Get returns the process logger, creating a console logger on first use.
func Get() *slog.Logger {
	if logger == nil {
		atomicLevel.Set(slog.LevelInfo)
		logger = slog.New(newTintHandler(os.Stdout, !isTerminal(os.Stdout)))
	}
	return logger
}

func WithComponent(name string) *slog.Logger {
	return Get().With("component", name)
}

func SetLevel(level slog.Level) {
	atomicLevel.Set(level)
}

func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func newTintHandler(w io.Writer, noColor bool) slog.Handler {
	return tint.NewHandler(w, &tint.Options{
		Level:      atomicLevel,
		TimeFormat: time.DateTime,
		NoColor:    noColor,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == "error" && a.Value.Kind() == slog.KindAny {
				if err, ok := a.Value.Any().(error); ok {
					return tint.Err(err)
				}
			}
			return a
		},
	})
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

func Info(msg string, args ...any) {
	Get().Info(msg, args...)
}

func Warn(msg string, args ...any) {
	Get().Warn(msg, args...)
}

func Error(msg string, args ...any) {
	Get().Error(msg, args...)
}
