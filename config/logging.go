package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/unkn0wn-root/outcall"
	ologrus "github.com/unkn0wn-root/outcall/log/logrus"
	oslog "github.com/unkn0wn-root/outcall/log/slog"
	ozap "github.com/unkn0wn-root/outcall/log/zap"
)

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("log.level: unknown level %q", s)
	}
}

// Logger builds the configured backend writing to stderr. sync flushes it.
func (l LogConfig) Logger() (outcall.Logger, func() error, error) {
	lvl, err := parseLevel(l.Level)
	if err != nil {
		return nil, nil, err
	}
	noop := func() error { return nil }

	switch l.Backend {
	case "", "zap":
		zc := zap.NewProductionConfig()
		if l.Format == "console" {
			zc = zap.NewDevelopmentConfig()
		}
		zc.Level = zap.NewAtomicLevelAt(zapLevel(lvl))
		z, err := zc.Build()
		if err != nil {
			return nil, nil, fmt.Errorf("config: zap: %w", err)
		}
		return ozap.New(z), z.Sync, nil
	case "logrus":
		lr := logrus.New()
		lr.SetOutput(os.Stderr)
		lr.SetLevel(logrusLevel(lvl))
		if l.Format != "console" {
			lr.SetFormatter(&logrus.JSONFormatter{})
		}
		return ologrus.New(lr), noop, nil
	case "slog":
		return oslog.New(l.Slog()), noop, nil
	default:
		return nil, nil, fmt.Errorf("config: unknown log backend %q", l.Backend)
	}
}

// Slog returns a log/slog logger honoring Level and Format. The cache event
// hooks log through it whatever the backend.
func (l LogConfig) Slog() *slog.Logger {
	lvl, _ := parseLevel(l.Level)
	ho := &slog.HandlerOptions{Level: lvl}
	if l.Format == "console" {
		return slog.New(slog.NewTextHandler(os.Stderr, ho))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, ho))
}

func zapLevel(l slog.Level) zapcore.Level {
	switch {
	case l <= slog.LevelDebug:
		return zapcore.DebugLevel
	case l <= slog.LevelInfo:
		return zapcore.InfoLevel
	case l <= slog.LevelWarn:
		return zapcore.WarnLevel
	default:
		return zapcore.ErrorLevel
	}
}

func logrusLevel(l slog.Level) logrus.Level {
	switch {
	case l <= slog.LevelDebug:
		return logrus.DebugLevel
	case l <= slog.LevelInfo:
		return logrus.InfoLevel
	case l <= slog.LevelWarn:
		return logrus.WarnLevel
	default:
		return logrus.ErrorLevel
	}
}
