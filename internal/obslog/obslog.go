// Package obslog owns the process-wide zap logger. Output goes to the
// console, a file, or both.
package obslog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var globalLogger = zap.NewNop()

// L returns the process logger. It is a no-op logger until InitFromEnv runs.
func L() *zap.Logger { return globalLogger }

// InitFromEnv builds the logger from LOG_* variables.
func InitFromEnv() error {
	logger, err := build(envSettings())
	if err != nil {
		return err
	}
	globalLogger = logger
	return nil
}

type settings struct {
	level   zapcore.Level
	console bool
	toFile  bool
	caller  bool
	format  string
	file    string
}

func envSettings() settings {
	st := settings{
		level:   parseLevel(getenvDefault("LOG_LEVEL", "info")),
		console: strings.EqualFold(getenvDefault("LOG_TO_CONSOLE", "true"), "true"),
		toFile:  strings.EqualFold(getenvDefault("LOG_TO_FILE", "true"), "true"),
		caller:  strings.EqualFold(getenvDefault("LOG_CALLER", "false"), "true"),
		format:  strings.ToLower(strings.TrimSpace(getenvDefault("LOG_FORMAT", "legacy"))),
		file:    strings.TrimSpace(getenvDefault("LOG_FILE", filepath.Join("logs", "web-chess.log"))),
	}
	if st.format != "legacy" && st.format != "json" && st.format != "console" {
		st.format = "legacy"
	}
	return st
}

func build(st settings) (*zap.Logger, error) {
	var cores []zapcore.Core
	if st.console {
		cores = append(cores, zapcore.NewCore(encoderFor(st.format), zapcore.AddSync(os.Stdout), st.level))
	}
	if st.toFile {
		if err := ensureDir(filepath.Dir(st.file)); err != nil {
			return nil, err
		}
		f, err := os.OpenFile(st.file, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		cores = append(cores, zapcore.NewCore(encoderFor(st.format), zapcore.AddSync(f), st.level))
	}
	if len(cores) == 0 {
		enc := zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
		cores = append(cores, zapcore.NewCore(enc, zapcore.AddSync(os.Stdout), st.level))
	}

	logger := zap.New(zapcore.NewTee(cores...))
	if st.caller || st.format == "legacy" {
		logger = logger.WithOptions(zap.AddCaller())
	}
	return logger.WithOptions(zap.AddStacktrace(zapcore.ErrorLevel)), nil
}

func encoderFor(format string) zapcore.Encoder {
	switch format {
	case "json":
		return zapcore.NewJSONEncoder(jsonEncoderConfig())
	case "console":
		return zapcore.NewConsoleEncoder(consoleEncoderConfig())
	default:
		return zapcore.NewConsoleEncoder(legacyEncoderConfig())
	}
}

func ensureDir(dir string) error {
	if strings.TrimSpace(dir) == "" || dir == "." {
		return nil
	}
	if _, err := os.Stat(dir); err == nil {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func parseLevel(s string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	case "dpanic":
		return zapcore.DPanicLevel
	case "panic":
		return zapcore.PanicLevel
	case "fatal":
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

func getenvDefault(k, def string) string {
	v := os.Getenv(k)
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func legacyEncoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	cfg.ConsoleSeparator = " | "
	return cfg
}

func consoleEncoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	return cfg
}

func jsonEncoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeLevel = zapcore.LowercaseLevelEncoder
	return cfg
}
