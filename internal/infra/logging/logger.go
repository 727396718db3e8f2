package logging

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Constants for log levels that match slog.Level values.
const (
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
)

// LoggerKey is the attribute key holding the logger name.
const LoggerKey = "logger"

// Type aliases for commonly used slog types.
type (
	Logger  = *slog.Logger
	Handler = slog.Handler
	Level   = slog.Level
)

//nolint:gochecknoglobals
var logLevelStrToLevel = map[string]Level{
	"debug": LevelDebug,
	"info":  LevelInfo,
	"warn":  LevelWarn,
	"error": LevelError,
}

// LoggerConfig holds configuration parameters for logging.
type LoggerConfig struct {
	// Output specifies where logs are written ("stdout", "stderr", "discard" or a file path)
	Output string `env:"OUTPUT" env-default:"stderr" yaml:"output"`

	// Level sets the minimum log level ("debug", "info", "warn", "error")
	Level string `env:"LEVEL" env-default:"info" yaml:"level"`

	// Filter specifies per-logger overrides ("repo:debug,svc.authsvc:warn")
	Filter string `env:"FILTER" yaml:"filter"`

	// JSON enables JSON-formatted output instead of human-readable console output
	JSON bool `env:"JSON" env-default:"false" yaml:"json"`

	// OutputHandle overrides Output, mostly for tests.
	OutputHandle io.Writer `env:"-" yaml:"-"`
}

//nolint:gochecknoglobals
var (
	Group = slog.Group

	config     LoggerConfig
	appName    string
	configLock sync.RWMutex
)

// Configure sets up global logging configuration for the application.
// Loggers created before Configure discard their output.
func Configure(ctx context.Context, cfg LoggerConfig, name string) error {
	if err := configure(cfg, name); err != nil {
		return err
	}

	GetLogger("infra.logging").With(Group("config",
		"app", name,
		"output", cfg.Output,
		"level", cfg.Level,
		"filter", cfg.Filter,
		"json", cfg.JSON,
	)).DebugContext(ctx, "logging configured")

	return nil
}

func configure(cfg LoggerConfig, name string) error {
	configLock.Lock()
	defer configLock.Unlock()

	if cfg.OutputHandle == nil {
		switch cfg.Output {
		case "", "discard":
			cfg.OutputHandle = io.Discard
		case "stdout":
			cfg.OutputHandle = os.Stdout
		case "stderr":
			cfg.OutputHandle = os.Stderr
		default:
			file, err := os.OpenFile(cfg.Output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
			if err != nil {
				return fmt.Errorf("open log file: %w", err)
			}

			cfg.OutputHandle = file
		}
	}

	config = cfg
	appName = name

	slog.SetLogLoggerLevel(parseLogLevel(config.Level, LevelInfo))

	return nil
}

// GetLogLogger creates a standard library *log.Logger that writes through a slog.Logger.
// Useful for adapting third-party code that expects a *log.Logger.
func GetLogLogger(logger Logger, level Level) *log.Logger {
	return slog.NewLogLogger(logger.With("stdlog", true).Handler(), level)
}

// GetLogger creates a new logger with the given dotted name, e.g. "repo.account".
// The name selects per-logger level overrides from LoggerConfig.Filter.
func GetLogger(name string) Logger {
	configLock.RLock()
	cfg, app := config, appName
	configLock.RUnlock()

	if cfg.OutputHandle == nil || cfg.OutputHandle == io.Discard {
		return NewNopLogger()
	}

	level := cfg.levelFor(name)

	var handler slog.Handler

	if cfg.JSON {
		//nolint:exhaustruct
		handler = slog.NewJSONHandler(cfg.OutputHandle, &slog.HandlerOptions{
			AddSource: true,
			Level:     level,
		})
	} else {
		handler = NewConsoleHandler(cfg.OutputHandle, level)
	}

	logger := slog.New(NewTracingHandler(handler))

	if app != "" {
		logger = logger.With("app", app)
	}

	return logger.With(LoggerKey, name)
}

// levelFor returns the most specific filter level for the dotted logger
// name, falling back to the global level.
func (cfg LoggerConfig) levelFor(name string) Level {
	levels := cfg.getPkgLevels()

	for parts := strings.Split(name, "."); len(parts) > 0; parts = parts[:len(parts)-1] {
		if level, ok := levels[strings.Join(parts, ".")]; ok {
			return level
		}
	}

	return parseLogLevel(cfg.Level, LevelInfo)
}

func (cfg LoggerConfig) getPkgLevels() map[string]Level {
	levels := make(map[string]Level)

	for _, pkgLevel := range strings.Split(cfg.Filter, ",") {
		name, level, ok := strings.Cut(pkgLevel, ":")
		if !ok {
			continue
		}

		levels[strings.TrimSpace(name)] = parseLogLevel(level, LevelDebug)
	}

	return levels
}

func parseLogLevel(levelStr string, fallback Level) Level {
	level, ok := logLevelStrToLevel[strings.ToLower(strings.TrimSpace(levelStr))]
	if !ok {
		return fallback
	}

	return level
}
