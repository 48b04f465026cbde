package logger

import (
	"log/slog"
)

// Log format constants
const (
	FormatJSON = "json"
	FormatText = "text"
)

// LoggingConfigSpec defines the logging configuration for the Configure function.
// This mirrors config.LoggingConfig to avoid import cycles.
type LoggingConfigSpec struct {
	DefaultLevel string
	Format       string // "json" or "text"
	CommonFields map[string]string
}

// Configure applies a LoggingConfigSpec to the global logger and installs it
// as the slog default.
func Configure(cfg *LoggingConfigSpec) error {
	if cfg == nil {
		return nil
	}

	level := slog.LevelInfo
	if cfg.DefaultLevel != "" {
		level = ParseLevel(cfg.DefaultLevel)
	}

	commonFields := make([]slog.Attr, 0, len(cfg.CommonFields))
	for k, v := range cfg.CommonFields {
		commonFields = append(commonFields, slog.String(k, v))
	}

	initLogger(level, commonFields, cfg.Format == FormatJSON)
	slog.SetDefault(DefaultLogger)
	return nil
}
