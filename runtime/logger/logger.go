// Package logger provides structured logging with automatic redaction of
// credentials.
//
// This package wraps Go's standard log/slog with convenience functions for:
//   - Interview lifecycle logging (state changes, turns, finalization)
//   - Outbound collaborator calls (dialogue, analysis, storage)
//   - Automatic API key and bearer token redaction
//   - Contextual logging keyed by session
//
// All exported functions use the global DefaultLogger which can be configured
// for different output formats and log levels.
package logger

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strings"
)

var (
	// DefaultLogger is the global structured logger instance.
	// It is safe for concurrent use and initialized with slog.LevelInfo by default.
	DefaultLogger *slog.Logger

	// logOutput is where every handler created by this package writes.
	logOutput io.Writer = os.Stderr
)

func init() {
	level := slog.LevelInfo
	if envLevel := os.Getenv("LOG_LEVEL"); envLevel != "" {
		level = ParseLevel(envLevel)
	}
	initLogger(level, nil, false)
}

// ParseLevel converts a level name into a slog.Level. Unknown names map to info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
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

func initLogger(level slog.Level, commonFields []slog.Attr, useJSON bool) {
	opts := &slog.HandlerOptions{Level: level}

	var base slog.Handler
	if useJSON {
		base = slog.NewJSONHandler(logOutput, opts)
	} else {
		base = slog.NewTextHandler(logOutput, opts)
	}
	DefaultLogger = slog.New(NewContextHandler(base, commonFields...))
}

// SetOutput redirects log output. Call SetLevel or Configure afterwards to
// rebuild the handler.
func SetOutput(w io.Writer) {
	logOutput = w
}

// SetLevel changes the logging level for all subsequent log operations.
// This is safe for concurrent use as it replaces the entire logger instance.
func SetLevel(level slog.Level) {
	initLogger(level, nil, false)
}

// SetVerbose enables debug-level logging when verbose is true, otherwise sets info-level.
// This is a convenience wrapper around SetLevel for command-line verbose flags.
func SetVerbose(verbose bool) {
	if verbose {
		SetLevel(slog.LevelDebug)
	} else {
		SetLevel(slog.LevelInfo)
	}
}

// Info logs an informational message with structured key-value attributes.
func Info(msg string, args ...any) {
	DefaultLogger.Info(msg, args...)
}

// InfoContext logs an informational message with context and structured attributes.
func InfoContext(ctx context.Context, msg string, args ...any) {
	DefaultLogger.InfoContext(ctx, msg, args...)
}

// Debug logs a debug-level message with structured attributes.
func Debug(msg string, args ...any) {
	DefaultLogger.Debug(msg, args...)
}

// DebugContext logs a debug message with context and structured attributes.
func DebugContext(ctx context.Context, msg string, args ...any) {
	DefaultLogger.DebugContext(ctx, msg, args...)
}

// Warn logs a warning message with structured attributes.
// Use for recoverable errors or unexpected but non-critical situations.
func Warn(msg string, args ...any) {
	DefaultLogger.Warn(msg, args...)
}

// WarnContext logs a warning message with context and structured attributes.
func WarnContext(ctx context.Context, msg string, args ...any) {
	DefaultLogger.WarnContext(ctx, msg, args...)
}

// Error logs an error message with structured attributes.
func Error(msg string, args ...any) {
	DefaultLogger.Error(msg, args...)
}

// ErrorContext logs an error message with context and structured attributes.
func ErrorContext(ctx context.Context, msg string, args ...any) {
	DefaultLogger.ErrorContext(ctx, msg, args...)
}

// StateChange logs a session state transition.
func StateChange(ctx context.Context, from, to, event string) {
	DefaultLogger.InfoContext(ctx, "session state changed",
		"from", from,
		"to", to,
		"event", event,
	)
}

// TurnRecorded logs that a turn was appended to a transcript. Only sizes are
// logged; candidate speech never reaches the log at info level.
func TurnRecorded(ctx context.Context, index, answerChars int) {
	DefaultLogger.InfoContext(ctx, "turn recorded",
		"turn_index", index,
		"answer_chars", answerChars,
	)
}

var (
	// apiKeyPatterns contains compiled regular expressions for detecting sensitive data.
	apiKeyPatterns = []*regexp.Regexp{
		regexp.MustCompile(`sk-[a-zA-Z0-9]{32,}`),                                   // OpenAI-style keys
		regexp.MustCompile(`AIza[a-zA-Z0-9_-]{35}`),                                 // Google API keys
		regexp.MustCompile(`eyJ[a-zA-Z0-9_-]{10,}\.[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+`), // JWTs (Supabase service keys)
		regexp.MustCompile(`Bearer\s+[a-zA-Z0-9_.-]+`),                              // Bearer tokens
	}
)

// RedactSensitiveData removes API keys and other sensitive information from strings.
// Matches keep their first four characters for debugging; bearer tokens are
// replaced entirely.
func RedactSensitiveData(input string) string {
	result := input

	for _, pattern := range apiKeyPatterns {
		result = pattern.ReplaceAllStringFunc(result, func(match string) string {
			if strings.HasPrefix(match, "Bearer") {
				return "Bearer [REDACTED]"
			}
			if len(match) > 8 {
				return match[:4] + "...[REDACTED]"
			}
			return "[REDACTED]"
		})
	}

	return result
}

// APIRequest logs HTTP API request details at debug level with automatic redaction.
// This function is a no-op when debug logging is disabled.
func APIRequest(service, method, url string, headers map[string]string, body any) {
	if !DefaultLogger.Enabled(context.Background(), slog.LevelDebug) {
		return
	}

	attrs := make([]any, 0, 10)
	attrs = append(attrs,
		"service", service,
		"method", method,
		"url", RedactSensitiveData(url),
	)

	if len(headers) > 0 {
		redactedHeaders := make(map[string]string, len(headers))
		for key, value := range headers {
			redactedHeaders[key] = RedactSensitiveData(value)
		}
		attrs = append(attrs, "headers", redactedHeaders)
	}

	if body != nil {
		bodyJSON, err := json.Marshal(body)
		if err != nil {
			attrs = append(attrs, "body_error", err.Error())
		} else {
			attrs = append(attrs, "body_bytes", len(bodyJSON))
		}
	}

	Debug("API request", attrs...)
}

// APIResponse logs HTTP API response details at debug level. Errors are logged
// at error level regardless of the debug setting.
func APIResponse(service string, statusCode int, body string, err error) {
	if err != nil {
		Error("API response error",
			"service", service,
			"status_code", statusCode,
			"error", RedactSensitiveData(err.Error()),
		)
		return
	}
	if !DefaultLogger.Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	Debug("API response",
		"service", service,
		"status_code", statusCode,
		"body", RedactSensitiveData(body),
	)
}
