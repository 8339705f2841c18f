// Package observability provides structured logging for the bot.
package observability

import (
	"io"
	"log/slog"
	"os"
	"regexp"
	"strings"
)

// redactPatterns covers the secrets a Discord bot actually handles: the bot
// token and webhook tokens embedded in execute URLs.
var redactPatterns = []*regexp.Regexp{
	// Bot tokens: three dot-separated base64url segments.
	regexp.MustCompile(`[A-Za-z0-9_-]{23,28}\.[A-Za-z0-9_-]{6,7}\.[A-Za-z0-9_-]{27,}`),
	// Webhook URLs carry the webhook token as the final path segment.
	regexp.MustCompile(`(discord(?:app)?\.com/api/webhooks/\d+)/[A-Za-z0-9_-]+`),
}

var redactReplacements = []string{
	"[REDACTED]",
	"$1/[REDACTED]",
}

func redactString(s string) string {
	for i, re := range redactPatterns {
		s = re.ReplaceAllString(s, redactReplacements[i])
	}
	return s
}

// redactAttr scrubs string attribute values, including the message itself.
func redactAttr(_ []string, a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindString {
		a.Value = slog.StringValue(redactString(a.Value.String()))
	}
	return a
}

// LogConfig configures the logging behavior.
type LogConfig struct {
	// Level sets the minimum log level: "debug", "info", "warn", "error"
	Level string

	// Format specifies output format: "json" or "text".
	// JSON is recommended for production; text for development.
	Format string

	// Output is the writer for log output (defaults to os.Stdout)
	Output io.Writer

	// AddSource includes file and line number in log records
	AddSource bool
}

// NewLogger creates a structured slog logger with the given configuration.
// String record values are scrubbed of bot and webhook tokens.
//
// If config.Output is nil, logs are written to os.Stdout.
// If config.Level is empty or invalid, defaults to "info".
// If config.Format is empty, defaults to "text".
func NewLogger(config LogConfig) *slog.Logger {
	if config.Output == nil {
		config.Output = os.Stdout
	}

	var level slog.Level
	switch strings.ToLower(config.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level:       level,
		AddSource:   config.AddSource,
		ReplaceAttr: redactAttr,
	}

	var handler slog.Handler
	if strings.ToLower(config.Format) == "json" {
		handler = slog.NewJSONHandler(config.Output, opts)
	} else {
		handler = slog.NewTextHandler(config.Output, opts)
	}

	return slog.New(handler)
}
