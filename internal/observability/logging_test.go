package observability

import (
	"bytes"
	"strings"
	"testing"
)

const testBotToken = "MTIzNDU2Nzg5MDEyMzQ1Njc4.GabcDE.abcdefghijklmnopqrstuvwxyz123456"

func TestNewLoggerRedactsBotToken(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Format: "json", Output: &buf})

	logger.Info("session opened", "authorization", "Bot "+testBotToken)

	out := buf.String()
	if strings.Contains(out, testBotToken) {
		t.Fatalf("bot token leaked into log output:\n%s", out)
	}
	if !strings.Contains(out, "[REDACTED]") {
		t.Errorf("no redaction marker in log output:\n%s", out)
	}
}

func TestNewLoggerRedactsWebhookURLToken(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Format: "text", Output: &buf})

	hookToken := "aBcDeFgHiJkLmNoPqRsTuVwXyZ0123456789aBcDeFgHiJkLmNoPqRsTuVwXyZ01234"
	logger.Warn("webhook delete failed",
		"url", "https://discord.com/api/webhooks/123456789012345678/"+hookToken)

	out := buf.String()
	if strings.Contains(out, hookToken) {
		t.Fatalf("webhook token leaked into log output:\n%s", out)
	}
	if !strings.Contains(out, "webhooks/123456789012345678/[REDACTED]") {
		t.Errorf("webhook id lost during redaction:\n%s", out)
	}
}

func TestNewLoggerRedactsMessageText(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Format: "json", Output: &buf})

	logger.Error("auth failed for " + testBotToken)

	if strings.Contains(buf.String(), testBotToken) {
		t.Fatalf("bot token leaked through the record message:\n%s", buf.String())
	}
}

func TestNewLoggerDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Output: &buf})

	logger.Debug("hidden")
	logger.Info("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("debug record emitted at the default level")
	}
	if !strings.Contains(out, "shown") {
		t.Error("info record suppressed at the default level")
	}
}
