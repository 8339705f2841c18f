package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lorebot.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "discord:\n  bot_token: abc\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.LLM.BaseURL != "http://localhost:11434" {
		t.Errorf("llm base url = %q", cfg.LLM.BaseURL)
	}
	if cfg.LLM.EmbedModel != "nomic-embed-text" {
		t.Errorf("embed model = %q", cfg.LLM.EmbedModel)
	}
	if cfg.Database.Path != "lorebot.db" {
		t.Errorf("database path = %q", cfg.Database.Path)
	}
	if cfg.Data.ConversationsDir != "data/conversations" || cfg.Data.ScenariosDir != "data/scenarios" {
		t.Errorf("data dirs = %q, %q", cfg.Data.ConversationsDir, cfg.Data.ScenariosDir)
	}
	if cfg.Replay.DefaultDelay != 2500*time.Millisecond {
		t.Errorf("default delay = %v", cfg.Replay.DefaultDelay)
	}
	if cfg.Replay.SeedDelay != 1200*time.Millisecond {
		t.Errorf("seed delay = %v", cfg.Replay.SeedDelay)
	}
}

func TestLoadExpandsEnvironment(t *testing.T) {
	t.Setenv("DISCORD_BOT_TOKEN", "from-env")
	path := writeConfig(t, "discord:\n  bot_token: ${DISCORD_BOT_TOKEN}\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Discord.BotToken != "from-env" {
		t.Errorf("token = %q", cfg.Discord.BotToken)
	}
}

func TestLoadRequiresToken(t *testing.T) {
	path := writeConfig(t, "logging:\n  level: debug\n")

	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "bot_token") {
		t.Fatalf("Load error = %v, want missing token failure", err)
	}
}

func TestLoadRejectsInvalidYAML(t *testing.T) {
	path := writeConfig(t, "discord: [not\n  a map\n")

	if _, err := Load(path); err == nil {
		t.Fatal("Load unexpectedly succeeded on invalid YAML")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("Load unexpectedly succeeded on a missing file")
	}
}

func TestValidateKeepsExplicitValues(t *testing.T) {
	cfg := &Config{}
	cfg.Discord.BotToken = "abc"
	cfg.LLM.Model = "custom-model"
	cfg.Replay.DefaultDelay = 5 * time.Second

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if cfg.LLM.Model != "custom-model" {
		t.Errorf("model overridden to %q", cfg.LLM.Model)
	}
	if cfg.Replay.DefaultDelay != 5*time.Second {
		t.Errorf("delay overridden to %v", cfg.Replay.DefaultDelay)
	}
}
