package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_ENV", "does-not-exist")
	cfg, err := Load(nil)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Signal.URL != "ws://localhost:3001" || cfg.Signal.PingPeriod != 54*time.Second {
		t.Fatalf("signal defaults: %+v", cfg.Signal)
	}
	if len(cfg.ICEServers) != 2 || cfg.GlarePolicy != "polite" || !cfg.Media.Silence {
		t.Fatalf("defaults: %+v", cfg)
	}
	if cfg.Chat.RateLimit != 5 || cfg.Chat.RateInterval != 3*time.Second {
		t.Fatalf("chat defaults: %+v", cfg.Chat)
	}
}

func TestLoadLayering(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "meet.yaml")
	yaml := "signal_url: ws://file:1\nroom: from-file\nname: FileName\nmedia:\n  audio_file: a.ogg\nchat:\n  max_len: 10\n"
	if err := os.WriteFile(file, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("MEET_NAME", "EnvName")
	t.Setenv("MEET_MEDIA_VIDEO_FILE", "v.ivf")

	cfg, err := Load([]string{"--config", file, "--room", "from-flag", "--glare-policy", "accept"})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Signal.URL != "ws://file:1" || cfg.Chat.MaxLen != 10 || cfg.Media.AudioFile != "a.ogg" {
		t.Fatalf("file values lost: %+v", cfg)
	}
	if cfg.Name != "EnvName" || cfg.Media.VideoFile != "v.ivf" {
		t.Fatalf("env did not override: name=%q video=%q", cfg.Name, cfg.Media.VideoFile)
	}
	if cfg.Room != "from-flag" || cfg.GlarePolicy != "accept" {
		t.Fatalf("flags did not override: room=%q glare=%q", cfg.Room, cfg.GlarePolicy)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load([]string{"--config", filepath.Join(t.TempDir(), "missing.yaml")}); err == nil {
		t.Fatal("missing explicit config accepted")
	}
	if _, err := Load([]string{"--no-such-flag"}); err == nil {
		t.Fatal("unknown flag accepted")
	}
	t.Setenv("CONFIG_ENV", "does-not-exist")
	t.Setenv("MEET_PING_PERIOD", "2m")
	if _, err := Load(nil); err == nil {
		t.Fatal("ping_period longer than pong_wait accepted")
	}
}
