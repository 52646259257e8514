package config

import "testing"

func TestLoadDefaultsAndOptions(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("COMPANION_LOG_LEVEL", "DEBUG")

	cfg, err := Load("", WithDataRoot("/tmp/companion-data"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DataRoot != "/tmp/companion-data" {
		t.Fatalf("expected option override, got %q", cfg.DataRoot)
	}
	if cfg.APIKeys["openai"] != "sk-test" {
		t.Fatalf("expected harvested api key, got %+v", cfg.APIKeys)
	}
	if cfg.Level().String() != "DEBUG" {
		t.Fatalf("expected DEBUG level, got %v", cfg.Level())
	}
	if cfg.BackupThrottle.String() != "5m0s" {
		t.Fatalf("expected default backup throttle of 5m, got %v", cfg.BackupThrottle)
	}
}
