package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.HTTP.Port != 8080 || cfg.Video.Stride != 10 || cfg.Recognizer.Mode != RecognizerModeHTTP {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.Recognizer.Timeout != 30*time.Second {
		t.Fatalf("unexpected recognizer timeout %v", cfg.Recognizer.Timeout)
	}
	if cfg.Registry.Remote() {
		t.Fatalf("registry must default to in-process")
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "anpr.yaml")
	body := strings.Join([]string{
		"http:",
		"  port: 9090",
		"recognizer:",
		"  mode: exec",
		"  country: us",
		"video:",
		"  stride: 5",
		"registry:",
		"  url: http://registry:8080",
		"  timeout: 2s",
	}, "\n")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("ANPR_VIDEO_STRIDE", "3")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.HTTP.Port != 9090 {
		t.Fatalf("port from file not applied: %d", cfg.HTTP.Port)
	}
	if cfg.Video.Stride != 3 {
		t.Fatalf("env must override file, got stride %d", cfg.Video.Stride)
	}
	if cfg.Recognizer.Mode != RecognizerModeExec || cfg.Recognizer.Country != "us" {
		t.Fatalf("unexpected recognizer config %+v", cfg.Recognizer)
	}
	if !cfg.Registry.Remote() || cfg.Registry.Timeout != 2*time.Second {
		t.Fatalf("unexpected registry config %+v", cfg.Registry)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	t.Setenv("ANPR_RECOGNIZER_MODE", "magic")
	t.Setenv("ANPR_VIDEO_STRIDE", "0")

	_, err := Load("")
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"recognizer.mode", "video.stride"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q does not mention %s", err, want)
		}
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
