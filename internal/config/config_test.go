package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestParseYAML(t *testing.T) {
	path := writeConfig(t, "caresync.yaml", `
logging:
  level: debug
  console: true
feed:
  debounce: 500ms
  max_notifications: 50
  rescan: 10m
storage:
  driver: file
  path: ./cache
sessions:
  - user_id: p1
    role: patient
  - user_id: d1
    role: specialist
`)
	cfg, err := NewManager(path).Parse()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Logging.Level != "debug" || !cfg.Logging.Console {
		t.Fatalf("logging = %+v", cfg.Logging)
	}
	if cfg.Feed.Debounce != "500ms" || cfg.Feed.MaxNotifications != 50 {
		t.Fatalf("feed = %+v", cfg.Feed)
	}
	if cfg.Storage == nil || cfg.Storage.Driver != "file" {
		t.Fatalf("storage = %+v", cfg.Storage)
	}
	if len(cfg.Sessions) != 2 || cfg.Sessions[1].Role != "specialist" {
		t.Fatalf("sessions = %+v", cfg.Sessions)
	}
}

func TestParseJSON(t *testing.T) {
	path := writeConfig(t, "caresync.json", `{
  "logging": {"level": "info", "console": true},
  "feed": {"dedup_window": "45s"}
}`)
	cfg, err := NewManager(path).Parse()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Feed.DedupWindow != "45s" {
		t.Fatalf("dedup_window = %q", cfg.Feed.DedupWindow)
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	path := writeConfig(t, "caresync.yaml", `
logging:
  console: true
feeed:
  debounce: 1s
`)
	if _, err := NewManager(path).Parse(); err == nil {
		t.Fatal("typo'd section must be rejected")
	}
}

func TestParseRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name    string
		content string
		errPart string
	}{
		{"bad role", "sessions:\n  - user_id: u1\n    role: admin\n", "role"},
		{"missing user id", "sessions:\n  - role: patient\n", "user_id"},
		{"bad duration", "feed:\n  debounce: fast\n", "debounce"},
		{"negative max", "feed:\n  max_notifications: -1\n", "max_notifications"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			path := writeConfig(t, "caresync.yaml", tc.content)
			_, err := NewManager(path).Parse()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.errPart) {
				t.Fatalf("err %q does not mention %q", err, tc.errPart)
			}
		})
	}
}

func TestParseDurationField(t *testing.T) {
	if d, err := ParseDurationField("x", " 300ms "); err != nil || d != 300*time.Millisecond {
		t.Fatalf("got %v, %v", d, err)
	}
	if d, err := ParseDurationField("x", ""); err != nil || d != 0 {
		t.Fatalf("empty must be zero, got %v, %v", d, err)
	}
	if _, err := ParseDurationField("x", "-5s"); err == nil {
		t.Fatal("negative duration must fail")
	}
	if d, err := ParseDurationOrDefault("x", "", 24*time.Hour); err != nil || d != 24*time.Hour {
		t.Fatalf("default not applied: %v, %v", d, err)
	}
}

func TestManagerCommitAndSubscribe(t *testing.T) {
	m := NewManager("unused")
	cfg := &Config{Logging: LoggingConfig{Level: "info"}}
	m.Commit(cfg)
	if got := m.Get(); got != cfg {
		t.Fatal("Get did not return the committed config")
	}

	ch := m.Subscribe(1)
	defer m.Unsubscribe(ch)
	next := &Config{Logging: LoggingConfig{Level: "debug"}}
	m.publish(next)
	select {
	case got := <-ch:
		if got.Logging.Level != "debug" {
			t.Fatalf("published config = %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("publish never delivered")
	}
}

func TestPublishDropsOldestWhenSlow(t *testing.T) {
	m := NewManager("unused")
	ch := m.Subscribe(1)
	defer m.Unsubscribe(ch)

	first := &Config{Logging: LoggingConfig{Level: "info"}}
	second := &Config{Logging: LoggingConfig{Level: "debug"}}
	m.publish(first)
	m.publish(second) // buffer full: oldest dropped, newest delivered

	select {
	case got := <-ch:
		if got.Logging.Level != "debug" {
			t.Fatalf("expected newest config, got %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("nothing delivered")
	}
}
