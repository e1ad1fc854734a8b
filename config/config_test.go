package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	c := DefaultConfig()
	if c.Version != 1 {
		t.Errorf("version = %d", c.Version)
	}
	if c.Interaction.SnapThreshold != 24 || c.Interaction.ClickThreshold != 3 {
		t.Errorf("interaction defaults = %+v", c.Interaction)
	}
	if c.Interaction.ConnectModifier != "ctrl" || c.Interaction.PanButton != "middle" {
		t.Errorf("binding defaults = %+v", c.Interaction)
	}
	if c.Viewport.CullBuffer != 100 || c.Viewport.CellSize != 500 {
		t.Errorf("viewport defaults = %+v", c.Viewport)
	}
	if c.Session.Path == "" {
		t.Error("no default session path")
	}
}

func TestLoadFromPathAppliesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "atlas.yaml")
	raw := "version: 1\ninteraction:\n  snap_threshold: 40\n  connect_modifier: alt\n"
	if err := os.WriteFile(path, []byte(raw), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, from, err := LoadFromPath(path)
	if err != nil {
		t.Fatal(err)
	}
	if from != path {
		t.Errorf("loaded from %q", from)
	}
	if cfg.Interaction.SnapThreshold != 40 {
		t.Errorf("snap threshold = %g, want override 40", cfg.Interaction.SnapThreshold)
	}
	if cfg.Interaction.ClickThreshold != 3 {
		t.Errorf("click threshold = %g, want default 3", cfg.Interaction.ClickThreshold)
	}
	if cfg.Interaction.ConnectModifier != "alt" {
		t.Errorf("connect modifier = %q, want override alt", cfg.Interaction.ConnectModifier)
	}
	if cfg.Interaction.PanButton != "middle" {
		t.Errorf("pan button = %q, want default middle", cfg.Interaction.PanButton)
	}
}

func TestLoadFromPathRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "atlas.yaml")
	if err := os.WriteFile(path, []byte("interaction: ["), 0644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := LoadFromPath(path); err == nil {
		t.Error("malformed yaml accepted")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "atlas.yaml")

	c := DefaultConfig()
	c.Viewport.FitPadding = 64
	if err := c.Save(path); err != nil {
		t.Fatal(err)
	}

	got, _, err := LoadFromPath(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.Viewport.FitPadding != 64 {
		t.Errorf("fit padding = %g", got.Viewport.FitPadding)
	}
}

func TestFindConfigPathEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.yaml")
	if err := os.WriteFile(path, []byte("version: 1\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv(EnvConfigPath, path)
	if got := FindConfigPath(); got != path {
		t.Errorf("FindConfigPath = %q, want %q", got, path)
	}
}

func TestWatcherReloadsOnChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "atlas.yaml")
	if err := os.WriteFile(path, []byte("version: 1\n"), 0644); err != nil {
		t.Fatal(err)
	}

	reloaded := make(chan *Config, 1)
	w := NewWatcher(path, func(c *Config) {
		select {
		case reloaded <- c:
		default:
		}
	}).WithDebounce(20 * time.Millisecond)
	w.logf = func(string, ...any) {}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Watch(ctx) }()

	// Give the watcher a moment to register before writing.
	time.Sleep(100 * time.Millisecond)
	raw := "version: 1\ninteraction:\n  snap_threshold: 32\n"
	if err := os.WriteFile(path, []byte(raw), 0644); err != nil {
		t.Fatal(err)
	}

	select {
	case cfg := <-reloaded:
		if cfg.Interaction.SnapThreshold != 32 {
			t.Errorf("reloaded snap threshold = %g", cfg.Interaction.SnapThreshold)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no reload observed")
	}

	cancel()
	if err := <-done; err != context.Canceled {
		t.Errorf("Watch returned %v", err)
	}
}
