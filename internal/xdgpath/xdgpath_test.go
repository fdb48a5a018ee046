package xdgpath

import (
	"os"
	"path/filepath"
	"testing"
)

func TestStatePath(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_STATE_HOME", dir)

	path, err := StatePath("listener.log")
	if err != nil {
		t.Fatalf("StatePath failed: %v", err)
	}
	if want := filepath.Join(dir, "clin", "listener.log"); path != want {
		t.Errorf("expected %s, got %s", want, path)
	}
	if info, err := os.Stat(filepath.Dir(path)); err != nil || !info.IsDir() {
		t.Errorf("expected state directory to be created, got %v", err)
	}
}

func TestConfigPath(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	path, err := ConfigPath("config.toml")
	if err != nil {
		t.Fatalf("ConfigPath failed: %v", err)
	}
	if want := filepath.Join(dir, "clin", "config.toml"); path != want {
		t.Errorf("expected %s, got %s", want, path)
	}
}

func TestConfigPathFallsBackToHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("HOME", home)

	path, err := ConfigPath("config.toml")
	if err != nil {
		t.Fatalf("ConfigPath failed: %v", err)
	}
	if want := filepath.Join(home, ".config", "clin", "config.toml"); path != want {
		t.Errorf("expected %s, got %s", want, path)
	}
}
