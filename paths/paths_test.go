package paths

import (
	"os"
	"path/filepath"
	"testing"
)

// setupTestHome points HOME at a temp directory and resets the path cache.
func setupTestHome(t *testing.T) string {
	t.Helper()
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)
	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("XDG_STATE_HOME", "")
	Reset()
	t.Cleanup(Reset)
	return tmpDir
}

func TestFreshInstallNoXDG(t *testing.T) {
	home := setupTestHome(t)
	expected := filepath.Join(home, ".plural-worktrees")

	configDir, err := ConfigDir()
	if err != nil {
		t.Fatalf("ConfigDir: %v", err)
	}
	if configDir != expected {
		t.Errorf("ConfigDir = %q, want %q", configDir, expected)
	}

	stateDir, err := StateDir()
	if err != nil {
		t.Fatalf("StateDir: %v", err)
	}
	if stateDir != expected {
		t.Errorf("StateDir = %q, want %q", stateDir, expected)
	}

	if !IsFlatLayout() {
		t.Error("IsFlatLayout should be true without XDG vars")
	}
}

func TestXDGLayout(t *testing.T) {
	home := setupTestHome(t)
	t.Setenv("XDG_STATE_HOME", filepath.Join(home, "state"))
	Reset()

	stateDir, err := StateDir()
	if err != nil {
		t.Fatalf("StateDir: %v", err)
	}
	if want := filepath.Join(home, "state", "plural-worktrees"); stateDir != want {
		t.Errorf("StateDir = %q, want %q", stateDir, want)
	}

	configDir, err := ConfigDir()
	if err != nil {
		t.Fatalf("ConfigDir: %v", err)
	}
	if want := filepath.Join(home, ".config", "plural-worktrees"); configDir != want {
		t.Errorf("ConfigDir = %q, want %q", configDir, want)
	}

	if IsFlatLayout() {
		t.Error("IsFlatLayout should be false with XDG vars set")
	}
}

func TestFlatDirWinsOverXDG(t *testing.T) {
	home := setupTestHome(t)
	flat := filepath.Join(home, ".plural-worktrees")
	if err := os.MkdirAll(flat, 0755); err != nil {
		t.Fatal(err)
	}
	t.Setenv("XDG_STATE_HOME", filepath.Join(home, "state"))
	Reset()

	logs, err := LogsDir()
	if err != nil {
		t.Fatalf("LogsDir: %v", err)
	}
	if want := filepath.Join(flat, "logs"); logs != want {
		t.Errorf("LogsDir = %q, want %q", logs, want)
	}
}
