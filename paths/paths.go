// Package paths resolves the per-user directories used by plural-worktrees.
//
// Worktrees themselves live inside each repository (see the config package);
// only user-level state is resolved here:
//
//   - Config (XDG_CONFIG_HOME): worktrees.yaml with user-level defaults
//   - State (XDG_STATE_HOME): logs/, transient log files
//
// Resolution order:
//  1. If ~/.plural-worktrees/ exists → flat layout (all paths under it)
//  2. If XDG env vars are set → XDG layout with proper separation
//  3. Otherwise → ~/.plural-worktrees/
package paths

import (
	"os"
	"path/filepath"
	"sync"
)

const appDirName = "plural-worktrees"

var (
	mu       sync.Mutex
	resolved *resolvedPaths
)

type resolvedPaths struct {
	configDir string
	stateDir  string
	flat      bool
}

// resolve computes the path layout once and caches it.
func resolve() (*resolvedPaths, error) {
	mu.Lock()
	defer mu.Unlock()

	if resolved != nil {
		return resolved, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	flatDir := filepath.Join(home, "."+appDirName)
	if info, err := os.Stat(flatDir); err == nil && info.IsDir() {
		resolved = &resolvedPaths{configDir: flatDir, stateDir: flatDir, flat: true}
		return resolved, nil
	}

	xdgConfig := os.Getenv("XDG_CONFIG_HOME")
	xdgState := os.Getenv("XDG_STATE_HOME")
	if xdgConfig != "" || xdgState != "" {
		if xdgConfig == "" {
			xdgConfig = filepath.Join(home, ".config")
		}
		if xdgState == "" {
			xdgState = filepath.Join(home, ".local", "state")
		}
		resolved = &resolvedPaths{
			configDir: filepath.Join(xdgConfig, appDirName),
			stateDir:  filepath.Join(xdgState, appDirName),
		}
		return resolved, nil
	}

	resolved = &resolvedPaths{configDir: flatDir, stateDir: flatDir, flat: true}
	return resolved, nil
}

// ConfigDir returns the directory for user-level configuration.
func ConfigDir() (string, error) {
	r, err := resolve()
	if err != nil {
		return "", err
	}
	return r.configDir, nil
}

// StateDir returns the directory for runtime state and logs.
func StateDir() (string, error) {
	r, err := resolve()
	if err != nil {
		return "", err
	}
	return r.stateDir, nil
}

// LogsDir returns the directory for log files.
func LogsDir() (string, error) {
	dir, err := StateDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "logs"), nil
}

// IsFlatLayout returns true if everything lives under ~/.plural-worktrees/.
func IsFlatLayout() bool {
	r, err := resolve()
	if err != nil {
		return true
	}
	return r.flat
}

// Reset clears the cached path resolution. This is intended for testing only.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	resolved = nil
}
