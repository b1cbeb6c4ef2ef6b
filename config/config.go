// Package config loads settings for worktree management. A user-level
// worktrees.yaml in the user config directory supplies defaults for every
// repository, and .plural/worktrees.yaml at a repository root overrides
// them. Every key is optional and missing files yield the defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/zhubert/plural-worktrees/paths"
)

const (
	configDir      = ".plural"
	configFileName = "worktrees.yaml"

	// DefaultWorktreesDir is the repository-relative directory that holds
	// managed worktrees.
	DefaultWorktreesDir = ".worktrees"

	// MetadataFileName is the per-worktree metadata file written at the
	// root of each worktree directory.
	MetadataFileName = ".worktree-metadata.json"
)

// DefaultBranchCandidates is the preference order used to pick a
// repository's default branch before falling back to HEAD.
var DefaultBranchCandidates = []string{"main", "master", "develop"}

// Config is the per-repository worktree configuration.
type Config struct {
	WorktreesDir    string         `yaml:"worktrees_dir"`
	DefaultBranches []string       `yaml:"default_branches"`
	TreeDiff        TreeDiffConfig `yaml:"tree_diff"`
}

// TreeDiffConfig extends the cross-tree diff ignore lists. Entries are
// added to the built-in lists, never replace them.
type TreeDiffConfig struct {
	IgnoreDirs       []string `yaml:"ignore_dirs"`
	IgnoreExtensions []string `yaml:"ignore_extensions"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		WorktreesDir:    DefaultWorktreesDir,
		DefaultBranches: slices.Clone(DefaultBranchCandidates),
	}
}

// FilePath returns the location of the config file for repoPath.
func FilePath(repoPath string) string {
	return filepath.Join(repoPath, configDir, configFileName)
}

// UserFilePath returns the location of the user-level config file.
func UserFilePath() (string, error) {
	dir, err := paths.ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFileName), nil
}

// Load reads the user-level config and then .plural/worktrees.yaml from
// repoPath, each overlaying the keys it sets. A missing file is not an error.
func Load(repoPath string) (*Config, error) {
	cfg := Default()

	// No home directory means no user layer
	if userPath, err := UserFilePath(); err == nil {
		user, err := readFile(userPath)
		if err != nil {
			return nil, err
		}
		if user != nil {
			cfg = Merge(user, cfg)
		}
	}

	file, err := readFile(FilePath(repoPath))
	if err != nil {
		return nil, err
	}
	if file != nil {
		cfg = Merge(file, cfg)
	}

	if errs := Validate(cfg); len(errs) > 0 {
		msgs := make([]string, len(errs))
		for i, e := range errs {
			msgs[i] = e.Error()
		}
		return nil, fmt.Errorf("invalid worktree config for %s: %s", repoPath, strings.Join(msgs, "; "))
	}
	return cfg, nil
}

// readFile decodes one config file. It returns nil, nil when the file does
// not exist.
func readFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read worktree config: %w", err)
	}

	var file Config
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse worktree config %s: %w", path, err)
	}
	return &file, nil
}

// Merge overlays the keys set in partial onto defaults.
func Merge(partial, defaults *Config) *Config {
	out := *defaults
	out.DefaultBranches = slices.Clone(defaults.DefaultBranches)

	if partial.WorktreesDir != "" {
		out.WorktreesDir = filepath.Clean(partial.WorktreesDir)
	}
	if len(partial.DefaultBranches) > 0 {
		out.DefaultBranches = slices.Clone(partial.DefaultBranches)
	}
	out.TreeDiff.IgnoreDirs = append(slices.Clone(defaults.TreeDiff.IgnoreDirs), partial.TreeDiff.IgnoreDirs...)
	for _, ext := range partial.TreeDiff.IgnoreExtensions {
		ext = strings.ToLower(ext)
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		out.TreeDiff.IgnoreExtensions = append(out.TreeDiff.IgnoreExtensions, ext)
	}
	return &out
}

// ValidationError describes a single validation problem.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks a Config for errors and returns all problems found.
func Validate(cfg *Config) []ValidationError {
	var errs []ValidationError

	dir := cfg.WorktreesDir
	switch {
	case dir == "":
		errs = append(errs, ValidationError{Field: "worktrees_dir", Message: "must not be empty"})
	case filepath.IsAbs(dir):
		errs = append(errs, ValidationError{Field: "worktrees_dir", Message: fmt.Sprintf("%q must be relative to the repository root", dir)})
	case dir == "." || dir == ".." || strings.HasPrefix(dir, ".."+string(filepath.Separator)):
		errs = append(errs, ValidationError{Field: "worktrees_dir", Message: fmt.Sprintf("%q must stay inside the repository", dir)})
	}

	for i, b := range cfg.DefaultBranches {
		if strings.TrimSpace(b) == "" || strings.ContainsAny(b, " ~^:?*[\\") {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("default_branches[%d]", i),
				Message: fmt.Sprintf("%q is not a valid branch name", b),
			})
		}
	}

	for i, d := range cfg.TreeDiff.IgnoreDirs {
		if d == "" || strings.ContainsRune(d, '/') {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("tree_diff.ignore_dirs[%d]", i),
				Message: "must be a single directory name",
			})
		}
	}

	return errs
}
