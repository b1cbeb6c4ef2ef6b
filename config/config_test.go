package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/zhubert/plural-worktrees/paths"
)

func writeConfig(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Join(dir, ".plural"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(FilePath(dir), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// isolateHome points the user config directory at an empty temp dir and
// returns it.
func isolateHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, "config"))
	t.Setenv("XDG_STATE_HOME", "")
	paths.Reset()
	t.Cleanup(paths.Reset)
	dir, err := paths.ConfigDir()
	if err != nil {
		t.Fatal(err)
	}
	return dir
}

func writeUserConfig(t *testing.T, content string) {
	t.Helper()
	isolateHome(t)
	path, err := UserFilePath()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoad_FileNotExists(t *testing.T) {
	isolateHome(t)
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("expected nil error for missing file, got: %v", err)
	}
	if cfg.WorktreesDir != DefaultWorktreesDir {
		t.Errorf("WorktreesDir: got %q, want %q", cfg.WorktreesDir, DefaultWorktreesDir)
	}
	if strings.Join(cfg.DefaultBranches, ",") != "main,master,develop" {
		t.Errorf("DefaultBranches: got %v", cfg.DefaultBranches)
	}
}

func TestLoad_ValidFile(t *testing.T) {
	isolateHome(t)
	dir := t.TempDir()
	writeConfig(t, dir, `
worktrees_dir: agents/
default_branches: [trunk, main]
tree_diff:
  ignore_dirs: [vendor]
  ignore_extensions: [lock, .SQLITE]
`)

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.WorktreesDir != "agents" {
		t.Errorf("WorktreesDir: got %q, want agents", cfg.WorktreesDir)
	}
	if cfg.DefaultBranches[0] != "trunk" {
		t.Errorf("DefaultBranches: got %v", cfg.DefaultBranches)
	}
	if len(cfg.TreeDiff.IgnoreDirs) != 1 || cfg.TreeDiff.IgnoreDirs[0] != "vendor" {
		t.Errorf("IgnoreDirs: got %v", cfg.TreeDiff.IgnoreDirs)
	}
	want := []string{".lock", ".sqlite"}
	if strings.Join(cfg.TreeDiff.IgnoreExtensions, ",") != strings.Join(want, ",") {
		t.Errorf("IgnoreExtensions: got %v, want %v", cfg.TreeDiff.IgnoreExtensions, want)
	}
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	isolateHome(t)
	dir := t.TempDir()
	writeConfig(t, dir, "tree_diff:\n  ignore_dirs: [coverage]\n")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.WorktreesDir != DefaultWorktreesDir {
		t.Errorf("WorktreesDir: got %q", cfg.WorktreesDir)
	}
	if len(cfg.DefaultBranches) != 3 {
		t.Errorf("DefaultBranches: got %v", cfg.DefaultBranches)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	isolateHome(t)
	dir := t.TempDir()
	writeConfig(t, dir, "worktrees_dir: [unterminated\n")

	if _, err := Load(dir); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoad_RejectsEscapingDir(t *testing.T) {
	isolateHome(t)
	dir := t.TempDir()
	writeConfig(t, dir, "worktrees_dir: ../elsewhere\n")

	_, err := Load(dir)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "worktrees_dir") {
		t.Errorf("error should name the field: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{"defaults", *Default(), ""},
		{"absolute dir", Config{WorktreesDir: "/tmp/wt"}, "worktrees_dir"},
		{"dot dir", Config{WorktreesDir: "."}, "worktrees_dir"},
		{"bad branch", Config{WorktreesDir: ".worktrees", DefaultBranches: []string{"has space"}}, "default_branches[0]"},
		{"nested ignore", Config{WorktreesDir: ".worktrees", TreeDiff: TreeDiffConfig{IgnoreDirs: []string{"a/b"}}}, "tree_diff.ignore_dirs[0]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := Validate(&tt.cfg)
			if tt.wantErr == "" {
				if len(errs) != 0 {
					t.Errorf("expected no errors, got %v", errs)
				}
				return
			}
			found := false
			for _, e := range errs {
				if e.Field == tt.wantErr {
					found = true
				}
			}
			if !found {
				t.Errorf("expected error on %s, got %v", tt.wantErr, errs)
			}
		})
	}
}

func TestMerge_DoesNotAliasDefaults(t *testing.T) {
	defaults := Default()
	out := Merge(&Config{}, defaults)
	out.DefaultBranches[0] = "changed"

	if defaults.DefaultBranches[0] != "main" {
		t.Error("Merge must copy DefaultBranches")
	}
	if DefaultBranchCandidates[0] != "main" {
		t.Error("Default must copy DefaultBranchCandidates")
	}
}

func TestLoad_UserConfigProvidesDefaults(t *testing.T) {
	writeUserConfig(t, "default_branches: [trunk]\ntree_diff:\n  ignore_dirs: [tmp]\n")

	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Join(cfg.DefaultBranches, ",") != "trunk" {
		t.Errorf("DefaultBranches: got %v", cfg.DefaultBranches)
	}
	if strings.Join(cfg.TreeDiff.IgnoreDirs, ",") != "tmp" {
		t.Errorf("IgnoreDirs: got %v", cfg.TreeDiff.IgnoreDirs)
	}
}

func TestLoad_RepositoryOverridesUserConfig(t *testing.T) {
	writeUserConfig(t, "worktrees_dir: .agents\ndefault_branches: [trunk]\ntree_diff:\n  ignore_dirs: [tmp]\n")
	dir := t.TempDir()
	writeConfig(t, dir, "default_branches: [main]\ntree_diff:\n  ignore_dirs: [vendor]\n")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.WorktreesDir != ".agents" {
		t.Errorf("WorktreesDir: got %q, want the user setting", cfg.WorktreesDir)
	}
	if strings.Join(cfg.DefaultBranches, ",") != "main" {
		t.Errorf("DefaultBranches: got %v", cfg.DefaultBranches)
	}
	if strings.Join(cfg.TreeDiff.IgnoreDirs, ",") != "tmp,vendor" {
		t.Errorf("IgnoreDirs: got %v, want both layers", cfg.TreeDiff.IgnoreDirs)
	}
}

func TestLoad_InvalidUserConfig(t *testing.T) {
	writeUserConfig(t, "worktrees_dir: /abs\n")

	if _, err := Load(t.TempDir()); err == nil || !strings.Contains(err.Error(), "worktrees_dir") {
		t.Errorf("expected worktrees_dir error, got %v", err)
	}
}
