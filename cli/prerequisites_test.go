package cli

import (
	"context"
	"errors"
	"strings"
	"testing"

	pexec "github.com/zhubert/plural-worktrees/exec"
)

var ctx = context.Background()

// fakeChecker resolves only the named tools and answers version probes from
// the mock executor.
func fakeChecker(mock *pexec.MockExecutor, present ...string) *Checker {
	c := NewCheckerWithExecutor(mock)
	c.lookPath = func(name string) (string, error) {
		for _, p := range present {
			if p == name {
				return "/usr/bin/" + name, nil
			}
		}
		return "", errors.New("not found")
	}
	return c
}

func versionMock(name, output string) *pexec.MockExecutor {
	mock := pexec.NewMockExecutor(nil)
	mock.AddExactMatch(name, []string{"--version"}, pexec.MockResponse{Stdout: []byte(output)})
	return mock
}

func TestDefaultPrerequisites(t *testing.T) {
	prereqs := DefaultPrerequisites()

	byName := map[string]Prerequisite{}
	for _, p := range prereqs {
		byName[p.Name] = p
	}
	git, ok := byName["git"]
	if !ok || !git.Required || git.MinVersion == "" {
		t.Errorf("git should be required with a minimum version: %+v", git)
	}
	if claude, ok := byName["claude"]; !ok || claude.Required {
		t.Errorf("claude should be listed as optional: %+v", claude)
	}
}

func TestCheck_Found(t *testing.T) {
	c := fakeChecker(versionMock("git", "git version 2.43.0\n"), "git")

	result := c.Check(ctx, Prerequisite{Name: "git", Required: true, MinVersion: "2.17.0"})
	if !result.OK() || result.Path != "/usr/bin/git" || result.Error != nil {
		t.Errorf("result = %+v", result)
	}
	if result.Version != "git version 2.43.0" {
		t.Errorf("Version = %q", result.Version)
	}
}

func TestCheck_TooOld(t *testing.T) {
	c := fakeChecker(versionMock("git", "git version 2.7.4\n"), "git")

	result := c.Check(ctx, Prerequisite{Name: "git", Required: true, MinVersion: "2.17.0"})
	if !result.Found || !result.TooOld || result.OK() {
		t.Errorf("result = %+v", result)
	}
	if result.Error == nil || !strings.Contains(result.Error.Error(), "2.7.4") {
		t.Errorf("Error = %v", result.Error)
	}
}

func TestCheck_UnparseableVersionIsAccepted(t *testing.T) {
	c := fakeChecker(versionMock("git", "weird build\n"), "git")

	result := c.Check(ctx, Prerequisite{Name: "git", MinVersion: "2.17.0"})
	if !result.OK() {
		t.Errorf("unknown version should not be rejected: %+v", result)
	}
}

func TestCheck_NotFound(t *testing.T) {
	c := fakeChecker(pexec.NewMockExecutor(nil))

	result := c.Check(ctx, Prerequisite{Name: "definitely-not-a-real-command-12345", Required: true})
	if result.Found || result.Path != "" || result.Error == nil {
		t.Errorf("result = %+v", result)
	}
}

func TestCheck_RealPath(t *testing.T) {
	result := NewChecker().Check(ctx, Prerequisite{Name: "sh"})
	if !result.Found {
		t.Skip("sh not found in PATH, skipping test")
	}
	if result.Path == "" {
		t.Error("Check should return path for found command")
	}
}

func TestCheckAll(t *testing.T) {
	c := fakeChecker(versionMock("git", "git version 2.40.1"), "git")
	results := c.CheckAll(ctx, DefaultPrerequisites())

	if len(results) != 2 {
		t.Fatalf("CheckAll returned %d results", len(results))
	}
	if !results[0].OK() {
		t.Errorf("git should pass: %+v", results[0])
	}
	if results[1].Found {
		t.Error("claude should not be found")
	}
}

func TestValidateRequired(t *testing.T) {
	prereqs := []Prerequisite{
		{Name: "git", Required: true, Description: "Git", InstallURL: "https://git-scm.com", MinVersion: "2.17.0"},
		{Name: "claude", Required: false, Description: "Claude"},
	}

	ok := fakeChecker(versionMock("git", "git version 2.45.2"), "git")
	if err := ok.ValidateRequired(ctx, prereqs); err != nil {
		t.Errorf("optional missing tool should not fail validation: %v", err)
	}

	missing := fakeChecker(pexec.NewMockExecutor(nil))
	err := missing.ValidateRequired(ctx, prereqs)
	if err == nil || !strings.Contains(err.Error(), "git") || strings.Contains(err.Error(), "claude") {
		t.Errorf("err = %v", err)
	}

	old := fakeChecker(versionMock("git", "git version 2.1.0"), "git")
	err = old.ValidateRequired(ctx, prereqs)
	if err == nil || !strings.Contains(err.Error(), "Upgrade") {
		t.Errorf("too-old git: err = %v", err)
	}
}

func TestParseVersion(t *testing.T) {
	tests := []struct {
		input string
		want  [3]int
		ok    bool
	}{
		{"git version 2.39.3 (Apple Git-146)", [3]int{2, 39, 3}, true},
		{"git version 2.45.windows.1", [3]int{2, 45, 0}, true},
		{"1.0.24 (Claude Code)", [3]int{1, 0, 24}, true},
		{"no digits", [3]int{}, false},
	}
	for _, tt := range tests {
		got, ok := parseVersion(tt.input)
		if got != tt.want || ok != tt.ok {
			t.Errorf("parseVersion(%q) = %v, %v; want %v, %v", tt.input, got, ok, tt.want, tt.ok)
		}
	}

	if compareVersions([3]int{2, 17, 0}, [3]int{2, 9, 9}) <= 0 {
		t.Error("2.17.0 should be newer than 2.9.9")
	}
}

func TestFormatCheckResults(t *testing.T) {
	results := []CheckResult{
		{
			Prerequisite: Prerequisite{Name: "found-cmd", Required: true},
			Found:        true,
			Version:      "1.0.0",
		},
		{
			Prerequisite: Prerequisite{Name: "old-cmd", Required: true, MinVersion: "3.0.0"},
			Found:        true,
			TooOld:       true,
			Version:      "2.0.0",
		},
		{
			Prerequisite: Prerequisite{Name: "missing-required", Required: true},
		},
		{
			Prerequisite: Prerequisite{Name: "missing-optional"},
		},
	}

	output := FormatCheckResults(results)

	for _, want := range []string{"CLI Prerequisites", "✓ found-cmd (1.0.0)", "✗ old-cmd (2.0.0) [needs 3.0.0]", "✗ missing-required [REQUIRED]", "○ missing-optional [optional]"} {
		if !strings.Contains(output, want) {
			t.Errorf("output missing %q:\n%s", want, output)
		}
	}
}

func TestFormatCheckResults_Empty(t *testing.T) {
	if output := FormatCheckResults(nil); !strings.Contains(output, "CLI Prerequisites") {
		t.Error("Empty results should still contain header")
	}
}
