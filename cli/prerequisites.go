// Package cli checks the external command-line tools the worktree manager
// depends on.
package cli

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	pexec "github.com/zhubert/plural-worktrees/exec"
)

// Prerequisite represents a CLI tool the application runs.
type Prerequisite struct {
	Name        string // Command name (e.g., "git")
	Required    bool   // Whether worktree operations fail without it
	Description string // Human-readable description
	InstallURL  string // URL for installation instructions
	MinVersion  string // Lowest supported version, empty for any
}

// DefaultPrerequisites returns the tools used by the worktree manager.
// git 2.17 is the first release with `git worktree remove`.
func DefaultPrerequisites() []Prerequisite {
	return []Prerequisite{
		{
			Name:        "git",
			Required:    true,
			Description: "Git version control",
			InstallURL:  "https://git-scm.com/downloads",
			MinVersion:  "2.17.0",
		},
		{
			Name:        "claude",
			Required:    false, // Only needed to attach agent sessions to worktrees
			Description: "Claude Code CLI (optional, for agent sessions)",
			InstallURL:  "https://claude.ai/code",
		},
	}
}

// CheckResult contains the result of checking a prerequisite.
type CheckResult struct {
	Prerequisite Prerequisite
	Found        bool
	Path         string // Path to the executable if found
	Version      string // First line of the version output, if available
	TooOld       bool   // Found, but older than MinVersion
	Error        error
}

// OK reports whether the tool is present and new enough.
func (r CheckResult) OK() bool {
	return r.Found && !r.TooOld
}

// Checker runs prerequisite checks. The executor is used for version probes.
type Checker struct {
	executor pexec.CommandExecutor
	lookPath func(string) (string, error)
}

// NewChecker creates a Checker that probes the real PATH.
func NewChecker() *Checker {
	return NewCheckerWithExecutor(pexec.NewRealExecutor())
}

// NewCheckerWithExecutor creates a Checker with a custom executor.
// This is primarily used for testing where a mock executor is needed.
func NewCheckerWithExecutor(exec pexec.CommandExecutor) *Checker {
	return &Checker{executor: exec, lookPath: lookPath}
}

func lookPath(name string) (string, error) {
	return exec.LookPath(name)
}

// Check verifies that a CLI tool is available in PATH and new enough.
func (c *Checker) Check(ctx context.Context, prereq Prerequisite) CheckResult {
	result := CheckResult{Prerequisite: prereq}

	path, err := c.lookPath(prereq.Name)
	if err != nil {
		result.Error = fmt.Errorf("%s not found in PATH", prereq.Name)
		return result
	}
	result.Found = true
	result.Path = path
	result.Version = c.version(ctx, prereq.Name)

	if prereq.MinVersion != "" && result.Version != "" {
		if have, ok := parseVersion(result.Version); ok {
			want, _ := parseVersion(prereq.MinVersion)
			if compareVersions(have, want) < 0 {
				result.TooOld = true
				result.Error = fmt.Errorf("%s %s is older than the required %s", prereq.Name, formatVersion(have), prereq.MinVersion)
			}
		}
	}
	return result
}

// CheckAll verifies all prerequisites and returns results.
func (c *Checker) CheckAll(ctx context.Context, prereqs []Prerequisite) []CheckResult {
	results := make([]CheckResult, len(prereqs))
	for i, prereq := range prereqs {
		results[i] = c.Check(ctx, prereq)
	}
	return results
}

// ValidateRequired returns an error describing every required tool that is
// missing or too old, or nil when all are usable.
func (c *Checker) ValidateRequired(ctx context.Context, prereqs []Prerequisite) error {
	var problems []string
	for _, prereq := range prereqs {
		if !prereq.Required {
			continue
		}
		result := c.Check(ctx, prereq)
		switch {
		case !result.Found:
			problems = append(problems, fmt.Sprintf("  - %s (%s)\n    Install: %s",
				prereq.Name, prereq.Description, prereq.InstallURL))
		case result.TooOld:
			problems = append(problems, fmt.Sprintf("  - %s: %v\n    Upgrade: %s",
				prereq.Name, result.Error, prereq.InstallURL))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("missing required CLI tools:\n%s", strings.Join(problems, "\n"))
	}
	return nil
}

// version returns the first line printed by `<name> --version`, limited in
// length, or "" when the tool does not answer.
func (c *Checker) version(ctx context.Context, name string) string {
	output, err := c.executor.Output(ctx, "", name, "--version")
	if err != nil {
		return ""
	}
	line, _, _ := strings.Cut(string(output), "\n")
	line = strings.TrimSpace(line)
	if len(line) > 100 {
		line = line[:100] + "..."
	}
	return line
}

var versionPattern = regexp.MustCompile(`(\d+)\.(\d+)(?:\.(\d+))?`)

// parseVersion extracts the first dotted version number from s, such as
// "git version 2.39.3 (Apple Git-146)".
func parseVersion(s string) ([3]int, bool) {
	var v [3]int
	m := versionPattern.FindStringSubmatch(s)
	if m == nil {
		return v, false
	}
	for i := 0; i < 3; i++ {
		if m[i+1] != "" {
			v[i], _ = strconv.Atoi(m[i+1])
		}
	}
	return v, true
}

func compareVersions(a, b [3]int) int {
	for i := range a {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

func formatVersion(v [3]int) string {
	return fmt.Sprintf("%d.%d.%d", v[0], v[1], v[2])
}

// FormatCheckResults formats check results for display.
func FormatCheckResults(results []CheckResult) string {
	var sb strings.Builder

	sb.WriteString("CLI Prerequisites:\n")
	for _, r := range results {
		status := "✓"
		if !r.OK() {
			if r.Prerequisite.Required {
				status = "✗"
			} else {
				status = "○"
			}
		}

		sb.WriteString(fmt.Sprintf("  %s %s", status, r.Prerequisite.Name))
		switch {
		case r.TooOld:
			sb.WriteString(fmt.Sprintf(" (%s) [needs %s]", r.Version, r.Prerequisite.MinVersion))
		case r.Found && r.Version != "":
			sb.WriteString(fmt.Sprintf(" (%s)", r.Version))
		case !r.Found && r.Prerequisite.Required:
			sb.WriteString(" [REQUIRED]")
		case !r.Found:
			sb.WriteString(" [optional]")
		}
		sb.WriteString("\n")
	}

	return sb.String()
}
