package git

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/zhubert/plural-worktrees/logger"
)

// EnsureGitIgnoreEntry appends entry to the repository's .gitignore unless an
// equivalent line is already present. Comparison ignores case and a trailing
// slash. An entry without a file extension is treated as a directory and
// written with a trailing slash. Existing lines are never rewritten or
// reordered. It reports whether the file was changed.
func (s *GitService) EnsureGitIgnoreEntry(ctx context.Context, repoPath, entry string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	entry = strings.TrimSpace(entry)
	if entry == "" {
		return false, fmt.Errorf("empty .gitignore entry")
	}
	if filepath.Ext(strings.TrimSuffix(entry, "/")) == "" && !strings.HasSuffix(entry, "/") {
		entry += "/"
	}

	path := filepath.Join(repoPath, ".gitignore")
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return false, fmt.Errorf("failed to read .gitignore: %w", err)
	}

	if hasIgnoreLine(string(data), entry) {
		return false, nil
	}

	var b strings.Builder
	if len(data) > 0 && !strings.HasSuffix(string(data), "\n") {
		b.WriteString("\n")
	}
	b.WriteString(entry)
	b.WriteString("\n")

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return false, fmt.Errorf("failed to open .gitignore: %w", err)
	}
	if _, err := f.WriteString(b.String()); err != nil {
		f.Close()
		return false, fmt.Errorf("failed to append to .gitignore: %w", err)
	}
	if err := f.Close(); err != nil {
		return false, fmt.Errorf("failed to append to .gitignore: %w", err)
	}

	logger.WithComponent("git").Info("added .gitignore entry", "entry", entry, "repoPath", repoPath)
	return true, nil
}

// hasIgnoreLine reports whether content already has a line equivalent to entry.
func hasIgnoreLine(content, entry string) bool {
	want := normalizeIgnoreLine(entry)
	for _, line := range strings.Split(content, "\n") {
		if normalizeIgnoreLine(line) == want {
			return true
		}
	}
	return false
}

func normalizeIgnoreLine(line string) string {
	return strings.ToLower(strings.TrimSuffix(strings.TrimSpace(line), "/"))
}
