package git

import (
	"sort"
	"strings"
)

// MergeStatus is the classified result of a merge.
type MergeStatus int

const (
	// MergeStatusUnknown means git exited 0 but its output matched no known
	// phrasing. The merge succeeded; its shape is not known.
	MergeStatusUnknown MergeStatus = iota
	MergeFastForward
	MergeUpToDate
	MergeCommit
	MergeConflicts
	MergeFailed
)

func (m MergeStatus) String() string {
	switch m {
	case MergeFastForward:
		return "FastForward"
	case MergeUpToDate:
		return "UpToDate"
	case MergeCommit:
		return "MergeCommit"
	case MergeConflicts:
		return "Conflicts"
	case MergeFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// MarshalText renders the status by name in JSON output.
func (m MergeStatus) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// MergeOutcome is the structured form of a git merge invocation.
type MergeOutcome struct {
	Status           MergeStatus
	Success          bool
	ConflictingFiles []string
	ErrorMessage     string
}

// MergeClassifier turns the exit code and output of `git merge` into a
// MergeOutcome. It must not perform I/O.
type MergeClassifier interface {
	Classify(exitCode int, stdout, stderr string) MergeOutcome
}

// CLIMergeClassifier recognises the English output of the git CLI. The
// executor forces LC_ALL=C so that this phrasing is stable.
type CLIMergeClassifier struct{}

const conflictMarker = "Merge conflict in "

// Classify implements MergeClassifier.
func (CLIMergeClassifier) Classify(exitCode int, stdout, stderr string) MergeOutcome {
	if exitCode == 0 {
		out := MergeOutcome{Success: true}
		switch {
		case strings.Contains(stdout, "Fast-forward"):
			out.Status = MergeFastForward
		case strings.Contains(stdout, "Already up to date"), strings.Contains(stdout, "Already up-to-date"):
			out.Status = MergeUpToDate
		case strings.Contains(stdout, "Merge made by"):
			out.Status = MergeCommit
		default:
			out.Status = MergeStatusUnknown
		}
		return out
	}

	combined := stdout + "\n" + stderr
	if strings.Contains(combined, "CONFLICT") {
		return MergeOutcome{
			Status:           MergeConflicts,
			ConflictingFiles: parseConflictFiles(combined),
			ErrorMessage:     strings.TrimSpace(combined),
		}
	}

	msg := strings.TrimSpace(stderr)
	if msg == "" {
		msg = strings.TrimSpace(stdout)
	}
	return MergeOutcome{Status: MergeFailed, ErrorMessage: msg}
}

// parseConflictFiles extracts paths from "CONFLICT (content): Merge conflict in <path>" lines.
func parseConflictFiles(output string) []string {
	seen := make(map[string]bool)
	var files []string
	for _, line := range strings.Split(output, "\n") {
		_, path, ok := strings.Cut(line, conflictMarker)
		if !ok {
			continue
		}
		path = strings.TrimSpace(path)
		if path != "" && !seen[path] {
			seen[path] = true
			files = append(files, path)
		}
	}
	sort.Strings(files)
	return files
}
