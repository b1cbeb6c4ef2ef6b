package exec

import (
	"errors"
	"fmt"
	"strings"
)

// ErrRepositoryLocked matches (via errors.Is) a ProcessError whose stderr
// reports that git could not take a repository lock file. Callers surface it
// to the operator; nothing in this module retries.
var ErrRepositoryLocked = errors.New("repository is locked by another git process")

// ProcessError is returned when an external command exits non-zero or cannot
// be started. Stderr always holds the captured error stream.
type ProcessError struct {
	Name     string
	Args     []string
	Dir      string
	ExitCode int // -1 when the process never produced an exit status
	Stderr   string
	Err      error
}

func (e *ProcessError) Error() string {
	cmd := e.Name
	if len(e.Args) > 0 {
		cmd += " " + e.Args[0]
	}
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	return fmt.Sprintf("%s failed (exit %d): %s", cmd, e.ExitCode, msg)
}

func (e *ProcessError) Unwrap() error {
	return e.Err
}

// Is reports lock contention as ErrRepositoryLocked.
func (e *ProcessError) Is(target error) bool {
	return target == ErrRepositoryLocked && isLockMessage(e.Stderr)
}

// isLockMessage recognises git's "Unable to create '<path>.lock': File exists."
// and "another git process seems to be running" diagnostics.
func isLockMessage(stderr string) bool {
	s := strings.ToLower(stderr)
	if strings.Contains(s, "another git process seems to be running") {
		return true
	}
	return strings.Contains(s, ".lock'") && strings.Contains(s, "file exists")
}

// ExitCode extracts the exit status from an error returned by a CommandExecutor.
// It returns 0 for a nil error and -1 when no exit status is available.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var pe *ProcessError
	if errors.As(err, &pe) {
		return pe.ExitCode
	}
	return -1
}

// Stderr returns the captured stderr carried by err, or err's message when it
// is not a ProcessError.
func Stderr(err error) string {
	if err == nil {
		return ""
	}
	var pe *ProcessError
	if errors.As(err, &pe) {
		return pe.Stderr
	}
	return err.Error()
}
