package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/zhubert/plural-worktrees/git"
	"github.com/zhubert/plural-worktrees/linediff"
	"github.com/zhubert/plural-worktrees/worktree"
)

var (
	greenStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	redStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	yellowStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	cyanStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	boldStyle   = lipgloss.NewStyle().Bold(true)
)

// statusStyle picks the badge color for a worktree status.
func statusStyle(s worktree.WorktreeStatus) lipgloss.Style {
	switch s {
	case worktree.StatusHasChanges:
		return yellowStyle
	case worktree.StatusReadyToMerge:
		return greenStyle
	case worktree.StatusMerged:
		return cyanStyle
	case worktree.StatusLocked:
		return redStyle
	default:
		return dimStyle
	}
}

func renderStatus(s worktree.WorktreeStatus) string {
	return statusStyle(s).Render(s.String())
}

// renderWorktreeTable renders one row per worktree.
func renderWorktreeTable(list []*worktree.WorktreeInfo) string {
	rows := make([][]string, 0, len(list))
	for _, w := range list {
		ahead := ""
		if w.CommitsAhead > 0 {
			ahead = fmt.Sprintf("%d", w.CommitsAhead)
		}
		rows = append(rows, []string{
			w.ID,
			renderStatus(w.Status),
			ahead,
			w.BranchName,
			truncate(w.DisplayName(), 48),
		})
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(dimStyle).
		Headers("ID", "STATUS", "AHEAD", "BRANCH", "TASK").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			style := lipgloss.NewStyle().Padding(0, 1)
			if row == table.HeaderRow {
				return style.Bold(true)
			}
			return style
		})
	return t.String()
}

// renderWorktreeDetails renders the key/value view of one worktree.
func renderWorktreeDetails(w *worktree.WorktreeInfo) string {
	type field struct{ key, value string }
	fields := []field{
		{"ID", w.ID},
		{"Task", w.TaskDescription},
		{"Title", w.Title},
		{"Status", renderStatus(w.Status)},
		{"Branch", w.BranchName},
		{"Base", w.BaseBranch},
		{"Path", w.Path},
		{"Created", formatTime(w.CreatedAt)},
		{"Ahead", fmt.Sprintf("%d", w.CommitsAhead)},
		{"Unpushed", fmt.Sprintf("%d", w.UnpushedCommits)},
		{"Changes", fmt.Sprintf("%t", w.HasUncommittedChanges)},
		{"Session", w.ClaudeSessionID},
		{"Lock", w.LockReason},
	}
	if w.WasJob {
		fields = append(fields, field{"Job", fmt.Sprintf("iteration %d of %d", w.LastIteration, w.JobMaxIterations)})
	}

	width := 0
	for _, f := range fields {
		width = max(width, len(f.key))
	}
	keyStyle := boldStyle.Width(width + 2)

	var b strings.Builder
	for _, f := range fields {
		if f.value == "" {
			continue
		}
		b.WriteString(keyStyle.Render(f.key))
		b.WriteString(f.value)
		b.WriteByte('\n')
	}
	return b.String()
}

// renderDiffEntries renders a one-line summary per changed file.
func renderDiffEntries(entries []git.DiffEntry) string {
	if len(entries) == 0 {
		return dimStyle.Render("no differences") + "\n"
	}

	var b strings.Builder
	added, deleted := 0, 0
	for _, e := range entries {
		code := e.ChangeType.Code()
		switch e.ChangeType {
		case git.ChangeAdded:
			code = greenStyle.Render(code)
		case git.ChangeDeleted:
			code = redStyle.Render(code)
		default:
			code = yellowStyle.Render(code)
		}
		name := e.FilePath
		if e.OldPath != "" {
			name = e.OldPath + " -> " + e.FilePath
		}
		fmt.Fprintf(&b, "%s %s %s %s\n", code, name,
			greenStyle.Render(fmt.Sprintf("+%d", e.LinesAdded)),
			redStyle.Render(fmt.Sprintf("-%d", e.LinesDeleted)))
		added += e.LinesAdded
		deleted += e.LinesDeleted
	}
	fmt.Fprintf(&b, "%s\n", dimStyle.Render(fmt.Sprintf("%d files changed, %d insertions(+), %d deletions(-)", len(entries), added, deleted)))
	return b.String()
}

// writeFileDiff writes a colored rendering of d.
func writeFileDiff(w io.Writer, d *linediff.FileDiff) {
	for _, h := range d.Header() {
		fmt.Fprintln(w, boldStyle.Render(h))
	}
	for _, l := range d.Lines {
		text := l.Kind.Prefix() + l.Text
		switch l.Kind {
		case linediff.Added:
			text = greenStyle.Render(text)
		case linediff.Deleted:
			text = redStyle.Render(text)
		}
		fmt.Fprintln(w, text)
	}
}

func renderMergeResult(r *worktree.MergeResult) string {
	var b strings.Builder
	if r.Success {
		fmt.Fprintf(&b, "%s %s into %s (%s)\n", greenStyle.Render("Merged"), r.SourceBranch, r.TargetBranch, r.Status)
		return b.String()
	}
	fmt.Fprintf(&b, "%s merging %s into %s (%s)\n", redStyle.Render("Failed"), r.SourceBranch, r.TargetBranch, r.Status)
	for _, f := range r.ConflictingFiles {
		fmt.Fprintf(&b, "  %s %s\n", redStyle.Render("conflict:"), f)
	}
	if len(r.ConflictingFiles) == 0 && r.ErrorMessage != "" {
		fmt.Fprintf(&b, "  %s\n", r.ErrorMessage)
	}
	return b.String()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
