// Package linediff renders a line-level diff of one file between two
// versions using a longest-common-subsequence alignment.
package linediff

import (
	"strings"
)

// LineKind classifies a diff line.
type LineKind int

const (
	Unchanged LineKind = iota
	Added
	Deleted
)

func (k LineKind) String() string {
	switch k {
	case Added:
		return "Added"
	case Deleted:
		return "Deleted"
	default:
		return "Unchanged"
	}
}

// MarshalText renders the kind by name in JSON output.
func (k LineKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Prefix returns the unified-diff marker for the kind.
func (k LineKind) Prefix() string {
	switch k {
	case Added:
		return "+"
	case Deleted:
		return "-"
	default:
		return " "
	}
}

// Line is one line of diff output. OldLine and NewLine are 1-based; zero
// means the line does not exist on that side.
type Line struct {
	Kind    LineKind `json:"kind"`
	Text    string   `json:"text"`
	OldLine int      `json:"oldLine,omitempty"`
	NewLine int      `json:"newLine,omitempty"`
}

// Diff aligns oldLines and newLines and returns every line of both in
// order: matched lines as Unchanged, old-only lines as Deleted, new-only
// lines as Added. Deletions are emitted before additions within a gap.
func Diff(oldLines, newLines []string) []Line {
	out := make([]Line, 0, max(len(oldLines), len(newLines)))
	oldNum, newNum := 1, 1
	i, j := 0, 0

	for _, m := range matches(oldLines, newLines) {
		for ; i < m[0]; i++ {
			out = append(out, Line{Kind: Deleted, Text: oldLines[i], OldLine: oldNum})
			oldNum++
		}
		for ; j < m[1]; j++ {
			out = append(out, Line{Kind: Added, Text: newLines[j], NewLine: newNum})
			newNum++
		}
		out = append(out, Line{Kind: Unchanged, Text: oldLines[i], OldLine: oldNum, NewLine: newNum})
		oldNum++
		newNum++
		i++
		j++
	}
	for ; i < len(oldLines); i++ {
		out = append(out, Line{Kind: Deleted, Text: oldLines[i], OldLine: oldNum})
		oldNum++
	}
	for ; j < len(newLines); j++ {
		out = append(out, Line{Kind: Added, Text: newLines[j], NewLine: newNum})
		newNum++
	}
	return out
}

// matches returns the index pairs (oldIdx, newIdx) of one longest common
// subsequence, in increasing order.
//
// lcs[i*(n+1)+j] holds the LCS length of a[i:] and b[j:], so the walk from
// (0,0) yields pairs front to back without reversing.
func matches(a, b []string) [][2]int {
	m, n := len(a), len(b)
	if m == 0 || n == 0 {
		return nil
	}

	w := n + 1
	lcs := make([]int, (m+1)*w)
	for i := m - 1; i >= 0; i-- {
		for j := n - 1; j >= 0; j-- {
			if a[i] == b[j] {
				lcs[i*w+j] = lcs[(i+1)*w+j+1] + 1
			} else {
				lcs[i*w+j] = max(lcs[(i+1)*w+j], lcs[i*w+j+1])
			}
		}
	}

	pairs := make([][2]int, 0, lcs[0])
	i, j := 0, 0
	for i < m && j < n {
		switch {
		case a[i] == b[j]:
			pairs = append(pairs, [2]int{i, j})
			i++
			j++
		case lcs[(i+1)*w+j] >= lcs[i*w+j+1]:
			i++
		default:
			j++
		}
	}
	return pairs
}

// FileDiff is a rendered diff of one file.
type FileDiff struct {
	OldLabel string `json:"oldLabel"`
	NewLabel string `json:"newLabel"`
	Lines    []Line `json:"lines"`
}

// Compute splits both texts into lines and diffs them.
func Compute(oldLabel, newLabel, oldText, newText string) *FileDiff {
	return &FileDiff{
		OldLabel: oldLabel,
		NewLabel: newLabel,
		Lines:    Diff(SplitLines(oldText), SplitLines(newText)),
	}
}

// Header returns the two header lines naming the old and new sources.
func (d *FileDiff) Header() []string {
	return []string{"--- " + d.OldLabel, "+++ " + d.NewLabel}
}

// Stats counts added and deleted lines.
func (d *FileDiff) Stats() (added, deleted int) {
	for _, l := range d.Lines {
		switch l.Kind {
		case Added:
			added++
		case Deleted:
			deleted++
		}
	}
	return added, deleted
}

// HasChanges reports whether any line was added or deleted.
func (d *FileDiff) HasChanges() bool {
	a, del := d.Stats()
	return a+del > 0
}

// String renders the header followed by one marker-prefixed line per entry.
func (d *FileDiff) String() string {
	var b strings.Builder
	for _, h := range d.Header() {
		b.WriteString(h)
		b.WriteByte('\n')
	}
	for _, l := range d.Lines {
		b.WriteString(l.Kind.Prefix())
		b.WriteString(l.Text)
		b.WriteByte('\n')
	}
	return b.String()
}

// SplitLines splits text on \n or \r\n. A trailing newline does not produce
// an extra empty line, and empty text yields no lines.
func SplitLines(text string) []string {
	if text == "" {
		return nil
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.TrimSuffix(text, "\n")
	return strings.Split(text, "\n")
}
