package linediff

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiff_IdenticalIsAllUnchanged(t *testing.T) {
	lines := []string{"a", "b", "c", "b", "a"}
	got := Diff(lines, append([]string(nil), lines...))

	require.Len(t, got, len(lines))
	for i, l := range got {
		assert.Equal(t, Unchanged, l.Kind, "line %d", i)
		assert.Equal(t, i+1, l.OldLine)
		assert.Equal(t, l.OldLine, l.NewLine, "old/new numbers must match at %d", i)
		assert.Equal(t, lines[i], l.Text)
	}
}

func TestDiff_EmptyOldIsAllAdded(t *testing.T) {
	newLines := []string{"one", "two", "three", "four"}
	got := Diff(nil, newLines)

	require.Len(t, got, 4)
	for i, l := range got {
		assert.Equal(t, Added, l.Kind)
		assert.Equal(t, 0, l.OldLine)
		assert.Equal(t, i+1, l.NewLine)
	}
}

func TestDiff_EmptyNewIsAllDeleted(t *testing.T) {
	got := Diff([]string{"x", "y"}, nil)

	require.Len(t, got, 2)
	assert.Equal(t, Line{Kind: Deleted, Text: "x", OldLine: 1}, got[0])
	assert.Equal(t, Line{Kind: Deleted, Text: "y", OldLine: 2}, got[1])
}

func TestDiff_BothEmpty(t *testing.T) {
	assert.Empty(t, Diff(nil, nil))
}

func TestDiff_Replacement(t *testing.T) {
	got := Diff(
		[]string{"package main", "func a() {}", "func b() {}"},
		[]string{"package main", "func a2() {}", "func b() {}", "func c() {}"},
	)

	want := []Line{
		{Kind: Unchanged, Text: "package main", OldLine: 1, NewLine: 1},
		{Kind: Deleted, Text: "func a() {}", OldLine: 2},
		{Kind: Added, Text: "func a2() {}", NewLine: 2},
		{Kind: Unchanged, Text: "func b() {}", OldLine: 3, NewLine: 3},
		{Kind: Added, Text: "func c() {}", NewLine: 4},
	}
	assert.Equal(t, want, got)
}

func TestDiff_CountersAdvanceIndependently(t *testing.T) {
	oldLines := []string{"a", "b", "c", "d", "e"}
	newLines := []string{"x", "a", "c", "y", "z", "e"}
	got := Diff(oldLines, newLines)

	var oldSeen, newSeen []string
	lastOld, lastNew := 0, 0
	for _, l := range got {
		if l.OldLine != 0 {
			assert.Equal(t, lastOld+1, l.OldLine, "old counter must be contiguous")
			lastOld = l.OldLine
			oldSeen = append(oldSeen, l.Text)
		}
		if l.NewLine != 0 {
			assert.Equal(t, lastNew+1, l.NewLine, "new counter must be contiguous")
			lastNew = l.NewLine
			newSeen = append(newSeen, l.Text)
		}
	}
	// Replaying each side reproduces the input exactly
	assert.Equal(t, oldLines, oldSeen)
	assert.Equal(t, newLines, newSeen)

	unchanged := 0
	for _, l := range got {
		if l.Kind == Unchanged {
			unchanged++
		}
	}
	assert.Equal(t, 3, unchanged, "LCS of the inputs is a,c,e")
}

func TestSplitLines(t *testing.T) {
	assert.Nil(t, SplitLines(""))
	assert.Equal(t, []string{"a", "b"}, SplitLines("a\nb\n"))
	assert.Equal(t, []string{"a", "b"}, SplitLines("a\r\nb"))
	assert.Equal(t, []string{"a", "", "b"}, SplitLines("a\n\nb"))
	assert.Equal(t, []string{""}, SplitLines("\n"))
}

func TestCompute_RendersHeaderAndBody(t *testing.T) {
	d := Compute("a/main.go", "b/main.go", "one\ntwo\n", "one\nthree\n")

	assert.Equal(t, []string{"--- a/main.go", "+++ b/main.go"}, d.Header())
	added, deleted := d.Stats()
	assert.Equal(t, 1, added)
	assert.Equal(t, 1, deleted)
	assert.True(t, d.HasChanges())

	out := d.String()
	assert.True(t, strings.HasPrefix(out, "--- a/main.go\n+++ b/main.go\n"))
	assert.Contains(t, out, " one\n")
	assert.Contains(t, out, "-two\n")
	assert.Contains(t, out, "+three\n")
	assert.Less(t, strings.Index(out, "-two"), strings.Index(out, "+three"), "deletion precedes addition")
}

func TestCompute_NoChanges(t *testing.T) {
	d := Compute("old", "new", "same\n", "same")
	assert.False(t, d.HasChanges())
	assert.Len(t, d.Lines, 1)
}
