// Package treediff compares two independent directory trees by content.
//
// The trees need not share any git history: a main checkout and a task
// worktree, or any two unpacked snapshots, are compared file by file. Only
// files that differ are reported.
package treediff

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/zhubert/plural-worktrees/git"
	"github.com/zhubert/plural-worktrees/logger"
)

const (
	// wholeFileLimit is the size below which files are compared in one read.
	wholeFileLimit = 1 << 20
	chunkSize      = 64 << 10
)

// DefaultIgnoreDirs are directory names never descended into.
var DefaultIgnoreDirs = []string{
	".git", "node_modules", "bin", "obj", "dist", "build", "out", "target",
	"packages", "__pycache__", "vendor",
}

// DefaultIgnoreExtensions are binary or build-artifact extensions skipped
// during enumeration.
var DefaultIgnoreExtensions = []string{
	".dll", ".exe", ".pdb", ".so", ".dylib", ".o", ".a", ".obj", ".class",
	".jar", ".pyc", ".zip", ".tar", ".gz", ".png", ".jpg", ".jpeg", ".gif",
	".ico", ".pdf", ".bin", ".cache",
}

// Options extends the built-in ignore lists.
type Options struct {
	// IgnoreDirs are extra directory names to prune anywhere in the tree.
	IgnoreDirs []string
	// IgnoreExtensions are extra file extensions (with leading dot) to skip.
	IgnoreExtensions []string
	// WorktreesDir is the slash-separated path, relative to each root, of the
	// managed worktrees directory. It is pruned in addition to any directory
	// with the same base name.
	WorktreesDir string
}

type filter struct {
	dirs     map[string]bool
	exts     map[string]bool
	worktree string
}

func newFilter(opts Options) *filter {
	f := &filter{dirs: map[string]bool{}, exts: map[string]bool{}}
	for _, d := range append(append([]string(nil), DefaultIgnoreDirs...), opts.IgnoreDirs...) {
		f.dirs[d] = true
	}
	for _, e := range append(append([]string(nil), DefaultIgnoreExtensions...), opts.IgnoreExtensions...) {
		f.exts[strings.ToLower(e)] = true
	}
	if opts.WorktreesDir != "" {
		f.worktree = path.Clean(filepath.ToSlash(opts.WorktreesDir))
		f.dirs[path.Base(f.worktree)] = true
	}
	return f
}

// skipDir reports whether a directory is pruned. Every dot-directory is.
func (f *filter) skipDir(name, rel string) bool {
	return strings.HasPrefix(name, ".") || f.dirs[name] || rel == f.worktree
}

func (f *filter) skipFile(name string) bool {
	return f.exts[strings.ToLower(filepath.Ext(name))]
}

// Enumerate lists the regular files under root as slash-separated relative
// paths mapped to their sizes. Directories are walked with an explicit stack;
// cancellation is checked before each directory is read.
func Enumerate(ctx context.Context, root string, opts Options) (map[string]int64, error) {
	return newFilter(opts).enumerate(ctx, root)
}

func (f *filter) enumerate(ctx context.Context, root string) (map[string]int64, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", root)
	}

	files := make(map[string]int64)
	stack := []string{""}
	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rel := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		entries, err := os.ReadDir(filepath.Join(root, filepath.FromSlash(rel)))
		if err != nil {
			if rel == "" {
				return nil, fmt.Errorf("failed to read %s: %w", root, err)
			}
			// Directories can vanish while an agent is working; skip them
			logger.WithComponent("treediff").Debug("skipping unreadable directory", "dir", rel, "error", err)
			continue
		}

		for _, e := range entries {
			name := e.Name()
			childRel := path.Join(rel, name)
			switch {
			case e.Type()&fs.ModeSymlink != 0:
				continue
			case e.IsDir():
				if !f.skipDir(name, childRel) {
					stack = append(stack, childRel)
				}
			case e.Type().IsRegular():
				if f.skipFile(name) {
					continue
				}
				fi, err := e.Info()
				if err != nil {
					continue
				}
				files[childRel] = fi.Size()
			}
		}
	}
	return files, nil
}

// Compare reports the files that differ between baseRoot and compareRoot:
// Added when present only under compareRoot, Deleted when present only
// under baseRoot, Modified when content differs. Identical files are
// omitted. Line counts are an approximation; see CountLineChanges.
func Compare(ctx context.Context, baseRoot, compareRoot string, opts Options) ([]git.DiffEntry, error) {
	f := newFilter(opts)

	var baseFiles, compareFiles map[string]int64
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		baseFiles, err = f.enumerate(gctx, baseRoot)
		return err
	})
	g.Go(func() error {
		var err error
		compareFiles, err = f.enumerate(gctx, compareRoot)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	union := make([]string, 0, len(baseFiles)+len(compareFiles))
	for p := range baseFiles {
		union = append(union, p)
	}
	for p := range compareFiles {
		if _, ok := baseFiles[p]; !ok {
			union = append(union, p)
		}
	}
	sort.Strings(union)

	log := logger.WithComponent("treediff")
	var entries []git.DiffEntry
	for _, rel := range union {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		basePath := filepath.Join(baseRoot, filepath.FromSlash(rel))
		comparePath := filepath.Join(compareRoot, filepath.FromSlash(rel))
		baseSize, inBase := baseFiles[rel]
		compareSize, inCompare := compareFiles[rel]

		switch {
		case !inBase:
			n, _ := countLines(comparePath)
			entries = append(entries, git.DiffEntry{FilePath: rel, ChangeType: git.ChangeAdded, LinesAdded: n})
		case !inCompare:
			n, _ := countLines(basePath)
			entries = append(entries, git.DiffEntry{FilePath: rel, ChangeType: git.ChangeDeleted, LinesDeleted: n})
		default:
			if baseSize == compareSize {
				equal, err := sameContent(basePath, comparePath, baseSize)
				if err != nil {
					log.Debug("content comparison failed, reporting as modified", "path", rel, "error", err)
				} else if equal {
					continue
				}
			}
			added, deleted, err := CountLineChanges(basePath, comparePath)
			if err != nil {
				log.Debug("line count failed", "path", rel, "error", err)
			}
			entries = append(entries, git.DiffEntry{
				FilePath:     rel,
				ChangeType:   git.ChangeModified,
				LinesAdded:   added,
				LinesDeleted: deleted,
			})
		}
	}

	log.Debug("tree comparison finished", "base", baseRoot, "compare", compareRoot,
		"baseFiles", len(baseFiles), "compareFiles", len(compareFiles), "changes", len(entries))
	return entries, nil
}

// sameContent compares two files of equal size. Files under 1 MiB are read
// whole; larger files are compared chunk by chunk.
func sameContent(a, b string, size int64) (bool, error) {
	if size < wholeFileLimit {
		da, err := os.ReadFile(a)
		if err != nil {
			return false, err
		}
		db, err := os.ReadFile(b)
		if err != nil {
			return false, err
		}
		return bytes.Equal(da, db), nil
	}

	fa, err := os.Open(a)
	if err != nil {
		return false, err
	}
	defer fa.Close()
	fb, err := os.Open(b)
	if err != nil {
		return false, err
	}
	defer fb.Close()

	bufA := make([]byte, chunkSize)
	bufB := make([]byte, chunkSize)
	for {
		na, errA := io.ReadFull(fa, bufA)
		nb, errB := io.ReadFull(fb, bufB)
		if na != nb || !bytes.Equal(bufA[:na], bufB[:nb]) {
			return false, nil
		}
		doneA := errors.Is(errA, io.EOF) || errors.Is(errA, io.ErrUnexpectedEOF)
		doneB := errors.Is(errB, io.EOF) || errors.Is(errB, io.ErrUnexpectedEOF)
		if errA != nil && !doneA {
			return false, errA
		}
		if errB != nil && !doneB {
			return false, errB
		}
		if doneA || doneB {
			return doneA == doneB, nil
		}
	}
}

// CountLineChanges approximates added and deleted line counts by set
// difference: a line of the new file counts as added when no identical line
// exists anywhere in the old file, and vice versa. Reordering and duplicated
// lines are not detected. Use the linediff package for an exact diff.
func CountLineChanges(oldPath, newPath string) (added, deleted int, err error) {
	oldLines, err := readLines(oldPath)
	if err != nil {
		return 0, 0, err
	}
	newLines, err := readLines(newPath)
	if err != nil {
		return 0, 0, err
	}

	oldSet := make(map[string]struct{}, len(oldLines))
	for _, l := range oldLines {
		oldSet[l] = struct{}{}
	}
	newSet := make(map[string]struct{}, len(newLines))
	for _, l := range newLines {
		newSet[l] = struct{}{}
	}

	for _, l := range newLines {
		if _, ok := oldSet[l]; !ok {
			added++
		}
	}
	for _, l := range oldLines {
		if _, ok := newSet[l]; !ok {
			deleted++
		}
	}
	return added, deleted, nil
}

func readLines(p string) ([]string, error) {
	f, err := os.Open(p)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64<<10), 16<<20)
	for sc.Scan() {
		lines = append(lines, strings.TrimSuffix(sc.Text(), "\r"))
	}
	return lines, sc.Err()
}

func countLines(p string) (int, error) {
	lines, err := readLines(p)
	return len(lines), err
}
