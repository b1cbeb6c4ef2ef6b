package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/sahilm/fuzzy"

	"github.com/zhubert/plural-worktrees/worktree"
)

// findWorktree resolves the worktree argument of a command against the
// repository's worktrees.
func (a *app) findWorktree(ctx context.Context, query string) (*worktree.WorktreeInfo, error) {
	list, err := a.svc.GetWorktrees(ctx, a.repo)
	if err != nil {
		return nil, err
	}
	return resolveWorktree(list, query)
}

// resolveWorktree matches query by exact id, then unique id prefix, then
// exact branch name, then fuzzy match on the title or task description.
// A fuzzy match is accepted only when one candidate scores best.
func resolveWorktree(list []*worktree.WorktreeInfo, query string) (*worktree.WorktreeInfo, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("no worktree given")
	}

	for _, w := range list {
		if w.ID == query {
			return w, nil
		}
	}

	var prefixed []*worktree.WorktreeInfo
	for _, w := range list {
		if strings.HasPrefix(w.ID, query) {
			prefixed = append(prefixed, w)
		}
	}
	switch len(prefixed) {
	case 1:
		return prefixed[0], nil
	case 0:
	default:
		return nil, ambiguous(query, prefixed)
	}

	for _, w := range list {
		if w.BranchName == query {
			return w, nil
		}
	}

	names := make([]string, len(list))
	for i, w := range list {
		names[i] = w.DisplayName()
	}
	matches := fuzzy.Find(query, names)
	switch {
	case len(matches) == 0:
		return nil, fmt.Errorf("no worktree matches %q", query)
	case len(matches) == 1 || matches[0].Score > matches[1].Score:
		return list[matches[0].Index], nil
	}

	var tied []*worktree.WorktreeInfo
	for _, m := range matches {
		if m.Score == matches[0].Score {
			tied = append(tied, list[m.Index])
		}
	}
	return nil, ambiguous(query, tied)
}

func ambiguous(query string, candidates []*worktree.WorktreeInfo) error {
	var b strings.Builder
	fmt.Fprintf(&b, "%q matches more than one worktree:", query)
	for _, w := range candidates {
		fmt.Fprintf(&b, "\n  %s  %s", w.ID, w.DisplayName())
	}
	return fmt.Errorf("%s", b.String())
}
