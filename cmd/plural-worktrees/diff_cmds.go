package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newDiffCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "diff <worktree>",
		Short:   "List files that differ between the main checkout and a worktree",
		GroupID: groupDiff,
		Args:    cobra.ExactArgs(1),
		Long: `Compare the main working tree with a worktree file by file. Build
output, dependency directories and binary files are skipped; extra
patterns can be set under tree_diff in .plural/worktrees.yaml. Line
counts are approximate; use filediff for an exact diff of one file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := a.findWorktree(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			entries, err := a.svc.DiffWorktree(cmd.Context(), a.repo, info.ID)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if a.json {
				return printJSON(out, entries)
			}
			fmt.Fprint(out, renderDiffEntries(entries))
			return nil
		},
	}
}

func newFileDiffCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "filediff <worktree> <path>",
		Short:   "Show a line diff of one file between the main checkout and a worktree",
		GroupID: groupDiff,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := a.findWorktree(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			d, err := a.svc.DiffWorktreeFile(cmd.Context(), a.repo, info.ID, args[1])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if a.json {
				return printJSON(out, d)
			}
			writeFileDiff(out, d)
			return nil
		},
	}
}
