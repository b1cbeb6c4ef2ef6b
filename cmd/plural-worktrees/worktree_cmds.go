package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zhubert/plural-worktrees/git"
	"github.com/zhubert/plural-worktrees/worktree"
)

func newCreateCmd(a *app) *cobra.Command {
	var base string

	cmd := &cobra.Command{
		Use:     "create <task description>",
		Short:   "Create a worktree for a task",
		Aliases: []string{"new"},
		GroupID: groupWorktree,
		Args:    cobra.MinimumNArgs(1),
		Example: `  plural-worktrees create add login page
  plural-worktrees create --base develop "fix flaky test"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			task := strings.Join(args, " ")
			info, err := a.svc.CreateWorktree(cmd.Context(), a.repo, task, base)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if a.json {
				return printJSON(out, info)
			}
			fmt.Fprintf(out, "Created %s on %s\n", boldStyle.Render(info.ID), info.BranchName)
			fmt.Fprintf(out, "  %s\n", info.Path)
			return nil
		},
	}
	cmd.Flags().StringVarP(&base, "base", "b", "", "Branch to start from (default: the repository's default branch)")
	return cmd
}

func newListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Short:   "List worktrees and their status",
		Aliases: []string{"ls"},
		GroupID: groupWorktree,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := a.svc.GetWorktrees(cmd.Context(), a.repo)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if a.json {
				if list == nil {
					list = []*worktree.WorktreeInfo{}
				}
				return printJSON(out, list)
			}
			if len(list) == 0 {
				fmt.Fprintln(out, dimStyle.Render("no worktrees"))
				return nil
			}
			fmt.Fprintln(out, renderWorktreeTable(list))
			return nil
		},
	}
}

func newShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "show <worktree>",
		Short:   "Show details of a worktree",
		GroupID: groupWorktree,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := a.findWorktree(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if a.json {
				return printJSON(out, info)
			}
			fmt.Fprint(out, renderWorktreeDetails(info))
			return nil
		},
	}
}

func newRefreshCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "refresh <worktree>",
		Short:   "Re-derive the status of a worktree",
		GroupID: groupWorktree,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			found, err := a.findWorktree(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			info, err := a.svc.RefreshWorktreeStatus(cmd.Context(), a.repo, found.ID)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if a.json {
				return printJSON(out, info)
			}
			fmt.Fprintf(out, "%s %s (%d ahead)\n", info.ID, renderStatus(info.Status), info.CommitsAhead)
			return nil
		},
	}
}

func newDeleteCmd(a *app) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:     "delete <worktree>",
		Short:   "Delete a worktree (its branch is kept)",
		Aliases: []string{"rm"},
		GroupID: groupWorktree,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := a.findWorktree(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if info.HasUncommittedChanges && !force {
				return fmt.Errorf("worktree %s has uncommitted changes; use --force to delete anyway", info.ID)
			}
			if err := a.svc.DeleteWorktree(cmd.Context(), a.repo, info.ID, force); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s (branch %s kept)\n", info.ID, info.BranchName)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Delete even with uncommitted changes")
	return cmd
}

func newMergeCmd(a *app) *cobra.Command {
	var into string

	cmd := &cobra.Command{
		Use:     "merge <worktree>",
		Short:   "Merge a worktree's branch into its base branch",
		GroupID: groupWorktree,
		Args:    cobra.ExactArgs(1),
		Long: `Check out the target branch in the main working tree and merge the
worktree's branch into it. A conflicted merge is aborted, leaving the
repository as it was, and the conflicting files are listed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := a.findWorktree(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			result, err := a.svc.MergeWorktree(cmd.Context(), a.repo, info.ID, into)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if a.json {
				if err := printJSON(out, result); err != nil {
					return err
				}
			} else {
				fmt.Fprint(out, renderMergeResult(result))
			}
			if !result.Success {
				if result.Status == git.MergeConflicts {
					return fmt.Errorf("merge of %s has %d conflicting files", result.SourceBranch, len(result.ConflictingFiles))
				}
				return fmt.Errorf("merge of %s failed", result.SourceBranch)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&into, "into", "", "Target branch (default: the worktree's base branch)")
	return cmd
}

func newSetSessionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "set-session <worktree> [session-id]",
		Short:   "Attach an agent session id to a worktree (omit the id to clear it)",
		GroupID: groupWorktree,
		Args:    cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := a.findWorktree(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			sessionID := ""
			if len(args) == 2 {
				sessionID = args[1]
			}
			return a.svc.UpdateClaudeSessionID(cmd.Context(), a.repo, info.ID, sessionID)
		},
	}
}

func newSetTitleCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "set-title <worktree> <title>",
		Short:   "Set the display title of a worktree",
		GroupID: groupWorktree,
		Args:    cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := a.findWorktree(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.svc.UpdateTitle(cmd.Context(), a.repo, info.ID, strings.Join(args[1:], " "))
		},
	}
}
