package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zhubert/plural-worktrees/cli"
	"github.com/zhubert/plural-worktrees/config"
	"github.com/zhubert/plural-worktrees/paths"
)

func newPushCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "push",
		Short:   "Push all local branches to the default remote",
		GroupID: groupRepo,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.svc.Git().PushAllBranches(cmd.Context(), a.repo); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Pushed all branches")
			return nil
		},
	}
}

func newPullCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "pull",
		Short:   "Pull the current branch of the main checkout",
		GroupID: groupRepo,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.svc.Git().Pull(cmd.Context(), a.repo); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Pulled")
			return nil
		},
	}
}

// doctorReport is the JSON form of the doctor command's findings.
type doctorReport struct {
	Tools         []toolReport `json:"tools"`
	Repository    string       `json:"repository,omitempty"`
	CurrentBranch string       `json:"currentBranch,omitempty"`
	DefaultBranch string       `json:"defaultBranch,omitempty"`
	WorktreesDir  string       `json:"worktreesDir,omitempty"`
	UserConfig    string       `json:"userConfig,omitempty"`
	Layout        string       `json:"layout"`
	Ahead         int          `json:"aheadOfRemote"`
	Behind        int          `json:"behindRemote"`
	Stale         []string     `json:"staleRegistrations,omitempty"`
	Problems      []string     `json:"problems,omitempty"`
}

type toolReport struct {
	Name    string `json:"name"`
	OK      bool   `json:"ok"`
	Version string `json:"version,omitempty"`
}

func newDoctorCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "doctor",
		Short:   "Check required tools, configuration and worktree registrations",
		GroupID: groupRepo,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			prereqs := cli.DefaultPrerequisites()
			results := a.checker.CheckAll(ctx, prereqs)

			report := doctorReport{Layout: "xdg"}
			if paths.IsFlatLayout() {
				report.Layout = "flat"
			}
			if p, err := config.UserFilePath(); err == nil {
				report.UserConfig = p
			}
			for _, r := range results {
				report.Tools = append(report.Tools, toolReport{Name: r.Prerequisite.Name, OK: r.OK(), Version: r.Version})
				if r.Prerequisite.Required && !r.OK() {
					report.Problems = append(report.Problems, r.Error.Error())
				}
			}

			gitSvc := a.svc.Git()
			if repo, err := gitSvc.OpenRepository(ctx, a.repo); err != nil {
				report.Problems = append(report.Problems, err.Error())
			} else {
				report.Repository = repo.Path
				report.CurrentBranch = repo.CurrentBranch
				report.DefaultBranch = repo.DefaultBranch
				report.WorktreesDir = repo.WorktreesDirectory
				if repo.CurrentBranch != "" {
					report.Ahead = gitSvc.GetCommitsAheadOfRemote(ctx, repo.Path, repo.CurrentBranch)
					report.Behind = gitSvc.GetCommitsBehindRemote(ctx, repo.Path, repo.CurrentBranch)
				}
				if refs, err := gitSvc.ListWorktrees(ctx, repo.Path); err == nil {
					for _, ref := range refs {
						if ref.Prunable {
							report.Stale = append(report.Stale, ref.Path)
						}
					}
				}
			}

			out := cmd.OutOrStdout()
			if a.json {
				if err := printJSON(out, report); err != nil {
					return err
				}
			} else {
				fmt.Fprint(out, cli.FormatCheckResults(results))
				if report.Repository != "" {
					fmt.Fprintf(out, "\nRepository: %s\n", report.Repository)
					fmt.Fprintf(out, "  branch %s (default %s), %d ahead / %d behind remote\n",
						report.CurrentBranch, report.DefaultBranch, report.Ahead, report.Behind)
					fmt.Fprintf(out, "  worktrees in %s\n", report.WorktreesDir)
				}
				if report.UserConfig != "" {
					fmt.Fprintf(out, "User config: %s (%s layout)\n", report.UserConfig, report.Layout)
				}
				for _, p := range report.Stale {
					fmt.Fprintf(out, "  %s %s (run `git worktree prune`)\n", yellowStyle.Render("stale:"), p)
				}
				for _, p := range report.Problems {
					fmt.Fprintf(out, "%s %s\n", redStyle.Render("problem:"), p)
				}
			}
			if len(report.Problems) > 0 {
				return fmt.Errorf("doctor found %d problems", len(report.Problems))
			}
			return nil
		},
	}
}
