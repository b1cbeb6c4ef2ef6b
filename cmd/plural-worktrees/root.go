package main

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/zhubert/plural-worktrees/cli"
	"github.com/zhubert/plural-worktrees/logger"
	"github.com/zhubert/plural-worktrees/worktree"
)

// Command group IDs for organizing help output
const (
	groupWorktree = "worktree"
	groupDiff     = "diff"
	groupRepo     = "repo"
)

// app holds global flags and the services shared by all commands.
type app struct {
	repo    string
	debug   bool
	json    bool
	logFile string

	svc     *worktree.WorktreeService
	checker *cli.Checker
}

func newApp() *app {
	return &app{
		svc:     worktree.NewWorktreeService(),
		checker: cli.NewChecker(),
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "plural-worktrees",
		Short: "Manage isolated git worktrees for parallel tasks",
		Long: `plural-worktrees creates one git worktree per task, each on its own
task/<slug>-<timestamp> branch, and keeps track of their status.

Worktrees live in .worktrees/ inside the repository unless configured
otherwise in .plural/worktrees.yaml.`,
		Version:       versionString(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}
	root.SetVersionTemplate("{{.Version}}\n")

	flags := root.PersistentFlags()
	flags.StringVarP(&a.repo, "repo", "C", ".", "Path inside the repository to operate on")
	flags.BoolVar(&a.debug, "debug", false, "Enable debug logging")
	flags.BoolVar(&a.json, "json", false, "Print results as JSON")
	flags.StringVar(&a.logFile, "log-file", "", `Log file path ("-" for stderr; default under the state directory)`)

	root.AddGroup(
		&cobra.Group{ID: groupWorktree, Title: "Worktree Commands:"},
		&cobra.Group{ID: groupDiff, Title: "Diff Commands:"},
		&cobra.Group{ID: groupRepo, Title: "Repository Commands:"},
	)
	root.AddCommand(
		newCreateCmd(a),
		newListCmd(a),
		newShowCmd(a),
		newRefreshCmd(a),
		newDeleteCmd(a),
		newMergeCmd(a),
		newSetSessionCmd(a),
		newSetTitleCmd(a),
		newDiffCmd(a),
		newFileDiffCmd(a),
		newPushCmd(a),
		newPullCmd(a),
		newDoctorCmd(a),
	)
	return root
}

// setup configures logging and resolves the repository flag.
func (a *app) setup(cmd *cobra.Command) error {
	logger.SetDebug(a.debug)
	switch a.logFile {
	case "":
	case "-":
		logger.InitWriter(cmd.ErrOrStderr())
	default:
		if err := logger.Init(a.logFile); err != nil {
			return err
		}
	}

	abs, err := filepath.Abs(a.repo)
	if err != nil {
		return fmt.Errorf("invalid --repo %q: %w", a.repo, err)
	}
	a.repo = abs
	return nil
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
