// Command plural-worktrees manages task worktrees from the terminal: create
// one per task, watch their status, diff them against the main checkout and
// merge them back.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/zhubert/plural-worktrees/logger"
)

// Version information, set at build time with -ldflags
var (
	version = "dev"
	commit  = "none"
)

func versionString() string {
	return fmt.Sprintf("plural-worktrees %s (%s, %s)", version, commit[:min(7, len(commit))], runtime.Version())
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	defer logger.Close()

	cmd := newRootCmd(newApp())
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		cancel()
		logger.Close()
		os.Exit(1)
	}
}
