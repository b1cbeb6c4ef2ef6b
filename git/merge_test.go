package git

import (
	"context"
	"errors"
	"strings"
	"testing"

	pexec "github.com/zhubert/plural-worktrees/exec"
)

func TestCLIMergeClassifier(t *testing.T) {
	tests := []struct {
		name     string
		exitCode int
		stdout   string
		stderr   string
		status   MergeStatus
		success  bool
		files    []string
	}{
		{
			name:    "fast-forward",
			stdout:  "Updating 1a2b3c4..5d6e7f8\nFast-forward\n file.txt | 1 +\n 1 file changed, 1 insertion(+)\n",
			status:  MergeFastForward,
			success: true,
		},
		{
			name:    "up to date",
			stdout:  "Already up to date.\n",
			status:  MergeUpToDate,
			success: true,
		},
		{
			name:    "up-to-date older git",
			stdout:  "Already up-to-date.\n",
			status:  MergeUpToDate,
			success: true,
		},
		{
			name:    "merge commit",
			stdout:  "Merge made by the 'ort' strategy.\n a.txt | 1 +\n",
			status:  MergeCommit,
			success: true,
		},
		{
			name:    "unrecognised success",
			stdout:  "Something new and unexpected\n",
			status:  MergeStatusUnknown,
			success: true,
		},
		{
			name:     "content conflicts",
			exitCode: 1,
			stdout: "Auto-merging b.txt\nCONFLICT (content): Merge conflict in b.txt\n" +
				"Auto-merging a.txt\nCONFLICT (content): Merge conflict in a.txt\n" +
				"Automatic merge failed; fix conflicts and then commit the result.\n",
			status: MergeConflicts,
			files:  []string{"a.txt", "b.txt"},
		},
		{
			name:     "modify/delete conflict has no file line",
			exitCode: 1,
			stdout:   "CONFLICT (modify/delete): gone.txt deleted in HEAD and modified in task/x.\n",
			status:   MergeConflicts,
		},
		{
			name:     "other failure",
			exitCode: 1,
			stderr:   "merge: task/missing - not something we can merge\n",
			status:   MergeFailed,
		},
	}

	var c CLIMergeClassifier
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Classify(tt.exitCode, tt.stdout, tt.stderr)
			if got.Status != tt.status {
				t.Errorf("Status = %s, want %s", got.Status, tt.status)
			}
			if got.Success != tt.success {
				t.Errorf("Success = %v, want %v", got.Success, tt.success)
			}
			if strings.Join(got.ConflictingFiles, ",") != strings.Join(tt.files, ",") {
				t.Errorf("ConflictingFiles = %v, want %v", got.ConflictingFiles, tt.files)
			}
			if tt.status == MergeFailed && !strings.Contains(got.ErrorMessage, "not something we can merge") {
				t.Errorf("ErrorMessage should carry stderr, got %q", got.ErrorMessage)
			}
		})
	}
}

type fixedClassifier struct{ outcome MergeOutcome }

func (f fixedClassifier) Classify(int, string, string) MergeOutcome { return f.outcome }

func TestMerge_UsesReplaceableClassifier(t *testing.T) {
	mock := pexec.NewMockExecutor(nil)
	mock.AddPrefixMatch("git", []string{"merge"}, pexec.MockResponse{Stdout: []byte("whatever")})
	s := NewGitServiceWithExecutor(mock)
	s.SetMergeClassifier(fixedClassifier{MergeOutcome{Status: MergeCommit, Success: true}})

	out, err := s.Merge(ctx, "/repo", "task/x")
	if err != nil {
		t.Fatal(err)
	}
	if out.Status != MergeCommit {
		t.Errorf("Status = %s, want MergeCommit", out.Status)
	}
}

func TestMerge_ConflictAbortsWithMock(t *testing.T) {
	mock := pexec.NewMockExecutor(nil)
	mock.AddExactMatch("git", []string{"merge", "--no-edit", "task/x"}, pexec.MockResponse{
		Stdout: []byte("CONFLICT (content): Merge conflict in a.txt\n"),
		Err:    &pexec.ProcessError{Name: "git", Args: []string{"merge"}, ExitCode: 1},
	})
	mock.AddExactMatch("git", []string{"merge", "--abort"}, pexec.MockResponse{})
	s := NewGitServiceWithExecutor(mock)

	out, err := s.Merge(ctx, "/repo", "task/x")
	if err != nil {
		t.Fatal(err)
	}
	if out.Status != MergeConflicts || out.Success {
		t.Errorf("outcome = %+v", out)
	}

	aborted := false
	for _, c := range mock.GetCalls() {
		if strings.Join(c.Args, " ") == "merge --abort" {
			aborted = true
		}
	}
	if !aborted {
		t.Error("conflicted merge was not aborted")
	}
}

func TestAbortMerge_FallsBackToReset(t *testing.T) {
	mock := pexec.NewMockExecutor(nil)
	mock.AddExactMatch("git", []string{"merge", "--abort"}, pexec.MockResponse{
		Err: &pexec.ProcessError{Name: "git", Args: []string{"merge"}, ExitCode: 128, Stderr: "fatal: something odd"},
	})
	mock.AddExactMatch("git", []string{"reset", "--merge"}, pexec.MockResponse{})
	s := NewGitServiceWithExecutor(mock)

	if err := s.AbortMerge(ctx, "/repo"); err != nil {
		t.Fatalf("expected reset fallback to succeed, got %v", err)
	}
	if n := len(mock.GetCalls()); n != 2 {
		t.Errorf("expected 2 calls, got %d", n)
	}
}

func TestCheckout_Failure(t *testing.T) {
	repo := createTestRepo(t)
	err := svc.Checkout(ctx, repo, "does-not-exist")
	if err == nil {
		t.Fatal("expected checkout error")
	}
	if !strings.Contains(err.Error(), "does-not-exist") {
		t.Errorf("error should carry stderr: %v", err)
	}
}

func TestMerge_FastForward(t *testing.T) {
	repo := createTestRepo(t)
	gitCmd(t, repo, "checkout", "-b", "feature")
	commitFile(t, repo, "f.txt", "feature\n", "feature work")
	gitCmd(t, repo, "checkout", "main")

	out, err := svc.Merge(ctx, repo, "feature")
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if !out.Success || out.Status != MergeFastForward {
		t.Errorf("outcome = %+v, want fast-forward", out)
	}

	again, err := svc.Merge(ctx, repo, "feature")
	if err != nil {
		t.Fatal(err)
	}
	if again.Status != MergeUpToDate {
		t.Errorf("second merge = %s, want UpToDate", again.Status)
	}
}

func TestMerge_MergeCommit(t *testing.T) {
	repo := createTestRepo(t)
	gitCmd(t, repo, "checkout", "-b", "feature")
	commitFile(t, repo, "f.txt", "feature\n", "feature work")
	gitCmd(t, repo, "checkout", "main")
	commitFile(t, repo, "m.txt", "main\n", "main work")

	out, err := svc.Merge(ctx, repo, "feature")
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if !out.Success || out.Status != MergeCommit {
		t.Errorf("outcome = %+v, want merge commit", out)
	}
}

func TestMerge_ConflictLeavesRepositoryClean(t *testing.T) {
	repo := createTestRepo(t)
	gitCmd(t, repo, "checkout", "-b", "feature")
	commitFile(t, repo, "test.txt", "feature version\n", "feature edit")
	gitCmd(t, repo, "checkout", "main")
	commitFile(t, repo, "test.txt", "main version\n", "main edit")

	out, err := svc.Merge(ctx, repo, "feature")
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if out.Success || out.Status != MergeConflicts {
		t.Fatalf("outcome = %+v, want conflicts", out)
	}
	if len(out.ConflictingFiles) != 1 || out.ConflictingFiles[0] != "test.txt" {
		t.Errorf("ConflictingFiles = %v", out.ConflictingFiles)
	}

	inProgress, err := svc.IsMergeInProgress(ctx, repo)
	if err != nil {
		t.Fatal(err)
	}
	if inProgress {
		t.Error("merge still in progress after conflict")
	}
	if status := gitCmd(t, repo, "status", "--porcelain"); strings.TrimSpace(status) != "" {
		t.Errorf("working tree not clean: %q", status)
	}
}

func TestMerge_UnknownBranchFails(t *testing.T) {
	repo := createTestRepo(t)

	out, err := svc.Merge(ctx, repo, "no-such-branch")
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if out.Success || out.Status != MergeFailed || out.ErrorMessage == "" {
		t.Errorf("outcome = %+v, want failed with message", out)
	}
}

func TestMerge_Cancelled(t *testing.T) {
	repo := createTestRepo(t)
	cctx, cancel := context.WithCancel(ctx)
	cancel()

	_, err := svc.Merge(cctx, repo, "main")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
