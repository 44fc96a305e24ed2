package gitworkspace

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

// setupBareRemote creates a bare repo to act as a push/fetch target, and a
// non-bare seed repo with one commit, pushed into the bare remote.
func setupBareRemote(t *testing.T) (remoteURL, seedDir string) {
	t.Helper()
	remoteDir := t.TempDir()
	run(t, remoteDir, "init", "--bare")

	seedDir = t.TempDir()
	run(t, seedDir, "init", "-b", "main")
	run(t, seedDir, "config", "user.email", "test@example.com")
	run(t, seedDir, "config", "user.name", "Test User")
	os.WriteFile(filepath.Join(seedDir, "README.md"), []byte("seed"), 0o644)
	run(t, seedDir, "add", ".")
	run(t, seedDir, "commit", "-m", "feat: seed commit")
	run(t, seedDir, "remote", "add", "origin", remoteDir)
	run(t, seedDir, "push", "origin", "main")

	return remoteDir, seedDir
}

func run(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("git %v: %v: %s", args, err, out)
	}
}

func TestEnsureClonesWhenAbsent(t *testing.T) {
	remoteURL, _ := setupBareRemote(t)
	base := t.TempDir()
	ws := New(base, Credentials{}, "Bot", "bot@example.com", true, nil)

	repoRoot := ws.Resolve("widgets", remoteURL)
	if err := ws.Ensure(context.Background(), repoRoot, remoteURL); err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if _, err := os.Stat(filepath.Join(repoRoot, ".git")); err != nil {
		t.Fatalf("expected clone at %s: %v", repoRoot, err)
	}
}

func TestEnsureReusesExistingClone(t *testing.T) {
	remoteURL, _ := setupBareRemote(t)
	base := t.TempDir()
	ws := New(base, Credentials{}, "Bot", "bot@example.com", true, nil)
	repoRoot := ws.Resolve("widgets", remoteURL)

	if err := ws.Ensure(context.Background(), repoRoot, remoteURL); err != nil {
		t.Fatalf("first Ensure: %v", err)
	}
	if err := ws.Ensure(context.Background(), repoRoot, remoteURL); err != nil {
		t.Fatalf("second Ensure: %v", err)
	}
}

func TestEnsureRejectsNonGitDir(t *testing.T) {
	remoteURL, _ := setupBareRemote(t)
	base := t.TempDir()
	ws := New(base, Credentials{}, "Bot", "bot@example.com", true, nil)
	repoRoot := ws.Resolve("widgets", remoteURL)
	os.MkdirAll(repoRoot, 0o755)
	os.WriteFile(filepath.Join(repoRoot, "stray.txt"), []byte("x"), 0o644)

	err := ws.Ensure(context.Background(), repoRoot, remoteURL)
	if err == nil {
		t.Fatal("expected error for non-git directory")
	}
	gwErr, ok := err.(*Error)
	if !ok || gwErr.Kind != KindRepoReusable {
		t.Fatalf("expected KindRepoReusable, got %v", err)
	}
}

func TestCheckoutBranchFromBaseCreatesNewBranch(t *testing.T) {
	remoteURL, _ := setupBareRemote(t)
	base := t.TempDir()
	ws := New(base, Credentials{}, "Bot", "bot@example.com", true, nil)
	repoRoot := ws.Resolve("widgets", remoteURL)
	if err := ws.Ensure(context.Background(), repoRoot, remoteURL); err != nil {
		t.Fatalf("Ensure: %v", err)
	}

	if err := ws.CheckoutBranchFromBase(context.Background(), repoRoot, "main", "task/add-widget"); err != nil {
		t.Fatalf("CheckoutBranchFromBase: %v", err)
	}
	tree, err := ws.DescribeWorkingTree(context.Background(), repoRoot)
	if err != nil {
		t.Fatalf("DescribeWorkingTree: %v", err)
	}
	if tree.Branch != "task/add-widget" {
		t.Fatalf("expected branch task/add-widget, got %s", tree.Branch)
	}
}

func TestCheckoutBranchFromBaseFailsOnDirtyTree(t *testing.T) {
	remoteURL, _ := setupBareRemote(t)
	base := t.TempDir()
	ws := New(base, Credentials{}, "Bot", "bot@example.com", true, nil)
	repoRoot := ws.Resolve("widgets", remoteURL)
	if err := ws.Ensure(context.Background(), repoRoot, remoteURL); err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	os.WriteFile(filepath.Join(repoRoot, "dirty.txt"), []byte("x"), 0o644)

	err := ws.CheckoutBranchFromBase(context.Background(), repoRoot, "main", "task/add-widget")
	gwErr, ok := err.(*Error)
	if !ok || gwErr.Kind != KindDirtyWorkingTree {
		t.Fatalf("expected KindDirtyWorkingTree, got %v", err)
	}
}

func TestCommitAndPushNoChangesShortCircuits(t *testing.T) {
	remoteURL, _ := setupBareRemote(t)
	base := t.TempDir()
	ws := New(base, Credentials{}, "Bot", "bot@example.com", true, nil)
	repoRoot := ws.Resolve("widgets", remoteURL)
	if err := ws.Ensure(context.Background(), repoRoot, remoteURL); err != nil {
		t.Fatalf("Ensure: %v", err)
	}

	result, err := ws.CommitAndPush(context.Background(), repoRoot, "feat: nothing changed")
	if err != nil {
		t.Fatalf("CommitAndPush: %v", err)
	}
	if result.Committed || result.Reason != "no_changes" {
		t.Fatalf("expected no_changes short-circuit, got %+v", result)
	}
}

func TestCommitAndPushCommitsAndPushes(t *testing.T) {
	remoteURL, _ := setupBareRemote(t)
	base := t.TempDir()
	ws := New(base, Credentials{}, "Bot", "bot@example.com", true, nil)
	repoRoot := ws.Resolve("widgets", remoteURL)
	if err := ws.Ensure(context.Background(), repoRoot, remoteURL); err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if err := ws.CheckoutBranchFromBase(context.Background(), repoRoot, "main", "task/add-widget"); err != nil {
		t.Fatalf("CheckoutBranchFromBase: %v", err)
	}
	os.WriteFile(filepath.Join(repoRoot, "widget.txt"), []byte("new"), 0o644)

	result, err := ws.CommitAndPush(context.Background(), repoRoot, "add widget")
	if err != nil {
		t.Fatalf("CommitAndPush: %v", err)
	}
	if !result.Committed || !result.Pushed {
		t.Fatalf("expected committed+pushed, got %+v", result)
	}
}

func TestGuardRejectsProcessCWD(t *testing.T) {
	cwd, _ := os.Getwd()
	ws := New(t.TempDir(), Credentials{}, "Bot", "bot@example.com", false, nil)
	ws.ProcessCWD = cwd

	err := ws.Ensure(context.Background(), cwd, "https://example.com/org/repo.git")
	gwErr, ok := err.(*Error)
	if !ok || gwErr.Kind != KindWorkspaceGuarded {
		t.Fatalf("expected KindWorkspaceGuarded, got %v", err)
	}
}
