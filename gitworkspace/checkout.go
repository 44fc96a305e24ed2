package gitworkspace

import (
	"context"
	"fmt"
	"strings"
)

// WorkingTree describes the current state of a repo's working tree
// (spec.md §4.2 "DescribeWorkingTree").
type WorkingTree struct {
	Dirty   bool
	Branch  string
	Entries []string
	Summary string
}

// CommitResult reports the outcome of CommitAndPush.
type CommitResult struct {
	Committed bool
	Pushed    bool
	Reason    string
}

// DescribeWorkingTree reports whether repoRoot has uncommitted changes.
func (w *Workspace) DescribeWorkingTree(ctx context.Context, repoRoot string) (WorkingTree, error) {
	branchOut, err := w.run(ctx, repoRoot, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return WorkingTree{}, newErr("describe_working_tree", KindCloneFailed, err)
	}
	branch := strings.TrimSpace(branchOut)

	statusOut, err := w.run(ctx, repoRoot, "status", "--porcelain")
	if err != nil {
		return WorkingTree{}, newErr("describe_working_tree", KindCloneFailed, err)
	}
	statusOut = strings.TrimRight(statusOut, "\n")
	if statusOut == "" {
		return WorkingTree{Dirty: false, Branch: branch, Summary: "clean"}, nil
	}
	entries := strings.Split(statusOut, "\n")
	return WorkingTree{
		Dirty:   true,
		Branch:  branch,
		Entries: entries,
		Summary: fmt.Sprintf("%d uncommitted change(s)", len(entries)),
	}, nil
}

// CheckoutBranchFromBase implements spec.md §4.2's branch decision tree:
// fetch the base, fetch the target branch, and reuse it locally or
// remotely when it already exists, otherwise branch fresh off base.
// A dirty working tree aborts before any mutating call.
func (w *Workspace) CheckoutBranchFromBase(ctx context.Context, repoRoot, baseBranch, branch string) error {
	if err := w.guard(repoRoot); err != nil {
		return err
	}

	tree, err := w.DescribeWorkingTree(ctx, repoRoot)
	if err != nil {
		return err
	}
	if tree.Dirty {
		return newErr("checkout_branch_from_base", KindDirtyWorkingTree, fmt.Errorf("working tree has %s", tree.Summary))
	}

	if _, err := w.run(ctx, repoRoot, "fetch", "origin", baseBranch); err != nil {
		return newErr("checkout_branch_from_base", KindBranchNotFound, err)
	}
	_, _ = w.run(ctx, repoRoot, "fetch", "origin", branch)

	if w.branchExistsLocal(ctx, repoRoot, branch) {
		if _, err := w.run(ctx, repoRoot, "checkout", branch); err != nil {
			return newErr("checkout_branch_from_base", KindBranchNotFound, err)
		}
		_, _ = w.run(ctx, repoRoot, "merge", "--ff-only", "origin/"+branch)
		return nil
	}

	if w.branchExistsRemote(ctx, repoRoot, branch) {
		if _, err := w.run(ctx, repoRoot, "checkout", "-b", branch, "origin/"+branch); err != nil {
			return newErr("checkout_branch_from_base", KindBranchNotFound, err)
		}
		return nil
	}

	if _, err := w.run(ctx, repoRoot, "checkout", "-B", baseBranch, "origin/"+baseBranch); err != nil {
		return newErr("checkout_branch_from_base", KindBranchNotFound, err)
	}
	if _, err := w.run(ctx, repoRoot, "checkout", "-b", branch); err != nil {
		return newErr("checkout_branch_from_base", KindBranchNotFound, err)
	}
	return nil
}

// EnsureBranchPublished pushes branch to origin with upstream tracking if
// it does not already exist there.
func (w *Workspace) EnsureBranchPublished(ctx context.Context, repoRoot, branch string) error {
	if err := w.guard(repoRoot); err != nil {
		return err
	}
	if w.branchExistsRemote(ctx, repoRoot, branch) {
		return nil
	}
	if _, err := w.run(ctx, repoRoot, "push", "-u", "origin", branch); err != nil {
		return newErr("ensure_branch_published", KindPushFailed, err)
	}
	return nil
}

// CommitAndPush stages all changes, commits with message if there is
// anything to commit, and pushes to the current branch's upstream
// (spec.md §4.2 "CommitAndPush"). A failed push is reported in the result
// (Committed true, Pushed false, Reason "push_failed") rather than as an
// error.
func (w *Workspace) CommitAndPush(ctx context.Context, repoRoot, message string) (CommitResult, error) {
	if err := w.guard(repoRoot); err != nil {
		return CommitResult{}, err
	}

	if _, err := w.run(ctx, repoRoot, "add", "-A"); err != nil {
		return CommitResult{}, newErr("commit_and_push", KindPushFailed, err)
	}

	diffOut, err := w.run(ctx, repoRoot, "diff", "--cached", "--name-only")
	if err != nil {
		return CommitResult{}, newErr("commit_and_push", KindPushFailed, err)
	}
	if strings.TrimSpace(diffOut) == "" {
		return CommitResult{Committed: false, Pushed: false, Reason: "no_changes"}, nil
	}

	if w.UserName != "" {
		_, _ = w.run(ctx, repoRoot, "config", "user.name", w.UserName)
	}
	if w.UserEmail != "" {
		_, _ = w.run(ctx, repoRoot, "config", "user.email", w.UserEmail)
	}

	if !ValidateConventionalCommit(message) {
		message = "chore: " + message
	}
	if _, err := w.run(ctx, repoRoot, "commit", "-m", message); err != nil {
		return CommitResult{}, newErr("commit_and_push", KindPushFailed, err)
	}

	branchOut, err := w.run(ctx, repoRoot, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return CommitResult{Committed: true}, newErr("commit_and_push", KindPushFailed, err)
	}
	branch := strings.TrimSpace(branchOut)

	if _, err := w.run(ctx, repoRoot, "push", "-u", "origin", branch); err != nil {
		w.logger.Warn("gitworkspace: push failed", "repo", repoRoot, "branch", branch, "error", err)
		return CommitResult{Committed: true, Pushed: false, Reason: "push_failed"}, nil
	}

	return CommitResult{Committed: true, Pushed: true}, nil
}
