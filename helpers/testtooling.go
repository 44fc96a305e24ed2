// Package helpers collects small cross-cutting utilities shared by step
// kinds and the coordinator: test-file discovery for the QA loop's
// "rerun tests" step and a workflow-abort logging helper.
package helpers

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultTestFilePatterns matches common test-file conventions across the
// languages a cloned project might use, since the QA-iteration loop
// (spec.md §4.4.2) doesn't know the project's language ahead of time.
var DefaultTestFilePatterns = []string{
	"**/*_test.go",
	"**/*.test.ts",
	"**/*.test.js",
	"**/test_*.py",
	"**/*_test.py",
}

// DiscoverTestFiles expands glob patterns (doublestar syntax, ** for
// recursive matching) relative to repoRoot and returns matching file paths
// relative to repoRoot, deduplicated and sorted.
func DiscoverTestFiles(repoRoot string, patterns []string) ([]string, error) {
	if len(patterns) == 0 {
		patterns = DefaultTestFilePatterns
	}

	seen := make(map[string]bool)
	var matches []string

	for _, pattern := range patterns {
		found, err := doublestar.Glob(os.DirFS(repoRoot), pattern)
		if err != nil {
			return nil, fmt.Errorf("helpers: glob pattern %q: %w", pattern, err)
		}
		for _, f := range found {
			if !seen[f] {
				seen[f] = true
				matches = append(matches, f)
			}
		}
	}

	sort.Strings(matches)
	return matches, nil
}

// RepoRelativeDir returns the directory portion of a repo-relative test
// file path, using forward slashes regardless of platform (glob matches
// are always slash-separated).
func RepoRelativeDir(relPath string) string {
	dir := filepath.ToSlash(filepath.Dir(relPath))
	if dir == "." {
		return ""
	}
	return dir
}

// UniqueDirs reduces a list of repo-relative file paths to their
// containing directories, deduplicated, preserving first-seen order —
// useful for scoping a test runner invocation to changed packages.
func UniqueDirs(relPaths []string) []string {
	seen := make(map[string]bool)
	var dirs []string
	for _, p := range relPaths {
		dir := RepoRelativeDir(p)
		if dir == "" || seen[dir] {
			continue
		}
		seen[dir] = true
		dirs = append(dirs, dir)
	}
	return dirs
}

// IsTestArtifactPath reports whether relPath falls under the orchestrator's
// own artifact namespace (spec.md §6.3 ".ma/tasks/<taskId>/") and so should
// never be treated as a project test file even if it matches a pattern.
func IsTestArtifactPath(relPath string) bool {
	return strings.HasPrefix(filepath.ToSlash(relPath), ".ma/tasks/")
}
