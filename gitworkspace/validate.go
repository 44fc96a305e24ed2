package gitworkspace

import (
	"fmt"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
)

var allowedProtocols = map[string]bool{
	"https": true,
	"git":   true,
	"ssh":   true,
}

// ValidateRemoteURL rejects remote URLs using a disallowed protocol.
// SSH shorthand (git@host:org/repo.git) is accepted without parsing.
func ValidateRemoteURL(rawURL string) error {
	if strings.HasPrefix(rawURL, "git@") {
		return nil
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid git URL: %w", err)
	}
	scheme := strings.ToLower(parsed.Scheme)
	if scheme == "file" {
		return fmt.Errorf("file:// protocol is not allowed")
	}
	if !allowedProtocols[scheme] {
		return fmt.Errorf("protocol %q not allowed; must be https, git, or ssh", scheme)
	}
	return nil
}

// ValidateRepoPath rejects traversal attempts and paths outside baseDir.
func ValidateRepoPath(baseDir, path string) error {
	if path == "" {
		return fmt.Errorf("path is required")
	}
	if strings.Contains(path, "..") {
		return fmt.Errorf("path traversal not allowed")
	}
	if baseDir == "" {
		return nil
	}
	absPath, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}
	absBase, err := filepath.Abs(filepath.Clean(baseDir))
	if err != nil {
		return fmt.Errorf("invalid base path: %w", err)
	}
	if !strings.HasPrefix(absPath, absBase) {
		return fmt.Errorf("path %s escapes base directory %s", absPath, absBase)
	}
	return nil
}

var conventionalCommitPattern = regexp.MustCompile(`^(feat|fix|docs|style|refactor|test|chore|perf|ci|build|revert)(\([a-zA-Z0-9_-]+\))?: .+`)

// ValidateConventionalCommit reports whether message follows conventional
// commit format. CommitAndPush uses this to decide whether to prefix the
// message with "chore: ".
func ValidateConventionalCommit(message string) bool {
	return conventionalCommitPattern.MatchString(message)
}
