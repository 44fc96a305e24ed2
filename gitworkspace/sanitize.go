package gitworkspace

import (
	"regexp"
	"strconv"
	"strings"
)

var nonAllowedChars = regexp.MustCompile(`[^a-z0-9._-]`)

var uuidPattern = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

// sanitizeSegment lower-cases s and strips any character outside
// [A-Za-z0-9._-] (spec.md §4.2 "Resolve"). It is idempotent
// (spec.md §8 round-trip law).
func sanitizeSegment(s string) string {
	lower := strings.ToLower(s)
	return nonAllowedChars.ReplaceAllString(lower, "")
}

// isRejectedHint reports whether hint is a UUID or a purely-numeric id,
// either of which is rejected as a directory-naming hint (spec.md §4.2).
func isRejectedHint(hint string) bool {
	if hint == "" {
		return true
	}
	if uuidPattern.MatchString(strings.ToLower(hint)) {
		return true
	}
	if _, err := strconv.ParseInt(hint, 10, 64); err == nil {
		return true
	}
	return false
}

// lastPathSegment extracts the final path segment of a git remote URL,
// stripping a trailing ".git" and any hostname/org prefix — the directory
// name never includes the host (spec.md §4.2, §6.3).
func lastPathSegment(remoteURL string) string {
	trimmed := strings.TrimSuffix(strings.TrimSpace(remoteURL), "/")
	trimmed = strings.TrimSuffix(trimmed, ".git")

	// SSH shorthand: git@host:org/repo
	if idx := strings.LastIndex(trimmed, ":"); idx != -1 && !strings.Contains(trimmed, "://") {
		trimmed = trimmed[idx+1:]
	}

	if idx := strings.LastIndex(trimmed, "/"); idx != -1 {
		trimmed = trimmed[idx+1:]
	}
	return trimmed
}

// RepoDirName resolves the on-disk directory name for a project per
// spec.md §4.2 "Resolve": prefer projectHint when it is a usable name,
// otherwise fall back to the last path segment of remoteURL.
func RepoDirName(projectHint, remoteURL string) string {
	if !isRejectedHint(projectHint) {
		if s := sanitizeSegment(projectHint); s != "" {
			return s
		}
	}
	return sanitizeSegment(lastPathSegment(remoteURL))
}
