// Package review reduces heterogeneous persona review output into a
// canonical issue list (spec.md §4.4.6).
package review

import (
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"
)

// Finding is one normalized review issue.
type Finding struct {
	File       string
	Line       int
	Issue      string
	Severity   string
	Suggestion string
	Labels     []string
}

func severityRank(severity string) int {
	switch severity {
	case "critical":
		return 4
	case "high":
		return 3
	case "medium":
		return 2
	case "low":
		return 1
	default:
		return 0
	}
}

func dedupKey(f Finding) string {
	h := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(f.Issue))))
	return fmt.Sprintf("%s:%d:%x", f.File, f.Line, h[:8])
}

// Deduplicate merges findings that share a (file, line, issue-hash) key,
// keeping the highest severity and concatenating distinct suggestions
// (adapted from the teacher's review aggregator).
func Deduplicate(findings []Finding) []Finding {
	if len(findings) == 0 {
		return findings
	}
	groups := make(map[string]*Finding)
	order := make([]string, 0, len(findings))
	for _, f := range findings {
		key := dedupKey(f)
		existing, ok := groups[key]
		if !ok {
			copyF := f
			groups[key] = &copyF
			order = append(order, key)
			continue
		}
		if severityRank(f.Severity) > severityRank(existing.Severity) {
			existing.Severity = f.Severity
		}
		if f.Suggestion != "" && f.Suggestion != existing.Suggestion {
			if existing.Suggestion != "" {
				existing.Suggestion += "; " + f.Suggestion
			} else {
				existing.Suggestion = f.Suggestion
			}
		}
	}
	out := make([]Finding, 0, len(order))
	for _, key := range order {
		out = append(out, *groups[key])
	}
	return out
}

// SortBySeverity orders findings highest severity first, then by
// file/line for determinism.
func SortBySeverity(findings []Finding) {
	sort.Slice(findings, func(i, j int) bool {
		ri, rj := severityRank(findings[i].Severity), severityRank(findings[j].Severity)
		if ri != rj {
			return ri > rj
		}
		if findings[i].File != findings[j].File {
			return findings[i].File < findings[j].File
		}
		return findings[i].Line < findings[j].Line
	})
}

// NormalizeSeverity maps free-form severity text or a numeric confidence
// score to the canonical {critical, high, medium, low} scale
// (spec.md §4.4.6). gapDetected reports whether a fallback rule (numeric
// threshold, or the default "low") had to be used instead of a keyword
// match — callers emit a "severity gap" telemetry event in that case.
func NormalizeSeverity(raw string, score float64, hasScore bool) (severity string, gapDetected bool) {
	lower := strings.ToLower(raw)
	switch {
	case strings.Contains(lower, "critical"), strings.Contains(lower, "severe"):
		return "critical", false
	case strings.Contains(lower, "high"), strings.Contains(lower, "blocker"):
		return "high", false
	case strings.Contains(lower, "medium"), strings.Contains(lower, "moderate"):
		return "medium", false
	case strings.Contains(lower, "low"):
		return "low", false
	}

	if hasScore {
		switch {
		case score >= 0.9:
			return "critical", true
		case score >= 0.6:
			return "high", true
		case score >= 0.3:
			return "medium", true
		default:
			return "low", true
		}
	}
	return "low", true
}

// DeriveLabels builds the label set for a finding (spec.md §4.4.6).
func DeriveLabels(reviewType, rawText string) []string {
	labels := []string{"review-gap", reviewType + "-gap"}
	lower := strings.ToLower(rawText)
	if strings.Contains(lower, "test framework") && strings.Contains(lower, "missing") {
		labels = append(labels, "infra")
	}
	return labels
}
