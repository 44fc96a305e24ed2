package review

import (
	"encoding/json"
	"fmt"

	"github.com/itchyny/gojq"
)

// extractionQueries pulls every known shape a review persona might emit
// into a flat stream of raw issue objects (spec.md §4.4.6: "root_causes,
// findings[bucket][], issues[], and critical_analysis.*"). gojq earns its
// keep here precisely because the source shapes are heterogeneous and
// arbitrarily nested — a fixed struct can't describe all of them at once.
var extractionQueries = []string{
	`.root_causes[]? | {issue: (.description // .issue // .), severity: .severity, file: .file, line: .line, suggestion: .suggestion, score: .score}`,
	`.findings // {} | to_entries[] | . as $e | $e.value[]? | {issue: (.description // .issue // .), severity: .severity, file: .file, line: .line, suggestion: .suggestion, score: .score, bucket: $e.key}`,
	`.issues[]? | {issue: (.description // .issue // .), severity: .severity, file: .file, line: .line, suggestion: .suggestion, score: .score}`,
	`.critical_analysis // {} | to_entries[] | .value[]? | {issue: (.description // .issue // .), severity: .severity, file: .file, line: .line, suggestion: .suggestion, score: .score}`,
}

type rawIssue struct {
	Issue      any     `json:"issue"`
	Severity   string  `json:"severity"`
	File       string  `json:"file"`
	Line       int     `json:"line"`
	Suggestion string  `json:"suggestion"`
	Score      float64 `json:"score"`
}

// Extract parses raw (a JSON object, possibly with heterogeneous review
// sections) into a flat list of Findings with normalized severity.
func Extract(reviewType string, raw map[string]any) ([]Finding, bool, error) {
	var findings []Finding
	gapSeen := false

	for _, src := range extractionQueries {
		query, err := gojq.Parse(src)
		if err != nil {
			return nil, false, fmt.Errorf("review: parse extraction query: %w", err)
		}
		iter := query.Run(raw)
		for {
			v, ok := iter.Next()
			if !ok {
				break
			}
			if err, isErr := v.(error); isErr {
				if isHaltErr(err) {
					break
				}
				continue
			}
			m, ok := v.(map[string]any)
			if !ok {
				continue
			}
			b, _ := json.Marshal(m)
			var ri rawIssue
			if err := json.Unmarshal(b, &ri); err != nil {
				continue
			}
			issueText := fmt.Sprint(ri.Issue)
			if issueText == "" || issueText == "<nil>" {
				continue
			}
			severity, gap := NormalizeSeverity(ri.Severity, ri.Score, ri.Score != 0)
			if gap {
				gapSeen = true
			}
			findings = append(findings, Finding{
				File:       ri.File,
				Line:       ri.Line,
				Issue:      issueText,
				Severity:   severity,
				Suggestion: ri.Suggestion,
				Labels:     DeriveLabels(reviewType, issueText),
			})
		}
	}

	return findings, gapSeen, nil
}

func isHaltErr(err error) bool {
	type haltErr interface{ IsHalt() bool }
	if h, ok := err.(haltErr); ok {
		return h.IsHalt()
	}
	return false
}
