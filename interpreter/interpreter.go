// Package interpreter reduces a persona's free-form result into the
// {pass, fail, unknown} contract (spec.md §4.5).
package interpreter

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Status is the normalized persona verdict.
type Status string

const (
	StatusPass    Status = "pass"
	StatusFail    Status = "fail"
	StatusUnknown Status = "unknown"
)

// Normalized is the interpreter's output (spec.md §3.5).
type Normalized struct {
	Status  Status
	Details string
	Raw     string
}

var fencedJSONPattern = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")

var affirmationKeywords = []string{"pass", "approved", "success"}
var negationKeywords = []string{"fail", "failed", "error", "rejected", "denied"}

var noTestsPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)0\s+passed,?\s*0\s+failed`),
	regexp.MustCompile(`(?i)no\s+tests?\s+(present|found)`),
	regexp.MustCompile(`(?i)nothing\s+to\s+execute`),
	regexp.MustCompile(`(?i)0\s+tests?\s+(executed|run)`),
}

type personaResult struct {
	Status             string `json:"status"`
	Summary             json.RawMessage `json:"summary"`
	TestFramework       string `json:"test_framework"`
	TDDRedPhaseDetected bool   `json:"tdd_red_phase_detected"`
}

// Interpret applies the pipeline described in spec.md §4.5 to a persona's
// raw `result` text for the given persona name ("tester-qa" triggers the QA
// override).
func Interpret(persona, rawResult string) Normalized {
	n := Normalized{Raw: rawResult}

	parsed, body, hasJSON := extractJSON(rawResult)

	if hasJSON && (parsed.Status == "pass" || parsed.Status == "fail") {
		n.Status = Status(parsed.Status)
	} else {
		n.Status = heuristicStatus(rawResult)
	}

	if strings.EqualFold(persona, "tester-qa") && n.Status == StatusPass {
		if noTestsExecuted(body, parsed) && !parsed.TDDRedPhaseDetected {
			n.Status = StatusFail
			n.Details = "forced fail: tester-qa reported pass but no tests were actually executed"
		}
	}

	return n
}

// extractJSON parses rawResult as JSON, optionally unwrapping a fenced code
// block first. It returns the parsed struct, the text actually parsed
// (body), and whether parsing succeeded.
func extractJSON(raw string) (personaResult, string, bool) {
	trimmed := strings.TrimSpace(raw)
	candidate := trimmed

	var parsed personaResult
	if err := json.Unmarshal([]byte(candidate), &parsed); err == nil {
		return parsed, candidate, true
	}

	if m := fencedJSONPattern.FindStringSubmatch(raw); m != nil {
		candidate = m[1]
		if err := json.Unmarshal([]byte(candidate), &parsed); err == nil {
			return parsed, candidate, true
		}
	}

	return personaResult{}, raw, false
}

// noTestsExecuted implements the QA override's body-matching rule
// (spec.md §4.5, §8 property 3).
func noTestsExecuted(body string, parsed personaResult) bool {
	var summary struct {
		Passed int `json:"passed"`
		Failed int `json:"failed"`
	}
	if len(parsed.Summary) > 0 && string(parsed.Summary) != "null" &&
		json.Unmarshal(parsed.Summary, &summary) == nil && summary.Passed == 0 && summary.Failed == 0 {
		return true
	}
	for _, p := range noTestsPatterns {
		if p.MatchString(body) {
			return true
		}
	}
	if strings.Contains(strings.ToLower(parsed.TestFramework), "no test framework") {
		return true
	}
	return false
}

func heuristicStatus(text string) Status {
	lower := strings.ToLower(text)
	for _, kw := range negationKeywords {
		if strings.Contains(lower, kw) {
			return StatusFail
		}
	}
	for _, kw := range affirmationKeywords {
		if strings.Contains(lower, kw) {
			return StatusPass
		}
	}
	return StatusUnknown
}
