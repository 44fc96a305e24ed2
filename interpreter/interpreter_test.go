package interpreter

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInterpretExplicitStatus(t *testing.T) {
	n := Interpret("code-reviewer", `{"status":"pass","summary":"looks good"}`)
	require.Equal(t, StatusPass, n.Status)
}

func TestInterpretQAForcedFail(t *testing.T) {
	raw := `{"status":"pass","summary":{"passed":0,"failed":0,"skipped":0},"test_framework":"no test framework found"}`
	n := Interpret("tester-qa", raw)
	require.Equal(t, StatusFail, n.Status)
	require.Contains(t, n.Details, "forced fail")
}

func TestInterpretQAForcedFailNoTestsPhrase(t *testing.T) {
	raw := `{"status":"pass","summary":"no tests found in repository"}`
	n := Interpret("tester-qa", raw)
	require.Equal(t, StatusFail, n.Status)
}

func TestInterpretQATDDRedPhaseSuppressesOverride(t *testing.T) {
	raw := `{"status":"pass","summary":{"passed":0,"failed":0},"tdd_red_phase_detected":true}`
	n := Interpret("tester-qa", raw)
	require.Equal(t, StatusPass, n.Status)
}

func TestInterpretFencedJSON(t *testing.T) {
	raw := "Here is my review:\n```json\n{\"status\":\"fail\",\"summary\":\"nope\"}\n```\n"
	n := Interpret("security", raw)
	require.Equal(t, StatusFail, n.Status)
}

func TestInterpretHeuristic(t *testing.T) {
	require.Equal(t, StatusPass, Interpret("devops", "Deployment approved, all checks green").Status)
	require.Equal(t, StatusFail, Interpret("devops", "Deployment failed: timeout").Status)
	require.Equal(t, StatusUnknown, Interpret("devops", "Still thinking about this one").Status)
}

func TestInterpretNonQAPassIsNotForced(t *testing.T) {
	raw := `{"status":"pass","summary":{"passed":0,"failed":0},"test_framework":"no test framework found"}`
	n := Interpret("code-reviewer", raw)
	require.Equal(t, StatusPass, n.Status)
}
