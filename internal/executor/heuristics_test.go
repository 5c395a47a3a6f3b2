// File: internal/executor/heuristics_test.go
package executor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvaluateInstruction(t *testing.T) {
	t.Parallel()

	cases := []struct {
		instruction string
		want        bool
	}{
		{"Check if the deployment was a success", true},
		{"SUCCESS", true},
		{"the statement is true", true},
		{"the rollout Is Successful", true},
		{"check the logs", false},
		{"", false},
		{"succeeding is not the word", false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, evaluateInstruction(tc.instruction), tc.instruction)
	}
}

func TestLinkTarget(t *testing.T) {
	t.Parallel()

	cases := []struct {
		instruction string
		want        string
	}{
		{"connect A -> B", "B"},
		{"connect A -> B with high confidence", "B"},
		{"A->TargetNode", "TargetNode"},
		{"Link To NodeX", "NodeX"},
		{"attach To NodeY.", "NodeY"},
		{"arrow wins -> C even with To D", "C"},
		{"dangling arrow ->", ""},
		{"nothing to find here", ""}, // lowercase "to" does not count
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, linkTarget(tc.instruction), tc.instruction)
	}
}

func TestDeleteLinkTarget(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "B", deleteLinkTarget("drop A -> B"))
	assert.Equal(t, "B", deleteLinkTarget("remove the Link shared with B"))
	assert.Equal(t, "", deleteLinkTarget("with B but no link word before"))
	assert.Equal(t, "", deleteLinkTarget("no target at all"))
}

func TestHeuristicLoopPolicy(t *testing.T) {
	t.Parallel()

	policy := HeuristicLoopPolicy{}
	assert.True(t, policy.ShouldStart("while tasks remain"))
	assert.True(t, policy.ShouldStart("repeat Until done"))
	assert.False(t, policy.ShouldStart("forever"))

	assert.True(t, policy.ShouldContinue("while", 0))
	assert.True(t, policy.ShouldContinue("while", 2))
	assert.False(t, policy.ShouldContinue("while", 3))

	custom := HeuristicLoopPolicy{DemoIterations: 1}
	assert.False(t, custom.ShouldContinue("while", 1))
}
