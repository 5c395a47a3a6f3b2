package executor

import "strings"

// LoopPolicy decides whether a loop's natural-language condition lets the
// loop start and how long it keeps running. Injectable so callers can
// swap the placeholder heuristic for a model-backed interpreter.
type LoopPolicy interface {
	// ShouldStart reports whether the loop runs at all.
	ShouldStart(condition string) bool
	// ShouldContinue reports whether another iteration runs. iteration is
	// the number of completed iterations.
	ShouldContinue(condition string, iteration int) bool
}

// HeuristicLoopPolicy is the default placeholder: conditions phrased with
// "while" or "until" enable the loop, and it runs a fixed small number of
// iterations.
type HeuristicLoopPolicy struct {
	DemoIterations int
}

func (p HeuristicLoopPolicy) iterations() int {
	if p.DemoIterations <= 0 {
		return 3
	}
	return p.DemoIterations
}

func (p HeuristicLoopPolicy) ShouldStart(condition string) bool {
	lowered := strings.ToLower(condition)
	return strings.Contains(lowered, "while") || strings.Contains(lowered, "until")
}

func (p HeuristicLoopPolicy) ShouldContinue(condition string, iteration int) bool {
	return iteration < p.iterations()
}
