// Package executor walks a parsed KGML program and applies it to a
// knowledge graph store, recording every step in an execution log.
package executor

import "github.com/nesthivep/kgml/api/schemas"

// Record is one entry in the execution log: which command ran, what it
// did, and a snapshot of the variable bindings after it finished.
type Record struct {
	CommandType string         `json:"command_type"`
	Details     map[string]any `json:"details"`
	Result      any            `json:"result"`
	Success     bool           `json:"success"`
	Variables   map[string]any `json:"variables"`
}

// Context carries the mutable state of one program execution: command
// results keyed by target uid, variable bindings, the execution log, and
// the evaluate-nesting depth guard. A fresh Context is created per
// Execute call; it is not safe for concurrent use.
type Context struct {
	Store        schemas.GraphStore
	Results      map[string]any
	Variables    map[string]any
	Log          []Record
	MaxEvalDepth int

	evalDepth int
}

// NewContext builds an empty execution context bound to the given store.
func NewContext(store schemas.GraphStore, maxEvalDepth int) *Context {
	if maxEvalDepth <= 0 {
		maxEvalDepth = DefaultMaxEvalDepth
	}
	return &Context{
		Store:        store,
		Results:      make(map[string]any),
		Variables:    make(map[string]any),
		MaxEvalDepth: maxEvalDepth,
	}
}

// record appends a log entry, snapshotting the current variables.
func (c *Context) record(commandType string, details map[string]any, result any, success bool) {
	vars := make(map[string]any, len(c.Variables))
	for k, v := range c.Variables {
		vars[k] = v
	}
	if details == nil {
		details = map[string]any{}
	}
	c.Log = append(c.Log, Record{
		CommandType: commandType,
		Details:     details,
		Result:      result,
		Success:     success,
		Variables:   vars,
	})
}
