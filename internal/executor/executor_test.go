// File: internal/executor/executor_test.go
package executor

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nesthivep/kgml/api/schemas"
	"github.com/nesthivep/kgml/internal/knowledgegraph"
)

func newTestExecutor(t *testing.T, opts ...Option) (*Executor, *knowledgegraph.Graph) {
	t.Helper()
	graph := knowledgegraph.New(zap.NewNop())
	return New(graph, zap.NewNop(), opts...), graph
}

func TestExecuteCreateAndEvaluate(t *testing.T) {
	t.Parallel()
	exec, graph := newTestExecutor(t)

	ctx, err := exec.Execute(`
		C► NODE TestNode "Create test node" ◄
		E► NODE TestNode "Check if creation is successful" ◄
	`)
	require.NoError(t, err)

	// One log entry per command.
	require.Len(t, ctx.Log, 2)
	assert.Equal(t, "C", ctx.Log[0].CommandType)
	assert.True(t, ctx.Log[0].Success)
	assert.Equal(t, "E", ctx.Log[1].CommandType)
	assert.True(t, ctx.Log[1].Success)

	node, ok := graph.GetNode("TestNode")
	require.True(t, ok)
	assert.Equal(t, "ReasoningNode", node.Type)
	assert.Equal(t, "Create test node", node.MetaProps["instruction"])

	assert.Equal(t, true, ctx.Variables["eval_TestNode"])
	assert.Equal(t, true, ctx.Results["TestNode"])
}

func TestExecuteEvaluateHeuristic(t *testing.T) {
	t.Parallel()
	exec, graph := newTestExecutor(t)
	require.NoError(t, graph.AddNode(schemas.Node{UID: "A", Type: "Concept", MetaProps: map[string]any{}}))

	t.Run("affirmative phrases are true", func(t *testing.T) {
		for _, instr := range []string{"operation success", "The check IS TRUE", "deployment is successful"} {
			ctx, err := exec.Execute(fmt.Sprintf(`E► NODE A %q ◄`, instr))
			require.NoError(t, err)
			assert.Equal(t, true, ctx.Variables["eval_A"], instr)
		}
	})

	t.Run("anything else is false", func(t *testing.T) {
		ctx, err := exec.Execute(`E► NODE A "check the weather" ◄`)
		require.NoError(t, err)
		assert.Equal(t, false, ctx.Variables["eval_A"])
	})
}

func TestExecuteEvaluateRequiresNode(t *testing.T) {
	t.Parallel()

	t.Run("missing node fails", func(t *testing.T) {
		t.Parallel()
		exec, _ := newTestExecutor(t)

		ctx, err := exec.Execute(`E► NODE Ghost "this is successful" ◄`)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "node not found")
		_, bound := ctx.Variables["eval_Ghost"]
		assert.False(t, bound, "failed evaluation binds nothing")
	})

	t.Run("links cannot be evaluated", func(t *testing.T) {
		t.Parallel()
		exec, graph := newTestExecutor(t)
		require.NoError(t, graph.AddNode(schemas.Node{UID: "X", Type: "Concept", MetaProps: map[string]any{}}))

		_, err := exec.Execute(`E► LINK X "success" ◄`)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported entity")
	})
}

func TestExecuteUpdateAndDelete(t *testing.T) {
	t.Parallel()
	exec, graph := newTestExecutor(t)

	_, err := exec.Execute(`
		C► NODE A "start" ◄
		U► NODE A "revised instruction" ◄
	`)
	require.NoError(t, err)

	node, _ := graph.GetNode("A")
	assert.Equal(t, "revised instruction", node.MetaProps["instruction"])

	_, err = exec.Execute(`D► NODE A "remove it" ◄`)
	require.NoError(t, err)
	_, ok := graph.GetNode("A")
	assert.False(t, ok)

	// Update after delete fails and the failure is logged.
	ctx, err := exec.Execute(`U► NODE A "too late" ◄`)
	require.Error(t, err)
	require.NotEmpty(t, ctx.Log)
	assert.False(t, ctx.Log[0].Success)
}

func TestExecuteLinkCommands(t *testing.T) {
	t.Parallel()

	t.Run("arrow target", func(t *testing.T) {
		t.Parallel()
		exec, graph := newTestExecutor(t)
		_, err := exec.Execute(`
			C► NODE A "first" ◄
			C► NODE B "second" ◄
			C► LINK A "connect A -> B" ◄
		`)
		require.NoError(t, err)
		edge, ok := graph.GetEdge("A", "B")
		require.True(t, ok)
		assert.Equal(t, "ReasoningLink", edge.Type)
	})

	t.Run("arrow target ignores trailing prose", func(t *testing.T) {
		t.Parallel()
		exec, graph := newTestExecutor(t)
		_, err := exec.Execute(`
			C► NODE A "first" ◄
			C► NODE B "second" ◄
			C► LINK A "connect A -> B with high confidence" ◄
		`)
		require.NoError(t, err)
		_, ok := graph.GetEdge("A", "B")
		assert.True(t, ok)
	})

	t.Run("prose To target", func(t *testing.T) {
		t.Parallel()
		exec, graph := newTestExecutor(t)
		_, err := exec.Execute(`
			C► NODE A "first" ◄
			C► NODE B "second" ◄
			C► LINK A "Link To B" ◄
		`)
		require.NoError(t, err)
		_, ok := graph.GetEdge("A", "B")
		assert.True(t, ok)
	})

	t.Run("missing endpoint fails", func(t *testing.T) {
		t.Parallel()
		exec, _ := newTestExecutor(t)
		_, err := exec.Execute(`
			C► NODE A "first" ◄
			C► LINK A "connect A -> Nowhere" ◄
		`)
		require.Error(t, err)
	})

	t.Run("no inferable target fails", func(t *testing.T) {
		t.Parallel()
		exec, _ := newTestExecutor(t)
		_, err := exec.Execute(`
			C► NODE A "first" ◄
			C► LINK A "do something vague" ◄
		`)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cannot infer target")
	})

	t.Run("delete link by with phrasing", func(t *testing.T) {
		t.Parallel()
		exec, graph := newTestExecutor(t)
		_, err := exec.Execute(`
			C► NODE A "first" ◄
			C► NODE B "second" ◄
			C► LINK A "connect A -> B" ◄
			D► LINK A "remove the Link shared with B" ◄
		`)
		require.NoError(t, err)
		_, ok := graph.GetEdge("A", "B")
		assert.False(t, ok)
	})
}

func TestExecuteNavigate(t *testing.T) {
	t.Parallel()
	exec, _ := newTestExecutor(t)

	ctx, err := exec.Execute(`N► 5 "Find a path to the goal" ◄`)
	require.NoError(t, err)
	require.Len(t, ctx.Log, 1)

	result, ok := ctx.Log[0].Result.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "navigated", result["status"])
	assert.Equal(t, "simulated_path", result["path"])
	assert.Equal(t, 5.0, ctx.Log[0].Details["timeout"])
}

func TestExecuteConditional(t *testing.T) {
	t.Parallel()

	t.Run("then branch runs when condition holds", func(t *testing.T) {
		t.Parallel()
		exec, graph := newTestExecutor(t)
		_, err := exec.Execute(`
			C► NODE A "seed" ◄
			IF► E► NODE A "this is true" ◄
				C► NODE Then "then" ◄
			ELSE►
				C► NODE Else "else" ◄
			◄
		`)
		require.NoError(t, err)
		_, hasThen := graph.GetNode("Then")
		_, hasElse := graph.GetNode("Else")
		assert.True(t, hasThen)
		assert.False(t, hasElse, "branches are mutually exclusive")
	})

	t.Run("else branch runs when condition fails", func(t *testing.T) {
		t.Parallel()
		exec, graph := newTestExecutor(t)
		_, err := exec.Execute(`
			C► NODE A "seed" ◄
			IF► E► NODE A "nothing affirmative here" ◄
				C► NODE Then "then" ◄
			ELSE►
				C► NODE Else "else" ◄
			◄
		`)
		require.NoError(t, err)
		_, hasThen := graph.GetNode("Then")
		_, hasElse := graph.GetNode("Else")
		assert.False(t, hasThen)
		assert.True(t, hasElse)
	})

	t.Run("first matching elif wins", func(t *testing.T) {
		t.Parallel()
		exec, graph := newTestExecutor(t)
		_, err := exec.Execute(`
			C► NODE A "seed" ◄
			IF► E► NODE A "negative" ◄
				C► NODE First "1" ◄
			ELIF► E► NODE A "this is true" ◄
				C► NODE Second "2" ◄
			ELIF► E► NODE A "also success" ◄
				C► NODE Third "3" ◄
			◄
		`)
		require.NoError(t, err)
		_, hasSecond := graph.GetNode("Second")
		_, hasThird := graph.GetNode("Third")
		assert.True(t, hasSecond)
		assert.False(t, hasThird)
	})

	t.Run("deep nesting trips the depth guard", func(t *testing.T) {
		t.Parallel()
		exec, _ := newTestExecutor(t, WithMaxEvalDepth(3))

		source := `C► NODE A "seed" ◄` + "\n" + nestedConditional(5)
		_, err := exec.Execute(source)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrEvalDepthExceeded)
	})
}

// nestedConditional builds depth levels of IF blocks, innermost updating A.
func nestedConditional(depth int) string {
	if depth == 0 {
		return `U► NODE A "bottom" ◄`
	}
	return fmt.Sprintf("IF► E► NODE A \"is true\" ◄\n%s\n◄", nestedConditional(depth-1))
}

func TestExecuteLoop(t *testing.T) {
	t.Parallel()

	t.Run("default policy runs the demo iteration count", func(t *testing.T) {
		t.Parallel()
		exec, graph := newTestExecutor(t)
		ctx, err := exec.Execute(`
			C► NODE Counter "seed" ◄
			LOOP► "while work remains" ◄
				U► NODE Counter "tick" ◄
			◄
		`)
		require.NoError(t, err)

		// seed + loop entry + 3 iterations of one update each.
		assert.Len(t, graph.NodeHistory("Counter"), 4)

		last := ctx.Log[len(ctx.Log)-1]
		assert.Equal(t, "LOOP", last.CommandType)
		result := last.Result.(map[string]any)
		assert.Equal(t, 3, result["iterations"])
	})

	t.Run("non-loop phrasing never starts", func(t *testing.T) {
		t.Parallel()
		exec, graph := newTestExecutor(t)
		_, err := exec.Execute(`
			C► NODE Counter "seed" ◄
			LOOP► "just some words" ◄
				U► NODE Counter "tick" ◄
			◄
		`)
		require.NoError(t, err)
		assert.Len(t, graph.NodeHistory("Counter"), 1)
	})

	t.Run("hard ceiling stops a runaway policy", func(t *testing.T) {
		t.Parallel()
		exec, _ := newTestExecutor(t,
			WithLoopPolicy(alwaysLoopPolicy{}),
			WithMaxLoopIterations(7))

		ctx, err := exec.Execute(`
			C► NODE Counter "seed" ◄
			LOOP► "forever" ◄
				U► NODE Counter "tick" ◄
			◄
		`)
		require.NoError(t, err)

		last := ctx.Log[len(ctx.Log)-1]
		result := last.Result.(map[string]any)
		assert.Equal(t, 7, result["iterations"])
	})
}

// alwaysLoopPolicy never stops on its own; only the hard ceiling ends it.
type alwaysLoopPolicy struct{}

func (alwaysLoopPolicy) ShouldStart(string) bool         { return true }
func (alwaysLoopPolicy) ShouldContinue(string, int) bool { return true }

func TestExecuteKGBlock(t *testing.T) {
	t.Parallel()

	t.Run("declarations create and update", func(t *testing.T) {
		t.Parallel()
		exec, graph := newTestExecutor(t)
		ctx, err := exec.Execute(`
			KG►
			KGNODE► A : type="Task", status="open"
			KGNODE► B : type="Task"
			KGLINK► A -> B : type="blocks"
			◄
		`)
		require.NoError(t, err)

		a, ok := graph.GetNode("A")
		require.True(t, ok)
		assert.Equal(t, "Task", a.Type)
		assert.Equal(t, "open", a.MetaProps["status"])
		_, ok = graph.GetEdge("A", "B")
		assert.True(t, ok)

		// Per-declaration entries plus the aggregate KG entry.
		var kinds []string
		for _, rec := range ctx.Log {
			kinds = append(kinds, rec.CommandType)
		}
		assert.Equal(t, []string{"KGNODE", "KGNODE", "KGLINK", "KG"}, kinds)

		// Re-declaring updates instead of duplicating.
		_, err = exec.Execute("KG►\nKGNODE► A : status=\"closed\"\n◄")
		require.NoError(t, err)
		a, _ = graph.GetNode("A")
		assert.Equal(t, "closed", a.MetaProps["status"])
		assert.Equal(t, 2, graph.Stats().Nodes)
	})

	t.Run("missing type defaults to the generic kinds", func(t *testing.T) {
		t.Parallel()
		exec, graph := newTestExecutor(t)
		_, err := exec.Execute(`
			KG►
			KGNODE► A : status="open"
			KGNODE► B : status="open"
			KGLINK► A -> B : weight="1"
			◄
		`)
		require.NoError(t, err)

		a, _ := graph.GetNode("A")
		assert.Equal(t, "GenericNode", a.Type)
		edge, ok := graph.GetEdge("A", "B")
		require.True(t, ok)
		assert.Equal(t, "GenericLink", edge.Type)
	})

	t.Run("redeclaration replaces meta properties wholesale", func(t *testing.T) {
		t.Parallel()
		exec, graph := newTestExecutor(t)
		_, err := exec.Execute("KG►\nKGNODE► A : type=\"Task\", old=\"stale\"\n◄")
		require.NoError(t, err)
		_, err = exec.Execute("KG►\nKGNODE► A : type=\"Step\", fresh=\"new\"\n◄")
		require.NoError(t, err)

		a, _ := graph.GetNode("A")
		assert.Equal(t, "Step", a.Type)
		assert.Equal(t, "new", a.MetaProps["fresh"])
		_, stale := a.MetaProps["old"]
		assert.False(t, stale, "old meta properties do not survive a redeclaration")
	})

	t.Run("link with missing endpoint parses but fails at execution", func(t *testing.T) {
		t.Parallel()
		exec, _ := newTestExecutor(t)
		ctx, err := exec.Execute(`
			KG►
			KGNODE► A : type="Task"
			KGLINK► A -> Missing : type="blocks"
			◄
		`)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "target node not found: Missing")

		var failed *Record
		for i := range ctx.Log {
			if ctx.Log[i].CommandType == "KGLINK" {
				failed = &ctx.Log[i]
			}
		}
		require.NotNil(t, failed)
		assert.False(t, failed.Success)
	})
}

func TestExecuteParseFailure(t *testing.T) {
	t.Parallel()
	exec, _ := newTestExecutor(t)

	ctx, err := exec.Execute(`C► NODE Broken "missing close marker"`)
	require.Error(t, err)

	require.Len(t, ctx.Log, 1)
	assert.Equal(t, "program", ctx.Log[0].CommandType)
	assert.False(t, ctx.Log[0].Success)
	assert.Equal(t, "parse", ctx.Log[0].Details["stage"])
}

func TestRecordSnapshotsVariables(t *testing.T) {
	t.Parallel()
	exec, _ := newTestExecutor(t)

	ctx, err := exec.Execute(`
		C► NODE A "seed" ◄
		E► NODE A "is true" ◄
		E► NODE A "negative now" ◄
	`)
	require.NoError(t, err)
	require.Len(t, ctx.Log, 3)

	// Each record captures the bindings as they stood at that moment.
	_, boundEarly := ctx.Log[0].Variables["eval_A"]
	assert.False(t, boundEarly)
	assert.Equal(t, true, ctx.Log[1].Variables["eval_A"])
	assert.Equal(t, false, ctx.Log[2].Variables["eval_A"])
}

func TestContextIsolation(t *testing.T) {
	t.Parallel()
	exec, _ := newTestExecutor(t)

	first, err := exec.Execute(`
		C► NODE A "seed" ◄
		E► NODE A "is true" ◄
	`)
	require.NoError(t, err)
	require.NotEmpty(t, first.Variables)

	second, err := exec.Execute(`U► NODE A "again" ◄`)
	require.NoError(t, err)
	assert.Empty(t, second.Variables, "each execution starts with fresh bindings")
	assert.Len(t, second.Log, 1)
}

