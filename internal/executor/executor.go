package executor

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/nesthivep/kgml/api/schemas"
	"github.com/nesthivep/kgml/internal/kgml"
)

const (
	// DefaultMaxEvalDepth bounds evaluate nesting through conditionals.
	DefaultMaxEvalDepth = 10
	// DefaultMaxLoopIterations is the hard ceiling on any single loop,
	// regardless of what the loop policy says.
	DefaultMaxLoopIterations = 100

	reasoningNodeType = "ReasoningNode"
	reasoningLinkType = "ReasoningLink"
	genericNodeType   = "GenericNode"
	genericLinkType   = "GenericLink"
)

// ErrEvalDepthExceeded reports that nested evaluation went past the
// configured depth limit.
var ErrEvalDepthExceeded = errors.New("maximum evaluation depth exceeded")

// Executor runs KGML programs against a graph store.
type Executor struct {
	store             schemas.GraphStore
	log               *zap.Logger
	loopPolicy        LoopPolicy
	maxEvalDepth      int
	maxLoopIterations int
}

// Option customizes an Executor.
type Option func(*Executor)

// WithLoopPolicy replaces the default heuristic loop policy.
func WithLoopPolicy(p LoopPolicy) Option {
	return func(e *Executor) {
		if p != nil {
			e.loopPolicy = p
		}
	}
}

// WithMaxEvalDepth sets the evaluate nesting limit.
func WithMaxEvalDepth(n int) Option {
	return func(e *Executor) {
		if n > 0 {
			e.maxEvalDepth = n
		}
	}
}

// WithMaxLoopIterations sets the hard per-loop iteration ceiling.
func WithMaxLoopIterations(n int) Option {
	return func(e *Executor) {
		if n > 0 {
			e.maxLoopIterations = n
		}
	}
}

// New builds an Executor over the given store. A nil logger falls back to
// a no-op logger.
func New(store schemas.GraphStore, logger *zap.Logger, opts ...Option) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Executor{
		store:             store,
		log:               logger.Named("executor"),
		loopPolicy:        HeuristicLoopPolicy{},
		maxEvalDepth:      DefaultMaxEvalDepth,
		maxLoopIterations: DefaultMaxLoopIterations,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute tokenizes, parses and runs a KGML program in a fresh context.
// The context, including its execution log, is returned even on failure
// so callers can see how far the program got.
func (e *Executor) Execute(source string) (*Context, error) {
	ctx := NewContext(e.store, e.maxEvalDepth)
	program, err := kgml.Parse(source)
	if err != nil {
		e.log.Error("Program failed to parse", zap.Error(err))
		ctx.record("program", map[string]any{"stage": "parse"}, err.Error(), false)
		return ctx, err
	}
	if err := e.ExecuteAST(ctx, program); err != nil {
		ctx.record("program", map[string]any{"stage": "execute"}, err.Error(), false)
		return ctx, err
	}
	return ctx, nil
}

// ExecuteAST runs an already-parsed program against the given context.
func (e *Executor) ExecuteAST(ctx *Context, program *kgml.Program) error {
	for _, stmt := range program.Statements {
		if err := e.executeStatement(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (e *Executor) executeStatement(ctx *Context, stmt kgml.Statement) error {
	switch s := stmt.(type) {
	case *kgml.SimpleCommand:
		_, err := e.executeCommand(ctx, s)
		return err
	case *kgml.Conditional:
		return e.executeConditional(ctx, s)
	case *kgml.Loop:
		return e.executeLoop(ctx, s)
	case *kgml.KGBlock:
		return e.executeKGBlock(ctx, s)
	}
	return fmt.Errorf("unsupported statement type %T", stmt)
}

// executeCommand dispatches one simple command and returns its result.
func (e *Executor) executeCommand(ctx *Context, cmd *kgml.SimpleCommand) (any, error) {
	details := map[string]any{
		"entity_type": cmd.Entity.String(),
		"uid":         cmd.UID,
		"instruction": cmd.Instruction,
	}
	if cmd.Timeout != nil {
		details["timeout"] = *cmd.Timeout
	}

	var (
		result any
		err    error
	)
	switch cmd.Cmd {
	case kgml.CmdCreate:
		result, err = e.executeCreate(cmd)
	case kgml.CmdUpdate:
		result, err = e.executeUpdate(cmd)
	case kgml.CmdDelete:
		result, err = e.executeDelete(cmd)
	case kgml.CmdEvaluate:
		result, err = e.executeEvaluate(ctx, cmd)
	case kgml.CmdNavigate:
		result = map[string]any{"status": "navigated", "path": "simulated_path"}
	default:
		err = fmt.Errorf("unknown command %q", cmd.Cmd.Keyword())
	}

	if err != nil {
		e.log.Error("Command failed",
			zap.String("command", cmd.Cmd.String()),
			zap.String("uid", cmd.UID),
			zap.Error(err))
		ctx.record(cmd.Cmd.String(), details, err.Error(), false)
		return nil, err
	}
	if cmd.UID != "" {
		ctx.Results[cmd.UID] = result
	}
	ctx.record(cmd.Cmd.String(), details, result, true)
	return result, nil
}

func (e *Executor) executeCreate(cmd *kgml.SimpleCommand) (any, error) {
	switch cmd.Entity {
	case kgml.EntityNode:
		node := schemas.Node{
			UID:       cmd.UID,
			Type:      reasoningNodeType,
			MetaProps: map[string]any{"instruction": cmd.Instruction},
		}
		if err := e.store.AddNode(node); err != nil {
			return nil, fmt.Errorf("create node %q: %w", cmd.UID, err)
		}
		return map[string]any{"status": "created", "uid": cmd.UID}, nil
	case kgml.EntityLink:
		target := linkTarget(cmd.Instruction)
		if target == "" {
			return nil, fmt.Errorf("create link %q: cannot infer target from instruction", cmd.UID)
		}
		edge := schemas.Edge{
			SourceUID: cmd.UID,
			TargetUID: target,
			Type:      reasoningLinkType,
			MetaProps: map[string]any{"instruction": cmd.Instruction},
		}
		if err := e.store.AddEdge(edge); err != nil {
			return nil, fmt.Errorf("create link %s->%s: %w", cmd.UID, target, err)
		}
		return map[string]any{"status": "created", "source": cmd.UID, "target": target}, nil
	}
	return nil, fmt.Errorf("create: unsupported entity %q", cmd.Entity)
}

func (e *Executor) executeUpdate(cmd *kgml.SimpleCommand) (any, error) {
	switch cmd.Entity {
	case kgml.EntityNode:
		if err := e.store.UpdateNode(cmd.UID, map[string]any{"instruction": cmd.Instruction}); err != nil {
			return nil, fmt.Errorf("update node %q: %w", cmd.UID, err)
		}
		return map[string]any{"status": "updated", "uid": cmd.UID}, nil
	case kgml.EntityLink:
		target := linkTarget(cmd.Instruction)
		if target == "" {
			return nil, fmt.Errorf("update link %q: cannot infer target from instruction", cmd.UID)
		}
		if err := e.store.UpdateEdge(cmd.UID, target, map[string]any{"instruction": cmd.Instruction}); err != nil {
			return nil, fmt.Errorf("update link %s->%s: %w", cmd.UID, target, err)
		}
		return map[string]any{"status": "updated", "source": cmd.UID, "target": target}, nil
	}
	return nil, fmt.Errorf("update: unsupported entity %q", cmd.Entity)
}

func (e *Executor) executeDelete(cmd *kgml.SimpleCommand) (any, error) {
	switch cmd.Entity {
	case kgml.EntityNode:
		e.store.RemoveNode(cmd.UID)
		return map[string]any{"status": "deleted", "uid": cmd.UID}, nil
	case kgml.EntityLink:
		target := deleteLinkTarget(cmd.Instruction)
		if target == "" {
			return nil, fmt.Errorf("delete link %q: cannot infer target from instruction", cmd.UID)
		}
		e.store.RemoveEdge(cmd.UID, target)
		return map[string]any{"status": "deleted", "source": cmd.UID, "target": target}, nil
	}
	return nil, fmt.Errorf("delete: unsupported entity %q", cmd.Entity)
}

// executeEvaluate applies the placeholder evaluation heuristic to an
// existing node and binds the boolean outcome to eval_<uid>. Only nodes
// can be evaluated.
func (e *Executor) executeEvaluate(ctx *Context, cmd *kgml.SimpleCommand) (any, error) {
	if cmd.Entity != kgml.EntityNode {
		return nil, fmt.Errorf("evaluate: unsupported entity %q", cmd.Entity)
	}
	if ctx.evalDepth >= ctx.MaxEvalDepth {
		return nil, fmt.Errorf("evaluate %q: %w", cmd.UID, ErrEvalDepthExceeded)
	}
	ctx.evalDepth++
	defer func() { ctx.evalDepth-- }()

	if _, ok := e.store.GetNode(cmd.UID); !ok {
		return nil, fmt.Errorf("evaluate %q: node not found", cmd.UID)
	}
	result := evaluateInstruction(cmd.Instruction)
	ctx.Variables["eval_"+cmd.UID] = result
	return result, nil
}

// executeConditional runs at most one branch: the first whose evaluate
// condition holds, else the ELSE block. Nested conditionals share the
// evaluation depth budget so runaway nesting fails instead of recursing.
func (e *Executor) executeConditional(ctx *Context, cond *kgml.Conditional) error {
	if ctx.evalDepth >= ctx.MaxEvalDepth {
		return fmt.Errorf("conditional: %w", ErrEvalDepthExceeded)
	}
	ctx.evalDepth++
	defer func() { ctx.evalDepth-- }()

	branches := append([]kgml.Branch{cond.If}, cond.Elifs...)
	for _, branch := range branches {
		result, err := e.executeCommand(ctx, branch.Condition)
		if err != nil {
			return err
		}
		truthy, _ := result.(bool)
		if truthy {
			return e.executeBlock(ctx, branch.Block)
		}
	}
	if cond.Else != nil {
		return e.executeBlock(ctx, cond.Else)
	}
	return nil
}

// executeLoop defers to the loop policy for start and continuation, with
// a hard iteration ceiling as the backstop.
func (e *Executor) executeLoop(ctx *Context, loop *kgml.Loop) error {
	if !e.loopPolicy.ShouldStart(loop.Condition) {
		ctx.record("LOOP", map[string]any{"condition": loop.Condition}, map[string]any{"iterations": 0}, true)
		return nil
	}
	iterations := 0
	for e.loopPolicy.ShouldContinue(loop.Condition, iterations) {
		if iterations >= e.maxLoopIterations {
			e.log.Warn("Loop hit iteration ceiling",
				zap.String("condition", loop.Condition),
				zap.Int("ceiling", e.maxLoopIterations))
			break
		}
		if err := e.executeBlock(ctx, loop.Block); err != nil {
			return err
		}
		iterations++
	}
	ctx.record("LOOP", map[string]any{"condition": loop.Condition}, map[string]any{"iterations": iterations}, true)
	return nil
}

func (e *Executor) executeBlock(ctx *Context, block []kgml.Statement) error {
	for _, stmt := range block {
		if err := e.executeStatement(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// executeKGBlock applies node and edge declarations as create-or-update,
// in declaration order. Edge declarations require both endpoints to exist
// by the time the declaration runs.
func (e *Executor) executeKGBlock(ctx *Context, block *kgml.KGBlock) error {
	applied := 0
	for _, decl := range block.Declarations {
		switch d := decl.(type) {
		case *kgml.NodeDecl:
			if err := e.applyNodeDecl(ctx, d); err != nil {
				return err
			}
		case *kgml.EdgeDecl:
			if err := e.applyEdgeDecl(ctx, d); err != nil {
				return err
			}
		}
		applied++
	}
	ctx.record("KG", map[string]any{"declarations": len(block.Declarations)},
		map[string]any{"status": "applied", "applied": applied}, true)
	return nil
}

func (e *Executor) applyNodeDecl(ctx *Context, d *kgml.NodeDecl) error {
	details := map[string]any{"uid": d.UID}
	typ := genericNodeType
	metaProps := make(map[string]any, len(d.Fields))
	for _, f := range d.Fields {
		if f.Key == "type" {
			typ = f.Value
			continue
		}
		metaProps[f.Key] = f.Value
	}

	if _, ok := e.store.GetNode(d.UID); ok {
		// A redeclaration replaces the type and meta properties wholesale.
		update := map[string]any{"type": typ, "meta_props": metaProps}
		if err := e.store.UpdateNode(d.UID, update); err != nil {
			ctx.record("KGNODE", details, err.Error(), false)
			return fmt.Errorf("declare node %q: %w", d.UID, err)
		}
		ctx.record("KGNODE", details, map[string]any{"status": "updated"}, true)
		return nil
	}

	node := schemas.Node{UID: d.UID, Type: typ, MetaProps: metaProps}
	if err := e.store.AddNode(node); err != nil {
		ctx.record("KGNODE", details, err.Error(), false)
		return fmt.Errorf("declare node %q: %w", d.UID, err)
	}
	ctx.record("KGNODE", details, map[string]any{"status": "created"}, true)
	return nil
}

func (e *Executor) applyEdgeDecl(ctx *Context, d *kgml.EdgeDecl) error {
	details := map[string]any{"source": d.SourceUID, "target": d.TargetUID}

	if _, ok := e.store.GetNode(d.SourceUID); !ok {
		err := fmt.Errorf("source node not found: %s", d.SourceUID)
		ctx.record("KGLINK", details, err.Error(), false)
		return err
	}
	if _, ok := e.store.GetNode(d.TargetUID); !ok {
		err := fmt.Errorf("target node not found: %s", d.TargetUID)
		ctx.record("KGLINK", details, err.Error(), false)
		return err
	}

	typ := genericLinkType
	metaProps := make(map[string]any, len(d.Fields))
	for _, f := range d.Fields {
		if f.Key == "type" {
			typ = f.Value
			continue
		}
		metaProps[f.Key] = f.Value
	}

	if _, ok := e.store.GetEdge(d.SourceUID, d.TargetUID); ok {
		// A redeclaration replaces the type and meta properties wholesale.
		update := map[string]any{"type": typ, "meta_props": metaProps}
		if err := e.store.UpdateEdge(d.SourceUID, d.TargetUID, update); err != nil {
			ctx.record("KGLINK", details, err.Error(), false)
			return fmt.Errorf("declare link %s->%s: %w", d.SourceUID, d.TargetUID, err)
		}
		ctx.record("KGLINK", details, map[string]any{"status": "updated"}, true)
		return nil
	}

	edge := schemas.Edge{SourceUID: d.SourceUID, TargetUID: d.TargetUID, Type: typ, MetaProps: metaProps}
	if err := e.store.AddEdge(edge); err != nil {
		ctx.record("KGLINK", details, err.Error(), false)
		return fmt.Errorf("declare link %s->%s: %w", d.SourceUID, d.TargetUID, err)
	}
	ctx.record("KGLINK", details, map[string]any{"status": "created"}, true)
	return nil
}
