package kgml

import "fmt"

// CommandKind tags a simple command.
type CommandKind int

const (
	CmdCreate CommandKind = iota
	CmdUpdate
	CmdDelete
	CmdEvaluate
	CmdNavigate
)

// String returns the bare command letter, as recorded in execution logs.
func (k CommandKind) String() string {
	switch k {
	case CmdCreate:
		return "C"
	case CmdUpdate:
		return "U"
	case CmdDelete:
		return "D"
	case CmdEvaluate:
		return "E"
	case CmdNavigate:
		return "N"
	}
	return fmt.Sprintf("CommandKind(%d)", int(k))
}

// Keyword returns the command's source keyword including its marker.
func (k CommandKind) Keyword() string {
	switch k {
	case CmdCreate:
		return KwCreate
	case CmdUpdate:
		return KwUpdate
	case CmdDelete:
		return KwDelete
	case CmdEvaluate:
		return KwEvaluate
	case CmdNavigate:
		return KwNavigate
	}
	return "?"
}

// EntityKind tags the target of a CRUD or evaluate command. Navigate
// commands carry EntityNone.
type EntityKind int

const (
	EntityNone EntityKind = iota
	EntityNode
	EntityLink
)

func (k EntityKind) String() string {
	switch k {
	case EntityNode:
		return "NODE"
	case EntityLink:
		return "LINK"
	case EntityNone:
		return ""
	}
	return fmt.Sprintf("EntityKind(%d)", int(k))
}

// Statement is any top-level or block-level KGML construct.
type Statement interface {
	stmt()
}

// Program is a parsed KGML source: a sequence of statements.
type Program struct {
	Statements []Statement
}

// SimpleCommand is one of the C/U/D/E/N commands: a keyword, an entity tag
// with a target uid (absent for navigate), a natural-language instruction
// and, for navigate, an optional timeout in seconds.
type SimpleCommand struct {
	Cmd         CommandKind
	Entity      EntityKind
	UID         string
	Instruction string
	Timeout     *float64
}

// Branch pairs a condition command with the block it guards. The condition
// is always an evaluate command; nothing else yields a boolean.
type Branch struct {
	Condition *SimpleCommand
	Block     []Statement
}

// Conditional is an IF/ELIF/ELSE chain. At most one branch executes.
type Conditional struct {
	If    Branch
	Elifs []Branch
	Else  []Statement
}

// Loop repeats its block while a natural-language condition holds. The
// condition is a prose string interpreted by the executor's loop policy,
// not an expression.
type Loop struct {
	Condition string
	Block     []Statement
}

// KGBlock declares graph contents directly: a list of node and edge
// declarations applied as create-or-update.
type KGBlock struct {
	Declarations []Declaration
}

// Declaration is a node or edge line inside a KG block.
type Declaration interface {
	decl()
}

// Field is one key="value" pair of a declaration, in source order.
type Field struct {
	Key   string
	Value string
}

// NodeDecl declares one node with its fields.
type NodeDecl struct {
	UID    string
	Fields []Field
}

// EdgeDecl declares one edge between two node uids with its fields.
type EdgeDecl struct {
	SourceUID string
	TargetUID string
	Fields    []Field
}

func (*SimpleCommand) stmt() {}
func (*Conditional) stmt()   {}
func (*Loop) stmt()          {}
func (*KGBlock) stmt()       {}

func (*NodeDecl) decl() {}
func (*EdgeDecl) decl() {}

// FieldValue returns the value of the named field and whether it is set.
func FieldValue(fields []Field, key string) (string, bool) {
	for _, f := range fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return "", false
}
