// Package kgml implements the KGML language: tokenizer, recursive-descent
// parser, typed AST and the line-oriented graph text codec.
package kgml

import "fmt"

// TokenType classifies a lexed token.
type TokenType int

const (
	TokenKeyword TokenType = iota
	TokenClose
	TokenIdent
	TokenNumber
	TokenString
	TokenOp
	TokenSymbol
	TokenEOF
)

func (t TokenType) String() string {
	switch t {
	case TokenKeyword:
		return "KEYWORD"
	case TokenClose:
		return "CLOSE"
	case TokenIdent:
		return "IDENT"
	case TokenNumber:
		return "NUMBER"
	case TokenString:
		return "STRING"
	case TokenOp:
		return "OP"
	case TokenSymbol:
		return "SYMBOL"
	case TokenEOF:
		return "EOF"
	}
	return fmt.Sprintf("TokenType(%d)", int(t))
}

// Token is one lexical unit of KGML source. Pos is the byte offset of the
// token's first character. For string tokens, Value holds the decoded text
// without quotes.
type Token struct {
	Type  TokenType
	Value string
	Pos   int
}

func (t Token) String() string {
	return fmt.Sprintf("Token(%s, %q)", t.Type, t.Value)
}

// Command and block keywords. Each reserved word carries the trailing
// marker character that distinguishes it from a plain identifier.
const (
	KwCreate   = "C►"
	KwUpdate   = "U►"
	KwDelete   = "D►"
	KwEvaluate = "E►"
	KwNavigate = "N►"
	KwIf       = "IF►"
	KwElif     = "ELIF►"
	KwElse     = "ELSE►"
	KwLoop     = "LOOP►"
	KwEnd      = "END►" // reserved but unused: blocks close with the close marker
	KwKG       = "KG►"
	KwKGNode   = "KGNODE►"
	KwKGLink   = "KGLINK►"

	// CloseMarker terminates every block construct.
	CloseMarker = "◄"
)

var reserved = map[string]struct{}{
	KwCreate: {}, KwUpdate: {}, KwDelete: {}, KwEvaluate: {}, KwNavigate: {},
	KwIf: {}, KwElif: {}, KwElse: {}, KwLoop: {}, KwEnd: {},
	KwKG: {}, KwKGNode: {}, KwKGLink: {},
}

// SyntaxError reports a malformed token stream or grammar violation at a
// byte offset in the source.
type SyntaxError struct {
	Pos int
	Msg string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at pos %d: %s", e.Pos, e.Msg)
}

func syntaxErrorf(pos int, format string, args ...any) *SyntaxError {
	return &SyntaxError{Pos: pos, Msg: fmt.Sprintf(format, args...)}
}
