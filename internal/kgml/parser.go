package kgml

import "strconv"

// Parse is the convenience entry point: tokenize the source and parse the
// resulting stream into a Program.
func Parse(src string) (*Program, error) {
	tokens, err := Tokenize(src)
	if err != nil {
		return nil, err
	}
	return NewParser(tokens).ParseProgram()
}

// Parser consumes a token stream and builds the AST. It is a plain
// recursive-descent parser; block constructs are parsed by reading
// statements until a caller-specified stop token appears, which the caller
// then consumes itself.
type Parser struct {
	tokens []Token
	pos    int
}

// NewParser wraps an already-tokenized stream. The stream must end with an
// EOF token, as produced by Tokenize.
func NewParser(tokens []Token) *Parser {
	if len(tokens) == 0 {
		tokens = []Token{{Type: TokenEOF}}
	}
	return &Parser{tokens: tokens}
}

func (p *Parser) current() Token {
	if p.pos >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1]
	}
	return p.tokens[p.pos]
}

func (p *Parser) eat(expected TokenType) (Token, error) {
	tok := p.current()
	if tok.Type != expected {
		return Token{}, syntaxErrorf(tok.Pos, "expected %s but got %s %q", expected, tok.Type, tok.Value)
	}
	p.pos++
	return tok, nil
}

func (p *Parser) eatKeyword(value string) (Token, error) {
	tok := p.current()
	if tok.Type != TokenKeyword || tok.Value != value {
		return Token{}, syntaxErrorf(tok.Pos, "expected %q but got %s %q", value, tok.Type, tok.Value)
	}
	p.pos++
	return tok, nil
}

func (p *Parser) eatClose() error {
	tok := p.current()
	if tok.Type != TokenClose {
		return syntaxErrorf(tok.Pos, "expected close marker %q but got %s %q", CloseMarker, tok.Type, tok.Value)
	}
	p.pos++
	return nil
}

// ParseProgram consumes the entire stream and returns the Program.
func (p *Parser) ParseProgram() (*Program, error) {
	var statements []Statement
	for p.current().Type != TokenEOF {
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		statements = append(statements, stmt)
	}
	return &Program{Statements: statements}, nil
}

func (p *Parser) parseStatement() (Statement, error) {
	tok := p.current()
	if tok.Type != TokenKeyword {
		return nil, syntaxErrorf(tok.Pos, "unexpected token %s %q", tok.Type, tok.Value)
	}
	switch tok.Value {
	case KwCreate, KwUpdate, KwDelete, KwEvaluate, KwNavigate:
		return p.parseSimpleCommand()
	case KwIf:
		return p.parseConditional()
	case KwLoop:
		return p.parseLoop()
	case KwKG:
		return p.parseKGBlock()
	}
	return nil, syntaxErrorf(tok.Pos, "unexpected keyword %q", tok.Value)
}

// parseSimpleCommand handles the uniform CRUD/evaluate shape
//
//	<CMD> <NODE|LINK> <uid> "<instruction>" ◄
//
// and the navigate shape
//
//	N► [<timeout>] "<instruction>" ◄
func (p *Parser) parseSimpleCommand() (*SimpleCommand, error) {
	kw, err := p.eat(TokenKeyword)
	if err != nil {
		return nil, err
	}

	if kw.Value == KwNavigate {
		cmd := &SimpleCommand{Cmd: CmdNavigate}
		if p.current().Type == TokenNumber {
			numTok, _ := p.eat(TokenNumber)
			timeout, err := strconv.ParseFloat(numTok.Value, 64)
			if err != nil {
				return nil, syntaxErrorf(numTok.Pos, "invalid timeout %q", numTok.Value)
			}
			cmd.Timeout = &timeout
		}
		instr, err := p.eat(TokenString)
		if err != nil {
			return nil, err
		}
		cmd.Instruction = instr.Value
		if err := p.eatClose(); err != nil {
			return nil, err
		}
		return cmd, nil
	}

	var kind CommandKind
	switch kw.Value {
	case KwCreate:
		kind = CmdCreate
	case KwUpdate:
		kind = CmdUpdate
	case KwDelete:
		kind = CmdDelete
	case KwEvaluate:
		kind = CmdEvaluate
	default:
		return nil, syntaxErrorf(kw.Pos, "unknown simple command %q", kw.Value)
	}

	etype, err := p.eat(TokenIdent)
	if err != nil {
		return nil, err
	}
	var entity EntityKind
	switch etype.Value {
	case "NODE":
		entity = EntityNode
	case "LINK":
		entity = EntityLink
	default:
		return nil, syntaxErrorf(etype.Pos, "expected entity type NODE or LINK, got %q", etype.Value)
	}

	uid, err := p.eat(TokenIdent)
	if err != nil {
		return nil, err
	}
	instr, err := p.eat(TokenString)
	if err != nil {
		return nil, err
	}
	if err := p.eatClose(); err != nil {
		return nil, err
	}
	return &SimpleCommand{Cmd: kind, Entity: entity, UID: uid.Value, Instruction: instr.Value}, nil
}

// parseConditional handles
//
//	IF► <evaluate-command> <block>
//	{ ELIF► <evaluate-command> <block> }
//	[ ELSE► <block> ]
//	◄
func (p *Parser) parseConditional() (*Conditional, error) {
	if _, err := p.eatKeyword(KwIf); err != nil {
		return nil, err
	}
	ifCond, err := p.parseConditionCommand()
	if err != nil {
		return nil, err
	}
	ifBlock, err := p.parseBlock(KwElif, KwElse)
	if err != nil {
		return nil, err
	}
	cond := &Conditional{If: Branch{Condition: ifCond, Block: ifBlock}}

	for p.current().Type == TokenKeyword && p.current().Value == KwElif {
		p.pos++
		elifCond, err := p.parseConditionCommand()
		if err != nil {
			return nil, err
		}
		elifBlock, err := p.parseBlock(KwElif, KwElse)
		if err != nil {
			return nil, err
		}
		cond.Elifs = append(cond.Elifs, Branch{Condition: elifCond, Block: elifBlock})
	}

	if p.current().Type == TokenKeyword && p.current().Value == KwElse {
		p.pos++
		elseBlock, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		cond.Else = elseBlock
	}

	if err := p.eatClose(); err != nil {
		return nil, err
	}
	return cond, nil
}

// parseConditionCommand parses a branch condition, which must be an
// evaluate command: it is the only command with a boolean result.
func (p *Parser) parseConditionCommand() (*SimpleCommand, error) {
	tok := p.current()
	cmd, err := p.parseSimpleCommand()
	if err != nil {
		return nil, err
	}
	if cmd.Cmd != CmdEvaluate {
		return nil, syntaxErrorf(tok.Pos, "condition must be an evaluate command, got %q", cmd.Cmd.Keyword())
	}
	return cmd, nil
}

// parseLoop handles
//
//	LOOP► "<condition>" ◄
//	<block>
//	◄
func (p *Parser) parseLoop() (*Loop, error) {
	if _, err := p.eatKeyword(KwLoop); err != nil {
		return nil, err
	}
	condTok, err := p.eat(TokenString)
	if err != nil {
		return nil, err
	}
	if err := p.eatClose(); err != nil {
		return nil, err
	}
	block, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	if err := p.eatClose(); err != nil {
		return nil, err
	}
	return &Loop{Condition: condTok.Value, Block: block}, nil
}

// parseBlock reads statements until the close marker or one of the given
// stop keywords appears. The stop token is left for the caller to consume.
func (p *Parser) parseBlock(stopKeywords ...string) ([]Statement, error) {
	var stmts []Statement
	for {
		tok := p.current()
		if tok.Type == TokenClose {
			return stmts, nil
		}
		if tok.Type == TokenEOF {
			return nil, syntaxErrorf(tok.Pos, "unterminated block: expected close marker %q", CloseMarker)
		}
		if tok.Type == TokenKeyword {
			stopped := false
			for _, kw := range stopKeywords {
				if tok.Value == kw {
					stopped = true
					break
				}
			}
			if stopped {
				return stmts, nil
			}
		}
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)
	}
}

// parseKGBlock handles
//
//	KG►
//	KGNODE► uid : key1="value1", key2="value2"
//	KGLINK► source -> target : key1="value1"
//	◄
func (p *Parser) parseKGBlock() (*KGBlock, error) {
	if _, err := p.eatKeyword(KwKG); err != nil {
		return nil, err
	}
	block := &KGBlock{}
	for {
		tok := p.current()
		if tok.Type == TokenClose {
			p.pos++
			return block, nil
		}
		if tok.Type == TokenEOF {
			return nil, syntaxErrorf(tok.Pos, "unterminated KG block: expected close marker %q", CloseMarker)
		}
		if tok.Type != TokenKeyword {
			return nil, syntaxErrorf(tok.Pos, "unexpected token %s %q in KG block", tok.Type, tok.Value)
		}
		switch tok.Value {
		case KwKGNode:
			decl, err := p.parseNodeDecl()
			if err != nil {
				return nil, err
			}
			block.Declarations = append(block.Declarations, decl)
		case KwKGLink:
			decl, err := p.parseEdgeDecl()
			if err != nil {
				return nil, err
			}
			block.Declarations = append(block.Declarations, decl)
		default:
			return nil, syntaxErrorf(tok.Pos, "unexpected keyword %q in KG block", tok.Value)
		}
	}
}

func (p *Parser) parseNodeDecl() (*NodeDecl, error) {
	if _, err := p.eatKeyword(KwKGNode); err != nil {
		return nil, err
	}
	uid, err := p.eat(TokenIdent)
	if err != nil {
		return nil, err
	}
	if err := p.eatSymbol(":"); err != nil {
		return nil, err
	}
	fields, err := p.parseFieldList()
	if err != nil {
		return nil, err
	}
	return &NodeDecl{UID: uid.Value, Fields: fields}, nil
}

func (p *Parser) parseEdgeDecl() (*EdgeDecl, error) {
	if _, err := p.eatKeyword(KwKGLink); err != nil {
		return nil, err
	}
	source, err := p.eat(TokenIdent)
	if err != nil {
		return nil, err
	}
	if err := p.eatOp("->"); err != nil {
		return nil, err
	}
	target, err := p.eat(TokenIdent)
	if err != nil {
		return nil, err
	}
	if err := p.eatSymbol(":"); err != nil {
		return nil, err
	}
	fields, err := p.parseFieldList()
	if err != nil {
		return nil, err
	}
	return &EdgeDecl{SourceUID: source.Value, TargetUID: target.Value, Fields: fields}, nil
}

// parseFieldList reads one or more comma-separated key="value" pairs.
func (p *Parser) parseFieldList() ([]Field, error) {
	var fields []Field
	for {
		key, err := p.eat(TokenIdent)
		if err != nil {
			return nil, err
		}
		if err := p.eatSymbol("="); err != nil {
			return nil, err
		}
		value, err := p.eat(TokenString)
		if err != nil {
			return nil, err
		}
		fields = append(fields, Field{Key: key.Value, Value: value.Value})

		if p.current().Type == TokenSymbol && p.current().Value == "," {
			p.pos++
			continue
		}
		return fields, nil
	}
}

func (p *Parser) eatSymbol(value string) error {
	tok := p.current()
	if tok.Type != TokenSymbol || tok.Value != value {
		return syntaxErrorf(tok.Pos, "expected %q but got %s %q", value, tok.Type, tok.Value)
	}
	p.pos++
	return nil
}

func (p *Parser) eatOp(value string) error {
	tok := p.current()
	if tok.Type != TokenOp || tok.Value != value {
		return syntaxErrorf(tok.Pos, "expected %q but got %s %q", value, tok.Type, tok.Value)
	}
	p.pos++
	return nil
}
