package kgml

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const keywordMarker = '►'

// Tokenize converts KGML source text into a token stream. It is a pure
// function of its input and always terminates the stream with an EOF token.
// Unrecognized characters fail with a SyntaxError naming the byte offset.
func Tokenize(src string) ([]Token, error) {
	l := &lexer{src: src}
	var tokens []Token
	for {
		tok, err := l.next()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
		if tok.Type == TokenEOF {
			return tokens, nil
		}
	}
}

type lexer struct {
	src string
	pos int // byte offset
}

func (l *lexer) peek() (rune, int) {
	if l.pos >= len(l.src) {
		return 0, 0
	}
	return utf8.DecodeRuneInString(l.src[l.pos:])
}

func (l *lexer) next() (Token, error) {
	l.skipWhitespace()
	start := l.pos

	r, size := l.peek()
	if size == 0 {
		return Token{Type: TokenEOF, Pos: start}, nil
	}

	switch {
	case r == '◄':
		l.pos += size
		return Token{Type: TokenClose, Value: CloseMarker, Pos: start}, nil
	case r == '"':
		return l.scanString()
	case unicode.IsDigit(r):
		return l.scanNumber(), nil
	case r == '_' || unicode.IsLetter(r):
		return l.scanWord()
	}

	if tok, ok := l.scanOperator(); ok {
		return tok, nil
	}
	if strings.ContainsRune("{}(),:;=", r) {
		l.pos += size
		return Token{Type: TokenSymbol, Value: string(r), Pos: start}, nil
	}
	return Token{}, syntaxErrorf(start, "unexpected character %q", r)
}

func (l *lexer) skipWhitespace() {
	for {
		r, size := l.peek()
		if size == 0 || !unicode.IsSpace(r) {
			return
		}
		l.pos += size
	}
}

// scanWord reads an identifier. If it is immediately followed by the
// keyword marker, the word plus marker must be a reserved keyword.
func (l *lexer) scanWord() (Token, error) {
	start := l.pos
	for {
		r, size := l.peek()
		if size == 0 {
			break
		}
		if r != '_' && !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			break
		}
		l.pos += size
	}
	word := l.src[start:l.pos]

	if r, size := l.peek(); size > 0 && r == keywordMarker {
		kw := word + string(keywordMarker)
		if _, ok := reserved[kw]; !ok {
			return Token{}, syntaxErrorf(l.pos, "unknown keyword %q", kw)
		}
		l.pos += size
		return Token{Type: TokenKeyword, Value: kw, Pos: start}, nil
	}
	return Token{Type: TokenIdent, Value: word, Pos: start}, nil
}

// scanNumber reads an integer or decimal literal.
func (l *lexer) scanNumber() Token {
	start := l.pos
	sawDot := false
	for {
		r, size := l.peek()
		if size == 0 {
			break
		}
		if unicode.IsDigit(r) {
			l.pos += size
			continue
		}
		// A dot counts only when followed by another digit.
		if r == '.' && !sawDot {
			next, nextSize := utf8.DecodeRuneInString(l.src[l.pos+size:])
			if nextSize > 0 && unicode.IsDigit(next) {
				sawDot = true
				l.pos += size
				continue
			}
		}
		break
	}
	return Token{Type: TokenNumber, Value: l.src[start:l.pos], Pos: start}
}

// scanString reads a double-quoted literal and decodes backslash escapes.
func (l *lexer) scanString() (Token, error) {
	start := l.pos
	l.pos++ // opening quote
	var sb strings.Builder
	for {
		r, size := l.peek()
		if size == 0 {
			return Token{}, syntaxErrorf(start, "unterminated string literal")
		}
		l.pos += size
		if r == '"' {
			return Token{Type: TokenString, Value: sb.String(), Pos: start}, nil
		}
		if r != '\\' {
			sb.WriteRune(r)
			continue
		}
		esc, escSize := l.peek()
		if escSize == 0 {
			return Token{}, syntaxErrorf(start, "unterminated string literal")
		}
		l.pos += escSize
		switch esc {
		case 'n':
			sb.WriteRune('\n')
		case 'r':
			sb.WriteRune('\r')
		case 't':
			sb.WriteRune('\t')
		case '\\', '"', '\'':
			sb.WriteRune(esc)
		default:
			sb.WriteRune('\\')
			sb.WriteRune(esc)
		}
	}
}

// scanOperator matches the two-character comparison and arrow operators
// before the single-character ones. '=' alone is a symbol, not an operator.
func (l *lexer) scanOperator() (Token, bool) {
	start := l.pos
	rest := l.src[l.pos:]
	for _, op := range []string{"==", "!=", "<=", ">=", "->"} {
		if strings.HasPrefix(rest, op) {
			l.pos += len(op)
			return Token{Type: TokenOp, Value: op, Pos: start}, true
		}
	}
	if len(rest) > 0 && strings.ContainsRune("+-*/<>", rune(rest[0])) {
		l.pos++
		return Token{Type: TokenOp, Value: rest[:1], Pos: start}, true
	}
	return Token{}, false
}
