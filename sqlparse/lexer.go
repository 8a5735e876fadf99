package sqlparse

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Lexer splits SQL text into tokens, tracking 1-based line and column
// positions. Whitespace and comments are skipped.
type Lexer struct {
	input string
	pos   int
	line  int
	col   int
	last  TokenType
}

// NewLexer returns a Lexer positioned at the start of input.
func NewLexer(input string) *Lexer {
	return &Lexer{input: input, line: 1, col: 1, last: TokenEOF}
}

// Tokenize returns every token in input, terminated by a TokenEOF token.
func Tokenize(input string) ([]Token, error) {
	l := NewLexer(input)
	tokens := make([]Token, 0, len(input)/4+1)
	for {
		tok, err := l.Next()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
		if tok.Type == TokenEOF {
			return tokens, nil
		}
	}
}

func (l *Lexer) peek() rune {
	if l.pos >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.pos:])
	return r
}

func (l *Lexer) peekAt(offset int) rune {
	p := l.pos
	for i := 0; i < offset; i++ {
		if p >= len(l.input) {
			return 0
		}
		_, size := utf8.DecodeRuneInString(l.input[p:])
		p += size
	}
	if p >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[p:])
	return r
}

func (l *Lexer) advance() rune {
	r, size := utf8.DecodeRuneInString(l.input[l.pos:])
	l.pos += size
	if r == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	return r
}

func (l *Lexer) skipWhitespaceAndComments() error {
	for l.pos < len(l.input) {
		r := l.peek()
		switch {
		case unicode.IsSpace(r):
			l.advance()
		case r == '-' && l.peekAt(1) == '-':
			for l.pos < len(l.input) && l.peek() != '\n' {
				l.advance()
			}
		case r == '/' && l.peekAt(1) == '*':
			line, col := l.line, l.col
			l.advance()
			l.advance()
			closed := false
			for l.pos < len(l.input) {
				if l.peek() == '*' && l.peekAt(1) == '/' {
					l.advance()
					l.advance()
					closed = true
					break
				}
				l.advance()
			}
			if !closed {
				return syntaxErrorf(line, col, "unterminated block comment")
			}
		default:
			return nil
		}
	}
	return nil
}

// Next returns the next token, or a *SyntaxError for malformed input.
func (l *Lexer) Next() (Token, error) {
	if err := l.skipWhitespaceAndComments(); err != nil {
		return Token{}, err
	}
	tok, err := l.scan()
	if err != nil {
		return Token{}, err
	}
	l.last = tok.Type
	return tok, nil
}

func (l *Lexer) scan() (Token, error) {
	line, col, start := l.line, l.col, l.pos
	if l.pos >= len(l.input) {
		return Token{Type: TokenEOF, Line: line, Column: col}, nil
	}
	emit := func(t TokenType) Token {
		raw := l.input[start:l.pos]
		return Token{Type: t, Value: raw, Raw: raw, Line: line, Column: col}
	}

	r := l.peek()
	switch {
	case isIdentStart(r):
		for l.pos < len(l.input) && isIdentPart(l.peek()) {
			l.advance()
		}
		tok := emit(TokenIdent)
		word := strings.ToUpper(tok.Raw)
		if _, ok := keywords[word]; ok {
			tok.Type = TokenKeyword
			tok.Value = word
		}
		return tok, nil
	case isDigit(r):
		return l.readNumber(line, col, start)
	case r == '.' && isDigit(l.peekAt(1)) && l.last != TokenIdent && l.last != TokenQuotedIdent && l.last != TokenRParen:
		return l.readNumber(line, col, start)
	case r == '\'':
		return l.readString(line, col, start)
	case r == '"' || r == '`':
		return l.readQuotedIdent(line, col, start, r)
	}

	l.advance()
	switch r {
	case ',':
		return emit(TokenComma), nil
	case '.':
		return emit(TokenDot), nil
	case '(':
		return emit(TokenLParen), nil
	case ')':
		return emit(TokenRParen), nil
	case ';':
		return emit(TokenSemicolon), nil
	case '+', '-', '*', '/', '%', '=':
		return emit(TokenOperator), nil
	case '<':
		if n := l.peek(); n == '=' || n == '>' {
			l.advance()
		}
		return emit(TokenOperator), nil
	case '>':
		if l.peek() == '=' {
			l.advance()
		}
		return emit(TokenOperator), nil
	case '!':
		if l.peek() == '=' {
			l.advance()
			return emit(TokenOperator), nil
		}
	case '|':
		if l.peek() == '|' {
			l.advance()
			return emit(TokenOperator), nil
		}
	}
	return Token{}, syntaxErrorf(line, col, "unexpected character %q", r)
}

func (l *Lexer) readNumber(line, col, start int) (Token, error) {
	typ := TokenInteger
	for isDigit(l.peek()) {
		l.advance()
	}
	if l.peek() == '.' && (isDigit(l.peekAt(1)) || !isIdentStart(l.peekAt(1))) {
		typ = TokenFloat
		l.advance()
		for isDigit(l.peek()) {
			l.advance()
		}
	}
	if r := l.peek(); r == 'e' || r == 'E' {
		next := l.peekAt(1)
		if isDigit(next) || ((next == '+' || next == '-') && isDigit(l.peekAt(2))) {
			typ = TokenFloat
			l.advance()
			if next == '+' || next == '-' {
				l.advance()
			}
			for isDigit(l.peek()) {
				l.advance()
			}
		}
	}
	if isIdentPart(l.peek()) {
		return Token{}, syntaxErrorf(line, col, "malformed number %q", l.input[start:l.pos+1])
	}
	raw := l.input[start:l.pos]
	return Token{Type: typ, Value: raw, Raw: raw, Line: line, Column: col}, nil
}

// readString scans a single-quoted literal. A doubled quote or a
// backslash-escaped character does not terminate the literal.
func (l *Lexer) readString(line, col, start int) (Token, error) {
	l.advance()
	for l.pos < len(l.input) {
		r := l.advance()
		switch r {
		case '\\':
			if l.pos < len(l.input) {
				l.advance()
			}
		case '\'':
			if l.peek() == '\'' {
				l.advance()
				continue
			}
			raw := l.input[start:l.pos]
			return Token{Type: TokenString, Value: raw, Raw: raw, Line: line, Column: col}, nil
		}
	}
	return Token{}, syntaxErrorf(line, col, "unterminated string literal")
}

func (l *Lexer) readQuotedIdent(line, col, start int, quote rune) (Token, error) {
	l.advance()
	for l.pos < len(l.input) {
		if l.advance() == quote {
			if l.peek() == quote {
				l.advance()
				continue
			}
			raw := l.input[start:l.pos]
			if len(raw) == 2 {
				return Token{}, syntaxErrorf(line, col, "empty quoted identifier")
			}
			return Token{Type: TokenQuotedIdent, Value: raw, Raw: raw, Line: line, Column: col}, nil
		}
	}
	return Token{}, syntaxErrorf(line, col, "unterminated quoted identifier")
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return r == '_' || r == '$' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// Unquote strips identifier quotes and collapses doubled quote characters.
func Unquote(ident string) string {
	if len(ident) >= 2 {
		q := ident[0]
		if (q == '"' || q == '`') && ident[len(ident)-1] == q {
			inner := ident[1 : len(ident)-1]
			return strings.ReplaceAll(inner, string([]byte{q, q}), string(q))
		}
	}
	return ident
}
