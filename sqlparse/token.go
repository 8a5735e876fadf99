package sqlparse

import (
	"fmt"
	"strings"
)

// TokenType identifies the lexical class of a Token.
type TokenType int

const (
	TokenEOF TokenType = iota
	TokenIdent
	TokenQuotedIdent
	TokenKeyword
	TokenString
	TokenInteger
	TokenFloat
	TokenOperator
	TokenComma
	TokenDot
	TokenLParen
	TokenRParen
	TokenSemicolon
)

func (t TokenType) String() string {
	switch t {
	case TokenEOF:
		return "end of input"
	case TokenIdent:
		return "identifier"
	case TokenQuotedIdent:
		return "quoted identifier"
	case TokenKeyword:
		return "keyword"
	case TokenString:
		return "string"
	case TokenInteger:
		return "integer"
	case TokenFloat:
		return "float"
	case TokenOperator:
		return "operator"
	case TokenComma:
		return "','"
	case TokenDot:
		return "'.'"
	case TokenLParen:
		return "'('"
	case TokenRParen:
		return "')'"
	case TokenSemicolon:
		return "';'"
	}
	return fmt.Sprintf("TokenType(%d)", int(t))
}

// Token is a single lexeme. Value holds the upper-cased word for keywords and
// the source text for everything else; Raw always holds the source text.
type Token struct {
	Type   TokenType
	Value  string
	Raw    string
	Line   int
	Column int
}

func (t Token) String() string {
	switch t.Type {
	case TokenEOF:
		return "end of input"
	case TokenKeyword:
		return t.Value
	}
	return fmt.Sprintf("%q", t.Raw)
}

// keywords lists every word the lexer classifies as TokenKeyword. The value
// reports whether the keyword is reserved; non-reserved keywords may also be
// used as identifiers.
var keywords = map[string]bool{
	"SELECT":    true,
	"FROM":      true,
	"WHERE":     true,
	"GROUP":     true,
	"BY":        true,
	"HAVING":    true,
	"ORDER":     true,
	"ASC":       true,
	"DESC":      true,
	"LIMIT":     true,
	"OFFSET":    true,
	"DISTINCT":  true,
	"AS":        true,
	"JOIN":      true,
	"INNER":     true,
	"LEFT":      true,
	"RIGHT":     true,
	"FULL":      true,
	"OUTER":     true,
	"CROSS":     true,
	"ON":        true,
	"USING":     true,
	"INSERT":    true,
	"INTO":      true,
	"VALUES":    true,
	"UPDATE":    true,
	"SET":       true,
	"DELETE":    true,
	"MERGE":     true,
	"WHEN":      true,
	"MATCHED":   true,
	"THEN":      true,
	"WITH":      true,
	"RECURSIVE": true,
	"AND":       true,
	"OR":        true,
	"NOT":       true,
	"IN":        true,
	"EXISTS":    true,
	"BETWEEN":   true,
	"LIKE":      true,
	"ESCAPE":    true,
	"IS":        true,
	"NULL":      true,
	"TRUE":      true,
	"FALSE":     true,
	"CASE":      true,
	"ELSE":      true,
	"END":       true,
	"CAST":      true,
	"EXTRACT":   true,
	"OVER":      true,
	"ANY":       true,
	"ALL":       true,
	"SOME":      true,
	"UNION":     true,
	"INTERSECT": true,
	"EXCEPT":    true,

	"PARTITION": false,
	"ROWS":      false,
	"RANGE":     false,
	"PRECEDING": false,
	"FOLLOWING": false,
	"CURRENT":   false,
	"ROW":       false,
	"UNBOUNDED": false,
	"DATE":      false,
	"TIMESTAMP": false,
	"YEAR":      false,
	"MONTH":     false,
	"DAY":       false,
	"HOUR":      false,
	"MINUTE":    false,
	"SECOND":    false,
}

// IsReserved reports whether word (in any case) is a reserved keyword.
func IsReserved(word string) bool {
	return keywords[strings.ToUpper(word)]
}
