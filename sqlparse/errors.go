package sqlparse

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// SyntaxError is returned for any lexical or syntactic error. Line and Column
// are 1-based and point at the offending character or token.
type SyntaxError struct {
	Line   int
	Column int
	Msg    string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("line %d:%d - %s", e.Line, e.Column, e.Msg)
}

// IsSyntaxError reports whether err is, or wraps, a *SyntaxError.
func IsSyntaxError(err error) bool {
	var se *SyntaxError
	return errors.As(err, &se)
}

func syntaxErrorf(line, col int, format string, args ...interface{}) error {
	return &SyntaxError{Line: line, Column: col, Msg: fmt.Sprintf(format, args...)}
}
