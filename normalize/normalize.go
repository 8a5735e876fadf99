// Package normalize rewrites SQL text into a canonical pattern in which every
// literal is replaced by a ? placeholder. The extracted literal values, their
// metadata and the set of referenced tables are returned alongside the
// pattern so that structurally identical queries share one pattern.
package normalize

import (
	"fmt"
	"sort"
	"strings"

	"github.com/agentuity/go-plancache/sqlparse"
)

// ParameterType is the type of an extracted literal.
type ParameterType int

const (
	TypeInteger ParameterType = iota
	TypeString
	TypeFloat
	TypeBoolean
	TypeDate
)

func (t ParameterType) String() string {
	switch t {
	case TypeInteger:
		return "INTEGER"
	case TypeString:
		return "STRING"
	case TypeFloat:
		return "FLOAT"
	case TypeBoolean:
		return "BOOLEAN"
	case TypeDate:
		return "DATE"
	}
	return fmt.Sprintf("ParameterType(%d)", int(t))
}

// ParameterMetadata describes one placeholder. Index is the 0-based position
// of the literal in visitation order and Value is the literal captured when
// the pattern was produced.
type ParameterMetadata struct {
	Index int
	Type  ParameterType
	Value interface{}
}

// Query is the result of normalizing one statement.
type Query struct {
	Pattern    string
	Parameters []interface{}
	Metadata   []ParameterMetadata
	// Tables holds the unqualified, unquoted names of every referenced table,
	// sorted and without duplicates.
	Tables []string
}

// HasTable reports whether name is among the referenced tables, ignoring case.
func (q *Query) HasTable(name string) bool {
	for _, t := range q.Tables {
		if strings.EqualFold(t, name) {
			return true
		}
	}
	return false
}

// Normalize parses sql and returns its canonical form. Parse failures are
// returned as *sqlparse.SyntaxError and produce no partial result.
func Normalize(sql string) (*Query, error) {
	stmt, err := sqlparse.Parse(sql)
	if err != nil {
		return nil, err
	}
	return FromStatement(stmt)
}

// FromStatement normalizes an already parsed statement.
func FromStatement(stmt sqlparse.Statement) (*Query, error) {
	w := &walker{tables: make(map[string]struct{})}
	w.statement(stmt)
	if w.err != nil {
		return nil, w.err
	}
	tables := make([]string, 0, len(w.tables))
	for t := range w.tables {
		tables = append(tables, t)
	}
	sort.Strings(tables)
	return &Query{
		Pattern:    w.buf.String(),
		Parameters: w.params,
		Metadata:   w.meta,
		Tables:     tables,
	}, nil
}

// Bind returns the sample values recorded in metadata, in index order.
func Bind(metadata []ParameterMetadata) []interface{} {
	params := make([]interface{}, len(metadata))
	for i, m := range metadata {
		params[i] = m.Value
	}
	return params
}
