package sqlparse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenize(t *testing.T) {
	tokens, err := Tokenize("select a.b, 'it''s', 1.5e3, .5 <> \"Q\"\n-- done\n;")
	require.NoError(t, err)
	types := make([]TokenType, len(tokens))
	for i, tok := range tokens {
		types[i] = tok.Type
	}
	assert.Equal(t, []TokenType{
		TokenKeyword, TokenIdent, TokenDot, TokenIdent, TokenComma,
		TokenString, TokenComma, TokenFloat, TokenComma, TokenFloat,
		TokenOperator, TokenQuotedIdent, TokenSemicolon, TokenEOF,
	}, types)
	assert.Equal(t, "SELECT", tokens[0].Value)
	assert.Equal(t, "select", tokens[0].Raw)
	assert.Equal(t, "'it''s'", tokens[5].Raw)
	assert.Equal(t, "<>", tokens[10].Value)
	assert.Equal(t, 3, tokens[12].Line)
	assert.Equal(t, 1, tokens[12].Column)
}

func TestTokenizeErrors(t *testing.T) {
	for _, sql := range []string{"SELECT #", "SELECT 'x", "SELECT \"x", "SELECT 12ab", "SELECT ! 1", "SELECT \"\""} {
		_, err := Tokenize(sql)
		assert.True(t, IsSyntaxError(err), sql)
	}
}

func TestParseSelectTree(t *testing.T) {
	stmt, err := Parse("SELECT DISTINCT o.id AS oid, t.* FROM orders o LEFT JOIN items t ON t.oid = o.id WHERE o.total BETWEEN 1 AND 10 ORDER BY o.id DESC LIMIT 5")
	require.NoError(t, err)
	sel, ok := stmt.(*SelectStmt)
	require.True(t, ok)
	assert.True(t, sel.Distinct)
	require.Len(t, sel.Columns, 2)
	assert.Equal(t, "oid", sel.Columns[0].Alias)
	assert.Equal(t, &StarExpr{Table: "t"}, sel.Columns[1].Expr)

	require.Len(t, sel.From, 1)
	join, ok := sel.From[0].(*JoinExpr)
	require.True(t, ok)
	assert.Equal(t, LeftJoin, join.Kind)
	assert.Equal(t, "o", join.Left.(*TableName).Alias)

	between, ok := sel.Where.(*BetweenExpr)
	require.True(t, ok)
	assert.Equal(t, int64(1), between.Lower.(*Literal).Value)
	assert.Equal(t, int64(10), between.Upper.(*Literal).Value)
	assert.Equal(t, "DESC", sel.OrderBy[0].Direction)
	assert.Equal(t, int64(5), sel.Limit.(*Literal).Value)
}

func TestParsePrecedence(t *testing.T) {
	stmt, err := Parse("SELECT * FROM t WHERE a = 1 OR b = 2 AND NOT c = 3")
	require.NoError(t, err)
	or, ok := stmt.(*SelectStmt).Where.(*BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, "OR", or.Op)
	and, ok := or.Right.(*BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, "AND", and.Op)
	not, ok := and.Right.(*UnaryExpr)
	require.True(t, ok)
	assert.Equal(t, "NOT", not.Op)

	stmt, err = Parse("SELECT 1 + 2 * 3")
	require.NoError(t, err)
	sum := stmt.(*SelectStmt).Columns[0].Expr.(*BinaryExpr)
	assert.Equal(t, "+", sum.Op)
	assert.Equal(t, "*", sum.Right.(*BinaryExpr).Op)
}

func TestParseStatements(t *testing.T) {
	tests := []struct {
		sql  string
		want Statement
	}{
		{"INSERT INTO t (a) VALUES (1)", &InsertStmt{}},
		{"UPDATE t SET a = 1", &UpdateStmt{}},
		{"DELETE FROM t", &DeleteStmt{}},
		{"MERGE INTO t USING s ON t.id = s.id WHEN MATCHED THEN DELETE", &MergeStmt{}},
		{"WITH x AS (SELECT 1) SELECT * FROM x", &WithStmt{}},
		{"(SELECT 1) UNION (SELECT 2)", &SetOpStmt{}},
		{"SELECT 1;", &SelectStmt{}},
	}
	for _, tt := range tests {
		stmt, err := Parse(tt.sql)
		require.NoError(t, err, tt.sql)
		assert.IsType(t, tt.want, stmt, tt.sql)
	}
}

func TestParseMergeClauses(t *testing.T) {
	stmt, err := Parse("MERGE INTO t USING s ON t.id = s.id WHEN MATCHED AND s.gone = TRUE THEN DELETE WHEN MATCHED THEN UPDATE SET v = s.v WHEN NOT MATCHED THEN INSERT VALUES (s.id, s.v)")
	require.NoError(t, err)
	m := stmt.(*MergeStmt)
	require.Len(t, m.Clauses, 3)
	assert.Equal(t, "DELETE", m.Clauses[0].Action)
	assert.NotNil(t, m.Clauses[0].Condition)
	assert.Equal(t, "UPDATE", m.Clauses[1].Action)
	assert.False(t, m.Clauses[2].Matched)
	assert.Len(t, m.Clauses[2].Values, 2)

	_, err = Parse("MERGE INTO t USING s ON t.id = s.id WHEN NOT MATCHED THEN DELETE")
	assert.True(t, IsSyntaxError(err))
	_, err = Parse("MERGE INTO t USING s ON t.id = s.id")
	assert.True(t, IsSyntaxError(err))
}

func TestParseErrors(t *testing.T) {
	for _, sql := range []string{
		"SELECT",
		"SELECT * FROM t WHERE",
		"SELECT * FROM a JOIN b",
		"SELECT * FROM t WHERE a IN ()",
		"SELECT CASE END",
		"SELECT CAST(a AS)",
		"INSERT INTO t",
		"UPDATE t SET a",
		"SELECT (1",
		"SELECT COUNT(* FROM t",
	} {
		_, err := Parse(sql)
		require.Error(t, err, sql)
		assert.True(t, IsSyntaxError(err), sql)
	}
}

func TestSyntaxErrorMessage(t *testing.T) {
	_, err := Parse("SELECT *\n  FROM orders WHERE")
	require.Error(t, err)
	assert.Equal(t, "line 2:20 - unexpected end of input in expression", err.Error())
}

func TestUnescapeString(t *testing.T) {
	assert.Equal(t, "O'Reilly", UnescapeString("'O''Reilly'"))
	assert.Equal(t, "it's", UnescapeString(`'it\'s'`))
	assert.Equal(t, "", UnescapeString("''"))
}

func TestUnquote(t *testing.T) {
	assert.Equal(t, "Order Items", Unquote(`"Order Items"`))
	assert.Equal(t, `a"b`, Unquote(`"a""b"`))
	assert.Equal(t, "x", Unquote("`x`"))
	assert.Equal(t, "plain", Unquote("plain"))
}

func TestIsReserved(t *testing.T) {
	assert.True(t, IsReserved("select"))
	assert.False(t, IsReserved("year"))
	assert.False(t, IsReserved("orders"))
}
