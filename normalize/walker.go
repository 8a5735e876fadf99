package normalize

import (
	"strings"

	"github.com/agentuity/go-plancache/sqlparse"
	"github.com/cockroachdb/errors"
)

// walker performs a single pre-order traversal, writing the canonical text
// and collecting literals and table names as it goes.
type walker struct {
	buf    strings.Builder
	params []interface{}
	meta   []ParameterMetadata
	tables map[string]struct{}
	// names bound by enclosing WITH clauses, with nesting depth
	ctes map[string]int
	err  error
}

func (w *walker) write(parts ...string) {
	for _, s := range parts {
		w.buf.WriteString(s)
	}
}

func (w *walker) fail(n sqlparse.Node) {
	if w.err == nil {
		w.err = errors.AssertionFailedf("normalize: unsupported node %T", n)
	}
}

func (w *walker) statement(n sqlparse.Statement) {
	switch n := n.(type) {
	case sqlparse.QueryExpr:
		w.query(n)
	case *sqlparse.InsertStmt:
		w.write("INSERT INTO ")
		w.tableName(n.Table)
		if len(n.Columns) > 0 {
			w.write(" (", strings.Join(n.Columns, ","), ")")
		}
		if n.Query != nil {
			w.write(" ")
			w.query(n.Query)
			return
		}
		w.write(" VALUES ")
		for i, row := range n.Rows {
			if i > 0 {
				w.write(",")
			}
			w.write("(")
			w.exprList(row)
			w.write(")")
		}
	case *sqlparse.UpdateStmt:
		w.write("UPDATE ")
		w.tableName(n.Table)
		w.write(" SET ")
		w.assignments(n.Set)
		if n.Where != nil {
			w.write(" WHERE ")
			w.expr(n.Where)
		}
	case *sqlparse.DeleteStmt:
		w.write("DELETE FROM ")
		w.tableName(n.Table)
		if n.Where != nil {
			w.write(" WHERE ")
			w.expr(n.Where)
		}
	case *sqlparse.MergeStmt:
		w.write("MERGE INTO ")
		w.tableName(n.Target)
		w.write(" USING ")
		w.tableExpr(n.Source)
		w.write(" ON ")
		w.expr(n.On)
		for _, c := range n.Clauses {
			w.mergeClause(c)
		}
	default:
		w.fail(n)
	}
}

func (w *walker) query(n sqlparse.QueryExpr) {
	switch n := n.(type) {
	case *sqlparse.SelectStmt:
		w.selectStmt(n)
	case *sqlparse.SetOpStmt:
		w.query(n.Left)
		w.write(" ", n.Op, " ")
		w.query(n.Right)
	case *sqlparse.ParenQuery:
		w.write("(")
		w.query(n.Query)
		w.write(")")
	case *sqlparse.WithStmt:
		w.write("WITH ")
		if n.Recursive {
			w.write("RECURSIVE ")
			for _, cte := range n.CTEs {
				w.bindCTE(cte.Name)
			}
		}
		for i, cte := range n.CTEs {
			if i > 0 {
				w.write(",")
			}
			w.write(cte.Name)
			if len(cte.Columns) > 0 {
				w.write(" (", strings.Join(cte.Columns, ","), ")")
			}
			w.write(" AS (")
			w.query(cte.Query)
			w.write(")")
			if !n.Recursive {
				w.bindCTE(cte.Name)
			}
		}
		w.write(" ")
		w.query(n.Body)
		for _, cte := range n.CTEs {
			w.unbindCTE(cte.Name)
		}
	default:
		w.fail(n)
	}
}

func (w *walker) selectStmt(n *sqlparse.SelectStmt) {
	w.write("SELECT ")
	if n.Distinct {
		w.write("DISTINCT ")
	}
	for i, item := range n.Columns {
		if i > 0 {
			w.write(",")
		}
		w.expr(item.Expr)
		if item.Alias != "" {
			w.write(" AS ", item.Alias)
		}
	}
	if len(n.From) > 0 {
		w.write(" FROM ")
		for i, t := range n.From {
			if i > 0 {
				w.write(",")
			}
			w.tableExpr(t)
		}
	}
	if n.Where != nil {
		w.write(" WHERE ")
		w.expr(n.Where)
	}
	if len(n.GroupBy) > 0 {
		w.write(" GROUP BY ")
		w.exprList(n.GroupBy)
	}
	if n.Having != nil {
		w.write(" HAVING ")
		w.expr(n.Having)
	}
	if len(n.OrderBy) > 0 {
		w.write(" ")
		w.orderBy(n.OrderBy)
	}
	if n.Limit != nil {
		w.write(" LIMIT ")
		w.expr(n.Limit)
	}
	if n.Offset != nil {
		w.write(" OFFSET ")
		w.expr(n.Offset)
	}
}

func (w *walker) orderBy(items []*sqlparse.OrderItem) {
	w.write("ORDER BY ")
	for i, item := range items {
		if i > 0 {
			w.write(",")
		}
		w.expr(item.Expr)
		if item.Direction != "" {
			w.write(" ", item.Direction)
		}
	}
}

func (w *walker) bindCTE(name string) {
	if w.ctes == nil {
		w.ctes = make(map[string]int)
	}
	w.ctes[strings.ToLower(sqlparse.Unquote(name))]++
}

func (w *walker) unbindCTE(name string) {
	name = strings.ToLower(sqlparse.Unquote(name))
	if w.ctes[name]--; w.ctes[name] <= 0 {
		delete(w.ctes, name)
	}
}

func (w *walker) tableName(t *sqlparse.TableName) {
	w.write(t.String())
	// an unqualified name bound by WITH is not a base table
	if _, isCTE := w.ctes[strings.ToLower(t.Name())]; !isCTE || len(t.Parts) > 1 {
		w.tables[t.Name()] = struct{}{}
	}
	if t.Alias != "" {
		w.write(" AS ", t.Alias)
	}
}

func (w *walker) tableExpr(n sqlparse.TableExpr) {
	switch n := n.(type) {
	case *sqlparse.TableName:
		w.tableName(n)
	case *sqlparse.DerivedTable:
		w.write("(")
		w.query(n.Query)
		w.write(")")
		if n.Alias != "" {
			w.write(" AS ", n.Alias)
		}
	case *sqlparse.JoinExpr:
		w.tableExpr(n.Left)
		w.write(" ", n.Kind.String(), " ")
		w.tableExpr(n.Right)
		switch {
		case n.On != nil:
			w.write(" ON ")
			w.expr(n.On)
		case len(n.Using) > 0:
			w.write(" USING (", strings.Join(n.Using, ","), ")")
		}
	default:
		w.fail(n)
	}
}

func (w *walker) assignments(list []*sqlparse.Assignment) {
	for i, a := range list {
		if i > 0 {
			w.write(",")
		}
		w.write(strings.Join(a.Column, "."), " = ")
		w.expr(a.Value)
	}
}

func (w *walker) mergeClause(c *sqlparse.MergeClause) {
	if c.Matched {
		w.write(" WHEN MATCHED")
	} else {
		w.write(" WHEN NOT MATCHED")
	}
	if c.Condition != nil {
		w.write(" AND ")
		w.expr(c.Condition)
	}
	w.write(" THEN ", c.Action)
	switch c.Action {
	case "UPDATE":
		w.write(" SET ")
		w.assignments(c.Set)
	case "INSERT":
		if len(c.Columns) > 0 {
			w.write(" (", strings.Join(c.Columns, ","), ")")
		}
		w.write(" VALUES (")
		w.exprList(c.Values)
		w.write(")")
	}
}

func (w *walker) exprList(list []sqlparse.Expr) {
	for i, e := range list {
		if i > 0 {
			w.write(",")
		}
		w.expr(e)
	}
}

func (w *walker) subquery(q sqlparse.QueryExpr) {
	w.write("(")
	w.query(q)
	w.write(")")
}

func (w *walker) expr(n sqlparse.Expr) {
	switch n := n.(type) {
	case *sqlparse.Literal:
		w.literal(n)
	case *sqlparse.ColumnRef:
		w.write(strings.Join(n.Parts, "."))
	case *sqlparse.StarExpr:
		if n.Table != "" {
			w.write(n.Table, ".")
		}
		w.write("*")
	case *sqlparse.UnaryExpr:
		if n.Op == "NOT" {
			w.write("NOT ")
		} else {
			w.write(n.Op)
		}
		w.expr(n.X)
	case *sqlparse.BinaryExpr:
		w.expr(n.Left)
		w.write(" ", n.Op, " ")
		w.expr(n.Right)
	case *sqlparse.ParenExpr:
		w.write("(")
		w.expr(n.X)
		w.write(")")
	case *sqlparse.BetweenExpr:
		w.expr(n.X)
		w.not(n.Not)
		w.write(" BETWEEN ")
		w.expr(n.Lower)
		w.write(" AND ")
		w.expr(n.Upper)
	case *sqlparse.LikeExpr:
		w.expr(n.X)
		w.not(n.Not)
		w.write(" LIKE ")
		w.expr(n.Pattern)
		if n.Escape != nil {
			w.write(" ESCAPE ")
			w.expr(n.Escape)
		}
	case *sqlparse.IsNullExpr:
		w.expr(n.X)
		if n.Not {
			w.write(" IS NOT NULL")
		} else {
			w.write(" IS NULL")
		}
	case *sqlparse.InExpr:
		w.expr(n.X)
		w.not(n.Not)
		w.write(" IN ")
		if n.Subquery != nil {
			w.subquery(n.Subquery)
			return
		}
		w.write("(")
		w.exprList(n.List)
		w.write(")")
	case *sqlparse.ExistsExpr:
		w.write("EXISTS ")
		w.subquery(n.Subquery)
	case *sqlparse.QuantifiedExpr:
		w.expr(n.X)
		w.write(" ", n.Op, " ", n.Quantifier, " ")
		w.subquery(n.Subquery)
	case *sqlparse.SubqueryExpr:
		w.subquery(n.Query)
	case *sqlparse.CaseExpr:
		w.write("CASE ")
		if n.Operand != nil {
			w.expr(n.Operand)
			w.write(" ")
		}
		for _, when := range n.Whens {
			w.write("WHEN ")
			w.expr(when.Cond)
			w.write(" THEN ")
			w.expr(when.Result)
			w.write(" ")
		}
		if n.Else != nil {
			w.write("ELSE ")
			w.expr(n.Else)
			w.write(" ")
		}
		w.write("END")
	case *sqlparse.CastExpr:
		w.write("CAST(")
		w.expr(n.X)
		w.write(" AS ", n.Type.Name)
		if len(n.Type.Args) > 0 {
			w.write("(", strings.Join(n.Type.Args, ","), ")")
		}
		w.write(")")
	case *sqlparse.ExtractExpr:
		w.write("EXTRACT(", n.Field, " FROM ")
		w.expr(n.X)
		w.write(")")
	case *sqlparse.FuncCall:
		w.funcCall(n)
	default:
		w.fail(n)
	}
}

func (w *walker) not(not bool) {
	if not {
		w.write(" NOT")
	}
}

func (w *walker) funcCall(n *sqlparse.FuncCall) {
	w.write(strings.ToUpper(n.Name), "(")
	if n.Distinct {
		w.write("DISTINCT ")
	}
	w.exprList(n.Args)
	w.write(")")
	if n.Over == nil {
		return
	}
	w.write(" OVER (")
	sep := ""
	if len(n.Over.PartitionBy) > 0 {
		w.write("PARTITION BY ")
		w.exprList(n.Over.PartitionBy)
		sep = " "
	}
	if len(n.Over.OrderBy) > 0 {
		w.write(sep)
		w.orderBy(n.Over.OrderBy)
		sep = " "
	}
	if f := n.Over.Frame; f != nil {
		w.write(sep, f.Unit, " ")
		if f.End != nil {
			w.write("BETWEEN ")
			w.frameBound(f.Start)
			w.write(" AND ")
			w.frameBound(f.End)
		} else {
			w.frameBound(f.Start)
		}
	}
	w.write(")")
}

func (w *walker) frameBound(b *sqlparse.FrameBound) {
	if b.Offset != nil {
		w.expr(b.Offset)
		w.write(" ")
	}
	w.write(b.Kind)
}

// literal replaces a constant with a placeholder. NULL is kept verbatim and
// is never a parameter.
func (w *walker) literal(n *sqlparse.Literal) {
	var typ ParameterType
	switch n.Kind {
	case sqlparse.LiteralNull:
		w.write("NULL")
		return
	case sqlparse.LiteralInteger:
		typ = TypeInteger
	case sqlparse.LiteralFloat:
		typ = TypeFloat
	case sqlparse.LiteralString:
		typ = TypeString
	case sqlparse.LiteralBoolean:
		typ = TypeBoolean
	case sqlparse.LiteralDate, sqlparse.LiteralTimestamp:
		typ = TypeDate
	default:
		w.fail(n)
		return
	}
	w.write("?")
	w.meta = append(w.meta, ParameterMetadata{Index: len(w.params), Type: typ, Value: n.Value})
	w.params = append(w.params, n.Value)
}
