package sqlparse

import "strings"

// Node is implemented by every syntax tree node.
type Node interface {
	node()
}

// Statement is a complete SQL statement.
type Statement interface {
	Node
	statement()
}

// QueryExpr is a statement that produces rows and may appear as a subquery:
// *SelectStmt, *SetOpStmt, *ParenQuery or *WithStmt.
type QueryExpr interface {
	Statement
	queryExpr()
}

// Expr is a scalar expression.
type Expr interface {
	Node
	expr()
}

// TableExpr is an item of a FROM list.
type TableExpr interface {
	Node
	tableExpr()
}

type (
	// WithStmt is WITH [RECURSIVE] cte, ... followed by a query.
	WithStmt struct {
		Recursive bool
		CTEs      []*CTE
		Body      QueryExpr
	}

	CTE struct {
		Name    string
		Columns []string
		Query   QueryExpr
	}

	SelectStmt struct {
		Distinct bool
		Columns  []*SelectItem
		From     []TableExpr
		Where    Expr
		GroupBy  []Expr
		Having   Expr
		OrderBy  []*OrderItem
		Limit    Expr
		Offset   Expr
	}

	// SetOpStmt combines two queries with UNION, UNION ALL, INTERSECT or EXCEPT.
	SetOpStmt struct {
		Op    string
		Left  QueryExpr
		Right QueryExpr
	}

	ParenQuery struct {
		Query QueryExpr
	}

	// InsertStmt holds either Rows (VALUES) or Query (INSERT ... SELECT).
	InsertStmt struct {
		Table   *TableName
		Columns []string
		Rows    [][]Expr
		Query   QueryExpr
	}

	UpdateStmt struct {
		Table *TableName
		Set   []*Assignment
		Where Expr
	}

	DeleteStmt struct {
		Table *TableName
		Where Expr
	}

	MergeStmt struct {
		Target  *TableName
		Source  TableExpr
		On      Expr
		Clauses []*MergeClause
	}
)

type (
	SelectItem struct {
		Expr  Expr
		Alias string
	}

	OrderItem struct {
		Expr      Expr
		Direction string
	}

	Assignment struct {
		Column []string
		Value  Expr
	}

	// MergeClause is one WHEN [NOT] MATCHED branch. Action is UPDATE, DELETE
	// or INSERT.
	MergeClause struct {
		Matched   bool
		Condition Expr
		Action    string
		Set       []*Assignment
		Columns   []string
		Values    []Expr
	}

	DataType struct {
		Name string
		Args []string
	}

	WindowSpec struct {
		PartitionBy []Expr
		OrderBy     []*OrderItem
		Frame       *FrameClause
	}

	// FrameClause is ROWS|RANGE with a single bound (End nil) or a BETWEEN pair.
	FrameClause struct {
		Unit  string
		Start *FrameBound
		End   *FrameBound
	}

	// FrameBound is UNBOUNDED PRECEDING|FOLLOWING, CURRENT ROW, or
	// <offset> PRECEDING|FOLLOWING.
	FrameBound struct {
		Kind   string
		Offset Expr
	}

	When struct {
		Cond   Expr
		Result Expr
	}
)

type (
	// TableName is a possibly schema-qualified table reference. Parts keep
	// their source spelling, including any quotes.
	TableName struct {
		Parts []string
		Alias string
	}

	DerivedTable struct {
		Query QueryExpr
		Alias string
	}

	JoinExpr struct {
		Kind  JoinKind
		Left  TableExpr
		Right TableExpr
		On    Expr
		Using []string
	}
)

// JoinKind is the canonical join type.
type JoinKind int

const (
	InnerJoin JoinKind = iota
	LeftJoin
	RightJoin
	FullJoin
	CrossJoin
)

func (k JoinKind) String() string {
	switch k {
	case LeftJoin:
		return "LEFT JOIN"
	case RightJoin:
		return "RIGHT JOIN"
	case FullJoin:
		return "FULL OUTER JOIN"
	case CrossJoin:
		return "CROSS JOIN"
	}
	return "INNER JOIN"
}

// LiteralKind classifies a Literal.
type LiteralKind int

const (
	LiteralInteger LiteralKind = iota
	LiteralFloat
	LiteralString
	LiteralBoolean
	LiteralDate
	LiteralTimestamp
	LiteralNull
)

type (
	// Literal is a constant. Value is int64, float64, string (unescaped),
	// bool, time.Time or nil depending on Kind.
	Literal struct {
		Kind  LiteralKind
		Raw   string
		Value interface{}
	}

	ColumnRef struct {
		Parts []string
	}

	// StarExpr is * or qualifier.* in a projection or COUNT(*).
	StarExpr struct {
		Table string
	}

	UnaryExpr struct {
		Op string
		X  Expr
	}

	BinaryExpr struct {
		Op    string
		Left  Expr
		Right Expr
	}

	ParenExpr struct {
		X Expr
	}

	BetweenExpr struct {
		X     Expr
		Not   bool
		Lower Expr
		Upper Expr
	}

	LikeExpr struct {
		X       Expr
		Not     bool
		Pattern Expr
		Escape  Expr
	}

	IsNullExpr struct {
		X   Expr
		Not bool
	}

	// InExpr holds either a value List or a Subquery.
	InExpr struct {
		X        Expr
		Not      bool
		List     []Expr
		Subquery QueryExpr
	}

	ExistsExpr struct {
		Subquery QueryExpr
	}

	// QuantifiedExpr is x <op> ANY|ALL|SOME (subquery).
	QuantifiedExpr struct {
		X          Expr
		Op         string
		Quantifier string
		Subquery   QueryExpr
	}

	SubqueryExpr struct {
		Query QueryExpr
	}

	CaseExpr struct {
		Operand Expr
		Whens   []*When
		Else    Expr
	}

	CastExpr struct {
		X    Expr
		Type *DataType
	}

	ExtractExpr struct {
		Field string
		X     Expr
	}

	FuncCall struct {
		Name     string
		Distinct bool
		Args     []Expr
		Over     *WindowSpec
	}
)

// Name returns the unqualified table name with identifier quotes removed.
func (t *TableName) Name() string {
	return Unquote(t.Parts[len(t.Parts)-1])
}

// String returns the table name as written, qualification included.
func (t *TableName) String() string {
	return strings.Join(t.Parts, ".")
}

func (*WithStmt) node()       {}
func (*SelectStmt) node()     {}
func (*SetOpStmt) node()      {}
func (*ParenQuery) node()     {}
func (*InsertStmt) node()     {}
func (*UpdateStmt) node()     {}
func (*DeleteStmt) node()     {}
func (*MergeStmt) node()      {}
func (*TableName) node()      {}
func (*DerivedTable) node()   {}
func (*JoinExpr) node()       {}
func (*Literal) node()        {}
func (*ColumnRef) node()      {}
func (*StarExpr) node()       {}
func (*UnaryExpr) node()      {}
func (*BinaryExpr) node()     {}
func (*ParenExpr) node()      {}
func (*BetweenExpr) node()    {}
func (*LikeExpr) node()       {}
func (*IsNullExpr) node()     {}
func (*InExpr) node()         {}
func (*ExistsExpr) node()     {}
func (*QuantifiedExpr) node() {}
func (*SubqueryExpr) node()   {}
func (*CaseExpr) node()       {}
func (*CastExpr) node()       {}
func (*ExtractExpr) node()    {}
func (*FuncCall) node()       {}

func (*WithStmt) statement()   {}
func (*SelectStmt) statement() {}
func (*SetOpStmt) statement()  {}
func (*ParenQuery) statement() {}
func (*InsertStmt) statement() {}
func (*UpdateStmt) statement() {}
func (*DeleteStmt) statement() {}
func (*MergeStmt) statement()  {}

func (*WithStmt) queryExpr()   {}
func (*SelectStmt) queryExpr() {}
func (*SetOpStmt) queryExpr()  {}
func (*ParenQuery) queryExpr() {}

func (*TableName) tableExpr()    {}
func (*DerivedTable) tableExpr() {}
func (*JoinExpr) tableExpr()     {}

func (*Literal) expr()        {}
func (*ColumnRef) expr()      {}
func (*StarExpr) expr()       {}
func (*UnaryExpr) expr()      {}
func (*BinaryExpr) expr()     {}
func (*ParenExpr) expr()      {}
func (*BetweenExpr) expr()    {}
func (*LikeExpr) expr()       {}
func (*IsNullExpr) expr()     {}
func (*InExpr) expr()         {}
func (*ExistsExpr) expr()     {}
func (*QuantifiedExpr) expr() {}
func (*SubqueryExpr) expr()   {}
func (*CaseExpr) expr()       {}
func (*CastExpr) expr()       {}
func (*ExtractExpr) expr()    {}
func (*FuncCall) expr()       {}
