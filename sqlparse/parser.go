package sqlparse

// Parser is a recursive-descent parser over a token slice.
type Parser struct {
	tokens []Token
	pos    int
}

// Parse parses a single SQL statement, optionally terminated by a semicolon.
// Any lexical or syntactic problem is reported as a *SyntaxError.
func Parse(sql string) (Statement, error) {
	tokens, err := Tokenize(sql)
	if err != nil {
		return nil, err
	}
	p := &Parser{tokens: tokens}
	stmt, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	if p.cur().Type == TokenSemicolon {
		p.advance()
	}
	if tok := p.cur(); tok.Type != TokenEOF {
		return nil, p.errorf(tok, "unexpected %s after end of statement", tok)
	}
	return stmt, nil
}

func (p *Parser) cur() Token {
	return p.tokens[p.pos]
}

func (p *Parser) peek(n int) Token {
	if p.pos+n >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1]
	}
	return p.tokens[p.pos+n]
}

func (p *Parser) advance() Token {
	tok := p.tokens[p.pos]
	if tok.Type != TokenEOF {
		p.pos++
	}
	return tok
}

func (p *Parser) errorf(tok Token, format string, args ...interface{}) error {
	return syntaxErrorf(tok.Line, tok.Column, format, args...)
}

func isKeyword(tok Token, words ...string) bool {
	if tok.Type != TokenKeyword {
		return false
	}
	for _, w := range words {
		if tok.Value == w {
			return true
		}
	}
	return false
}

func (p *Parser) at(words ...string) bool {
	return isKeyword(p.cur(), words...)
}

// accept consumes the keyword if it is next.
func (p *Parser) accept(word string) bool {
	if p.at(word) {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) expect(word string) error {
	if !p.accept(word) {
		tok := p.cur()
		return p.errorf(tok, "expected %s, found %s", word, tok)
	}
	return nil
}

func (p *Parser) expectType(t TokenType) (Token, error) {
	tok := p.cur()
	if tok.Type != t {
		return tok, p.errorf(tok, "expected %s, found %s", t, tok)
	}
	return p.advance(), nil
}

func (p *Parser) atOperator(ops ...string) bool {
	tok := p.cur()
	if tok.Type != TokenOperator {
		return false
	}
	for _, op := range ops {
		if tok.Value == op {
			return true
		}
	}
	return false
}

// isIdentToken reports whether tok can name a table, column or alias.
func isIdentToken(tok Token) bool {
	switch tok.Type {
	case TokenIdent, TokenQuotedIdent:
		return true
	case TokenKeyword:
		return !keywords[tok.Value]
	}
	return false
}

func (p *Parser) parseIdent() (string, error) {
	tok := p.cur()
	if !isIdentToken(tok) {
		return "", p.errorf(tok, "expected identifier, found %s", tok)
	}
	p.advance()
	return tok.Raw, nil
}

func (p *Parser) parseQualifiedName() ([]string, error) {
	first, err := p.parseIdent()
	if err != nil {
		return nil, err
	}
	parts := []string{first}
	for p.cur().Type == TokenDot {
		p.advance()
		part, err := p.parseIdent()
		if err != nil {
			return nil, err
		}
		parts = append(parts, part)
	}
	return parts, nil
}

func (p *Parser) parseIdentList() ([]string, error) {
	if _, err := p.expectType(TokenLParen); err != nil {
		return nil, err
	}
	var names []string
	for {
		name, err := p.parseIdent()
		if err != nil {
			return nil, err
		}
		names = append(names, name)
		if p.cur().Type != TokenComma {
			break
		}
		p.advance()
	}
	if _, err := p.expectType(TokenRParen); err != nil {
		return nil, err
	}
	return names, nil
}

// parseAlias reads an optional [AS] alias.
func (p *Parser) parseAlias() (string, error) {
	if p.accept("AS") {
		return p.parseIdent()
	}
	if isIdentToken(p.cur()) {
		return p.advance().Raw, nil
	}
	return "", nil
}

func (p *Parser) parseStatement() (Statement, error) {
	tok := p.cur()
	switch {
	case isKeyword(tok, "SELECT", "WITH") || tok.Type == TokenLParen:
		return p.parseQuery()
	case isKeyword(tok, "INSERT"):
		return p.parseInsert()
	case isKeyword(tok, "UPDATE"):
		return p.parseUpdate()
	case isKeyword(tok, "DELETE"):
		return p.parseDelete()
	case isKeyword(tok, "MERGE"):
		return p.parseMerge()
	case tok.Type == TokenEOF:
		return nil, p.errorf(tok, "empty statement")
	}
	return nil, p.errorf(tok, "expected SELECT, INSERT, UPDATE, DELETE, MERGE or WITH, found %s", tok)
}

func (p *Parser) startsQuery() bool {
	return p.at("SELECT", "WITH")
}

// parseQuery parses a query expression including set operations.
func (p *Parser) parseQuery() (QueryExpr, error) {
	left, err := p.parseQueryTerm()
	if err != nil {
		return nil, err
	}
	for p.at("UNION", "INTERSECT", "EXCEPT") {
		op := p.advance().Value
		if p.accept("ALL") {
			op += " ALL"
		}
		right, err := p.parseQueryTerm()
		if err != nil {
			return nil, err
		}
		left = &SetOpStmt{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseQueryTerm() (QueryExpr, error) {
	tok := p.cur()
	switch {
	case isKeyword(tok, "SELECT"):
		return p.parseSelect()
	case isKeyword(tok, "WITH"):
		return p.parseWith()
	case tok.Type == TokenLParen:
		p.advance()
		q, err := p.parseQuery()
		if err != nil {
			return nil, err
		}
		if _, err := p.expectType(TokenRParen); err != nil {
			return nil, err
		}
		return &ParenQuery{Query: q}, nil
	}
	return nil, p.errorf(tok, "expected SELECT, found %s", tok)
}

func (p *Parser) parseWith() (*WithStmt, error) {
	if err := p.expect("WITH"); err != nil {
		return nil, err
	}
	stmt := &WithStmt{Recursive: p.accept("RECURSIVE")}
	for {
		name, err := p.parseIdent()
		if err != nil {
			return nil, err
		}
		cte := &CTE{Name: name}
		if p.cur().Type == TokenLParen {
			if cte.Columns, err = p.parseIdentList(); err != nil {
				return nil, err
			}
		}
		if err := p.expect("AS"); err != nil {
			return nil, err
		}
		if _, err := p.expectType(TokenLParen); err != nil {
			return nil, err
		}
		if cte.Query, err = p.parseQuery(); err != nil {
			return nil, err
		}
		if _, err := p.expectType(TokenRParen); err != nil {
			return nil, err
		}
		stmt.CTEs = append(stmt.CTEs, cte)
		if p.cur().Type != TokenComma {
			break
		}
		p.advance()
	}
	body, err := p.parseQuery()
	if err != nil {
		return nil, err
	}
	stmt.Body = body
	return stmt, nil
}

func (p *Parser) parseSelect() (*SelectStmt, error) {
	if err := p.expect("SELECT"); err != nil {
		return nil, err
	}
	stmt := &SelectStmt{}
	if p.accept("DISTINCT") {
		stmt.Distinct = true
	} else {
		p.accept("ALL")
	}

	for {
		item, err := p.parseSelectItem()
		if err != nil {
			return nil, err
		}
		stmt.Columns = append(stmt.Columns, item)
		if p.cur().Type != TokenComma {
			break
		}
		p.advance()
	}

	var err error
	if p.accept("FROM") {
		for {
			ref, err := p.parseTableRef()
			if err != nil {
				return nil, err
			}
			stmt.From = append(stmt.From, ref)
			if p.cur().Type != TokenComma {
				break
			}
			p.advance()
		}
	}
	if p.accept("WHERE") {
		if stmt.Where, err = p.parseExpr(); err != nil {
			return nil, err
		}
	}
	if p.at("GROUP") {
		p.advance()
		if err := p.expect("BY"); err != nil {
			return nil, err
		}
		if stmt.GroupBy, err = p.parseExprList(); err != nil {
			return nil, err
		}
	}
	if p.accept("HAVING") {
		if stmt.Having, err = p.parseExpr(); err != nil {
			return nil, err
		}
	}
	if p.at("ORDER") {
		if stmt.OrderBy, err = p.parseOrderBy(); err != nil {
			return nil, err
		}
	}
	if p.accept("LIMIT") {
		if stmt.Limit, err = p.parseAdditive(); err != nil {
			return nil, err
		}
	}
	if p.accept("OFFSET") {
		if stmt.Offset, err = p.parseAdditive(); err != nil {
			return nil, err
		}
	}
	return stmt, nil
}

func (p *Parser) parseSelectItem() (*SelectItem, error) {
	if p.atOperator("*") {
		p.advance()
		return &SelectItem{Expr: &StarExpr{}}, nil
	}
	e, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	item := &SelectItem{Expr: e}
	if _, star := e.(*StarExpr); star {
		return item, nil
	}
	if item.Alias, err = p.parseAlias(); err != nil {
		return nil, err
	}
	return item, nil
}

func (p *Parser) parseOrderBy() ([]*OrderItem, error) {
	if err := p.expect("ORDER"); err != nil {
		return nil, err
	}
	if err := p.expect("BY"); err != nil {
		return nil, err
	}
	var items []*OrderItem
	for {
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		item := &OrderItem{Expr: e}
		if p.at("ASC", "DESC") {
			item.Direction = p.advance().Value
		}
		items = append(items, item)
		if p.cur().Type != TokenComma {
			return items, nil
		}
		p.advance()
	}
}

func (p *Parser) parseTableRef() (TableExpr, error) {
	left, err := p.parseTablePrimary()
	if err != nil {
		return nil, err
	}
	for {
		kind, ok, err := p.parseJoinKind()
		if err != nil {
			return nil, err
		}
		if !ok {
			return left, nil
		}
		right, err := p.parseTablePrimary()
		if err != nil {
			return nil, err
		}
		join := &JoinExpr{Kind: kind, Left: left, Right: right}
		if kind != CrossJoin {
			switch {
			case p.accept("ON"):
				if join.On, err = p.parseExpr(); err != nil {
					return nil, err
				}
			case p.accept("USING"):
				if join.Using, err = p.parseIdentList(); err != nil {
					return nil, err
				}
			default:
				tok := p.cur()
				return nil, p.errorf(tok, "expected ON or USING, found %s", tok)
			}
		}
		left = join
	}
}

func (p *Parser) parseJoinKind() (JoinKind, bool, error) {
	var kind JoinKind
	switch {
	case p.accept("JOIN"):
		return InnerJoin, true, nil
	case p.accept("INNER"):
		kind = InnerJoin
	case p.accept("LEFT"):
		kind = LeftJoin
		p.accept("OUTER")
	case p.accept("RIGHT"):
		kind = RightJoin
		p.accept("OUTER")
	case p.accept("FULL"):
		kind = FullJoin
		p.accept("OUTER")
	case p.accept("CROSS"):
		kind = CrossJoin
	default:
		return 0, false, nil
	}
	if err := p.expect("JOIN"); err != nil {
		return 0, false, err
	}
	return kind, true, nil
}

func (p *Parser) parseTablePrimary() (TableExpr, error) {
	if p.cur().Type == TokenLParen {
		open := p.advance()
		if !p.startsQuery() && p.cur().Type != TokenLParen {
			return nil, p.errorf(open, "expected subquery after '('")
		}
		q, err := p.parseQuery()
		if err != nil {
			return nil, err
		}
		if _, err := p.expectType(TokenRParen); err != nil {
			return nil, err
		}
		alias, err := p.parseAlias()
		if err != nil {
			return nil, err
		}
		return &DerivedTable{Query: q, Alias: alias}, nil
	}
	return p.parseTableName(true)
}

func (p *Parser) parseTableName(allowAlias bool) (*TableName, error) {
	parts, err := p.parseQualifiedName()
	if err != nil {
		return nil, err
	}
	t := &TableName{Parts: parts}
	if allowAlias {
		if t.Alias, err = p.parseAlias(); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func (p *Parser) parseInsert() (*InsertStmt, error) {
	if err := p.expect("INSERT"); err != nil {
		return nil, err
	}
	if err := p.expect("INTO"); err != nil {
		return nil, err
	}
	table, err := p.parseTableName(false)
	if err != nil {
		return nil, err
	}
	stmt := &InsertStmt{Table: table}
	if p.cur().Type == TokenLParen && !isKeyword(p.peek(1), "SELECT", "WITH") {
		if stmt.Columns, err = p.parseIdentList(); err != nil {
			return nil, err
		}
	}
	if p.accept("VALUES") {
		for {
			row, err := p.parseValuesRow()
			if err != nil {
				return nil, err
			}
			stmt.Rows = append(stmt.Rows, row)
			if p.cur().Type != TokenComma {
				break
			}
			p.advance()
		}
		return stmt, nil
	}
	if p.startsQuery() || p.cur().Type == TokenLParen {
		if stmt.Query, err = p.parseQuery(); err != nil {
			return nil, err
		}
		return stmt, nil
	}
	tok := p.cur()
	return nil, p.errorf(tok, "expected VALUES or SELECT, found %s", tok)
}

func (p *Parser) parseValuesRow() ([]Expr, error) {
	if _, err := p.expectType(TokenLParen); err != nil {
		return nil, err
	}
	row, err := p.parseExprList()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectType(TokenRParen); err != nil {
		return nil, err
	}
	return row, nil
}

func (p *Parser) parseAssignments() ([]*Assignment, error) {
	if err := p.expect("SET"); err != nil {
		return nil, err
	}
	var list []*Assignment
	for {
		col, err := p.parseQualifiedName()
		if err != nil {
			return nil, err
		}
		if !p.atOperator("=") {
			tok := p.cur()
			return nil, p.errorf(tok, "expected '=', found %s", tok)
		}
		p.advance()
		val, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		list = append(list, &Assignment{Column: col, Value: val})
		if p.cur().Type != TokenComma {
			return list, nil
		}
		p.advance()
	}
}

func (p *Parser) parseUpdate() (*UpdateStmt, error) {
	if err := p.expect("UPDATE"); err != nil {
		return nil, err
	}
	table, err := p.parseTableName(true)
	if err != nil {
		return nil, err
	}
	stmt := &UpdateStmt{Table: table}
	if stmt.Set, err = p.parseAssignments(); err != nil {
		return nil, err
	}
	if p.accept("WHERE") {
		if stmt.Where, err = p.parseExpr(); err != nil {
			return nil, err
		}
	}
	return stmt, nil
}

func (p *Parser) parseDelete() (*DeleteStmt, error) {
	if err := p.expect("DELETE"); err != nil {
		return nil, err
	}
	if err := p.expect("FROM"); err != nil {
		return nil, err
	}
	table, err := p.parseTableName(true)
	if err != nil {
		return nil, err
	}
	stmt := &DeleteStmt{Table: table}
	if p.accept("WHERE") {
		if stmt.Where, err = p.parseExpr(); err != nil {
			return nil, err
		}
	}
	return stmt, nil
}

func (p *Parser) parseMerge() (*MergeStmt, error) {
	if err := p.expect("MERGE"); err != nil {
		return nil, err
	}
	if err := p.expect("INTO"); err != nil {
		return nil, err
	}
	target, err := p.parseTableName(true)
	if err != nil {
		return nil, err
	}
	if err := p.expect("USING"); err != nil {
		return nil, err
	}
	source, err := p.parseTablePrimary()
	if err != nil {
		return nil, err
	}
	if err := p.expect("ON"); err != nil {
		return nil, err
	}
	on, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	stmt := &MergeStmt{Target: target, Source: source, On: on}
	for p.at("WHEN") {
		clause, err := p.parseMergeClause()
		if err != nil {
			return nil, err
		}
		stmt.Clauses = append(stmt.Clauses, clause)
	}
	if len(stmt.Clauses) == 0 {
		tok := p.cur()
		return nil, p.errorf(tok, "expected WHEN, found %s", tok)
	}
	return stmt, nil
}

func (p *Parser) parseMergeClause() (*MergeClause, error) {
	if err := p.expect("WHEN"); err != nil {
		return nil, err
	}
	clause := &MergeClause{Matched: !p.accept("NOT")}
	if err := p.expect("MATCHED"); err != nil {
		return nil, err
	}
	var err error
	if p.accept("AND") {
		if clause.Condition, err = p.parseExpr(); err != nil {
			return nil, err
		}
	}
	if err := p.expect("THEN"); err != nil {
		return nil, err
	}
	tok := p.cur()
	switch {
	case clause.Matched && isKeyword(tok, "UPDATE"):
		p.advance()
		clause.Action = "UPDATE"
		if clause.Set, err = p.parseAssignments(); err != nil {
			return nil, err
		}
	case clause.Matched && isKeyword(tok, "DELETE"):
		p.advance()
		clause.Action = "DELETE"
	case !clause.Matched && isKeyword(tok, "INSERT"):
		p.advance()
		clause.Action = "INSERT"
		if p.cur().Type == TokenLParen {
			if clause.Columns, err = p.parseIdentList(); err != nil {
				return nil, err
			}
		}
		if err := p.expect("VALUES"); err != nil {
			return nil, err
		}
		if clause.Values, err = p.parseValuesRow(); err != nil {
			return nil, err
		}
	case clause.Matched:
		return nil, p.errorf(tok, "expected UPDATE or DELETE, found %s", tok)
	default:
		return nil, p.errorf(tok, "expected INSERT, found %s", tok)
	}
	return clause, nil
}
