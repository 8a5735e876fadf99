package sqlparse

import (
	"math"
	"strconv"
	"strings"
	"time"
)

var comparisonOps = []string{"=", "!=", "<>", "<", "<=", ">", ">="}

var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.999999999",
	time.RFC3339Nano,
	"2006-01-02",
}

func (p *Parser) parseExpr() (Expr, error) {
	return p.parseOr()
}

func (p *Parser) parseExprList() ([]Expr, error) {
	var list []Expr
	for {
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		list = append(list, e)
		if p.cur().Type != TokenComma {
			return list, nil
		}
		p.advance()
	}
}

func (p *Parser) parseOr() (Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.accept("OR") {
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: "OR", Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseAnd() (Expr, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.accept("AND") {
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: "AND", Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseNot() (Expr, error) {
	if p.accept("NOT") {
		x, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &UnaryExpr{Op: "NOT", X: x}, nil
	}
	return p.parseComparison()
}

// parseComparison handles comparison operators and the postfix predicates
// IS [NOT] NULL, [NOT] BETWEEN, [NOT] IN, [NOT] LIKE and quantified
// comparisons.
func (p *Parser) parseComparison() (Expr, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.atOperator(comparisonOps...):
			op := p.advance().Value
			if p.at("ANY", "ALL", "SOME") {
				quant := p.advance().Value
				q, err := p.parseParenQuery()
				if err != nil {
					return nil, err
				}
				left = &QuantifiedExpr{X: left, Op: op, Quantifier: quant, Subquery: q}
				continue
			}
			right, err := p.parseAdditive()
			if err != nil {
				return nil, err
			}
			left = &BinaryExpr{Op: op, Left: left, Right: right}
		case p.at("IS"):
			p.advance()
			not := p.accept("NOT")
			if err := p.expect("NULL"); err != nil {
				return nil, err
			}
			left = &IsNullExpr{X: left, Not: not}
		case p.at("BETWEEN", "IN", "LIKE"), p.at("NOT") && isKeyword(p.peek(1), "BETWEEN", "IN", "LIKE"):
			not := p.accept("NOT")
			if left, err = p.parsePredicate(left, not); err != nil {
				return nil, err
			}
		default:
			return left, nil
		}
	}
}

func (p *Parser) parsePredicate(x Expr, not bool) (Expr, error) {
	switch p.advance().Value {
	case "BETWEEN":
		lower, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		if err := p.expect("AND"); err != nil {
			return nil, err
		}
		upper, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		return &BetweenExpr{X: x, Not: not, Lower: lower, Upper: upper}, nil
	case "IN":
		open, err := p.expectType(TokenLParen)
		if err != nil {
			return nil, err
		}
		in := &InExpr{X: x, Not: not}
		if p.startsQuery() {
			if in.Subquery, err = p.parseQuery(); err != nil {
				return nil, err
			}
		} else {
			if p.cur().Type == TokenRParen {
				return nil, p.errorf(open, "empty IN list")
			}
			if in.List, err = p.parseExprList(); err != nil {
				return nil, err
			}
		}
		if _, err := p.expectType(TokenRParen); err != nil {
			return nil, err
		}
		return in, nil
	default:
		pattern, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		like := &LikeExpr{X: x, Not: not, Pattern: pattern}
		if p.accept("ESCAPE") {
			if like.Escape, err = p.parseAdditive(); err != nil {
				return nil, err
			}
		}
		return like, nil
	}
}

func (p *Parser) parseAdditive() (Expr, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for p.atOperator("+", "-", "||") {
		op := p.advance().Value
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseMultiplicative() (Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.atOperator("*", "/", "%") {
		op := p.advance().Value
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: op, Left: left, Right: right}
	}
	return left, nil
}

// parseUnary folds a sign directly applied to a numeric literal into the
// literal itself.
func (p *Parser) parseUnary() (Expr, error) {
	if !p.atOperator("-", "+") {
		return p.parsePrimary()
	}
	op := p.advance().Value
	x, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	if lit, ok := x.(*Literal); ok && op == "-" {
		switch v := lit.Value.(type) {
		case int64:
			return &Literal{Kind: LiteralInteger, Raw: "-" + lit.Raw, Value: -v}, nil
		case float64:
			return &Literal{Kind: LiteralFloat, Raw: "-" + lit.Raw, Value: -v}, nil
		}
	}
	if lit, ok := x.(*Literal); ok && op == "+" && (lit.Kind == LiteralInteger || lit.Kind == LiteralFloat) {
		return lit, nil
	}
	return &UnaryExpr{Op: op, X: x}, nil
}

func (p *Parser) parseParenQuery() (QueryExpr, error) {
	if _, err := p.expectType(TokenLParen); err != nil {
		return nil, err
	}
	q, err := p.parseQuery()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectType(TokenRParen); err != nil {
		return nil, err
	}
	return q, nil
}

func (p *Parser) parsePrimary() (Expr, error) {
	tok := p.cur()
	switch tok.Type {
	case TokenInteger:
		p.advance()
		v, err := strconv.ParseInt(tok.Raw, 10, 64)
		if err != nil {
			return nil, p.errorf(tok, "integer literal %s out of range", tok.Raw)
		}
		return &Literal{Kind: LiteralInteger, Raw: tok.Raw, Value: v}, nil
	case TokenFloat:
		p.advance()
		v, err := strconv.ParseFloat(tok.Raw, 64)
		if err != nil || math.IsInf(v, 0) {
			return nil, p.errorf(tok, "float literal %s out of range", tok.Raw)
		}
		return &Literal{Kind: LiteralFloat, Raw: tok.Raw, Value: v}, nil
	case TokenString:
		p.advance()
		return &Literal{Kind: LiteralString, Raw: tok.Raw, Value: UnescapeString(tok.Raw)}, nil
	case TokenLParen:
		p.advance()
		if p.startsQuery() {
			q, err := p.parseQuery()
			if err != nil {
				return nil, err
			}
			if _, err := p.expectType(TokenRParen); err != nil {
				return nil, err
			}
			return &SubqueryExpr{Query: q}, nil
		}
		x, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expectType(TokenRParen); err != nil {
			return nil, err
		}
		return &ParenExpr{X: x}, nil
	case TokenKeyword:
		switch tok.Value {
		case "NULL":
			p.advance()
			return &Literal{Kind: LiteralNull, Raw: tok.Raw}, nil
		case "TRUE", "FALSE":
			p.advance()
			return &Literal{Kind: LiteralBoolean, Raw: tok.Raw, Value: tok.Value == "TRUE"}, nil
		case "DATE", "TIMESTAMP":
			if p.peek(1).Type == TokenString {
				return p.parseDateLiteral()
			}
		case "CASE":
			return p.parseCase()
		case "CAST":
			return p.parseCast()
		case "EXTRACT":
			return p.parseExtract()
		case "EXISTS":
			p.advance()
			q, err := p.parseParenQuery()
			if err != nil {
				return nil, err
			}
			return &ExistsExpr{Subquery: q}, nil
		}
	}
	if isIdentToken(tok) {
		return p.parseNameExpr()
	}
	return nil, p.errorf(tok, "unexpected %s in expression", tok)
}

func (p *Parser) parseDateLiteral() (Expr, error) {
	kw := p.advance()
	str := p.advance()
	text := UnescapeString(str.Raw)
	if kw.Value == "DATE" {
		v, err := time.Parse("2006-01-02", text)
		if err != nil {
			return nil, p.errorf(str, "invalid DATE literal %s", str.Raw)
		}
		return &Literal{Kind: LiteralDate, Raw: kw.Raw + " " + str.Raw, Value: v}, nil
	}
	for _, layout := range timestampLayouts {
		if v, err := time.Parse(layout, text); err == nil {
			return &Literal{Kind: LiteralTimestamp, Raw: kw.Raw + " " + str.Raw, Value: v}, nil
		}
	}
	return nil, p.errorf(str, "invalid TIMESTAMP literal %s", str.Raw)
}

// parseNameExpr parses a column reference, qualifier.* or a function call.
func (p *Parser) parseNameExpr() (Expr, error) {
	parts := []string{p.advance().Raw}
	for p.cur().Type == TokenDot {
		p.advance()
		if p.atOperator("*") {
			p.advance()
			return &StarExpr{Table: strings.Join(parts, ".")}, nil
		}
		part, err := p.parseIdent()
		if err != nil {
			return nil, err
		}
		parts = append(parts, part)
	}
	if p.cur().Type == TokenLParen {
		return p.parseFuncCall(strings.Join(parts, "."))
	}
	return &ColumnRef{Parts: parts}, nil
}

func (p *Parser) parseFuncCall(name string) (Expr, error) {
	p.advance()
	fn := &FuncCall{Name: name}
	switch {
	case p.cur().Type == TokenRParen:
	case p.atOperator("*"):
		p.advance()
		fn.Args = []Expr{&StarExpr{}}
	default:
		if p.accept("DISTINCT") {
			fn.Distinct = true
		} else {
			p.accept("ALL")
		}
		args, err := p.parseExprList()
		if err != nil {
			return nil, err
		}
		fn.Args = args
	}
	if _, err := p.expectType(TokenRParen); err != nil {
		return nil, err
	}
	if p.accept("OVER") {
		spec, err := p.parseWindowSpec()
		if err != nil {
			return nil, err
		}
		fn.Over = spec
	}
	return fn, nil
}

func (p *Parser) parseWindowSpec() (*WindowSpec, error) {
	if _, err := p.expectType(TokenLParen); err != nil {
		return nil, err
	}
	spec := &WindowSpec{}
	var err error
	if p.at("PARTITION") {
		p.advance()
		if err := p.expect("BY"); err != nil {
			return nil, err
		}
		if spec.PartitionBy, err = p.parseExprList(); err != nil {
			return nil, err
		}
	}
	if p.at("ORDER") {
		if spec.OrderBy, err = p.parseOrderBy(); err != nil {
			return nil, err
		}
	}
	if p.at("ROWS", "RANGE") {
		frame := &FrameClause{Unit: p.advance().Value}
		if p.accept("BETWEEN") {
			if frame.Start, err = p.parseFrameBound(); err != nil {
				return nil, err
			}
			if err := p.expect("AND"); err != nil {
				return nil, err
			}
			if frame.End, err = p.parseFrameBound(); err != nil {
				return nil, err
			}
		} else if frame.Start, err = p.parseFrameBound(); err != nil {
			return nil, err
		}
		spec.Frame = frame
	}
	if _, err := p.expectType(TokenRParen); err != nil {
		return nil, err
	}
	return spec, nil
}

func (p *Parser) parseFrameBound() (*FrameBound, error) {
	switch {
	case p.accept("UNBOUNDED"):
		if !p.at("PRECEDING", "FOLLOWING") {
			tok := p.cur()
			return nil, p.errorf(tok, "expected PRECEDING or FOLLOWING, found %s", tok)
		}
		return &FrameBound{Kind: "UNBOUNDED " + p.advance().Value}, nil
	case p.accept("CURRENT"):
		if err := p.expect("ROW"); err != nil {
			return nil, err
		}
		return &FrameBound{Kind: "CURRENT ROW"}, nil
	}
	offset, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	if !p.at("PRECEDING", "FOLLOWING") {
		tok := p.cur()
		return nil, p.errorf(tok, "expected PRECEDING or FOLLOWING, found %s", tok)
	}
	return &FrameBound{Kind: p.advance().Value, Offset: offset}, nil
}

func (p *Parser) parseCase() (Expr, error) {
	p.advance()
	c := &CaseExpr{}
	var err error
	if !p.at("WHEN") {
		if c.Operand, err = p.parseExpr(); err != nil {
			return nil, err
		}
	}
	for p.accept("WHEN") {
		cond, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := p.expect("THEN"); err != nil {
			return nil, err
		}
		result, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		c.Whens = append(c.Whens, &When{Cond: cond, Result: result})
	}
	if len(c.Whens) == 0 {
		tok := p.cur()
		return nil, p.errorf(tok, "expected WHEN, found %s", tok)
	}
	if p.accept("ELSE") {
		if c.Else, err = p.parseExpr(); err != nil {
			return nil, err
		}
	}
	if err := p.expect("END"); err != nil {
		return nil, err
	}
	return c, nil
}

func (p *Parser) parseCast() (Expr, error) {
	p.advance()
	if _, err := p.expectType(TokenLParen); err != nil {
		return nil, err
	}
	x, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if err := p.expect("AS"); err != nil {
		return nil, err
	}
	dt, err := p.parseDataType()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectType(TokenRParen); err != nil {
		return nil, err
	}
	return &CastExpr{X: x, Type: dt}, nil
}

// parseDataType reads a type name of one or more words with optional
// integer arguments, e.g. DOUBLE PRECISION or DECIMAL(10, 2).
func (p *Parser) parseDataType() (*DataType, error) {
	var words []string
	for isIdentToken(p.cur()) {
		words = append(words, strings.ToUpper(p.advance().Raw))
	}
	if len(words) == 0 {
		tok := p.cur()
		return nil, p.errorf(tok, "expected type name, found %s", tok)
	}
	dt := &DataType{Name: strings.Join(words, " ")}
	if p.cur().Type == TokenLParen {
		p.advance()
		for {
			arg, err := p.expectType(TokenInteger)
			if err != nil {
				return nil, err
			}
			dt.Args = append(dt.Args, arg.Raw)
			if p.cur().Type != TokenComma {
				break
			}
			p.advance()
		}
		if _, err := p.expectType(TokenRParen); err != nil {
			return nil, err
		}
	}
	return dt, nil
}

func (p *Parser) parseExtract() (Expr, error) {
	p.advance()
	if _, err := p.expectType(TokenLParen); err != nil {
		return nil, err
	}
	field := p.cur()
	if !isIdentToken(field) || field.Type == TokenQuotedIdent {
		return nil, p.errorf(field, "expected date part, found %s", field)
	}
	p.advance()
	if err := p.expect("FROM"); err != nil {
		return nil, err
	}
	x, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectType(TokenRParen); err != nil {
		return nil, err
	}
	return &ExtractExpr{Field: strings.ToUpper(field.Raw), X: x}, nil
}

// UnescapeString strips the surrounding quotes of a string literal, then
// replaces doubled single quotes and backslash-escaped quotes with a single
// quote, in that order.
func UnescapeString(raw string) string {
	s := raw
	if len(s) >= 2 && s[0] == '\'' && s[len(s)-1] == '\'' {
		s = s[1 : len(s)-1]
	}
	s = strings.ReplaceAll(s, "''", "'")
	return strings.ReplaceAll(s, `\'`, "'")
}
