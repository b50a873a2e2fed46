package filter

import (
	"fmt"
	"strconv"
	"strings"

	"masader/internal/errors"
	"masader/internal/models"
)

// Parser represents a parser for filter expressions.
type Parser struct {
	s *bufScanner
}

// NewParser returns a new instance of Parser.
func NewParser(expr string) *Parser {
	return &Parser{s: newBufScanner(strings.NewReader(expr))}
}

// ParseString parses a filter expression. Failures carry the ErrQuery code.
func ParseString(expr string) (Expr, error) {
	return NewParser(expr).Parse()
}

// Parse parses the whole input as a single boolean expression.
func (p *Parser) Parse() (Expr, error) {
	if tok, pos, _ := p.scan(); tok == EOF {
		return nil, newParseError("empty expression", pos)
	}
	p.unscan()

	e, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if tok, pos, lit := p.scan(); tok != EOF {
		return nil, newParseError(fmt.Sprintf("unexpected %s", describe(tok, lit)), pos)
	}
	return e, nil
}

func (p *Parser) parseOr() (Expr, error) {
	lhs, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for {
		if tok, _, _ := p.scan(); tok != OR {
			p.unscan()
			return lhs, nil
		}
		rhs, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		lhs = &BinaryExpr{Op: OR, LHS: lhs, RHS: rhs}
	}
}

func (p *Parser) parseAnd() (Expr, error) {
	lhs, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for {
		if tok, _, _ := p.scan(); tok != AND {
			p.unscan()
			return lhs, nil
		}
		rhs, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		lhs = &BinaryExpr{Op: AND, LHS: lhs, RHS: rhs}
	}
}

func (p *Parser) parseNot() (Expr, error) {
	if tok, _, _ := p.scan(); tok == NOT {
		x, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &NotExpr{X: x}, nil
	}
	p.unscan()
	return p.parseComparison()
}

// parseComparison parses an operand optionally followed by a chain of
// comparisons or a membership test. A chain such as 1 < a <= 5 is expanded
// into (1 < a) and (a <= 5).
func (p *Parser) parseComparison() (Expr, error) {
	lhs, err := p.parseOperand()
	if err != nil {
		return nil, err
	}

	tok, _, _ := p.scan()
	switch {
	case tok == IN:
		return p.parseIn(lhs, false)
	case tok == NOT:
		if next, pos, lit := p.scan(); next != IN {
			return nil, newParseError(fmt.Sprintf("expected in after not, found %s", describe(next, lit)), pos)
		}
		return p.parseIn(lhs, true)
	case !tok.isComparison():
		p.unscan()
		return lhs, nil
	}

	var out Expr
	for tok.isComparison() {
		rhs, err := p.parseOperand()
		if err != nil {
			return nil, err
		}
		cmp := &BinaryExpr{Op: tok, LHS: lhs, RHS: rhs}
		if out == nil {
			out = cmp
		} else {
			out = &BinaryExpr{Op: AND, LHS: out, RHS: cmp}
		}
		lhs = rhs
		tok, _, _ = p.scan()
	}
	p.unscan()
	return out, nil
}

func (p *Parser) parseIn(x Expr, not bool) (Expr, error) {
	open, pos, lit := p.scan()
	var closing Token
	switch open {
	case LBRACK:
		closing = RBRACK
	case LPAREN:
		closing = RPAREN
	default:
		return nil, newParseError(fmt.Sprintf("expected list after in, found %s", describe(open, lit)), pos)
	}

	in := &InExpr{X: x, Not: not}
	if tok, _, _ := p.scan(); tok == closing {
		return in, nil
	}
	p.unscan()
	for {
		tok, pos, lit := p.scan()
		v, ok, err := literalValue(tok, lit, pos)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, newParseError(fmt.Sprintf("expected literal in list, found %s", describe(tok, lit)), pos)
		}
		in.Values = append(in.Values, v)

		tok, pos, lit = p.scan()
		switch tok {
		case COMMA:
			continue
		case closing:
			return in, nil
		}
		return nil, newParseError(fmt.Sprintf("expected , or %s, found %s", closing, describe(tok, lit)), pos)
	}
}

func (p *Parser) parseOperand() (Expr, error) {
	tok, pos, lit := p.scan()
	switch tok {
	case IDENT:
		return &Ident{Name: lit, Pos: pos}, nil
	case LPAREN:
		e, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if tok, pos, lit := p.scan(); tok != RPAREN {
			return nil, newParseError(fmt.Sprintf("expected ), found %s", describe(tok, lit)), pos)
		}
		return e, nil
	case BADSTRING:
		return nil, newParseError(fmt.Sprintf("unterminated %s", lit), pos)
	}

	v, ok, err := literalValue(tok, lit, pos)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, newParseError(fmt.Sprintf("unexpected %s", describe(tok, lit)), pos)
	}
	return &Literal{Value: v}, nil
}

func literalValue(tok Token, lit string, pos Pos) (models.Value, bool, error) {
	switch tok {
	case STRING:
		return models.String(lit), true, nil
	case INTEGER:
		i, err := strconv.ParseInt(lit, 10, 64)
		if err != nil {
			// Too large for int64; fall back to float like the column values do.
			f, ferr := strconv.ParseFloat(lit, 64)
			if ferr != nil {
				return models.Value{}, false, newParseError(fmt.Sprintf("invalid number %s", lit), pos)
			}
			return models.Float(f), true, nil
		}
		return models.Int(i), true, nil
	case FLOAT:
		f, err := strconv.ParseFloat(lit, 64)
		if err != nil {
			return models.Value{}, false, newParseError(fmt.Sprintf("invalid number %s", lit), pos)
		}
		return models.Float(f), true, nil
	case TRUE:
		return models.Bool(true), true, nil
	case FALSE:
		return models.Bool(false), true, nil
	case NONE:
		return models.Null(), true, nil
	}
	return models.Value{}, false, nil
}

// scan returns the next non-whitespace token.
func (p *Parser) scan() (Token, Pos, string) { return p.s.ScanSkipWhitespace() }

// unscan pushes the previously read token back onto the buffer.
func (p *Parser) unscan() { p.s.Unscan() }

func describe(tok Token, lit string) string {
	switch tok {
	case EOF:
		return "end of expression"
	case IDENT, STRING, INTEGER, FLOAT, ILLEGAL, BADSTRING:
		return strconv.Quote(lit)
	}
	return tok.String()
}

func newParseError(msg string, pos Pos) error {
	return errors.Newf(errors.ErrQuery, "invalid query at position %d: %s", pos, msg)
}
