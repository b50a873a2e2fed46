package filter

import (
	"strconv"
	"strings"

	"masader/internal/models"
)

// Expr is a node of a parsed filter expression.
type Expr interface {
	expr()
	String() string
}

func (*BinaryExpr) expr() {}
func (*NotExpr) expr()    {}
func (*InExpr) expr()     {}
func (*Ident) expr()      {}
func (*Literal) expr()    {}

// BinaryExpr is a logical (AND, OR) or comparison (EQ, LT, ...) expression.
type BinaryExpr struct {
	Op  Token
	LHS Expr
	RHS Expr
}

func (e *BinaryExpr) String() string {
	return "(" + e.LHS.String() + " " + e.Op.String() + " " + e.RHS.String() + ")"
}

// NotExpr negates its operand.
type NotExpr struct {
	X Expr
}

func (e *NotExpr) String() string { return "not " + e.X.String() }

// InExpr tests membership of X in a literal list.
type InExpr struct {
	X      Expr
	Values []models.Value
	Not    bool
}

func (e *InExpr) String() string {
	parts := make([]string, len(e.Values))
	for i, v := range e.Values {
		parts[i] = (&Literal{Value: v}).String()
	}
	op := " in "
	if e.Not {
		op = " not in "
	}
	return e.X.String() + op + "[" + strings.Join(parts, ", ") + "]"
}

// Ident references a record column.
type Ident struct {
	Name string
	Pos  Pos
}

func (e *Ident) String() string {
	for _, ch := range e.Name {
		if !isIdentChar(ch) {
			return "`" + e.Name + "`"
		}
	}
	return e.Name
}

// Literal is a constant value.
type Literal struct {
	Value models.Value
}

func (e *Literal) String() string {
	switch e.Value.Kind() {
	case models.KindString:
		return strconv.Quote(e.Value.Str())
	case models.KindBool:
		if e.Value.Bool() {
			return TRUE.String()
		}
		return FALSE.String()
	case models.KindNull:
		return NONE.String()
	}
	return e.Value.String()
}

// Walk calls fn for every node of the tree rooted at e, parents first.
func Walk(e Expr, fn func(Expr)) {
	if e == nil {
		return
	}
	fn(e)
	switch n := e.(type) {
	case *BinaryExpr:
		Walk(n.LHS, fn)
		Walk(n.RHS, fn)
	case *NotExpr:
		Walk(n.X, fn)
	case *InExpr:
		Walk(n.X, fn)
	}
}

// Columns returns the distinct column names referenced by e, in order of
// first appearance.
func Columns(e Expr) []string {
	var out []string
	seen := make(map[string]bool)
	Walk(e, func(n Expr) {
		if id, ok := n.(*Ident); ok && !seen[id.Name] {
			seen[id.Name] = true
			out = append(out, id.Name)
		}
	})
	return out
}
