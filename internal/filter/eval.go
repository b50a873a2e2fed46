package filter

import (
	"cmp"
	"fmt"

	"masader/internal/errors"
	"masader/internal/models"
)

// Predicate is a parsed filter expression bound to a schema.
type Predicate struct {
	expr Expr
}

// Compile parses expr and checks every referenced column against schema.
func Compile(expr string, schema models.Schema) (*Predicate, error) {
	e, err := ParseString(expr)
	if err != nil {
		return nil, err
	}
	if err := Bind(e, schema); err != nil {
		return nil, err
	}
	return &Predicate{expr: e}, nil
}

// Bind fails with ErrQuery when e references a column missing from schema.
func Bind(e Expr, schema models.Schema) error {
	for _, name := range Columns(e) {
		if !schema.Has(name) {
			return errors.Newf(errors.ErrQuery, "invalid query: column %q does not exist", name)
		}
	}
	return nil
}

func (p *Predicate) String() string { return p.expr.String() }

// Match evaluates the predicate against r.
func (p *Predicate) Match(r models.Record) (bool, error) {
	v, err := eval(p.expr, r)
	if err != nil {
		return false, err
	}
	return truth(v, p.expr)
}

func eval(e Expr, r models.Record) (models.Value, error) {
	switch n := e.(type) {
	case *Literal:
		return n.Value, nil
	case *Ident:
		v, ok := r.Get(n.Name)
		if !ok {
			// Records that disagree with the schema read as null.
			return models.Null(), nil
		}
		return v, nil
	case *NotExpr:
		v, err := eval(n.X, r)
		if err != nil {
			return models.Value{}, err
		}
		b, err := truth(v, n.X)
		if err != nil {
			return models.Value{}, err
		}
		return models.Bool(!b), nil
	case *InExpr:
		v, err := eval(n.X, r)
		if err != nil {
			return models.Value{}, err
		}
		found := false
		for _, item := range n.Values {
			if equal(v, item) {
				found = true
				break
			}
		}
		return models.Bool(found != n.Not), nil
	case *BinaryExpr:
		return evalBinary(n, r)
	}
	return models.Value{}, errors.Newf(errors.ErrQuery, "invalid query: unsupported expression %s", e)
}

func evalBinary(n *BinaryExpr, r models.Record) (models.Value, error) {
	lhs, err := eval(n.LHS, r)
	if err != nil {
		return models.Value{}, err
	}

	switch n.Op {
	case AND, OR:
		lb, err := truth(lhs, n.LHS)
		if err != nil {
			return models.Value{}, err
		}
		if n.Op == AND && !lb {
			return models.Bool(false), nil
		}
		if n.Op == OR && lb {
			return models.Bool(true), nil
		}
		rhs, err := eval(n.RHS, r)
		if err != nil {
			return models.Value{}, err
		}
		rb, err := truth(rhs, n.RHS)
		if err != nil {
			return models.Value{}, err
		}
		return models.Bool(rb), nil
	}

	rhs, err := eval(n.RHS, r)
	if err != nil {
		return models.Value{}, err
	}
	ok, err := compare(n.Op, lhs, rhs)
	if err != nil {
		return models.Value{}, err
	}
	return models.Bool(ok), nil
}

// truth converts a value produced by e to a boolean. Only bool and null
// values have a truth value; null is false.
func truth(v models.Value, e Expr) (bool, error) {
	switch v.Kind() {
	case models.KindBool:
		return v.Bool(), nil
	case models.KindNull:
		return false, nil
	}
	return false, errors.Newf(errors.ErrQuery, "invalid query: %s is %s, not a boolean condition", e, v.Kind())
}

// compare applies a relational operator. A null operand never compares
// equal or ordered, so only != holds for it.
func compare(op Token, a, b models.Value) (bool, error) {
	if a.IsNull() || b.IsNull() {
		return op == NEQ, nil
	}

	switch op {
	case EQ:
		return equal(a, b), nil
	case NEQ:
		return !equal(a, b), nil
	}

	c, err := order(a, b)
	if err != nil {
		return false, errors.Newf(errors.ErrQuery, "invalid query: cannot apply %s to %s and %s", op, a.Kind(), b.Kind())
	}
	switch op {
	case LT:
		return c < 0, nil
	case LTE:
		return c <= 0, nil
	case GT:
		return c > 0, nil
	case GTE:
		return c >= 0, nil
	}
	return false, fmt.Errorf("unknown comparison operator %s", op)
}

// equal reports whether a and b hold the same value. Values of different
// kinds are unequal except int and float, which compare numerically.
func equal(a, b models.Value) bool {
	if a.IsNumeric() && b.IsNumeric() {
		if a.Kind() == models.KindInt && b.Kind() == models.KindInt {
			return a.Int() == b.Int()
		}
		return a.Number() == b.Number()
	}
	if a.Kind() != b.Kind() {
		return false
	}
	switch a.Kind() {
	case models.KindString:
		return a.Str() == b.Str()
	case models.KindBool:
		return a.Bool() == b.Bool()
	case models.KindNull:
		return false
	}
	return a.String() == b.String()
}

// order returns -1, 0 or 1. Only numbers, strings and booleans are ordered,
// and only against their own kind.
func order(a, b models.Value) (int, error) {
	switch {
	case a.IsNumeric() && b.IsNumeric():
		if a.Kind() == models.KindInt && b.Kind() == models.KindInt {
			return cmp.Compare(a.Int(), b.Int()), nil
		}
		return cmp.Compare(a.Number(), b.Number()), nil
	case a.Kind() == models.KindString && b.Kind() == models.KindString:
		return cmp.Compare(a.Str(), b.Str()), nil
	case a.Kind() == models.KindBool && b.Kind() == models.KindBool:
		return cmp.Compare(boolInt(a.Bool()), boolInt(b.Bool())), nil
	}
	return 0, fmt.Errorf("unordered")
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
