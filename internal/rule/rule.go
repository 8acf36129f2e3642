// Package rule evaluates user-authored label rules such as
// "score >= 0.6" against run scores. Rules are parsed into an AST and
// walked against a strict whitelist; they are never executed as code.
//
// The grammar is deliberately small: numeric literals, named variables,
// the comparison operators ==, !=, <, <=, >, >=, the logical operators
// &&, || and !, unary minus, and parentheses. Anything else is a
// compile error.
package rule

import (
	"go/ast"
	"go/parser"
	"go/token"
	"strconv"

	"github.com/rotisserie/eris"
)

// Rule is a compiled, reusable comparison expression.
type Rule struct {
	src  string
	expr ast.Expr
}

// Compile parses and validates a rule expression.
func Compile(src string) (*Rule, error) {
	expr, err := parser.ParseExpr(src)
	if err != nil {
		return nil, eris.Wrapf(err, "rule: parse %q", src)
	}
	if err := validate(expr); err != nil {
		return nil, eris.Wrapf(err, "rule: validate %q", src)
	}
	return &Rule{src: src, expr: expr}, nil
}

// String returns the original rule source.
func (r *Rule) String() string { return r.src }

// Eval evaluates the rule against the given variables. The expression
// must reduce to a boolean; referencing an unknown variable is an error.
func (r *Rule) Eval(vars map[string]float64) (bool, error) {
	v, err := eval(r.expr, vars)
	if err != nil {
		return false, err
	}
	if !v.isBool {
		return false, eris.Errorf("rule: %q is not a boolean expression", r.src)
	}
	return v.b, nil
}

func validate(e ast.Expr) error {
	switch n := e.(type) {
	case *ast.BasicLit:
		if n.Kind != token.INT && n.Kind != token.FLOAT {
			return eris.Errorf("literal %s not allowed", n.Value)
		}
		return nil
	case *ast.Ident:
		return nil
	case *ast.ParenExpr:
		return validate(n.X)
	case *ast.UnaryExpr:
		if n.Op != token.NOT && n.Op != token.SUB {
			return eris.Errorf("operator %s not allowed", n.Op)
		}
		return validate(n.X)
	case *ast.BinaryExpr:
		switch n.Op {
		case token.EQL, token.NEQ, token.LSS, token.LEQ, token.GTR, token.GEQ,
			token.LAND, token.LOR:
		default:
			return eris.Errorf("operator %s not allowed", n.Op)
		}
		if err := validate(n.X); err != nil {
			return err
		}
		return validate(n.Y)
	default:
		return eris.Errorf("expression %T not allowed", e)
	}
}

// value is the result of evaluating a sub-expression: a number or a bool.
type value struct {
	num    float64
	b      bool
	isBool bool
}

func eval(e ast.Expr, vars map[string]float64) (value, error) {
	switch n := e.(type) {
	case *ast.BasicLit:
		f, err := strconv.ParseFloat(n.Value, 64)
		if err != nil {
			return value{}, eris.Wrapf(err, "bad literal %s", n.Value)
		}
		return value{num: f}, nil

	case *ast.Ident:
		v, ok := vars[n.Name]
		if !ok {
			return value{}, eris.Errorf("unknown variable %q", n.Name)
		}
		return value{num: v}, nil

	case *ast.ParenExpr:
		return eval(n.X, vars)

	case *ast.UnaryExpr:
		v, err := eval(n.X, vars)
		if err != nil {
			return value{}, err
		}
		switch n.Op {
		case token.NOT:
			if !v.isBool {
				return value{}, eris.New("! requires a boolean operand")
			}
			return value{b: !v.b, isBool: true}, nil
		case token.SUB:
			if v.isBool {
				return value{}, eris.New("- requires a numeric operand")
			}
			return value{num: -v.num}, nil
		}
		return value{}, eris.Errorf("operator %s not allowed", n.Op)

	case *ast.BinaryExpr:
		x, err := eval(n.X, vars)
		if err != nil {
			return value{}, err
		}
		y, err := eval(n.Y, vars)
		if err != nil {
			return value{}, err
		}
		switch n.Op {
		case token.LAND, token.LOR:
			if !x.isBool || !y.isBool {
				return value{}, eris.Errorf("%s requires boolean operands", n.Op)
			}
			if n.Op == token.LAND {
				return value{b: x.b && y.b, isBool: true}, nil
			}
			return value{b: x.b || y.b, isBool: true}, nil
		}
		if x.isBool || y.isBool {
			return value{}, eris.Errorf("%s requires numeric operands", n.Op)
		}
		var b bool
		switch n.Op {
		case token.EQL:
			b = x.num == y.num
		case token.NEQ:
			b = x.num != y.num
		case token.LSS:
			b = x.num < y.num
		case token.LEQ:
			b = x.num <= y.num
		case token.GTR:
			b = x.num > y.num
		case token.GEQ:
			b = x.num >= y.num
		default:
			return value{}, eris.Errorf("operator %s not allowed", n.Op)
		}
		return value{b: b, isBool: true}, nil
	}
	return value{}, eris.Errorf("expression %T not allowed", e)
}
