package calibration

import (
	"errors"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"math"
	"strconv"
	"strings"
)

var (
	errDivisionByZero = errors.New("division by zero")
	errDomain         = errors.New("argument out of domain")
)

// names bound to the measured voltage; "volts" keeps older formula sheets
// working
var variables = map[string]bool{
	"voltage": true,
	"volts":   true,
}

type function struct {
	arity int
	call  func(args []float64) (float64, error)
}

var functions = map[string]function{
	"abs": {1, func(a []float64) (float64, error) { return math.Abs(a[0]), nil }},
	"exp": {1, func(a []float64) (float64, error) { return math.Exp(a[0]), nil }},
	"sqrt": {1, func(a []float64) (float64, error) {
		if a[0] < 0 {
			return 0, errDomain
		}
		return math.Sqrt(a[0]), nil
	}},
	"log": {1, func(a []float64) (float64, error) {
		if a[0] <= 0 {
			return 0, errDomain
		}
		return math.Log(a[0]), nil
	}},
	"log10": {1, func(a []float64) (float64, error) {
		if a[0] <= 0 {
			return 0, errDomain
		}
		return math.Log10(a[0]), nil
	}},
	"pow": {2, func(a []float64) (float64, error) { return math.Pow(a[0], a[1]), nil }},
	"min": {2, func(a []float64) (float64, error) { return math.Min(a[0], a[1]), nil }},
	"max": {2, func(a []float64) (float64, error) { return math.Max(a[0], a[1]), nil }},
}

type evalFunc func(voltage float64) (float64, error)

// Expression is an arithmetic formula over the measured voltage, compiled
// once. Only numbers, the voltage variable, + - * /, parentheses and a few
// math functions are accepted; nothing else can be evaluated.
type Expression struct {
	src  string
	eval evalFunc
}

// Compile parses and checks src.
func Compile(src string) (*Expression, error) {
	if strings.TrimSpace(src) == "" {
		return nil, &Error{Expr: src, Msg: "empty formula"}
	}
	// the Go scanner would silently drop a comment, and "//" is floor
	// division in the formula sheets this replaces
	if strings.Contains(src, "//") || strings.Contains(src, "/*") {
		return nil, &Error{Expr: src, Msg: "comments and floor division are not supported"}
	}
	node, err := parser.ParseExpr(src)
	if err != nil {
		return nil, &Error{Expr: src, Msg: "syntax error", Err: err}
	}
	eval, err := compile(node)
	if err != nil {
		return nil, &Error{Expr: src, Msg: "rejected", Err: err}
	}
	return &Expression{src: src, eval: eval}, nil
}

// MustCompile is Compile for formulas known at build time.
func MustCompile(src string) *Expression {
	e, err := Compile(src)
	if err != nil {
		panic(err)
	}
	return e
}

func (e *Expression) Apply(voltage float64) (float64, error) {
	v, err := e.eval(voltage)
	if err != nil {
		return 0, &Error{Expr: e.src, Msg: "evaluation failed", Err: err}
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, &Error{Expr: e.src, Msg: fmt.Sprintf("non-finite result %v", v)}
	}
	return v, nil
}

func (e *Expression) String() string { return e.src }

func compile(n ast.Expr) (evalFunc, error) {
	switch n := n.(type) {
	case *ast.BasicLit:
		c, err := literal(n)
		if err != nil {
			return nil, err
		}
		return func(float64) (float64, error) { return c, nil }, nil

	case *ast.Ident:
		if !variables[n.Name] {
			return nil, fmt.Errorf("undefined name %q", n.Name)
		}
		return func(v float64) (float64, error) { return v, nil }, nil

	case *ast.ParenExpr:
		return compile(n.X)

	case *ast.UnaryExpr:
		x, err := compile(n.X)
		if err != nil {
			return nil, err
		}
		switch n.Op {
		case token.ADD:
			return x, nil
		case token.SUB:
			return func(v float64) (float64, error) {
				r, err := x(v)
				return -r, err
			}, nil
		}
		return nil, fmt.Errorf("unsupported operator %s", n.Op)

	case *ast.BinaryExpr:
		return binary(n)

	case *ast.CallExpr:
		return call(n)
	}
	return nil, fmt.Errorf("unsupported construct %T", n)
}

func literal(n *ast.BasicLit) (float64, error) {
	switch n.Kind {
	case token.INT:
		if i, err := strconv.ParseInt(n.Value, 0, 64); err == nil {
			return float64(i), nil
		}
		return strconv.ParseFloat(n.Value, 64)
	case token.FLOAT:
		return strconv.ParseFloat(n.Value, 64)
	}
	return 0, fmt.Errorf("unsupported literal %s", n.Value)
}

func binary(n *ast.BinaryExpr) (evalFunc, error) {
	x, err := compile(n.X)
	if err != nil {
		return nil, err
	}
	y, err := compile(n.Y)
	if err != nil {
		return nil, err
	}
	var op func(a, b float64) (float64, error)
	switch n.Op {
	case token.ADD:
		op = func(a, b float64) (float64, error) { return a + b, nil }
	case token.SUB:
		op = func(a, b float64) (float64, error) { return a - b, nil }
	case token.MUL:
		op = func(a, b float64) (float64, error) { return a * b, nil }
	case token.QUO:
		op = func(a, b float64) (float64, error) {
			if b == 0 {
				return 0, errDivisionByZero
			}
			return a / b, nil
		}
	default:
		return nil, fmt.Errorf("unsupported operator %s", n.Op)
	}
	return func(v float64) (float64, error) {
		a, err := x(v)
		if err != nil {
			return 0, err
		}
		b, err := y(v)
		if err != nil {
			return 0, err
		}
		return op(a, b)
	}, nil
}

func call(n *ast.CallExpr) (evalFunc, error) {
	id, ok := n.Fun.(*ast.Ident)
	if !ok {
		return nil, fmt.Errorf("unsupported call")
	}
	fn, ok := functions[id.Name]
	if !ok {
		return nil, fmt.Errorf("undefined function %q", id.Name)
	}
	if n.Ellipsis.IsValid() || len(n.Args) != fn.arity {
		return nil, fmt.Errorf("%s takes %d argument(s)", id.Name, fn.arity)
	}
	args := make([]evalFunc, len(n.Args))
	for i, a := range n.Args {
		f, err := compile(a)
		if err != nil {
			return nil, err
		}
		args[i] = f
	}
	return func(v float64) (float64, error) {
		vals := make([]float64, len(args))
		for i, f := range args {
			r, err := f(v)
			if err != nil {
				return 0, err
			}
			vals[i] = r
		}
		return fn.call(vals)
	}, nil
}
