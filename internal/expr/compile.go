// Package expr compiles formula text into reusable expressions. Formulas are
// normalized into HCL expression syntax, parsed with hclsyntax, and the
// resulting tree is compiled into closures that read the environment on
// every evaluation.
package expr

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/vk/cashgrid/internal/value"
)

var (
	ErrUnknownVariable = errors.New("unknown variable")
	ErrUnknownFunction = errors.New("unknown function")
	ErrUnsupported     = errors.New("unsupported expression")
	ErrArity           = errors.New("wrong number of arguments")
)

// Func is a function callable from formulas. Arguments are evaluated
// before the call.
type Func func(args []value.Value) (value.Value, error)

type node func(env *Env) (value.Value, error)

// Compiler turns formula text into Expressions. Each Compiler carries its
// own function table, so bridge functions bound to one engine never leak
// into another.
type Compiler struct {
	funcs map[string]Func
}

// NewCompiler returns a compiler with the builtin functions registered.
func NewCompiler() *Compiler {
	c := &Compiler{funcs: make(map[string]Func)}
	registerBuiltins(c)
	return c
}

// Register adds or replaces a function.
func (c *Compiler) Register(name string, fn Func) {
	c.funcs[name] = fn
}

// Compile parses and compiles src. Parse and compile failures are reported
// as errors carrying the HCL diagnostics.
func (c *Compiler) Compile(src string) (*Expression, error) {
	if strings.TrimSpace(src) == "" {
		return nil, fmt.Errorf("empty formula")
	}
	normalized := normalize(src)
	parsed, diags := hclsyntax.ParseExpression([]byte(normalized), "formula", hcl.Pos{Line: 1, Column: 1, Byte: 0})
	if diags.HasErrors() {
		return nil, fmt.Errorf("parse %q: %s", src, diags.Error())
	}
	root, err := c.compile(parsed)
	if err != nil {
		return nil, fmt.Errorf("compile %q: %w", src, err)
	}
	return &Expression{Source: src, Normalized: normalized, root: root}, nil
}

func constant(v value.Value) node {
	return func(*Env) (value.Value, error) { return v, nil }
}

func (c *Compiler) compile(e hclsyntax.Expression) (node, error) {
	switch e := e.(type) {
	case *hclsyntax.LiteralValueExpr:
		v, err := value.FromCty(e.Val)
		if err != nil {
			return nil, err
		}
		return constant(v), nil

	case *hclsyntax.TemplateExpr:
		return c.compileTemplate(e.Parts)

	case *hclsyntax.TemplateWrapExpr:
		return c.compile(e.Wrapped)

	case *hclsyntax.ParenthesesExpr:
		return c.compile(e.Expression)

	case *hclsyntax.ScopeTraversalExpr:
		name := e.Traversal.RootName()
		steps, err := indexSteps(e.Traversal[1:])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		return func(env *Env) (value.Value, error) {
			v, ok := env.Lookup(name)
			if !ok {
				return value.Null, fmt.Errorf("%w %q", ErrUnknownVariable, name)
			}
			return applySteps(v, steps)
		}, nil

	case *hclsyntax.RelativeTraversalExpr:
		src, err := c.compile(e.Source)
		if err != nil {
			return nil, err
		}
		steps, err := indexSteps(e.Traversal)
		if err != nil {
			return nil, err
		}
		return func(env *Env) (value.Value, error) {
			v, err := src(env)
			if err != nil {
				return value.Null, err
			}
			return applySteps(v, steps)
		}, nil

	case *hclsyntax.IndexExpr:
		coll, err := c.compile(e.Collection)
		if err != nil {
			return nil, err
		}
		key, err := c.compile(e.Key)
		if err != nil {
			return nil, err
		}
		return func(env *Env) (value.Value, error) {
			cv, err := coll(env)
			if err != nil {
				return value.Null, err
			}
			kv, err := key(env)
			if err != nil {
				return value.Null, err
			}
			return index(cv, kv.Int())
		}, nil

	case *hclsyntax.TupleConsExpr:
		items, err := c.compileAll(e.Exprs)
		if err != nil {
			return nil, err
		}
		return func(env *Env) (value.Value, error) {
			vals, err := evalAll(env, items)
			if err != nil {
				return value.Null, err
			}
			return value.List(vals), nil
		}, nil

	case *hclsyntax.ConditionalExpr:
		return c.compileIf(e.Condition, e.TrueResult, e.FalseResult)

	case *hclsyntax.UnaryOpExpr:
		return c.compileUnary(e)

	case *hclsyntax.BinaryOpExpr:
		return c.compileBinary(e)

	case *hclsyntax.FunctionCallExpr:
		return c.compileCall(e)
	}
	return nil, fmt.Errorf("%w: %T", ErrUnsupported, e)
}

func (c *Compiler) compileAll(exprs []hclsyntax.Expression) ([]node, error) {
	nodes := make([]node, len(exprs))
	for i, x := range exprs {
		n, err := c.compile(x)
		if err != nil {
			return nil, err
		}
		nodes[i] = n
	}
	return nodes, nil
}

func evalAll(env *Env, nodes []node) ([]value.Value, error) {
	vals := make([]value.Value, len(nodes))
	for i, n := range nodes {
		v, err := n(env)
		if err != nil {
			return nil, err
		}
		vals[i] = v
	}
	return vals, nil
}

func (c *Compiler) compileTemplate(parts []hclsyntax.Expression) (node, error) {
	if len(parts) == 0 {
		return constant(value.String("")), nil
	}
	if len(parts) == 1 {
		if lit, ok := parts[0].(*hclsyntax.LiteralValueExpr); ok {
			v, err := value.FromCty(lit.Val)
			if err != nil {
				return nil, err
			}
			return constant(value.String(v.Text())), nil
		}
	}
	nodes, err := c.compileAll(parts)
	if err != nil {
		return nil, err
	}
	return func(env *Env) (value.Value, error) {
		var b strings.Builder
		for _, n := range nodes {
			v, err := n(env)
			if err != nil {
				return value.Null, err
			}
			b.WriteString(v.Text())
		}
		return value.String(b.String()), nil
	}, nil
}

func (c *Compiler) compileIf(cond, then, otherwise hclsyntax.Expression) (node, error) {
	cn, err := c.compile(cond)
	if err != nil {
		return nil, err
	}
	tn, err := c.compile(then)
	if err != nil {
		return nil, err
	}
	fn, err := c.compile(otherwise)
	if err != nil {
		return nil, err
	}
	return func(env *Env) (value.Value, error) {
		cv, err := cn(env)
		if err != nil {
			return value.Null, err
		}
		if cv.Truthy() {
			return tn(env)
		}
		return fn(env)
	}, nil
}

func (c *Compiler) compileUnary(e *hclsyntax.UnaryOpExpr) (node, error) {
	operand, err := c.compile(e.Val)
	if err != nil {
		return nil, err
	}
	switch e.Op {
	case hclsyntax.OpNegate:
		return func(env *Env) (value.Value, error) {
			v, err := operand(env)
			if err != nil {
				return value.Null, err
			}
			return value.Number(-v.Float()), nil
		}, nil
	case hclsyntax.OpLogicalNot:
		return func(env *Env) (value.Value, error) {
			v, err := operand(env)
			if err != nil {
				return value.Null, err
			}
			return value.Bool(!v.Truthy()), nil
		}, nil
	}
	return nil, fmt.Errorf("%w: unary operator", ErrUnsupported)
}

func (c *Compiler) compileBinary(e *hclsyntax.BinaryOpExpr) (node, error) {
	lhs, err := c.compile(e.LHS)
	if err != nil {
		return nil, err
	}
	rhs, err := c.compile(e.RHS)
	if err != nil {
		return nil, err
	}

	switch e.Op {
	case hclsyntax.OpLogicalAnd:
		return func(env *Env) (value.Value, error) {
			l, err := lhs(env)
			if err != nil || !l.Truthy() {
				return value.Bool(false), err
			}
			r, err := rhs(env)
			return value.Bool(r.Truthy()), err
		}, nil
	case hclsyntax.OpLogicalOr:
		return func(env *Env) (value.Value, error) {
			l, err := lhs(env)
			if err != nil {
				return value.Null, err
			}
			if l.Truthy() {
				return value.Bool(true), nil
			}
			r, err := rhs(env)
			return value.Bool(r.Truthy()), err
		}, nil
	}

	op, err := binaryOp(e.Op)
	if err != nil {
		return nil, err
	}
	return func(env *Env) (value.Value, error) {
		l, err := lhs(env)
		if err != nil {
			return value.Null, err
		}
		r, err := rhs(env)
		if err != nil {
			return value.Null, err
		}
		return op(l, r), nil
	}, nil
}

func binaryOp(op *hclsyntax.Operation) (func(l, r value.Value) value.Value, error) {
	switch op {
	case hclsyntax.OpAdd:
		return func(l, r value.Value) value.Value {
			if l.Kind() == value.KindString || r.Kind() == value.KindString {
				return value.String(l.Text() + r.Text())
			}
			return value.Number(l.Float() + r.Float())
		}, nil
	case hclsyntax.OpSubtract:
		return func(l, r value.Value) value.Value { return value.Number(l.Float() - r.Float()) }, nil
	case hclsyntax.OpMultiply:
		return func(l, r value.Value) value.Value { return value.Number(l.Float() * r.Float()) }, nil
	case hclsyntax.OpDivide:
		return func(l, r value.Value) value.Value { return value.Number(l.Float() / r.Float()) }, nil
	case hclsyntax.OpModulo:
		return func(l, r value.Value) value.Value { return value.Number(math.Mod(l.Float(), r.Float())) }, nil
	case hclsyntax.OpEqual:
		return func(l, r value.Value) value.Value { return value.Bool(value.Equal(l, r)) }, nil
	case hclsyntax.OpNotEqual:
		return func(l, r value.Value) value.Value { return value.Bool(!value.Equal(l, r)) }, nil
	case hclsyntax.OpLessThan:
		return func(l, r value.Value) value.Value { return value.Bool(value.Compare(l, r) < 0) }, nil
	case hclsyntax.OpLessThanOrEqual:
		return func(l, r value.Value) value.Value { return value.Bool(value.Compare(l, r) <= 0) }, nil
	case hclsyntax.OpGreaterThan:
		return func(l, r value.Value) value.Value { return value.Bool(value.Compare(l, r) > 0) }, nil
	case hclsyntax.OpGreaterThanOrEqual:
		return func(l, r value.Value) value.Value { return value.Bool(value.Compare(l, r) >= 0) }, nil
	}
	return nil, fmt.Errorf("%w: binary operator", ErrUnsupported)
}

var lazyFuncs = map[string]bool{"If": true, "And": true, "Or": true}

func (c *Compiler) compileCall(e *hclsyntax.FunctionCallExpr) (node, error) {
	if lazyFuncs[e.Name] && !e.ExpandFinal {
		return c.compileLazy(e)
	}
	fn, ok := c.funcs[e.Name]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownFunction, e.Name)
	}
	args, err := c.compileAll(e.Args)
	if err != nil {
		return nil, err
	}
	name, expand := e.Name, e.ExpandFinal
	return func(env *Env) (value.Value, error) {
		vals, err := evalAll(env, args)
		if err != nil {
			return value.Null, err
		}
		if expand && len(vals) > 0 {
			last := vals[len(vals)-1]
			vals = append(vals[:len(vals)-1:len(vals)-1], last.Items()...)
		}
		v, err := fn(vals)
		if err != nil {
			return value.Null, fmt.Errorf("%s: %w", name, err)
		}
		return v, nil
	}, nil
}

func (c *Compiler) compileLazy(e *hclsyntax.FunctionCallExpr) (node, error) {
	switch e.Name {
	case "If":
		if len(e.Args) != 3 {
			return nil, fmt.Errorf("If: %w: want 3, got %d", ErrArity, len(e.Args))
		}
		return c.compileIf(e.Args[0], e.Args[1], e.Args[2])
	}
	args, err := c.compileAll(e.Args)
	if err != nil {
		return nil, err
	}
	// And stops at the first false operand, Or at the first true one.
	stopOn := e.Name == "Or"
	return func(env *Env) (value.Value, error) {
		for _, a := range args {
			v, err := a(env)
			if err != nil {
				return value.Null, err
			}
			if v.Truthy() == stopOn {
				return value.Bool(stopOn), nil
			}
		}
		return value.Bool(!stopOn), nil
	}, nil
}

// indexSteps accepts only index traversal steps; attribute access has no
// meaning in formulas once cell references are rewritten.
func indexSteps(tr hcl.Traversal) ([]int, error) {
	steps := make([]int, 0, len(tr))
	for _, step := range tr {
		idx, ok := step.(hcl.TraverseIndex)
		if !ok {
			return nil, fmt.Errorf("%w: attribute access (use Model.Cell[t] for cell references)", ErrUnsupported)
		}
		v, err := value.FromCty(idx.Key)
		if err != nil {
			return nil, err
		}
		steps = append(steps, v.Int())
	}
	return steps, nil
}

func applySteps(v value.Value, steps []int) (value.Value, error) {
	var err error
	for _, i := range steps {
		if v, err = index(v, i); err != nil {
			return value.Null, err
		}
	}
	return v, nil
}

func index(v value.Value, i int) (value.Value, error) {
	items := v.Items()
	if i < 0 || i >= len(items) {
		return value.Null, fmt.Errorf("index %d out of range (length %d)", i, len(items))
	}
	return items[i], nil
}
