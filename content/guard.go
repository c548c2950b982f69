package content

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/comalice/playerstate"
)

var ErrBadGuard = errors.New("content: invalid guard expression")

// Guard is a compiled "key op value" expression over a node's Vars, e.g. "fuel > 0" or
// "mode == night". Supported operators are == != > < >= <=.
type Guard struct {
	key, op string
	raw     string
	num     float64
	isNum   bool
}

// ParseGuard compiles expr.
func ParseGuard(expr string) (*Guard, error) {
	parts := strings.Fields(expr)
	if len(parts) != 3 {
		return nil, fmt.Errorf("%w: %q", ErrBadGuard, expr)
	}
	g := &Guard{key: parts[0], op: parts[1], raw: parts[2]}
	switch g.op {
	case "==", "!=":
	case ">", "<", ">=", "<=":
		if _, err := strconv.ParseFloat(g.raw, 64); err != nil {
			return nil, fmt.Errorf("%w: %q compares against a non-number", ErrBadGuard, expr)
		}
	default:
		return nil, fmt.Errorf("%w: unknown operator %q", ErrBadGuard, g.op)
	}
	if f, err := strconv.ParseFloat(g.raw, 64); err == nil {
		g.num, g.isNum = f, true
	}
	return g, nil
}

// Eval evaluates the guard against vars. A missing key fails closed.
func (g *Guard) Eval(vars playerstate.Tag) bool {
	if _, ok := vars[g.key]; !ok {
		return false
	}
	switch g.op {
	case "==":
		return g.equal(vars)
	case "!=":
		return !g.equal(vars)
	}
	f, err := vars.Float(g.key)
	if err != nil {
		return false
	}
	switch g.op {
	case ">":
		return f > g.num
	case "<":
		return f < g.num
	case ">=":
		return f >= g.num
	default:
		return f <= g.num
	}
}

func (g *Guard) equal(vars playerstate.Tag) bool {
	switch g.raw {
	case "true", "false":
		b, err := vars.Bool(g.key)
		return err == nil && b == (g.raw == "true")
	case "nil":
		return vars[g.key] == nil
	}
	if g.isNum {
		f, err := vars.Float(g.key)
		return err == nil && f == g.num
	}
	s, err := vars.String(g.key)
	return err == nil && s == g.raw
}

// String returns the source expression.
func (g *Guard) String() string { return g.key + " " + g.op + " " + g.raw }

// varsOf returns the per-entity Vars of a data-driven state.
func varsOf(s playerstate.State) playerstate.Tag {
	switch n := s.(type) {
	case *playerstate.DataLeaf:
		return n.Vars
	case *playerstate.DataMachine:
		return n.Vars
	case *playerstate.DataConcurrent:
		return n.Vars
	case *playerstate.DataAbility:
		return n.Vars
	}
	return nil
}
