package rest

import (
	"fmt"
	"strings"

	"github.com/edgeflare/pgmock/pkg/store"
)

// Node is one element of a logic tree: a Predicate or a nested Group.
type Node interface {
	Match(rec store.Record) bool
}

type LogicOp string

const (
	LogicAnd LogicOp = "and"
	LogicOr  LogicOp = "or"
)

// Group combines its children with Op. An empty group matches every row.
type Group struct {
	Op       LogicOp
	Children []Node
}

func (g Group) Match(rec store.Record) bool {
	if len(g.Children) == 0 {
		return true
	}
	for _, c := range g.Children {
		ok := c.Match(rec)
		if g.Op == LogicOr && ok {
			return true
		}
		if g.Op != LogicOr && !ok {
			return false
		}
	}
	return g.Op != LogicOr
}

// ParseLogic parses the value of an or= or and= parameter:
//
//	group  := "(" item ("," item)* ")"
//	item   := ("and" | "or") group | clause
//	clause := column "." operator "." operand
//
// Operands may be double quoted, and may contain commas inside {} or ().
func ParseLogic(op LogicOp, raw string) (Group, error) {
	p := &logicParser{src: raw}
	g, err := p.group(op)
	if err != nil {
		return Group{}, err
	}
	if p.pos != len(p.src) {
		return Group{}, p.errorf("unexpected %q", p.src[p.pos:])
	}
	return g, nil
}

type logicParser struct {
	src string
	pos int
}

func (p *logicParser) errorf(format string, args ...any) error {
	return logicTreeError(p.src, p.pos, fmt.Sprintf(format, args...))
}

func (p *logicParser) peek() byte {
	if p.pos < len(p.src) {
		return p.src[p.pos]
	}
	return 0
}

func (p *logicParser) group(op LogicOp) (Group, error) {
	if p.peek() != '(' {
		return Group{}, p.errorf("expected \"(\"")
	}
	p.pos++

	g := Group{Op: op}
	for {
		n, err := p.item()
		if err != nil {
			return Group{}, err
		}
		g.Children = append(g.Children, n)

		switch p.peek() {
		case ',':
			p.pos++
		case ')':
			p.pos++
			return g, nil
		default:
			return Group{}, p.errorf("expected \",\" or \")\"")
		}
	}
}

func (p *logicParser) item() (Node, error) {
	rest := p.src[p.pos:]
	for _, op := range []LogicOp{LogicAnd, LogicOr} {
		if strings.HasPrefix(rest, string(op)+"(") {
			p.pos += len(op)
			return p.group(op)
		}
	}
	return p.clause()
}

// clause scans to the next top-level "," or ")".
func (p *logicParser) clause() (Node, error) {
	start := p.pos
	var (
		braces, parens int
		quoted         bool
	)

scan:
	for ; p.pos < len(p.src); p.pos++ {
		c := p.src[p.pos]
		switch {
		case quoted:
			if c == '\\' {
				p.pos++
			} else if c == '"' {
				quoted = false
			}
		case c == '"':
			quoted = true
		case c == '{':
			braces++
		case c == '}':
			braces--
		case c == '(':
			parens++
		case c == ')':
			if parens == 0 && braces == 0 {
				break scan
			}
			parens--
		case c == ',' && parens == 0 && braces == 0:
			break scan
		}
	}
	if quoted {
		return nil, p.errorf("unterminated quote")
	}

	text := p.src[start:p.pos]
	column, expr, ok := strings.Cut(text, ".")
	if !ok || column == "" {
		return nil, logicTreeError(p.src, start, fmt.Sprintf("invalid clause %q", text))
	}
	pred := ParsePredicate(column, expr)
	if op, operand, ok := strings.Cut(expr, "."); ok {
		if unq, ok := unquote(operand); ok {
			pred = ParsePredicate(column, op+"."+unq)
		}
	}
	return pred, nil
}

// unquote strips surrounding double quotes and backslash escapes.
func unquote(s string) (string, bool) {
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return s, false
	}
	var b strings.Builder
	body := s[1 : len(s)-1]
	for i := 0; i < len(body); i++ {
		if body[i] == '\\' && i+1 < len(body) {
			i++
		}
		b.WriteByte(body[i])
	}
	return b.String(), true
}
