package query

import (
	"fmt"
	"strings"
)

// listMarker marks the start of a "(" ... ")" list literal on the
// parser stack.
type listMarker struct{}

type parserState struct {
	stack []any
}

func (p *parserState) push(v any) { p.stack = append(p.stack, v) }

func (p *parserState) pop() (any, error) {
	if len(p.stack) == 0 {
		return nil, fmt.Errorf("query: stack underflow")
	}
	v := p.stack[len(p.stack)-1]
	p.stack = p.stack[:len(p.stack)-1]
	return v, nil
}

func (p *parserState) popString() (string, error) {
	v, err := p.pop()
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("query: expected a literal operand, got %T", v)
	}
	return s, nil
}

func (p *parserState) popQuery() (Query, error) {
	v, err := p.pop()
	if err != nil {
		return nil, err
	}
	q, ok := v.(Query)
	if !ok {
		return nil, fmt.Errorf("query: expected a boolean operand, got %T", v)
	}
	return q, nil
}

func (p *parserState) popList() ([]string, error) {
	v, err := p.pop()
	if err != nil {
		return nil, err
	}
	l, ok := v.([]string)
	if !ok {
		return nil, fmt.Errorf("query: expected a list literal, got %T", v)
	}
	return l, nil
}

func (p *parserState) popDataExpr() (DataExpr, error) {
	v, err := p.pop()
	if err != nil {
		return DataExpr{}, err
	}
	d, ok := v.(DataExpr)
	if !ok {
		return DataExpr{}, fmt.Errorf("query: expected a data expression, got %T", v)
	}
	return d, nil
}

// Parse parses a comma-separated postfix query expression into a
// Query. Parenthesized list literals and the :and/:or/:not/:eq/:has/
// :in/:lt/:le/:gt/:ge/:re/:reic/:true/:false operators are supported,
// and :all yields the always-true query. The aggregating operators
// (:sum, :min, :max, :count, :by) are handled by ParseDataExpr.
// :rollup-keep and :rollup-drop are tokenized, but no parse function
// returns the rule they build.
func Parse(expr string) (Query, error) {
	p := &parserState{}
	if err := runTokens(p, expr); err != nil {
		return nil, err
	}
	if len(p.stack) != 1 {
		return nil, fmt.Errorf("query: expression did not reduce to a single result")
	}
	q, ok := p.stack[0].(Query)
	if !ok {
		return nil, fmt.Errorf("query: expression did not reduce to a boolean result")
	}
	return q, nil
}

// ParseDataExpr parses a postfix expression ending in a data-expression
// operator (:sum, :min, :max, :count), optionally followed by :by.
func ParseDataExpr(expr string) (DataExpr, error) {
	p := &parserState{}
	if err := runTokens(p, expr); err != nil {
		return DataExpr{}, err
	}
	if len(p.stack) != 1 {
		return DataExpr{}, fmt.Errorf("query: expression did not reduce to a single result")
	}
	d, ok := p.stack[0].(DataExpr)
	if !ok {
		return DataExpr{}, fmt.Errorf("query: expression did not reduce to a data expression")
	}
	return d, nil
}

// ParseSubscription parses a subscription expression that may be either
// a plain boolean filter or a filter composed with the aggregation
// operators (:sum, :min, :max, :count, :by). A plain filter is wrapped
// as a pass-through DataExpr with an empty Op, meaning every match is
// forwarded individually rather than grouped.
func ParseSubscription(expr string) (DataExpr, error) {
	p := &parserState{}
	if err := runTokens(p, expr); err != nil {
		return DataExpr{}, err
	}
	if len(p.stack) != 1 {
		return DataExpr{}, fmt.Errorf("query: expression did not reduce to a single result")
	}
	switch v := p.stack[0].(type) {
	case DataExpr:
		return v, nil
	case Query:
		return DataExpr{Filter: v}, nil
	default:
		return DataExpr{}, fmt.Errorf("query: expression did not reduce to a query or data expression")
	}
}

func runTokens(p *parserState, expr string) error {
	tokens := strings.Split(expr, ",")
	for _, tok := range tokens {
		switch {
		case tok == "(":
			p.push(listMarker{})
		case tok == ")":
			items, err := closeList(p)
			if err != nil {
				return err
			}
			p.push(items)
		case strings.HasPrefix(tok, ":"):
			if err := applyOperator(p, tok); err != nil {
				return err
			}
		default:
			p.push(tok)
		}
	}
	return nil
}

func closeList(p *parserState) ([]string, error) {
	var items []string
	for {
		v, err := p.pop()
		if err != nil {
			return nil, fmt.Errorf("query: unbalanced parenthesis")
		}
		if _, ok := v.(listMarker); ok {
			break
		}
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("query: list literal contains a non-literal element")
		}
		items = append([]string{s}, items...)
	}
	return items, nil
}

func applyOperator(p *parserState, op string) error {
	switch op {
	case ":true":
		p.push(True)
	case ":false":
		p.push(False)
	case ":eq":
		v, err := p.popString()
		if err != nil {
			return err
		}
		k, err := p.popString()
		if err != nil {
			return err
		}
		p.push(Query(EqualQuery{K: k, V: v}))
	case ":has":
		k, err := p.popString()
		if err != nil {
			return err
		}
		p.push(Query(HasQuery{K: k}))
	case ":in":
		values, err := p.popList()
		if err != nil {
			return err
		}
		k, err := p.popString()
		if err != nil {
			return err
		}
		p.push(Query(InQuery{K: k, Values: values}))
	case ":lt", ":le", ":gt", ":ge":
		v, err := p.popString()
		if err != nil {
			return err
		}
		k, err := p.popString()
		if err != nil {
			return err
		}
		p.push(Query(CmpQuery{K: k, Op: cmpOpFor(op), Value: v}))
	case ":re", ":reic":
		pat, err := p.popString()
		if err != nil {
			return err
		}
		k, err := p.popString()
		if err != nil {
			return err
		}
		q, err := NewRegexQuery(k, pat, op == ":reic")
		if err != nil {
			return err
		}
		p.push(q)
	case ":and":
		b, err := p.popQuery()
		if err != nil {
			return err
		}
		a, err := p.popQuery()
		if err != nil {
			return err
		}
		p.push(And(a, b))
	case ":or":
		b, err := p.popQuery()
		if err != nil {
			return err
		}
		a, err := p.popQuery()
		if err != nil {
			return err
		}
		p.push(Or(a, b))
	case ":not":
		a, err := p.popQuery()
		if err != nil {
			return err
		}
		p.push(Not(a))
	case ":all":
		p.push(True)
	case ":sum", ":min", ":max", ":count":
		q, err := p.popQuery()
		if err != nil {
			return err
		}
		p.push(DataExpr{Op: strings.TrimPrefix(op, ":"), Filter: q})
	case ":by":
		keys, err := p.popList()
		if err != nil {
			return err
		}
		d, err := p.popDataExpr()
		if err != nil {
			return err
		}
		d.By = keys
		p.push(d)
	case ":rollup-keep":
		keys, err := p.popList()
		if err != nil {
			return err
		}
		p.push(RollupRule{Keep: keys})
	case ":rollup-drop":
		keys, err := p.popList()
		if err != nil {
			return err
		}
		p.push(RollupRule{Drop: keys})
	default:
		return fmt.Errorf("query: unknown operator %q", op)
	}
	return nil
}

func cmpOpFor(op string) CmpOp {
	switch op {
	case ":lt":
		return LessThan
	case ":le":
		return LessOrEqual
	case ":gt":
		return GreaterThan
	default:
		return GreaterOrEqual
	}
}
