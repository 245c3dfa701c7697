// Package query implements the postfix query language: parsing,
// simplification on construction, and a pure-data pattern matcher for
// the :re/:reic operators (see the pattern subpackage). Query trees
// produced here feed the queryindex package's sub-linear matcher.
package query

import (
	"strings"

	"github.com/atlasmetrics/spectator-go/internal/query/pattern"
)

// Query is a boolean predicate over a tag map (an Id's tags plus its
// name under the "name" key).
type Query interface {
	Matches(tags map[string]string) bool
	String() string
}

type trueQuery struct{}

func (trueQuery) Matches(map[string]string) bool { return true }
func (trueQuery) String() string                 { return ":true" }

type falseQuery struct{}

func (falseQuery) Matches(map[string]string) bool { return false }
func (falseQuery) String() string                 { return ":false" }

// True and False are the query language's constant predicates.
var (
	True  Query = trueQuery{}
	False Query = falseQuery{}
)

func isTrue(q Query) bool  { _, ok := q.(trueQuery); return ok }
func isFalse(q Query) bool { _, ok := q.(falseQuery); return ok }

// And builds a conjunction, applying TRUE.and(x)=x, x.and(TRUE)=x and
// FALSE.and(_)=FALSE at construction time.
func And(a, b Query) Query {
	if isFalse(a) || isFalse(b) {
		return False
	}
	if isTrue(a) {
		return b
	}
	if isTrue(b) {
		return a
	}
	return andQuery{Left: a, Right: b}
}

// Or builds a disjunction, applying the dual simplification rules to And.
func Or(a, b Query) Query {
	if isTrue(a) || isTrue(b) {
		return True
	}
	if isFalse(a) {
		return b
	}
	if isFalse(b) {
		return a
	}
	return orQuery{Left: a, Right: b}
}

// Not builds a negation, folding not(TRUE)=FALSE, not(FALSE)=TRUE and
// not(not(x))=x.
func Not(a Query) Query {
	switch v := a.(type) {
	case trueQuery:
		return False
	case falseQuery:
		return True
	case notQuery:
		return v.Inner
	default:
		return notQuery{Inner: a}
	}
}

type andQuery struct{ Left, Right Query }

func (q andQuery) Matches(tags map[string]string) bool {
	return q.Left.Matches(tags) && q.Right.Matches(tags)
}
func (q andQuery) String() string { return q.Left.String() + "," + q.Right.String() + ",:and" }

type orQuery struct{ Left, Right Query }

func (q orQuery) Matches(tags map[string]string) bool {
	return q.Left.Matches(tags) || q.Right.Matches(tags)
}
func (q orQuery) String() string { return q.Left.String() + "," + q.Right.String() + ",:or" }

type notQuery struct{ Inner Query }

func (q notQuery) Matches(tags map[string]string) bool { return !q.Inner.Matches(tags) }
func (q notQuery) String() string                      { return q.Inner.String() + ",:not" }

// KeyQuery is a Query that constrains exactly one tag key; QueryIndex
// uses this narrower interface to decide which node a conjunction's
// clauses belong under.
type KeyQuery interface {
	Query
	Key() string
}

// HasQuery matches when Key is present, regardless of value.
type HasQuery struct{ K string }

func (h HasQuery) Key() string { return h.K }
func (h HasQuery) Matches(tags map[string]string) bool {
	_, ok := tags[h.K]
	return ok
}
func (h HasQuery) String() string { return h.K + ",:has" }

// EqualQuery matches when Key is present with exactly Value.
type EqualQuery struct{ K, V string }

func (e EqualQuery) Key() string { return e.K }
func (e EqualQuery) Matches(tags map[string]string) bool {
	v, ok := tags[e.K]
	return ok && v == e.V
}
func (e EqualQuery) String() string { return e.K + "," + e.V + ",:eq" }

// InQuery matches when Key's value is one of Values.
type InQuery struct {
	K      string
	Values []string
}

func (in InQuery) Key() string { return in.K }
func (in InQuery) Matches(tags map[string]string) bool {
	v, ok := tags[in.K]
	if !ok {
		return false
	}
	for _, want := range in.Values {
		if v == want {
			return true
		}
	}
	return false
}
func (in InQuery) String() string {
	return in.K + ",(," + strings.Join(in.Values, ",") + ",),:in"
}

// RegexQuery matches when Key's value matches Pattern (optionally case
// insensitively), using the hand-rolled pattern engine.
type RegexQuery struct {
	K          string
	Pattern    string
	IgnoreCase bool
	matcher    pattern.Matcher
}

// NewRegexQuery compiles pattern and returns either a RegexQuery or, if
// the compiled pattern always matches, the equivalent HasQuery (the
// ":re whose pattern always matches is rewritten to :has" rule).
func NewRegexQuery(key, pat string, ignoreCase bool) (Query, error) {
	m, err := pattern.Compile(pat, ignoreCase)
	if err != nil {
		return nil, err
	}
	if alwaysMatches(m) {
		return HasQuery{K: key}, nil
	}
	return RegexQuery{K: key, Pattern: pat, IgnoreCase: ignoreCase, matcher: m}, nil
}

func alwaysMatches(m pattern.Matcher) bool {
	switch v := m.(type) {
	case pattern.TrueMatcher:
		return true
	case pattern.ZeroOrMoreMatcher:
		_, any := v.Inner.(pattern.AnyMatcher)
		return any
	default:
		return false
	}
}

func (r RegexQuery) Key() string { return r.K }
func (r RegexQuery) Matches(tags map[string]string) bool {
	v, ok := tags[r.K]
	return ok && pattern.Matches(r.matcher, v)
}
func (r RegexQuery) String() string {
	op := ":re"
	if r.IgnoreCase {
		op = ":reic"
	}
	return r.K + "," + r.Pattern + "," + op
}

// CmpOp is an ordering comparator for CmpQuery.
type CmpOp int

const (
	LessThan CmpOp = iota
	LessOrEqual
	GreaterThan
	GreaterOrEqual
)

func (op CmpOp) token() string {
	switch op {
	case LessThan:
		return ":lt"
	case LessOrEqual:
		return ":le"
	case GreaterThan:
		return ":gt"
	default:
		return ":ge"
	}
}

// CmpQuery matches when Key's value compares to Value per Op, using
// lexicographic string comparison (tag values are always strings).
type CmpQuery struct {
	K     string
	Op    CmpOp
	Value string
}

func (c CmpQuery) Key() string { return c.K }
func (c CmpQuery) Matches(tags map[string]string) bool {
	v, ok := tags[c.K]
	if !ok {
		return false
	}
	switch c.Op {
	case LessThan:
		return v < c.Value
	case LessOrEqual:
		return v <= c.Value
	case GreaterThan:
		return v > c.Value
	default:
		return v >= c.Value
	}
}
func (c CmpQuery) String() string { return c.K + "," + c.Value + "," + c.Op.token() }

// keyQueryNot wraps the negation of a KeyQuery so it still satisfies
// KeyQuery (DNF normalization keeps "not of a key query" as its own leaf
// category rather than pushing the negation further, since De Morgan
// only simplifies And/Or/Not(Not(x))).
type keyQueryNot struct {
	Inner KeyQuery
}

func (n keyQueryNot) Key() string                        { return n.Inner.Key() }
func (n keyQueryNot) Matches(tags map[string]string) bool { return !n.Inner.Matches(tags) }
func (n keyQueryNot) String() string                      { return n.Inner.String() + ",:not" }

// NotKey negates a KeyQuery while staying a KeyQuery itself.
func NotKey(kq KeyQuery) KeyQuery {
	if already, ok := kq.(keyQueryNot); ok {
		return already.Inner
	}
	return keyQueryNot{Inner: kq}
}
