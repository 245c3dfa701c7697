// Package pattern implements a hand-rolled regular expression engine
// used by the query subsystem's :re and :reic operators. It does not
// wrap host regexp/regexp2 packages: expressions come from untrusted,
// dynamically-fetched subscriptions, and a purpose-built matcher lets
// the query layer introspect a compiled pattern (longest fixed prefix,
// guaranteed substring, trigram set) to drive QueryIndex pre-filtering,
// which a black-box regexp.Regexp cannot offer.
package pattern

import "strings"

// Matcher is a node in a compiled pattern's matcher tree. Matching is
// implemented continuation-passing style: match attempts to consume a
// prefix of s starting at pos and calls k with every position where
// that's possible, returning true the moment some continuation chain
// reaches an accepting state. This makes backtracking constructs
// (alternation, repetition, lookaround) compose without a separate NFA
// compilation pass.
type Matcher interface {
	match(s []rune, pos int, k func(int) bool) bool
	String() string
}

// Matches reports whether m matches the entire string s (anchored at
// both ends, matching host language convention for Pattern.matches).
func Matches(m Matcher, s string) bool {
	rs := []rune(s)
	return m.match(rs, 0, func(end int) bool { return end == len(rs) })
}

// TrueMatcher always matches, consuming nothing.
type TrueMatcher struct{}

func (TrueMatcher) match(_ []rune, pos int, k func(int) bool) bool { return k(pos) }
func (TrueMatcher) String() string                                 { return "" }

// FalseMatcher never matches.
type FalseMatcher struct{}

func (FalseMatcher) match(_ []rune, _ int, _ func(int) bool) bool { return false }
func (FalseMatcher) String() string                               { return "(?!)" }

// AnyMatcher matches a single arbitrary character ('.').
type AnyMatcher struct{}

func (AnyMatcher) match(s []rune, pos int, k func(int) bool) bool {
	if pos >= len(s) {
		return false
	}
	return k(pos + 1)
}
func (AnyMatcher) String() string { return "." }

// CharClassMatcher matches a single character belonging to (or, if
// Negate, excluded from) Set.
type CharClassMatcher struct {
	Set    map[rune]bool
	Ranges [][2]rune
	Negate bool
}

func (c CharClassMatcher) contains(r rune) bool {
	if c.Set[r] {
		return true
	}
	for _, rg := range c.Ranges {
		if r >= rg[0] && r <= rg[1] {
			return true
		}
	}
	return false
}

func (c CharClassMatcher) match(s []rune, pos int, k func(int) bool) bool {
	if pos >= len(s) {
		return false
	}
	in := c.contains(s[pos])
	if c.Negate {
		in = !in
	}
	if !in {
		return false
	}
	return k(pos + 1)
}

func (c CharClassMatcher) String() string {
	var b strings.Builder
	b.WriteByte('[')
	if c.Negate {
		b.WriteByte('^')
	}
	for r := range c.Set {
		b.WriteRune(r)
	}
	for _, rg := range c.Ranges {
		b.WriteRune(rg[0])
		b.WriteByte('-')
		b.WriteRune(rg[1])
	}
	b.WriteByte(']')
	return b.String()
}

// CharSeqMatcher matches a fixed literal run of characters. Adjacent
// literals are collapsed into one CharSeqMatcher by the optimizer.
type CharSeqMatcher struct {
	Chars      []rune
	IgnoreCase bool
}

func (c CharSeqMatcher) match(s []rune, pos int, k func(int) bool) bool {
	if pos+len(c.Chars) > len(s) {
		return false
	}
	for i, want := range c.Chars {
		got := s[pos+i]
		if c.IgnoreCase {
			got = foldRune(got)
			want = foldRune(want)
		}
		if got != want {
			return false
		}
	}
	return k(pos + len(c.Chars))
}

func (c CharSeqMatcher) String() string { return string(c.Chars) }

func foldRune(r rune) rune {
	if r >= 'A' && r <= 'Z' {
		return r + ('a' - 'A')
	}
	return r
}

// SeqMatcher matches each Parts element in order (concatenation).
type SeqMatcher struct {
	Parts []Matcher
}

func (seq SeqMatcher) match(s []rune, pos int, k func(int) bool) bool {
	var step func(i, p int) bool
	step = func(i, p int) bool {
		if i == len(seq.Parts) {
			return k(p)
		}
		return seq.Parts[i].match(s, p, func(next int) bool { return step(i+1, next) })
	}
	return step(0, pos)
}

func (seq SeqMatcher) String() string {
	var b strings.Builder
	for _, p := range seq.Parts {
		b.WriteString(p.String())
	}
	return b.String()
}

// OrMatcher matches if any Branch matches (alternation).
type OrMatcher struct {
	Branches []Matcher
}

func (o OrMatcher) match(s []rune, pos int, k func(int) bool) bool {
	for _, b := range o.Branches {
		if b.match(s, pos, k) {
			return true
		}
	}
	return false
}

func (o OrMatcher) String() string {
	parts := make([]string, len(o.Branches))
	for i, b := range o.Branches {
		parts[i] = b.String()
	}
	return "(?:" + strings.Join(parts, "|") + ")"
}

// ZeroOrMoreMatcher matches Inner greedily, zero or more times ('*').
type ZeroOrMoreMatcher struct {
	Inner Matcher
}

func (z ZeroOrMoreMatcher) match(s []rune, pos int, k func(int) bool) bool {
	var rec func(p int) bool
	rec = func(p int) bool {
		if z.Inner.match(s, p, func(next int) bool {
			if next == p {
				return false // zero-width inner progress guard
			}
			return rec(next)
		}) {
			return true
		}
		return k(p)
	}
	return rec(pos)
}

func (z ZeroOrMoreMatcher) String() string { return group(z.Inner) + "*" }

// ZeroOrOneMatcher matches Inner zero or one times ('?').
type ZeroOrOneMatcher struct {
	Inner Matcher
}

func (z ZeroOrOneMatcher) match(s []rune, pos int, k func(int) bool) bool {
	if z.Inner.match(s, pos, k) {
		return true
	}
	return k(pos)
}

func (z ZeroOrOneMatcher) String() string { return group(z.Inner) + "?" }

// RepeatMatcher matches Inner between Min and Max times (Max < 0 means
// unbounded, i.e. '+' or '{m,}').
type RepeatMatcher struct {
	Inner    Matcher
	Min, Max int
}

func (r RepeatMatcher) match(s []rune, pos int, k func(int) bool) bool {
	var rec func(count, p int) bool
	rec = func(count, p int) bool {
		if r.Max >= 0 && count >= r.Max {
			return k(p)
		}
		if r.Inner.match(s, p, func(next int) bool {
			if next == p && count >= r.Min {
				return false
			}
			return rec(count+1, next)
		}) {
			return true
		}
		if count >= r.Min {
			return k(p)
		}
		return false
	}
	return rec(0, pos)
}

func (r RepeatMatcher) String() string {
	if r.Min == 1 && r.Max < 0 {
		return group(r.Inner) + "+"
	}
	if r.Max < 0 {
		return group(r.Inner) + "{" + itoa(r.Min) + ",}"
	}
	return group(r.Inner) + "{" + itoa(r.Min) + "," + itoa(r.Max) + "}"
}

// StartMatcher asserts position 0 ('^').
type StartMatcher struct{}

func (StartMatcher) match(_ []rune, pos int, k func(int) bool) bool {
	if pos != 0 {
		return false
	}
	return k(pos)
}
func (StartMatcher) String() string { return "^" }

// EndMatcher asserts end of input ('$').
type EndMatcher struct{}

func (EndMatcher) match(s []rune, pos int, k func(int) bool) bool {
	if pos != len(s) {
		return false
	}
	return k(pos)
}
func (EndMatcher) String() string { return "$" }

// StartsWithMatcher is the folded form of ^ followed directly by a
// literal: matches only at position 0.
type StartsWithMatcher struct {
	Literal CharSeqMatcher
}

func (sw StartsWithMatcher) match(s []rune, pos int, k func(int) bool) bool {
	if pos != 0 {
		return false
	}
	return sw.Literal.match(s, pos, k)
}
func (sw StartsWithMatcher) String() string { return "^" + sw.Literal.String() }

// IndexOfMatcher is the folded form of ".*literal": it scans forward
// from pos for occurrences of Literal and continues after each one in
// turn until the continuation succeeds, rather than trying every
// intermediate offset via AnyMatcher backtracking.
type IndexOfMatcher struct {
	Literal []rune
}

func (io IndexOfMatcher) match(s []rune, pos int, k func(int) bool) bool {
	for start := pos; start+len(io.Literal) <= len(s); start++ {
		if runesEqual(s[start:start+len(io.Literal)], io.Literal) {
			if k(start + len(io.Literal)) {
				return true
			}
		}
	}
	return false
}
func (io IndexOfMatcher) String() string { return ".*" + string(io.Literal) }

func runesEqual(a, b []rune) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// NegativeLookaheadMatcher is a zero-width assertion: succeeds (without
// consuming input) only if Inner does NOT match starting at pos.
type NegativeLookaheadMatcher struct {
	Inner Matcher
}

func (n NegativeLookaheadMatcher) match(s []rune, pos int, k func(int) bool) bool {
	if n.Inner.match(s, pos, func(int) bool { return true }) {
		return false
	}
	return k(pos)
}
func (n NegativeLookaheadMatcher) String() string { return "(?!" + n.Inner.String() + ")" }

// PositiveLookaheadMatcher is a zero-width assertion: succeeds (without
// consuming input) only if Inner matches starting at pos.
type PositiveLookaheadMatcher struct {
	Inner Matcher
}

func (p PositiveLookaheadMatcher) match(s []rune, pos int, k func(int) bool) bool {
	if !p.Inner.match(s, pos, func(int) bool { return true }) {
		return false
	}
	return k(pos)
}
func (p PositiveLookaheadMatcher) String() string { return "(?=" + p.Inner.String() + ")" }

func group(m Matcher) string {
	switch m.(type) {
	case CharSeqMatcher, CharClassMatcher, AnyMatcher, TrueMatcher, FalseMatcher:
		return m.String()
	default:
		return "(?:" + m.String() + ")"
	}
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var b []byte
	for n > 0 {
		b = append([]byte{byte('0' + n%10)}, b...)
		n /= 10
	}
	if neg {
		b = append([]byte{'-'}, b...)
	}
	return string(b)
}
