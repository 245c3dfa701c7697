package pattern

// Prefix returns the longest fixed literal prefix of strings m can
// match when m is start-anchored, or "" if m has no useful anchored
// prefix. Used by the query layer to pre-filter a QueryIndex subtree by
// a literal prefix before running the full matcher.
func Prefix(m Matcher) string {
	switch v := m.(type) {
	case StartsWithMatcher:
		return string(v.Literal.Chars)
	case SeqMatcher:
		if len(v.Parts) == 0 {
			return ""
		}
		if sw, ok := v.Parts[0].(StartsWithMatcher); ok {
			return string(sw.Literal.Chars)
		}
		if _, isStart := v.Parts[0].(StartMatcher); isStart && len(v.Parts) > 1 {
			if lit, ok := v.Parts[1].(CharSeqMatcher); ok {
				return string(lit.Chars)
			}
		}
		return ""
	default:
		return ""
	}
}

// ContainedString returns a literal substring guaranteed to appear in
// every string m matches (the longest literal run found structurally),
// or "" if none can be determined.
func ContainedString(m Matcher) string {
	best := ""
	var walk func(Matcher)
	walk = func(n Matcher) {
		switch v := n.(type) {
		case CharSeqMatcher:
			if len(v.Chars) > len(best) {
				best = string(v.Chars)
			}
		case StartsWithMatcher:
			if len(v.Literal.Chars) > len(best) {
				best = string(v.Literal.Chars)
			}
		case IndexOfMatcher:
			if len(v.Literal) > len(best) {
				best = string(v.Literal)
			}
		case SeqMatcher:
			for _, p := range v.Parts {
				walk(p)
			}
		}
	}
	walk(m)
	return best
}

// Trigrams returns the set of 3-grams guaranteed to appear in any
// string m matches, derived from its literal runs — used to pre-filter
// candidates by n-gram index before running the full matcher.
func Trigrams(m Matcher) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(s string) {
		rs := []rune(s)
		for i := 0; i+3 <= len(rs); i++ {
			tg := string(rs[i : i+3])
			if !seen[tg] {
				seen[tg] = true
				out = append(out, tg)
			}
		}
	}
	var walk func(Matcher)
	walk = func(n Matcher) {
		switch v := n.(type) {
		case CharSeqMatcher:
			add(string(v.Chars))
		case StartsWithMatcher:
			add(string(v.Literal.Chars))
		case IndexOfMatcher:
			add(string(v.Literal))
		case SeqMatcher:
			for _, p := range v.Parts {
				walk(p)
			}
		}
	}
	walk(m)
	return out
}

// ToSqlPattern converts m to a SQL LIKE pattern when m is composed only
// of anchors, literals and unrestricted '.'/'.*' wildcards; ok is false
// when m uses a construct LIKE cannot express (alternation, classes,
// bounded repetition, lookaround).
func ToSqlPattern(m Matcher) (pattern string, ok bool) {
	var b []byte
	var walk func(Matcher) bool
	walk = func(n Matcher) bool {
		switch v := n.(type) {
		case StartMatcher, EndMatcher, TrueMatcher:
			return true
		case CharSeqMatcher:
			for _, r := range v.Chars {
				if r == '%' || r == '_' {
					b = append(b, '\\')
				}
				b = append(b, []byte(string(r))...)
			}
			return true
		case StartsWithMatcher:
			return walk(v.Literal)
		case AnyMatcher:
			b = append(b, '_')
			return true
		case ZeroOrMoreMatcher:
			if _, any := v.Inner.(AnyMatcher); any {
				b = append(b, '%')
				return true
			}
			return false
		case IndexOfMatcher:
			b = append(b, '%')
			for _, r := range v.Literal {
				if r == '%' || r == '_' {
					b = append(b, '\\')
				}
				b = append(b, []byte(string(r))...)
			}
			return true
		case SeqMatcher:
			for _, p := range v.Parts {
				if !walk(p) {
					return false
				}
			}
			return true
		default:
			return false
		}
	}
	if !walk(m) {
		return "", false
	}
	return string(b), true
}
