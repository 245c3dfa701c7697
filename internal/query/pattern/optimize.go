package pattern

// optimize applies the compiler's simplification passes bottom-up, then
// the sequence-level folds that need sibling context. Each pass
// preserves the language matched by its input (property 13: "applying
// each optimization to any matcher yields a matcher that accepts the
// same language").
func optimize(m Matcher) Matcher {
	switch v := m.(type) {
	case SeqMatcher:
		return optimizeSeq(v)
	case OrMatcher:
		return optimizeOr(v)
	case ZeroOrMoreMatcher:
		inner := optimize(v.Inner)
		if _, ok := inner.(FalseMatcher); ok {
			return TrueMatcher{} // zero repetitions of FALSE still matches empty
		}
		return ZeroOrMoreMatcher{Inner: inner}
	case ZeroOrOneMatcher:
		inner := optimize(v.Inner)
		if _, ok := inner.(FalseMatcher); ok {
			return TrueMatcher{}
		}
		return ZeroOrOneMatcher{Inner: inner}
	case RepeatMatcher:
		inner := optimize(v.Inner)
		if _, ok := inner.(FalseMatcher); ok && v.Min > 0 {
			return FalseMatcher{}
		}
		return RepeatMatcher{Inner: inner, Min: v.Min, Max: v.Max}
	case CharClassMatcher:
		if !v.Negate && len(v.Ranges) == 0 && len(v.Set) == 1 {
			for r := range v.Set {
				return CharSeqMatcher{Chars: []rune{r}}
			}
		}
		return v
	case PositiveLookaheadMatcher:
		return PositiveLookaheadMatcher{Inner: optimize(v.Inner)}
	case NegativeLookaheadMatcher:
		return NegativeLookaheadMatcher{Inner: optimize(v.Inner)}
	default:
		return m
	}
}

func optimizeSeq(seq SeqMatcher) Matcher {
	var parts []Matcher
	for _, p := range seq.Parts {
		p = optimize(p)
		if _, ok := p.(TrueMatcher); ok {
			continue // TRUE inside a sequence contributes nothing
		}
		if _, ok := p.(FalseMatcher); ok {
			return FalseMatcher{} // FALSE anywhere in a sequence makes the whole sequence FALSE
		}
		parts = append(parts, p)
	}

	parts = collapseCharSeqs(parts)
	parts = foldStartDotStar(parts)
	parts = foldDotStarLiteral(parts)
	parts = foldStartLiteral(parts)

	if len(parts) == 0 {
		return TrueMatcher{}
	}
	if len(parts) == 1 {
		return parts[0]
	}
	return SeqMatcher{Parts: parts}
}

// collapseCharSeqs merges adjacent literal runs into one CharSeqMatcher.
func collapseCharSeqs(parts []Matcher) []Matcher {
	var out []Matcher
	for _, p := range parts {
		if cs, ok := p.(CharSeqMatcher); ok && len(out) > 0 {
			if prev, ok2 := out[len(out)-1].(CharSeqMatcher); ok2 && prev.IgnoreCase == cs.IgnoreCase {
				merged := CharSeqMatcher{Chars: append(append([]rune{}, prev.Chars...), cs.Chars...), IgnoreCase: cs.IgnoreCase}
				out[len(out)-1] = merged
				continue
			}
		}
		out = append(out, p)
	}
	return out
}

// foldStartDotStar removes a redundant "^.*" prefix: matching the rest
// of the sequence unanchored from position 0 already covers every
// string ^ followed by .* would.
func foldStartDotStar(parts []Matcher) []Matcher {
	if len(parts) >= 2 {
		if _, isStart := parts[0].(StartMatcher); isStart {
			if zom, isStar := parts[1].(ZeroOrMoreMatcher); isStar {
				if _, any := zom.Inner.(AnyMatcher); any {
					return parts[2:]
				}
			}
		}
	}
	return parts
}

// foldDotStarLiteral rewrites ".*literal" into a single IndexOfMatcher,
// which scans forward for the literal directly instead of trying every
// offset via AnyMatcher backtracking.
func foldDotStarLiteral(parts []Matcher) []Matcher {
	var out []Matcher
	i := 0
	for i < len(parts) {
		if zom, ok := parts[i].(ZeroOrMoreMatcher); ok {
			if _, any := zom.Inner.(AnyMatcher); any && i+1 < len(parts) {
				if lit, ok2 := parts[i+1].(CharSeqMatcher); ok2 && !lit.IgnoreCase {
					out = append(out, IndexOfMatcher{Literal: lit.Chars})
					i += 2
					continue
				}
			}
		}
		out = append(out, parts[i])
		i++
	}
	return out
}

// foldStartLiteral rewrites "^literal" into StartsWithMatcher.
func foldStartLiteral(parts []Matcher) []Matcher {
	if len(parts) >= 2 {
		if _, isStart := parts[0].(StartMatcher); isStart {
			if lit, ok := parts[1].(CharSeqMatcher); ok {
				rest := append([]Matcher{StartsWithMatcher{Literal: lit}}, parts[2:]...)
				return rest
			}
		}
	}
	return parts
}

func optimizeOr(or OrMatcher) Matcher {
	seen := make(map[string]bool)
	var branches []Matcher
	for _, b := range or.Branches {
		b = optimize(b)
		if _, ok := b.(FalseMatcher); ok {
			continue // FALSE branch contributes nothing to an OR
		}
		if _, ok := b.(TrueMatcher); ok {
			return TrueMatcher{} // TRUE branch makes the whole OR trivially true
		}
		key := b.String()
		if seen[key] {
			continue // deduplicate identical branches
		}
		seen[key] = true
		branches = append(branches, b)
	}
	if len(branches) == 0 {
		return FalseMatcher{}
	}
	if len(branches) == 1 {
		return branches[0]
	}
	return withCommonPrefix(branches)
}

// withCommonPrefix extracts a literal prefix shared by every branch so
// it is matched once rather than once per branch. It applies only when
// every branch is a sequence whose first part is a literal with the same
// case sensitivity; otherwise the branches are left as they are.
func withCommonPrefix(branches []Matcher) Matcher {
	prefix, rest, ok := commonLiteralPrefix(branches)
	if !ok || len(prefix) == 0 {
		return OrMatcher{Branches: branches}
	}
	ignoreCase := branches[0].(SeqMatcher).Parts[0].(CharSeqMatcher).IgnoreCase
	return SeqMatcher{Parts: []Matcher{
		CharSeqMatcher{Chars: prefix, IgnoreCase: ignoreCase},
		OrMatcher{Branches: rest},
	}}
}

func commonLiteralPrefix(branches []Matcher) (prefix []rune, rest []Matcher, ok bool) {
	lits := make([]CharSeqMatcher, len(branches))
	for i, b := range branches {
		seq, isSeq := b.(SeqMatcher)
		if !isSeq || len(seq.Parts) == 0 {
			return nil, nil, false
		}
		cs, isCS := seq.Parts[0].(CharSeqMatcher)
		if !isCS || cs.IgnoreCase != lits[0].IgnoreCase && i > 0 {
			return nil, nil, false
		}
		lits[i] = cs
	}
	minLen := len(lits[0].Chars)
	for _, l := range lits[1:] {
		if len(l.Chars) < minLen {
			minLen = len(l.Chars)
		}
	}
	n := 0
	for n < minLen {
		c := lits[0].Chars[n]
		match := true
		for _, l := range lits {
			if l.Chars[n] != c {
				match = false
				break
			}
		}
		if !match {
			break
		}
		n++
	}
	if n == 0 {
		return nil, nil, false
	}
	rest = make([]Matcher, len(branches))
	for i, b := range branches {
		seq := b.(SeqMatcher)
		cs := lits[i]
		remainder := cs.Chars[n:]
		newParts := append([]Matcher{}, seq.Parts[1:]...)
		if len(remainder) > 0 {
			newParts = append([]Matcher{CharSeqMatcher{Chars: remainder, IgnoreCase: cs.IgnoreCase}}, newParts...)
		}
		if len(newParts) == 0 {
			rest[i] = TrueMatcher{}
		} else if len(newParts) == 1 {
			rest[i] = newParts[0]
		} else {
			rest[i] = SeqMatcher{Parts: newParts}
		}
	}
	return lits[0].Chars[:n], rest, true
}
