package query

// ToDNF puts q into disjunctive normal form and returns it as a list of
// conjunctions, each a list of KeyQuery literal terms. QueryIndex
// inserts each conjunction separately against the same subscription
// value, satisfying "the same (query, value) pair added once returns
// the same match multiset regardless of how it was expressed."
//
// Note: this expands strictly to DNF; it does not additionally fold a
// run of same-key Equal clauses produced by an Or into a single InQuery
// the way a fully optimized index builder would.
func ToDNF(q Query) [][]KeyQuery {
	switch v := q.(type) {
	case trueQuery:
		return [][]KeyQuery{{}}
	case falseQuery:
		return nil
	case andQuery:
		left := ToDNF(v.Left)
		right := ToDNF(v.Right)
		var out [][]KeyQuery
		for _, l := range left {
			for _, r := range right {
				combined := make([]KeyQuery, 0, len(l)+len(r))
				combined = append(combined, l...)
				combined = append(combined, r...)
				out = append(out, combined)
			}
		}
		return out
	case orQuery:
		return append(ToDNF(v.Left), ToDNF(v.Right)...)
	case notQuery:
		return ToDNF(negate(v.Inner))
	case KeyQuery:
		return [][]KeyQuery{{v}}
	default:
		return nil
	}
}

// negate pushes a negation inward via De Morgan's laws so that Not only
// ever ends up wrapping a leaf KeyQuery by the time ToDNF sees it.
func negate(q Query) Query {
	switch v := q.(type) {
	case trueQuery:
		return False
	case falseQuery:
		return True
	case andQuery:
		return Or(negate(v.Left), negate(v.Right))
	case orQuery:
		return And(negate(v.Left), negate(v.Right))
	case notQuery:
		return v.Inner
	case KeyQuery:
		return NotKey(v)
	default:
		return Not(q)
	}
}
