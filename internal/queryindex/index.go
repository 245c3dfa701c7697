// Package queryindex implements the tagged decision tree that matches
// an Id against thousands of subscribed queries in sub-linear time
// (§4.7). A QueryIndex is built once per subscription refresh and then
// swapped in wholesale under the scheduler's mutex, so a rebuild never
// happens in place while matching reads the index.
package queryindex

import (
	"sort"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/atlasmetrics/spectator-go/internal/query"
)

type otherCheck[V comparable] struct {
	kq    query.KeyQuery
	child *node[V]
}

type node[V comparable] struct {
	key           string
	equalChildren map[string]*node[V]
	otherChecks   []otherCheck[V]
	matches       []V
	otherKeyNodes map[string]*node[V]
}

func newNode[V comparable]() *node[V] {
	return &node[V]{
		equalChildren: make(map[string]*node[V]),
		otherKeyNodes: make(map[string]*node[V]),
	}
}

// QueryIndex matches a tag map against every query registered via Add,
// returning the associated values. V is typically a subscription id.
type QueryIndex[V comparable] struct {
	root     *node[V]
	registry map[string]V
	cache    *lru.Cache[string, bool]
}

// NewIndex returns an empty QueryIndex.
func NewIndex[V comparable]() *QueryIndex[V] {
	cache, _ := lru.New[string, bool](4096)
	return &QueryIndex[V]{root: newNode[V](), registry: make(map[string]V), cache: cache}
}

// Add registers value under every DNF clause of q. Adding the same
// (query, value) pair again after a Remove re-registers it. Adding a
// second value under a query string already registered keeps both
// values in the tree, so both are matched; only the latest value is
// recorded for that string, and Remove removes only that one.
func (idx *QueryIndex[V]) Add(q query.Query, value V) {
	idx.registry[q.String()] = value
	for _, conj := range query.ToDNF(q) {
		grouped := groupByKey(conj)
		keys := orderKeys(grouped)
		insertPath(idx.root, keys, grouped, value)
	}
}

// Remove removes the value registered under q, if any, reporting
// whether it was present.
func (idx *QueryIndex[V]) Remove(q query.Query) bool {
	key := q.String()
	value, ok := idx.registry[key]
	if !ok {
		return false
	}
	delete(idx.registry, key)
	for _, conj := range query.ToDNF(q) {
		grouped := groupByKey(conj)
		keys := orderKeys(grouped)
		removePath(idx.root, keys, grouped, value)
	}
	return true
}

// IsEmpty reports whether the index currently has no registered query.
func (idx *QueryIndex[V]) IsEmpty() bool {
	return len(idx.registry) == 0
}

// FindMatches returns the values whose queries are satisfied by tags.
// A clause on a key that tags does not contain never matches, even a
// negated one, so a query such as not(env=staging) matches no tag map
// that lacks env. It never panics on a malformed KeyQuery in the tree —
// a panicking predicate is treated as non-matching (see matchSafely).
func (idx *QueryIndex[V]) FindMatches(tags map[string]string) []V {
	var out []V
	idx.walk(idx.root, tags, &out)
	return out
}

func (idx *QueryIndex[V]) walk(n *node[V], tags map[string]string, out *[]V) {
	if n == nil {
		return
	}
	*out = append(*out, n.matches...)

	if value, present := tags[n.key]; present {
		if child, ok := n.equalChildren[value]; ok {
			idx.walk(child, tags, out)
		}
		for _, oc := range n.otherChecks {
			if idx.cachedMatch(oc.kq, value) {
				idx.walk(oc.child, tags, out)
			}
		}
	}
	for _, child := range n.otherKeyNodes {
		idx.walk(child, tags, out)
	}
}

func (idx *QueryIndex[V]) cachedMatch(kq query.KeyQuery, value string) bool {
	cacheKey := kq.String() + "\x00" + value
	if v, ok := idx.cache.Get(cacheKey); ok {
		return v
	}
	result := matchSafely(kq, value)
	idx.cache.Add(cacheKey, result)
	return result
}

// matchSafely evaluates kq against a single-key tag map, recovering
// from any panic in a malformed KeyQuery (the node is then treated as
// non-matching, per §4.7's failure model).
func matchSafely(kq query.KeyQuery, value string) (result bool) {
	defer func() {
		if recover() != nil {
			result = false
		}
	}()
	return kq.Matches(map[string]string{kq.Key(): value})
}

func insertPath[V comparable](n *node[V], keys []string, grouped map[string][]query.KeyQuery, value V) {
	if len(keys) == 0 {
		n.matches = append(n.matches, value)
		return
	}
	if n.key == "" {
		n.key = keys[0]
	}
	key := keys[0]
	if key != n.key {
		child := n.otherKeyNodes[key]
		if child == nil {
			child = newNode[V]()
			n.otherKeyNodes[key] = child
		}
		insertPath(child, keys, grouped, value)
		return
	}

	rest := keys[1:]
	combined := combineKeyQueries(grouped[key])
	if eq, ok := combined.(query.EqualQuery); ok {
		child := n.equalChildren[eq.V]
		if child == nil {
			child = newNode[V]()
			n.equalChildren[eq.V] = child
		}
		insertPath(child, rest, grouped, value)
		return
	}

	for _, oc := range n.otherChecks {
		if oc.kq.String() == combined.String() {
			insertPath(oc.child, rest, grouped, value)
			return
		}
	}
	child := newNode[V]()
	n.otherChecks = append(n.otherChecks, otherCheck[V]{kq: combined, child: child})
	insertPath(child, rest, grouped, value)
}

func removePath[V comparable](n *node[V], keys []string, grouped map[string][]query.KeyQuery, value V) {
	if n == nil {
		return
	}
	if len(keys) == 0 {
		for i, v := range n.matches {
			if v == value {
				n.matches = append(n.matches[:i], n.matches[i+1:]...)
				return
			}
		}
		return
	}
	if n.key == "" {
		return
	}
	key := keys[0]
	if key != n.key {
		removePath(n.otherKeyNodes[key], keys, grouped, value)
		return
	}

	rest := keys[1:]
	combined := combineKeyQueries(grouped[key])
	if eq, ok := combined.(query.EqualQuery); ok {
		removePath(n.equalChildren[eq.V], rest, grouped, value)
		return
	}
	for _, oc := range n.otherChecks {
		if oc.kq.String() == combined.String() {
			removePath(oc.child, rest, grouped, value)
			return
		}
	}
}

func groupByKey(conj []query.KeyQuery) map[string][]query.KeyQuery {
	grouped := make(map[string][]query.KeyQuery)
	for _, kq := range conj {
		grouped[kq.Key()] = append(grouped[kq.Key()], kq)
	}
	return grouped
}

// orderKeys chooses key order per §4.7 step 3: name first, then
// equal-bearing keys in lexicographic order, then other keys.
func orderKeys(grouped map[string][]query.KeyQuery) []string {
	hasName := false
	var withEqual, others []string
	for k, terms := range grouped {
		if k == "name" {
			hasName = true
			continue
		}
		eq := false
		for _, t := range terms {
			if _, ok := t.(query.EqualQuery); ok {
				eq = true
				break
			}
		}
		if eq {
			withEqual = append(withEqual, k)
		} else {
			others = append(others, k)
		}
	}
	sort.Strings(withEqual)
	sort.Strings(others)

	out := make([]string, 0, len(grouped))
	if hasName {
		out = append(out, "name")
	}
	out = append(out, withEqual...)
	out = append(out, others...)
	return out
}

// andKeyQuery combines multiple KeyQuery terms over the same key (e.g.
// two CmpQuery bounds) into a single node-path check.
type andKeyQuery struct {
	Terms []query.KeyQuery
}

func (a andKeyQuery) Key() string { return a.Terms[0].Key() }
func (a andKeyQuery) Matches(tags map[string]string) bool {
	for _, t := range a.Terms {
		if !t.Matches(tags) {
			return false
		}
	}
	return true
}
func (a andKeyQuery) String() string {
	s := a.Terms[0].String()
	for _, t := range a.Terms[1:] {
		s += "," + t.String() + ",:and"
	}
	return s
}

func combineKeyQueries(terms []query.KeyQuery) query.KeyQuery {
	if len(terms) == 1 {
		return terms[0]
	}
	return andKeyQuery{Terms: terms}
}
