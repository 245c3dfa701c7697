package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBasicOperators(t *testing.T) {
	cases := []struct {
		expr   string
		tags   map[string]string
		expect bool
	}{
		{"name,cpu,:eq", map[string]string{"name": "cpu"}, true},
		{"name,cpu,:eq", map[string]string{"name": "mem"}, false},
		{"role,:has", map[string]string{"role": "db"}, true},
		{"role,:has", map[string]string{"other": "x"}, false},
		{"env,(,prod,staging,),:in", map[string]string{"env": "staging"}, true},
		{"env,(,prod,staging,),:in", map[string]string{"env": "dev"}, false},
		{"version,5,:gt", map[string]string{"version": "9"}, true},
		{"version,5,:lt", map[string]string{"version": "9"}, false},
		{"name,c.*,:re", map[string]string{"name": "cpu"}, true},
		{"name,C.*,:reic", map[string]string{"name": "cpu"}, true},
	}
	for _, tc := range cases {
		t.Run(tc.expr, func(t *testing.T) {
			q, err := Parse(tc.expr)
			require.NoError(t, err)
			assert.Equal(t, tc.expect, q.Matches(tc.tags))
		})
	}
}

func TestAndOrNotSimplification(t *testing.T) {
	assert.Equal(t, True, And(True, True))
	assert.Equal(t, False, And(False, True))
	assert.Equal(t, False, Or(False, False))
	assert.Equal(t, True, Or(True, False))
	assert.Equal(t, False, Not(True))
	assert.Equal(t, True, Not(False))

	inner := HasQuery{K: "x"}
	assert.Equal(t, Query(inner), Not(Not(inner)))
}

// TestQueryCanonicalStringRoundTrip covers the query round-trip law: a
// query's canonical string, re-parsed, yields an equal query (compared
// by canonical string, since Query has no structural equality of its
// own).
func TestQueryCanonicalStringRoundTrip(t *testing.T) {
	exprs := []string{
		"name,cpu,:eq",
		"name,cpu,:eq,role,db,:eq,:and",
		"name,cpu,:eq,name,mem,:eq,:or",
		"env,(,prod,staging,),:in",
		"version,5,:ge",
		"name,c.*,:re",
		"role,:has,env,staging,:eq,:not,:and",
	}
	for _, expr := range exprs {
		t.Run(expr, func(t *testing.T) {
			q, err := Parse(expr)
			require.NoError(t, err)

			canonical := q.String()
			reparsed, err := Parse(canonical)
			require.NoError(t, err, "re-parsing canonical form %q", canonical)

			assert.Equal(t, canonical, reparsed.String(), "canonical string round-trip should be stable")
		})
	}
}

func TestToDNFDistributesOrOverAnd(t *testing.T) {
	q, err := Parse("name,a,:eq,name,b,:eq,:or,key,c,:eq,:and")
	require.NoError(t, err)

	conjunctions := ToDNF(q)
	require.Len(t, conjunctions, 2)
	for _, conj := range conjunctions {
		require.Len(t, conj, 2)
	}
}

func TestToDNFPushesNotThroughAnd(t *testing.T) {
	a := EqualQuery{K: "a", V: "1"}
	b := EqualQuery{K: "b", V: "2"}
	q := Not(And(Query(a), Query(b)))

	conjunctions := ToDNF(q)
	require.Len(t, conjunctions, 2, "De Morgan should split not(A and B) into (not A) or (not B)")
	for _, conj := range conjunctions {
		require.Len(t, conj, 1)
		_, ok := conj[0].(keyQueryNot)
		assert.True(t, ok)
	}
}

func TestNotKeyDoubleNegationCollapses(t *testing.T) {
	a := EqualQuery{K: "a", V: "1"}
	once := NotKey(a)
	twice := NotKey(once)
	assert.Equal(t, Query(a), Query(twice))
}
