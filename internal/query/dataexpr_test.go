package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSubscriptionWrapsPlainFilter(t *testing.T) {
	d, err := ParseSubscription("name,cpu,:eq")
	require.NoError(t, err)

	assert.Equal(t, "", d.Op)
	assert.Empty(t, d.By)
	assert.True(t, d.Filter.Matches(map[string]string{"name": "cpu"}))
}

func TestParseSubscriptionAcceptsAggregationOperators(t *testing.T) {
	d, err := ParseSubscription("name,cpu,:eq,:sum,(,node,),:by")
	require.NoError(t, err)

	assert.Equal(t, "sum", d.Op)
	assert.Equal(t, []string{"node"}, d.By)
	assert.True(t, d.Filter.Matches(map[string]string{"name": "cpu"}))
}

func TestParseSubscriptionRejectsTrailingGarbage(t *testing.T) {
	_, err := ParseSubscription("name,cpu,:eq,role,db,:eq")
	assert.Error(t, err)
}

func TestDataExprGroupKeyGroupsByTagValues(t *testing.T) {
	d := DataExpr{Op: "sum", By: []string{"node"}}

	a := d.GroupKey(map[string]string{"node": "i-1", "other": "x"})
	b := d.GroupKey(map[string]string{"node": "i-1", "other": "y"})
	c := d.GroupKey(map[string]string{"node": "i-2"})

	assert.Equal(t, a, b, "only the By keys participate in the group key")
	assert.NotEqual(t, a, c)
}

func TestDataExprGroupKeyEmptyByIsSingleGroup(t *testing.T) {
	d := DataExpr{Op: "sum"}
	assert.Equal(t, d.GroupKey(map[string]string{"node": "i-1"}), d.GroupKey(map[string]string{"node": "i-2"}))
}

func TestDataExprCombine(t *testing.T) {
	cases := []struct {
		op       string
		values   []float64
		expected float64
	}{
		{"sum", []float64{1, 2, 3}, 6},
		{"min", []float64{3, 1, 2}, 1},
		{"max", []float64{1, 3, 2}, 3},
		{"count", []float64{10, 20, 30}, 3},
	}
	for _, tc := range cases {
		t.Run(tc.op, func(t *testing.T) {
			d := DataExpr{Op: tc.op}
			var acc float64
			seen := false
			for _, v := range tc.values {
				acc = d.Combine(acc, v, seen)
				seen = true
			}
			assert.Equal(t, tc.expected, acc)
		})
	}
}

func TestRollupRuleKeepAlwaysRetainsNameAndStatistic(t *testing.T) {
	r := RollupRule{Keep: []string{"node"}}
	out := r.Apply(map[string]string{"name": "cpu", "statistic": "count", "node": "i-1", "other": "drop-me"})

	assert.Equal(t, map[string]string{"name": "cpu", "statistic": "count", "node": "i-1"}, out)
}

func TestRollupRuleDropNeverRemovesNameOrStatistic(t *testing.T) {
	r := RollupRule{Drop: []string{"name", "node"}}
	out := r.Apply(map[string]string{"name": "cpu", "statistic": "count", "node": "i-1"})

	assert.Equal(t, map[string]string{"name": "cpu", "statistic": "count"}, out)
}

func TestRollupPolicyFallsThroughToUnchangedTags(t *testing.T) {
	policy := RollupPolicy{Rules: []RollupPolicyRule{
		{When: Query(EqualQuery{K: "name", V: "mem"}), Then: RollupRule{Drop: []string{"node"}}},
	}}
	tags := map[string]string{"name": "cpu", "node": "i-1"}

	assert.Equal(t, tags, policy.Apply(tags), "no rule matched, tags pass through unchanged")
}
