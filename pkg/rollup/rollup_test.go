package rollup

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlasmetrics/spectator-go/internal/query"
	"github.com/atlasmetrics/spectator-go/pkg/spectator"
)

func mustParse(t *testing.T, expr string) query.Query {
	t.Helper()
	q, err := query.Parse(expr)
	require.NoError(t, err)
	return q
}

func TestPolicyInjectsCommonTags(t *testing.T) {
	p := NewPolicy(map[string]string{"app": "spectator-demo"})
	m := spectator.Measurement{Id: spectator.NewId("requests", map[string]string{"method": "GET"}), Value: 1}

	id, keep := p.Apply(m)
	require.True(t, keep)
	v, ok := id.TagValue("app")
	assert.True(t, ok)
	assert.Equal(t, "spectator-demo", v)
}

func TestPolicyFirstMatchingRuleWins(t *testing.T) {
	p := NewPolicy(nil)
	p.Rules = []Rule{
		{Name: "drop-pid", When: mustParse(t, "name,proc.rss,:eq"), Action: DropKeys("pid")},
		{Name: "fallback", When: query.True, Action: DropMeasurement()},
	}

	m := spectator.Measurement{Id: spectator.NewId("proc.rss", map[string]string{"pid": "123"}), Value: 42}
	id, keep := p.Apply(m)

	require.True(t, keep, "the first matching rule (drop-pid) must win, not the catch-all drop rule after it")
	_, hasPid := id.TagValue("pid")
	assert.False(t, hasPid)
}

func TestPolicyDropMeasurementDiscardsIt(t *testing.T) {
	p := NewPolicy(nil)
	p.Rules = []Rule{{Name: "blackhole", When: query.True, Action: DropMeasurement()}}

	_, keep := p.Apply(spectator.Measurement{Id: spectator.NewIdEmpty("noisy"), Value: 1})
	assert.False(t, keep)
}

func TestApplyAndAggregateSumsRateLikeCollisions(t *testing.T) {
	p := NewPolicy(nil)
	p.Rules = []Rule{{Name: "drop-instance", When: query.True, Action: DropKeys("instance")}}

	measurements := []spectator.Measurement{
		{Id: spectator.NewId("requests", map[string]string{"instance": "i-1", "statistic": "count"}), Value: 2},
		{Id: spectator.NewId("requests", map[string]string{"instance": "i-2", "statistic": "count"}), Value: 3},
	}

	out := p.ApplyAndAggregate(1000, measurements)
	require.Len(t, out, 1, "both instances collapse onto the same post-rollup Id")
	assert.Equal(t, 5.0, out[0].Value)
}

func TestApplyAndAggregateMaxesGaugeLikeCollisions(t *testing.T) {
	p := NewPolicy(nil)
	p.Rules = []Rule{{Name: "drop-instance", When: query.True, Action: DropKeys("instance")}}

	measurements := []spectator.Measurement{
		{Id: spectator.NewId("pool.max", map[string]string{"instance": "i-1", "statistic": "max"}), Value: 10},
		{Id: spectator.NewId("pool.max", map[string]string{"instance": "i-2", "statistic": "max"}), Value: 25},
	}

	out := p.ApplyAndAggregate(1000, measurements)
	require.Len(t, out, 1)
	assert.Equal(t, 25.0, out[0].Value)
}
