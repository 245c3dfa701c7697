// Package rollup implements the §4.9 step 2 rollup policy: an ordered
// list of (query, action) rules where the first matching rule's action
// is applied to a Measurement's tags, plus injection of common tags.
//
// Grounded on the teacher's internal/routerConfig/routes.go shape: a
// package-level ordered []Rule slice (there []Route) walked in order
// with the first structural match winning, each entry carrying a plain
// func(...) transform (there Setup func(InfoType, *http.Request)
// InfoType) rather than a generic rule DSL.
package rollup

import (
	"github.com/atlasmetrics/spectator-go/internal/query"
	"github.com/atlasmetrics/spectator-go/pkg/spectator"
)

// Action mutates a measurement's tag set in place and reports whether
// the measurement should be kept. Returning false drops it entirely
// (used by DropMatching).
type Action func(tags map[string]string) (keep bool)

// Rule is one rollup policy entry: When a Measurement's tags satisfy
// Query, Action is applied and no further rule is consulted.
type Rule struct {
	Name   string
	When   query.Query
	Action Action
}

// Policy is an ordered list of Rules plus a set of tags injected into
// every Measurement before rule evaluation (environment, region, app,
// zone per §4.9 step 2). The first matching rule's Action wins; if no
// rule matches, all tags are preserved unchanged — the default action.
type Policy struct {
	CommonTags map[string]string
	Rules      []Rule
}

// NewPolicy returns an empty policy that only injects commonTags.
func NewPolicy(commonTags map[string]string) *Policy {
	return &Policy{CommonTags: commonTags}
}

// DropKeys returns an Action that deletes the given tag keys and keeps
// the measurement.
func DropKeys(keys ...string) Action {
	return func(tags map[string]string) bool {
		for _, k := range keys {
			delete(tags, k)
		}
		return true
	}
}

// RenameKey returns an Action that renames a tag key, preserving its
// value, and keeps the measurement. A no-op if from is absent.
func RenameKey(from, to string) Action {
	return func(tags map[string]string) bool {
		v, ok := tags[from]
		if !ok {
			return true
		}
		delete(tags, from)
		tags[to] = v
		return true
	}
}

// DropMeasurement returns an Action that discards the measurement
// entirely, used for rules that blackhole a noisy or unwanted series.
func DropMeasurement() Action {
	return func(map[string]string) bool { return false }
}

// Apply renders m's tag map (including name and common tags), runs the
// first matching rule's Action against it, and returns the resulting
// Id and whether the measurement survives. A Measurement whose Id is
// unchanged by every rule still gets CommonTags merged in.
func (p *Policy) Apply(m spectator.Measurement) (out *spectator.Id, keep bool) {
	tags := make(map[string]string, len(m.Id.Tags())+len(p.CommonTags)+1)
	for k, v := range p.CommonTags {
		tags[k] = v
	}
	for _, t := range m.Id.Tags() {
		tags[t.Key] = t.Value
	}
	tags["name"] = m.Id.Name()

	for _, rule := range p.Rules {
		if !rule.When.Matches(tags) {
			continue
		}
		if !rule.Action(tags) {
			return nil, false
		}
		break
	}

	return spectator.IdFromTags(tags), true
}

// isMaxStatistic reports whether stat should be combined with max
// rather than sum when two measurements collapse onto the same
// post-rollup Id (§4.9 step 4). Gauge-like statistics (max, duration,
// activeTasks, gauge) take the max of colliding series; rate-like
// statistics (count, totalAmount, totalTime, totalOfSquares) sum.
func isMaxStatistic(stat string) bool {
	switch stat {
	case spectator.StatMax, spectator.StatDuration, spectator.StatActiveTasks, spectator.StatGauge:
		return true
	default:
		return false
	}
}

// ApplyAndAggregate runs Apply over every measurement, then groups the
// survivors by their post-rollup Id and combines colliding entries:
// sum for rate-like statistics, max for gauge-like ones. This is §4.9
// steps 2 and 4 in one pass, since aggregation only makes sense once
// rollup has possibly collapsed several Ids onto one.
func (p *Policy) ApplyAndAggregate(now int64, measurements []spectator.Measurement) []spectator.Measurement {
	byKey := make(map[string]spectator.Measurement, len(measurements))
	order := make([]string, 0, len(measurements))
	for _, m := range measurements {
		id, keep := p.Apply(m)
		if !keep {
			continue
		}
		key := id.Key()
		existing, ok := byKey[key]
		if !ok {
			byKey[key] = spectator.Measurement{Id: id, Timestamp: now, Value: m.Value}
			order = append(order, key)
			continue
		}
		stat, _ := id.TagValue("statistic")
		if isMaxStatistic(stat) {
			if m.Value > existing.Value || (isNaNValue(existing.Value) && !isNaNValue(m.Value)) {
				existing.Value = m.Value
			}
		} else {
			existing.Value += m.Value
		}
		byKey[key] = existing
	}

	out := make([]spectator.Measurement, 0, len(order))
	for _, key := range order {
		out = append(out, byKey[key])
	}
	return out
}

func isNaNValue(v float64) bool { return v != v }
