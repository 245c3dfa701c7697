package query

import "strings"

// DataExpr is a subscription's aggregation request: which measurements
// to include (Filter), how to combine values that land in the same
// group (Op), and which tag keys define a group (By — empty means a
// single group covering every match).
type DataExpr struct {
	Op     string // "sum", "min", "max", or "count"
	By     []string
	Filter Query
}

// GroupKey derives the grouping key for tags under this expression's By
// clause. Two tag sets with equal values for every By key collapse to
// the same group.
func (d DataExpr) GroupKey(tags map[string]string) string {
	if len(d.By) == 0 {
		return ""
	}
	parts := make([]string, len(d.By))
	for i, k := range d.By {
		parts[i] = tags[k]
	}
	return strings.Join(parts, "\x00")
}

// Combine folds v into a running group value. seen is false on the
// first sample of a group (existing is meaningless in that case).
func (d DataExpr) Combine(existing, v float64, seen bool) float64 {
	if !seen {
		if d.Op == "count" {
			return 1
		}
		return v
	}
	switch d.Op {
	case "sum":
		return existing + v
	case "min":
		if v < existing {
			return v
		}
		return existing
	case "max":
		if v > existing {
			return v
		}
		return existing
	case "count":
		return existing + 1
	default:
		return existing
	}
}

// RollupRule is a publish-time tag transformation: Keep retains only
// the listed keys (plus name/statistic, which are never dropped), Drop
// removes the listed keys. Exactly one of Keep/Drop is set.
type RollupRule struct {
	Keep []string
	Drop []string
}

// Apply returns a new tag map with the rule applied.
func (r RollupRule) Apply(tags map[string]string) map[string]string {
	out := make(map[string]string, len(tags))
	if len(r.Keep) > 0 {
		keep := make(map[string]bool, len(r.Keep)+2)
		for _, k := range r.Keep {
			keep[k] = true
		}
		keep["name"] = true
		keep["statistic"] = true
		for k, v := range tags {
			if keep[k] {
				out[k] = v
			}
		}
		return out
	}
	if len(r.Drop) > 0 {
		drop := make(map[string]bool, len(r.Drop))
		for _, k := range r.Drop {
			drop[k] = true
		}
		for k, v := range tags {
			if !drop[k] || k == "name" || k == "statistic" {
				out[k] = v
			}
		}
		return out
	}
	for k, v := range tags {
		out[k] = v
	}
	return out
}

// RollupPolicy is an ordered list of (query, rule) pairs; the first
// matching rule is applied, and a tag map that matches nothing is
// passed through unchanged (the §4.9 "default action preserves all
// tags" rule).
type RollupPolicy struct {
	Rules []RollupPolicyRule
}

type RollupPolicyRule struct {
	When Query
	Then RollupRule
}

// Apply runs the policy against tags, returning the first matching
// rule's transformation, or tags unchanged if nothing matches.
func (p RollupPolicy) Apply(tags map[string]string) map[string]string {
	for _, r := range p.Rules {
		if r.When.Matches(tags) {
			return r.Then.Apply(tags)
		}
	}
	return tags
}
