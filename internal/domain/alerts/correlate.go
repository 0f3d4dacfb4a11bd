package alerts

import (
	"iter"
	"slices"
)

// FilterOpenConfig yields the open alerts raised by config policies, in
// source order. The returned sequence can be ranged over any number of
// times.
func FilterOpenConfig(seq iter.Seq[AlertRecord]) iter.Seq[AlertRecord] {
	return func(yield func(AlertRecord) bool) {
		for r := range seq {
			if r.AlertStatus != "open" || r.PolicyType != "config" {
				continue
			}
			if !yield(r) {
				return
			}
		}
	}
}

// PolicyIndex resolves policy names to policy records.
type PolicyIndex struct {
	byName map[string]PolicyRecord
}

// NewPolicyIndex indexes policies by name. When names repeat, the first
// record wins.
func NewPolicyIndex(policies []PolicyRecord) PolicyIndex {
	idx := PolicyIndex{byName: make(map[string]PolicyRecord, len(policies))}
	for _, p := range policies {
		if _, seen := idx.byName[p.Name]; seen {
			continue
		}
		idx.byName[p.Name] = p
	}
	return idx
}

// Lookup returns the policy named name.
func (i PolicyIndex) Lookup(name string) (PolicyRecord, bool) {
	p, ok := i.byName[name]
	return p, ok
}

// Len is the number of distinct policy names.
func (i PolicyIndex) Len() int { return len(i.byName) }

// Correlate attaches a policy identifier to every alert, keeping input order.
// Alerts whose policy is not indexed get Unresolved.
func Correlate(seq iter.Seq[AlertRecord], idx PolicyIndex) []CorrelatedResult {
	var out []CorrelatedResult
	for a := range seq {
		id := Unresolved
		if p, ok := idx.Lookup(a.PolicyName); ok && p.PolicyID != "" {
			id = p.PolicyID
		}
		out = append(out, CorrelatedResult{
			AlertID:    a.AlertID,
			PolicyName: a.PolicyName,
			PolicyID:   id,
		})
	}
	return out
}

// Report runs the filter and join over parsed records.
func Report(records []AlertRecord, policies []PolicyRecord) []CorrelatedResult {
	return Correlate(FilterOpenConfig(slices.Values(records)), NewPolicyIndex(policies))
}
