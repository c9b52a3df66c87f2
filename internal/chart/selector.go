package chart

import "sort"

// Match is a priced offer produced by the selector.
type Match struct {
	Chart     *Chart
	Tier      *Tier
	TierPrice int64
	Total     int64
}

// SelectRate matches the basis amount against charts in descending priority
// order and, within each chart, tiers in ascending min-then-max basis order.
// The first tier whose inclusive interval contains the basis wins; the
// chart's handling fee is added unconditionally after the tier price. The
// second return is false when no chart covers the basis, so absence of
// coverage stays visible to the caller instead of pricing at zero.
//
// Ordering is not trusted from the caller: charts and tiers are re-sorted
// defensively before matching.
func SelectRate(basis int64, charts []Chart) (Match, bool) {
	for _, c := range sortCharts(charts) {
		if m, ok := matchChart(basis, c); ok {
			return m, true
		}
	}
	return Match{}, false
}

// SelectAllRates evaluates every active chart independently and returns one
// priced offer per chart with a matching tier, ordered by descending chart
// priority.
func SelectAllRates(basis int64, charts []Chart) []Match {
	var out []Match
	for _, c := range sortCharts(charts) {
		if m, ok := matchChart(basis, c); ok {
			out = append(out, m)
		}
	}
	return out
}

func matchChart(basis int64, c Chart) (Match, bool) {
	if !c.Active {
		return Match{}, false
	}
	tiers := sortTiers(c.Tiers)
	for i := range tiers {
		t := tiers[i]
		if !t.Active || !t.Contains(basis) {
			continue
		}
		price := t.Price(basis)
		chartCopy := c
		return Match{
			Chart:     &chartCopy,
			Tier:      &t,
			TierPrice: price,
			Total:     price + c.HandlingFee,
		}, true
	}
	return Match{}, false
}

func sortCharts(charts []Chart) []Chart {
	sorted := make([]Chart, len(charts))
	copy(sorted, charts)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority > sorted[j].Priority
	})
	return sorted
}

func sortTiers(tiers []Tier) []Tier {
	sorted := make([]Tier, len(tiers))
	copy(sorted, tiers)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].MinBasis != sorted[j].MinBasis {
			return sorted[i].MinBasis < sorted[j].MinBasis
		}
		iMax, jMax := sorted[i].MaxBasis, sorted[j].MaxBasis
		switch {
		case iMax == nil && jMax == nil:
			return sorted[i].SortOrder < sorted[j].SortOrder
		case iMax == nil:
			return false
		case jMax == nil:
			return true
		default:
			return *iMax < *jMax
		}
	})
	return sorted
}
