package discount

import (
	"reflect"
	"testing"
)

func snapshotOf(eligible ...string) Eligibility {
	s := Eligibility{Eligible: map[string]struct{}{}, Excluded: map[string]struct{}{}}
	for _, id := range eligible {
		s.Eligible[id] = struct{}{}
	}
	return s
}

func TestComputeDiscountedBasisAppliesBestTier(t *testing.T) {
	items := []LineItem{
		{ProductID: "100", UnitPrice: 1000, Qty: 3},
		{ProductID: "200", UnitPrice: 2000, Qty: 1},
	}
	table := &TierTable{Version: "1", Tiers: []Tier{{MinEligibleQty: 3, DiscountPerUnit: 200}}}
	res := ComputeDiscountedBasis(items, table, snapshotOf("100"), 0)

	if !res.OK {
		t.Fatal("expected ok result")
	}
	if res.EligibleQty != 3 {
		t.Fatalf("expected eligible quantity 3, got %d", res.EligibleQty)
	}
	if res.Applied == nil || res.Applied.MinEligibleQty != 3 {
		t.Fatalf("expected tier with threshold 3 applied, got %+v", res.Applied)
	}
	if res.Basis != 800*3+2000 {
		t.Fatalf("expected basis 4400, got %d", res.Basis)
	}
	if res.Discount != 200*3 {
		t.Fatalf("expected discount 600, got %d", res.Discount)
	}
}

func TestComputeDiscountedBasisPicksHighestQualifyingThreshold(t *testing.T) {
	items := []LineItem{{ProductID: "100", UnitPrice: 1000, Qty: 10}}
	table := &TierTable{Tiers: []Tier{
		{MinEligibleQty: 3, DiscountPerUnit: 100},
		{MinEligibleQty: 10, DiscountPerUnit: 300},
		{MinEligibleQty: 20, DiscountPerUnit: 500},
	}}
	res := ComputeDiscountedBasis(items, table, snapshotOf("100"), 0)
	if res.Applied == nil || res.Applied.MinEligibleQty != 10 {
		t.Fatalf("expected the threshold-10 tier, got %+v", res.Applied)
	}
}

func TestComputeDiscountedBasisIgnoresInvalidTiers(t *testing.T) {
	items := []LineItem{{ProductID: "100", UnitPrice: 1000, Qty: 5}}
	table := &TierTable{Tiers: []Tier{
		{MinEligibleQty: 0, DiscountPerUnit: 999},
		{MinEligibleQty: 5, DiscountPerUnit: 0},
		{MinEligibleQty: -1, DiscountPerUnit: -1},
	}}
	res := ComputeDiscountedBasis(items, table, snapshotOf("100"), 0)
	if res.Applied != nil {
		t.Fatalf("expected no tier applied, got %+v", res.Applied)
	}
	if res.Basis != 5000 {
		t.Fatalf("expected undiscounted basis 5000, got %d", res.Basis)
	}
}

func TestComputeDiscountedBasisEmptyEligibleSetWarns(t *testing.T) {
	items := []LineItem{{ProductID: "100", UnitPrice: 1000, Qty: 5}}
	table := &TierTable{Tiers: []Tier{{MinEligibleQty: 1, DiscountPerUnit: 100}}}
	res := ComputeDiscountedBasis(items, table, Eligibility{}, 0)
	if res.Basis != 5000 || res.Applied != nil {
		t.Fatalf("expected undiscounted passthrough, got basis=%d applied=%+v", res.Basis, res.Applied)
	}
	if !hasWarning(res, WarnEligibilityMissing) {
		t.Fatalf("expected %s warning, got %v", WarnEligibilityMissing, res.Warnings)
	}
}

func TestComputeDiscountedBasisExclusionWins(t *testing.T) {
	snapshot := snapshotOf("100")
	snapshot.Excluded["100"] = struct{}{}
	items := []LineItem{{ProductID: "100", UnitPrice: 1000, Qty: 5}}
	table := &TierTable{Tiers: []Tier{{MinEligibleQty: 1, DiscountPerUnit: 100}}}
	res := ComputeDiscountedBasis(items, table, snapshot, 0)
	if res.EligibleQty != 0 {
		t.Fatalf("expected zero eligible quantity, got %d", res.EligibleQty)
	}
	if res.Basis != 5000 {
		t.Fatalf("expected undiscounted basis, got %d", res.Basis)
	}
}

func TestComputeDiscountedBasisClampsUnitAtZero(t *testing.T) {
	items := []LineItem{{ProductID: "100", UnitPrice: 150, Qty: 4}}
	table := &TierTable{Tiers: []Tier{{MinEligibleQty: 2, DiscountPerUnit: 500}}}
	res := ComputeDiscountedBasis(items, table, snapshotOf("100"), 0)
	if res.Basis != 0 {
		t.Fatalf("expected zero basis after clamp, got %d", res.Basis)
	}
	if res.Discount != 150*4 {
		t.Fatalf("expected discount capped at unit price, got %d", res.Discount)
	}
}

func TestComputeDiscountedBasisCapsItems(t *testing.T) {
	items := make([]LineItem, 6)
	for i := range items {
		items[i] = LineItem{ProductID: "100", UnitPrice: 100, Qty: 1}
	}
	res := ComputeDiscountedBasis(items, nil, snapshotOf("100"), 4)
	if res.Basis != 400 {
		t.Fatalf("expected capped basis 400, got %d", res.Basis)
	}
	if !hasWarning(res, WarnItemsCapped) {
		t.Fatalf("expected %s warning, got %v", WarnItemsCapped, res.Warnings)
	}
}

func TestComputeDiscountedBasisNoTierTablePassthrough(t *testing.T) {
	items := []LineItem{{ProductID: "100", UnitPrice: 1000, Qty: 2}}
	res := ComputeDiscountedBasis(items, nil, snapshotOf("100"), 0)
	if res.Basis != 2000 || res.Applied != nil || len(res.Warnings) != 0 {
		t.Fatalf("expected plain total, got %+v", res)
	}
}

func TestComputeDiscountedBasisEmptyCart(t *testing.T) {
	res := ComputeDiscountedBasis(nil, &TierTable{Tiers: []Tier{{MinEligibleQty: 1, DiscountPerUnit: 1}}}, snapshotOf("100"), 0)
	if !res.OK || res.Basis != 0 || res.Applied != nil {
		t.Fatalf("expected zero ok result, got %+v", res)
	}
}

func TestComputeDiscountedBasisIdempotent(t *testing.T) {
	items := []LineItem{
		{ProductID: "100", UnitPrice: 1000, Qty: 3},
		{ProductID: "200", UnitPrice: 2000, Qty: 1},
	}
	table := &TierTable{Tiers: []Tier{{MinEligibleQty: 3, DiscountPerUnit: 200}}}
	first := ComputeDiscountedBasis(items, table, snapshotOf("100"), 0)
	second := ComputeDiscountedBasis(items, table, snapshotOf("100"), 0)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("expected identical results, got %+v vs %+v", first, second)
	}
}

func hasWarning(res Result, code string) bool {
	for _, w := range res.Warnings {
		if w == code {
			return true
		}
	}
	return false
}
