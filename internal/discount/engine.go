// Package discount computes a volume-discounted merchandise basis from cart
// line items. The engine is pure: malformed or missing configuration degrades
// to the undiscounted total with a warning code, never an error.
package discount

// DefaultMaxLineItems caps how many line items participate in a single
// computation. Excess items are excluded, not rejected.
const DefaultMaxLineItems = 500

// Warning codes carried on a Result.
const (
	WarnItemsCapped        = "items_capped"
	WarnEligibilityMissing = "eligibility_missing_or_empty"
)

// LineItem is a normalized cart line participating in the computation.
type LineItem struct {
	ProductID string
	UnitPrice int64
	Qty       int64
}

// Tier grants a per-unit discount once the eligible quantity reaches the
// threshold. Tiers with a non-positive threshold or discount are ignored
// entirely rather than treated as zero-effect tiers.
type Tier struct {
	MinEligibleQty  int64 `json:"minEligibleQty"`
	DiscountPerUnit int64 `json:"discountCentsEach"`
}

// TierTable is the merchant's versioned volume-discount configuration.
type TierTable struct {
	Version string `json:"version"`
	Tiers   []Tier `json:"tiers"`
}

// Eligibility is the merchant's product eligibility snapshot. Exclusion wins
// over eligibility for the same identifier; an empty eligible set means the
// whole cart is ineligible.
type Eligibility struct {
	Version  string
	Eligible map[string]struct{}
	Excluded map[string]struct{}
}

// Result carries the outcome of a basis computation. OK is always true: the
// engine has no failure mode, only conservative fallbacks signalled through
// Warnings and a nil Applied tier.
type Result struct {
	OK          bool
	Basis       int64
	Discount    int64
	EligibleQty int64
	Applied     *Tier
	Warnings    []string
}

// Allows reports whether the snapshot marks the product id as eligible.
func (e Eligibility) Allows(productID string) bool {
	if productID == "" {
		return false
	}
	if _, excluded := e.Excluded[productID]; excluded {
		return false
	}
	_, ok := e.Eligible[productID]
	return ok
}

// ComputeDiscountedBasis derives the merchandise basis for the cart after
// applying the best qualifying volume tier to eligible items.
func ComputeDiscountedBasis(items []LineItem, table *TierTable, snapshot Eligibility, maxItems int) Result {
	res := Result{OK: true}
	if len(items) == 0 {
		return res
	}

	if maxItems <= 0 {
		maxItems = DefaultMaxLineItems
	}
	if len(items) > maxItems {
		items = items[:maxItems]
		res.Warnings = append(res.Warnings, WarnItemsCapped)
	}

	var rawTotal int64
	for _, it := range items {
		if it.Qty <= 0 || it.UnitPrice < 0 {
			continue
		}
		rawTotal += it.UnitPrice * it.Qty
		if snapshot.Allows(it.ProductID) {
			res.EligibleQty += it.Qty
		}
	}
	res.Basis = rawTotal

	if table == nil || len(validTiers(table.Tiers)) == 0 {
		return res
	}
	if len(snapshot.Eligible) == 0 {
		res.Warnings = append(res.Warnings, WarnEligibilityMissing)
		return res
	}

	tier, ok := bestTier(table.Tiers, res.EligibleQty)
	if !ok {
		return res
	}

	var adjusted, granted int64
	for _, it := range items {
		if it.Qty <= 0 || it.UnitPrice < 0 {
			continue
		}
		unit := it.UnitPrice
		if snapshot.Allows(it.ProductID) {
			unit -= tier.DiscountPerUnit
			if unit < 0 {
				unit = 0
			}
			granted += (it.UnitPrice - unit) * it.Qty
		}
		adjusted += unit * it.Qty
	}

	res.Basis = adjusted
	res.Discount = granted
	res.Applied = &tier
	return res
}

// bestTier picks the valid tier with the highest threshold not exceeding the
// eligible quantity. Ties keep the first tier encountered.
func bestTier(tiers []Tier, eligibleQty int64) (Tier, bool) {
	var (
		best  Tier
		found bool
	)
	for _, t := range tiers {
		if t.MinEligibleQty <= 0 || t.DiscountPerUnit <= 0 {
			continue
		}
		if t.MinEligibleQty > eligibleQty {
			continue
		}
		if !found || t.MinEligibleQty > best.MinEligibleQty {
			best = t
			found = true
		}
	}
	return best, found
}

func validTiers(tiers []Tier) []Tier {
	out := tiers[:0:0]
	for _, t := range tiers {
		if t.MinEligibleQty > 0 && t.DiscountPerUnit > 0 {
			out = append(out, t)
		}
	}
	return out
}
