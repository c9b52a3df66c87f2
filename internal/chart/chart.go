// Package chart holds the merchant's tiered shipping price charts and the
// selector that matches a basis amount against them.
package chart

import (
	"fmt"

	"github.com/google/uuid"
)

// PriceKind distinguishes flat tier prices from percentage-of-basis prices.
type PriceKind string

const (
	// PriceFlat prices the tier at a fixed amount in minor units.
	PriceFlat PriceKind = "flat"
	// PricePercent prices the tier as basis points of the basis amount.
	PricePercent PriceKind = "percent"
)

// Tier is one contiguous basis range within a chart. MaxBasis nil means
// unbounded above; both bounds are inclusive.
type Tier struct {
	ID        uuid.UUID
	MinBasis  int64
	MaxBasis  *int64
	Kind      PriceKind
	Amount    int64
	SortOrder int32
	Active    bool
	Label     string
}

// Chart is a named, prioritised set of tiers owned by a single shop. The
// handling fee is a flat surcharge added after the tier price.
type Chart struct {
	ID          uuid.UUID
	ShopID      string
	Name        string
	ServiceCode string
	Active      bool
	Priority    int32
	HandlingFee int64
	Tiers       []Tier
}

// Contains reports whether the tier's inclusive interval covers the basis.
func (t Tier) Contains(basis int64) bool {
	if basis < t.MinBasis {
		return false
	}
	return t.MaxBasis == nil || basis <= *t.MaxBasis
}

// Price computes the tier price for the basis amount, before handling fee.
// Percentage tiers round half up.
func (t Tier) Price(basis int64) int64 {
	if t.Kind == PricePercent {
		if basis <= 0 || t.Amount <= 0 {
			return 0
		}
		return (basis*t.Amount + 5000) / 10000
	}
	return t.Amount
}

// ComputedLabel renders the human-readable range label stored with a tier.
func (t Tier) ComputedLabel() string {
	if t.Label != "" {
		return t.Label
	}
	if t.MaxBasis == nil {
		return fmt.Sprintf("%d and up", t.MinBasis)
	}
	return fmt.Sprintf("%d - %d", t.MinBasis, *t.MaxBasis)
}
