package store

import (
	"encoding/json"

	validator "github.com/go-playground/validator/v10"

	"github.com/shiplane/rates-api/internal/discount"
	"github.com/shiplane/rates-api/internal/zone"
)

// Configuration blobs are versioned JSON documents written by administrative
// collaborators. An unrecognized version or shape is treated as an absent
// configuration, never matched loosely at point of use.
const supportedBlobVersion = "1"

type tierTableDoc struct {
	Version string          `json:"version" validate:"required"`
	Tiers   []discount.Tier `json:"tiers"`
}

type eligibilityDoc struct {
	Version            string   `json:"version" validate:"required"`
	EligibleProductIDs []string `json:"eligibleProductIds"`
	ExcludedProductIDs []string `json:"excludedProductIds"`
}

type zoneDoc struct {
	Version string                                  `json:"version" validate:"required"`
	Groups  map[string]map[string]zone.CountryEntry `json:"groups"`
}

// ParseTierTable decodes a tier table blob. The second return is false when
// the blob is absent, malformed, or carries an unsupported version.
func ParseTierTable(v *validator.Validate, payload []byte) (*discount.TierTable, bool) {
	var doc tierTableDoc
	if !decodeBlob(v, payload, &doc) || doc.Version != supportedBlobVersion {
		return nil, false
	}
	return &discount.TierTable{Version: doc.Version, Tiers: doc.Tiers}, true
}

// ParseEligibility decodes an eligibility snapshot blob. An absent or
// unrecognized blob yields an empty snapshot, which the discount engine
// treats as "whole cart ineligible".
func ParseEligibility(v *validator.Validate, payload []byte) (discount.Eligibility, bool) {
	var doc eligibilityDoc
	if !decodeBlob(v, payload, &doc) || doc.Version != supportedBlobVersion {
		return discount.Eligibility{}, false
	}
	snapshot := discount.Eligibility{
		Version:  doc.Version,
		Eligible: make(map[string]struct{}, len(doc.EligibleProductIDs)),
		Excluded: make(map[string]struct{}, len(doc.ExcludedProductIDs)),
	}
	for _, id := range doc.EligibleProductIDs {
		if id != "" {
			snapshot.Eligible[id] = struct{}{}
		}
	}
	for _, id := range doc.ExcludedProductIDs {
		if id != "" {
			snapshot.Excluded[id] = struct{}{}
		}
	}
	return snapshot, true
}

// ParseZoneConfig decodes a managed zone configuration blob. An absent or
// unrecognized blob yields a config under which no destination is managed.
func ParseZoneConfig(v *validator.Validate, payload []byte) (zone.Config, bool) {
	var doc zoneDoc
	if !decodeBlob(v, payload, &doc) || doc.Version != supportedBlobVersion {
		return zone.Config{}, false
	}
	return zone.Config{Version: doc.Version, Groups: doc.Groups}, true
}

func decodeBlob(v *validator.Validate, payload []byte, dst any) bool {
	if len(payload) == 0 {
		return false
	}
	if err := json.Unmarshal(payload, dst); err != nil {
		return false
	}
	if v != nil {
		if err := v.Struct(dst); err != nil {
			return false
		}
	}
	return true
}
