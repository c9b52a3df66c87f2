package store

import (
	"testing"

	validator "github.com/go-playground/validator/v10"

	"github.com/shiplane/rates-api/internal/zone"
)

func TestParseTierTable(t *testing.T) {
	v := validator.New()

	table, ok := ParseTierTable(v, []byte(`{"version":"1","tiers":[{"minEligibleQty":3,"discountCentsEach":200}]}`))
	if !ok || table == nil {
		t.Fatal("expected table to parse")
	}
	if len(table.Tiers) != 1 || table.Tiers[0].MinEligibleQty != 3 {
		t.Fatalf("unexpected tiers %+v", table.Tiers)
	}

	if _, ok := ParseTierTable(v, []byte(`{"version":"2","tiers":[]}`)); ok {
		t.Fatal("expected unsupported version to be treated as absent")
	}
	if _, ok := ParseTierTable(v, []byte(`{"tiers":[]}`)); ok {
		t.Fatal("expected missing version to be treated as absent")
	}
	if _, ok := ParseTierTable(v, []byte(`not json`)); ok {
		t.Fatal("expected malformed blob to be treated as absent")
	}
	if _, ok := ParseTierTable(v, nil); ok {
		t.Fatal("expected empty payload to be treated as absent")
	}
}

func TestParseEligibility(t *testing.T) {
	v := validator.New()

	snapshot, ok := ParseEligibility(v, []byte(`{"version":"1","eligibleProductIds":["100","200"],"excludedProductIds":["200"]}`))
	if !ok {
		t.Fatal("expected snapshot to parse")
	}
	if !snapshot.Allows("100") {
		t.Fatal("expected 100 to be eligible")
	}
	if snapshot.Allows("200") {
		t.Fatal("expected exclusion to win for 200")
	}
	if snapshot.Allows("999") {
		t.Fatal("expected unknown id to be ineligible")
	}

	if _, ok := ParseEligibility(v, []byte(`{"version":"0"}`)); ok {
		t.Fatal("expected unsupported version to be treated as absent")
	}
}

func TestParseZoneConfig(t *testing.T) {
	v := validator.New()

	cfg, ok := ParseZoneConfig(v, []byte(`{"version":"1","groups":{"northAmerica":{"US":{"provinces":["CA","NY"]}}}}`))
	if !ok {
		t.Fatal("expected zone config to parse")
	}
	if !zone.IsDestinationManaged(cfg, "US", "NY") {
		t.Fatal("expected NY to be managed")
	}
	if zone.IsDestinationManaged(cfg, "US", "TX") {
		t.Fatal("expected TX to be unmanaged")
	}

	if _, ok := ParseZoneConfig(v, []byte(`{"groups":{}}`)); ok {
		t.Fatal("expected missing version to be treated as absent")
	}
}
