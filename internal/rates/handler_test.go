package rates

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/shiplane/rates-api/internal/chart"
	"github.com/shiplane/rates-api/internal/config"
	"github.com/shiplane/rates-api/internal/discount"
	"github.com/shiplane/rates-api/internal/zone"
)

const testSecret = "test-shared-secret"

type fakeConfig struct {
	tierTable   *discount.TierTable
	eligibility discount.Eligibility
	hasSnapshot bool
	zones       zone.Config
	hasZones    bool
	charts      []chart.Chart

	tierTableErr error
	chartsErr    error
	zonesErr     error

	calls int
}

func (f *fakeConfig) TierTable(context.Context, string) (*discount.TierTable, bool, error) {
	f.calls++
	return f.tierTable, f.tierTable != nil, f.tierTableErr
}

func (f *fakeConfig) Eligibility(context.Context, string) (discount.Eligibility, bool, error) {
	f.calls++
	return f.eligibility, f.hasSnapshot, nil
}

func (f *fakeConfig) ZoneConfig(context.Context, string) (zone.Config, bool, error) {
	f.calls++
	return f.zones, f.hasZones, f.zonesErr
}

func (f *fakeConfig) ActiveCharts(context.Context, string) ([]chart.Chart, error) {
	f.calls++
	return f.charts, f.chartsErr
}

func usSelectedZones() zone.Config {
	return zone.Config{Groups: map[string]map[string]zone.CountryEntry{
		zone.GroupNorthAmerica: {"US": {Selected: true}},
	}}
}

func flatChart(name string, priority int32, min int64, max *int64, amount, fee int64) chart.Chart {
	return chart.Chart{
		Name:        name,
		ServiceCode: strings.ToLower(name),
		Active:      true,
		Priority:    priority,
		HandlingFee: fee,
		Tiers:       []chart.Tier{{MinBasis: min, MaxBasis: max, Kind: chart.PriceFlat, Amount: amount, Active: true}},
	}
}

func defaultFake() *fakeConfig {
	return &fakeConfig{
		tierTable:   &discount.TierTable{Version: "1", Tiers: []discount.Tier{{MinEligibleQty: 3, DiscountPerUnit: 200}}},
		eligibility: discount.Eligibility{Eligible: map[string]struct{}{"100": {}}, Excluded: map[string]struct{}{}},
		hasSnapshot: true,
		zones:       usSelectedZones(),
		hasZones:    true,
		charts:      []chart.Chart{flatChart("Standard", 1, 0, nil, 750, 0)},
	}
}

func newHandler(cfg *fakeConfig) *Handler {
	return &Handler{
		Config:          cfg,
		Secret:          testSecret,
		DefaultCurrency: "USD",
		Mode:            config.RateModeFirstMatch,
		MaxLineItems:    500,
		Logger:          zerolog.Nop(),
	}
}

func rateBody(t *testing.T) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"rate": map[string]any{
			"items": []map[string]any{
				{"name": "Widget", "price": 1000, "quantity": 3, "requires_shipping": true, "variant_id": 100},
				{"name": "Gadget", "price": 2000, "quantity": 1, "requires_shipping": true, "variant_id": 200},
			},
			"destination": map[string]any{"country_code": "US", "province_code": "NY"},
			"currency":    "USD",
		},
	})
	require.NoError(t, err)
	return body
}

func doRequest(t *testing.T, h *Handler, body []byte, signature string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/rates?shop=shop1", strings.NewReader(string(body)))
	if signature != "" {
		req.Header.Set(SignatureHeader, signature)
	}
	rr := httptest.NewRecorder()
	h.Handle(rr, req)
	return rr
}

func decodeRates(t *testing.T, rr *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp
}

func TestHandleMissingSignatureRejectsBeforeParsing(t *testing.T) {
	cfg := defaultFake()
	rr := doRequest(t, newHandler(cfg), []byte("this is not even json"), "")
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	require.Zero(t, cfg.calls, "configuration must not be touched for unauthenticated requests")
}

func TestHandleBadSignatureRejected(t *testing.T) {
	cfg := defaultFake()
	body := rateBody(t)
	rr := doRequest(t, newHandler(cfg), body, Sign("wrong-secret", body))
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	require.Zero(t, cfg.calls)
}

func TestHandleMalformedBodyRespondsEmpty(t *testing.T) {
	body := []byte("{not json")
	rr := doRequest(t, newHandler(defaultFake()), body, Sign(testSecret, body))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Empty(t, decodeRates(t, rr).Rates)
}

func TestHandleHappyPathPricesDiscountedBasis(t *testing.T) {
	cfg := defaultFake()
	// Basis: (1000-200)*3 + 2000 = 4400; flat tier prices it at 750.
	body := rateBody(t)
	rr := doRequest(t, newHandler(cfg), body, Sign(testSecret, body))
	require.Equal(t, http.StatusOK, rr.Code)

	resp := decodeRates(t, rr)
	require.Len(t, resp.Rates, 1)
	offer := resp.Rates[0]
	require.Equal(t, "Standard", offer.ServiceName)
	require.Equal(t, "standard", offer.ServiceCode)
	require.Equal(t, "750", offer.TotalPrice)
	require.Equal(t, "USD", offer.Currency)
	require.Contains(t, offer.Description, "4400")
}

func TestHandleTierBoundaryPicksChartTier(t *testing.T) {
	cfg := defaultFake()
	cfg.tierTable = nil
	max := int64(5000)
	cfg.charts = []chart.Chart{{
		Name:     "Banded",
		Active:   true,
		Priority: 1,
		Tiers: []chart.Tier{
			{MinBasis: 0, MaxBasis: &max, Kind: chart.PriceFlat, Amount: 500, Active: true},
			{MinBasis: 5001, Kind: chart.PriceFlat, Amount: 300, Active: true},
		},
	}}
	// Undiscounted basis: 1000*3 + 2000 = 5000, exactly the first tier's max.
	body := rateBody(t)
	rr := doRequest(t, newHandler(cfg), body, Sign(testSecret, body))
	resp := decodeRates(t, rr)
	require.Len(t, resp.Rates, 1)
	require.Equal(t, "500", resp.Rates[0].TotalPrice)
}

func TestHandleNoShippableItemsRespondsEmpty(t *testing.T) {
	body, err := json.Marshal(map[string]any{
		"rate": map[string]any{
			"items": []map[string]any{
				{"name": "Digital", "price": 1000, "quantity": 1, "requires_shipping": false},
			},
			"destination": map[string]any{"country_code": "US"},
		},
	})
	require.NoError(t, err)
	rr := doRequest(t, newHandler(defaultFake()), body, Sign(testSecret, body))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Empty(t, decodeRates(t, rr).Rates)
}

func TestHandleNonFiniteQuantityFailsClosed(t *testing.T) {
	body, err := json.Marshal(map[string]any{
		"rate": map[string]any{
			"items": []map[string]any{
				{"name": "Widget", "price": 1000, "quantity": "not-a-number", "requires_shipping": true},
			},
			"destination": map[string]any{"country_code": "US"},
		},
	})
	require.NoError(t, err)
	rr := doRequest(t, newHandler(defaultFake()), body, Sign(testSecret, body))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Empty(t, decodeRates(t, rr).Rates)
}

func TestHandleUnmanagedProvinceRespondsEmpty(t *testing.T) {
	cfg := defaultFake()
	cfg.zones = zone.Config{Groups: map[string]map[string]zone.CountryEntry{
		zone.GroupNorthAmerica: {"US": {Provinces: []string{"CA", "NY"}}},
	}}
	body, err := json.Marshal(map[string]any{
		"rate": map[string]any{
			"items": []map[string]any{
				{"name": "Widget", "price": 1000, "quantity": 1, "requires_shipping": true, "variant_id": 100},
			},
			"destination": map[string]any{"country_code": "US", "province_code": "TX"},
		},
	})
	require.NoError(t, err)
	rr := doRequest(t, newHandler(cfg), body, Sign(testSecret, body))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Empty(t, decodeRates(t, rr).Rates)
}

func TestHandleMissingZoneConfigRespondsEmpty(t *testing.T) {
	cfg := defaultFake()
	cfg.hasZones = false
	body := rateBody(t)
	rr := doRequest(t, newHandler(cfg), body, Sign(testSecret, body))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Empty(t, decodeRates(t, rr).Rates)
}

func TestHandleTierTableErrorFallsBackToUndiscounted(t *testing.T) {
	cfg := defaultFake()
	cfg.tierTableErr = errors.New("backing store down")
	cfg.tierTable = nil
	body := rateBody(t)
	rr := doRequest(t, newHandler(cfg), body, Sign(testSecret, body))
	resp := decodeRates(t, rr)
	require.Len(t, resp.Rates, 1)
	// Undiscounted basis 5000 still prices through the flat chart.
	require.Contains(t, resp.Rates[0].Description, "5000")
}

func TestHandleChartStoreErrorRespondsEmpty(t *testing.T) {
	cfg := defaultFake()
	cfg.chartsErr = errors.New("backing store down")
	body := rateBody(t)
	rr := doRequest(t, newHandler(cfg), body, Sign(testSecret, body))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Empty(t, decodeRates(t, rr).Rates)
}

func TestHandleNoMatchRespondsEmpty(t *testing.T) {
	cfg := defaultFake()
	cfg.charts = []chart.Chart{flatChart("Freight", 1, 1_000_000, nil, 5000, 0)}
	body := rateBody(t)
	rr := doRequest(t, newHandler(cfg), body, Sign(testSecret, body))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Empty(t, decodeRates(t, rr).Rates)
}

func TestHandlePerChartModeReturnsOneOfferPerChart(t *testing.T) {
	cfg := defaultFake()
	cfg.charts = []chart.Chart{
		flatChart("Standard", 1, 0, nil, 750, 0),
		flatChart("Express", 9, 0, nil, 1500, 100),
	}
	h := newHandler(cfg)
	h.Mode = config.RateModePerChart

	body := rateBody(t)
	rr := doRequest(t, h, body, Sign(testSecret, body))
	resp := decodeRates(t, rr)
	require.Len(t, resp.Rates, 2)
	require.Equal(t, "Express", resp.Rates[0].ServiceName)
	require.Equal(t, "1600", resp.Rates[0].TotalPrice)
	require.Equal(t, "Standard", resp.Rates[1].ServiceName)
}

func TestHandleMissingShopRespondsEmpty(t *testing.T) {
	body := rateBody(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/rates", strings.NewReader(string(body)))
	req.Header.Set(SignatureHeader, Sign(testSecret, body))
	rr := httptest.NewRecorder()
	newHandler(defaultFake()).Handle(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Empty(t, decodeRates(t, rr).Rates)
}

func TestHandleCurrencyFallsBackToDefault(t *testing.T) {
	cfg := defaultFake()
	body, err := json.Marshal(map[string]any{
		"rate": map[string]any{
			"items": []map[string]any{
				{"name": "Widget", "price": 1000, "quantity": 1, "requires_shipping": true, "variant_id": 100},
			},
			"destination": map[string]any{"country_code": "US"},
		},
	})
	require.NoError(t, err)
	rr := doRequest(t, newHandler(cfg), body, Sign(testSecret, body))
	resp := decodeRates(t, rr)
	require.Len(t, resp.Rates, 1)
	require.Equal(t, "USD", resp.Rates[0].Currency)
}
