// Package rates implements the carrier-rate callback pipeline: verify the
// inbound signature, normalize the cart, gate the destination to managed
// zones, compute the discounted basis, and select a price from the shop's
// charts. Every fail-closed branch answers HTTP 200 with an empty rate list
// so the platform falls back to its native rates; only signature failure is
// an error status.
package rates

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/shiplane/rates-api/internal/chart"
	"github.com/shiplane/rates-api/internal/common"
	"github.com/shiplane/rates-api/internal/config"
	"github.com/shiplane/rates-api/internal/discount"
	"github.com/shiplane/rates-api/internal/numeric"
	"github.com/shiplane/rates-api/internal/obs"
	"github.com/shiplane/rates-api/internal/zone"
)

// Quantities are clamped into [0, maxItemQty] before totalling.
const maxItemQty = 1_000_000

// ConfigSource provides the shop configuration the pipeline reads once at
// the start of each request. All methods report absence separately from
// failure so the handler can pick the right fallback.
type ConfigSource interface {
	TierTable(ctx context.Context, shopID string) (*discount.TierTable, bool, error)
	Eligibility(ctx context.Context, shopID string) (discount.Eligibility, bool, error)
	ZoneConfig(ctx context.Context, shopID string) (zone.Config, bool, error)
	ActiveCharts(ctx context.Context, shopID string) ([]chart.Chart, error)
}

// Handler answers carrier-rate callbacks.
type Handler struct {
	Config          ConfigSource
	Secret          string
	DefaultCurrency string
	Mode            config.RateMode
	MaxLineItems    int
	Logger          zerolog.Logger
}

// Handle processes POST /api/v1/rates?shop=<id>.
func (h *Handler) Handle(w http.ResponseWriter, r *http.Request) {
	if h.Config == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "rate pipeline not configured", nil)
		return
	}
	ctx, span := otel.Tracer("rates.Handler").Start(r.Context(), "Rates.Handle")
	defer span.End()

	outcome := obs.OutcomeConfigError
	defer func() {
		span.SetAttributes(attribute.String("rates.outcome", outcome))
		if obs.RateRequestTotal != nil {
			obs.RateRequestTotal.WithLabelValues(outcome).Inc()
		}
	}()

	// Signature first: the body is never interpreted before verification.
	provided := r.Header.Get(SignatureHeader)
	if strings.TrimSpace(provided) == "" {
		outcome = obs.OutcomeUnauthorized
		common.JSONError(w, http.StatusUnauthorized, "INVALID_SIGNATURE", "signature verification failed", nil)
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil || !VerifySignature(h.Secret, body, provided) {
		outcome = obs.OutcomeUnauthorized
		common.JSONError(w, http.StatusUnauthorized, "INVALID_SIGNATURE", "signature verification failed", nil)
		return
	}

	shopID := strings.TrimSpace(r.URL.Query().Get("shop"))
	if shopID == "" {
		outcome = obs.OutcomeBadPayload
		h.respondEmpty(w)
		return
	}
	span.SetAttributes(attribute.String("rates.shop", shopID))

	payload, ok := parseRateRequest(body)
	if !ok {
		outcome = obs.OutcomeBadPayload
		h.respondEmpty(w)
		return
	}

	items, ok := normalizeItems(payload.Items)
	if !ok {
		outcome = obs.OutcomeBadPayload
		h.respondEmpty(w)
		return
	}
	if len(items) == 0 {
		outcome = obs.OutcomeNoShippableItems
		h.respondEmpty(w)
		return
	}

	zoneCfg, found, err := h.Config.ZoneConfig(ctx, shopID)
	if err != nil {
		span.RecordError(err)
		h.Logger.Error().Err(err).Str("shop", shopID).Msg("load zone config")
		outcome = obs.OutcomeConfigError
		h.respondEmpty(w)
		return
	}
	if !found || !zone.IsDestinationManaged(zoneCfg, payload.Destination.CountryCode, payload.Destination.ProvinceCode) {
		outcome = obs.OutcomeUnmanagedZone
		h.respondEmpty(w)
		return
	}

	basis := h.computeBasis(ctx, shopID, items)
	span.SetAttributes(
		attribute.Int64("rates.basis", basis.Basis),
		attribute.Int64("rates.discount", basis.Discount),
	)

	charts, err := h.Config.ActiveCharts(ctx, shopID)
	if err != nil {
		span.RecordError(err)
		h.Logger.Error().Err(err).Str("shop", shopID).Msg("load active charts")
		outcome = obs.OutcomeConfigError
		h.respondEmpty(w)
		return
	}

	offers := h.selectOffers(basis, charts, payload.Currency)
	if len(offers) == 0 {
		outcome = obs.OutcomeNoMatch
		h.respondEmpty(w)
		return
	}

	outcome = obs.OutcomePriced
	if obs.RateBasisCents != nil {
		obs.RateBasisCents.Observe(float64(basis.Basis))
	}
	common.JSON(w, http.StatusOK, Response{Rates: offers})
}

// computeBasis runs the discount engine with whatever configuration exists.
// A missing tier table or eligibility snapshot already degrades inside the
// engine; an unexpected fault is absorbed here so shipping stays computable
// when the discount feature misbehaves.
func (h *Handler) computeBasis(ctx context.Context, shopID string, items []discount.LineItem) (res discount.Result) {
	var (
		table    *discount.TierTable
		snapshot discount.Eligibility
	)
	if t, ok, err := h.Config.TierTable(ctx, shopID); err == nil && ok {
		table = t
	} else if err != nil {
		h.Logger.Warn().Err(err).Str("shop", shopID).Msg("load tier table, pricing without discount")
	}
	if s, ok, err := h.Config.Eligibility(ctx, shopID); err == nil && ok {
		snapshot = s
	} else if err != nil {
		h.Logger.Warn().Err(err).Str("shop", shopID).Msg("load eligibility snapshot, pricing without discount")
	}

	defer func() {
		if rec := recover(); rec != nil {
			h.Logger.Error().Interface("panic", rec).Str("shop", shopID).Msg("discount engine fault, using undiscounted total")
			res = undiscountedResult(items)
		}
	}()
	return discount.ComputeDiscountedBasis(items, table, snapshot, h.MaxLineItems)
}

func (h *Handler) selectOffers(basis discount.Result, charts []chart.Chart, currency string) []Offer {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		currency = h.DefaultCurrency
	}
	description := describeBasis(basis)

	if h.Mode == config.RateModePerChart {
		matches := chart.SelectAllRates(basis.Basis, charts)
		offers := make([]Offer, 0, len(matches))
		for _, m := range matches {
			offers = append(offers, offerFrom(m, currency, description))
		}
		return offers
	}

	m, ok := chart.SelectRate(basis.Basis, charts)
	if !ok {
		return nil
	}
	return []Offer{offerFrom(m, currency, description)}
}

func offerFrom(m chart.Match, currency, description string) Offer {
	code := m.Chart.ServiceCode
	if code == "" {
		code = m.Chart.ID.String()
	}
	return Offer{
		ServiceName: m.Chart.Name,
		ServiceCode: code,
		TotalPrice:  strconv.FormatInt(m.Total, 10),
		Currency:    currency,
		Description: description,
	}
}

func (h *Handler) respondEmpty(w http.ResponseWriter) {
	common.JSON(w, http.StatusOK, Response{Rates: []Offer{}})
}

// normalizeItems keeps shippable items and coerces their numeric fields,
// failing closed when a price or quantity is not a finite number.
func normalizeItems(raw []rawItem) ([]discount.LineItem, bool) {
	items := make([]discount.LineItem, 0, len(raw))
	for _, it := range raw {
		if !it.RequiresShipping {
			continue
		}
		price, ok := numeric.CoerceStrict(it.Price)
		if !ok {
			return nil, false
		}
		qty, ok := numeric.CoerceStrict(it.Quantity)
		if !ok {
			return nil, false
		}
		productID := numeric.NormalizeProductID(it.VariantID)
		if productID == "" {
			productID = numeric.NormalizeProductID(it.ProductID)
		}
		items = append(items, discount.LineItem{
			ProductID: productID,
			UnitPrice: price,
			Qty:       numeric.Clamp(qty, 0, maxItemQty),
		})
	}
	return items, true
}

func undiscountedResult(items []discount.LineItem) discount.Result {
	res := discount.Result{OK: true}
	for _, it := range items {
		if it.Qty <= 0 || it.UnitPrice < 0 {
			continue
		}
		res.Basis += it.UnitPrice * it.Qty
	}
	return res
}

func describeBasis(res discount.Result) string {
	if res.Applied == nil {
		return fmt.Sprintf("basis %d", res.Basis)
	}
	return fmt.Sprintf("basis %d after volume discount %d (%d eligible units)", res.Basis, res.Discount, res.EligibleQty)
}
