// Package store reads merchant configuration for the rate pipeline: active
// shipping charts with their tiers (relational) and the versioned JSON
// configuration blobs written by administrative collaborators. Reads go
// through a short-TTL Redis cache; cache failures degrade to Postgres.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/shiplane/rates-api/internal/chart"
	"github.com/shiplane/rates-api/internal/common"
	"github.com/shiplane/rates-api/internal/discount"
	"github.com/shiplane/rates-api/internal/zone"
)

// Blob kinds stored in shop_configs.
const (
	KindTierTable   = "tier_table"
	KindEligibility = "eligibility"
	KindZones       = "zones"
)

// DB is the subset of pgxpool.Pool the store depends on.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store reads shop-scoped configuration.
type Store struct {
	DB       DB
	Cache    *Cache
	Validate *validator.Validate
}

type cachedBlob struct {
	Found   bool            `json:"found"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// TierTable returns the shop's volume discount tier table. The second return
// is false when no usable table is configured.
func (s *Store) TierTable(ctx context.Context, shopID string) (*discount.TierTable, bool, error) {
	payload, found, err := s.configBlob(ctx, shopID, KindTierTable, KeyTierTable(shopID))
	if err != nil || !found {
		return nil, false, err
	}
	table, ok := ParseTierTable(s.Validate, payload)
	return table, ok, nil
}

// Eligibility returns the shop's product eligibility snapshot. The second
// return is false when no usable snapshot is configured.
func (s *Store) Eligibility(ctx context.Context, shopID string) (discount.Eligibility, bool, error) {
	payload, found, err := s.configBlob(ctx, shopID, KindEligibility, KeyEligibility(shopID))
	if err != nil || !found {
		return discount.Eligibility{}, false, err
	}
	snapshot, ok := ParseEligibility(s.Validate, payload)
	return snapshot, ok, nil
}

// ZoneConfig returns the shop's managed zone configuration. The second return
// is false when no usable configuration exists, under which no destination is
// managed.
func (s *Store) ZoneConfig(ctx context.Context, shopID string) (zone.Config, bool, error) {
	payload, found, err := s.configBlob(ctx, shopID, KindZones, KeyZones(shopID))
	if err != nil || !found {
		return zone.Config{}, false, err
	}
	cfg, ok := ParseZoneConfig(s.Validate, payload)
	return cfg, ok, nil
}

func (s *Store) configBlob(ctx context.Context, shopID, kind, cacheKey string) (json.RawMessage, bool, error) {
	var cached cachedBlob
	if hit, err := s.Cache.GetJSON(ctx, cacheKey, &cached); err == nil && hit {
		return cached.Payload, cached.Found, nil
	}

	var payload []byte
	err := s.DB.QueryRow(ctx,
		`SELECT payload FROM shop_configs WHERE shop_id = $1 AND kind = $2`,
		shopID, kind,
	).Scan(&payload)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		_ = s.Cache.SetJSON(ctx, cacheKey, cachedBlob{Found: false})
		return nil, false, nil
	case err != nil:
		return nil, false, common.NewAppError("CONFIG_READ_FAILED",
			fmt.Sprintf("load %s config", kind), http.StatusInternalServerError, err)
	}

	_ = s.Cache.SetJSON(ctx, cacheKey, cachedBlob{Found: true, Payload: payload})
	return payload, true, nil
}

// ActiveCharts returns the shop's active charts with their active tiers,
// ordered by descending priority and ascending tier basis.
func (s *Store) ActiveCharts(ctx context.Context, shopID string) ([]chart.Chart, error) {
	var cached []chart.Chart
	if hit, err := s.Cache.GetJSON(ctx, KeyCharts(shopID), &cached); err == nil && hit {
		return cached, nil
	}

	rows, err := s.DB.Query(ctx,
		`SELECT id, name, service_code, priority, handling_fee_cents
		 FROM shipping_charts
		 WHERE shop_id = $1 AND active
		 ORDER BY priority DESC, created_at`,
		shopID,
	)
	if err != nil {
		return nil, common.NewAppError("CONFIG_READ_FAILED", "list active charts", http.StatusInternalServerError, err)
	}
	defer rows.Close()

	var charts []chart.Chart
	index := map[uuid.UUID]int{}
	for rows.Next() {
		var (
			id pgtype.UUID
			c  chart.Chart
		)
		if err := rows.Scan(&id, &c.Name, &c.ServiceCode, &c.Priority, &c.HandlingFee); err != nil {
			return nil, fmt.Errorf("scan chart: %w", err)
		}
		c.ID = uuid.UUID(id.Bytes)
		c.ShopID = shopID
		c.Active = true
		index[c.ID] = len(charts)
		charts = append(charts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate charts: %w", err)
	}
	if len(charts) == 0 {
		_ = s.Cache.SetJSON(ctx, KeyCharts(shopID), []chart.Chart{})
		return nil, nil
	}

	ids := make([]uuid.UUID, 0, len(charts))
	for _, c := range charts {
		ids = append(ids, c.ID)
	}
	tierRows, err := s.DB.Query(ctx,
		`SELECT chart_id, id, min_basis_cents, max_basis_cents, price_kind, amount, sort_order, label
		 FROM shipping_tiers
		 WHERE chart_id = ANY($1) AND active
		 ORDER BY min_basis_cents, max_basis_cents NULLS LAST, sort_order`,
		ids,
	)
	if err != nil {
		return nil, common.NewAppError("CONFIG_READ_FAILED", "list chart tiers", http.StatusInternalServerError, err)
	}
	defer tierRows.Close()

	for tierRows.Next() {
		var (
			chartID pgtype.UUID
			tierID  pgtype.UUID
			t       chart.Tier
			kind    string
		)
		if err := tierRows.Scan(&chartID, &tierID, &t.MinBasis, &t.MaxBasis, &kind, &t.Amount, &t.SortOrder, &t.Label); err != nil {
			return nil, fmt.Errorf("scan tier: %w", err)
		}
		t.ID = uuid.UUID(tierID.Bytes)
		t.Kind = chart.PriceKind(kind)
		t.Active = true
		if i, ok := index[uuid.UUID(chartID.Bytes)]; ok {
			charts[i].Tiers = append(charts[i].Tiers, t)
		}
	}
	if err := tierRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tiers: %w", err)
	}

	_ = s.Cache.SetJSON(ctx, KeyCharts(shopID), charts)
	return charts, nil
}
