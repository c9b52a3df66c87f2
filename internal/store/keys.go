package store

// KeyTierTable returns the per-shop cache key for the volume discount tier table.
func KeyTierTable(shopID string) string {
	return shopID + ":config:tier_table"
}

// KeyEligibility returns the per-shop cache key for the eligibility snapshot.
func KeyEligibility(shopID string) string {
	return shopID + ":config:eligibility"
}

// KeyZones returns the per-shop cache key for the managed zone configuration.
func KeyZones(shopID string) string {
	return shopID + ":config:zones"
}

// KeyCharts returns the per-shop cache key for the active chart set.
func KeyCharts(shopID string) string {
	return shopID + ":charts:active"
}
