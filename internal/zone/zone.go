// Package zone decides whether a destination falls inside the geographic
// coverage a merchant has opted into. Every lookup fails closed: a country
// absent from the configuration, or a province-gated country with no
// destination province, is not managed.
package zone

import "strings"

// Region group keys used by the managed zone configuration.
const (
	GroupNorthAmerica  = "northAmerica"
	GroupInternational = "international"
)

// CountryEntry describes coverage for a single country: either the whole
// country or an explicit list of subdivision codes.
type CountryEntry struct {
	Selected  bool     `json:"selected"`
	Provinces []string `json:"provinces"`
}

// Config is the merchant's managed zone configuration, keyed by region group
// then ISO country code.
type Config struct {
	Version string                             `json:"version"`
	Groups  map[string]map[string]CountryEntry `json:"groups"`
}

// GroupFor classifies a country code into its region group. North America is
// exactly {US, CA, MX}; everything else is international.
func GroupFor(countryCode string) string {
	switch normalizeCode(countryCode) {
	case "US", "CA", "MX":
		return GroupNorthAmerica
	default:
		return GroupInternational
	}
}

// IsDestinationManaged reports whether the destination should receive a
// computed rate. The function is pure and total: every input combination
// yields a boolean with no error path.
func IsDestinationManaged(cfg Config, countryCode, provinceCode string) bool {
	country := normalizeCode(countryCode)
	if country == "" {
		return false
	}
	group, ok := cfg.Groups[GroupFor(country)]
	if !ok {
		return false
	}
	entry, ok := group[country]
	if !ok {
		return false
	}
	if entry.Selected {
		return true
	}
	if len(entry.Provinces) == 0 {
		return false
	}
	province := normalizeCode(provinceCode)
	if province == "" {
		return false
	}
	for _, p := range entry.Provinces {
		if normalizeCode(p) == province {
			return true
		}
	}
	return false
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
