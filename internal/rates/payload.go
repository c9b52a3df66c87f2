package rates

import (
	"bytes"
	"encoding/json"
)

// rateEnvelope mirrors the carrier-rate callback body sent by the commerce
// platform at checkout time. Numeric fields are left untyped: the payload is
// untrusted and coerced through internal/numeric before use.
type rateEnvelope struct {
	Rate ratePayload `json:"rate"`
}

type ratePayload struct {
	Items       []rawItem   `json:"items"`
	Destination destination `json:"destination"`
	Currency    string      `json:"currency"`
}

type rawItem struct {
	Name             string `json:"name"`
	Price            any    `json:"price"`
	Quantity         any    `json:"quantity"`
	RequiresShipping bool   `json:"requires_shipping"`
	ProductID        any    `json:"product_id"`
	VariantID        any    `json:"variant_id"`
}

type destination struct {
	CountryCode  string `json:"country_code"`
	ProvinceCode string `json:"province_code"`
}

// Offer is one priced shipping option returned to the platform. The price is
// serialised as integer minor units in string form, as the platform expects.
type Offer struct {
	ServiceName string `json:"service_name"`
	ServiceCode string `json:"service_code"`
	TotalPrice  string `json:"total_price"`
	Currency    string `json:"currency"`
	Description string `json:"description,omitempty"`
}

// Response is the carrier-rate callback response envelope. An empty Rates
// list is a valid business outcome, not an error.
type Response struct {
	Rates []Offer `json:"rates"`
}

func parseRateRequest(body []byte) (ratePayload, bool) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var envelope rateEnvelope
	if err := dec.Decode(&envelope); err != nil {
		return ratePayload{}, false
	}
	return envelope.Rate, true
}
