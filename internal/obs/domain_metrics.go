package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels recorded on RateRequestTotal.
const (
	OutcomeUnauthorized     = "unauthorized"
	OutcomeBadPayload       = "bad_payload"
	OutcomeNoShippableItems = "no_shippable_items"
	OutcomeUnmanagedZone    = "unmanaged_zone"
	OutcomeNoMatch          = "no_match"
	OutcomePriced           = "priced"
	OutcomeConfigError      = "config_error"
)

var (
	domainOnce sync.Once

	// RateRequestTotal counts carrier rate request outcomes.
	RateRequestTotal *prometheus.CounterVec
	// RateBasisCents observes the basis amounts priced requests were matched on.
	RateBasisCents prometheus.Histogram
	// ConfigCacheTotal counts shop configuration cache lookups by result.
	ConfigCacheTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		RateRequestTotal = registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_request_total",
			Help:      "Count of carrier rate requests by outcome.",
		}, []string{"outcome"}))
		RateBasisCents = registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rate_basis_cents",
			Help:      "Distribution of basis amounts for priced rate requests.",
			Buckets:   prometheus.ExponentialBuckets(100, 4, 10),
		}))
		ConfigCacheTotal = registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "config_cache_total",
			Help:      "Count of shop configuration cache lookups by result.",
		}, []string{"result"}))
	})
}

func registerHistogram(reg prometheus.Registerer, h prometheus.Histogram) prometheus.Histogram {
	if err := reg.Register(h); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing
			}
		}
		panic(err)
	}
	return h
}
