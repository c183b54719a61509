package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	VisibleEmergencies = promauto.NewGauge(prometheus.GaugeOpts{Namespace: "roadside_dispatch", Name: "visible_emergencies", Help: "Emergencies currently in the visible set"})
	AcceptsTotal       = promauto.NewCounter(prometheus.CounterOpts{Namespace: "roadside_dispatch", Name: "accepts_total", Help: "Successful acceptances"})
	AcceptConflicts    = promauto.NewCounter(prometheus.CounterOpts{Namespace: "roadside_dispatch", Name: "accept_conflicts_total", Help: "Acceptances lost to another provider"})
	ProvidersOnline    = promauto.NewGauge(prometheus.GaugeOpts{Namespace: "roadside_dispatch", Name: "providers_online", Help: "Number of online providers"})

	ChangeEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "roadside_dispatch", Name: "change_events_total", Help: "Change-stream events applied by type"},
		[]string{"type"},
	)
	RefreshesTotal = promauto.NewCounter(prometheus.CounterOpts{Namespace: "roadside_dispatch", Name: "refreshes_total", Help: "Full visible-set refreshes applied"})
	EnrichFailures = promauto.NewCounter(prometheus.CounterOpts{Namespace: "roadside_dispatch", Name: "enrichment_failures_total", Help: "Enrichment lookups that fell back"})

	SettlementAmount = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "roadside_dispatch",
		Name:      "settlement_amount_minor_units",
		Help:      "Finalized settlement totals in minor currency units",
		Buckets:   prometheus.ExponentialBuckets(100, 4, 10),
	})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "roadside_dispatch", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "roadside_dispatch",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
