// README: Prometheus counters and histograms for the negotiation engine and HTTP layer.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EstimatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "lifton", Name: "fare_estimates_total", Help: "Fare estimates computed, by service category"},
		[]string{"service_type"},
	)
	BidsSubmittedTotal = promauto.NewCounter(prometheus.CounterOpts{Namespace: "lifton", Name: "bids_submitted_total", Help: "Driver bids admitted"})
	BidsAcceptedTotal  = promauto.NewCounter(prometheus.CounterOpts{Namespace: "lifton", Name: "bids_accepted_total", Help: "Driver bids accepted"})
	BidAcceptConflicts = promauto.NewCounter(prometheus.CounterOpts{Namespace: "lifton", Name: "bid_accept_conflicts_total", Help: "Bid acceptance attempts that lost the race"})
	BargainsTotal      = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "lifton", Name: "bargain_outcomes_total", Help: "Terminal bargain outcomes"},
		[]string{"outcome"},
	)
	RecordsExpiredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "lifton", Name: "records_expired_total", Help: "Bids and bargains swept to expired"},
		[]string{"kind"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "lifton", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "lifton",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
