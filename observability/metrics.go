package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	PollCyclesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "poll_cycles_total",
			Help: "Total poll cycles started",
		},
	)
	ListingsSeenTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "listings_seen_total",
			Help: "Total listings extracted from search pages",
		},
	)
	ListingsNotifiedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "listings_notified_total",
			Help: "Total listings delivered to the notification channel",
		},
	)
	FetchAttemptsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fetch_attempts_total",
			Help: "Total search-page fetch attempts, including retries",
		},
	)
	CycleErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cycle_errors_total",
			Help: "Total failed poll-cycle attempts",
		},
	)
)

// Start registers the counters and serves /metrics on the given port.
func Start(port string) {
	prometheus.MustRegister(
		PollCyclesTotal,
		ListingsSeenTotal,
		ListingsNotifiedTotal,
		FetchAttemptsTotal,
		CycleErrorsTotal,
	)
	http.Handle("/metrics", promhttp.Handler())
	go http.ListenAndServe(":"+port, nil)
}
