package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	lookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "optcache",
		Name:      "lookups_total",
		Help:      "Option lookups by entity and whether the entry was fresh.",
	}, []string{"entity", "result"})

	remoteFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "optcache",
		Name:      "remote_fetches_total",
		Help:      "Fetches issued to the backend by entity and outcome (ok, error, timeout).",
	}, []string{"entity", "outcome"})

	fetchSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "optcache",
		Name:      "fetch_duration_seconds",
		Help:      "Latency of backend fetches as seen by the cache.",
		Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2, 3, 5, 10},
	}, []string{"entity"})

	fallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "optcache",
		Name:      "fallbacks_total",
		Help:      "Built-in default lists substituted after repeated failures.",
	}, []string{"entity"})

	creates = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "optcache",
		Name:      "creates_total",
		Help:      "Options created through the cache by entity and outcome.",
	}, []string{"entity", "outcome"})

	snapshotOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "optcache",
		Name:      "snapshot_ops_total",
		Help:      "Durable snapshot operations by kind (load, save, expire) and outcome.",
	}, []string{"op", "outcome"})
)
