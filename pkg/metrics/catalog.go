package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	SyncResultSuccess = "success"
	SyncResultNetwork = "network_error"
	SyncResultDecode  = "decode_error"
	SyncResultStore   = "store_error"
)

// CatalogMetrics tracks the health of the local catalog mirror.
type CatalogMetrics struct {
	syncs       *prometheus.CounterVec
	lastSuccess prometheus.Gauge
	products    prometheus.Gauge
}

// NewCatalogMetrics registers catalog mirror metrics on the provided registerer.
func NewCatalogMetrics(reg prometheus.Registerer) *CatalogMetrics {
	if reg == nil {
		return &CatalogMetrics{}
	}
	syncs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_sync_total",
		Help: "Catalog sync attempts by result.",
	}, []string{"result"})
	lastSuccess := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "catalog_sync_last_success_timestamp_seconds",
		Help: "Unix time of the last successful catalog sync.",
	})
	products := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "catalog_cached_products",
		Help: "Products currently held in the local catalog mirror.",
	})
	reg.MustRegister(syncs, lastSuccess, products)
	return &CatalogMetrics{
		syncs:       syncs,
		lastSuccess: lastSuccess,
		products:    products,
	}
}

// ObserveSync counts a sync attempt with the given result label.
func (c *CatalogMetrics) ObserveSync(result string) {
	if c == nil || c.syncs == nil {
		return
	}
	c.syncs.WithLabelValues(normalizeLabel(result)).Inc()
}

// MarkSynced records a successful replace of count products at t.
func (c *CatalogMetrics) MarkSynced(t time.Time, count int) {
	if c == nil || c.lastSuccess == nil {
		return
	}
	c.lastSuccess.Set(float64(t.Unix()))
	c.products.Set(float64(count))
}
