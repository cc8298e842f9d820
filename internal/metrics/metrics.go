// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// CacheLookups counts read cache lookups, labelled hit or miss.
	CacheLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fitsync_cache_lookups_total",
		Help: "Read cache lookups by result (hit or miss)",
	}, []string{"result"})
	// CacheFills counts fetched values, labelled stored or discarded.
	CacheFills = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fitsync_cache_fills_total",
		Help: "Read cache fills by outcome (stored or discarded after a racing invalidation)",
	}, []string{"outcome"})
	// CacheInvalidated counts entries dropped by tag invalidation.
	CacheInvalidated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fitsync_cache_invalidated_entries_total",
		Help: "Entries removed by tag invalidation",
	})
	// CacheEntries is the number of live cache entries.
	CacheEntries = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "fitsync_cache_entries",
		Help: "Entries currently held by the read cache",
	})
	// SocialWrites counts optimistic follow and like writes by outcome.
	SocialWrites = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fitsync_social_writes_total",
		Help: "Optimistic social writes by kind and outcome",
	}, []string{"kind", "outcome"})
	// SocialWriteDuration observes how long an optimistic write took to settle.
	SocialWriteDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fitsync_social_write_duration_seconds",
		Help:    "Time from first attempt to confirmation or failure",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})
	// RealtimeEvents counts notifications applied to a viewer's unread counters.
	RealtimeEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fitsync_realtime_events_total",
		Help: "Notification inserts applied to an unread counter",
	}, []string{"counter"})
	// RealtimeDuplicates counts notifications dropped because they were already counted.
	RealtimeDuplicates = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fitsync_realtime_duplicates_total",
		Help: "Notification inserts dropped as already counted",
	})
)

func init() {
	prometheus.MustRegister(
		CacheLookups, CacheFills, CacheInvalidated, CacheEntries,
		SocialWrites, SocialWriteDuration,
		RealtimeEvents, RealtimeDuplicates,
	)
}

// IncCacheLookup counts a hit or a miss.
func IncCacheLookup(hit bool) {
	if hit {
		CacheLookups.WithLabelValues("hit").Inc()
		return
	}
	CacheLookups.WithLabelValues("miss").Inc()
}

// IncCacheFill counts a fill that was stored or discarded.
func IncCacheFill(stored bool) {
	if stored {
		CacheFills.WithLabelValues("stored").Inc()
		return
	}
	CacheFills.WithLabelValues("discarded").Inc()
}

// ObserveSocialWrite records the outcome of one optimistic write.
func ObserveSocialWrite(kind, outcome string, start time.Time) {
	SocialWrites.WithLabelValues(kind, outcome).Inc()
	SocialWriteDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
}

// IncRealtimeEvent counts an event applied to the named counter.
func IncRealtimeEvent(counter string) { RealtimeEvents.WithLabelValues(counter).Inc() }

// Handler serves the default registry.
func Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	return mux
}

// Serve exposes Handler on addr until ctx is done. An empty addr is a no-op.
func Serve(ctx context.Context, addr string) error {
	if addr == "" {
		return nil
	}
	srv := &http.Server{Addr: addr, Handler: Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
