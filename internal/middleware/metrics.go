package middleware

import (
	"encoding/json"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"
)

// Metrics stores application metrics
type Metrics struct {
	RequestsTotal      uint64
	RequestsInProgress uint64
	RequestsSuccess    uint64
	RequestsFailed     uint64
	AnalysesTotal      uint64
	AnalysesFailed     uint64
	AnalysesUnsaved    uint64
	ExplainCacheHits   uint64
	ExplainCacheMisses uint64
	ExplainFallbacks   uint64
	StartTime          time.Time
}

var globalMetrics = &Metrics{
	StartTime: time.Now(),
}

func IncrementRequests()     { atomic.AddUint64(&globalMetrics.RequestsTotal, 1) }
func IncrementInProgress()   { atomic.AddUint64(&globalMetrics.RequestsInProgress, 1) }
func DecrementInProgress()   { atomic.AddUint64(&globalMetrics.RequestsInProgress, ^uint64(0)) }
func IncrementSuccess()      { atomic.AddUint64(&globalMetrics.RequestsSuccess, 1) }
func IncrementFailed()       { atomic.AddUint64(&globalMetrics.RequestsFailed, 1) }
func IncrementAnalyses()     { atomic.AddUint64(&globalMetrics.AnalysesTotal, 1) }
func IncrementAnalysesFail() { atomic.AddUint64(&globalMetrics.AnalysesFailed, 1) }

// IncrementAnalysesUnsaved counts analyses returned without an id.
func IncrementAnalysesUnsaved() { atomic.AddUint64(&globalMetrics.AnalysesUnsaved, 1) }

// IncrementExplainSource counts an explanation by where it came from:
// "cache" is a hit, "generated" a miss, "fallback" a miss that also failed.
func IncrementExplainSource(source string) {
	switch source {
	case "cache":
		atomic.AddUint64(&globalMetrics.ExplainCacheHits, 1)
	case "generated":
		atomic.AddUint64(&globalMetrics.ExplainCacheMisses, 1)
	case "fallback":
		atomic.AddUint64(&globalMetrics.ExplainCacheMisses, 1)
		atomic.AddUint64(&globalMetrics.ExplainFallbacks, 1)
	}
}

// GetMetrics returns current metrics
func GetMetrics() map[string]any {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return map[string]any{
		"requests_total":       atomic.LoadUint64(&globalMetrics.RequestsTotal),
		"requests_in_progress": atomic.LoadUint64(&globalMetrics.RequestsInProgress),
		"requests_success":     atomic.LoadUint64(&globalMetrics.RequestsSuccess),
		"requests_failed":      atomic.LoadUint64(&globalMetrics.RequestsFailed),
		"analyses_total":       atomic.LoadUint64(&globalMetrics.AnalysesTotal),
		"analyses_failed":      atomic.LoadUint64(&globalMetrics.AnalysesFailed),
		"analyses_unsaved":     atomic.LoadUint64(&globalMetrics.AnalysesUnsaved),
		"explain_cache_hits":   atomic.LoadUint64(&globalMetrics.ExplainCacheHits),
		"explain_cache_misses": atomic.LoadUint64(&globalMetrics.ExplainCacheMisses),
		"explain_fallbacks":    atomic.LoadUint64(&globalMetrics.ExplainFallbacks),
		"uptime_seconds":       time.Since(globalMetrics.StartTime).Seconds(),
		"memory": map[string]any{
			"alloc_bytes":       m.Alloc,
			"total_alloc_bytes": m.TotalAlloc,
			"sys_bytes":         m.Sys,
			"num_gc":            m.NumGC,
		},
		"goroutines": runtime.NumGoroutine(),
	}
}

// MetricsMiddleware tracks request metrics
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		IncrementRequests()
		IncrementInProgress()
		defer DecrementInProgress()

		wrapped := wrap(w)
		next.ServeHTTP(wrapped, r)

		if wrapped.statusCode >= 200 && wrapped.statusCode < 400 {
			IncrementSuccess()
		} else {
			IncrementFailed()
		}
	})
}

// MetricsHandler returns metrics as JSON
func MetricsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(GetMetrics())
}
