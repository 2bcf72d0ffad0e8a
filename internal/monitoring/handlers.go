package monitoring

import (
	"encoding/json"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthHandler implements GET /health.
func (s *Surface) HealthHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		if !s.Healthy() {
			status = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"status":   statusString(status),
			"kv":       s.Snapshot().KV,
		})
	})
}

func statusString(code int) string {
	if code == http.StatusOK {
		return "ok"
	}
	return "unhealthy"
}

// SummaryHandler implements GET /summary.
func (s *Surface) SummaryHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(s.Snapshot())
	})
}

// AlertsHandler implements GET /alerts using rules.
func (s *Surface) AlertsHandler(rules []AlertRule) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"alerts": s.Alerts(rules),
		})
	})
}

// MetricsHandler implements GET /metrics, the Prometheus exposition.
func (s *Surface) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}
