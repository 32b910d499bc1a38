package handlers

import (
	"net/http"
	"time"
)

var startTime = time.Now()

// Health handles GET /health. Reports store reachability plus the
// engine and template-cache counters.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	overall := "healthy"
	storeStatus := "ok"
	if err := h.store.Health(); err != nil {
		status = http.StatusServiceUnavailable
		overall = "degraded"
		storeStatus = err.Error()
	}

	h.sendJSONResponse(w, status, map[string]interface{}{
		"status":         overall,
		"store":          storeStatus,
		"uptime_seconds": int(time.Since(startTime).Seconds()),
		"metrics":        h.engine.Metrics().Snapshot(),
		"template_cache": h.engine.RenderCacheStats(),
	})
}
