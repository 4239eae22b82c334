package handlers

import (
	"net/http"
)

type HealthHandler struct {
	monitor HealthReader
}

func NewHealthHandler(monitor HealthReader) *HealthHandler {
	return &HealthHandler{monitor: monitor}
}

// Get handles GET /bridge/health with the monitor's latest state.
func (h *HealthHandler) Get(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.monitor.State())
}

// Dismiss handles POST /bridge/health/dismiss. Reachability is untouched.
func (h *HealthHandler) Dismiss(w http.ResponseWriter, r *http.Request) {
	h.monitor.Dismiss()
	w.WriteHeader(http.StatusNoContent)
}

// Live handles GET /healthz: the bridge process itself is up.
func Live(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
