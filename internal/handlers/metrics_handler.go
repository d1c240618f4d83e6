package handlers

import (
	"net/http"
	"strconv"

	"harbor-server/internal/metrics"
)

// Metrics is the running metrics service, set at startup.
var Metrics *metrics.Service

func GetMetricsHandler(w http.ResponseWriter, r *http.Request) {
	if Metrics == nil {
		writeError(w, http.StatusServiceUnavailable, "Metrics not available")
		return
	}

	snapshot, err := Metrics.GetCurrent()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to fetch metrics")
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

func GetHourlyMetricsHandler(w http.ResponseWriter, r *http.Request) {
	if Metrics == nil {
		writeError(w, http.StatusServiceUnavailable, "Metrics not available")
		return
	}

	hours := 24
	if v := r.URL.Query().Get("hours"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 24*7 {
			writeError(w, http.StatusBadRequest, "hours must be between 1 and 168")
			return
		}
		hours = n
	}

	rows, err := Metrics.GetHourly(hours)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to fetch metrics")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"hourly": rows})
}
