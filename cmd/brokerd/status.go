package main

import (
	"encoding/json"
	"net/http"

	"brokerd/internal/broker"
	"brokerd/internal/stats"
)

type statusSource interface {
	Status() broker.Status
}

type statusResponse struct {
	Broker      broker.Status          `json:"broker"`
	Stats       map[string]interface{} `json:"stats"`
	FailureRate float64                `json:"failureRate"`
}

func statusHandler(src statusSource, collector *stats.StatsCollector) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		resp := statusResponse{Broker: src.Status()}
		if collector != nil {
			resp.Stats = collector.GetStats()
			resp.FailureRate = collector.FailureRate()
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
}
