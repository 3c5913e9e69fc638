package metrics

import (
	"encoding/json"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tastythames/ssh-transfer/internal/cache"
)

type jobStatus struct {
	Job string `json:"job"`
	cache.Result
}

// NewRouter serves /health, /metrics from g and /status from the run cache.
func NewRouter(g prometheus.Gatherer, c cache.Cache) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	r.Get("/status", func(w http.ResponseWriter, _ *http.Request) {
		snap := c.Snapshot()
		out := make([]jobStatus, 0, len(snap))
		for job, res := range snap {
			out = append(out, jobStatus{Job: job, Result: res})
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Job < out[j].Job })

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(out)
	})
	return r
}
