package status

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
)

// RoutePath is where the status endpoint is mounted.
const RoutePath = "/rpa/status"

// RegisterRoutes mounts the read-only status endpoint on r.
func RegisterRoutes(r *mux.Router, p *Publisher) {
	r.HandleFunc(RoutePath, Handler(p)).Methods(http.MethodGet)
}

// Handler serves the current Status as JSON.
func Handler(p *Publisher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st := p.Get(r.Context())

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		_ = json.NewEncoder(w).Encode(st)
	}
}
