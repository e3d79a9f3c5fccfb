package server

import (
	"encoding/json"
	"net/http"

	"github.com/gaspardpetit/wspush/server/internal/hub"
	"github.com/gaspardpetit/wspush/server/internal/serverstate"
)

// HealthHandler reports the server state. Draining servers answer 503 so
// balancers stop routing new connections to them.
func HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st := serverstate.Snapshot()
		w.Header().Set("Content-Type", "application/json")
		if st.Draining {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(st)
	}
}

type connectionsView struct {
	Count       int            `json:"count"`
	Connections []hub.ConnInfo `json:"connections"`
}

// ConnectionsHandler lists the live websocket connections.
func ConnectionsHandler(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conns := h.Conns()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(connectionsView{Count: len(conns), Connections: conns})
	}
}
