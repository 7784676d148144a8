package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/voxbridge/voxbridge/pkg/bridge/sessions"
)

type HealthHandler struct {
	Sessions *sessions.Tracker
}

func (h HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	active := 0
	if h.Sessions != nil {
		active = h.Sessions.Count()
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":          "ok",
		"active_sessions": active,
	})
}
