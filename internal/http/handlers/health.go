package handlers

import (
	"net/http"
	"os"
)

func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]any{
		"status":  "healthy",
		"service": "aura",
		"storage": a.Cfg.StorageBackend,
		"engine":  a.EngineMode,
	})
}

func (a *App) Live(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready reports whether the service can take new work: the staging area
// must be reachable and the queue must have room.
func (a *App) Ready(w http.ResponseWriter, r *http.Request) {
	if _, err := os.Stat(a.Store.StagingDir()); err != nil {
		a.error(w, http.StatusServiceUnavailable, "not_ready", "staging storage unavailable")
		return
	}
	depth, capacity := a.Queue.Depth(), a.Queue.Capacity()
	if depth >= capacity {
		a.error(w, http.StatusServiceUnavailable, "not_ready", "queue saturated")
		return
	}
	a.json(w, http.StatusOK, map[string]any{
		"status":         "ready",
		"queue_depth":    depth,
		"queue_capacity": capacity,
	})
}
