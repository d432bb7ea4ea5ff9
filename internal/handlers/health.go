package handlers

import "net/http"

// HealthCheck reports process liveness for the deployment probe. Database
// reachability is enforced at startup, so this stays dependency-free.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "maquinaria-api",
	})
}
