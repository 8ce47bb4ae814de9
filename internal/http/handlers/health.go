package handlers

import (
	"net/http"
)

// Health reports process liveness. It deliberately checks no dependencies so
// load balancers keep routing while Postgres or a vendor is having a bad day.
func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]string{"status": "ok", "service": "mediaserver"})
}
