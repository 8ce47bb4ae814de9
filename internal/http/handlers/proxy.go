package handlers

import (
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
)

// ProxyFile serves a stored artifact. The store resolves the requested key
// strictly inside the storage root, so traversal attempts surface as 404.
func (a *App) ProxyFile(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "*")
	fullPath, err := a.Store.Resolve(key)
	if err != nil {
		a.error(w, http.StatusNotFound, "not_found", "file not found")
		return
	}
	info, err := os.Stat(fullPath)
	if err != nil || info.IsDir() {
		a.error(w, http.StatusNotFound, "not_found", "file not found")
		return
	}
	http.ServeFile(w, r, fullPath)
}
