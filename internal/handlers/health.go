package handlers

import (
	"net/http"

	"zyberhero/internal/version"
	"zyberhero/internal/web"
)

// Health reports liveness and the running version.
func Health(w http.ResponseWriter, r *http.Request) {
	web.OK(w, r, map[string]string{
		"status":  "ok",
		"version": version.Version,
	})
}
