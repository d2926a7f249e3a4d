package controller

import (
	"net/http"
)

func (c *Controller) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := c.App.Store.Ping(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "database connection error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
