package controller

import (
	"net/http"

	"github.com/go-jose/go-jose/v4/json"
	"github.com/gorilla/mux"

	"github.com/canopy-network/rewardx/app/query/types"
)

type Controller struct {
	App *types.App
}

// NewController returns a new controller.
func NewController(app *types.App) *Controller {
	return &Controller{
		App: app,
	}
}

// NewRouter returns a new router with all the routes defined in this file.
func (c *Controller) NewRouter() (*mux.Router, error) {
	r := mux.NewRouter()

	r.Handle("/health", http.HandlerFunc(c.HandleHealth)).Methods("GET")

	r.HandleFunc("/v1/status", c.HandleStatus).Methods("GET")
	r.HandleFunc("/v1/delegators/{address}", c.HandleDelegator).Methods("GET")
	r.HandleFunc("/v1/rewards/blocks", c.HandleRewardBlocks).Methods("GET")

	r.HandleFunc("/ws", c.HandleWebSocket)

	return r, nil
}

// WithCORS wraps a handler with permissive CORS headers.
func WithCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", http.MethodGet+", "+http.MethodOptions)

		// Fast-path the preflight
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes an error response
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}
