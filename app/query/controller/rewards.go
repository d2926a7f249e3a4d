package controller

import (
	"math"
	"net/http"
	"strconv"

	rewardmodels "github.com/canopy-network/rewardx/pkg/db/models/reward"
)

const (
	defaultLimit = 50
	maxLimit     = 100
)

type rewardBlocksResponse struct {
	Data  []*rewardmodels.RewardBlock `json:"data"`
	Limit int                         `json:"limit"`
}

// HandleRewardBlocks returns the most recent distribution runs, newest first.
// GET /v1/rewards/blocks?limit=50
func (c *Controller) HandleRewardBlocks(w http.ResponseWriter, r *http.Request) {
	limit := defaultLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = int(math.Min(float64(n), maxLimit))
	}

	rows, err := c.App.Store.ListRewardBlocks(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}

	writeJSON(w, http.StatusOK, rewardBlocksResponse{Data: rows, Limit: limit})
}
