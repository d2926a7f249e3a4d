package controller

import (
	"net/http"

	"github.com/gorilla/mux"
)

// delegatorResponse combines a delegator's ledger record with its reward
// history and a linear projection of where it will land by the end of the
// window.
type delegatorResponse struct {
	Address              string  `json:"address"`
	AuditDelegation      float64 `json:"audit_delegation"`
	GlobalDelegation     float64 `json:"global_delegation"`
	DistributionComplete bool    `json:"distribution_complete"`
	LastSeenHeight       uint64  `json:"last_seen_height"`

	Rewarded         float64 `json:"rewarded"`
	RewardedSince    uint64  `json:"rewarded_since,omitempty"`
	LastRewardHeight uint64  `json:"last_reward_height,omitempty"`

	// ProjectedReward extrapolates the per-block pace so far over the whole
	// window, capped at the per-address limit. Zero until a first payment.
	ProjectedReward float64 `json:"projected_reward"`
}

func (c *Controller) HandleDelegator(w http.ResponseWriter, r *http.Request) {
	address := mux.Vars(r)["address"]
	if address == "" {
		writeError(w, http.StatusBadRequest, "missing address")
		return
	}

	ctx := r.Context()

	d, err := c.App.Store.GetDelegator(ctx, address)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	if d == nil {
		writeError(w, http.StatusNotFound, "delegator not tracked")
		return
	}

	resp := delegatorResponse{
		Address:              d.Address,
		AuditDelegation:      d.AuditDelegation,
		GlobalDelegation:     d.GlobalDelegation,
		DistributionComplete: d.DistributionComplete,
		LastSeenHeight:       d.LastHeight,
	}

	dist, err := c.App.Store.GetDistribution(ctx, address)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	if dist != nil {
		resp.Rewarded = dist.Amount
		resp.RewardedSince = dist.StartHeight
		resp.LastRewardHeight = dist.LastHeight
		resp.ProjectedReward = c.projectReward(dist.Amount, dist.StartHeight, dist.LastHeight)
	}

	writeJSON(w, http.StatusOK, resp)
}

// projectReward extends the observed per-block pace across the remaining
// window blocks, clamped at the lifetime cap.
func (c *Controller) projectReward(amount float64, startHeight, lastHeight uint64) float64 {
	cfg := c.App.Cfg
	if amount <= 0 || lastHeight < startHeight {
		return amount
	}
	blocksSoFar := float64(lastHeight - startHeight + 1)
	remaining := float64(0)
	if cfg.DistributionStopHeight > lastHeight {
		remaining = float64(cfg.DistributionStopHeight - lastHeight)
	}
	projected := amount + amount/blocksSoFar*remaining
	if cfg.PerAddressCap > 0 && projected > cfg.PerAddressCap {
		projected = cfg.PerAddressCap
	}
	return projected
}
