package controller

import (
	"net/http"
)

// statusResponse is the aggregate indexing and distribution state.
type statusResponse struct {
	CheckpointHeight uint64 `json:"checkpoint_height"`

	DelegatorsTotal    uint64 `json:"delegators_total"`
	DelegatorsEligible uint64 `json:"delegators_eligible"`

	WorldGlobalDelegation float64 `json:"world_global_delegation"`
	WorldAuditDelegation  float64 `json:"world_audit_delegation"`

	LastDistributionHeight uint64  `json:"last_distribution_height"`
	TotalDistributed       float64 `json:"total_distributed"`
	LeftOver               float64 `json:"left_over"`

	DistributionStartHeight uint64  `json:"distribution_start_height"`
	DistributionStopHeight  uint64  `json:"distribution_stop_height"`
	TotalBudget             float64 `json:"total_budget"`
}

func (c *Controller) HandleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	checkpoint, err := c.App.Store.GetCheckpoint(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	total, eligible, err := c.App.Store.CountDelegators(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	delStatus, err := c.App.Store.GetDelegationStatus(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	distStatus, err := c.App.Store.GetDistributionStatus(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}

	writeJSON(w, http.StatusOK, statusResponse{
		CheckpointHeight:        checkpoint,
		DelegatorsTotal:         total,
		DelegatorsEligible:      eligible,
		WorldGlobalDelegation:   delStatus.WorldGlobal,
		WorldAuditDelegation:    delStatus.WorldAudit,
		LastDistributionHeight:  distStatus.LastHeight,
		TotalDistributed:        distStatus.TotalDistributed,
		LeftOver:                distStatus.LeftOver,
		DistributionStartHeight: c.App.Cfg.DistributionStartHeight,
		DistributionStopHeight:  c.App.Cfg.DistributionStopHeight,
		TotalBudget:             c.App.Cfg.TotalBudget,
	})
}
