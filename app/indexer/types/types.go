package types

// ChainHeadOutput carries the node's latest committed height.
type ChainHeadOutput struct {
	Height uint64 `json:"height"`
}

// CheckpointOutput carries the durable checkpoint height. Zero means no
// height has been processed yet.
type CheckpointOutput struct {
	Height uint64 `json:"height"`
}

// HeightInput addresses one block for verification, distribution or
// checkpoint commit.
type HeightInput struct {
	Height uint64 `json:"height"`
}

// VerifyHeightOutput summarizes one block's verification pass.
type VerifyHeightOutput struct {
	TxCount    int     `json:"txCount"`
	EventCount int     `json:"eventCount"`
	DurationMs float64 `json:"durationMs"`
}

// DistributeOutput summarizes one distribution run.
type DistributeOutput struct {
	Distributed float64 `json:"distributed"`
	LeftOver    float64 `json:"leftOver"`
	Paid        int     `json:"paid"`
	Skipped     bool    `json:"skipped"`
}

// CheckpointWorkflowInput parameterizes one run of the checkpoint workflow.
// Iterations counts heights processed before the run continues-as-new.
type CheckpointWorkflowInput struct {
	Iterations int `json:"iterations"`
}
