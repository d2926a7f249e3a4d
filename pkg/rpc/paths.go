package rpc

// REST endpoint paths for the chain node.
// All paths are consolidated here so a node upgrade touches a single file.

const (
	// Chain head
	statusPath = "/status"

	// Transaction queries
	txSearchPath = "/tx_search"
	txByHashPath = "/txs/%s"

	// Staking queries
	delegationsPath = "/staking/delegators/%s/delegations"
)
