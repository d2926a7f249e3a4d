package rpc

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
)

// Reader is the read-only surface the engine consumes. The concrete
// HTTPClient implements it; tests substitute fakes.
type Reader interface {
	Head(ctx context.Context) (uint64, error)
	TxHashesByHeight(ctx context.Context, height uint64) ([]string, error)
	TxByHash(ctx context.Context, hash string) (*Tx, error)
	DelegationsByAddress(ctx context.Context, address string, height uint64) ([]Delegation, error)
}

// Head returns the latest block height reported by the node.
func (c *HTTPClient) Head(ctx context.Context) (uint64, error) {
	var resp statusResponse
	if err := c.getJSON(ctx, statusPath, &resp); err != nil {
		return 0, err
	}
	h, err := strconv.ParseUint(resp.Result.SyncInfo.LatestBlockHeight, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse head height %q: %w", resp.Result.SyncInfo.LatestBlockHeight, err)
	}
	return h, nil
}

// TxHashesByHeight returns the hashes of all transactions committed at the
// given height, in the node's order.
func (c *HTTPClient) TxHashesByHeight(ctx context.Context, height uint64) ([]string, error) {
	q := url.Values{}
	q.Set("query", fmt.Sprintf("%q", fmt.Sprintf("tx.height=%d", height)))
	var resp txSearchResponse
	if err := c.getJSON(ctx, txSearchPath+"?"+q.Encode(), &resp); err != nil {
		return nil, err
	}
	hashes := make([]string, 0, len(resp.Result.Txs))
	for _, tx := range resp.Result.Txs {
		hashes = append(hashes, tx.Hash)
	}
	return hashes, nil
}

// TxByHash returns the fully decoded transaction for a hash.
func (c *HTTPClient) TxByHash(ctx context.Context, hash string) (*Tx, error) {
	var tx Tx
	if err := c.getJSON(ctx, fmt.Sprintf(txByHashPath, hash), &tx); err != nil {
		return nil, err
	}
	return &tx, nil
}

// DelegationsByAddress returns the delegations held by an address as of the
// given height. A zero height queries current state.
func (c *HTTPClient) DelegationsByAddress(ctx context.Context, address string, height uint64) ([]Delegation, error) {
	path := fmt.Sprintf(delegationsPath, address)
	if height > 0 {
		q := url.Values{}
		q.Set("height", strconv.FormatUint(height, 10))
		path += "?" + q.Encode()
	}
	var resp delegationsResponse
	if err := c.getJSON(ctx, path, &resp); err != nil {
		return nil, err
	}
	return resp.Result, nil
}
