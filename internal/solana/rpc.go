// Package solana provides the RPC and WebSocket clients and public-key
// helpers for talking to a Solana node.
package solana

import "context"

// RPCClient defines the Solana RPC HTTP interface used by the service.
type RPCClient interface {
	// GetAccountInfo retrieves account info by public key.
	// Returns nil when the account does not exist.
	GetAccountInfo(ctx context.Context, pubkey string) (*AccountInfo, error)

	// GetSlot retrieves the current slot. Used as the liveness probe.
	GetSlot(ctx context.Context) (int64, error)
}
