package stub

import (
	"context"
	"sync/atomic"

	"repo-sentinel/internal/solana"
)

// RPCClient implements solana.RPCClient for testing.
type RPCClient struct {
	Accounts map[string]*solana.AccountInfo
	Slot     int64

	// SlotErr makes GetSlot fail, simulating a dead endpoint.
	SlotErr error
	// AccountErr makes GetAccountInfo fail, simulating a transport failure.
	AccountErr error

	// Call counters for probe-order assertions.
	SlotCalls    atomic.Int32
	AccountCalls atomic.Int32
}

// NewRPCClient creates a new stub RPC client.
func NewRPCClient() *RPCClient {
	return &RPCClient{
		Accounts: make(map[string]*solana.AccountInfo),
		Slot:     1,
	}
}

// GetAccountInfo retrieves account info from the stub store.
// Returns nil for unknown addresses, matching the real client.
func (c *RPCClient) GetAccountInfo(_ context.Context, pubkey string) (*solana.AccountInfo, error) {
	c.AccountCalls.Add(1)
	if c.AccountErr != nil {
		return nil, c.AccountErr
	}
	return c.Accounts[pubkey], nil
}

// GetSlot returns the configured slot.
func (c *RPCClient) GetSlot(_ context.Context) (int64, error) {
	c.SlotCalls.Add(1)
	if c.SlotErr != nil {
		return 0, c.SlotErr
	}
	return c.Slot, nil
}

// AddAccount adds an account to the stub store.
func (c *RPCClient) AddAccount(pubkey string, info *solana.AccountInfo) {
	c.Accounts[pubkey] = info
}
