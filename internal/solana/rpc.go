package solana

import "context"

// SupplyClient reads token supply from a Solana RPC node.
type SupplyClient interface {
	// GetTokenSupply returns the current supply of an SPL token mint.
	GetTokenSupply(ctx context.Context, mint string) (*TokenSupply, error)
}

// TokenSupply is the decoded result of getTokenSupply.
type TokenSupply struct {
	Amount   string  // raw integer amount in base units
	Decimals int     // mint decimals
	UIAmount float64 // Amount scaled by Decimals
}
