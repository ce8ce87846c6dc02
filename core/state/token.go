package state

import (
	"math/big"

	"onlsale/native/token"
)

type storedTokenMetadata struct {
	Name        string
	Symbol      string
	Decimals    uint8
	TotalSupply *big.Int
	Owner       [20]byte
}

// TokenPutMetadata stores token metadata under the token address.
func (m *Manager) TokenPutMetadata(addr [20]byte, meta *token.Metadata) error {
	return m.KVPut(TokenMetadataKey(addr), &storedTokenMetadata{
		Name:        meta.Name,
		Symbol:      meta.Symbol,
		Decimals:    meta.Decimals,
		TotalSupply: cloneBig(meta.TotalSupply),
		Owner:       meta.Owner,
	})
}

// TokenMetadata loads token metadata.
func (m *Manager) TokenMetadata(addr [20]byte) (*token.Metadata, bool, error) {
	stored := new(storedTokenMetadata)
	ok, err := m.KVGet(TokenMetadataKey(addr), stored)
	if err != nil || !ok {
		return nil, ok, err
	}
	return &token.Metadata{
		Name:        stored.Name,
		Symbol:      stored.Symbol,
		Decimals:    stored.Decimals,
		TotalSupply: cloneBig(stored.TotalSupply),
		Owner:       stored.Owner,
	}, true, nil
}

// TokenBalance returns the token balance of owner.
func (m *Manager) TokenBalance(addr, owner [20]byte) (*big.Int, error) {
	return m.getAmount(TokenBalanceKey(addr, owner))
}

// TokenPutBalance stores the token balance of owner.
func (m *Manager) TokenPutBalance(addr, owner [20]byte, amount *big.Int) error {
	return m.putAmount(TokenBalanceKey(addr, owner), amount)
}

// TokenAllowance returns the allowance owner granted to spender.
func (m *Manager) TokenAllowance(addr, owner, spender [20]byte) (*big.Int, error) {
	return m.getAmount(TokenAllowanceKey(addr, owner, spender))
}

// TokenPutAllowance stores the allowance owner granted to spender.
func (m *Manager) TokenPutAllowance(addr, owner, spender [20]byte, amount *big.Int) error {
	return m.putAmount(TokenAllowanceKey(addr, owner, spender), amount)
}
