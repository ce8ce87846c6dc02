package token

import (
	"errors"
	"math/big"
)

var (
	ErrZeroAddress           = errors.New("token: zero address")
	ErrInvalidAmount         = errors.New("token: invalid amount")
	ErrInsufficientBalance   = errors.New("token: transfer amount exceeds balance")
	ErrInsufficientAllowance = errors.New("token: transfer amount exceeds allowance")
	ErrNotCreated            = errors.New("token: not created")
	ErrAlreadyCreated        = errors.New("token: already created")
)

// Metadata describes a fungible token deployed on the ledger.
type Metadata struct {
	Name        string
	Symbol      string
	Decimals    uint8
	TotalSupply *big.Int
	Owner       [20]byte
}

// Clone returns a deep copy of the metadata.
func (m *Metadata) Clone() *Metadata {
	if m == nil {
		return nil
	}
	clone := *m
	clone.TotalSupply = cloneBigInt(m.TotalSupply)
	return &clone
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
