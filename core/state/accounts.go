package state

import (
	"fmt"
	"math/big"

	"onlsale/core/types"
)

func toAddress(addr []byte) ([20]byte, error) {
	var out [20]byte
	if len(addr) != len(out) {
		return out, fmt.Errorf("address must be %d bytes, got %d", len(out), len(addr))
	}
	copy(out[:], addr)
	return out, nil
}

// GetAccount returns the native account stored under addr. Unknown accounts
// come back empty rather than as an error.
func (m *Manager) GetAccount(addr []byte) (*types.Account, error) {
	key, err := toAddress(addr)
	if err != nil {
		return nil, err
	}
	account := new(types.Account)
	ok, err := m.KVGet(AccountKey(key), account)
	if err != nil {
		return nil, err
	}
	if !ok {
		return (*types.Account)(nil).EnsureDefaults(), nil
	}
	return account.EnsureDefaults(), nil
}

// PutAccount stores the native account under addr.
func (m *Manager) PutAccount(addr []byte, account *types.Account) error {
	key, err := toAddress(addr)
	if err != nil {
		return err
	}
	account = account.EnsureDefaults()
	if account.Balance.Sign() < 0 {
		return fmt.Errorf("negative balance not allowed")
	}
	return m.KVPut(AccountKey(key), account)
}

// Balance returns the native balance of addr.
func (m *Manager) Balance(addr [20]byte) (*big.Int, error) {
	account, err := m.GetAccount(addr[:])
	if err != nil {
		return nil, err
	}
	return new(big.Int).Set(account.Balance), nil
}

// SetBalance overwrites the native balance of addr. Genesis allocation uses it.
func (m *Manager) SetBalance(addr [20]byte, amount *big.Int) error {
	account, err := m.GetAccount(addr[:])
	if err != nil {
		return err
	}
	if amount == nil {
		amount = big.NewInt(0)
	}
	account.Balance = new(big.Int).Set(amount)
	return m.PutAccount(addr[:], account)
}
