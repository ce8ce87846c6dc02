package crowdsale

import "math/big"

// splitDeposit fills the goal partition until the amount raised so far
// reaches the goal and sends the rest to the raise partition. Room is measured
// against weiRaised, so a withdraw that empties the partition does not reopen
// it.
func splitDeposit(goal, weiRaised, value *big.Int) (*big.Int, *big.Int) {
	room := new(big.Int).Sub(cloneBigInt(goal), cloneBigInt(weiRaised))
	if room.Sign() < 0 {
		room.SetInt64(0)
	}
	amount := cloneBigInt(value)
	if amount.Cmp(room) <= 0 {
		return amount, big.NewInt(0)
	}
	return room, new(big.Int).Sub(amount, room)
}

// UnlockFunds releases escrow and custody for withdrawal once the goal has
// been reached.
func (e *Engine) UnlockFunds(caller [20]byte) error {
	sale, err := e.loadSale()
	if err != nil {
		return err
	}
	if err := requireOwner(sale, caller); err != nil {
		return err
	}
	if !sale.GoalReached() {
		return ErrGoalNotReached
	}
	if !sale.Locked {
		return ErrAlreadyUnlocked
	}
	sale.Locked = false
	if err := e.storeSale(sale); err != nil {
		return err
	}
	e.emit(FundsUnlocked{
		Sale:         e.sale,
		GoalBalance:  cloneBigInt(sale.Totals.GoalBalance),
		RaiseBalance: cloneBigInt(sale.Totals.RaiseBalance),
	})
	e.emit(TokensUnlocked{Sale: e.sale, Pending: cloneBigInt(sale.Totals.TokensPending)})
	return nil
}

func canWithdraw(sale *Sale) bool {
	if !sale.Locked {
		return true
	}
	return sale.Config.WithdrawPolicy == WithdrawAfterGoal && sale.GoalReached()
}

// Withdraw sweeps both escrow partitions to the current wallet.
func (e *Engine) Withdraw(caller [20]byte) (*big.Int, error) {
	sale, err := e.loadSale()
	if err != nil {
		return nil, err
	}
	if err := requireOwner(sale, caller); err != nil {
		return nil, err
	}
	if !canWithdraw(sale) {
		return nil, ErrNotUnlocked
	}
	amount := sale.Totals.TotalBalance()
	if amount.Sign() == 0 {
		return nil, ErrNothingToWithdraw
	}
	withdrawn, err := checkedAdd(sale.Totals.WeiWithdrawn, amount)
	if err != nil {
		return nil, err
	}
	wallet := sale.Config.Wallet
	if err := e.transferNative(e.sale, wallet, amount); err != nil {
		return nil, err
	}
	sale.Totals.GoalBalance = big.NewInt(0)
	sale.Totals.RaiseBalance = big.NewInt(0)
	sale.Totals.WeiWithdrawn = withdrawn
	if err := e.storeSale(sale); err != nil {
		return nil, err
	}
	e.emit(FundsWithdrawn{Sale: e.sale, Wallet: wallet, Amount: cloneBigInt(amount)})
	return amount, nil
}

// ChangeBeneficiary rotates the wallet that receives withdrawn funds.
func (e *Engine) ChangeBeneficiary(caller, wallet [20]byte) error {
	sale, err := e.loadSale()
	if err != nil {
		return err
	}
	if err := requireOwner(sale, caller); err != nil {
		return err
	}
	if isZeroAddress(wallet) || wallet == sale.Config.Wallet {
		return ErrInvalidBeneficiary
	}
	previous := sale.Config.Wallet
	sale.Config.Wallet = wallet
	if err := e.storeSale(sale); err != nil {
		return err
	}
	e.emit(BeneficiaryChanged{Sale: e.sale, Previous: previous, Wallet: wallet})
	return nil
}

// GoalReached reports whether weiRaised has met the goal.
func (e *Engine) GoalReached() (bool, error) {
	sale, err := e.loadSale()
	if err != nil {
		return false, err
	}
	return sale.GoalReached(), nil
}

// Goal returns the softcap in native units.
func (e *Engine) Goal() (*big.Int, error) {
	sale, err := e.loadSale()
	if err != nil {
		return nil, err
	}
	return cloneBigInt(sale.Config.Goal), nil
}

// WeiRaised returns the grand total ever paid in.
func (e *Engine) WeiRaised() (*big.Int, error) {
	sale, err := e.loadSale()
	if err != nil {
		return nil, err
	}
	return cloneBigInt(sale.Totals.WeiRaised), nil
}

// GoalBalance returns the escrowed amount counting toward the goal.
func (e *Engine) GoalBalance() (*big.Int, error) {
	sale, err := e.loadSale()
	if err != nil {
		return nil, err
	}
	return cloneBigInt(sale.Totals.GoalBalance), nil
}

// RaiseBalance returns the escrowed amount collected past the goal.
func (e *Engine) RaiseBalance() (*big.Int, error) {
	sale, err := e.loadSale()
	if err != nil {
		return nil, err
	}
	return cloneBigInt(sale.Totals.RaiseBalance), nil
}

// TotalBalance returns goalBalance + raiseBalance.
func (e *Engine) TotalBalance() (*big.Int, error) {
	sale, err := e.loadSale()
	if err != nil {
		return nil, err
	}
	return sale.Totals.TotalBalance(), nil
}

// DepositsOf returns the cumulative payment of a buyer still held for refund.
func (e *Engine) DepositsOf(buyer [20]byte) (*big.Int, error) {
	if _, err := e.loadSale(); err != nil {
		return nil, err
	}
	deposit, err := e.state.CrowdsaleDeposit(e.sale, buyer)
	if err != nil {
		return nil, err
	}
	return cloneBigInt(deposit), nil
}

// IsLocked reports whether escrow and custody are still locked.
func (e *Engine) IsLocked() (bool, error) {
	sale, err := e.loadSale()
	if err != nil {
		return false, err
	}
	return sale.Locked, nil
}

// Wallet returns the current beneficiary wallet.
func (e *Engine) Wallet() ([20]byte, error) {
	sale, err := e.loadSale()
	if err != nil {
		return [20]byte{}, err
	}
	return sale.Config.Wallet, nil
}
