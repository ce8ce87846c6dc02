package crowdsale

import "math/big"

// WithdrawTokens delivers a buyer's purchased tokens from the token owner's
// account. The token ledger emits its Transfer first, then TokensDelivered.
func (e *Engine) WithdrawTokens(caller, buyer [20]byte) (*big.Int, error) {
	sale, err := e.loadSale()
	if err != nil {
		return nil, err
	}
	if err := requireOwner(sale, caller); err != nil {
		return nil, err
	}
	if sale.Locked {
		return nil, ErrNotUnlocked
	}
	if isZeroAddress(buyer) {
		return nil, ErrInvalidBeneficiary
	}
	if e.token == nil {
		return nil, errNilToken
	}
	amount, err := e.state.CrowdsaleCustody(e.sale, buyer)
	if err != nil {
		return nil, err
	}
	amount = cloneBigInt(amount)
	if amount.Sign() == 0 {
		return nil, ErrNothingToWithdraw
	}
	totals := sale.Totals.Clone()
	if totals.TokensPending, err = checkedSub(totals.TokensPending, amount); err != nil {
		return nil, err
	}
	if totals.TokensDelivered, err = checkedAdd(totals.TokensDelivered, amount); err != nil {
		return nil, err
	}

	if err := e.token.TransferFrom(e.sale, sale.Config.TokenOwner, buyer, amount); err != nil {
		return nil, err
	}
	if err := e.state.CrowdsalePutCustody(e.sale, buyer, big.NewInt(0)); err != nil {
		return nil, err
	}
	sale.Totals = totals
	if err := e.storeSale(sale); err != nil {
		return nil, err
	}
	e.emit(TokensDelivered{Sale: e.sale, Beneficiary: buyer, Amount: cloneBigInt(amount)})
	return amount, nil
}

// BalanceOf returns the purchased but undelivered tokens of a buyer.
func (e *Engine) BalanceOf(buyer [20]byte) (*big.Int, error) {
	if _, err := e.loadSale(); err != nil {
		return nil, err
	}
	custody, err := e.state.CrowdsaleCustody(e.sale, buyer)
	if err != nil {
		return nil, err
	}
	return cloneBigInt(custody), nil
}

// RemainingTokens returns the token owner's allowance to the sale.
func (e *Engine) RemainingTokens() (*big.Int, error) {
	sale, err := e.loadSale()
	if err != nil {
		return nil, err
	}
	if e.token == nil {
		return nil, errNilToken
	}
	remaining, err := e.token.Allowance(sale.Config.TokenOwner, e.sale)
	if err != nil {
		return nil, err
	}
	return cloneBigInt(remaining), nil
}

// Token returns the address of the token being sold.
func (e *Engine) Token() ([20]byte, error) {
	sale, err := e.loadSale()
	if err != nil {
		return [20]byte{}, err
	}
	return sale.Config.Token, nil
}

// Buyers lists every address that has purchased, in first-purchase order.
func (e *Engine) Buyers() ([][20]byte, error) {
	if _, err := e.loadSale(); err != nil {
		return nil, err
	}
	return e.state.CrowdsaleBuyers(e.sale)
}
