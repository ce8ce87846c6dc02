package crowdsale

import (
	"fmt"
	"math/big"
)

// Quote describes an accepted purchase before it is applied.
type Quote struct {
	Tokens *big.Int
	Cents  *big.Int
	Price  *big.Int
}

// validatePurchase runs every purchase check without touching state.
func (e *Engine) validatePurchase(sale *Sale, buyer [20]byte, value *big.Int) (*Quote, error) {
	cfg := sale.Config
	if sale.Finalized {
		return nil, ErrSaleFinalized
	}
	now := e.now()
	if now < cfg.OpeningTime || now >= cfg.ClosingTime {
		return nil, ErrOutsideSaleWindow
	}
	if isZeroAddress(buyer) {
		return nil, ErrInvalidBeneficiary
	}
	if value == nil || value.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	if !fitsUint256(value) {
		return nil, ErrOverflow
	}
	price, err := TokenPrice(cfg.UsdRate, cfg.UnitPriceCents)
	if err != nil {
		return nil, err
	}
	tokens, exact := TokensForValue(value, price)
	if !exact || tokens.Sign() == 0 {
		return nil, fmt.Errorf("%w: %s is not a multiple of token price %s", ErrInvalidAmount, value, price)
	}
	cents := CentsForValue(value, cfg.UsdRate)
	if cents.Cmp(new(big.Int).SetUint64(cfg.MinPurchaseCents)) < 0 {
		return nil, fmt.Errorf("%w: %s cents < %d cents", ErrBelowMinimum, cents, cfg.MinPurchaseCents)
	}

	if e.token == nil {
		return nil, errNilToken
	}
	delivered, err := e.token.BalanceOf(buyer)
	if err != nil {
		return nil, err
	}
	custody, err := e.state.CrowdsaleCustody(e.sale, buyer)
	if err != nil {
		return nil, err
	}
	holdings, err := checkedAdd(cloneBigInt(delivered), cloneBigInt(custody))
	if err != nil {
		return nil, err
	}
	if holdings, err = checkedAdd(holdings, tokens); err != nil {
		return nil, err
	}
	holdingCents, err := checkedMul(holdings, new(big.Int).SetUint64(cfg.UnitPriceCents))
	if err != nil {
		return nil, err
	}
	if holdingCents.Cmp(new(big.Int).SetUint64(cfg.MaxPurchaseCents)) > 0 {
		return nil, fmt.Errorf("%w: position of %s cents > %d cents", ErrAboveMaximum, holdingCents, cfg.MaxPurchaseCents)
	}

	remaining, err := e.token.Allowance(cfg.TokenOwner, e.sale)
	if err != nil {
		return nil, err
	}
	committed, err := checkedAdd(sale.Totals.TokensPending, tokens)
	if err != nil {
		return nil, err
	}
	if committed.Cmp(cloneBigInt(remaining)) > 0 {
		return nil, fmt.Errorf("%w: %s requested, %s available", ErrTokensExhausted, tokens, new(big.Int).Sub(cloneBigInt(remaining), cloneBigInt(sale.Totals.TokensPending)))
	}
	return &Quote{Tokens: tokens, Cents: cents, Price: price}, nil
}

// Buy accepts a payment from the purchaser, credits the purchased tokens to
// custody and splits the funds across the escrow partitions.
func (e *Engine) Buy(purchaser [20]byte, value *big.Int) (*big.Int, error) {
	sale, err := e.loadSale()
	if err != nil {
		return nil, err
	}
	quote, err := e.validatePurchase(sale, purchaser, value)
	if err != nil {
		return nil, err
	}

	totals := sale.Totals.Clone()
	goalPart, raisePart := splitDeposit(sale.Config.Goal, totals.WeiRaised, value)
	if totals.GoalBalance, err = checkedAdd(totals.GoalBalance, goalPart); err != nil {
		return nil, err
	}
	if totals.RaiseBalance, err = checkedAdd(totals.RaiseBalance, raisePart); err != nil {
		return nil, err
	}
	if totals.WeiRaised, err = checkedAdd(totals.WeiRaised, value); err != nil {
		return nil, err
	}
	if totals.TokensSold, err = checkedAdd(totals.TokensSold, quote.Tokens); err != nil {
		return nil, err
	}
	if totals.TokensPending, err = checkedAdd(totals.TokensPending, quote.Tokens); err != nil {
		return nil, err
	}
	deposit, err := e.state.CrowdsaleDeposit(e.sale, purchaser)
	if err != nil {
		return nil, err
	}
	if deposit, err = checkedAdd(cloneBigInt(deposit), value); err != nil {
		return nil, err
	}
	custody, err := e.state.CrowdsaleCustody(e.sale, purchaser)
	if err != nil {
		return nil, err
	}
	if custody, err = checkedAdd(cloneBigInt(custody), quote.Tokens); err != nil {
		return nil, err
	}

	if err := e.transferNative(purchaser, e.sale, value); err != nil {
		return nil, err
	}
	if err := e.state.CrowdsalePutDeposit(e.sale, purchaser, deposit); err != nil {
		return nil, err
	}
	if err := e.state.CrowdsalePutCustody(e.sale, purchaser, custody); err != nil {
		return nil, err
	}
	if err := e.state.CrowdsaleRecordBuyer(e.sale, purchaser); err != nil {
		return nil, err
	}
	sale.Totals = totals
	if err := e.storeSale(sale); err != nil {
		return nil, err
	}
	e.emit(TokensPurchased{
		Sale:        e.sale,
		Purchaser:   purchaser,
		Beneficiary: purchaser,
		Value:       cloneBigInt(value),
		Amount:      cloneBigInt(quote.Tokens),
	})
	return cloneBigInt(quote.Tokens), nil
}

// QuotePurchase reports what a payment would buy without applying it.
func (e *Engine) QuotePurchase(purchaser [20]byte, value *big.Int) (*Quote, error) {
	sale, err := e.loadSale()
	if err != nil {
		return nil, err
	}
	return e.validatePurchase(sale, purchaser, value)
}
