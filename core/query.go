package core

import (
	"math/big"

	"onlsale/native/crowdsale"
	"onlsale/native/token"
)

func readSale[T any](n *Node, fn func(sale *crowdsale.Engine) (T, error)) (T, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.sale == nil {
		var zero T
		return zero, crowdsale.ErrNotDeployed
	}
	return fn(n.sale)
}

func readToken[T any](n *Node, fn func(tok *token.Engine) (T, error)) (T, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.token == nil {
		var zero T
		return zero, crowdsale.ErrNotDeployed
	}
	return fn(n.token)
}

func (n *Node) Status() (*crowdsale.Status, error) {
	return readSale(n, (*crowdsale.Engine).Status)
}

func (n *Node) SaleConfig() (*crowdsale.Config, error) {
	return readSale(n, (*crowdsale.Engine).Config)
}

// QuotePurchase runs the purchase checks without applying the purchase.
func (n *Node) QuotePurchase(from [20]byte, value *big.Int) (*crowdsale.Quote, error) {
	return readSale(n, func(sale *crowdsale.Engine) (*crowdsale.Quote, error) {
		return sale.QuotePurchase(from, value)
	})
}

func (n *Node) GetUsdTokenAmount(cents *big.Int) (*big.Int, error) {
	return readSale(n, func(sale *crowdsale.Engine) (*big.Int, error) {
		return sale.GetUsdTokenAmount(cents)
	})
}

func (n *Node) GetWeiTokenPrice(tokens *big.Int) (*big.Int, error) {
	return readSale(n, func(sale *crowdsale.Engine) (*big.Int, error) {
		return sale.GetWeiTokenPrice(tokens)
	})
}

func (n *Node) GetMinPurchaseWei() (*big.Int, error) {
	return readSale(n, (*crowdsale.Engine).GetMinPurchaseWei)
}

func (n *Node) GetMaxPurchaseWei() (*big.Int, error) {
	return readSale(n, (*crowdsale.Engine).GetMaxPurchaseWei)
}

func (n *Node) UsdRate() (*big.Int, error) { return readSale(n, (*crowdsale.Engine).UsdRate) }

func (n *Node) Rate() (*big.Int, error) { return readSale(n, (*crowdsale.Engine).Rate) }

func (n *Node) Goal() (*big.Int, error) { return readSale(n, (*crowdsale.Engine).Goal) }

func (n *Node) GoalReached() (bool, error) { return readSale(n, (*crowdsale.Engine).GoalReached) }

func (n *Node) WeiRaised() (*big.Int, error) { return readSale(n, (*crowdsale.Engine).WeiRaised) }

func (n *Node) GoalBalance() (*big.Int, error) { return readSale(n, (*crowdsale.Engine).GoalBalance) }

func (n *Node) RaiseBalance() (*big.Int, error) {
	return readSale(n, (*crowdsale.Engine).RaiseBalance)
}

func (n *Node) TotalBalance() (*big.Int, error) {
	return readSale(n, (*crowdsale.Engine).TotalBalance)
}

func (n *Node) RemainingTokens() (*big.Int, error) {
	return readSale(n, (*crowdsale.Engine).RemainingTokens)
}

func (n *Node) IsLocked() (bool, error) { return readSale(n, (*crowdsale.Engine).IsLocked) }

func (n *Node) IsFinalized() (bool, error) { return readSale(n, (*crowdsale.Engine).IsFinalized) }

func (n *Node) Token() ([20]byte, error) { return readSale(n, (*crowdsale.Engine).Token) }

func (n *Node) Wallet() ([20]byte, error) { return readSale(n, (*crowdsale.Engine).Wallet) }

func (n *Node) Buyers() ([][20]byte, error) { return readSale(n, (*crowdsale.Engine).Buyers) }

// BalanceOf returns the tokens held in custody for buyer.
func (n *Node) BalanceOf(buyer [20]byte) (*big.Int, error) {
	return readSale(n, func(sale *crowdsale.Engine) (*big.Int, error) {
		return sale.BalanceOf(buyer)
	})
}

// DepositsOf returns the refundable deposit of buyer.
func (n *Node) DepositsOf(buyer [20]byte) (*big.Int, error) {
	return readSale(n, func(sale *crowdsale.Engine) (*big.Int, error) {
		return sale.DepositsOf(buyer)
	})
}

func (n *Node) TokenMetadata() (*token.Metadata, error) {
	return readToken(n, (*token.Engine).Metadata)
}

func (n *Node) TokenTotalSupply() (*big.Int, error) {
	return readToken(n, (*token.Engine).TotalSupply)
}

// TokenBalanceOf returns the delivered token balance of owner.
func (n *Node) TokenBalanceOf(owner [20]byte) (*big.Int, error) {
	return readToken(n, func(tok *token.Engine) (*big.Int, error) {
		return tok.BalanceOf(owner)
	})
}

func (n *Node) TokenAllowance(owner, spender [20]byte) (*big.Int, error) {
	return readToken(n, func(tok *token.Engine) (*big.Int, error) {
		return tok.Allowance(owner, spender)
	})
}

// AccountBalance returns the native balance of addr.
func (n *Node) AccountBalance(addr [20]byte) (*big.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state.Balance(addr)
}

// Nonce returns the next purchase nonce expected from addr.
func (n *Node) Nonce(addr [20]byte) (uint64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	account, err := n.state.GetAccount(addr[:])
	if err != nil {
		return 0, err
	}
	return account.Nonce, nil
}
