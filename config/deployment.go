package config

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"onlsale/crypto"
	"onlsale/native/crowdsale"
)

// Allocation is a resolved genesis balance.
type Allocation struct {
	Address [20]byte
	Balance *big.Int
}

// Plan is the fully resolved deployment: addresses decoded, USD terms
// converted at the configured rate, token share computed.
type Plan struct {
	Network         string
	Deployer        [20]byte
	SalesOwner      [20]byte
	TokenOwner      [20]byte
	Wallet          [20]byte
	Sale            [20]byte
	Token           [20]byte
	TokenName       string
	TokenSymbol     string
	TokenDecimals   uint8
	TotalSupply     *big.Int
	SaleShare       *big.Int
	UnitPriceCents  uint64
	UsdRate         *big.Int
	MinPurchase     uint64
	MaxPurchase     uint64
	Goal            *big.Int
	OpeningTime     int64
	ClosingDuration time.Duration
	WithdrawPolicy  crowdsale.WithdrawPolicy
	EarlyFinalize   bool
	Alloc           []Allocation
}

// SaleConfig builds the sale parameters for a deployment happening at now.
// An unset opening time opens the sale at deployment.
func (p *Plan) SaleConfig(now int64) *crowdsale.Config {
	opening := p.OpeningTime
	if opening == 0 {
		opening = now
	}
	return &crowdsale.Config{
		Address:          p.Sale,
		SalesOwner:       p.SalesOwner,
		TokenOwner:       p.TokenOwner,
		Wallet:           p.Wallet,
		Token:            p.Token,
		UnitPriceCents:   p.UnitPriceCents,
		UsdRate:          new(big.Int).Set(p.UsdRate),
		MinPurchaseCents: p.MinPurchase,
		MaxPurchaseCents: p.MaxPurchase,
		Goal:             new(big.Int).Set(p.Goal),
		OpeningTime:      opening,
		ClosingTime:      opening + int64(p.ClosingDuration/time.Second),
		WithdrawPolicy:   p.WithdrawPolicy,
		EarlyFinalize:    p.EarlyFinalize,
	}
}

// Plan resolves the configured network and sale terms.
func (c *Config) Plan() (*Plan, error) {
	accounts, ok := c.Networks[c.NetworkName]
	if !ok {
		return nil, fmt.Errorf("unknown network %q", c.NetworkName)
	}
	plan := &Plan{Network: c.NetworkName}

	var err error
	if plan.Deployer, err = parseAccount("MigrateAccount", accounts.MigrateAccount); err != nil {
		return nil, err
	}
	if plan.SalesOwner, err = parseAccount("SalesOwner", accounts.SalesOwner); err != nil {
		return nil, err
	}
	if plan.TokenOwner, err = parseAccount("TokenOwner", accounts.TokenOwner); err != nil {
		return nil, err
	}
	if plan.Wallet, err = parseAccount("FundsWallet", accounts.FundsWallet); err != nil {
		return nil, err
	}
	plan.Token = crypto.DeriveAddress(plan.Deployer, 0)
	if strings.TrimSpace(accounts.TokenAddress) != "" {
		if plan.Token, err = parseAccount("TokenAddress", accounts.TokenAddress); err != nil {
			return nil, err
		}
	}
	plan.Sale = crypto.DeriveAddress(plan.Deployer, 1)
	if strings.TrimSpace(accounts.SaleAddress) != "" {
		if plan.Sale, err = parseAccount("SaleAddress", accounts.SaleAddress); err != nil {
			return nil, err
		}
	}
	if plan.Sale == plan.Token {
		return nil, fmt.Errorf("network %s: sale and token addresses collide", c.NetworkName)
	}

	if err := c.resolveToken(plan); err != nil {
		return nil, err
	}
	if err := c.resolveSale(plan); err != nil {
		return nil, err
	}
	for i, alloc := range c.Genesis.Alloc {
		addr, err := parseAccount(fmt.Sprintf("genesis.alloc[%d].Address", i), alloc.Address)
		if err != nil {
			return nil, err
		}
		balance, err := parseNative(alloc.Balance)
		if err != nil {
			return nil, fmt.Errorf("genesis.alloc[%d].Balance: %w", i, err)
		}
		plan.Alloc = append(plan.Alloc, Allocation{Address: addr, Balance: balance})
	}
	return plan, nil
}

func (c *Config) resolveToken(plan *Plan) error {
	plan.TokenName = strings.TrimSpace(c.Token.Name)
	plan.TokenSymbol = strings.TrimSpace(c.Token.Symbol)
	plan.TokenDecimals = c.Token.Decimals
	if plan.TokenSymbol == "" {
		return fmt.Errorf("token: Symbol is required")
	}
	supply, err := parseDecimal("token.TotalSupply", c.Token.TotalSupply)
	if err != nil {
		return err
	}
	if !supply.IsInteger() || supply.Sign() <= 0 {
		return fmt.Errorf("token: TotalSupply must be a positive integer")
	}
	plan.TotalSupply = supply.BigInt()

	share, err := parseDecimal("sale.SharePercent", c.Sale.SharePercent)
	if err != nil {
		return err
	}
	if share.Sign() <= 0 || share.GreaterThan(decimal.NewFromInt(100)) {
		return fmt.Errorf("sale: SharePercent must be in (0, 100]")
	}
	tokens := supply.Mul(share).Div(decimal.NewFromInt(100))
	if !tokens.IsInteger() {
		return fmt.Errorf("sale: SharePercent %s of %s is not a whole number of tokens", share, supply)
	}
	plan.SaleShare = tokens.BigInt()
	return nil
}

func (c *Config) resolveSale(plan *Plan) error {
	price, err := parseDecimal("sale.UsdPrice", c.Sale.UsdPrice)
	if err != nil {
		return err
	}
	if plan.UnitPriceCents, err = crowdsale.CentsFromUSD(price); err != nil {
		return fmt.Errorf("sale.UsdPrice: %w", err)
	}
	if plan.UsdRate, err = c.usdRate(); err != nil {
		return err
	}
	minBuy, err := parseDecimal("sale.MinPurchaseUSD", c.Sale.MinPurchaseUSD)
	if err != nil {
		return err
	}
	if plan.MinPurchase, err = crowdsale.CentsFromUSD(minBuy); err != nil {
		return fmt.Errorf("sale.MinPurchaseUSD: %w", err)
	}
	maxBuy, err := parseDecimal("sale.MaxPurchaseUSD", c.Sale.MaxPurchaseUSD)
	if err != nil {
		return err
	}
	if plan.MaxPurchase, err = crowdsale.CentsFromUSD(maxBuy); err != nil {
		return fmt.Errorf("sale.MaxPurchaseUSD: %w", err)
	}
	goal, err := parseDecimal("sale.MinGoalUSD", c.Sale.MinGoalUSD)
	if err != nil {
		return err
	}
	goalCents, err := crowdsale.CentsFromUSD(goal)
	if err != nil {
		return fmt.Errorf("sale.MinGoalUSD: %w", err)
	}
	if plan.Goal, err = crowdsale.CentsToWei(goalCents, plan.UsdRate); err != nil {
		return fmt.Errorf("sale.MinGoalUSD: %w", err)
	}

	plan.OpeningTime = c.Sale.OpeningTime
	if plan.OpeningTime < 0 {
		return fmt.Errorf("sale: OpeningTime must not be negative")
	}
	duration, err := time.ParseDuration(strings.TrimSpace(c.Sale.ClosingDuration))
	if err != nil {
		return fmt.Errorf("sale.ClosingDuration: %w", err)
	}
	if duration < time.Second {
		return fmt.Errorf("sale: ClosingDuration must be at least one second")
	}
	plan.ClosingDuration = duration
	if plan.WithdrawPolicy, err = crowdsale.ParseWithdrawPolicy(c.Sale.WithdrawPolicy); err != nil {
		return err
	}
	plan.EarlyFinalize = c.Sale.EarlyFinalize == nil || *c.Sale.EarlyFinalize

	if plan.MinPurchase > plan.MaxPurchase {
		return fmt.Errorf("sale: MinPurchaseUSD exceeds MaxPurchaseUSD")
	}
	return nil
}

func (c *Config) usdRate() (*big.Int, error) {
	switch {
	case strings.TrimSpace(c.Sale.SpotUSD) != "":
		spot, err := parseDecimal("sale.SpotUSD", c.Sale.SpotUSD)
		if err != nil {
			return nil, err
		}
		return crowdsale.UsdRateFromSpot(spot)
	case strings.TrimSpace(c.Sale.UsdEth) != "":
		quote, err := parseDecimal("sale.UsdEth", c.Sale.UsdEth)
		if err != nil {
			return nil, err
		}
		return crowdsale.UsdRateFromQuote(quote)
	default:
		return nil, fmt.Errorf("sale: one of SpotUSD or UsdEth is required")
	}
}

func parseAccount(field, value string) ([20]byte, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return [20]byte{}, fmt.Errorf("%s is required", field)
	}
	addr, err := crypto.ParseAddress(trimmed)
	if err != nil {
		return [20]byte{}, fmt.Errorf("%s: %w", field, err)
	}
	if addr == ([20]byte{}) {
		return [20]byte{}, fmt.Errorf("%s must not be the zero address", field)
	}
	return addr, nil
}

func parseDecimal(field, value string) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return decimal.Zero, fmt.Errorf("%s is required", field)
	}
	d, err := decimal.NewFromString(trimmed)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: %w", field, err)
	}
	return d, nil
}

// parseNative converts a decimal amount of native units into base units.
func parseNative(value string) (*big.Int, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return nil, err
	}
	if d.Sign() < 0 {
		return nil, fmt.Errorf("negative balance %s", value)
	}
	base := d.Shift(18)
	if !base.IsInteger() {
		return nil, fmt.Errorf("%s has more than 18 decimals", value)
	}
	return base.BigInt(), nil
}
