package crowdsale

import (
	"fmt"
	"math/big"
	"strings"
)

// WithdrawPolicy selects when the owner may sweep escrowed funds to the wallet.
type WithdrawPolicy uint8

const (
	// WithdrawAfterUnlock requires an explicit unlockFunds call before withdraw.
	WithdrawAfterUnlock WithdrawPolicy = iota
	// WithdrawAfterGoal additionally allows withdraw while locked once the goal
	// has been reached.
	WithdrawAfterGoal
)

func (p WithdrawPolicy) String() string {
	switch p {
	case WithdrawAfterUnlock:
		return "unlock"
	case WithdrawAfterGoal:
		return "goal"
	default:
		return "unknown"
	}
}

// ParseWithdrawPolicy maps the configuration spelling onto a policy. The empty
// string selects the strict default.
func ParseWithdrawPolicy(value string) (WithdrawPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "unlock":
		return WithdrawAfterUnlock, nil
	case "goal":
		return WithdrawAfterGoal, nil
	default:
		return 0, fmt.Errorf("%w: unknown withdraw policy %q", ErrInvalidConfig, value)
	}
}

// Config captures the immutable deployment parameters of a sale together with
// the two owner-mutable fields, Wallet and UsdRate.
type Config struct {
	Address          [20]byte
	SalesOwner       [20]byte
	TokenOwner       [20]byte
	Wallet           [20]byte
	Token            [20]byte
	UnitPriceCents   uint64
	UsdRate          *big.Int
	MinPurchaseCents uint64
	MaxPurchaseCents uint64
	Goal             *big.Int
	OpeningTime      int64
	ClosingTime      int64
	WithdrawPolicy   WithdrawPolicy
	EarlyFinalize    bool
}

// Clone returns a deep copy of the config.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	clone := *c
	clone.UsdRate = cloneBigInt(c.UsdRate)
	clone.Goal = cloneBigInt(c.Goal)
	return &clone
}

// Validate checks the deployment parameters. Every derived quantity must be
// representable, so the token price is computed here once.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("%w: nil config", ErrInvalidConfig)
	}
	switch {
	case isZeroAddress(c.Address):
		return fmt.Errorf("%w: sale address required", ErrInvalidConfig)
	case isZeroAddress(c.SalesOwner):
		return fmt.Errorf("%w: sales owner required", ErrInvalidConfig)
	case isZeroAddress(c.TokenOwner):
		return fmt.Errorf("%w: token owner required", ErrInvalidConfig)
	case isZeroAddress(c.Wallet):
		return fmt.Errorf("%w: wallet required", ErrInvalidConfig)
	case isZeroAddress(c.Token):
		return fmt.Errorf("%w: token address required", ErrInvalidConfig)
	}
	if c.UnitPriceCents == 0 {
		return fmt.Errorf("%w: unit price must be positive", ErrInvalidConfig)
	}
	if c.UsdRate == nil || c.UsdRate.Sign() <= 0 {
		return fmt.Errorf("%w: usd rate must be positive", ErrInvalidConfig)
	}
	if _, err := TokenPrice(c.UsdRate, c.UnitPriceCents); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.MaxPurchaseCents == 0 {
		return fmt.Errorf("%w: max purchase must be positive", ErrInvalidConfig)
	}
	if c.MinPurchaseCents > c.MaxPurchaseCents {
		return fmt.Errorf("%w: min purchase exceeds max purchase", ErrInvalidConfig)
	}
	if c.Goal == nil || c.Goal.Sign() <= 0 {
		return fmt.Errorf("%w: goal must be positive", ErrInvalidConfig)
	}
	if !fitsUint256(c.Goal) {
		return fmt.Errorf("%w: goal exceeds 256 bits", ErrInvalidConfig)
	}
	if c.OpeningTime < 0 || c.ClosingTime <= c.OpeningTime {
		return fmt.Errorf("%w: closing time must follow opening time", ErrInvalidConfig)
	}
	switch c.WithdrawPolicy {
	case WithdrawAfterUnlock, WithdrawAfterGoal:
	default:
		return fmt.Errorf("%w: unknown withdraw policy %d", ErrInvalidConfig, c.WithdrawPolicy)
	}
	return nil
}

// Totals tracks every amount that has entered or left the sale.
type Totals struct {
	WeiRaised       *big.Int
	GoalBalance     *big.Int
	RaiseBalance    *big.Int
	WeiWithdrawn    *big.Int
	WeiRefunded     *big.Int
	TokensSold      *big.Int
	TokensPending   *big.Int
	TokensDelivered *big.Int
}

func newTotals() *Totals {
	return &Totals{
		WeiRaised:       big.NewInt(0),
		GoalBalance:     big.NewInt(0),
		RaiseBalance:    big.NewInt(0),
		WeiWithdrawn:    big.NewInt(0),
		WeiRefunded:     big.NewInt(0),
		TokensSold:      big.NewInt(0),
		TokensPending:   big.NewInt(0),
		TokensDelivered: big.NewInt(0),
	}
}

// Clone returns a deep copy of the totals with nil amounts replaced by zero.
func (t *Totals) Clone() *Totals {
	if t == nil {
		return newTotals()
	}
	return &Totals{
		WeiRaised:       cloneBigInt(t.WeiRaised),
		GoalBalance:     cloneBigInt(t.GoalBalance),
		RaiseBalance:    cloneBigInt(t.RaiseBalance),
		WeiWithdrawn:    cloneBigInt(t.WeiWithdrawn),
		WeiRefunded:     cloneBigInt(t.WeiRefunded),
		TokensSold:      cloneBigInt(t.TokensSold),
		TokensPending:   cloneBigInt(t.TokensPending),
		TokensDelivered: cloneBigInt(t.TokensDelivered),
	}
}

// TotalBalance is the amount currently held in escrow.
func (t *Totals) TotalBalance() *big.Int {
	return new(big.Int).Add(cloneBigInt(t.GoalBalance), cloneBigInt(t.RaiseBalance))
}

// Balanced reports whether every unit raised is accounted for by escrow,
// withdrawals or refunds.
func (t *Totals) Balanced() bool {
	sum := t.TotalBalance()
	sum.Add(sum, cloneBigInt(t.WeiWithdrawn))
	sum.Add(sum, cloneBigInt(t.WeiRefunded))
	return sum.Cmp(cloneBigInt(t.WeiRaised)) == 0
}

// Sale is the persisted record of a deployed sale.
type Sale struct {
	Config      *Config
	Totals      *Totals
	Locked      bool
	Finalized   bool
	FinalizedAt int64
}

// Clone returns a deep copy of the sale record.
func (s *Sale) Clone() *Sale {
	if s == nil {
		return nil
	}
	return &Sale{
		Config:      s.Config.Clone(),
		Totals:      s.Totals.Clone(),
		Locked:      s.Locked,
		Finalized:   s.Finalized,
		FinalizedAt: s.FinalizedAt,
	}
}

// GoalReached reports whether the softcap has been met.
func (s *Sale) GoalReached() bool {
	if s == nil || s.Config == nil || s.Totals == nil {
		return false
	}
	return cloneBigInt(s.Totals.WeiRaised).Cmp(cloneBigInt(s.Config.Goal)) >= 0
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

func isZeroAddress(addr [20]byte) bool {
	return addr == ([20]byte{})
}
