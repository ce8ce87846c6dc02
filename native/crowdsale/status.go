package crowdsale

import "math/big"

// Phase is the lifecycle position of a sale.
type Phase string

const (
	PhasePending   Phase = "pending"
	PhaseOpen      Phase = "open"
	PhaseClosed    Phase = "closed"
	PhaseFinalized Phase = "finalized"
)

// Outcome is decided at finalization.
type Outcome string

const (
	OutcomeUndecided  Outcome = ""
	OutcomeDisbursing Outcome = "disbursing"
	OutcomeRefunding  Outcome = "refunding"
)

// Status is a point-in-time snapshot of the sale.
type Status struct {
	Phase       Phase
	Outcome     Outcome
	Config      *Config
	Totals      *Totals
	Rate        *big.Int
	Locked      bool
	Finalized   bool
	FinalizedAt int64
	GoalReached bool
	Remaining   *big.Int
}

func phaseAt(sale *Sale, now int64) Phase {
	switch {
	case sale.Finalized:
		return PhaseFinalized
	case now < sale.Config.OpeningTime:
		return PhasePending
	case now >= sale.Config.ClosingTime:
		return PhaseClosed
	default:
		return PhaseOpen
	}
}

// Status returns the current phase, totals and derived figures.
func (e *Engine) Status() (*Status, error) {
	sale, err := e.loadSale()
	if err != nil {
		return nil, err
	}
	price, err := TokenPrice(sale.Config.UsdRate, sale.Config.UnitPriceCents)
	if err != nil {
		return nil, err
	}
	remaining, err := e.RemainingTokens()
	if err != nil {
		return nil, err
	}
	status := &Status{
		Phase:       phaseAt(sale, e.now()),
		Config:      sale.Config.Clone(),
		Totals:      sale.Totals.Clone(),
		Rate:        price,
		Locked:      sale.Locked,
		Finalized:   sale.Finalized,
		FinalizedAt: sale.FinalizedAt,
		GoalReached: sale.GoalReached(),
		Remaining:   remaining,
	}
	if sale.Finalized {
		status.Outcome = OutcomeRefunding
		if status.GoalReached {
			status.Outcome = OutcomeDisbursing
		}
	}
	return status, nil
}

// Config returns a copy of the stored sale parameters.
func (e *Engine) Config() (*Config, error) {
	sale, err := e.loadSale()
	if err != nil {
		return nil, err
	}
	return sale.Config.Clone(), nil
}

// IsFinalized reports whether finalize has run.
func (e *Engine) IsFinalized() (bool, error) {
	sale, err := e.loadSale()
	if err != nil {
		return false, err
	}
	return sale.Finalized, nil
}

// UsdRate returns the native units per cent.
func (e *Engine) UsdRate() (*big.Int, error) {
	sale, err := e.loadSale()
	if err != nil {
		return nil, err
	}
	return cloneBigInt(sale.Config.UsdRate), nil
}

// Rate returns the native price of one token unit.
func (e *Engine) Rate() (*big.Int, error) {
	sale, err := e.loadSale()
	if err != nil {
		return nil, err
	}
	return TokenPrice(sale.Config.UsdRate, sale.Config.UnitPriceCents)
}

// GetUsdTokenAmount returns the whole token units a fiat amount in cents buys.
func (e *Engine) GetUsdTokenAmount(cents *big.Int) (*big.Int, error) {
	sale, err := e.loadSale()
	if err != nil {
		return nil, err
	}
	return UsdTokenAmount(cents, sale.Config.UnitPriceCents), nil
}

// GetWeiTokenPrice returns the native cost of the given token units.
func (e *Engine) GetWeiTokenPrice(tokens *big.Int) (*big.Int, error) {
	price, err := e.Rate()
	if err != nil {
		return nil, err
	}
	return WeiTokenPrice(tokens, price)
}

// GetMinPurchaseWei returns the minimum purchase in native units.
func (e *Engine) GetMinPurchaseWei() (*big.Int, error) {
	sale, err := e.loadSale()
	if err != nil {
		return nil, err
	}
	return CentsToWei(sale.Config.MinPurchaseCents, sale.Config.UsdRate)
}

// GetMaxPurchaseWei returns the maximum position in native units.
func (e *Engine) GetMaxPurchaseWei() (*big.Int, error) {
	sale, err := e.loadSale()
	if err != nil {
		return nil, err
	}
	return CentsToWei(sale.Config.MaxPurchaseCents, sale.Config.UsdRate)
}
