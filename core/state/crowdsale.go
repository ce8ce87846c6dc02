package state

import (
	"fmt"
	"math"
	"math/big"

	"onlsale/native/crowdsale"
)

type storedSale struct {
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
	OpeningTime      uint64
	ClosingTime      uint64
	WithdrawPolicy   uint8
	EarlyFinalize    bool
	WeiRaised        *big.Int
	GoalBalance      *big.Int
	RaiseBalance     *big.Int
	WeiWithdrawn     *big.Int
	WeiRefunded      *big.Int
	TokensSold       *big.Int
	TokensPending    *big.Int
	TokensDelivered  *big.Int
	Locked           bool
	Finalized        bool
	FinalizedAt      uint64
}

func nonNegative(v int64) uint64 {
	if v < 0 {
		return 0
	}
	return uint64(v)
}

func toSigned(v uint64) (int64, error) {
	if v > math.MaxInt64 {
		return 0, fmt.Errorf("crowdsale: timestamp %d out of range", v)
	}
	return int64(v), nil
}

func newStoredSale(sale *crowdsale.Sale) *storedSale {
	cfg := sale.Config
	totals := sale.Totals.Clone()
	return &storedSale{
		Address:          cfg.Address,
		SalesOwner:       cfg.SalesOwner,
		TokenOwner:       cfg.TokenOwner,
		Wallet:           cfg.Wallet,
		Token:            cfg.Token,
		UnitPriceCents:   cfg.UnitPriceCents,
		UsdRate:          cloneBig(cfg.UsdRate),
		MinPurchaseCents: cfg.MinPurchaseCents,
		MaxPurchaseCents: cfg.MaxPurchaseCents,
		Goal:             cloneBig(cfg.Goal),
		OpeningTime:      nonNegative(cfg.OpeningTime),
		ClosingTime:      nonNegative(cfg.ClosingTime),
		WithdrawPolicy:   uint8(cfg.WithdrawPolicy),
		EarlyFinalize:    cfg.EarlyFinalize,
		WeiRaised:        totals.WeiRaised,
		GoalBalance:      totals.GoalBalance,
		RaiseBalance:     totals.RaiseBalance,
		WeiWithdrawn:     totals.WeiWithdrawn,
		WeiRefunded:      totals.WeiRefunded,
		TokensSold:       totals.TokensSold,
		TokensPending:    totals.TokensPending,
		TokensDelivered:  totals.TokensDelivered,
		Locked:           sale.Locked,
		Finalized:        sale.Finalized,
		FinalizedAt:      nonNegative(sale.FinalizedAt),
	}
}

func (s *storedSale) toSale() (*crowdsale.Sale, error) {
	opening, err := toSigned(s.OpeningTime)
	if err != nil {
		return nil, err
	}
	closing, err := toSigned(s.ClosingTime)
	if err != nil {
		return nil, err
	}
	finalizedAt, err := toSigned(s.FinalizedAt)
	if err != nil {
		return nil, err
	}
	return &crowdsale.Sale{
		Config: &crowdsale.Config{
			Address:          s.Address,
			SalesOwner:       s.SalesOwner,
			TokenOwner:       s.TokenOwner,
			Wallet:           s.Wallet,
			Token:            s.Token,
			UnitPriceCents:   s.UnitPriceCents,
			UsdRate:          cloneBig(s.UsdRate),
			MinPurchaseCents: s.MinPurchaseCents,
			MaxPurchaseCents: s.MaxPurchaseCents,
			Goal:             cloneBig(s.Goal),
			OpeningTime:      opening,
			ClosingTime:      closing,
			WithdrawPolicy:   crowdsale.WithdrawPolicy(s.WithdrawPolicy),
			EarlyFinalize:    s.EarlyFinalize,
		},
		Totals: (&crowdsale.Totals{
			WeiRaised:       s.WeiRaised,
			GoalBalance:     s.GoalBalance,
			RaiseBalance:    s.RaiseBalance,
			WeiWithdrawn:    s.WeiWithdrawn,
			WeiRefunded:     s.WeiRefunded,
			TokensSold:      s.TokensSold,
			TokensPending:   s.TokensPending,
			TokensDelivered: s.TokensDelivered,
		}).Clone(),
		Locked:      s.Locked,
		Finalized:   s.Finalized,
		FinalizedAt: finalizedAt,
	}, nil
}

func cloneBig(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

// CrowdsalePut stores the sale record under its address.
func (m *Manager) CrowdsalePut(sale *crowdsale.Sale) error {
	if sale == nil || sale.Config == nil {
		return fmt.Errorf("crowdsale: nil sale")
	}
	return m.KVPut(CrowdsaleSaleKey(sale.Config.Address), newStoredSale(sale))
}

// CrowdsaleGet loads the sale stored at addr.
func (m *Manager) CrowdsaleGet(addr [20]byte) (*crowdsale.Sale, bool, error) {
	stored := new(storedSale)
	ok, err := m.KVGet(CrowdsaleSaleKey(addr), stored)
	if err != nil || !ok {
		return nil, ok, err
	}
	sale, err := stored.toSale()
	if err != nil {
		return nil, false, err
	}
	return sale, true, nil
}

func (m *Manager) getAmount(key []byte) (*big.Int, error) {
	amount := new(big.Int)
	ok, err := m.KVGet(key, amount)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return amount, nil
}

func (m *Manager) putAmount(key []byte, amount *big.Int) error {
	amount = cloneBig(amount)
	if amount.Sign() < 0 {
		return fmt.Errorf("negative amount not allowed")
	}
	return m.KVPut(key, amount)
}

// CrowdsaleDeposit returns the refundable deposit of buyer.
func (m *Manager) CrowdsaleDeposit(sale, buyer [20]byte) (*big.Int, error) {
	return m.getAmount(CrowdsaleDepositKey(sale, buyer))
}

// CrowdsalePutDeposit stores the refundable deposit of buyer.
func (m *Manager) CrowdsalePutDeposit(sale, buyer [20]byte, amount *big.Int) error {
	return m.putAmount(CrowdsaleDepositKey(sale, buyer), amount)
}

// CrowdsaleCustody returns the undelivered tokens of buyer.
func (m *Manager) CrowdsaleCustody(sale, buyer [20]byte) (*big.Int, error) {
	return m.getAmount(CrowdsaleCustodyKey(sale, buyer))
}

// CrowdsalePutCustody stores the undelivered tokens of buyer.
func (m *Manager) CrowdsalePutCustody(sale, buyer [20]byte, amount *big.Int) error {
	return m.putAmount(CrowdsaleCustodyKey(sale, buyer), amount)
}

// CrowdsaleRecordBuyer appends buyer to the sale's buyer index once.
func (m *Manager) CrowdsaleRecordBuyer(sale, buyer [20]byte) error {
	var buyers [][20]byte
	if err := m.KVGetList(CrowdsaleBuyersKey(sale), &buyers); err != nil {
		return err
	}
	for _, existing := range buyers {
		if existing == buyer {
			return nil
		}
	}
	buyers = append(buyers, buyer)
	return m.KVPut(CrowdsaleBuyersKey(sale), buyers)
}

// CrowdsaleBuyers returns the buyers of a sale in first-purchase order.
func (m *Manager) CrowdsaleBuyers(sale [20]byte) ([][20]byte, error) {
	var buyers [][20]byte
	if err := m.KVGetList(CrowdsaleBuyersKey(sale), &buyers); err != nil {
		return nil, err
	}
	return buyers, nil
}
