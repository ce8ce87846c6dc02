package crowdsale

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"onlsale/core/events"
	"onlsale/core/types"
)

var (
	errNilState = errors.New("crowdsale engine: state not configured")
	errNilToken = errors.New("crowdsale engine: token ledger not configured")
)

type engineState interface {
	CrowdsaleGet(sale [20]byte) (*Sale, bool, error)
	CrowdsalePut(*Sale) error
	CrowdsaleDeposit(sale, buyer [20]byte) (*big.Int, error)
	CrowdsalePutDeposit(sale, buyer [20]byte, amount *big.Int) error
	CrowdsaleCustody(sale, buyer [20]byte) (*big.Int, error)
	CrowdsalePutCustody(sale, buyer [20]byte, amount *big.Int) error
	CrowdsaleRecordBuyer(sale, buyer [20]byte) error
	CrowdsaleBuyers(sale [20]byte) ([][20]byte, error)
	GetAccount(addr []byte) (*types.Account, error)
	PutAccount(addr []byte, account *types.Account) error
}

// TokenLedger is the part of the token contract the sale depends on. Tokens
// never leave the token owner's account until delivery; the sale spends the
// owner's allowance.
type TokenLedger interface {
	BalanceOf(owner [20]byte) (*big.Int, error)
	Allowance(owner, spender [20]byte) (*big.Int, error)
	TransferFrom(spender, from, to [20]byte, amount *big.Int) error
}

// Engine settles a single sale deployed at a fixed address. Every check of a
// mutator runs before its first write. Writes are staged on the state backend,
// and callers discard the staged writes and buffered events when an error
// comes back.
type Engine struct {
	sale    [20]byte
	state   engineState
	token   TokenLedger
	emitter events.Emitter
	nowFn   func() int64
}

// NewEngine creates an engine for the sale at the given address with a no-op
// emitter.
func NewEngine(sale [20]byte) *Engine {
	return &Engine{
		sale:    sale,
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// Address returns the ledger address of the sale.
func (e *Engine) Address() [20]byte { return e.sale }

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetTokenLedger configures the token contract the sale delivers from.
func (e *Engine) SetTokenLedger(token TokenLedger) { e.token = token }

// SetNowFunc overrides the time source used by the engine. Primarily intended
// for tests to provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetEmitter configures the event emitter used by the engine. Passing nil resets
// the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) emit(evt events.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(evt)
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

// Deploy records the sale parameters. Funds start locked and nothing has been
// raised.
func (e *Engine) Deploy(cfg *Config) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.Address != e.sale {
		return fmt.Errorf("%w: config address does not match engine", ErrInvalidConfig)
	}
	if _, ok, err := e.state.CrowdsaleGet(e.sale); err != nil {
		return err
	} else if ok {
		return ErrAlreadyDeployed
	}
	return e.state.CrowdsalePut(&Sale{
		Config: cfg.Clone(),
		Totals: newTotals(),
		Locked: true,
	})
}

func (e *Engine) loadSale() (*Sale, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	sale, ok, err := e.state.CrowdsaleGet(e.sale)
	if err != nil {
		return nil, err
	}
	if !ok || sale == nil || sale.Config == nil {
		return nil, ErrNotDeployed
	}
	if sale.Totals == nil {
		sale.Totals = newTotals()
	}
	return sale, nil
}

func (e *Engine) storeSale(sale *Sale) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	return e.state.CrowdsalePut(sale)
}

// requireOwner is the single capability check guarding every privileged
// operation.
func requireOwner(sale *Sale, caller [20]byte) error {
	if isZeroAddress(caller) || caller != sale.Config.SalesOwner {
		return ErrUnauthorized
	}
	return nil
}

func (e *Engine) transferNative(from, to [20]byte, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	amt := cloneBigInt(amount)
	if amt.Sign() == 0 {
		return nil
	}
	if amt.Sign() < 0 {
		return fmt.Errorf("crowdsale: negative transfer amount")
	}
	fromAcc, err := e.state.GetAccount(from[:])
	if err != nil {
		return err
	}
	toAcc, err := e.state.GetAccount(to[:])
	if err != nil {
		return err
	}
	fromAcc = fromAcc.EnsureDefaults()
	toAcc = toAcc.EnsureDefaults()
	if fromAcc.Balance.Cmp(amt) < 0 {
		return ErrInsufficientFunds
	}
	credited, err := checkedAdd(toAcc.Balance, amt)
	if err != nil {
		return err
	}
	fromAcc.Balance = new(big.Int).Sub(fromAcc.Balance, amt)
	toAcc.Balance = credited
	if err := e.state.PutAccount(from[:], fromAcc); err != nil {
		return err
	}
	return e.state.PutAccount(to[:], toAcc)
}

// UpdateUsdRate replaces the native units per cent and re-derives the token
// price. The two rate events are emitted in that order.
func (e *Engine) UpdateUsdRate(caller [20]byte, usdRate *big.Int) error {
	sale, err := e.loadSale()
	if err != nil {
		return err
	}
	if err := requireOwner(sale, caller); err != nil {
		return err
	}
	if usdRate == nil || usdRate.Sign() <= 0 {
		return ErrInvalidRate
	}
	price, err := TokenPrice(usdRate, sale.Config.UnitPriceCents)
	if err != nil {
		return err
	}
	sale.Config.UsdRate = cloneBigInt(usdRate)
	if err := e.storeSale(sale); err != nil {
		return err
	}
	e.emit(UsdRateUpdated{Sale: e.sale, UsdRate: cloneBigInt(usdRate)})
	e.emit(TokenRateUpdated{Sale: e.sale, Rate: price})
	return nil
}

// Finalize closes the sale for good. It is allowed once the closing time has
// passed, or earlier when the goal is reached and early finalization is on.
func (e *Engine) Finalize(caller [20]byte) error {
	sale, err := e.loadSale()
	if err != nil {
		return err
	}
	if err := requireOwner(sale, caller); err != nil {
		return err
	}
	if sale.Finalized {
		return ErrAlreadyFinalized
	}
	now := e.now()
	goalReached := sale.GoalReached()
	if now < sale.Config.ClosingTime && !(sale.Config.EarlyFinalize && goalReached) {
		return ErrSaleNotClosed
	}
	sale.Finalized = true
	sale.FinalizedAt = now
	if err := e.storeSale(sale); err != nil {
		return err
	}
	e.emit(Finalized{Sale: e.sale, GoalReached: goalReached, WeiRaised: cloneBigInt(sale.Totals.WeiRaised)})
	return nil
}

// ClaimRefund returns the buyer's full deposit after a sale finalized without
// reaching its goal. Anyone may trigger it; the payout always goes to the buyer.
func (e *Engine) ClaimRefund(buyer [20]byte) (*big.Int, error) {
	sale, err := e.loadSale()
	if err != nil {
		return nil, err
	}
	if isZeroAddress(buyer) {
		return nil, ErrInvalidBeneficiary
	}
	if !sale.Finalized {
		return nil, ErrNotFinalized
	}
	if sale.GoalReached() {
		return nil, ErrGoalReached
	}
	deposit, err := e.state.CrowdsaleDeposit(e.sale, buyer)
	if err != nil {
		return nil, err
	}
	if deposit == nil || deposit.Sign() == 0 {
		return nil, ErrNoDeposit
	}
	custody, err := e.state.CrowdsaleCustody(e.sale, buyer)
	if err != nil {
		return nil, err
	}
	totals := sale.Totals.Clone()
	fromGoal := new(big.Int).Set(deposit)
	if fromGoal.Cmp(totals.GoalBalance) > 0 {
		fromGoal.Set(totals.GoalBalance)
	}
	fromRaise := new(big.Int).Sub(deposit, fromGoal)
	if totals.GoalBalance, err = checkedSub(totals.GoalBalance, fromGoal); err != nil {
		return nil, err
	}
	if totals.RaiseBalance, err = checkedSub(totals.RaiseBalance, fromRaise); err != nil {
		return nil, err
	}
	if totals.WeiRefunded, err = checkedAdd(totals.WeiRefunded, deposit); err != nil {
		return nil, err
	}
	if totals.TokensPending, err = checkedSub(totals.TokensPending, cloneBigInt(custody)); err != nil {
		return nil, err
	}

	if err := e.transferNative(e.sale, buyer, deposit); err != nil {
		return nil, err
	}
	if err := e.state.CrowdsalePutDeposit(e.sale, buyer, big.NewInt(0)); err != nil {
		return nil, err
	}
	if err := e.state.CrowdsalePutCustody(e.sale, buyer, big.NewInt(0)); err != nil {
		return nil, err
	}
	sale.Totals = totals
	if err := e.storeSale(sale); err != nil {
		return nil, err
	}
	e.emit(Refunded{Sale: e.sale, Payee: buyer, Amount: cloneBigInt(deposit)})
	return cloneBigInt(deposit), nil
}
