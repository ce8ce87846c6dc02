package token

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/holiman/uint256"

	"onlsale/core/events"
)

var errNilState = errors.New("token engine: state not configured")

type engineState interface {
	TokenMetadata(token [20]byte) (*Metadata, bool, error)
	TokenPutMetadata(token [20]byte, meta *Metadata) error
	TokenBalance(token, owner [20]byte) (*big.Int, error)
	TokenPutBalance(token, owner [20]byte, amount *big.Int) error
	TokenAllowance(token, owner, spender [20]byte) (*big.Int, error)
	TokenPutAllowance(token, owner, spender [20]byte, amount *big.Int) error
}

// Engine implements the fungible token ledger deployed at a fixed address.
type Engine struct {
	address [20]byte
	state   engineState
	emitter events.Emitter
}

// NewEngine returns a token engine for the given contract address.
func NewEngine(address [20]byte) *Engine {
	return &Engine{address: address, emitter: events.NoopEmitter{}}
}

// Address returns the token contract address.
func (e *Engine) Address() [20]byte { return e.address }

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

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

func isZeroAddress(addr [20]byte) bool { return addr == ([20]byte{}) }

func validAmount(amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	if _, overflow := uint256.FromBig(amount); overflow {
		return fmt.Errorf("%w: exceeds 256 bits", ErrInvalidAmount)
	}
	return nil
}

// Create records the token metadata and mints the whole supply to the owner.
func (e *Engine) Create(meta *Metadata) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if meta == nil {
		return fmt.Errorf("token: nil metadata")
	}
	if isZeroAddress(meta.Owner) {
		return ErrZeroAddress
	}
	if strings.TrimSpace(meta.Symbol) == "" {
		return fmt.Errorf("token: symbol must not be empty")
	}
	if err := validAmount(meta.TotalSupply); err != nil {
		return err
	}
	if _, ok, err := e.state.TokenMetadata(e.address); err != nil {
		return err
	} else if ok {
		return ErrAlreadyCreated
	}
	stored := meta.Clone()
	stored.Symbol = strings.ToUpper(strings.TrimSpace(stored.Symbol))
	if err := e.state.TokenPutMetadata(e.address, stored); err != nil {
		return err
	}
	if err := e.state.TokenPutBalance(e.address, meta.Owner, cloneBigInt(meta.TotalSupply)); err != nil {
		return err
	}
	e.emit(Transfer{Token: e.address, To: meta.Owner, Amount: cloneBigInt(meta.TotalSupply)})
	return nil
}

// Metadata returns the stored token metadata.
func (e *Engine) Metadata() (*Metadata, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	meta, ok, err := e.state.TokenMetadata(e.address)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotCreated
	}
	return meta.Clone(), nil
}

// TotalSupply returns the minted supply.
func (e *Engine) TotalSupply() (*big.Int, error) {
	meta, err := e.Metadata()
	if err != nil {
		return nil, err
	}
	return cloneBigInt(meta.TotalSupply), nil
}

// BalanceOf returns the token balance of owner.
func (e *Engine) BalanceOf(owner [20]byte) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	balance, err := e.state.TokenBalance(e.address, owner)
	if err != nil {
		return nil, err
	}
	return cloneBigInt(balance), nil
}

// Allowance returns what spender may still move on behalf of owner.
func (e *Engine) Allowance(owner, spender [20]byte) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	allowance, err := e.state.TokenAllowance(e.address, owner, spender)
	if err != nil {
		return nil, err
	}
	return cloneBigInt(allowance), nil
}

// Approve sets the allowance of spender over owner's tokens.
func (e *Engine) Approve(owner, spender [20]byte, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if isZeroAddress(owner) || isZeroAddress(spender) {
		return ErrZeroAddress
	}
	if err := validAmount(amount); err != nil {
		return err
	}
	if err := e.state.TokenPutAllowance(e.address, owner, spender, cloneBigInt(amount)); err != nil {
		return err
	}
	e.emit(Approval{Token: e.address, Owner: owner, Spender: spender, Amount: cloneBigInt(amount)})
	return nil
}

// Transfer moves tokens from the caller to the recipient.
func (e *Engine) Transfer(from, to [20]byte, amount *big.Int) error {
	if err := e.move(from, to, amount); err != nil {
		return err
	}
	e.emit(Transfer{Token: e.address, From: from, To: to, Amount: cloneBigInt(amount)})
	return nil
}

// TransferFrom moves tokens on behalf of from and consumes spender's
// allowance. Only the Transfer event is emitted.
func (e *Engine) TransferFrom(spender, from, to [20]byte, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := validAmount(amount); err != nil {
		return err
	}
	allowance, err := e.state.TokenAllowance(e.address, from, spender)
	if err != nil {
		return err
	}
	allowance = cloneBigInt(allowance)
	if allowance.Cmp(amount) < 0 {
		return ErrInsufficientAllowance
	}
	if err := e.move(from, to, amount); err != nil {
		return err
	}
	if err := e.state.TokenPutAllowance(e.address, from, spender, allowance.Sub(allowance, amount)); err != nil {
		return err
	}
	e.emit(Transfer{Token: e.address, From: from, To: to, Amount: cloneBigInt(amount)})
	return nil
}

func (e *Engine) move(from, to [20]byte, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if isZeroAddress(from) || isZeroAddress(to) {
		return ErrZeroAddress
	}
	if err := validAmount(amount); err != nil {
		return err
	}
	fromBalance, err := e.state.TokenBalance(e.address, from)
	if err != nil {
		return err
	}
	fromBalance = cloneBigInt(fromBalance)
	if fromBalance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	if from == to {
		return nil
	}
	toBalance, err := e.state.TokenBalance(e.address, to)
	if err != nil {
		return err
	}
	toBalance = new(big.Int).Add(cloneBigInt(toBalance), amount)
	if err := e.state.TokenPutBalance(e.address, from, fromBalance.Sub(fromBalance, amount)); err != nil {
		return err
	}
	return e.state.TokenPutBalance(e.address, to, toBalance)
}
