package crowdsale

import (
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"onlsale/core/types"
	"onlsale/crypto"
)

const (
	EventTypeTokensPurchased    = "crowdsale.tokens_purchased"
	EventTypeUsdRateUpdated     = "crowdsale.usd_rate_updated"
	EventTypeTokenRateUpdated   = "crowdsale.token_rate_updated"
	EventTypeFundsUnlocked      = "crowdsale.funds_unlocked"
	EventTypeTokensUnlocked     = "crowdsale.tokens_unlocked"
	EventTypeFundsWithdrawn     = "crowdsale.funds_withdrawn"
	EventTypeBeneficiaryChanged = "crowdsale.beneficiary_changed"
	EventTypeTokensDelivered    = "crowdsale.tokens_delivered"
	EventTypeFinalized          = "crowdsale.finalized"
	EventTypeRefunded           = "crowdsale.refunded"
)

func formatAmount(v *big.Int) string { return cloneBigInt(v).String() }

func newSaleEvent(eventType string, sale [20]byte, attrs map[string]string) *types.Event {
	attrs["sale"] = crypto.FormatAddress(sale)
	return &types.Event{Type: eventType, Attributes: attrs}
}

// TokensPurchased is emitted once per accepted payment.
type TokensPurchased struct {
	Sale        [20]byte
	Purchaser   [20]byte
	Beneficiary [20]byte
	Value       *big.Int
	Amount      *big.Int
}

func (TokensPurchased) EventType() string { return EventTypeTokensPurchased }

func (e TokensPurchased) Event() *types.Event {
	return newSaleEvent(EventTypeTokensPurchased, e.Sale, map[string]string{
		"purchaser":   crypto.FormatAddress(e.Purchaser),
		"beneficiary": crypto.FormatAddress(e.Beneficiary),
		"value":       formatAmount(e.Value),
		"amount":      formatAmount(e.Amount),
	})
}

func (e TokensPurchased) LogAddress() [20]byte { return e.Sale }

func (e TokensPurchased) LogEvent() (abi.Event, []interface{}) {
	return saleABI.Events["TokensPurchased"], []interface{}{
		common.Address(e.Purchaser), common.Address(e.Beneficiary), cloneBigInt(e.Value), cloneBigInt(e.Amount),
	}
}

// UsdRateUpdated carries the new native units per cent.
type UsdRateUpdated struct {
	Sale    [20]byte
	UsdRate *big.Int
}

func (UsdRateUpdated) EventType() string { return EventTypeUsdRateUpdated }

func (e UsdRateUpdated) Event() *types.Event {
	return newSaleEvent(EventTypeUsdRateUpdated, e.Sale, map[string]string{"usdRate": formatAmount(e.UsdRate)})
}

func (e UsdRateUpdated) LogAddress() [20]byte { return e.Sale }

func (e UsdRateUpdated) LogEvent() (abi.Event, []interface{}) {
	return saleABI.Events["UsdRateUpdated"], []interface{}{cloneBigInt(e.UsdRate)}
}

// TokenRateUpdated carries the derived native price of one token unit.
type TokenRateUpdated struct {
	Sale [20]byte
	Rate *big.Int
}

func (TokenRateUpdated) EventType() string { return EventTypeTokenRateUpdated }

func (e TokenRateUpdated) Event() *types.Event {
	return newSaleEvent(EventTypeTokenRateUpdated, e.Sale, map[string]string{"rate": formatAmount(e.Rate)})
}

func (e TokenRateUpdated) LogAddress() [20]byte { return e.Sale }

func (e TokenRateUpdated) LogEvent() (abi.Event, []interface{}) {
	return saleABI.Events["TokenRateUpdated"], []interface{}{cloneBigInt(e.Rate)}
}

// FundsUnlocked records the escrow partitions at the moment of unlock.
type FundsUnlocked struct {
	Sale         [20]byte
	GoalBalance  *big.Int
	RaiseBalance *big.Int
}

func (FundsUnlocked) EventType() string { return EventTypeFundsUnlocked }

func (e FundsUnlocked) Event() *types.Event {
	return newSaleEvent(EventTypeFundsUnlocked, e.Sale, map[string]string{
		"goalBalance":  formatAmount(e.GoalBalance),
		"raiseBalance": formatAmount(e.RaiseBalance),
	})
}

func (e FundsUnlocked) LogAddress() [20]byte { return e.Sale }

func (e FundsUnlocked) LogEvent() (abi.Event, []interface{}) {
	return saleABI.Events["FundsUnlocked"], []interface{}{cloneBigInt(e.GoalBalance), cloneBigInt(e.RaiseBalance)}
}

// TokensUnlocked records the undelivered token units released for delivery.
type TokensUnlocked struct {
	Sale    [20]byte
	Pending *big.Int
}

func (TokensUnlocked) EventType() string { return EventTypeTokensUnlocked }

func (e TokensUnlocked) Event() *types.Event {
	return newSaleEvent(EventTypeTokensUnlocked, e.Sale, map[string]string{"pending": formatAmount(e.Pending)})
}

func (e TokensUnlocked) LogAddress() [20]byte { return e.Sale }

func (e TokensUnlocked) LogEvent() (abi.Event, []interface{}) {
	return saleABI.Events["TokensUnlocked"], []interface{}{cloneBigInt(e.Pending)}
}

// FundsWithdrawn is emitted when escrow is swept to the wallet.
type FundsWithdrawn struct {
	Sale   [20]byte
	Wallet [20]byte
	Amount *big.Int
}

func (FundsWithdrawn) EventType() string { return EventTypeFundsWithdrawn }

func (e FundsWithdrawn) Event() *types.Event {
	return newSaleEvent(EventTypeFundsWithdrawn, e.Sale, map[string]string{
		"wallet": crypto.FormatAddress(e.Wallet),
		"amount": formatAmount(e.Amount),
	})
}

func (e FundsWithdrawn) LogAddress() [20]byte { return e.Sale }

func (e FundsWithdrawn) LogEvent() (abi.Event, []interface{}) {
	return saleABI.Events["Withdrawn"], []interface{}{common.Address(e.Wallet), cloneBigInt(e.Amount)}
}

// BeneficiaryChanged records a wallet rotation.
type BeneficiaryChanged struct {
	Sale     [20]byte
	Previous [20]byte
	Wallet   [20]byte
}

func (BeneficiaryChanged) EventType() string { return EventTypeBeneficiaryChanged }

func (e BeneficiaryChanged) Event() *types.Event {
	return newSaleEvent(EventTypeBeneficiaryChanged, e.Sale, map[string]string{
		"previous": crypto.FormatAddress(e.Previous),
		"wallet":   crypto.FormatAddress(e.Wallet),
	})
}

func (e BeneficiaryChanged) LogAddress() [20]byte { return e.Sale }

func (e BeneficiaryChanged) LogEvent() (abi.Event, []interface{}) {
	return saleABI.Events["BeneficiaryChanged"], []interface{}{common.Address(e.Previous), common.Address(e.Wallet)}
}

// TokensDelivered follows the token ledger transfer that settles custody.
type TokensDelivered struct {
	Sale        [20]byte
	Beneficiary [20]byte
	Amount      *big.Int
}

func (TokensDelivered) EventType() string { return EventTypeTokensDelivered }

func (e TokensDelivered) Event() *types.Event {
	return newSaleEvent(EventTypeTokensDelivered, e.Sale, map[string]string{
		"beneficiary": crypto.FormatAddress(e.Beneficiary),
		"amount":      formatAmount(e.Amount),
	})
}

func (e TokensDelivered) LogAddress() [20]byte { return e.Sale }

func (e TokensDelivered) LogEvent() (abi.Event, []interface{}) {
	return saleABI.Events["TokensDelivered"], []interface{}{common.Address(e.Beneficiary), cloneBigInt(e.Amount)}
}

// Finalized is emitted exactly once per sale.
type Finalized struct {
	Sale        [20]byte
	GoalReached bool
	WeiRaised   *big.Int
}

func (Finalized) EventType() string { return EventTypeFinalized }

func (e Finalized) Event() *types.Event {
	return newSaleEvent(EventTypeFinalized, e.Sale, map[string]string{
		"goalReached": strconv.FormatBool(e.GoalReached),
		"weiRaised":   formatAmount(e.WeiRaised),
	})
}

func (e Finalized) LogAddress() [20]byte { return e.Sale }

func (e Finalized) LogEvent() (abi.Event, []interface{}) {
	return saleABI.Events["CrowdsaleFinalized"], []interface{}{e.GoalReached, cloneBigInt(e.WeiRaised)}
}

// Refunded is emitted when a buyer's deposit is returned.
type Refunded struct {
	Sale   [20]byte
	Payee  [20]byte
	Amount *big.Int
}

func (Refunded) EventType() string { return EventTypeRefunded }

func (e Refunded) Event() *types.Event {
	return newSaleEvent(EventTypeRefunded, e.Sale, map[string]string{
		"payee":  crypto.FormatAddress(e.Payee),
		"amount": formatAmount(e.Amount),
	})
}

func (e Refunded) LogAddress() [20]byte { return e.Sale }

func (e Refunded) LogEvent() (abi.Event, []interface{}) {
	return saleABI.Events["Refunded"], []interface{}{common.Address(e.Payee), cloneBigInt(e.Amount)}
}
