package modules

import (
	"context"
	"encoding/json"
	"math/big"

	"onlsale/core"
	"onlsale/core/types"
	"onlsale/native/crowdsale"
)

// SaleModule exposes the crowdsale over JSON-RPC.
type SaleModule struct {
	node *core.Node
}

// NewSaleModule constructs the crowdsale RPC module.
func NewSaleModule(node *core.Node) *SaleModule {
	return &SaleModule{node: node}
}

type buyParams struct {
	Sale        string `json:"sale"`
	From        string `json:"from"`
	Beneficiary string `json:"beneficiary,omitempty"`
	Value       string `json:"value"`
	Nonce       uint64 `json:"nonce"`
	Signature   string `json:"signature"`
}

type quoteParams struct {
	From  string `json:"from"`
	Value string `json:"value"`
}

type callerParams struct {
	Caller string `json:"caller"`
}

type updateRateParams struct {
	Caller string `json:"caller"`
	Rate   string `json:"rate"`
}

type changeWalletParams struct {
	Caller string `json:"caller"`
	Wallet string `json:"wallet"`
}

type buyerParams struct {
	Caller string `json:"caller"`
	Buyer  string `json:"buyer"`
}

type addressParams struct {
	Address string `json:"address"`
}

type centsParams struct {
	Cents string `json:"cents"`
}

type tokensParams struct {
	Tokens string `json:"tokens"`
}

type listEventsParams struct {
	After int64 `json:"after,omitempty"`
	Limit int   `json:"limit,omitempty"`
}

// SaleInfoResult mirrors the sale parameters.
type SaleInfoResult struct {
	Address          string `json:"address"`
	SalesOwner       string `json:"salesOwner"`
	TokenOwner       string `json:"tokenOwner"`
	Wallet           string `json:"wallet"`
	Token            string `json:"token"`
	UnitPriceCents   uint64 `json:"unitPriceCents"`
	UsdRate          string `json:"usdRate"`
	Rate             string `json:"rate"`
	MinPurchaseCents uint64 `json:"minPurchaseCents"`
	MaxPurchaseCents uint64 `json:"maxPurchaseCents"`
	Goal             string `json:"goal"`
	OpeningTime      int64  `json:"openingTime"`
	ClosingTime      int64  `json:"closingTime"`
	WithdrawPolicy   string `json:"withdrawPolicy"`
	EarlyFinalize    bool   `json:"earlyFinalize"`
}

// SaleStatusResult reports the lifecycle position and running totals.
type SaleStatusResult struct {
	Phase           string `json:"phase"`
	Outcome         string `json:"outcome,omitempty"`
	Locked          bool   `json:"locked"`
	Finalized       bool   `json:"finalized"`
	FinalizedAt     int64  `json:"finalizedAt,omitempty"`
	GoalReached     bool   `json:"goalReached"`
	WeiRaised       string `json:"weiRaised"`
	GoalBalance     string `json:"goalBalance"`
	RaiseBalance    string `json:"raiseBalance"`
	WeiWithdrawn    string `json:"weiWithdrawn"`
	WeiRefunded     string `json:"weiRefunded"`
	TokensSold      string `json:"tokensSold"`
	TokensPending   string `json:"tokensPending"`
	TokensDelivered string `json:"tokensDelivered"`
	RemainingTokens string `json:"remainingTokens"`
}

// QuoteResult describes what a payment would buy.
type QuoteResult struct {
	Tokens string `json:"tokens"`
	Cents  string `json:"cents"`
	Price  string `json:"price"`
}

// Buy submits a purchase signed by the paying account.
func (m *SaleModule) Buy(raw json.RawMessage) (interface{}, *ModuleError) {
	var params buyParams
	if modErr := decodeParams(raw, &params); modErr != nil {
		return nil, modErr
	}
	sale, modErr := parseAddressParam("sale", params.Sale)
	if modErr != nil {
		return nil, modErr
	}
	from, modErr := parseAddressParam("from", params.From)
	if modErr != nil {
		return nil, modErr
	}
	beneficiary, modErr := parseOptionalAddress("beneficiary", params.Beneficiary)
	if modErr != nil {
		return nil, modErr
	}
	value, modErr := parseAmountParam("value", params.Value)
	if modErr != nil {
		return nil, modErr
	}
	signature, modErr := parseSignatureParam("signature", params.Signature)
	if modErr != nil {
		return nil, modErr
	}
	receipt, err := m.node.Buy(&types.Purchase{
		Sale:        sale,
		From:        from,
		Beneficiary: beneficiary,
		Value:       value,
		Nonce:       params.Nonce,
		Signature:   signature,
	})
	if err != nil {
		return nil, FromError(err)
	}
	return receipt, nil
}

func (m *SaleModule) Quote(raw json.RawMessage) (interface{}, *ModuleError) {
	var params quoteParams
	if modErr := decodeParams(raw, &params); modErr != nil {
		return nil, modErr
	}
	from, modErr := parseAddressParam("from", params.From)
	if modErr != nil {
		return nil, modErr
	}
	value, modErr := parseAmountParam("value", params.Value)
	if modErr != nil {
		return nil, modErr
	}
	quote, err := m.node.QuotePurchase(from, value)
	if err != nil {
		return nil, FromError(err)
	}
	return QuoteResult{Tokens: formatAmount(quote.Tokens), Cents: formatAmount(quote.Cents), Price: formatAmount(quote.Price)}, nil
}

func (m *SaleModule) UpdateUsdRate(raw json.RawMessage) (interface{}, *ModuleError) {
	var params updateRateParams
	if modErr := decodeParams(raw, &params); modErr != nil {
		return nil, modErr
	}
	caller, modErr := parseAddressParam("caller", params.Caller)
	if modErr != nil {
		return nil, modErr
	}
	rate, modErr := parseAmountParam("rate", params.Rate)
	if modErr != nil {
		return nil, modErr
	}
	receipt, err := m.node.UpdateUsdRate(caller, rate)
	if err != nil {
		return nil, FromError(err)
	}
	return receipt, nil
}

func (m *SaleModule) callerOp(raw json.RawMessage, op func(caller [20]byte) (*core.Receipt, error)) (interface{}, *ModuleError) {
	var params callerParams
	if modErr := decodeParams(raw, &params); modErr != nil {
		return nil, modErr
	}
	caller, modErr := parseAddressParam("caller", params.Caller)
	if modErr != nil {
		return nil, modErr
	}
	receipt, err := op(caller)
	if err != nil {
		return nil, FromError(err)
	}
	return receipt, nil
}

func (m *SaleModule) UnlockFunds(raw json.RawMessage) (interface{}, *ModuleError) {
	return m.callerOp(raw, m.node.UnlockFunds)
}

func (m *SaleModule) Withdraw(raw json.RawMessage) (interface{}, *ModuleError) {
	return m.callerOp(raw, m.node.Withdraw)
}

func (m *SaleModule) Finalize(raw json.RawMessage) (interface{}, *ModuleError) {
	return m.callerOp(raw, m.node.Finalize)
}

func (m *SaleModule) ChangeBeneficiary(raw json.RawMessage) (interface{}, *ModuleError) {
	var params changeWalletParams
	if modErr := decodeParams(raw, &params); modErr != nil {
		return nil, modErr
	}
	caller, modErr := parseAddressParam("caller", params.Caller)
	if modErr != nil {
		return nil, modErr
	}
	wallet, modErr := parseAddressParam("wallet", params.Wallet)
	if modErr != nil {
		return nil, modErr
	}
	receipt, err := m.node.ChangeBeneficiary(caller, wallet)
	if err != nil {
		return nil, FromError(err)
	}
	return receipt, nil
}

func (m *SaleModule) buyerOp(raw json.RawMessage, op func(caller, buyer [20]byte) (*core.Receipt, error)) (interface{}, *ModuleError) {
	var params buyerParams
	if modErr := decodeParams(raw, &params); modErr != nil {
		return nil, modErr
	}
	caller, modErr := parseAddressParam("caller", params.Caller)
	if modErr != nil {
		return nil, modErr
	}
	buyer, modErr := parseAddressParam("buyer", params.Buyer)
	if modErr != nil {
		return nil, modErr
	}
	receipt, err := op(caller, buyer)
	if err != nil {
		return nil, FromError(err)
	}
	return receipt, nil
}

func (m *SaleModule) WithdrawTokens(raw json.RawMessage) (interface{}, *ModuleError) {
	return m.buyerOp(raw, m.node.WithdrawTokens)
}

func (m *SaleModule) ClaimRefund(raw json.RawMessage) (interface{}, *ModuleError) {
	return m.buyerOp(raw, m.node.ClaimRefund)
}

func (m *SaleModule) Info(json.RawMessage) (interface{}, *ModuleError) {
	cfg, err := m.node.SaleConfig()
	if err != nil {
		return nil, FromError(err)
	}
	rate, err := crowdsale.TokenPrice(cfg.UsdRate, cfg.UnitPriceCents)
	if err != nil {
		return nil, FromError(err)
	}
	return SaleInfoResult{
		Address:          formatAddress(cfg.Address),
		SalesOwner:       formatAddress(cfg.SalesOwner),
		TokenOwner:       formatAddress(cfg.TokenOwner),
		Wallet:           formatAddress(cfg.Wallet),
		Token:            formatAddress(cfg.Token),
		UnitPriceCents:   cfg.UnitPriceCents,
		UsdRate:          formatAmount(cfg.UsdRate),
		Rate:             formatAmount(rate),
		MinPurchaseCents: cfg.MinPurchaseCents,
		MaxPurchaseCents: cfg.MaxPurchaseCents,
		Goal:             formatAmount(cfg.Goal),
		OpeningTime:      cfg.OpeningTime,
		ClosingTime:      cfg.ClosingTime,
		WithdrawPolicy:   cfg.WithdrawPolicy.String(),
		EarlyFinalize:    cfg.EarlyFinalize,
	}, nil
}

func (m *SaleModule) Status(json.RawMessage) (interface{}, *ModuleError) {
	status, err := m.node.Status()
	if err != nil {
		return nil, FromError(err)
	}
	totals := status.Totals
	return SaleStatusResult{
		Phase:           string(status.Phase),
		Outcome:         string(status.Outcome),
		Locked:          status.Locked,
		Finalized:       status.Finalized,
		FinalizedAt:     status.FinalizedAt,
		GoalReached:     status.GoalReached,
		WeiRaised:       formatAmount(totals.WeiRaised),
		GoalBalance:     formatAmount(totals.GoalBalance),
		RaiseBalance:    formatAmount(totals.RaiseBalance),
		WeiWithdrawn:    formatAmount(totals.WeiWithdrawn),
		WeiRefunded:     formatAmount(totals.WeiRefunded),
		TokensSold:      formatAmount(totals.TokensSold),
		TokensPending:   formatAmount(totals.TokensPending),
		TokensDelivered: formatAmount(totals.TokensDelivered),
		RemainingTokens: formatAmount(status.Remaining),
	}, nil
}

// Amount wraps a view returning a single native or token amount.
func (m *SaleModule) Amount(view func() (*big.Int, error)) func(json.RawMessage) (interface{}, *ModuleError) {
	return func(json.RawMessage) (interface{}, *ModuleError) {
		amount, err := view()
		if err != nil {
			return nil, FromError(err)
		}
		return formatAmount(amount), nil
	}
}

// Flag wraps a boolean view.
func (m *SaleModule) Flag(view func() (bool, error)) func(json.RawMessage) (interface{}, *ModuleError) {
	return func(json.RawMessage) (interface{}, *ModuleError) {
		flag, err := view()
		if err != nil {
			return nil, FromError(err)
		}
		return flag, nil
	}
}

// Address wraps a view returning an address.
func (m *SaleModule) Address(view func() ([20]byte, error)) func(json.RawMessage) (interface{}, *ModuleError) {
	return func(json.RawMessage) (interface{}, *ModuleError) {
		addr, err := view()
		if err != nil {
			return nil, FromError(err)
		}
		return formatAddress(addr), nil
	}
}

func (m *SaleModule) addressAmount(raw json.RawMessage, view func([20]byte) (*big.Int, error)) (interface{}, *ModuleError) {
	var params addressParams
	if modErr := decodeParams(raw, &params); modErr != nil {
		return nil, modErr
	}
	addr, modErr := parseAddressParam("address", params.Address)
	if modErr != nil {
		return nil, modErr
	}
	amount, err := view(addr)
	if err != nil {
		return nil, FromError(err)
	}
	return formatAmount(amount), nil
}

func (m *SaleModule) BalanceOf(raw json.RawMessage) (interface{}, *ModuleError) {
	return m.addressAmount(raw, m.node.BalanceOf)
}

func (m *SaleModule) DepositsOf(raw json.RawMessage) (interface{}, *ModuleError) {
	return m.addressAmount(raw, m.node.DepositsOf)
}

func (m *SaleModule) GetUsdTokenAmount(raw json.RawMessage) (interface{}, *ModuleError) {
	var params centsParams
	if modErr := decodeParams(raw, &params); modErr != nil {
		return nil, modErr
	}
	cents, modErr := parseAmountParam("cents", params.Cents)
	if modErr != nil {
		return nil, modErr
	}
	amount, err := m.node.GetUsdTokenAmount(cents)
	if err != nil {
		return nil, FromError(err)
	}
	return formatAmount(amount), nil
}

func (m *SaleModule) GetWeiTokenPrice(raw json.RawMessage) (interface{}, *ModuleError) {
	var params tokensParams
	if modErr := decodeParams(raw, &params); modErr != nil {
		return nil, modErr
	}
	tokens, modErr := parseAmountParam("tokens", params.Tokens)
	if modErr != nil {
		return nil, modErr
	}
	amount, err := m.node.GetWeiTokenPrice(tokens)
	if err != nil {
		return nil, FromError(err)
	}
	return formatAmount(amount), nil
}

func (m *SaleModule) Buyers(json.RawMessage) (interface{}, *ModuleError) {
	buyers, err := m.node.Buyers()
	if err != nil {
		return nil, FromError(err)
	}
	out := make([]string, 0, len(buyers))
	for _, buyer := range buyers {
		out = append(out, formatAddress(buyer))
	}
	return out, nil
}

func (m *SaleModule) ListEvents(ctx context.Context, raw json.RawMessage) (interface{}, *ModuleError) {
	var params listEventsParams
	if len(raw) > 0 {
		if modErr := decodeParams(raw, &params); modErr != nil {
			return nil, modErr
		}
	}
	if params.After < 0 || params.Limit < 0 {
		return nil, invalidParams("after and limit must not be negative", nil)
	}
	records, err := m.node.ListEvents(ctx, params.After, params.Limit)
	if err != nil {
		return nil, FromError(err)
	}
	return records, nil
}
