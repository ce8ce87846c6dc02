package modules

import (
	"encoding/json"

	"onlsale/core"
)

// TokenModule serves read-only token and account queries.
type TokenModule struct {
	node *core.Node
}

func NewTokenModule(node *core.Node) *TokenModule {
	return &TokenModule{node: node}
}

type allowanceParams struct {
	Owner   string `json:"owner"`
	Spender string `json:"spender"`
}

// TokenMetadataResult describes the token being sold.
type TokenMetadataResult struct {
	Address     string `json:"address"`
	Name        string `json:"name"`
	Symbol      string `json:"symbol"`
	Decimals    uint8  `json:"decimals"`
	TotalSupply string `json:"totalSupply"`
	Owner       string `json:"owner"`
}

func (m *TokenModule) Metadata(json.RawMessage) (interface{}, *ModuleError) {
	meta, err := m.node.TokenMetadata()
	if err != nil {
		return nil, FromError(err)
	}
	addr, err := m.node.Token()
	if err != nil {
		return nil, FromError(err)
	}
	return TokenMetadataResult{
		Address:     formatAddress(addr),
		Name:        meta.Name,
		Symbol:      meta.Symbol,
		Decimals:    meta.Decimals,
		TotalSupply: formatAmount(meta.TotalSupply),
		Owner:       formatAddress(meta.Owner),
	}, nil
}

func (m *TokenModule) TotalSupply(json.RawMessage) (interface{}, *ModuleError) {
	supply, err := m.node.TokenTotalSupply()
	if err != nil {
		return nil, FromError(err)
	}
	return formatAmount(supply), nil
}

func (m *TokenModule) BalanceOf(raw json.RawMessage) (interface{}, *ModuleError) {
	var params addressParams
	if modErr := decodeParams(raw, &params); modErr != nil {
		return nil, modErr
	}
	owner, modErr := parseAddressParam("address", params.Address)
	if modErr != nil {
		return nil, modErr
	}
	balance, err := m.node.TokenBalanceOf(owner)
	if err != nil {
		return nil, FromError(err)
	}
	return formatAmount(balance), nil
}

func (m *TokenModule) Allowance(raw json.RawMessage) (interface{}, *ModuleError) {
	var params allowanceParams
	if modErr := decodeParams(raw, &params); modErr != nil {
		return nil, modErr
	}
	owner, modErr := parseAddressParam("owner", params.Owner)
	if modErr != nil {
		return nil, modErr
	}
	spender, modErr := parseAddressParam("spender", params.Spender)
	if modErr != nil {
		return nil, modErr
	}
	allowance, err := m.node.TokenAllowance(owner, spender)
	if err != nil {
		return nil, FromError(err)
	}
	return formatAmount(allowance), nil
}

// AccountBalance returns the native balance of an address.
func (m *TokenModule) AccountBalance(raw json.RawMessage) (interface{}, *ModuleError) {
	var params addressParams
	if modErr := decodeParams(raw, &params); modErr != nil {
		return nil, modErr
	}
	addr, modErr := parseAddressParam("address", params.Address)
	if modErr != nil {
		return nil, modErr
	}
	balance, err := m.node.AccountBalance(addr)
	if err != nil {
		return nil, FromError(err)
	}
	return formatAmount(balance), nil
}

// AccountNonce returns the nonce the next signed purchase from an address
// must carry.
func (m *TokenModule) AccountNonce(raw json.RawMessage) (interface{}, *ModuleError) {
	var params addressParams
	if modErr := decodeParams(raw, &params); modErr != nil {
		return nil, modErr
	}
	addr, modErr := parseAddressParam("address", params.Address)
	if modErr != nil {
		return nil, modErr
	}
	nonce, err := m.node.Nonce(addr)
	if err != nil {
		return nil, FromError(err)
	}
	return nonce, nil
}
