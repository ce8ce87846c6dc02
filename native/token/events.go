package token

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"onlsale/core/types"
	"onlsale/crypto"
)

const (
	EventTypeTransfer = "token.transfer"
	EventTypeApproval = "token.approval"
)

// TokenABI holds the ERC-20 event definitions.
const TokenABI = `[
  {"type":"event","name":"Transfer","anonymous":false,"inputs":[
    {"name":"from","type":"address","indexed":true},
    {"name":"to","type":"address","indexed":true},
    {"name":"value","type":"uint256","indexed":false}]},
  {"type":"event","name":"Approval","anonymous":false,"inputs":[
    {"name":"owner","type":"address","indexed":true},
    {"name":"spender","type":"address","indexed":true},
    {"name":"value","type":"uint256","indexed":false}]}
]`

var tokenABI = func() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(TokenABI))
	if err != nil {
		panic(err)
	}
	return parsed
}()

// Transfer records a balance movement, including the mint at creation.
type Transfer struct {
	Token  [20]byte
	From   [20]byte
	To     [20]byte
	Amount *big.Int
}

func (Transfer) EventType() string { return EventTypeTransfer }

func (e Transfer) Event() *types.Event {
	return &types.Event{Type: EventTypeTransfer, Attributes: map[string]string{
		"token":  crypto.FormatAddress(e.Token),
		"from":   crypto.FormatAddress(e.From),
		"to":     crypto.FormatAddress(e.To),
		"amount": cloneBigInt(e.Amount).String(),
	}}
}

func (e Transfer) LogAddress() [20]byte { return e.Token }

func (e Transfer) LogEvent() (abi.Event, []interface{}) {
	return tokenABI.Events["Transfer"], []interface{}{common.Address(e.From), common.Address(e.To), cloneBigInt(e.Amount)}
}

// Approval records a new allowance.
type Approval struct {
	Token   [20]byte
	Owner   [20]byte
	Spender [20]byte
	Amount  *big.Int
}

func (Approval) EventType() string { return EventTypeApproval }

func (e Approval) Event() *types.Event {
	return &types.Event{Type: EventTypeApproval, Attributes: map[string]string{
		"token":   crypto.FormatAddress(e.Token),
		"owner":   crypto.FormatAddress(e.Owner),
		"spender": crypto.FormatAddress(e.Spender),
		"amount":  cloneBigInt(e.Amount).String(),
	}}
}

func (e Approval) LogAddress() [20]byte { return e.Token }

func (e Approval) LogEvent() (abi.Event, []interface{}) {
	return tokenABI.Events["Approval"], []interface{}{common.Address(e.Owner), common.Address(e.Spender), cloneBigInt(e.Amount)}
}
