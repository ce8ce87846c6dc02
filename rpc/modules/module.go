package modules

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"

	coreerrors "onlsale/core/errors"
	"onlsale/core/types"
	"onlsale/crypto"
	"onlsale/native/crowdsale"
	"onlsale/native/token"
)

const (
	codeInvalidParams = -32602
	codeServerError   = -32000
	codeUnavailable   = -32003
)

// Revert codes returned when the sale rejects an operation.
const (
	CodeInvalidAmount      = -32030
	CodeBelowMinimum       = -32031
	CodeAboveMaximum       = -32032
	CodeOutsideSaleWindow  = -32033
	CodeSaleFinalized      = -32034
	CodeUnauthorized       = -32035
	CodeNotUnlocked        = -32036
	CodeGoalNotReached     = -32037
	CodeInvalidBeneficiary = -32038
	CodeAlreadyFinalized   = -32039
	CodeInvalidRate        = -32040
	CodeAlreadyUnlocked    = -32041
	CodeNothingToWithdraw  = -32042
	CodeSaleNotClosed      = -32043
	CodeNotFinalized       = -32044
	CodeGoalReached        = -32045
	CodeNoDeposit          = -32046
	CodeTokensExhausted    = -32047
	CodeInsufficientFunds  = -32048
	CodeNotDeployed        = -32049
	CodeInvalidSignature   = -32050
	CodeNonceMismatch      = -32051
)

type ModuleError struct {
	HTTPStatus int
	Code       int
	Message    string
	Data       interface{}
}

func (e *ModuleError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

var revertCodes = []struct {
	err  error
	code int
}{
	{crowdsale.ErrInvalidAmount, CodeInvalidAmount},
	{crowdsale.ErrOverflow, CodeInvalidAmount},
	{crowdsale.ErrBelowMinimum, CodeBelowMinimum},
	{crowdsale.ErrAboveMaximum, CodeAboveMaximum},
	{crowdsale.ErrOutsideSaleWindow, CodeOutsideSaleWindow},
	{crowdsale.ErrSaleFinalized, CodeSaleFinalized},
	{crowdsale.ErrUnauthorized, CodeUnauthorized},
	{crowdsale.ErrNotUnlocked, CodeNotUnlocked},
	{crowdsale.ErrGoalNotReached, CodeGoalNotReached},
	{crowdsale.ErrInvalidBeneficiary, CodeInvalidBeneficiary},
	{coreerrors.ErrBeneficiaryMismatch, CodeInvalidBeneficiary},
	{crowdsale.ErrAlreadyFinalized, CodeAlreadyFinalized},
	{crowdsale.ErrInvalidRate, CodeInvalidRate},
	{crowdsale.ErrAlreadyUnlocked, CodeAlreadyUnlocked},
	{crowdsale.ErrNothingToWithdraw, CodeNothingToWithdraw},
	{crowdsale.ErrSaleNotClosed, CodeSaleNotClosed},
	{crowdsale.ErrNotFinalized, CodeNotFinalized},
	{crowdsale.ErrGoalReached, CodeGoalReached},
	{crowdsale.ErrNoDeposit, CodeNoDeposit},
	{crowdsale.ErrTokensExhausted, CodeTokensExhausted},
	{token.ErrInsufficientAllowance, CodeTokensExhausted},
	{crowdsale.ErrInsufficientFunds, CodeInsufficientFunds},
	{token.ErrInsufficientBalance, CodeInsufficientFunds},
	{crowdsale.ErrNotDeployed, CodeNotDeployed},
	{types.ErrInvalidSignature, CodeInvalidSignature},
	{coreerrors.ErrSaleMismatch, CodeInvalidSignature},
	{coreerrors.ErrNonceMismatch, CodeNonceMismatch},
}

// FromError converts a node or engine error into a module error. Sale
// rejections are reported as reverts with a dedicated code.
func FromError(err error) *ModuleError {
	if err == nil {
		return nil
	}
	for _, entry := range revertCodes {
		if errors.Is(err, entry.err) {
			return &ModuleError{HTTPStatus: http.StatusOK, Code: entry.code, Message: "execution reverted: " + err.Error()}
		}
	}
	if errors.Is(err, coreerrors.ErrArchiveDisabled) {
		return &ModuleError{HTTPStatus: http.StatusServiceUnavailable, Code: codeUnavailable, Message: err.Error()}
	}
	return &ModuleError{HTTPStatus: http.StatusInternalServerError, Code: codeServerError, Message: "internal error", Data: err.Error()}
}

func invalidParams(message string, data interface{}) *ModuleError {
	return &ModuleError{HTTPStatus: http.StatusBadRequest, Code: codeInvalidParams, Message: message, Data: data}
}

func decodeParams(raw json.RawMessage, out interface{}) *ModuleError {
	if len(raw) == 0 {
		return invalidParams("parameter object required", nil)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return invalidParams("invalid parameter object", err.Error())
	}
	return nil
}

func parseAddressParam(field, value string) ([20]byte, *ModuleError) {
	if strings.TrimSpace(value) == "" {
		return [20]byte{}, invalidParams(field+" is required", nil)
	}
	addr, err := crypto.ParseAddress(value)
	if err != nil {
		return [20]byte{}, invalidParams("invalid "+field, err.Error())
	}
	return addr, nil
}

func parseOptionalAddress(field, value string) ([20]byte, *ModuleError) {
	if strings.TrimSpace(value) == "" {
		return [20]byte{}, nil
	}
	return parseAddressParam(field, value)
}

// parseAmountParam accepts a decimal or 0x-prefixed hex integer.
func parseAmountParam(field, value string) (*big.Int, *ModuleError) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, invalidParams(field+" is required", nil)
	}
	base := 10
	digits := trimmed
	if strings.HasPrefix(trimmed, "0x") || strings.HasPrefix(trimmed, "0X") {
		base = 16
		digits = trimmed[2:]
	}
	amount, ok := new(big.Int).SetString(digits, base)
	if !ok || amount.Sign() < 0 {
		return nil, invalidParams(fmt.Sprintf("invalid %s", field), value)
	}
	return amount, nil
}

func parseSignatureParam(field, value string) ([]byte, *ModuleError) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, invalidParams(field+" is required", nil)
	}
	sig, err := hexutil.Decode(trimmed)
	if err != nil {
		return nil, invalidParams("invalid "+field, err.Error())
	}
	return sig, nil
}

func formatAddress(addr [20]byte) string { return crypto.FormatAddress(addr) }

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
