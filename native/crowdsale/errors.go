package crowdsale

import "errors"

var (
	ErrInvalidAmount      = errors.New("crowdsale: invalid purchase amount")
	ErrBelowMinimum       = errors.New("crowdsale: purchase below minimum")
	ErrAboveMaximum       = errors.New("crowdsale: purchase above maximum")
	ErrOutsideSaleWindow  = errors.New("crowdsale: outside sale window")
	ErrSaleFinalized      = errors.New("crowdsale: sale finalized")
	ErrUnauthorized       = errors.New("crowdsale: unauthorized")
	ErrNotUnlocked        = errors.New("crowdsale: funds locked")
	ErrGoalNotReached     = errors.New("crowdsale: goal not reached")
	ErrInvalidBeneficiary = errors.New("crowdsale: invalid beneficiary")
	ErrAlreadyFinalized   = errors.New("crowdsale: already finalized")

	ErrInvalidRate       = errors.New("crowdsale: invalid rate")
	ErrAlreadyUnlocked   = errors.New("crowdsale: already unlocked")
	ErrNothingToWithdraw = errors.New("crowdsale: nothing to withdraw")
	ErrSaleNotClosed     = errors.New("crowdsale: sale not closed")
	ErrNotFinalized      = errors.New("crowdsale: not finalized")
	ErrGoalReached       = errors.New("crowdsale: goal reached")
	ErrNoDeposit         = errors.New("crowdsale: no deposit")
	ErrTokensExhausted   = errors.New("crowdsale: tokens exhausted")
	ErrInsufficientFunds = errors.New("crowdsale: insufficient funds")
	ErrOverflow          = errors.New("crowdsale: arithmetic overflow")
	ErrInvalidConfig     = errors.New("crowdsale: invalid config")
	ErrNotDeployed       = errors.New("crowdsale: not deployed")
	ErrAlreadyDeployed   = errors.New("crowdsale: already deployed")
)

var reasons = []struct {
	err    error
	reason string
}{
	{ErrInvalidAmount, "invalid_amount"},
	{ErrBelowMinimum, "below_minimum"},
	{ErrAboveMaximum, "above_maximum"},
	{ErrOutsideSaleWindow, "outside_window"},
	{ErrSaleFinalized, "sale_finalized"},
	{ErrUnauthorized, "unauthorized"},
	{ErrNotUnlocked, "not_unlocked"},
	{ErrGoalNotReached, "goal_not_reached"},
	{ErrInvalidBeneficiary, "invalid_beneficiary"},
	{ErrAlreadyFinalized, "already_finalized"},
	{ErrInvalidRate, "invalid_rate"},
	{ErrAlreadyUnlocked, "already_unlocked"},
	{ErrNothingToWithdraw, "nothing_to_withdraw"},
	{ErrSaleNotClosed, "sale_not_closed"},
	{ErrNotFinalized, "not_finalized"},
	{ErrGoalReached, "goal_reached"},
	{ErrNoDeposit, "no_deposit"},
	{ErrTokensExhausted, "tokens_exhausted"},
	{ErrInsufficientFunds, "insufficient_funds"},
	{ErrOverflow, "overflow"},
	{ErrInvalidConfig, "invalid_config"},
	{ErrNotDeployed, "not_deployed"},
	{ErrAlreadyDeployed, "already_deployed"},
}

// Reason returns a stable label for a sale error, suitable for metrics.
// Errors outside the sale taxonomy are labelled "internal".
func Reason(err error) string {
	if err == nil {
		return ""
	}
	for _, r := range reasons {
		if errors.Is(err, r.err) {
			return r.reason
		}
	}
	return "internal"
}
