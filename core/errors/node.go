package errors

import stderrors "errors"

var (
	ErrNetworkMismatch     = stderrors.New("node: stored deployment belongs to another network")
	ErrBeneficiaryMismatch = stderrors.New("node: beneficiary must be the purchaser")
	ErrArchiveDisabled     = stderrors.New("node: event archive not configured")
	ErrNonceMismatch       = stderrors.New("node: purchase nonce does not match account")
	ErrSaleMismatch        = stderrors.New("node: purchase signed for another sale")
)
