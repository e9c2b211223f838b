package server

import (
	"errors"
	"net/http"

	"lendex/native/bank"
	nativecommon "lendex/native/common"
	"lendex/native/lending"
)

// httpStatus translates an engine failure into the HTTP status the API
// reports for it.
func httpStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, lending.ErrInvalidAmount):
		return http.StatusBadRequest
	case errors.Is(err, lending.ErrUnsupported), errors.Is(err, lending.ErrNoQuote):
		return http.StatusNotFound
	case errors.Is(err, lending.ErrNotAuthorized):
		return http.StatusForbidden
	case errors.Is(err, lending.ErrAlreadyRegistered),
		errors.Is(err, lending.ErrInsufficientCollateral),
		errors.Is(err, lending.ErrInsufficientLiquidity),
		errors.Is(err, lending.ErrExceededBorrowedAmount),
		errors.Is(err, lending.ErrExceededCollateralAmount),
		errors.Is(err, lending.ErrWillUnderCollateralize),
		errors.Is(err, lending.ErrOverCollateralized),
		errors.Is(err, bank.ErrInsufficientBalance):
		return http.StatusConflict
	case errors.Is(err, nativecommon.ErrModulePaused):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// errorKind names the failure category for metrics labels.
func errorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, lending.ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, lending.ErrUnsupported):
		return "unsupported"
	case errors.Is(err, lending.ErrNoQuote):
		return "no_quote"
	case errors.Is(err, lending.ErrNotAuthorized):
		return "not_authorized"
	case errors.Is(err, lending.ErrAlreadyRegistered):
		return "already_registered"
	case errors.Is(err, lending.ErrInsufficientCollateral):
		return "insufficient_collateral"
	case errors.Is(err, lending.ErrInsufficientLiquidity):
		return "insufficient_liquidity"
	case errors.Is(err, lending.ErrExceededBorrowedAmount):
		return "exceeded_borrowed_amount"
	case errors.Is(err, lending.ErrExceededCollateralAmount):
		return "exceeded_collateral_amount"
	case errors.Is(err, lending.ErrWillUnderCollateralize):
		return "will_under_collateralize"
	case errors.Is(err, lending.ErrOverCollateralized):
		return "over_collateralized"
	case errors.Is(err, bank.ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, nativecommon.ErrModulePaused):
		return "paused"
	default:
		return "internal"
	}
}
