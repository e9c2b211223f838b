package lending

import (
	"errors"
	"fmt"
	"math/big"
)

var (
	errNilState = errors.New("lending engine: state not configured")
	errNilVault = errors.New("lending engine: asset vault not configured")

	// ErrInvalidAmount rejects zero or negative amounts on any amount-taking
	// operation.
	ErrInvalidAmount = errors.New("lending engine: amount must be positive")
	// ErrUnsupported signals an operation against an asset with no reserve
	// ledger, or one registered with an incompatible transfer mode.
	ErrUnsupported = errors.New("lending engine: unsupported asset")
	// ErrAlreadyRegistered rejects a duplicate debt asset registration.
	ErrAlreadyRegistered = errors.New("lending engine: asset already registered")
	// ErrInsufficientLiquidity signals a borrow beyond the reserve's
	// remaining un-borrowed pool.
	ErrInsufficientLiquidity = errors.New("lending engine: insufficient liquidity")
	// ErrInsufficientCollateral signals a borrow beyond the account's
	// remaining capacity.
	ErrInsufficientCollateral = errors.New("lending engine: insufficient collateral")
	// ErrExceededBorrowedAmount signals a repayment above the freshly accrued
	// debt.
	ErrExceededBorrowedAmount = errors.New("lending engine: repay exceeds borrowed amount")
	// ErrExceededCollateralAmount signals a withdrawal above the posted
	// collateral.
	ErrExceededCollateralAmount = errors.New("lending engine: withdrawal exceeds posted collateral")
	// ErrWillUnderCollateralize signals a collateral withdrawal that would
	// push a debt position below its minimum ratio.
	ErrWillUnderCollateralize = errors.New("lending engine: withdrawal would under-collateralize position")
	// ErrOverCollateralized signals a liquidation attempt on a position still
	// at or above its minimum ratio.
	ErrOverCollateralized = errors.New("lending engine: position is not liquidatable")
	// ErrNotAuthorized rejects privileged calls from non-operators.
	ErrNotAuthorized = errors.New("lending engine: caller is not an authorized operator")
)

// InsufficientCollateralError carries the remaining borrow capacity alongside
// the requested amount so callers can retry with adjusted sizing.
type InsufficientCollateralError struct {
	Capacity  *big.Int
	Requested *big.Int
}

func (e *InsufficientCollateralError) Error() string {
	return fmt.Sprintf("lending engine: insufficient collateral: capacity %s, requested %s", e.Capacity, e.Requested)
}

// Unwrap lets errors.Is match ErrInsufficientCollateral.
func (e *InsufficientCollateralError) Unwrap() error { return ErrInsufficientCollateral }

// ExceededBorrowedAmountError carries the current owed debt alongside the
// requested repayment.
type ExceededBorrowedAmountError struct {
	Owed      *big.Int
	Requested *big.Int
}

func (e *ExceededBorrowedAmountError) Error() string {
	return fmt.Sprintf("lending engine: repay exceeds borrowed amount: owed %s, requested %s", e.Owed, e.Requested)
}

// Unwrap lets errors.Is match ErrExceededBorrowedAmount.
func (e *ExceededBorrowedAmountError) Unwrap() error { return ErrExceededBorrowedAmount }

// ExceededCollateralAmountError carries the posted collateral alongside the
// requested withdrawal.
type ExceededCollateralAmountError struct {
	Posted    *big.Int
	Requested *big.Int
}

func (e *ExceededCollateralAmountError) Error() string {
	return fmt.Sprintf("lending engine: withdrawal exceeds posted collateral: posted %s, requested %s", e.Posted, e.Requested)
}

// Unwrap lets errors.Is match ErrExceededCollateralAmount.
func (e *ExceededCollateralAmountError) Unwrap() error { return ErrExceededCollateralAmount }
