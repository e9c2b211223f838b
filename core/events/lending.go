package events

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

const (
	// TypeLendingCollateralPosted is emitted when an account locks collateral
	// with the ledger.
	TypeLendingCollateralPosted = "lending.collateral.posted"
	// TypeLendingCollateralWithdrawn is emitted when posted collateral is
	// released back to its owner.
	TypeLendingCollateralWithdrawn = "lending.collateral.withdrawn"
	// TypeLendingBorrow is emitted when a reserve releases borrowed funds.
	TypeLendingBorrow = "lending.borrow"
	// TypeLendingRepay is emitted when outstanding debt is paid down.
	TypeLendingRepay = "lending.repay"
	// TypeLendingLiquidated is emitted when an under-collateralized position
	// is seized and wiped.
	TypeLendingLiquidated = "lending.liquidated"
	// TypeLendingInterestRateUpdate is emitted when a reserve's rate model is
	// replaced.
	TypeLendingInterestRateUpdate = "lending.interest_rate.update"
	// TypeLendingReserveDeposit is emitted when liquidity is added to a
	// reserve pool.
	TypeLendingReserveDeposit = "lending.reserve.deposit"
)

// CollateralPosted captures a collateral deposit into ledger custody.
type CollateralPosted struct {
	Account common.Address
	Amount  *big.Int
}

// EventType implements the Event interface.
func (CollateralPosted) EventType() string { return TypeLendingCollateralPosted }

// CollateralWithdrawn captures a collateral release back to the account.
type CollateralWithdrawn struct {
	Account common.Address
	Amount  *big.Int
}

// EventType implements the Event interface.
func (CollateralWithdrawn) EventType() string { return TypeLendingCollateralWithdrawn }

// Borrow captures funds leaving a reserve against posted collateral.
type Borrow struct {
	Account common.Address
	Asset   string
	Amount  *big.Int
}

// EventType implements the Event interface.
func (Borrow) EventType() string { return TypeLendingBorrow }

// Repay captures a debt repayment into a reserve.
type Repay struct {
	Account common.Address
	Asset   string
	Amount  *big.Int
}

// EventType implements the Event interface.
func (Repay) EventType() string { return TypeLendingRepay }

// Liquidated captures a full-position liquidation: the triggering asset, the
// debt wiped on it and the collateral seized for the collector.
type Liquidated struct {
	Account          common.Address
	Asset            string
	DebtAmount       *big.Int
	CollateralSeized *big.Int
}

// EventType implements the Event interface.
func (Liquidated) EventType() string { return TypeLendingLiquidated }

// InterestRateUpdate captures a rate model change on a reserve. The rate
// fields are annualized and scaled to 1e18 = 100%.
type InterestRateUpdate struct {
	Asset    string
	BaseRate *big.Int
	KinkRate *big.Int
	MaxRate  *big.Int
}

// EventType implements the Event interface.
func (InterestRateUpdate) EventType() string { return TypeLendingInterestRateUpdate }

// ReserveDeposit captures liquidity added to a reserve pool.
type ReserveDeposit struct {
	Asset  string
	Amount *big.Int
}

// EventType implements the Event interface.
func (ReserveDeposit) EventType() string { return TypeLendingReserveDeposit }

// NormalizeAsset returns the canonical asset symbol form used across events.
func NormalizeAsset(asset string) string {
	trimmed := strings.TrimSpace(asset)
	if trimmed == "" {
		return ""
	}
	return strings.ToUpper(trimmed)
}
