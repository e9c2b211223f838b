package lending

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// AccountDebt returns the account's owed amount on one asset, accrued to the
// current instant. The accrual is computed on a copy; reads never persist.
func (e *Engine) AccountDebt(asset string, account common.Address) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	ledger, err := e.loadReserve(asset)
	if err != nil {
		return nil, err
	}
	snapshot := ledger.Clone()
	e.accrue(snapshot)
	return e.accountOwed(snapshot, account), nil
}

// TotalOwed returns the account's owed amounts across every registered asset.
func (e *Engine) TotalOwed(account common.Address) (map[string]*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	assets, err := e.listAssetsSorted()
	if err != nil {
		return nil, err
	}
	owed := make(map[string]*big.Int, len(assets))
	for _, asset := range assets {
		amount, err := e.AccountDebt(asset, account)
		if err != nil {
			return nil, err
		}
		owed[asset] = amount
	}
	return owed, nil
}

// CollateralOf returns the account's posted collateral balance.
func (e *Engine) CollateralOf(account common.Address) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	position, err := e.loadCollateral(account)
	if err != nil {
		return nil, err
	}
	return new(big.Int).Set(position.Amount), nil
}

// MaxBorrowCapacity returns the account's remaining borrow capacity against
// one asset at current prices, net of freshly accrued debt.
func (e *Engine) MaxBorrowCapacity(asset string, account common.Address) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	ledger, err := e.loadReserve(asset)
	if err != nil {
		return nil, err
	}
	snapshot := ledger.Clone()
	e.accrue(snapshot)

	position, err := e.loadCollateral(account)
	if err != nil {
		return nil, err
	}
	collPrice, err := e.collateralPrice()
	if err != nil {
		return nil, err
	}
	debtPrice, err := e.priceOf(snapshot.Token, snapshot.PriceKind)
	if err != nil {
		return nil, err
	}
	capacity := maxBorrowCapacity(position.Amount, collPrice, debtPrice, snapshot.MinCollateralizationBps)
	capacity.Sub(capacity, e.accountOwed(snapshot, account))
	if capacity.Sign() < 0 {
		capacity.SetInt64(0)
	}
	return capacity, nil
}

// ReserveSnapshot returns a copy of the asset's reserve ledger accrued to the
// current instant.
func (e *Engine) ReserveSnapshot(asset string) (*ReserveLedger, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	ledger, err := e.loadReserve(asset)
	if err != nil {
		return nil, err
	}
	snapshot := ledger.Clone()
	e.accrue(snapshot)
	return snapshot, nil
}

// ListAssets returns the registered debt asset symbols in sorted order.
func (e *Engine) ListAssets() ([]string, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	return e.listAssetsSorted()
}

// BorrowRate returns the asset's current annualized borrow rate in 1e18 fixed
// point.
func (e *Engine) BorrowRate(asset string) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	snapshot, err := e.ReserveSnapshot(asset)
	if err != nil {
		return nil, err
	}
	return RateWad(snapshot.Model.BorrowRate(snapshot.TotalBorrow, snapshot.TotalReserve)), nil
}
