package lending

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// PriceKind enumerates the supported price sources for an asset.
type PriceKind string

const (
	// PriceKindFixedStable pegs the asset at a constant 1:1 ratio and never
	// consults the oracle.
	PriceKindFixedStable PriceKind = "stable"
	// PriceKindIndexDerived resolves the asset price from the external price
	// oracle at call time. Quotes are never cached.
	PriceKindIndexDerived PriceKind = "index"
)

// TransferMode describes how borrowed funds move in and out of custody.
type TransferMode string

const (
	// TransferModeTransfer releases borrows from the custody balance and
	// pulls repayments back into it.
	TransferModeTransfer TransferMode = "transfer"
	// TransferModeMint mints borrows to the borrower and burns repayments.
	TransferModeMint TransferMode = "mint"
)

// Price is a quote resolved at read time: value/precision units of collateral
// reference per unit of the asset.
type Price struct {
	Value     *big.Int
	Precision *big.Int
}

// FixedStablePrice is the constant quote used for fixed-stable assets.
func FixedStablePrice() Price {
	return Price{Value: big.NewInt(1), Precision: big.NewInt(1)}
}

// ReserveLedger is the pooled per-debt-asset accounting record. TotalBorrow
// advances only through accrual; the share table distributes it
// proportionally across accounts without touching every balance on every
// accrual.
type ReserveLedger struct {
	// Token is the opaque handle of the external debt asset.
	Token string `json:"token"`
	// PriceKind selects how the asset is priced against collateral.
	PriceKind PriceKind `json:"priceKind"`
	// TransferMode selects how borrowed funds are released and recovered.
	TransferMode TransferMode `json:"transferMode"`
	// MinCollateralizationBps is the minimum collateral value over debt value
	// required to avoid liquidation, in basis points.
	MinCollateralizationBps uint64 `json:"minCollateralizationBps"`
	// TotalReserve is the pool available to be borrowed, deposits plus
	// interest credited back to the reserve.
	TotalReserve *big.Int `json:"totalReserve"`
	// TotalBorrow is the outstanding debt across all accounts as of
	// LastAccrual.
	TotalBorrow *big.Int `json:"totalBorrow"`
	// TotalShares is the proportional-ownership supply issued against
	// TotalBorrow.
	TotalShares *big.Int `json:"totalShares"`
	// AccountShares maps each account to its claim on TotalBorrow. The sum
	// of all entries equals TotalShares.
	AccountShares map[common.Address]*big.Int `json:"accountShares"`
	// Model is the interest rate model currently in effect.
	Model *InterestModel `json:"model"`
	// LastAccrual is the unix timestamp when the pool totals were last
	// advanced.
	LastAccrual int64 `json:"lastAccrual"`
}

// Clone returns a deep copy of the reserve ledger.
func (r *ReserveLedger) Clone() *ReserveLedger {
	if r == nil {
		return nil
	}
	clone := &ReserveLedger{
		Token:                   r.Token,
		PriceKind:               r.PriceKind,
		TransferMode:            r.TransferMode,
		MinCollateralizationBps: r.MinCollateralizationBps,
		LastAccrual:             r.LastAccrual,
		Model:                   r.Model.Clone(),
	}
	if r.TotalReserve != nil {
		clone.TotalReserve = new(big.Int).Set(r.TotalReserve)
	}
	if r.TotalBorrow != nil {
		clone.TotalBorrow = new(big.Int).Set(r.TotalBorrow)
	}
	if r.TotalShares != nil {
		clone.TotalShares = new(big.Int).Set(r.TotalShares)
	}
	if r.AccountShares != nil {
		clone.AccountShares = make(map[common.Address]*big.Int, len(r.AccountShares))
		for addr, shares := range r.AccountShares {
			clone.AccountShares[addr] = new(big.Int).Set(shares)
		}
	}
	return clone
}

func (r *ReserveLedger) ensureDefaults() {
	if r.TotalReserve == nil {
		r.TotalReserve = big.NewInt(0)
	}
	if r.TotalBorrow == nil {
		r.TotalBorrow = big.NewInt(0)
	}
	if r.TotalShares == nil {
		r.TotalShares = big.NewInt(0)
	}
	if r.AccountShares == nil {
		r.AccountShares = make(map[common.Address]*big.Int)
	}
}

func (r *ReserveLedger) sharesOf(account common.Address) *big.Int {
	if r == nil || r.AccountShares == nil {
		return big.NewInt(0)
	}
	if shares, ok := r.AccountShares[account]; ok && shares != nil {
		return new(big.Int).Set(shares)
	}
	return big.NewInt(0)
}

// CollateralPosition records the collateral an account currently holds with
// the ledger. Positions are created implicitly on first deposit and never go
// negative.
type CollateralPosition struct {
	Account common.Address `json:"account"`
	Amount  *big.Int       `json:"amount"`
}

// Clone returns a deep copy of the collateral position.
func (p *CollateralPosition) Clone() *CollateralPosition {
	if p == nil {
		return nil
	}
	clone := &CollateralPosition{Account: p.Account}
	if p.Amount != nil {
		clone.Amount = new(big.Int).Set(p.Amount)
	}
	return clone
}

func (p *CollateralPosition) ensureDefaults() {
	if p.Amount == nil {
		p.Amount = big.NewInt(0)
	}
}
