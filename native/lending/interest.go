package lending

import "math/big"

// InterestModel maps pool utilization to an annualized borrow rate using a
// piecewise-linear curve with a single kink. All parameters are expressed in
// basis points for deterministic serialization; a 5% base rate is 500 and a
// 90% kink utilization is 9000.
type InterestModel struct {
	// BaseRateBps is the borrow rate applied at zero utilization.
	BaseRateBps uint64 `json:"baseRateBps"`
	// KinkRateBps is the borrow rate reached exactly at the kink.
	KinkRateBps uint64 `json:"kinkRateBps"`
	// MaxRateBps is the borrow rate reached at full utilization.
	MaxRateBps uint64 `json:"maxRateBps"`
	// KinkUtilizationBps is the utilization breakpoint where the curve's
	// slope changes.
	KinkUtilizationBps uint64 `json:"kinkUtilizationBps"`
}

// NewInterestModel constructs a kinked interest model from basis point
// parameters.
func NewInterestModel(baseRateBps, kinkRateBps, maxRateBps, kinkUtilizationBps uint64) *InterestModel {
	return &InterestModel{
		BaseRateBps:        baseRateBps,
		KinkRateBps:        kinkRateBps,
		MaxRateBps:         maxRateBps,
		KinkUtilizationBps: kinkUtilizationBps,
	}
}

// Clone returns a copy of the interest model.
func (m *InterestModel) Clone() *InterestModel {
	if m == nil {
		return nil
	}
	clone := *m
	return &clone
}

func bpsRat(bps uint64) *big.Rat {
	return new(big.Rat).SetFrac(new(big.Int).SetUint64(bps), basisPoints)
}

// Utilization computes the pool utilization ratio U = totalBorrow /
// totalReserve. When either side of the pool is empty the utilization is
// defined as zero.
func (m *InterestModel) Utilization(totalBorrow, totalReserve *big.Int) *big.Rat {
	if totalBorrow == nil || totalBorrow.Sign() == 0 {
		return new(big.Rat)
	}
	if totalReserve == nil || totalReserve.Sign() == 0 {
		return new(big.Rat)
	}
	return new(big.Rat).SetFrac(totalBorrow, totalReserve)
}

// BorrowRate derives the annualized borrow rate for the current utilization.
// Below the kink the rate interpolates linearly from the base rate to the
// kink rate; beyond it the rate climbs from the kink rate towards the max
// rate as utilization approaches 100%.
func (m *InterestModel) BorrowRate(totalBorrow, totalReserve *big.Int) *big.Rat {
	if m == nil {
		return new(big.Rat)
	}
	base := bpsRat(m.BaseRateBps)
	utilization := m.Utilization(totalBorrow, totalReserve)
	if utilization.Sign() == 0 {
		return base
	}

	kink := bpsRat(m.KinkUtilizationBps)
	kinkRate := bpsRat(m.KinkRateBps)
	if kink.Sign() > 0 && utilization.Cmp(kink) <= 0 {
		// Linear region before the kink.
		slope := new(big.Rat).Sub(kinkRate, base)
		slope.Quo(slope, kink)
		return base.Add(base, slope.Mul(slope, utilization))
	}

	one := big.NewRat(1, 1)
	span := new(big.Rat).Sub(one, kink)
	if span.Sign() <= 0 {
		return kinkRate
	}
	excess := new(big.Rat).Sub(utilization, kink)
	if excess.Sign() < 0 {
		excess.SetInt64(0)
	}
	slope := new(big.Rat).Sub(bpsRat(m.MaxRateBps), kinkRate)
	slope.Quo(slope, span)
	return kinkRate.Add(kinkRate, slope.Mul(slope, excess))
}

// RateWad converts an annualized rational rate into 1e18 fixed point where
// 1e18 equals 100%.
func RateWad(rate *big.Rat) *big.Int {
	if rate == nil || rate.Sign() <= 0 {
		return big.NewInt(0)
	}
	scaled := new(big.Rat).Mul(rate, new(big.Rat).SetInt(wad))
	return new(big.Int).Quo(scaled.Num(), scaled.Denom())
}
