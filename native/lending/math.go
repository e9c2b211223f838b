package lending

import "math/big"

var (
	basisPoints = big.NewInt(10_000)
	ray         = mustBigInt("1000000000000000000000000000") // 1e27 precision
	halfRay     = new(big.Int).Rsh(ray, 1)
	wad         = mustBigInt("1000000000000000000") // 1e18 precision
)

const secondsPerYear = 365 * 86_400

func mustBigInt(value string) *big.Int {
	v, ok := new(big.Int).SetString(value, 10)
	if !ok {
		panic("invalid big integer constant")
	}
	return v
}

func rayMul(a, b *big.Int) *big.Int {
	if a == nil || b == nil {
		return big.NewInt(0)
	}
	product := new(big.Int).Mul(a, b)
	product.Add(product, halfRay)
	product.Quo(product, ray)
	return product
}

func ratToRay(r *big.Rat) *big.Int {
	if r == nil {
		return big.NewInt(0)
	}
	scaled := new(big.Rat).Mul(r, new(big.Rat).SetInt(ray))
	num := scaled.Num()
	den := scaled.Denom()
	if den.Sign() == 0 {
		return big.NewInt(0)
	}
	return new(big.Int).Quo(new(big.Int).Add(num, halfUp(den)), den)
}

func halfUp(x *big.Int) *big.Int {
	if x == nil || x.Sign() <= 0 {
		return big.NewInt(0)
	}
	half := new(big.Int).Add(x, big.NewInt(1))
	half.Rsh(half, 1)
	return half
}

// compoundFactor approximates e^(rate*elapsed/secondsPerYear) in ray precision
// using the third-order binomial expansion of the exponential. The truncation
// error stays well below a basis point for realistic rates and horizons, and
// every term is non-negative so the factor is monotonic in both the rate and
// the elapsed time.
func compoundFactor(annualRate *big.Rat, elapsedSeconds int64) *big.Int {
	if annualRate == nil || annualRate.Sign() <= 0 || elapsedSeconds <= 0 {
		return new(big.Int).Set(ray)
	}

	perSecond := new(big.Rat).Quo(annualRate, new(big.Rat).SetInt64(secondsPerYear))
	x := ratToRay(perSecond)
	if x.Sign() == 0 {
		return new(big.Int).Set(ray)
	}

	n := big.NewInt(elapsedSeconds)
	nm1 := new(big.Int).Sub(n, big.NewInt(1))
	if nm1.Sign() < 0 {
		nm1 = big.NewInt(0)
	}
	nm2 := new(big.Int).Sub(n, big.NewInt(2))
	if nm2.Sign() < 0 {
		nm2 = big.NewInt(0)
	}

	x2 := rayMul(x, x)
	x3 := rayMul(x2, x)

	t1 := new(big.Int).Mul(n, x)

	t2 := new(big.Int).Mul(n, nm1)
	t2.Mul(t2, x2)
	t2.Quo(t2, big.NewInt(2))

	t3 := new(big.Int).Mul(n, nm1)
	t3.Mul(t3, nm2)
	t3.Mul(t3, x3)
	t3.Quo(t3, big.NewInt(6))

	factor := new(big.Int).Add(ray, t1)
	factor.Add(factor, t2)
	factor.Add(factor, t3)
	return factor
}

// compoundedPrincipal grows principal by continuous compounding at annualRate
// over elapsedSeconds. The principal is returned unchanged when no time has
// passed or the rate is zero.
func compoundedPrincipal(principal *big.Int, elapsedSeconds int64, annualRate *big.Rat) *big.Int {
	if principal == nil || principal.Sign() == 0 {
		return big.NewInt(0)
	}
	if elapsedSeconds <= 0 || annualRate == nil || annualRate.Sign() <= 0 {
		return new(big.Int).Set(principal)
	}
	factor := compoundFactor(annualRate, elapsedSeconds)
	grown := new(big.Int).Mul(principal, factor)
	grown.Add(grown, halfRay)
	grown.Quo(grown, ray)
	if grown.Cmp(principal) < 0 {
		return new(big.Int).Set(principal)
	}
	return grown
}

// amountToShares converts a pool amount into proportional-ownership shares at
// the pool's current exchange rate. The first participant receives shares 1:1.
// Shares must be minted against the pool totals as they were before the
// amount is added.
func amountToShares(totalAmount, totalShares, amount *big.Int) *big.Int {
	if amount == nil || amount.Sign() <= 0 {
		return big.NewInt(0)
	}
	if totalAmount == nil || totalAmount.Sign() == 0 {
		return new(big.Int).Set(amount)
	}
	shares := new(big.Int).Mul(amount, totalShares)
	return shares.Quo(shares, totalAmount)
}

// sharesToAmount converts shares back into pool units at the current exchange
// rate. Shares must be burned against the pool totals as they were before the
// amount is removed.
func sharesToAmount(totalShares, totalAmount, shares *big.Int) *big.Int {
	if shares == nil || shares.Sign() <= 0 {
		return big.NewInt(0)
	}
	if totalShares == nil || totalShares.Sign() == 0 {
		return new(big.Int).Set(shares)
	}
	amount := new(big.Int).Mul(shares, totalAmount)
	return amount.Quo(amount, totalShares)
}
