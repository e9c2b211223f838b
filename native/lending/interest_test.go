package lending

import (
	"math/big"
	"testing"
)

func testModel() *InterestModel {
	// 5% base, 20% at an 80% kink, 75% at full utilization.
	return NewInterestModel(500, 2_000, 7_500, 8_000)
}

func TestUtilizationEmptyPool(t *testing.T) {
	model := testModel()
	if u := model.Utilization(big.NewInt(0), big.NewInt(1_000)); u.Sign() != 0 {
		t.Fatalf("no borrows: got %s want 0", u)
	}
	if u := model.Utilization(big.NewInt(100), big.NewInt(0)); u.Sign() != 0 {
		t.Fatalf("empty reserve: got %s want 0", u)
	}
	if u := model.Utilization(big.NewInt(500), big.NewInt(1_000)); u.Cmp(big.NewRat(1, 2)) != 0 {
		t.Fatalf("half utilization: got %s want 1/2", u)
	}
}

func TestBorrowRateAtZeroUtilization(t *testing.T) {
	rate := testModel().BorrowRate(big.NewInt(0), big.NewInt(1_000))
	if rate.Cmp(big.NewRat(1, 20)) != 0 {
		t.Fatalf("got %s want 1/20", rate)
	}
}

func TestBorrowRateBelowKink(t *testing.T) {
	// Utilization 40% is halfway to the kink, so the rate is halfway from
	// the base rate to the kink rate: 12.5%.
	rate := testModel().BorrowRate(big.NewInt(400), big.NewInt(1_000))
	if rate.Cmp(big.NewRat(1, 8)) != 0 {
		t.Fatalf("got %s want 1/8", rate)
	}
}

func TestBorrowRateAtKink(t *testing.T) {
	rate := testModel().BorrowRate(big.NewInt(800), big.NewInt(1_000))
	if rate.Cmp(big.NewRat(1, 5)) != 0 {
		t.Fatalf("got %s want 1/5", rate)
	}
}

func TestBorrowRateAboveKink(t *testing.T) {
	// Utilization 90% is halfway through the second segment: 20% + half of
	// the 55 point climb to the max rate.
	rate := testModel().BorrowRate(big.NewInt(900), big.NewInt(1_000))
	if rate.Cmp(big.NewRat(19, 40)) != 0 {
		t.Fatalf("got %s want 19/40", rate)
	}
}

func TestBorrowRateAtFullUtilization(t *testing.T) {
	rate := testModel().BorrowRate(big.NewInt(1_000), big.NewInt(1_000))
	if rate.Cmp(big.NewRat(3, 4)) != 0 {
		t.Fatalf("got %s want 3/4", rate)
	}
}

func TestBorrowRateFlatModel(t *testing.T) {
	model := NewInterestModel(1_000, 1_000, 1_000, 5_000)
	for _, borrow := range []int64{0, 250, 500, 999} {
		rate := model.BorrowRate(big.NewInt(borrow), big.NewInt(1_000))
		if rate.Cmp(big.NewRat(1, 10)) != 0 {
			t.Fatalf("utilization %d/1000: got %s want 1/10", borrow, rate)
		}
	}
}

func TestRateWad(t *testing.T) {
	got := RateWad(big.NewRat(1, 8))
	want, _ := new(big.Int).SetString("125000000000000000", 10)
	if got.Cmp(want) != 0 {
		t.Fatalf("got %s want %s", got, want)
	}
	if got := RateWad(nil); got.Sign() != 0 {
		t.Fatalf("nil rate: got %s want 0", got)
	}
}
