package lending

import (
	"errors"
	"math/big"
	"testing"
)

func TestAddDebtAssetRejectsNonOperator(t *testing.T) {
	env := newStableEnv()
	spec := AssetSpec{
		Token:                   "LUSD",
		PriceKind:               PriceKindFixedStable,
		TransferMode:            TransferModeTransfer,
		MinCollateralizationBps: 10_000,
		Model:                   flatModel(0),
	}
	if err := env.engine.AddDebtAsset(testStranger, spec); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("got %v want ErrNotAuthorized", err)
	}
}

func TestAddDebtAssetRejectsDuplicate(t *testing.T) {
	env := newStableEnv()
	env.addAsset(t, "LUSD", 10_000, flatModel(0), nil)

	spec := AssetSpec{
		Token:                   "lusd",
		PriceKind:               PriceKindFixedStable,
		TransferMode:            TransferModeTransfer,
		MinCollateralizationBps: 10_000,
		Model:                   flatModel(0),
	}
	if err := env.engine.AddDebtAsset(testOperator, spec); !errors.Is(err, ErrAlreadyRegistered) {
		t.Fatalf("got %v want ErrAlreadyRegistered", err)
	}
}

func TestAddDebtAssetRejectsCollateralToken(t *testing.T) {
	env := newStableEnv()
	spec := AssetSpec{
		Token:                   "CUSD",
		PriceKind:               PriceKindFixedStable,
		TransferMode:            TransferModeTransfer,
		MinCollateralizationBps: 10_000,
		Model:                   flatModel(0),
	}
	if err := env.engine.AddDebtAsset(testOperator, spec); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("got %v want ErrUnsupported", err)
	}
}

func TestAddDebtAssetValidatesSpec(t *testing.T) {
	env := newStableEnv()
	base := AssetSpec{
		Token:                   "LUSD",
		PriceKind:               PriceKindFixedStable,
		TransferMode:            TransferModeTransfer,
		MinCollateralizationBps: 10_000,
		Model:                   flatModel(0),
	}

	missingRatio := base
	missingRatio.MinCollateralizationBps = 0
	if err := env.engine.AddDebtAsset(testOperator, missingRatio); err == nil {
		t.Fatalf("expected error for missing ratio")
	}

	badKink := base
	badKink.Model = NewInterestModel(0, 0, 0, 10_000)
	if err := env.engine.AddDebtAsset(testOperator, badKink); err == nil {
		t.Fatalf("expected error for kink at 100%%")
	}

	badMode := base
	badMode.TransferMode = "teleport"
	if err := env.engine.AddDebtAsset(testOperator, badMode); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("got %v want ErrUnsupported", err)
	}
}

func TestSetMinCollateralizationRatioChangesCapacity(t *testing.T) {
	env := newStableEnv()
	env.addAsset(t, "LUSD", 10_000, flatModel(0), inWad(100_000))
	env.post(t, testBorrower, inWad(1_200))

	capacity, err := env.engine.MaxBorrowCapacity("LUSD", testBorrower)
	if err != nil {
		t.Fatalf("capacity: %v", err)
	}
	if capacity.Cmp(inWad(1_200)) != 0 {
		t.Fatalf("capacity at 100%%: got %s want %s", capacity, inWad(1_200))
	}

	if err := env.engine.SetMinCollateralizationRatio(testOperator, "LUSD", 12_000); err != nil {
		t.Fatalf("set ratio: %v", err)
	}
	capacity, err = env.engine.MaxBorrowCapacity("LUSD", testBorrower)
	if err != nil {
		t.Fatalf("capacity: %v", err)
	}
	if capacity.Cmp(inWad(1_000)) != 0 {
		t.Fatalf("capacity at 120%%: got %s want %s", capacity, inWad(1_000))
	}

	if err := env.engine.SetMinCollateralizationRatio(testStranger, "LUSD", 11_000); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("got %v want ErrNotAuthorized", err)
	}
}

func TestSetInterestRateModelAccruesUnderOutgoingModel(t *testing.T) {
	env := newStableEnv()
	env.addAsset(t, "LUSD", 10_000, flatModel(1_000), inWad(100_000))
	env.post(t, testBorrower, inWad(10_000))
	if err := env.engine.Borrow(testBorrower, "LUSD", inWad(1_000)); err != nil {
		t.Fatalf("borrow: %v", err)
	}
	env.now += secondsPerYear

	// Swapping to a zero-rate model settles the year of 10% interest first.
	if err := env.engine.SetInterestRateModel(testOperator, "LUSD", flatModel(0)); err != nil {
		t.Fatalf("set model: %v", err)
	}
	afterSwap, err := env.engine.AccountDebt("LUSD", testBorrower)
	if err != nil {
		t.Fatalf("account debt: %v", err)
	}
	if afterSwap.Cmp(inWad(1_000)) <= 0 {
		t.Fatalf("interest under outgoing model not settled: %s", afterSwap)
	}

	// Under the zero-rate model the debt stops growing.
	env.now += secondsPerYear
	later, err := env.engine.AccountDebt("LUSD", testBorrower)
	if err != nil {
		t.Fatalf("account debt: %v", err)
	}
	if later.Cmp(afterSwap) != 0 {
		t.Fatalf("debt grew under zero-rate model: %s -> %s", afterSwap, later)
	}
}

func TestDepositReservePullsTransferModeFunds(t *testing.T) {
	env := newStableEnv()
	env.addAsset(t, "LUSD", 10_000, flatModel(0), nil)

	if err := env.engine.DepositReserve(testOperator, "LUSD", inWad(5_000)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	snapshot, err := env.engine.ReserveSnapshot("LUSD")
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snapshot.TotalReserve.Cmp(inWad(5_000)) != 0 {
		t.Fatalf("reserve: got %s want %s", snapshot.TotalReserve, inWad(5_000))
	}
	want := new(big.Int).Neg(inWad(5_000))
	if got := env.vault.balanceOf("LUSD", testOperator); got.Cmp(want) != 0 {
		t.Fatalf("operator balance: got %s want %s", got, want)
	}

	if err := env.engine.DepositReserve(testStranger, "LUSD", inWad(1)); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("got %v want ErrNotAuthorized", err)
	}
}

func TestDepositReserveMintModeMovesNoTokens(t *testing.T) {
	env := newStableEnv()
	spec := AssetSpec{
		Token:                   "MUSD",
		PriceKind:               PriceKindFixedStable,
		TransferMode:            TransferModeMint,
		MinCollateralizationBps: 10_000,
		Model:                   flatModel(0),
	}
	if err := env.engine.AddDebtAsset(testOperator, spec); err != nil {
		t.Fatalf("add asset: %v", err)
	}

	if err := env.engine.DepositReserve(testOperator, "MUSD", inWad(5_000)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if got := env.vault.balanceOf("MUSD", testOperator); got.Sign() != 0 {
		t.Fatalf("mint-mode deposit moved tokens: %s", got)
	}

	// Mint-mode borrows mint straight to the borrower against the cap.
	env.post(t, testBorrower, inWad(1_000))
	if err := env.engine.Borrow(testBorrower, "MUSD", inWad(500)); err != nil {
		t.Fatalf("borrow: %v", err)
	}
	if got := env.vault.balanceOf("MUSD", testBorrower); got.Cmp(inWad(500)) != 0 {
		t.Fatalf("minted balance: got %s want %s", got, inWad(500))
	}
}
