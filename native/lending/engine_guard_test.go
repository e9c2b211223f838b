package lending

import (
	"errors"
	"testing"

	nativecommon "lendex/native/common"
)

type stubPauses struct {
	paused map[string]bool
}

func (p stubPauses) IsPaused(module string) bool { return p.paused[module] }

func TestPausedModuleBlocksMutations(t *testing.T) {
	env := newStableEnv()
	env.addAsset(t, "LUSD", 10_000, flatModel(0), inWad(10_000))
	env.post(t, testBorrower, inWad(1_000))
	env.engine.SetPauses(stubPauses{paused: map[string]bool{"lending": true}})

	checks := map[string]error{
		"post collateral":     env.engine.PostCollateral(testBorrower, inWad(1)),
		"withdraw collateral": env.engine.WithdrawCollateral(testBorrower, inWad(1)),
		"borrow":              env.engine.Borrow(testBorrower, "LUSD", inWad(1)),
		"repay":               env.engine.Repay(testBorrower, "LUSD", inWad(1)),
		"repay all":           env.engine.RepayAll(testBorrower),
		"liquidate":           env.engine.Liquidate(testOperator, testBorrower, "LUSD"),
		"deposit reserve":     env.engine.DepositReserve(testOperator, "LUSD", inWad(1)),
	}
	for name, err := range checks {
		if !errors.Is(err, nativecommon.ErrModulePaused) {
			t.Fatalf("%s: got %v want ErrModulePaused", name, err)
		}
	}
}

func TestUnpausedModuleProceeds(t *testing.T) {
	env := newStableEnv()
	env.engine.SetPauses(stubPauses{paused: map[string]bool{"other": true}})
	if err := env.engine.PostCollateral(testBorrower, inWad(1)); err != nil {
		t.Fatalf("post collateral with unrelated pause: %v", err)
	}
}
