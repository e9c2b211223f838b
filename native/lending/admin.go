package lending

import (
	"errors"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"lendex/core/events"
	nativecommon "lendex/native/common"
)

// AssetSpec describes a debt asset to register with the ledger.
type AssetSpec struct {
	Token                   string
	PriceKind               PriceKind
	TransferMode            TransferMode
	MinCollateralizationBps uint64
	Model                   *InterestModel
}

func (s AssetSpec) validate() error {
	if strings.TrimSpace(s.Token) == "" {
		return errors.New("lending engine: asset token required")
	}
	switch s.PriceKind {
	case PriceKindFixedStable, PriceKindIndexDerived:
	default:
		return ErrUnsupported
	}
	switch s.TransferMode {
	case TransferModeTransfer, TransferModeMint:
	default:
		return ErrUnsupported
	}
	if s.MinCollateralizationBps == 0 {
		return errors.New("lending engine: minimum collateralization ratio required")
	}
	if s.Model == nil {
		return errors.New("lending engine: interest model required")
	}
	if s.Model.KinkUtilizationBps >= 10_000 {
		return errors.New("lending engine: kink utilization must be below 100%")
	}
	return nil
}

// AddDebtAsset registers a new reserve ledger. Operator-gated.
func (e *Engine) AddDebtAsset(caller common.Address, spec AssetSpec) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if err := e.authorize(caller); err != nil {
		return err
	}
	if err := spec.validate(); err != nil {
		return err
	}

	token := normalizeSymbol(spec.Token)
	if token == e.collateralToken {
		return ErrUnsupported
	}
	existing, err := e.state.GetReserve(token)
	if err != nil {
		return err
	}
	if existing != nil {
		return ErrAlreadyRegistered
	}

	ledger := &ReserveLedger{
		Token:                   token,
		PriceKind:               spec.PriceKind,
		TransferMode:            spec.TransferMode,
		MinCollateralizationBps: spec.MinCollateralizationBps,
		Model:                   spec.Model.Clone(),
		LastAccrual:             e.now(),
	}
	ledger.ensureDefaults()
	if err := e.state.PutReserve(token, ledger); err != nil {
		return err
	}

	e.emit(interestRateEvent(token, ledger.Model))
	return nil
}

// SetMinCollateralizationRatio replaces the minimum collateralization ratio
// on a reserve. Operator-gated. The new ratio takes effect on the next
// capacity check; existing positions are not force-liquidated here.
func (e *Engine) SetMinCollateralizationRatio(caller common.Address, asset string, bps uint64) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if err := e.authorize(caller); err != nil {
		return err
	}
	if bps == 0 {
		return errors.New("lending engine: minimum collateralization ratio required")
	}

	ledger, err := e.loadReserve(asset)
	if err != nil {
		return err
	}
	e.accrue(ledger)
	ledger.MinCollateralizationBps = bps
	return e.state.PutReserve(ledger.Token, ledger)
}

// SetInterestRateModel replaces the rate model on a reserve. Operator-gated.
// Interest up to now accrues under the outgoing model; the new curve applies
// strictly going forward.
func (e *Engine) SetInterestRateModel(caller common.Address, asset string, model *InterestModel) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if err := e.authorize(caller); err != nil {
		return err
	}
	if model == nil {
		return errors.New("lending engine: interest model required")
	}
	if model.KinkUtilizationBps >= 10_000 {
		return errors.New("lending engine: kink utilization must be below 100%")
	}

	ledger, err := e.loadReserve(asset)
	if err != nil {
		return err
	}
	e.accrue(ledger)
	ledger.Model = model.Clone()
	if err := e.state.PutReserve(ledger.Token, ledger); err != nil {
		return err
	}

	e.emit(interestRateEvent(ledger.Token, ledger.Model))
	return nil
}

// DepositReserve adds liquidity to a reserve pool. Operator-gated. For
// transfer-mode assets the deposit pulls real tokens into custody; for
// mint-mode assets the reserve acts as a borrowing cap and no tokens move.
func (e *Engine) DepositReserve(caller common.Address, asset string, amount *big.Int) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if err := e.authorize(caller); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}

	ledger, err := e.loadReserve(asset)
	if err != nil {
		return err
	}
	previous := ledger.Clone()
	e.accrue(ledger)
	ledger.TotalReserve = new(big.Int).Add(ledger.TotalReserve, amount)
	if err := e.state.PutReserve(ledger.Token, ledger); err != nil {
		return err
	}

	if ledger.TransferMode == TransferModeTransfer {
		if err := e.vault.TransferFrom(ledger.Token, caller, amount); err != nil {
			return errors.Join(err, e.state.PutReserve(ledger.Token, previous))
		}
	}

	e.emit(events.ReserveDeposit{Asset: ledger.Token, Amount: new(big.Int).Set(amount)})
	return nil
}

func interestRateEvent(asset string, model *InterestModel) events.InterestRateUpdate {
	return events.InterestRateUpdate{
		Asset:    asset,
		BaseRate: RateWad(bpsRat(model.BaseRateBps)),
		KinkRate: RateWad(bpsRat(model.KinkRateBps)),
		MaxRate:  RateWad(bpsRat(model.MaxRateBps)),
	}
}
