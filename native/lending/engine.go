package lending

import (
	"errors"
	"math/big"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"lendex/core/events"
	nativecommon "lendex/native/common"
)

const moduleName = "lending"

// engineState is the persistence boundary for the ledger. Reserve ledgers are
// keyed by normalized asset symbol; collateral positions by account.
// Implementations return (nil, nil) for absent records.
type engineState interface {
	GetReserve(asset string) (*ReserveLedger, error)
	PutReserve(asset string, ledger *ReserveLedger) error
	ListReserveAssets() ([]string, error)
	GetCollateral(account common.Address) (*CollateralPosition, error)
	PutCollateral(account common.Address, position *CollateralPosition) error
}

// AssetVault moves underlying tokens on the engine's behalf. Transfer releases
// custody funds, TransferFrom pulls funds into custody, and Mint/Burn cover
// mintable debt assets. Any failure aborts the surrounding operation.
type AssetVault interface {
	Transfer(asset string, to common.Address, amount *big.Int) error
	TransferFrom(asset string, from common.Address, amount *big.Int) error
	Mint(asset string, to common.Address, amount *big.Int) error
	Burn(asset string, from common.Address, amount *big.Int) error
}

// OperatorSet gates the privileged entry points.
type OperatorSet interface {
	IsAuthorizedOperator(account common.Address) bool
}

// Engine orchestrates the primary state transitions for the lending module.
//
// Every mutating entry point follows the same discipline: validate, accrue the
// touched reserve ledgers, persist all ledger and collateral updates, and only
// then call into the asset vault. The vault is the one collaborator that could
// re-enter the engine, so it must always observe fully-updated state. If the
// vault call fails the persisted records are restored from pre-call clones so
// the operation leaves no partial effect.
type Engine struct {
	state     engineState
	vault     AssetVault
	oracle    PriceOracle
	operators OperatorSet
	emitter   events.Emitter
	pauses    nativecommon.PauseView

	collateralToken     string
	collateralPriceKind PriceKind
	collector           common.Address

	nowFn func() int64
}

// NewEngine constructs a lending engine for the given collateral token. The
// collector receives collateral seized during liquidations.
func NewEngine(collateralToken string, collateralPriceKind PriceKind, collector common.Address) *Engine {
	return &Engine{
		collateralToken:     normalizeSymbol(collateralToken),
		collateralPriceKind: collateralPriceKind,
		collector:           collector,
		emitter:             events.NoopEmitter{},
		nowFn:               func() int64 { return time.Now().Unix() },
	}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetVault wires the asset movement collaborator.
func (e *Engine) SetVault(vault AssetVault) { e.vault = vault }

// SetOracle wires the price feed used for index-derived assets.
func (e *Engine) SetOracle(oracle PriceOracle) { e.oracle = oracle }

// SetOperators wires the capability check for privileged operations.
func (e *Engine) SetOperators(operators OperatorSet) { e.operators = operators }

// SetEmitter wires the audit event sink.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	e.emitter = emitter
}

func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// SetTimeSource overrides the clock used for accrual. Intended for tests and
// deterministic replay.
func (e *Engine) SetTimeSource(now func() int64) {
	if e == nil || now == nil {
		return
	}
	e.nowFn = now
}

// CollateralToken returns the symbol of the single supported collateral asset.
func (e *Engine) CollateralToken() string { return e.collateralToken }

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.vault == nil {
		return errNilVault
	}
	return nil
}

func (e *Engine) now() int64 { return e.nowFn() }

func (e *Engine) emit(event events.Event) {
	if e.emitter != nil {
		e.emitter.Emit(event)
	}
}

func (e *Engine) authorize(caller common.Address) error {
	if e.operators != nil && e.operators.IsAuthorizedOperator(caller) {
		return nil
	}
	return ErrNotAuthorized
}

func (e *Engine) loadReserve(asset string) (*ReserveLedger, error) {
	ledger, err := e.state.GetReserve(normalizeSymbol(asset))
	if err != nil {
		return nil, err
	}
	if ledger == nil {
		return nil, ErrUnsupported
	}
	ledger.ensureDefaults()
	return ledger, nil
}

func (e *Engine) loadCollateral(account common.Address) (*CollateralPosition, error) {
	position, err := e.state.GetCollateral(account)
	if err != nil {
		return nil, err
	}
	if position == nil {
		position = &CollateralPosition{Account: account}
	}
	position.ensureDefaults()
	return position, nil
}

func (e *Engine) priceOf(asset string, kind PriceKind) (Price, error) {
	if kind == PriceKindFixedStable {
		return FixedStablePrice(), nil
	}
	if e.oracle == nil {
		return Price{}, ErrNoQuote
	}
	return e.oracle.CurrentIndexPrice(asset)
}

func (e *Engine) collateralPrice() (Price, error) {
	return e.priceOf(e.collateralToken, e.collateralPriceKind)
}

// accrue advances the pool totals to the current timestamp. With no shares
// outstanding nothing is owed, so only the timestamp moves. Accrual is lazy:
// it runs at the top of every entry point that reads or mutates the pool,
// never on a schedule.
func (e *Engine) accrue(ledger *ReserveLedger) {
	now := e.now()
	if ledger.TotalShares.Sign() == 0 {
		ledger.LastAccrual = now
		return
	}
	elapsed := now - ledger.LastAccrual
	if elapsed <= 0 {
		return
	}
	rate := ledger.Model.BorrowRate(ledger.TotalBorrow, ledger.TotalReserve)
	grown := compoundedPrincipal(ledger.TotalBorrow, elapsed, rate)
	interest := new(big.Int).Sub(grown, ledger.TotalBorrow)
	if interest.Sign() > 0 {
		// Interest is credited to the reserve as well so utilization keeps
		// reflecting earned interest.
		ledger.TotalBorrow = new(big.Int).Add(ledger.TotalBorrow, interest)
		ledger.TotalReserve = new(big.Int).Add(ledger.TotalReserve, interest)
	}
	ledger.LastAccrual = now
}

// maxBorrowCapacity converts posted collateral into the largest debt the
// minimum collateralization ratio allows. Multiplications happen before the
// single final division so precision is lost only once.
func maxBorrowCapacity(collateral *big.Int, collPrice, debtPrice Price, minRatioBps uint64) *big.Int {
	if collateral == nil || collateral.Sign() <= 0 || minRatioBps == 0 {
		return big.NewInt(0)
	}
	num := new(big.Int).Mul(collateral, collPrice.Value)
	num.Mul(num, debtPrice.Precision)
	num.Mul(num, basisPoints)
	den := new(big.Int).Mul(debtPrice.Value, collPrice.Precision)
	den.Mul(den, new(big.Int).SetUint64(minRatioBps))
	if den.Sign() == 0 {
		return big.NewInt(0)
	}
	return num.Quo(num, den)
}

func (e *Engine) accountOwed(ledger *ReserveLedger, account common.Address) *big.Int {
	return sharesToAmount(ledger.TotalShares, ledger.TotalBorrow, ledger.sharesOf(account))
}

func (e *Engine) releaseFunds(ledger *ReserveLedger, to common.Address, amount *big.Int) error {
	switch ledger.TransferMode {
	case TransferModeTransfer:
		return e.vault.Transfer(ledger.Token, to, amount)
	case TransferModeMint:
		return e.vault.Mint(ledger.Token, to, amount)
	default:
		return ErrUnsupported
	}
}

func (e *Engine) recoverFunds(ledger *ReserveLedger, from common.Address, amount *big.Int) error {
	switch ledger.TransferMode {
	case TransferModeTransfer:
		return e.vault.TransferFrom(ledger.Token, from, amount)
	case TransferModeMint:
		return e.vault.Burn(ledger.Token, from, amount)
	default:
		return ErrUnsupported
	}
}

// PostCollateral locks collateral for an account inside the ledger's custody.
func (e *Engine) PostCollateral(account common.Address, amount *big.Int) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}

	position, err := e.loadCollateral(account)
	if err != nil {
		return err
	}
	previous := position.Clone()

	position.Amount = new(big.Int).Add(position.Amount, amount)
	if err := e.state.PutCollateral(account, position); err != nil {
		return err
	}

	if err := e.vault.TransferFrom(e.collateralToken, account, amount); err != nil {
		return errors.Join(err, e.state.PutCollateral(account, previous))
	}

	e.emit(events.CollateralPosted{Account: account, Amount: new(big.Int).Set(amount)})
	return nil
}

// Borrow releases funds from a reserve against the account's posted
// collateral. Shares are minted at the exchange rate in effect before the
// borrow mutates the pool.
func (e *Engine) Borrow(account common.Address, asset string, amount *big.Int) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
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

	owed := e.accountOwed(ledger, account)
	position, err := e.loadCollateral(account)
	if err != nil {
		return err
	}
	collPrice, err := e.collateralPrice()
	if err != nil {
		return err
	}
	debtPrice, err := e.priceOf(ledger.Token, ledger.PriceKind)
	if err != nil {
		return err
	}

	capacity := maxBorrowCapacity(position.Amount, collPrice, debtPrice, ledger.MinCollateralizationBps)
	capacity.Sub(capacity, owed)
	if capacity.Sign() < 0 {
		capacity.SetInt64(0)
	}
	if amount.Cmp(capacity) > 0 {
		return &InsufficientCollateralError{Capacity: capacity, Requested: new(big.Int).Set(amount)}
	}

	available := new(big.Int).Sub(ledger.TotalReserve, ledger.TotalBorrow)
	if amount.Cmp(available) > 0 {
		return ErrInsufficientLiquidity
	}

	minted := amountToShares(ledger.TotalBorrow, ledger.TotalShares, amount)
	if minted.Sign() == 0 {
		minted = big.NewInt(1)
	}
	ledger.AccountShares[account] = new(big.Int).Add(ledger.sharesOf(account), minted)
	ledger.TotalShares = new(big.Int).Add(ledger.TotalShares, minted)
	ledger.TotalBorrow = new(big.Int).Add(ledger.TotalBorrow, amount)

	if err := e.state.PutReserve(ledger.Token, ledger); err != nil {
		return err
	}

	if err := e.releaseFunds(ledger, account, amount); err != nil {
		return errors.Join(err, e.state.PutReserve(ledger.Token, previous))
	}

	e.emit(events.Borrow{Account: account, Asset: ledger.Token, Amount: new(big.Int).Set(amount)})
	return nil
}

// Repay pays down the account's freshly accrued debt. Repaying more than is
// owed is rejected with the current owed amount attached so the caller can
// retry exactly.
func (e *Engine) Repay(account common.Address, asset string, amount *big.Int) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
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

	shares := ledger.sharesOf(account)
	owed := sharesToAmount(ledger.TotalShares, ledger.TotalBorrow, shares)
	if amount.Cmp(owed) > 0 {
		return &ExceededBorrowedAmountError{Owed: owed, Requested: new(big.Int).Set(amount)}
	}

	// A full repayment burns the entire share balance so truncation dust
	// cannot strand an empty position.
	var burned *big.Int
	if amount.Cmp(owed) == 0 {
		burned = shares
	} else {
		burned = amountToShares(ledger.TotalBorrow, ledger.TotalShares, amount)
		if burned.Cmp(shares) > 0 {
			burned = shares
		}
	}

	remainder := new(big.Int).Sub(ledger.sharesOf(account), burned)
	if remainder.Sign() > 0 {
		ledger.AccountShares[account] = remainder
	} else {
		delete(ledger.AccountShares, account)
	}
	ledger.TotalShares = new(big.Int).Sub(ledger.TotalShares, burned)
	ledger.TotalBorrow = new(big.Int).Sub(ledger.TotalBorrow, amount)

	if err := e.state.PutReserve(ledger.Token, ledger); err != nil {
		return err
	}

	if err := e.recoverFunds(ledger, account, amount); err != nil {
		return errors.Join(err, e.state.PutReserve(ledger.Token, previous))
	}

	e.emit(events.Repay{Account: account, Asset: ledger.Token, Amount: new(big.Int).Set(amount)})
	return nil
}

// RepayAll settles the account's outstanding debt on every registered asset.
// It is a convenience composition over Repay.
func (e *Engine) RepayAll(account common.Address) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}

	assets, err := e.listAssetsSorted()
	if err != nil {
		return err
	}
	for _, asset := range assets {
		owed, err := e.AccountDebt(asset, account)
		if err != nil {
			return err
		}
		if owed.Sign() == 0 {
			continue
		}
		if err := e.Repay(account, asset, owed); err != nil {
			return err
		}
	}
	return nil
}

// WithdrawCollateral releases posted collateral after verifying that every
// registered debt position stays above its minimum ratio with the reduced
// balance. One shared collateral balance backs all per-asset debt, so the
// scan must cover every asset before any value leaves custody.
func (e *Engine) WithdrawCollateral(account common.Address, amount *big.Int) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}

	position, err := e.loadCollateral(account)
	if err != nil {
		return err
	}
	if amount.Cmp(position.Amount) > 0 {
		return &ExceededCollateralAmountError{Posted: new(big.Int).Set(position.Amount), Requested: new(big.Int).Set(amount)}
	}
	remaining := new(big.Int).Sub(position.Amount, amount)

	collPrice, err := e.collateralPrice()
	if err != nil {
		return err
	}

	assets, err := e.listAssetsSorted()
	if err != nil {
		return err
	}
	type accrual struct {
		ledger   *ReserveLedger
		previous *ReserveLedger
	}
	accruals := make([]accrual, 0, len(assets))
	for _, asset := range assets {
		ledger, err := e.loadReserve(asset)
		if err != nil {
			return err
		}
		previous := ledger.Clone()
		e.accrue(ledger)
		owed := e.accountOwed(ledger, account)
		if owed.Sign() > 0 {
			debtPrice, err := e.priceOf(ledger.Token, ledger.PriceKind)
			if err != nil {
				return err
			}
			capacity := maxBorrowCapacity(remaining, collPrice, debtPrice, ledger.MinCollateralizationBps)
			if owed.Cmp(capacity) > 0 {
				return ErrWillUnderCollateralize
			}
		}
		accruals = append(accruals, accrual{ledger: ledger, previous: previous})
	}

	for _, a := range accruals {
		if err := e.state.PutReserve(a.ledger.Token, a.ledger); err != nil {
			return err
		}
	}
	previousPosition := position.Clone()
	position.Amount = remaining
	if err := e.state.PutCollateral(account, position); err != nil {
		return err
	}

	if err := e.vault.Transfer(e.collateralToken, account, amount); err != nil {
		restore := e.state.PutCollateral(account, previousPosition)
		for _, a := range accruals {
			restore = errors.Join(restore, e.state.PutReserve(a.previous.Token, a.previous))
		}
		return errors.Join(err, restore)
	}

	e.emit(events.CollateralWithdrawn{Account: account, Amount: new(big.Int).Set(amount)})
	return nil
}

// Liquidate seizes collateral from an under-collateralized debtor and wipes
// the debtor's position on every registered debt asset. The wipe-all scope is
// deliberate policy: mixed-asset exposure is resolved in one stroke rather
// than leaving residual positions behind. Seized collateral goes to the
// configured collector.
func (e *Engine) Liquidate(operator, debtor common.Address, asset string) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if err := e.authorize(operator); err != nil {
		return err
	}

	ledger, err := e.loadReserve(asset)
	if err != nil {
		return err
	}
	previousTrigger := ledger.Clone()
	e.accrue(ledger)

	owed := e.accountOwed(ledger, debtor)
	if owed.Sign() == 0 {
		return ErrOverCollateralized
	}

	position, err := e.loadCollateral(debtor)
	if err != nil {
		return err
	}
	collPrice, err := e.collateralPrice()
	if err != nil {
		return err
	}
	debtPrice, err := e.priceOf(ledger.Token, ledger.PriceKind)
	if err != nil {
		return err
	}

	// currentRatio >= minRatio, compared cross-multiplied so truncation
	// happens nowhere.
	lhs := new(big.Int).Mul(position.Amount, collPrice.Value)
	lhs.Mul(lhs, debtPrice.Precision)
	lhs.Mul(lhs, basisPoints)
	rhs := new(big.Int).Mul(owed, debtPrice.Value)
	rhs.Mul(rhs, collPrice.Precision)
	rhs.Mul(rhs, new(big.Int).SetUint64(ledger.MinCollateralizationBps))
	if lhs.Cmp(rhs) >= 0 {
		return ErrOverCollateralized
	}

	seized := new(big.Int).Mul(owed, debtPrice.Value)
	seized.Mul(seized, collPrice.Precision)
	den := new(big.Int).Mul(collPrice.Value, debtPrice.Precision)
	seized.Quo(seized, den)
	if seized.Cmp(position.Amount) > 0 {
		seized = new(big.Int).Set(position.Amount)
	}

	assets, err := e.listAssetsSorted()
	if err != nil {
		return err
	}
	type wiped struct {
		ledger   *ReserveLedger
		previous *ReserveLedger
	}
	wipes := make([]wiped, 0, len(assets))
	for _, symbol := range assets {
		target := ledger
		previous := previousTrigger
		if symbol != ledger.Token {
			loaded, err := e.loadReserve(symbol)
			if err != nil {
				return err
			}
			previous = loaded.Clone()
			e.accrue(loaded)
			target = loaded
		}
		shares := target.sharesOf(debtor)
		if shares.Sign() > 0 {
			owedHere := sharesToAmount(target.TotalShares, target.TotalBorrow, shares)
			target.TotalShares = new(big.Int).Sub(target.TotalShares, shares)
			target.TotalBorrow = new(big.Int).Sub(target.TotalBorrow, owedHere)
			delete(target.AccountShares, debtor)
		}
		wipes = append(wipes, wiped{ledger: target, previous: previous})
	}

	for _, w := range wipes {
		if err := e.state.PutReserve(w.ledger.Token, w.ledger); err != nil {
			return err
		}
	}
	previousPosition := position.Clone()
	position.Amount = new(big.Int).Sub(position.Amount, seized)
	if err := e.state.PutCollateral(debtor, position); err != nil {
		return err
	}

	if err := e.vault.Transfer(e.collateralToken, e.collector, seized); err != nil {
		restore := e.state.PutCollateral(debtor, previousPosition)
		for _, w := range wipes {
			restore = errors.Join(restore, e.state.PutReserve(w.previous.Token, w.previous))
		}
		return errors.Join(err, restore)
	}

	e.emit(events.Liquidated{
		Account:          debtor,
		Asset:            ledger.Token,
		DebtAmount:       owed,
		CollateralSeized: new(big.Int).Set(seized),
	})
	return nil
}

func (e *Engine) listAssetsSorted() ([]string, error) {
	assets, err := e.state.ListReserveAssets()
	if err != nil {
		return nil, err
	}
	sort.Strings(assets)
	return assets, nil
}
