package lending

import (
	"errors"
	"math/big"
	"strings"
	"sync"
)

// ErrNoQuote is returned when the oracle has no price for the requested asset.
var ErrNoQuote = errors.New("lending oracle: no quote available")

// PriceOracle resolves the current index price for index-derived assets. The
// quote is fetched at call time so the ledger always prices against the
// freshest value.
type PriceOracle interface {
	CurrentIndexPrice(asset string) (Price, error)
}

// StaticOracle serves quotes from an in-memory table. It backs local
// deployments and tests; production wiring substitutes a feed-backed
// implementation.
type StaticOracle struct {
	mu     sync.RWMutex
	quotes map[string]Price
}

// NewStaticOracle constructs an empty static oracle.
func NewStaticOracle() *StaticOracle {
	return &StaticOracle{quotes: make(map[string]Price)}
}

// SetQuote installs or replaces the quote for an asset.
func (o *StaticOracle) SetQuote(asset string, value, precision *big.Int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.quotes[normalizeSymbol(asset)] = Price{
		Value:     new(big.Int).Set(value),
		Precision: new(big.Int).Set(precision),
	}
}

// CurrentIndexPrice implements the PriceOracle interface.
func (o *StaticOracle) CurrentIndexPrice(asset string) (Price, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	quote, ok := o.quotes[normalizeSymbol(asset)]
	if !ok || quote.Value == nil || quote.Value.Sign() <= 0 || quote.Precision == nil || quote.Precision.Sign() <= 0 {
		return Price{}, ErrNoQuote
	}
	return Price{
		Value:     new(big.Int).Set(quote.Value),
		Precision: new(big.Int).Set(quote.Precision),
	}, nil
}

func normalizeSymbol(asset string) string {
	return strings.ToUpper(strings.TrimSpace(asset))
}
