package lending

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"

	"lendex/storage"
)

const (
	assetIndexKey       = "lending/assets"
	reserveKeyPrefix    = "lending/reserve/"
	collateralKeyPrefix = "lending/collateral/"
)

// Store persists reserve ledgers and collateral positions in a key-value
// database. Records are JSON-encoded; big integers round-trip through
// encoding/json's arbitrary-precision numbers.
type Store struct {
	db storage.Database
}

// NewStore wraps a key-value database as engine state.
func NewStore(db storage.Database) *Store {
	return &Store{db: db}
}

func reserveKey(asset string) []byte {
	return []byte(reserveKeyPrefix + normalizeSymbol(asset))
}

func collateralKey(account common.Address) []byte {
	return []byte(collateralKeyPrefix + account.Hex())
}

// GetReserve loads the reserve ledger for an asset, or nil when absent.
func (s *Store) GetReserve(asset string) (*ReserveLedger, error) {
	raw, err := s.db.Get(reserveKey(asset))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	ledger := &ReserveLedger{}
	if err := json.Unmarshal(raw, ledger); err != nil {
		return nil, fmt.Errorf("lending store: decode reserve %q: %w", asset, err)
	}
	ledger.ensureDefaults()
	return ledger, nil
}

// PutReserve stores the reserve ledger and keeps the asset index current.
func (s *Store) PutReserve(asset string, ledger *ReserveLedger) error {
	if ledger == nil {
		return errors.New("lending store: nil reserve ledger")
	}
	raw, err := json.Marshal(ledger)
	if err != nil {
		return fmt.Errorf("lending store: encode reserve %q: %w", asset, err)
	}
	if err := s.db.Put(reserveKey(asset), raw); err != nil {
		return err
	}
	return s.indexAsset(normalizeSymbol(asset))
}

// ListReserveAssets returns every registered asset symbol.
func (s *Store) ListReserveAssets() ([]string, error) {
	raw, err := s.db.Get([]byte(assetIndexKey))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var assets []string
	if err := json.Unmarshal(raw, &assets); err != nil {
		return nil, fmt.Errorf("lending store: decode asset index: %w", err)
	}
	return assets, nil
}

// GetCollateral loads the collateral position for an account, or nil when
// absent.
func (s *Store) GetCollateral(account common.Address) (*CollateralPosition, error) {
	raw, err := s.db.Get(collateralKey(account))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	position := &CollateralPosition{}
	if err := json.Unmarshal(raw, position); err != nil {
		return nil, fmt.Errorf("lending store: decode collateral %s: %w", account.Hex(), err)
	}
	position.ensureDefaults()
	return position, nil
}

// PutCollateral stores the collateral position.
func (s *Store) PutCollateral(account common.Address, position *CollateralPosition) error {
	if position == nil {
		return errors.New("lending store: nil collateral position")
	}
	raw, err := json.Marshal(position)
	if err != nil {
		return fmt.Errorf("lending store: encode collateral %s: %w", account.Hex(), err)
	}
	return s.db.Put(collateralKey(account), raw)
}

func (s *Store) indexAsset(asset string) error {
	assets, err := s.ListReserveAssets()
	if err != nil {
		return err
	}
	for _, known := range assets {
		if known == asset {
			return nil
		}
	}
	assets = append(assets, asset)
	sort.Strings(assets)
	raw, err := json.Marshal(assets)
	if err != nil {
		return fmt.Errorf("lending store: encode asset index: %w", err)
	}
	return s.db.Put([]byte(assetIndexKey), raw)
}
