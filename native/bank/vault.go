// Package bank implements the asset movement collaborator backing the
// lending engine: a balance table over the key-value store with a custody
// account for funds held by the protocol.
package bank

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"lendex/storage"
)

var (
	// ErrInsufficientBalance aborts a transfer or burn that exceeds the
	// source balance.
	ErrInsufficientBalance = errors.New("bank: insufficient balance")
	// ErrInvalidAmount rejects nil, zero, or negative movement amounts.
	ErrInvalidAmount = errors.New("bank: amount must be positive")
)

const balanceKeyPrefix = "bank/balance/"

// Vault tracks per-asset, per-account balances and exposes the transfer,
// mint, and burn primitives the lending engine calls into. The custody
// address holds all funds owned by the protocol itself.
type Vault struct {
	mu      sync.Mutex
	db      storage.Database
	custody common.Address
}

// NewVault constructs a vault over the given database with the protocol
// custody account.
func NewVault(db storage.Database, custody common.Address) *Vault {
	return &Vault{db: db, custody: custody}
}

// Custody returns the protocol custody address.
func (v *Vault) Custody() common.Address { return v.custody }

func balanceKey(asset string, account common.Address) []byte {
	return []byte(balanceKeyPrefix + strings.ToUpper(strings.TrimSpace(asset)) + "/" + account.Hex())
}

func (v *Vault) balance(asset string, account common.Address) (*big.Int, error) {
	raw, err := v.db.Get(balanceKey(asset, account))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return big.NewInt(0), nil
	}
	if err != nil {
		return nil, err
	}
	balance := new(big.Int)
	if err := json.Unmarshal(raw, balance); err != nil {
		return nil, fmt.Errorf("bank: decode balance: %w", err)
	}
	return balance, nil
}

func (v *Vault) setBalance(asset string, account common.Address, balance *big.Int) error {
	raw, err := json.Marshal(balance)
	if err != nil {
		return fmt.Errorf("bank: encode balance: %w", err)
	}
	return v.db.Put(balanceKey(asset, account), raw)
}

func (v *Vault) move(asset string, from, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	source, err := v.balance(asset, from)
	if err != nil {
		return err
	}
	if source.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	dest, err := v.balance(asset, to)
	if err != nil {
		return err
	}
	if err := v.setBalance(asset, from, new(big.Int).Sub(source, amount)); err != nil {
		return err
	}
	return v.setBalance(asset, to, new(big.Int).Add(dest, amount))
}

// Transfer releases custody funds to an account.
func (v *Vault) Transfer(asset string, to common.Address, amount *big.Int) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.move(asset, v.custody, to, amount)
}

// TransferFrom pulls funds from an account into custody.
func (v *Vault) TransferFrom(asset string, from common.Address, amount *big.Int) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.move(asset, from, v.custody, amount)
}

// Mint creates new units of a mintable asset for an account.
func (v *Vault) Mint(asset string, to common.Address, amount *big.Int) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	balance, err := v.balance(asset, to)
	if err != nil {
		return err
	}
	return v.setBalance(asset, to, new(big.Int).Add(balance, amount))
}

// Burn destroys units of a mintable asset held by an account.
func (v *Vault) Burn(asset string, from common.Address, amount *big.Int) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	balance, err := v.balance(asset, from)
	if err != nil {
		return err
	}
	if balance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	return v.setBalance(asset, from, new(big.Int).Sub(balance, amount))
}

// BalanceOf reports the account's balance for an asset.
func (v *Vault) BalanceOf(asset string, account common.Address) (*big.Int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.balance(asset, account)
}

// Credit seeds an account balance directly. Used at bootstrap and in tests.
func (v *Vault) Credit(asset string, account common.Address, amount *big.Int) error {
	return v.Mint(asset, account, amount)
}
