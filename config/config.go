package config

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/ethereum/go-ethereum/common"

	"lendex/native/lending"
)

// Config captures the runtime configuration for the lending ledger daemon.
type Config struct {
	DataDir          string      `toml:"DataDir"`
	Environment      string      `toml:"Environment"`
	LogFile          string      `toml:"LogFile"`
	CollateralToken  string      `toml:"CollateralToken"`
	CollateralPrice  string      `toml:"CollateralPriceKind"`
	CustodyAddress   string      `toml:"CustodyAddress"`
	CollectorAddress string      `toml:"CollectorAddress"`
	Operators        []string    `toml:"Operators"`
	DebtAssets       []DebtAsset `toml:"DebtAsset"`
	Oracle           []Quote     `toml:"OracleQuote"`
}

// DebtAsset describes one reserve to register at startup.
type DebtAsset struct {
	Symbol                  string `toml:"Symbol"`
	PriceKind               string `toml:"PriceKind"`
	TransferMode            string `toml:"TransferMode"`
	MinCollateralizationBps uint64 `toml:"MinCollateralizationBps"`
	BaseRateBps             uint64 `toml:"BaseRateBps"`
	KinkRateBps             uint64 `toml:"KinkRateBps"`
	MaxRateBps              uint64 `toml:"MaxRateBps"`
	KinkUtilizationBps      uint64 `toml:"KinkUtilizationBps"`
}

// Quote seeds the static oracle for local deployments.
type Quote struct {
	Symbol    string `toml:"Symbol"`
	Price     int64  `toml:"Price"`
	Precision int64  `toml:"Precision"`
}

// Load reads the configuration from the given path and validates it.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) normalize() {
	c.DataDir = strings.TrimSpace(c.DataDir)
	if c.DataDir == "" {
		c.DataDir = "./lendex-data"
	}
	c.Environment = strings.TrimSpace(c.Environment)
	c.CollateralToken = strings.ToUpper(strings.TrimSpace(c.CollateralToken))
	c.CollateralPrice = strings.ToLower(strings.TrimSpace(c.CollateralPrice))
	if c.CollateralPrice == "" {
		c.CollateralPrice = string(lending.PriceKindIndexDerived)
	}
	for i := range c.DebtAssets {
		c.DebtAssets[i].Symbol = strings.ToUpper(strings.TrimSpace(c.DebtAssets[i].Symbol))
		c.DebtAssets[i].PriceKind = strings.ToLower(strings.TrimSpace(c.DebtAssets[i].PriceKind))
		c.DebtAssets[i].TransferMode = strings.ToLower(strings.TrimSpace(c.DebtAssets[i].TransferMode))
	}
	for i := range c.Oracle {
		c.Oracle[i].Symbol = strings.ToUpper(strings.TrimSpace(c.Oracle[i].Symbol))
	}
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	if c.CollateralToken == "" {
		return fmt.Errorf("config: CollateralToken is required")
	}
	if !validPriceKind(c.CollateralPrice) {
		return fmt.Errorf("config: unknown CollateralPriceKind %q", c.CollateralPrice)
	}
	if _, err := parseAddress(c.CustodyAddress); err != nil {
		return fmt.Errorf("config: CustodyAddress: %w", err)
	}
	if _, err := parseAddress(c.CollectorAddress); err != nil {
		return fmt.Errorf("config: CollectorAddress: %w", err)
	}
	for _, raw := range c.Operators {
		if _, err := parseAddress(raw); err != nil {
			return fmt.Errorf("config: Operators: %w", err)
		}
	}
	seen := make(map[string]bool, len(c.DebtAssets))
	for _, asset := range c.DebtAssets {
		if asset.Symbol == "" {
			return fmt.Errorf("config: DebtAsset requires a Symbol")
		}
		if seen[asset.Symbol] {
			return fmt.Errorf("config: duplicate DebtAsset %q", asset.Symbol)
		}
		seen[asset.Symbol] = true
		if asset.Symbol == c.CollateralToken {
			return fmt.Errorf("config: DebtAsset %q conflicts with the collateral token", asset.Symbol)
		}
		if !validPriceKind(asset.PriceKind) {
			return fmt.Errorf("config: DebtAsset %q: unknown PriceKind %q", asset.Symbol, asset.PriceKind)
		}
		if asset.TransferMode != string(lending.TransferModeTransfer) && asset.TransferMode != string(lending.TransferModeMint) {
			return fmt.Errorf("config: DebtAsset %q: unknown TransferMode %q", asset.Symbol, asset.TransferMode)
		}
		if asset.MinCollateralizationBps == 0 {
			return fmt.Errorf("config: DebtAsset %q: MinCollateralizationBps is required", asset.Symbol)
		}
		if asset.KinkUtilizationBps >= 10_000 {
			return fmt.Errorf("config: DebtAsset %q: KinkUtilizationBps must be below 10000", asset.Symbol)
		}
	}
	for _, quote := range c.Oracle {
		if quote.Symbol == "" || quote.Price <= 0 || quote.Precision <= 0 {
			return fmt.Errorf("config: OracleQuote requires Symbol, positive Price and Precision")
		}
	}
	return nil
}

func validPriceKind(kind string) bool {
	return kind == string(lending.PriceKindFixedStable) || kind == string(lending.PriceKindIndexDerived)
}

func parseAddress(raw string) (common.Address, error) {
	trimmed := strings.TrimSpace(raw)
	if !common.IsHexAddress(trimmed) {
		return common.Address{}, fmt.Errorf("invalid address %q", raw)
	}
	return common.HexToAddress(trimmed), nil
}

// CustodyAccount returns the parsed custody address.
func (c *Config) CustodyAccount() common.Address {
	addr, _ := parseAddress(c.CustodyAddress)
	return addr
}

// CollectorAccount returns the parsed collector address.
func (c *Config) CollectorAccount() common.Address {
	addr, _ := parseAddress(c.CollectorAddress)
	return addr
}

// OperatorAccounts returns the parsed operator allow-list.
func (c *Config) OperatorAccounts() []common.Address {
	operators := make([]common.Address, 0, len(c.Operators))
	for _, raw := range c.Operators {
		if addr, err := parseAddress(raw); err == nil {
			operators = append(operators, addr)
		}
	}
	return operators
}

// AssetSpec converts a configured debt asset into the engine's registration
// form.
func (a DebtAsset) AssetSpec() lending.AssetSpec {
	return lending.AssetSpec{
		Token:                   a.Symbol,
		PriceKind:               lending.PriceKind(a.PriceKind),
		TransferMode:            lending.TransferMode(a.TransferMode),
		MinCollateralizationBps: a.MinCollateralizationBps,
		Model: lending.NewInterestModel(
			a.BaseRateBps,
			a.KinkRateBps,
			a.MaxRateBps,
			a.KinkUtilizationBps,
		),
	}
}
