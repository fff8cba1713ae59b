package config

import (
	"fmt"
	"math/big"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"lockdrop/core"
	"lockdrop/crypto"
	"lockdrop/native/lockdrop"
	"lockdrop/native/pool"
)

// CustodyAlias names the lockdrop custody account in allocations.
const CustodyAlias = "custody"

// Duration wraps time.Duration to support YAML unmarshalling.
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses human readable duration strings.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value == nil {
		return nil
	}
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration must be string")
	}
	raw := value.Value
	if raw == "" {
		d.Duration = 0
		return nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	d.Duration = parsed
	return nil
}

// seconds returns the whole-second length of the duration.
func (d Duration) seconds(field string) (int64, error) {
	if d.Duration%time.Second != 0 {
		return 0, fmt.Errorf("%s must be a whole number of seconds", field)
	}
	return int64(d.Duration / time.Second), nil
}

// LockdropFile captures the lockdrop instantiation parameters and the genesis
// state that backs them.
type LockdropFile struct {
	Owner            string           `yaml:"owner"`
	DepositToken     string           `yaml:"deposit_token"`
	RewardToken      string           `yaml:"reward_token"`
	AuctionContract  string           `yaml:"auction_contract"`
	Generator        string           `yaml:"generator"`
	Pool             PoolFile         `yaml:"pool"`
	InitTime         string           `yaml:"init_time"`
	DepositWindow    Duration         `yaml:"deposit_window"`
	WithdrawalWindow Duration         `yaml:"withdrawal_window"`
	MinLockDuration  uint64           `yaml:"min_lock_duration"`
	MaxLockDuration  uint64           `yaml:"max_lock_duration"`
	LockUnit         Duration         `yaml:"lock_unit"`
	WeeklyMultiplier uint64           `yaml:"weekly_multiplier"`
	WeeklyDivider    uint64           `yaml:"weekly_divider"`
	Incentives       string           `yaml:"incentives"`
	Tokens           []TokenFile      `yaml:"tokens"`
	Allocations      []AllocationFile `yaml:"allocations"`
}

type PoolFile struct {
	Address          string `yaml:"address"`
	ShareToken       string `yaml:"share_token"`
	RatioNumerator   uint64 `yaml:"ratio_numerator"`
	RatioDenominator uint64 `yaml:"ratio_denominator"`
}

type TokenFile struct {
	Symbol   string `yaml:"symbol"`
	Name     string `yaml:"name"`
	Decimals uint8  `yaml:"decimals"`
}

type AllocationFile struct {
	Token   string `yaml:"token"`
	Address string `yaml:"address"`
	Amount  string `yaml:"amount"`
}

// LoadLockdrop reads lockdrop parameters from the supplied path.
func LoadLockdrop(path string) (*LockdropFile, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open lockdrop file: %w", err)
	}
	defer file.Close()
	cfg := &LockdropFile{}
	dec := yaml.NewDecoder(file)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("decode lockdrop file: %w", err)
	}
	applyLockdropDefaults(cfg)
	return cfg, nil
}

func applyLockdropDefaults(cfg *LockdropFile) {
	if cfg.LockUnit.Duration == 0 {
		cfg.LockUnit.Duration = time.Duration(lockdrop.DefaultLockUnitSeconds) * time.Second
	}
	if cfg.MinLockDuration == 0 {
		cfg.MinLockDuration = 1
	}
	if cfg.WeeklyDivider == 0 {
		cfg.WeeklyDivider = 1
	}
	if cfg.Pool.RatioNumerator == 0 && cfg.Pool.RatioDenominator == 0 {
		cfg.Pool.RatioNumerator, cfg.Pool.RatioDenominator = 1, 1
	}
}

func parseOptionalAddress(field, raw string) ([20]byte, error) {
	if strings.TrimSpace(raw) == "" {
		return [20]byte{}, nil
	}
	addr, err := crypto.ParseAddress(raw)
	if err != nil {
		return [20]byte{}, fmt.Errorf("%s: %w", field, err)
	}
	return addr, nil
}

func parseAmount(field, raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return big.NewInt(0), nil
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok || amount.Sign() < 0 {
		return nil, fmt.Errorf("%s: invalid amount %q", field, raw)
	}
	return amount, nil
}

// Config converts the file into an engine config. Validation of the lockdrop
// invariants is left to lockdrop.SanitizeConfig.
func (f *LockdropFile) Config() (*lockdrop.Config, error) {
	owner, err := crypto.ParseAddress(f.Owner)
	if err != nil {
		return nil, fmt.Errorf("owner: %w", err)
	}
	auction, err := parseOptionalAddress("auction_contract", f.AuctionContract)
	if err != nil {
		return nil, err
	}
	generator, err := parseOptionalAddress("generator", f.Generator)
	if err != nil {
		return nil, err
	}
	poolAddr, err := parseOptionalAddress("pool.address", f.Pool.Address)
	if err != nil {
		return nil, err
	}
	initTime, err := time.Parse(time.RFC3339, strings.TrimSpace(f.InitTime))
	if err != nil {
		return nil, fmt.Errorf("init_time: %w", err)
	}
	depositWindow, err := f.DepositWindow.seconds("deposit_window")
	if err != nil {
		return nil, err
	}
	withdrawalWindow, err := f.WithdrawalWindow.seconds("withdrawal_window")
	if err != nil {
		return nil, err
	}
	lockUnit, err := f.LockUnit.seconds("lock_unit")
	if err != nil {
		return nil, err
	}
	if lockUnit <= 0 {
		return nil, fmt.Errorf("lock_unit must be positive")
	}
	incentives, err := parseAmount("incentives", f.Incentives)
	if err != nil {
		return nil, err
	}
	cfg := &lockdrop.Config{
		Owner:              owner,
		DepositToken:       f.DepositToken,
		RewardToken:        f.RewardToken,
		AuctionContract:    auction,
		Generator:          generator,
		Pool:               poolAddr,
		InitTimestamp:      initTime.Unix(),
		DepositWindow:      depositWindow,
		WithdrawalWindow:   withdrawalWindow,
		MinLockDuration:    f.MinLockDuration,
		MaxLockDuration:    f.MaxLockDuration,
		LockUnitSeconds:    uint64(lockUnit),
		WeeklyMultiplier:   f.WeeklyMultiplier,
		WeeklyDivider:      f.WeeklyDivider,
		LockdropIncentives: incentives,
	}
	return lockdrop.SanitizeConfig(cfg)
}

// Genesis builds the node genesis: tokens, the migration pool when an
// address is configured, and balance allocations. The custody alias resolves
// to the lockdrop custody account, which is how the reward budget is funded.
func (f *LockdropFile) Genesis() (*core.Genesis, error) {
	cfg, err := f.Config()
	if err != nil {
		return nil, err
	}
	g := &core.Genesis{Lockdrop: cfg}
	for i, token := range f.Tokens {
		symbol := strings.TrimSpace(token.Symbol)
		if symbol == "" {
			return nil, fmt.Errorf("tokens[%d]: symbol required", i)
		}
		name := strings.TrimSpace(token.Name)
		if name == "" {
			name = symbol
		}
		g.Tokens = append(g.Tokens, core.Token{Symbol: symbol, Name: name, Decimals: token.Decimals})
	}
	var zero [20]byte
	if cfg.Pool != zero {
		g.Pool = &pool.Definition{
			Address:          cfg.Pool,
			Asset:            cfg.DepositToken,
			ShareToken:       f.Pool.ShareToken,
			RatioNumerator:   f.Pool.RatioNumerator,
			RatioDenominator: f.Pool.RatioDenominator,
		}
	}
	for i, alloc := range f.Allocations {
		field := fmt.Sprintf("allocations[%d]", i)
		var addr [20]byte
		if strings.EqualFold(strings.TrimSpace(alloc.Address), CustodyAlias) {
			addr = lockdrop.ModuleAddress()
		} else {
			parsed, err := crypto.ParseAddress(alloc.Address)
			if err != nil {
				return nil, fmt.Errorf("%s.address: %w", field, err)
			}
			addr = parsed
		}
		amount, err := parseAmount(field+".amount", alloc.Amount)
		if err != nil {
			return nil, err
		}
		if amount.Sign() == 0 {
			return nil, fmt.Errorf("%s.amount must be positive", field)
		}
		g.Allocations = append(g.Allocations, core.Allocation{Token: alloc.Token, Address: addr, Amount: amount})
	}
	return g, nil
}
