package lockdrop

import (
	"fmt"
	"math"
	"math/big"
	"math/bits"
	"strings"
)

// DefaultLockUnitSeconds is one week, the unit the weekly multiplier and
// divider are expressed in.
const DefaultLockUnitSeconds uint64 = 7 * 24 * 60 * 60

// Config captures the lockdrop parameters. Durations ending in Window are in
// seconds while lock durations are counted in lock units.
type Config struct {
	Owner              [20]byte `json:"owner"`
	DepositToken       string   `json:"depositToken"`
	RewardToken        string   `json:"rewardToken,omitempty"`
	AuctionContract    [20]byte `json:"auctionContract"`
	Generator          [20]byte `json:"generator"`
	Pool               [20]byte `json:"pool"`
	InitTimestamp      int64    `json:"initTimestamp"`
	DepositWindow      int64    `json:"depositWindow"`
	WithdrawalWindow   int64    `json:"withdrawalWindow"`
	MinLockDuration    uint64   `json:"minLockDuration"`
	MaxLockDuration    uint64   `json:"maxLockDuration"`
	LockUnitSeconds    uint64   `json:"lockUnitSeconds"`
	WeeklyMultiplier   uint64   `json:"weeklyMultiplier"`
	WeeklyDivider      uint64   `json:"weeklyDivider"`
	LockdropIncentives *big.Int `json:"lockdropIncentives"`
}

// Clone returns a deep copy of the config.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	clone := *c
	clone.LockdropIncentives = newBigInt(c.LockdropIncentives)
	return &clone
}

// DepositWindowEnd returns the first timestamp at which deposits are closed.
func (c *Config) DepositWindowEnd() int64 { return c.InitTimestamp + c.DepositWindow }

// WithdrawalWindowEnd returns the first timestamp at which withdrawals are
// closed.
func (c *Config) WithdrawalWindowEnd() int64 { return c.InitTimestamp + c.WithdrawalWindow }

func (c *Config) checkDuration(duration uint64) error {
	if duration < c.MinLockDuration || duration > c.MaxLockDuration {
		return fmt.Errorf("%w: %d not in [%d, %d]", ErrInvalidDuration, duration, c.MinLockDuration, c.MaxLockDuration)
	}
	return nil
}

// SanitizeConfig validates the supplied config and returns a normalised copy
// with defaults applied.
func SanitizeConfig(cfg *Config) (*Config, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: config required", ErrInvalidConfig)
	}
	out := cfg.Clone()
	out.DepositToken = normalizeToken(out.DepositToken)
	out.RewardToken = normalizeToken(out.RewardToken)
	if out.LockUnitSeconds == 0 {
		out.LockUnitSeconds = DefaultLockUnitSeconds
	}
	switch {
	case isZeroAddress(out.Owner):
		return nil, fmt.Errorf("%w: owner required", ErrInvalidConfig)
	case out.DepositToken == "":
		return nil, fmt.Errorf("%w: deposit token required", ErrInvalidConfig)
	case out.InitTimestamp < 0:
		return nil, fmt.Errorf("%w: init timestamp must not be negative", ErrInvalidConfig)
	case out.DepositWindow <= 0:
		return nil, fmt.Errorf("%w: deposit window must be positive", ErrInvalidConfig)
	case out.WithdrawalWindow <= 0:
		return nil, fmt.Errorf("%w: withdrawal window must be positive", ErrInvalidConfig)
	case out.WithdrawalWindow > out.DepositWindow:
		return nil, fmt.Errorf("%w: withdrawal window exceeds deposit window", ErrInvalidConfig)
	case out.MinLockDuration == 0:
		return nil, fmt.Errorf("%w: min lock duration must be positive", ErrInvalidConfig)
	case out.MinLockDuration > out.MaxLockDuration:
		return nil, fmt.Errorf("%w: min lock duration exceeds max", ErrInvalidConfig)
	case out.WeeklyDivider == 0:
		return nil, fmt.Errorf("%w: weekly divider must be positive", ErrInvalidConfig)
	case out.LockdropIncentives.Sign() < 0:
		return nil, fmt.Errorf("%w: incentives must not be negative", ErrInvalidConfig)
	}
	if out.InitTimestamp > math.MaxInt64-out.DepositWindow {
		return nil, fmt.Errorf("%w: deposit window end overflows", ErrInvalidConfig)
	}
	// The longest lock must unlock at a representable time when migration
	// happens right at the deposit window end.
	if out.MaxLockDuration > uint64(math.MaxInt64-out.DepositWindowEnd())/out.LockUnitSeconds {
		return nil, fmt.Errorf("%w: max lock duration overflows", ErrInvalidConfig)
	}
	if _, err := ScaledWeight(out, out.MaxLockDuration); err != nil {
		return nil, fmt.Errorf("%w: weight coefficient overflows", ErrInvalidConfig)
	}
	return out, nil
}

// State is the singleton accumulator mutated by deposits, migration and
// claims.
type State struct {
	TotalWeightedShare      *big.Int `json:"totalWeightedShare"`
	TotalPrincipalDeposited *big.Int `json:"totalPrincipalDeposited"`
	TotalPrincipalMigrated  *big.Int `json:"totalPrincipalMigrated"`
	PoolShareToken          string   `json:"poolShareToken,omitempty"`
	PoolSharesMinted        *big.Int `json:"poolSharesMinted"`
	MigratedAt              int64    `json:"migratedAt"`
	ClaimsAllowed           bool     `json:"claimsAllowed"`
	Migrated                bool     `json:"migrated"`
	TotalRewardsClaimed     *big.Int `json:"totalRewardsClaimed"`
	TotalPoolSharesClaimed  *big.Int `json:"totalPoolSharesClaimed"`
	TotalRewardsDelegated   *big.Int `json:"totalRewardsDelegated"`
	TotalRewardsReturned    *big.Int `json:"totalRewardsReturned"`
}

// NewState returns an empty state with all counters initialised.
func NewState() *State {
	return (&State{}).Clone()
}

// Clone returns a deep copy of the state with nil counters replaced by zero.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	clone := *s
	clone.TotalWeightedShare = newBigInt(s.TotalWeightedShare)
	clone.TotalPrincipalDeposited = newBigInt(s.TotalPrincipalDeposited)
	clone.TotalPrincipalMigrated = newBigInt(s.TotalPrincipalMigrated)
	clone.PoolSharesMinted = newBigInt(s.PoolSharesMinted)
	clone.TotalRewardsClaimed = newBigInt(s.TotalRewardsClaimed)
	clone.TotalPoolSharesClaimed = newBigInt(s.TotalPoolSharesClaimed)
	clone.TotalRewardsDelegated = newBigInt(s.TotalRewardsDelegated)
	clone.TotalRewardsReturned = newBigInt(s.TotalRewardsReturned)
	return &clone
}

// PrincipalHeld returns the principal still in lockdrop custody.
func (s *State) PrincipalHeld() *big.Int {
	return new(big.Int).Sub(newBigInt(s.TotalPrincipalDeposited), newBigInt(s.TotalPrincipalMigrated))
}

// LockEntry is one user's position in one lock-duration bucket.
type LockEntry struct {
	User              [20]byte `json:"user"`
	Duration          uint64   `json:"duration"`
	Principal         *big.Int `json:"principal"`
	WeightedShare     *big.Int `json:"weightedShare"`
	WithdrawalUsed    bool     `json:"withdrawalUsed"`
	RewardsClaimed    *big.Int `json:"rewardsClaimed"`
	PoolSharesClaimed *big.Int `json:"poolSharesClaimed"`
	RewardsDelegated  *big.Int `json:"rewardsDelegated"`
}

func newLockEntry(user [20]byte, duration uint64) *LockEntry {
	return (&LockEntry{User: user, Duration: duration}).Clone()
}

// Clone returns a deep copy of the entry with nil amounts replaced by zero.
func (e *LockEntry) Clone() *LockEntry {
	if e == nil {
		return nil
	}
	clone := *e
	clone.Principal = newBigInt(e.Principal)
	clone.WeightedShare = newBigInt(e.WeightedShare)
	clone.RewardsClaimed = newBigInt(e.RewardsClaimed)
	clone.PoolSharesClaimed = newBigInt(e.PoolSharesClaimed)
	clone.RewardsDelegated = newBigInt(e.RewardsDelegated)
	return &clone
}

// UnlockTimestamp returns migration time plus the lock duration, or zero
// while migration has not happened. Unlock times past the int64 range
// saturate at math.MaxInt64.
func (e *LockEntry) UnlockTimestamp(cfg *Config, st *State) int64 {
	if e == nil || cfg == nil || st == nil || !st.Migrated {
		return 0
	}
	hi, lockSeconds := bits.Mul64(e.Duration, cfg.LockUnitSeconds)
	if hi != 0 || st.MigratedAt < 0 || lockSeconds > uint64(math.MaxInt64-st.MigratedAt) {
		return math.MaxInt64
	}
	return st.MigratedAt + int64(lockSeconds)
}

// OutstandingRewards returns the part of reward that has been neither claimed
// nor delegated.
func (e *LockEntry) OutstandingRewards(reward *big.Int) *big.Int {
	out := newBigInt(reward)
	if e == nil {
		return out
	}
	out.Sub(out, newBigInt(e.RewardsClaimed))
	out.Sub(out, newBigInt(e.RewardsDelegated))
	if out.Sign() < 0 {
		return big.NewInt(0)
	}
	return out
}

// HeldPrincipal returns the principal still held in custody for the entry.
// After migration the principal has moved into the pool and the entry only
// keeps it as the basis for its pool-share entitlement.
func (e *LockEntry) HeldPrincipal(st *State) *big.Int {
	if e == nil || (st != nil && st.Migrated) {
		return big.NewInt(0)
	}
	return newBigInt(e.Principal)
}

// ConfigPatch lists the administrator-updatable fields. Nil fields are left
// untouched.
type ConfigPatch struct {
	RewardToken        *string
	AuctionContract    *[20]byte
	Generator          *[20]byte
	Pool               *[20]byte
	LockdropIncentives *big.Int
}

func (p ConfigPatch) empty() bool {
	return p.RewardToken == nil && p.AuctionContract == nil && p.Generator == nil &&
		p.Pool == nil && p.LockdropIncentives == nil
}

// ClaimResult reports the amounts transferred by a single claim.
type ClaimResult struct {
	User           [20]byte `json:"user"`
	Duration       uint64   `json:"duration"`
	RewardToken    string   `json:"rewardToken,omitempty"`
	Rewards        *big.Int `json:"rewards"`
	PoolShareToken string   `json:"poolShareToken,omitempty"`
	PoolShares     *big.Int `json:"poolShares"`
}

// Empty reports whether the claim moved nothing.
func (r *ClaimResult) Empty() bool {
	return r == nil || (r.Rewards.Sign() == 0 && r.PoolShares.Sign() == 0)
}

// ClaimSummary aggregates the claims performed by ClaimAll.
type ClaimSummary struct {
	User            [20]byte       `json:"user"`
	Claims          []*ClaimResult `json:"claims"`
	TotalRewards    *big.Int       `json:"totalRewards"`
	TotalPoolShares *big.Int       `json:"totalPoolShares"`
	Skipped         []uint64       `json:"skipped,omitempty"`
}

// EntryInfo is the read-only projection of a lock entry.
type EntryInfo struct {
	Duration             uint64   `json:"duration"`
	Principal            *big.Int `json:"principal"`
	WeightedShare        *big.Int `json:"weightedShare"`
	WithdrawalUsed       bool     `json:"withdrawalUsed"`
	MaxWithdrawable      *big.Int `json:"maxWithdrawable"`
	UnlockTimestamp      int64    `json:"unlockTimestamp"`
	Unlocked             bool     `json:"unlocked"`
	RewardEntitlement    *big.Int `json:"rewardEntitlement"`
	RewardsClaimed       *big.Int `json:"rewardsClaimed"`
	RewardsDelegated     *big.Int `json:"rewardsDelegated"`
	ClaimableRewards     *big.Int `json:"claimableRewards"`
	PoolShareEntitlement *big.Int `json:"poolShareEntitlement"`
	PoolSharesClaimed    *big.Int `json:"poolSharesClaimed"`
	ClaimablePoolShares  *big.Int `json:"claimablePoolShares"`
}

// UserInfo aggregates every lock entry of a user.
type UserInfo struct {
	User                   [20]byte     `json:"user"`
	Entries                []*EntryInfo `json:"entries"`
	TotalPrincipal         *big.Int     `json:"totalPrincipal"`
	TotalWeightedShare     *big.Int     `json:"totalWeightedShare"`
	TotalRewards           *big.Int     `json:"totalRewards"`
	TotalRewardsClaimed    *big.Int     `json:"totalRewardsClaimed"`
	TotalRewardsDelegated  *big.Int     `json:"totalRewardsDelegated"`
	TotalPoolShares        *big.Int     `json:"totalPoolShares"`
	TotalPoolSharesClaimed *big.Int     `json:"totalPoolSharesClaimed"`
}

func normalizeToken(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

func newBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

func isZeroAddress(addr [20]byte) bool {
	var zero [20]byte
	return addr == zero
}
