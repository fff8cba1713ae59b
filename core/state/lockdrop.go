package state

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/big"
	"sort"

	"lockdrop/native/lockdrop"
)

// RLP has no signed integers, so timestamps and windows are stored as uint64.
type storedLockdropConfig struct {
	Owner              [20]byte
	DepositToken       string
	RewardToken        string
	AuctionContract    [20]byte
	Generator          [20]byte
	Pool               [20]byte
	InitTimestamp      uint64
	DepositWindow      uint64
	WithdrawalWindow   uint64
	MinLockDuration    uint64
	MaxLockDuration    uint64
	LockUnitSeconds    uint64
	WeeklyMultiplier   uint64
	WeeklyDivider      uint64
	LockdropIncentives *big.Int
}

type storedLockdropState struct {
	TotalWeightedShare      *big.Int
	TotalPrincipalDeposited *big.Int
	TotalPrincipalMigrated  *big.Int
	PoolShareToken          string
	PoolSharesMinted        *big.Int
	MigratedAt              uint64
	ClaimsAllowed           bool
	Migrated                bool
	TotalRewardsClaimed     *big.Int
	TotalPoolSharesClaimed  *big.Int
	TotalRewardsDelegated   *big.Int `rlp:"optional"`
	TotalRewardsReturned    *big.Int `rlp:"optional"`
}

type storedLockEntry struct {
	User              [20]byte
	Duration          uint64
	Principal         *big.Int
	WeightedShare     *big.Int
	WithdrawalUsed    bool
	RewardsClaimed    *big.Int
	PoolSharesClaimed *big.Int
	RewardsDelegated  *big.Int `rlp:"optional"`
}

func toUnsigned(v int64) (uint64, error) {
	if v < 0 {
		return 0, fmt.Errorf("state: negative value %d", v)
	}
	return uint64(v), nil
}

func toSigned(v uint64) (int64, error) {
	if v > math.MaxInt64 {
		return 0, fmt.Errorf("state: value %d overflows int64", v)
	}
	return int64(v), nil
}

func bigOrZero(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

func lockdropEntryKey(user [20]byte, duration uint64) []byte {
	buf := make([]byte, 0, len(lockdropEntryPrefix)+len(user)+8)
	buf = append(buf, lockdropEntryPrefix...)
	buf = append(buf, user[:]...)
	return binary.BigEndian.AppendUint64(buf, duration)
}

func lockdropUserDurationsKey(user [20]byte) []byte {
	buf := make([]byte, 0, len(lockdropUserDurationsPrefix)+len(user))
	buf = append(buf, lockdropUserDurationsPrefix...)
	return append(buf, user[:]...)
}

// LockdropConfigGet loads the lockdrop config. The boolean reports whether the
// lockdrop has been initialised.
func (m *Manager) LockdropConfigGet() (*lockdrop.Config, bool, error) {
	var stored storedLockdropConfig
	ok, err := m.KVGet(lockdropConfigKeyBytes, &stored)
	if err != nil || !ok {
		return nil, ok, err
	}
	cfg := &lockdrop.Config{
		Owner:              stored.Owner,
		DepositToken:       stored.DepositToken,
		RewardToken:        stored.RewardToken,
		AuctionContract:    stored.AuctionContract,
		Generator:          stored.Generator,
		Pool:               stored.Pool,
		MinLockDuration:    stored.MinLockDuration,
		MaxLockDuration:    stored.MaxLockDuration,
		LockUnitSeconds:    stored.LockUnitSeconds,
		WeeklyMultiplier:   stored.WeeklyMultiplier,
		WeeklyDivider:      stored.WeeklyDivider,
		LockdropIncentives: bigOrZero(stored.LockdropIncentives),
	}
	if cfg.InitTimestamp, err = toSigned(stored.InitTimestamp); err != nil {
		return nil, false, err
	}
	if cfg.DepositWindow, err = toSigned(stored.DepositWindow); err != nil {
		return nil, false, err
	}
	if cfg.WithdrawalWindow, err = toSigned(stored.WithdrawalWindow); err != nil {
		return nil, false, err
	}
	return cfg, true, nil
}

// LockdropConfigPut stores the lockdrop config.
func (m *Manager) LockdropConfigPut(cfg *lockdrop.Config) error {
	if cfg == nil {
		return fmt.Errorf("state: lockdrop config required")
	}
	stored := storedLockdropConfig{
		Owner:              cfg.Owner,
		DepositToken:       cfg.DepositToken,
		RewardToken:        cfg.RewardToken,
		AuctionContract:    cfg.AuctionContract,
		Generator:          cfg.Generator,
		Pool:               cfg.Pool,
		MinLockDuration:    cfg.MinLockDuration,
		MaxLockDuration:    cfg.MaxLockDuration,
		LockUnitSeconds:    cfg.LockUnitSeconds,
		WeeklyMultiplier:   cfg.WeeklyMultiplier,
		WeeklyDivider:      cfg.WeeklyDivider,
		LockdropIncentives: bigOrZero(cfg.LockdropIncentives),
	}
	var err error
	if stored.InitTimestamp, err = toUnsigned(cfg.InitTimestamp); err != nil {
		return err
	}
	if stored.DepositWindow, err = toUnsigned(cfg.DepositWindow); err != nil {
		return err
	}
	if stored.WithdrawalWindow, err = toUnsigned(cfg.WithdrawalWindow); err != nil {
		return err
	}
	return m.KVPut(lockdropConfigKeyBytes, &stored)
}

// LockdropStateGet loads the lockdrop state, returning an empty state when
// none was stored.
func (m *Manager) LockdropStateGet() (*lockdrop.State, error) {
	var stored storedLockdropState
	ok, err := m.KVGet(lockdropStateKeyBytes, &stored)
	if err != nil {
		return nil, err
	}
	if !ok {
		return lockdrop.NewState(), nil
	}
	migratedAt, err := toSigned(stored.MigratedAt)
	if err != nil {
		return nil, err
	}
	st := &lockdrop.State{
		TotalWeightedShare:      stored.TotalWeightedShare,
		TotalPrincipalDeposited: stored.TotalPrincipalDeposited,
		TotalPrincipalMigrated:  stored.TotalPrincipalMigrated,
		PoolShareToken:          stored.PoolShareToken,
		PoolSharesMinted:        stored.PoolSharesMinted,
		MigratedAt:              migratedAt,
		ClaimsAllowed:           stored.ClaimsAllowed,
		Migrated:                stored.Migrated,
		TotalRewardsClaimed:     stored.TotalRewardsClaimed,
		TotalPoolSharesClaimed:  stored.TotalPoolSharesClaimed,
		TotalRewardsDelegated:   stored.TotalRewardsDelegated,
		TotalRewardsReturned:    stored.TotalRewardsReturned,
	}
	return st.Clone(), nil
}

// LockdropStatePut stores the lockdrop state.
func (m *Manager) LockdropStatePut(st *lockdrop.State) error {
	if st == nil {
		return fmt.Errorf("state: lockdrop state required")
	}
	migratedAt, err := toUnsigned(st.MigratedAt)
	if err != nil {
		return err
	}
	stored := storedLockdropState{
		TotalWeightedShare:      bigOrZero(st.TotalWeightedShare),
		TotalPrincipalDeposited: bigOrZero(st.TotalPrincipalDeposited),
		TotalPrincipalMigrated:  bigOrZero(st.TotalPrincipalMigrated),
		PoolShareToken:          st.PoolShareToken,
		PoolSharesMinted:        bigOrZero(st.PoolSharesMinted),
		MigratedAt:              migratedAt,
		ClaimsAllowed:           st.ClaimsAllowed,
		Migrated:                st.Migrated,
		TotalRewardsClaimed:     bigOrZero(st.TotalRewardsClaimed),
		TotalPoolSharesClaimed:  bigOrZero(st.TotalPoolSharesClaimed),
		TotalRewardsDelegated:   bigOrZero(st.TotalRewardsDelegated),
		TotalRewardsReturned:    bigOrZero(st.TotalRewardsReturned),
	}
	return m.KVPut(lockdropStateKeyBytes, &stored)
}

// LockdropEntryGet loads a single lock entry.
func (m *Manager) LockdropEntryGet(user [20]byte, duration uint64) (*lockdrop.LockEntry, bool, error) {
	var stored storedLockEntry
	ok, err := m.KVGet(lockdropEntryKey(user, duration), &stored)
	if err != nil || !ok {
		return nil, ok, err
	}
	entry := &lockdrop.LockEntry{
		User:              stored.User,
		Duration:          stored.Duration,
		Principal:         stored.Principal,
		WeightedShare:     stored.WeightedShare,
		WithdrawalUsed:    stored.WithdrawalUsed,
		RewardsClaimed:    stored.RewardsClaimed,
		PoolSharesClaimed: stored.PoolSharesClaimed,
		RewardsDelegated:  stored.RewardsDelegated,
	}
	return entry.Clone(), true, nil
}

// LockdropEntryPut stores a lock entry and indexes it under its user on first
// write.
func (m *Manager) LockdropEntryPut(entry *lockdrop.LockEntry) error {
	if entry == nil {
		return fmt.Errorf("state: lock entry required")
	}
	stored := storedLockEntry{
		User:              entry.User,
		Duration:          entry.Duration,
		Principal:         bigOrZero(entry.Principal),
		WeightedShare:     bigOrZero(entry.WeightedShare),
		WithdrawalUsed:    entry.WithdrawalUsed,
		RewardsClaimed:    bigOrZero(entry.RewardsClaimed),
		PoolSharesClaimed: bigOrZero(entry.PoolSharesClaimed),
		RewardsDelegated:  bigOrZero(entry.RewardsDelegated),
	}
	if err := m.KVPut(lockdropEntryKey(entry.User, entry.Duration), &stored); err != nil {
		return err
	}
	var duration [8]byte
	binary.BigEndian.PutUint64(duration[:], entry.Duration)
	if _, err := m.KVAppend(lockdropUserDurationsKey(entry.User), duration[:]); err != nil {
		return err
	}
	_, err := m.KVAppend(lockdropUsersKeyBytes, entry.User[:])
	return err
}

// LockdropUserDurations returns the durations the user holds entries for in
// ascending order.
func (m *Manager) LockdropUserDurations(user [20]byte) ([]uint64, error) {
	var raw [][]byte
	if err := m.KVGetList(lockdropUserDurationsKey(user), &raw); err != nil {
		return nil, err
	}
	out := make([]uint64, 0, len(raw))
	for _, item := range raw {
		if len(item) != 8 {
			return nil, fmt.Errorf("state: malformed duration index entry")
		}
		out = append(out, binary.BigEndian.Uint64(item))
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// LockdropUsers returns every user with at least one entry in first-deposit
// order.
func (m *Manager) LockdropUsers() ([][20]byte, error) {
	var raw [][]byte
	if err := m.KVGetList(lockdropUsersKeyBytes, &raw); err != nil {
		return nil, err
	}
	out := make([][20]byte, 0, len(raw))
	for _, item := range raw {
		if len(item) != 20 {
			return nil, fmt.Errorf("state: malformed user index entry")
		}
		var addr [20]byte
		copy(addr[:], item)
		out = append(out, addr)
	}
	return out, nil
}
