package lockdrop

import (
	"math/big"
)

// Config returns a copy of the stored config.
func (e *Engine) Config() (*Config, error) {
	cfg, _, err := e.load()
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// State returns a copy of the stored state.
func (e *Engine) State() (*State, error) {
	_, st, err := e.load()
	if err != nil {
		return nil, err
	}
	return st, nil
}

// Phase returns the phase at the engine's current time.
func (e *Engine) Phase() (Phase, error) {
	cfg, st, err := e.load()
	if err != nil {
		return PhaseNotStarted, err
	}
	return PhaseAt(e.now(), cfg, st), nil
}

// UserInfo projects every lock entry of user. Before migration reward
// entitlements are estimates against the current total weight.
func (e *Engine) UserInfo(user [20]byte) (*UserInfo, error) {
	cfg, st, err := e.load()
	if err != nil {
		return nil, err
	}
	now := e.now()
	durations, err := e.state.LockdropUserDurations(user)
	if err != nil {
		return nil, err
	}
	info := &UserInfo{
		User:                   user,
		Entries:                make([]*EntryInfo, 0, len(durations)),
		TotalPrincipal:         big.NewInt(0),
		TotalWeightedShare:     big.NewInt(0),
		TotalRewards:           big.NewInt(0),
		TotalRewardsClaimed:    big.NewInt(0),
		TotalRewardsDelegated:  big.NewInt(0),
		TotalPoolShares:        big.NewInt(0),
		TotalPoolSharesClaimed: big.NewInt(0),
	}
	phase := PhaseAt(now, cfg, st)
	for _, duration := range durations {
		entry, ok, err := e.state.LockdropEntryGet(user, duration)
		if err != nil {
			return nil, err
		}
		if !ok || entry == nil {
			continue
		}
		projected, err := projectEntry(now, phase, cfg, st, entry)
		if err != nil {
			return nil, err
		}
		info.Entries = append(info.Entries, projected)
		info.TotalPrincipal.Add(info.TotalPrincipal, projected.Principal)
		info.TotalWeightedShare.Add(info.TotalWeightedShare, projected.WeightedShare)
		info.TotalRewards.Add(info.TotalRewards, projected.RewardEntitlement)
		info.TotalRewardsClaimed.Add(info.TotalRewardsClaimed, projected.RewardsClaimed)
		info.TotalRewardsDelegated.Add(info.TotalRewardsDelegated, projected.RewardsDelegated)
		info.TotalPoolShares.Add(info.TotalPoolShares, projected.PoolShareEntitlement)
		info.TotalPoolSharesClaimed.Add(info.TotalPoolSharesClaimed, projected.PoolSharesClaimed)
	}
	return info, nil
}

func projectEntry(now int64, phase Phase, cfg *Config, st *State, entry *LockEntry) (*EntryInfo, error) {
	out := &EntryInfo{
		Duration:             entry.Duration,
		Principal:            newBigInt(entry.Principal),
		WeightedShare:        newBigInt(entry.WeightedShare),
		WithdrawalUsed:       entry.WithdrawalUsed,
		MaxWithdrawable:      big.NewInt(0),
		UnlockTimestamp:      entry.UnlockTimestamp(cfg, st),
		RewardsClaimed:       newBigInt(entry.RewardsClaimed),
		RewardsDelegated:     newBigInt(entry.RewardsDelegated),
		ClaimableRewards:     big.NewInt(0),
		PoolShareEntitlement: big.NewInt(0),
		PoolSharesClaimed:    newBigInt(entry.PoolSharesClaimed),
		ClaimablePoolShares:  big.NewInt(0),
	}
	if phase.AllowsWithdrawal() && !entry.WithdrawalUsed {
		limit, err := MaxWithdrawable(cfg, entry.Principal, now)
		if err != nil {
			return nil, err
		}
		out.MaxWithdrawable = limit
	}
	reward, err := RewardEntitlement(cfg.LockdropIncentives, entry.WeightedShare, st.TotalWeightedShare)
	if err != nil {
		return nil, err
	}
	out.RewardEntitlement = reward
	if !st.Migrated {
		return out, nil
	}
	shares, err := PoolShareEntitlement(st.PoolSharesMinted, entry.Principal, st.TotalPrincipalMigrated)
	if err != nil {
		return nil, err
	}
	out.PoolShareEntitlement = shares
	out.Unlocked = now >= out.UnlockTimestamp
	if out.Unlocked && st.ClaimsAllowed {
		out.ClaimableRewards = entry.OutstandingRewards(reward)
		if shares.Cmp(entry.PoolSharesClaimed) > 0 {
			out.ClaimablePoolShares.Sub(shares, entry.PoolSharesClaimed)
		}
	}
	return out, nil
}

// Entries returns every lock entry across all users in index order.
func (e *Engine) Entries() ([]*LockEntry, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	users, err := e.state.LockdropUsers()
	if err != nil {
		return nil, err
	}
	var out []*LockEntry
	for _, user := range users {
		durations, err := e.state.LockdropUserDurations(user)
		if err != nil {
			return nil, err
		}
		for _, duration := range durations {
			entry, ok, err := e.state.LockdropEntryGet(user, duration)
			if err != nil {
				return nil, err
			}
			if ok && entry != nil {
				out = append(out, entry)
			}
		}
	}
	return out, nil
}

// RoundingDust returns the reward and pool-share amounts that floor rounding
// leaves undistributed across all entries.
func (e *Engine) RoundingDust() (rewards *big.Int, poolShares *big.Int, err error) {
	cfg, st, err := e.load()
	if err != nil {
		return nil, nil, err
	}
	entries, err := e.Entries()
	if err != nil {
		return nil, nil, err
	}
	rewardShares := make([]*big.Int, 0, len(entries))
	poolShareParts := make([]*big.Int, 0, len(entries))
	for _, entry := range entries {
		reward, err := RewardEntitlement(cfg.LockdropIncentives, entry.WeightedShare, st.TotalWeightedShare)
		if err != nil {
			return nil, nil, err
		}
		rewardShares = append(rewardShares, reward)
		if st.Migrated {
			shares, err := PoolShareEntitlement(st.PoolSharesMinted, entry.Principal, st.TotalPrincipalMigrated)
			if err != nil {
				return nil, nil, err
			}
			poolShareParts = append(poolShareParts, shares)
		}
	}
	rewardBudget := big.NewInt(0)
	if st.TotalWeightedShare.Sign() > 0 {
		rewardBudget = newBigInt(cfg.LockdropIncentives)
	}
	return RoundingDust(rewardBudget, rewardShares), RoundingDust(st.PoolSharesMinted, poolShareParts), nil
}
