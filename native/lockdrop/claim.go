package lockdrop

import (
	"fmt"
	"math/big"
)

// Claim settles the outstanding pool-share and reward entitlement of one lock
// entry. Claiming a settled entry transfers nothing and is not an error.
func (e *Engine) Claim(user [20]byte, duration uint64) (*ClaimResult, error) {
	cfg, st, err := e.load()
	if err != nil {
		return nil, err
	}
	now := e.now()
	if err := checkClaimsOpen(now, cfg, st); err != nil {
		return nil, err
	}
	entry, ok, err := e.state.LockdropEntryGet(user, duration)
	if err != nil {
		return nil, err
	}
	if !ok || entry == nil {
		return nil, fmt.Errorf("%w: duration %d", ErrEntryNotFound, duration)
	}
	if unlock := entry.UnlockTimestamp(cfg, st); now < unlock {
		return nil, fmt.Errorf("%w: unlocks at %d", ErrNotYetUnlocked, unlock)
	}
	res, err := e.settle(cfg, st, entry)
	if err != nil {
		return nil, err
	}
	if !res.Empty() {
		if err := e.state.LockdropStatePut(st); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// ClaimAll claims every unlocked entry of the user. Entries that are still
// locked are reported in Skipped.
func (e *Engine) ClaimAll(user [20]byte) (*ClaimSummary, error) {
	cfg, st, err := e.load()
	if err != nil {
		return nil, err
	}
	now := e.now()
	if err := checkClaimsOpen(now, cfg, st); err != nil {
		return nil, err
	}
	durations, err := e.state.LockdropUserDurations(user)
	if err != nil {
		return nil, err
	}
	if len(durations) == 0 {
		return nil, ErrEntryNotFound
	}
	summary := &ClaimSummary{
		User:            user,
		Claims:          make([]*ClaimResult, 0, len(durations)),
		TotalRewards:    big.NewInt(0),
		TotalPoolShares: big.NewInt(0),
	}
	for _, duration := range durations {
		entry, ok, err := e.state.LockdropEntryGet(user, duration)
		if err != nil {
			return nil, err
		}
		if !ok || entry == nil {
			continue
		}
		if now < entry.UnlockTimestamp(cfg, st) {
			summary.Skipped = append(summary.Skipped, duration)
			continue
		}
		res, err := e.settle(cfg, st, entry)
		if err != nil {
			return nil, err
		}
		summary.Claims = append(summary.Claims, res)
		summary.TotalRewards.Add(summary.TotalRewards, res.Rewards)
		summary.TotalPoolShares.Add(summary.TotalPoolShares, res.PoolShares)
	}
	if summary.TotalRewards.Sign() > 0 || summary.TotalPoolShares.Sign() > 0 {
		if err := e.state.LockdropStatePut(st); err != nil {
			return nil, err
		}
	}
	return summary, nil
}

func checkClaimsOpen(now int64, cfg *Config, st *State) error {
	if phase := PhaseAt(now, cfg, st); !phase.AllowsClaims() || !st.ClaimsAllowed {
		return fmt.Errorf("%w: claims not open while %s", ErrPhaseViolation, phase)
	}
	return nil
}

// settle transfers the outstanding amounts of entry and updates the entry and
// the running totals in st. The caller persists st.
func (e *Engine) settle(cfg *Config, st *State, entry *LockEntry) (*ClaimResult, error) {
	res := &ClaimResult{
		User:           entry.User,
		Duration:       entry.Duration,
		RewardToken:    cfg.RewardToken,
		Rewards:        big.NewInt(0),
		PoolShareToken: st.PoolShareToken,
		PoolShares:     big.NewInt(0),
	}
	reward, err := RewardEntitlement(cfg.LockdropIncentives, entry.WeightedShare, st.TotalWeightedShare)
	if err != nil {
		return nil, err
	}
	shares, err := PoolShareEntitlement(st.PoolSharesMinted, entry.Principal, st.TotalPrincipalMigrated)
	if err != nil {
		return nil, err
	}
	res.Rewards = entry.OutstandingRewards(reward)
	if shares.Cmp(entry.PoolSharesClaimed) > 0 {
		res.PoolShares.Sub(shares, entry.PoolSharesClaimed)
	}
	if res.Empty() {
		return res, nil
	}
	if e.bank == nil {
		return nil, errBankNotConfigured
	}
	if res.PoolShares.Sign() > 0 {
		if e.generator == nil {
			return nil, errGeneratorNotConfigured
		}
		if err := e.generator.Withdraw(cfg.Generator, e.custody, st.PoolShareToken, res.PoolShares); err != nil {
			return nil, downstream("unstake pool share", err)
		}
		if err := e.bank.Transfer(st.PoolShareToken, e.custody, entry.User, res.PoolShares); err != nil {
			return nil, downstream("pool share transfer", err)
		}
	}
	if res.Rewards.Sign() > 0 {
		if err := e.bank.Transfer(cfg.RewardToken, e.custody, entry.User, res.Rewards); err != nil {
			return nil, downstream("reward transfer", err)
		}
	}
	entry.RewardsClaimed.Add(entry.RewardsClaimed, res.Rewards)
	entry.PoolSharesClaimed.Add(entry.PoolSharesClaimed, res.PoolShares)
	if st.TotalRewardsClaimed, err = checkedAdd(st.TotalRewardsClaimed, res.Rewards); err != nil {
		return nil, err
	}
	if st.TotalPoolSharesClaimed, err = checkedAdd(st.TotalPoolSharesClaimed, res.PoolShares); err != nil {
		return nil, err
	}
	if err := e.state.LockdropEntryPut(entry); err != nil {
		return nil, err
	}
	e.emit(ClaimedEvent(res))
	return res, nil
}
