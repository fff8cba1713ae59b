package lockdrop

import (
	"fmt"
	"math/big"
)

// DelegateToAuction moves amount of the entry's outstanding reward entitlement
// to the auction contract. Delegation opens when deposits close and does not
// wait for the unlock time.
func (e *Engine) DelegateToAuction(user [20]byte, duration uint64, amount *big.Int) (*LockEntry, error) {
	cfg, st, err := e.load()
	if err != nil {
		return nil, err
	}
	if phase := PhaseAt(e.now(), cfg, st); phase != PhaseAwaitingMigration && phase != PhaseMigrated {
		return nil, fmt.Errorf("%w: delegation not accepted while %s", ErrPhaseViolation, phase)
	}
	if isZeroAddress(cfg.AuctionContract) {
		return nil, fmt.Errorf("%w: auction contract not set", ErrInvalidConfig)
	}
	if cfg.RewardToken == "" {
		return nil, fmt.Errorf("%w: reward token not set", ErrInvalidConfig)
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	if e.bank == nil {
		return nil, errBankNotConfigured
	}
	entry, ok, err := e.state.LockdropEntryGet(user, duration)
	if err != nil {
		return nil, err
	}
	if !ok || entry == nil {
		return nil, fmt.Errorf("%w: duration %d", ErrEntryNotFound, duration)
	}
	reward, err := RewardEntitlement(cfg.LockdropIncentives, entry.WeightedShare, st.TotalWeightedShare)
	if err != nil {
		return nil, err
	}
	if outstanding := entry.OutstandingRewards(reward); amount.Cmp(outstanding) > 0 {
		return nil, fmt.Errorf("%w: requested %s, delegable %s", ErrInvalidAmount, amount, outstanding)
	}
	if entry.RewardsDelegated, err = checkedAdd(entry.RewardsDelegated, amount); err != nil {
		return nil, err
	}
	if st.TotalRewardsDelegated, err = checkedAdd(st.TotalRewardsDelegated, amount); err != nil {
		return nil, err
	}
	if err := e.bank.Transfer(cfg.RewardToken, e.custody, cfg.AuctionContract, amount); err != nil {
		return nil, downstream("delegation transfer", err)
	}
	if err := e.state.LockdropEntryPut(entry); err != nil {
		return nil, err
	}
	if err := e.state.LockdropStatePut(st); err != nil {
		return nil, err
	}
	e.emit(DelegatedEvent(user, duration, cfg.AuctionContract, amount, entry.RewardsDelegated))
	return entry.Clone(), nil
}

// ReturnFromAuction records rewards the auction contract hands back into
// custody for an entry. Returned rewards become claimable again.
func (e *Engine) ReturnFromAuction(caller, user [20]byte, duration uint64, amount *big.Int) (*LockEntry, error) {
	cfg, st, err := e.load()
	if err != nil {
		return nil, err
	}
	if isZeroAddress(cfg.AuctionContract) {
		return nil, fmt.Errorf("%w: auction contract not set", ErrInvalidConfig)
	}
	if caller != cfg.AuctionContract {
		return nil, fmt.Errorf("%w: only the auction contract returns rewards", ErrUnauthorized)
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	if e.bank == nil {
		return nil, errBankNotConfigured
	}
	entry, ok, err := e.state.LockdropEntryGet(user, duration)
	if err != nil {
		return nil, err
	}
	if !ok || entry == nil {
		return nil, fmt.Errorf("%w: duration %d", ErrEntryNotFound, duration)
	}
	if amount.Cmp(entry.RewardsDelegated) > 0 {
		return nil, fmt.Errorf("%w: returning %s, delegated %s", ErrInvalidAmount, amount, entry.RewardsDelegated)
	}
	if entry.RewardsDelegated, err = checkedSub(entry.RewardsDelegated, amount); err != nil {
		return nil, err
	}
	if st.TotalRewardsReturned, err = checkedAdd(st.TotalRewardsReturned, amount); err != nil {
		return nil, err
	}
	if err := e.bank.Transfer(cfg.RewardToken, cfg.AuctionContract, e.custody, amount); err != nil {
		return nil, downstream("auction return transfer", err)
	}
	if err := e.state.LockdropEntryPut(entry); err != nil {
		return nil, err
	}
	if err := e.state.LockdropStatePut(st); err != nil {
		return nil, err
	}
	e.emit(ReturnedEvent(user, duration, amount, entry.RewardsDelegated))
	return entry.Clone(), nil
}
