package lockdrop

import (
	"fmt"
)

// Migrate moves all locked principal into the configured pool, stakes the
// minted pool shares with the generator and opens claims. Only the owner may
// call it, exactly once, after the deposit window closed. A collaborator
// failure leaves the engine's own writes unapplied; callers running inside a
// journaled state discard the collaborators' writes as well.
func (e *Engine) Migrate(caller [20]byte) (*State, error) {
	cfg, st, err := e.load()
	if err != nil {
		return nil, err
	}
	if caller != cfg.Owner {
		return nil, ErrUnauthorized
	}
	now := e.now()
	if phase := PhaseAt(now, cfg, st); !phase.AllowsMigration() {
		return nil, fmt.Errorf("%w: migration not permitted while %s", ErrPhaseViolation, phase)
	}
	if isZeroAddress(cfg.Pool) {
		return nil, fmt.Errorf("%w: pool not configured", ErrInvalidConfig)
	}
	if isZeroAddress(cfg.Generator) {
		return nil, fmt.Errorf("%w: generator not configured", ErrInvalidConfig)
	}
	if cfg.LockdropIncentives.Sign() > 0 && cfg.RewardToken == "" {
		return nil, fmt.Errorf("%w: reward token not configured", ErrInvalidConfig)
	}

	next := st.Clone()
	total := newBigInt(st.TotalPrincipalDeposited)
	if total.Sign() > 0 {
		if e.pool == nil {
			return nil, errPoolNotConfigured
		}
		if e.generator == nil {
			return nil, errGeneratorNotConfigured
		}
		share, err := e.pool.MintPoolShare(cfg.Pool, e.custody, cfg.DepositToken, total)
		if err != nil {
			return nil, downstream("mint pool share", err)
		}
		if share.Token == "" || share.Amount == nil || share.Amount.Sign() <= 0 {
			return nil, fmt.Errorf("%w: pool minted no shares", ErrDownstreamTransferFailed)
		}
		if err := e.generator.Stake(cfg.Generator, e.custody, share.Token, share.Amount); err != nil {
			return nil, downstream("stake pool share", err)
		}
		next.PoolShareToken = normalizeToken(share.Token)
		next.PoolSharesMinted = newBigInt(share.Amount)
	}
	next.TotalPrincipalMigrated = total
	next.MigratedAt = now
	next.Migrated = true
	next.ClaimsAllowed = true
	if err := e.state.LockdropStatePut(next); err != nil {
		return nil, err
	}
	e.emit(MigratedEvent(next))
	return next.Clone(), nil
}
