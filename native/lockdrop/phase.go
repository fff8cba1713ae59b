package lockdrop

// Phase enumerates the lockdrop lifecycle stages.
type Phase uint8

const (
	PhaseNotStarted Phase = iota
	// PhaseWithdrawalOpen is the leading part of the deposit window during
	// which deposits and capped withdrawals are both accepted.
	PhaseWithdrawalOpen
	// PhaseDepositOpen accepts deposits only.
	PhaseDepositOpen
	PhaseAwaitingMigration
	PhaseMigrated
)

func (p Phase) String() string {
	switch p {
	case PhaseNotStarted:
		return "not_started"
	case PhaseWithdrawalOpen:
		return "withdrawal_open"
	case PhaseDepositOpen:
		return "deposit_open"
	case PhaseAwaitingMigration:
		return "awaiting_migration"
	case PhaseMigrated:
		return "migrated"
	default:
		return "unknown"
	}
}

// AllowsDeposit reports whether deposits are accepted.
func (p Phase) AllowsDeposit() bool {
	return p == PhaseWithdrawalOpen || p == PhaseDepositOpen
}

// AllowsWithdrawal reports whether withdrawals are accepted.
func (p Phase) AllowsWithdrawal() bool { return p == PhaseWithdrawalOpen }

// AllowsMigration reports whether the administrator may migrate.
func (p Phase) AllowsMigration() bool { return p == PhaseAwaitingMigration }

// AllowsClaims reports whether the phase permits claims. Callers still have to
// check State.ClaimsAllowed.
func (p Phase) AllowsClaims() bool { return p == PhaseMigrated }

// PhaseAt derives the phase from the supplied time and records. It never
// mutates its inputs.
func PhaseAt(now int64, cfg *Config, st *State) Phase {
	if st != nil && st.Migrated {
		return PhaseMigrated
	}
	if cfg == nil {
		return PhaseNotStarted
	}
	switch {
	case now < cfg.InitTimestamp:
		return PhaseNotStarted
	case now < cfg.WithdrawalWindowEnd():
		return PhaseWithdrawalOpen
	case now < cfg.DepositWindowEnd():
		return PhaseDepositOpen
	default:
		return PhaseAwaitingMigration
	}
}
