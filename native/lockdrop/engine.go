package lockdrop

import (
	"fmt"
	"math/big"
	"time"

	"lockdrop/core/events"
	"lockdrop/core/types"
)

type engineState interface {
	LockdropConfigGet() (*Config, bool, error)
	LockdropConfigPut(cfg *Config) error
	LockdropStateGet() (*State, error)
	LockdropStatePut(st *State) error
	LockdropEntryGet(user [20]byte, duration uint64) (*LockEntry, bool, error)
	LockdropEntryPut(entry *LockEntry) error
	LockdropUserDurations(user [20]byte) ([]uint64, error)
	LockdropUsers() ([][20]byte, error)
}

// Engine implements the lockdrop state machine on top of an injected state
// backend and token collaborators.
type Engine struct {
	state     engineState
	bank      Bank
	pool      LiquidityPool
	generator Generator
	emitter   events.Emitter
	nowFn     func() int64
	custody   [20]byte
}

// NewEngine constructs a lockdrop engine with default dependencies. Custody
// defaults to ModuleAddress.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn: func() int64 {
			return time.Now().Unix()
		},
		custody: ModuleAddress(),
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetBank configures the token ledger used for custody transfers.
func (e *Engine) SetBank(bank Bank) { e.bank = bank }

// SetPool configures the liquidity pool used during migration.
func (e *Engine) SetPool(pool LiquidityPool) { e.pool = pool }

// SetGenerator configures the staking system that holds pool shares.
func (e *Engine) SetGenerator(generator Generator) { e.generator = generator }

// SetEmitter configures the event emitter used by the engine.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source used for deterministic testing.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetCustody overrides the account holding lockdrop funds.
func (e *Engine) SetCustody(addr [20]byte) { e.custody = addr }

// Custody returns the account holding lockdrop funds.
func (e *Engine) Custody() [20]byte { return e.custody }

func (e *Engine) emit(evt *types.Event) {
	if e == nil || evt == nil || e.emitter == nil {
		return
	}
	e.emitter.Emit(WrapEvent(evt))
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) load() (*Config, *State, error) {
	if e == nil || e.state == nil {
		return nil, nil, ErrNilState
	}
	cfg, ok, err := e.state.LockdropConfigGet()
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, ErrNotInitialized
	}
	st, err := e.state.LockdropStateGet()
	if err != nil {
		return nil, nil, err
	}
	if st == nil {
		st = NewState()
	}
	return cfg, st, nil
}

func downstream(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrDownstreamTransferFailed, op, err)
}

// Initialize stores the validated config and an empty state. It may only run
// once.
func (e *Engine) Initialize(cfg *Config) (*Config, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	sanitized, err := SanitizeConfig(cfg)
	if err != nil {
		return nil, err
	}
	if _, exists, err := e.state.LockdropConfigGet(); err != nil {
		return nil, err
	} else if exists {
		return nil, fmt.Errorf("%w: lockdrop already initialised", ErrAlreadySet)
	}
	if err := e.state.LockdropConfigPut(sanitized); err != nil {
		return nil, err
	}
	if err := e.state.LockdropStatePut(NewState()); err != nil {
		return nil, err
	}
	e.emit(InitializedEvent(sanitized))
	return sanitized.Clone(), nil
}

// Deposit locks amount of the deposit token for duration lock units. The
// tokens move from the user into custody before the ledger is updated.
func (e *Engine) Deposit(user [20]byte, duration uint64, amount *big.Int) (*LockEntry, error) {
	cfg, st, err := e.load()
	if err != nil {
		return nil, err
	}
	if phase := PhaseAt(e.now(), cfg, st); !phase.AllowsDeposit() {
		return nil, fmt.Errorf("%w: deposits not accepted while %s", ErrPhaseViolation, phase)
	}
	if err := cfg.checkDuration(duration); err != nil {
		return nil, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	if e.bank == nil {
		return nil, errBankNotConfigured
	}
	weighted, err := WeightedShare(cfg, amount, duration)
	if err != nil {
		return nil, err
	}
	entry, ok, err := e.state.LockdropEntryGet(user, duration)
	if err != nil {
		return nil, err
	}
	if !ok || entry == nil {
		entry = newLockEntry(user, duration)
	}
	if entry.Principal, err = checkedAdd(entry.Principal, amount); err != nil {
		return nil, err
	}
	if entry.WeightedShare, err = checkedAdd(entry.WeightedShare, weighted); err != nil {
		return nil, err
	}
	if st.TotalPrincipalDeposited, err = checkedAdd(st.TotalPrincipalDeposited, amount); err != nil {
		return nil, err
	}
	if st.TotalWeightedShare, err = checkedAdd(st.TotalWeightedShare, weighted); err != nil {
		return nil, err
	}
	if err := e.bank.Transfer(cfg.DepositToken, user, e.custody, amount); err != nil {
		return nil, downstream("deposit transfer", err)
	}
	if err := e.state.LockdropEntryPut(entry); err != nil {
		return nil, err
	}
	if err := e.state.LockdropStatePut(st); err != nil {
		return nil, err
	}
	e.emit(DepositedEvent(user, duration, amount, entry.Principal, entry.WeightedShare))
	return entry.Clone(), nil
}

// Withdraw returns principal to the user during the withdrawal window. Each
// entry allows a single withdrawal bounded by the decaying cap.
func (e *Engine) Withdraw(user [20]byte, duration uint64, amount *big.Int) (*LockEntry, error) {
	cfg, st, err := e.load()
	if err != nil {
		return nil, err
	}
	now := e.now()
	if phase := PhaseAt(now, cfg, st); !phase.AllowsWithdrawal() {
		return nil, fmt.Errorf("%w: withdrawals not accepted while %s", ErrPhaseViolation, phase)
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
		return nil, fmt.Errorf("%w: no lock for duration %d", ErrInsufficientPrincipal, duration)
	}
	if entry.WithdrawalUsed {
		return nil, ErrAlreadyWithdrawn
	}
	if amount.Cmp(entry.Principal) > 0 {
		return nil, fmt.Errorf("%w: requested %s, locked %s", ErrInsufficientPrincipal, amount, entry.Principal)
	}
	limit, err := MaxWithdrawable(cfg, entry.Principal, now)
	if err != nil {
		return nil, err
	}
	if amount.Cmp(limit) > 0 {
		return nil, fmt.Errorf("%w: requested %s, withdrawable %s", ErrInsufficientPrincipal, amount, limit)
	}
	weighted, err := WeightedShare(cfg, amount, duration)
	if err != nil {
		return nil, err
	}
	if entry.Principal, err = checkedSub(entry.Principal, amount); err != nil {
		return nil, err
	}
	if entry.WeightedShare, err = checkedSub(entry.WeightedShare, weighted); err != nil {
		return nil, err
	}
	if st.TotalPrincipalDeposited, err = checkedSub(st.TotalPrincipalDeposited, amount); err != nil {
		return nil, err
	}
	if st.TotalWeightedShare, err = checkedSub(st.TotalWeightedShare, weighted); err != nil {
		return nil, err
	}
	entry.WithdrawalUsed = true
	if err := e.bank.Transfer(cfg.DepositToken, e.custody, user, amount); err != nil {
		return nil, downstream("withdrawal transfer", err)
	}
	if err := e.state.LockdropEntryPut(entry); err != nil {
		return nil, err
	}
	if err := e.state.LockdropStatePut(st); err != nil {
		return nil, err
	}
	e.emit(WithdrawnEvent(user, duration, amount, entry.Principal))
	return entry.Clone(), nil
}

// UpdateConfig applies an administrator patch. Addresses and the reward token
// can be set once; the incentive budget can change until migration.
func (e *Engine) UpdateConfig(caller [20]byte, patch ConfigPatch) (*Config, error) {
	cfg, st, err := e.load()
	if err != nil {
		return nil, err
	}
	if caller != cfg.Owner {
		return nil, ErrUnauthorized
	}
	if st.Migrated {
		return nil, fmt.Errorf("%w: config frozen after migration", ErrPhaseViolation)
	}
	if patch.empty() {
		return nil, fmt.Errorf("%w: empty patch", ErrInvalidConfig)
	}
	changed := make(map[string]string)
	if patch.RewardToken != nil {
		token := normalizeToken(*patch.RewardToken)
		if cfg.RewardToken != "" {
			return nil, fmt.Errorf("%w: reward token", ErrAlreadySet)
		}
		if token == "" {
			return nil, fmt.Errorf("%w: reward token required", ErrInvalidConfig)
		}
		cfg.RewardToken = token
		changed["rewardToken"] = token
	}
	setOnce := []struct {
		name  string
		value *[20]byte
		field *[20]byte
	}{
		{"auctionContract", patch.AuctionContract, &cfg.AuctionContract},
		{"generator", patch.Generator, &cfg.Generator},
		{"pool", patch.Pool, &cfg.Pool},
	}
	for _, item := range setOnce {
		if item.value == nil {
			continue
		}
		if !isZeroAddress(*item.field) {
			return nil, fmt.Errorf("%w: %s", ErrAlreadySet, item.name)
		}
		if isZeroAddress(*item.value) {
			return nil, fmt.Errorf("%w: %s must not be zero", ErrInvalidConfig, item.name)
		}
		*item.field = *item.value
		changed[item.name] = hexAddr(*item.value)
	}
	if patch.LockdropIncentives != nil {
		if patch.LockdropIncentives.Sign() < 0 {
			return nil, fmt.Errorf("%w: incentives must not be negative", ErrInvalidConfig)
		}
		cfg.LockdropIncentives = new(big.Int).Set(patch.LockdropIncentives)
		changed["lockdropIncentives"] = cfg.LockdropIncentives.String()
	}
	if err := e.state.LockdropConfigPut(cfg); err != nil {
		return nil, err
	}
	e.emit(ConfigUpdatedEvent(changed))
	return cfg.Clone(), nil
}
