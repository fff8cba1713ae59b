package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	"lockdrop/core/events"
	corestate "lockdrop/core/state"
	"lockdrop/native/bank"
	"lockdrop/native/generator"
	"lockdrop/native/lockdrop"
	"lockdrop/native/pool"
	"lockdrop/observability/metrics"
	telemetry "lockdrop/observability/otel"
	"lockdrop/storage"
	"lockdrop/storage/eventlog"
)

// ErrEventLogDisabled is returned by Events when no event log is attached.
var ErrEventLogDisabled = errors.New("event log not configured")

// Node is the central controller, wiring the lockdrop engine to its token
// collaborators and the persistent store.
type Node struct {
	db       storage.Database
	stateMu  sync.Mutex
	sink     events.Emitter
	extra    events.Emitter
	eventLog *eventlog.Store
	nowFn    func() int64
	logger   *slog.Logger
	metrics  *metrics.LockdropMetrics
	duration metric.Float64Histogram
	// dust is filled on the first snapshot after migration. Entitlements are
	// frozen from then on.
	dust *roundingDust
}

type roundingDust struct {
	rewards    *big.Int
	poolShares *big.Int
}

// NewNode wires a node on top of the supplied database.
func NewNode(db storage.Database) (*Node, error) {
	if db == nil {
		return nil, fmt.Errorf("database must not be nil")
	}
	duration, err := telemetry.Meter().Float64Histogram("lockdrop.operation.duration",
		metric.WithUnit("s"),
		metric.WithDescription("Latency of state-changing lockdrop operations."))
	if err != nil {
		return nil, fmt.Errorf("create operation histogram: %w", err)
	}
	n := &Node{
		db:       db,
		nowFn:    func() int64 { return time.Now().Unix() },
		logger:   slog.Default().With("component", "node"),
		metrics:  metrics.Lockdrop(),
		duration: duration,
	}
	n.sink = n.buildSink()
	return n, nil
}

// SetLogger replaces the node logger.
func (n *Node) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	n.logger = logger.With("component", "node")
}

// SetNowFunc overrides the clock handed to the engines.
func (n *Node) SetNowFunc(now func() int64) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	if now == nil {
		now = func() int64 { return time.Now().Unix() }
	}
	n.nowFn = now
}

// SetEventSink registers an additional destination for committed events.
func (n *Node) SetEventSink(emitter events.Emitter) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	n.extra = emitter
	n.sink = n.buildSink()
}

// SetEventLog persists committed events to store and enables Events queries.
func (n *Node) SetEventLog(store *eventlog.Store) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	n.eventLog = store
	n.sink = n.buildSink()
}

func (n *Node) buildSink() events.Emitter {
	sinks := events.Multi{metricsEmitter{metrics: n.metrics}}
	if n.eventLog != nil {
		sinks = append(sinks, n.eventLog.Emitter(n.logger))
	}
	if n.extra != nil {
		sinks = append(sinks, n.extra)
	}
	return sinks
}

type metricsEmitter struct {
	metrics *metrics.LockdropMetrics
}

func (m metricsEmitter) Emit(evt events.Event) {
	if evt == nil {
		return
	}
	m.metrics.IncEvent(evt.EventType())
}

// engines bundles the module engines bound to a single state overlay.
type engines struct {
	manager   *corestate.Manager
	lockdrop  *lockdrop.Engine
	bank      *bank.Ledger
	pool      *pool.Engine
	generator *generator.Engine
}

func (n *Node) newEngines(manager *corestate.Manager, emitter events.Emitter) *engines {
	ledger := bank.NewLedger(manager)
	ledger.SetEmitter(emitter)

	poolEngine := pool.NewEngine()
	poolEngine.SetState(manager)
	poolEngine.SetBank(ledger)
	poolEngine.SetEmitter(emitter)

	generatorEngine := generator.NewEngine()
	generatorEngine.SetState(manager)
	generatorEngine.SetBank(ledger)
	generatorEngine.SetEmitter(emitter)

	engine := lockdrop.NewEngine()
	engine.SetState(manager)
	engine.SetBank(ledger)
	engine.SetPool(poolEngine)
	engine.SetGenerator(generatorEngine)
	engine.SetEmitter(emitter)
	engine.SetNowFunc(n.nowFn)

	return &engines{
		manager:   manager,
		lockdrop:  engine,
		bank:      ledger,
		pool:      poolEngine,
		generator: generatorEngine,
	}
}

// execute runs fn against a fresh state overlay. Writes and events are
// committed together when fn succeeds and dropped otherwise.
func (n *Node) execute(ctx context.Context, operation string, fn func(*engines) error, attrs ...attribute.KeyValue) error {
	ctx, span := telemetry.StartSpan(ctx, "lockdrop."+operation, attrs...)
	defer span.End()
	start := time.Now()

	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	manager := corestate.NewManager(n.db)
	buffer := &events.Buffer{}
	err := fn(n.newEngines(manager, buffer))
	if err == nil {
		if err = manager.Commit(); err != nil {
			err = fmt.Errorf("commit %s: %w", operation, err)
		}
	}
	n.metrics.ObserveOperation(operation, err)
	n.duration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.Bool("success", err == nil)))
	if err != nil {
		manager.Discard()
		buffer.Reset()
		if errors.Is(err, lockdrop.ErrDownstreamTransferFailed) {
			n.metrics.IncDownstreamFailure(operation)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		n.logger.Warn("operation rejected", "method", operation, "error", err, "duration", time.Since(start))
		return err
	}
	flushed := buffer.Flush(n.sink)
	n.logger.Info("operation committed", "method", operation, "events", len(flushed), "duration", time.Since(start))
	n.publishSnapshot()
	return nil
}

// query runs fn against a read-only overlay.
func (n *Node) query(ctx context.Context, operation string, fn func(*engines) error) error {
	_, span := telemetry.StartSpan(ctx, "lockdrop."+operation)
	defer span.End()

	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	manager := corestate.NewManager(n.db)
	defer manager.Discard()
	if err := fn(n.newEngines(manager, events.NoopEmitter{})); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

// publishSnapshot exports the committed aggregates. Callers hold stateMu.
func (n *Node) publishSnapshot() {
	eng := n.newEngines(corestate.NewManager(n.db), events.NoopEmitter{})
	st, err := eng.lockdrop.State()
	if err != nil {
		return
	}
	phase, err := eng.lockdrop.Phase()
	if err != nil {
		return
	}
	if st.Migrated && n.dust == nil {
		rewards, poolShares, err := eng.lockdrop.RoundingDust()
		if err != nil {
			n.logger.Warn("compute rounding dust", "error", err)
		} else {
			n.dust = &roundingDust{rewards: rewards, poolShares: poolShares}
		}
	}
	var rewardDust, shareDust *big.Int
	if n.dust != nil {
		rewardDust, shareDust = n.dust.rewards, n.dust.poolShares
	}
	n.metrics.Record(metrics.Snapshot{
		Phase:              int(phase),
		PrincipalDeposited: st.TotalPrincipalDeposited,
		PrincipalMigrated:  st.TotalPrincipalMigrated,
		WeightedShare:      st.TotalWeightedShare,
		PoolSharesMinted:   st.PoolSharesMinted,
		RewardsClaimed:     st.TotalRewardsClaimed,
		PoolSharesClaimed:  st.TotalPoolSharesClaimed,
		RewardsDelegated:   st.TotalRewardsDelegated,
		RewardsReturned:    st.TotalRewardsReturned,
		RewardDust:         rewardDust,
		PoolShareDust:      shareDust,
	})
}

func userAttr(user [20]byte) attribute.KeyValue {
	return attribute.String("user", fmt.Sprintf("0x%x", user[:]))
}

// Deposit locks amount of the deposit token for duration lock units.
func (n *Node) Deposit(ctx context.Context, user [20]byte, duration uint64, amount *big.Int) (*lockdrop.LockEntry, error) {
	var entry *lockdrop.LockEntry
	err := n.execute(ctx, "deposit", func(e *engines) error {
		var err error
		entry, err = e.lockdrop.Deposit(user, duration, amount)
		return err
	}, userAttr(user), attribute.Int64("duration", int64(duration)))
	return entry, err
}

// Withdraw returns part of a lock's principal during the withdrawal window.
func (n *Node) Withdraw(ctx context.Context, user [20]byte, duration uint64, amount *big.Int) (*lockdrop.LockEntry, error) {
	var entry *lockdrop.LockEntry
	err := n.execute(ctx, "withdraw", func(e *engines) error {
		var err error
		entry, err = e.lockdrop.Withdraw(user, duration, amount)
		return err
	}, userAttr(user), attribute.Int64("duration", int64(duration)))
	return entry, err
}

// Migrate moves all locked principal into the pool and stakes the minted
// shares. A failed migration leaves no trace and may be retried.
func (n *Node) Migrate(ctx context.Context, caller [20]byte) (*lockdrop.State, error) {
	var st *lockdrop.State
	err := n.execute(ctx, "migrate", func(e *engines) error {
		var err error
		st, err = e.lockdrop.Migrate(caller)
		return err
	}, userAttr(caller))
	return st, err
}

func (n *Node) Claim(ctx context.Context, user [20]byte, duration uint64) (*lockdrop.ClaimResult, error) {
	var res *lockdrop.ClaimResult
	err := n.execute(ctx, "claim", func(e *engines) error {
		var err error
		res, err = e.lockdrop.Claim(user, duration)
		return err
	}, userAttr(user), attribute.Int64("duration", int64(duration)))
	return res, err
}

func (n *Node) ClaimAll(ctx context.Context, user [20]byte) (*lockdrop.ClaimSummary, error) {
	var summary *lockdrop.ClaimSummary
	err := n.execute(ctx, "claim_all", func(e *engines) error {
		var err error
		summary, err = e.lockdrop.ClaimAll(user)
		return err
	}, userAttr(user))
	return summary, err
}

// DelegateToAuction hands part of a lock's reward entitlement to the auction
// contract.
func (n *Node) DelegateToAuction(ctx context.Context, user [20]byte, duration uint64, amount *big.Int) (*lockdrop.LockEntry, error) {
	var entry *lockdrop.LockEntry
	err := n.execute(ctx, "delegate", func(e *engines) error {
		var err error
		entry, err = e.lockdrop.DelegateToAuction(user, duration, amount)
		return err
	}, userAttr(user), attribute.Int64("duration", int64(duration)))
	return entry, err
}

// ReturnFromAuction credits rewards handed back by the auction contract.
func (n *Node) ReturnFromAuction(ctx context.Context, caller, user [20]byte, duration uint64, amount *big.Int) (*lockdrop.LockEntry, error) {
	var entry *lockdrop.LockEntry
	err := n.execute(ctx, "return_from_auction", func(e *engines) error {
		var err error
		entry, err = e.lockdrop.ReturnFromAuction(caller, user, duration, amount)
		return err
	}, userAttr(user), attribute.Int64("duration", int64(duration)))
	return entry, err
}

func (n *Node) UpdateConfig(ctx context.Context, caller [20]byte, patch lockdrop.ConfigPatch) (*lockdrop.Config, error) {
	var cfg *lockdrop.Config
	err := n.execute(ctx, "update_config", func(e *engines) error {
		var err error
		cfg, err = e.lockdrop.UpdateConfig(caller, patch)
		return err
	}, userAttr(caller))
	return cfg, err
}

// Mint credits amount of token to the recipient. Only the lockdrop owner may
// mint.
func (n *Node) Mint(ctx context.Context, caller [20]byte, token string, to [20]byte, amount *big.Int) error {
	return n.execute(ctx, "mint", func(e *engines) error {
		cfg, err := e.lockdrop.Config()
		if err != nil {
			return err
		}
		if caller != cfg.Owner {
			return fmt.Errorf("%w: mint restricted to owner", lockdrop.ErrUnauthorized)
		}
		return e.bank.Mint(token, to, amount)
	}, userAttr(to))
}

func (n *Node) Config(ctx context.Context) (*lockdrop.Config, error) {
	var cfg *lockdrop.Config
	err := n.query(ctx, "config", func(e *engines) error {
		var err error
		cfg, err = e.lockdrop.Config()
		return err
	})
	return cfg, err
}

func (n *Node) State(ctx context.Context) (*lockdrop.State, error) {
	var st *lockdrop.State
	err := n.query(ctx, "state", func(e *engines) error {
		var err error
		st, err = e.lockdrop.State()
		return err
	})
	return st, err
}

func (n *Node) Phase(ctx context.Context) (lockdrop.Phase, error) {
	var phase lockdrop.Phase
	err := n.query(ctx, "phase", func(e *engines) error {
		var err error
		phase, err = e.lockdrop.Phase()
		return err
	})
	return phase, err
}

func (n *Node) UserInfo(ctx context.Context, user [20]byte) (*lockdrop.UserInfo, error) {
	var info *lockdrop.UserInfo
	err := n.query(ctx, "user_info", func(e *engines) error {
		var err error
		info, err = e.lockdrop.UserInfo(user)
		return err
	})
	return info, err
}

// RoundingDust reports the reward and pool-share remainders floor division
// leaves in custody.
func (n *Node) RoundingDust(ctx context.Context) (*big.Int, *big.Int, error) {
	var rewards, shares *big.Int
	err := n.query(ctx, "rounding_dust", func(e *engines) error {
		var err error
		rewards, shares, err = e.lockdrop.RoundingDust()
		return err
	})
	return rewards, shares, err
}

func (n *Node) Balance(ctx context.Context, token string, addr [20]byte) (*big.Int, error) {
	var balance *big.Int
	err := n.query(ctx, "balance", func(e *engines) error {
		var err error
		balance, err = e.bank.Balance(token, addr)
		return err
	})
	return balance, err
}

// Staked reports the generator stake held for owner.
func (n *Node) Staked(ctx context.Context, gen [20]byte, owner [20]byte, token string) (*big.Int, error) {
	var staked *big.Int
	err := n.query(ctx, "staked", func(e *engines) error {
		var err error
		staked, err = e.generator.Staked(gen, owner, token)
		return err
	})
	return staked, err
}

// Pool returns the registered migration pool definition.
func (n *Node) Pool(ctx context.Context, addr [20]byte) (*pool.Definition, error) {
	var def *pool.Definition
	err := n.query(ctx, "pool", func(e *engines) error {
		var err error
		def, err = e.pool.Pool(addr)
		return err
	})
	return def, err
}

// Events returns the most recent committed events, optionally filtered by a
// type prefix.
func (n *Node) Events(ctx context.Context, limit int, prefix string) ([]eventlog.Record, error) {
	_, span := telemetry.StartSpan(ctx, "lockdrop.events")
	defer span.End()
	n.stateMu.Lock()
	store := n.eventLog
	n.stateMu.Unlock()
	if store == nil {
		return nil, ErrEventLogDisabled
	}
	return store.Recent(limit, prefix)
}
