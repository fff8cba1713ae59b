package lockdrop

import (
	"errors"
	"math"
	"math/big"
	"sort"
	"testing"

	"lockdrop/core/events"
)

type entryKey struct {
	user     [20]byte
	duration uint64
}

type mockState struct {
	cfg       *Config
	st        *State
	entries   map[entryKey]*LockEntry
	durations map[[20]byte][]uint64
	users     [][20]byte
}

func newMockState() *mockState {
	return &mockState{
		entries:   make(map[entryKey]*LockEntry),
		durations: make(map[[20]byte][]uint64),
	}
}

func (m *mockState) LockdropConfigGet() (*Config, bool, error) {
	if m.cfg == nil {
		return nil, false, nil
	}
	return m.cfg.Clone(), true, nil
}

func (m *mockState) LockdropConfigPut(cfg *Config) error {
	m.cfg = cfg.Clone()
	return nil
}

func (m *mockState) LockdropStateGet() (*State, error) {
	if m.st == nil {
		return NewState(), nil
	}
	return m.st.Clone(), nil
}

func (m *mockState) LockdropStatePut(st *State) error {
	m.st = st.Clone()
	return nil
}

func (m *mockState) LockdropEntryGet(user [20]byte, duration uint64) (*LockEntry, bool, error) {
	entry, ok := m.entries[entryKey{user, duration}]
	if !ok {
		return nil, false, nil
	}
	return entry.Clone(), true, nil
}

func (m *mockState) LockdropEntryPut(entry *LockEntry) error {
	key := entryKey{entry.User, entry.Duration}
	if _, ok := m.entries[key]; !ok {
		if len(m.durations[entry.User]) == 0 {
			m.users = append(m.users, entry.User)
		}
		m.durations[entry.User] = append(m.durations[entry.User], entry.Duration)
		sort.Slice(m.durations[entry.User], func(i, j int) bool {
			return m.durations[entry.User][i] < m.durations[entry.User][j]
		})
	}
	m.entries[key] = entry.Clone()
	return nil
}

func (m *mockState) LockdropUserDurations(user [20]byte) ([]uint64, error) {
	return append([]uint64(nil), m.durations[user]...), nil
}

func (m *mockState) LockdropUsers() ([][20]byte, error) {
	return append([][20]byte(nil), m.users...), nil
}

type fakeBank struct {
	balances map[string]map[[20]byte]*big.Int
	failOn   string
}

func newFakeBank() *fakeBank {
	return &fakeBank{balances: make(map[string]map[[20]byte]*big.Int)}
}

func (b *fakeBank) balance(token string, addr [20]byte) *big.Int {
	if b.balances[token] == nil || b.balances[token][addr] == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(b.balances[token][addr])
}

func (b *fakeBank) mint(token string, addr [20]byte, amount *big.Int) {
	if b.balances[token] == nil {
		b.balances[token] = make(map[[20]byte]*big.Int)
	}
	b.balances[token][addr] = new(big.Int).Add(b.balance(token, addr), amount)
}

func (b *fakeBank) Transfer(token string, from, to [20]byte, amount *big.Int) error {
	if b.failOn == token {
		return errors.New("bank offline")
	}
	current := b.balance(token, from)
	if current.Cmp(amount) < 0 {
		return errors.New("insufficient balance")
	}
	b.mint(token, from, new(big.Int).Neg(amount))
	b.mint(token, to, amount)
	return nil
}

var poolAccount = addr(0xB0)

type fakePool struct {
	bank  *fakeBank
	ratio int64
	fail  bool
	calls int
}

func (p *fakePool) MintPoolShare(pool [20]byte, provider [20]byte, asset string, amount *big.Int) (PoolShare, error) {
	p.calls++
	if p.fail {
		return PoolShare{}, errors.New("pool rejected deposit")
	}
	if err := p.bank.Transfer(asset, provider, poolAccount, amount); err != nil {
		return PoolShare{}, err
	}
	minted := new(big.Int).Mul(amount, big.NewInt(p.ratio))
	p.bank.mint("LPS", provider, minted)
	return PoolShare{Token: "LPS", Amount: minted}, nil
}

var generatorVault = addr(0xC0)

type fakeGenerator struct {
	bank   *fakeBank
	staked map[string]*big.Int
	fail   bool
}

func (g *fakeGenerator) Stake(generator [20]byte, owner [20]byte, token string, amount *big.Int) error {
	if g.fail {
		return errors.New("generator paused")
	}
	if err := g.bank.Transfer(token, owner, generatorVault, amount); err != nil {
		return err
	}
	if g.staked == nil {
		g.staked = make(map[string]*big.Int)
	}
	if g.staked[token] == nil {
		g.staked[token] = big.NewInt(0)
	}
	g.staked[token].Add(g.staked[token], amount)
	return nil
}

func (g *fakeGenerator) Withdraw(generator [20]byte, owner [20]byte, token string, amount *big.Int) error {
	if g.staked[token] == nil || g.staked[token].Cmp(amount) < 0 {
		return errors.New("insufficient stake")
	}
	if err := g.bank.Transfer(token, generatorVault, owner, amount); err != nil {
		return err
	}
	g.staked[token].Sub(g.staked[token], amount)
	return nil
}

type recordingEmitter struct {
	types []string
}

func (r *recordingEmitter) Emit(evt events.Event) { r.types = append(r.types, evt.EventType()) }

func addr(b byte) [20]byte {
	var out [20]byte
	for i := range out {
		out[i] = b
	}
	return out
}

var (
	owner = addr(0x01)
	alice = addr(0xA1)
	bob   = addr(0xB1)
)

func testConfig() *Config {
	return &Config{
		Owner:              owner,
		DepositToken:       "lp",
		RewardToken:        "astro",
		Generator:          addr(0x0E),
		Pool:               addr(0x0F),
		InitTimestamp:      1_000,
		DepositWindow:      1_000,
		WithdrawalWindow:   500,
		MinLockDuration:    1,
		MaxLockDuration:    52,
		LockUnitSeconds:    100,
		WeeklyMultiplier:   1,
		WeeklyDivider:      12,
		LockdropIncentives: big.NewInt(1_000_000),
	}
}

type harness struct {
	engine    *Engine
	state     *mockState
	bank      *fakeBank
	pool      *fakePool
	generator *fakeGenerator
	emitter   *recordingEmitter
	now       int64
}

func newHarness(t *testing.T, cfg *Config) *harness {
	t.Helper()
	h := &harness{state: newMockState(), bank: newFakeBank(), emitter: &recordingEmitter{}}
	h.pool = &fakePool{bank: h.bank, ratio: 1}
	h.generator = &fakeGenerator{bank: h.bank}
	h.engine = NewEngine()
	h.engine.SetState(h.state)
	h.engine.SetBank(h.bank)
	h.engine.SetPool(h.pool)
	h.engine.SetGenerator(h.generator)
	h.engine.SetEmitter(h.emitter)
	h.engine.SetNowFunc(func() int64 { return h.now })
	if _, err := h.engine.Initialize(cfg); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	h.bank.mint("LP", alice, big.NewInt(10_000))
	h.bank.mint("LP", bob, big.NewInt(10_000))
	h.bank.mint("ASTRO", h.engine.Custody(), big.NewInt(1_000_000))
	return h
}

func (h *harness) checkConservation(t *testing.T) {
	t.Helper()
	st, err := h.engine.State()
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	entries, err := h.engine.Entries()
	if err != nil {
		t.Fatalf("entries: %v", err)
	}
	held := big.NewInt(0)
	weighted := big.NewInt(0)
	for _, entry := range entries {
		if entry.Principal.Sign() < 0 {
			t.Fatalf("negative principal for %x/%d", entry.User, entry.Duration)
		}
		held.Add(held, entry.HeldPrincipal(st))
		weighted.Add(weighted, entry.WeightedShare)
	}
	if held.Cmp(st.PrincipalHeld()) != 0 {
		t.Fatalf("held principal %s != deposited-migrated %s", held, st.PrincipalHeld())
	}
	if weighted.Cmp(st.TotalWeightedShare) != 0 {
		t.Fatalf("weighted sum %s != total %s", weighted, st.TotalWeightedShare)
	}
	if !st.Migrated {
		custody := h.bank.balance("LP", h.engine.Custody())
		if custody.Cmp(st.TotalPrincipalDeposited) != 0 {
			t.Fatalf("custody %s != deposited %s", custody, st.TotalPrincipalDeposited)
		}
	}
}

func TestInitializeRejectsInvalidConfig(t *testing.T) {
	cases := map[string]func(*Config){
		"no owner":               func(c *Config) { c.Owner = [20]byte{} },
		"no deposit token":       func(c *Config) { c.DepositToken = " " },
		"zero deposit window":    func(c *Config) { c.DepositWindow = 0 },
		"withdrawal too long":    func(c *Config) { c.WithdrawalWindow = c.DepositWindow + 1 },
		"zero min":               func(c *Config) { c.MinLockDuration = 0 },
		"min above max":          func(c *Config) { c.MinLockDuration = 53 },
		"zero divider":           func(c *Config) { c.WeeklyDivider = 0 },
		"negative incentives":    func(c *Config) { c.LockdropIncentives = big.NewInt(-1) },
		"unlock overflows int64": func(c *Config) { c.LockUnitSeconds = 1 << 62 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := testConfig()
			mutate(cfg)
			engine := NewEngine()
			engine.SetState(newMockState())
			if _, err := engine.Initialize(cfg); !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestInitializeRejectsUnlockPastDepositEnd(t *testing.T) {
	cfg := testConfig()
	cfg.LockUnitSeconds = 1
	cfg.WeeklyMultiplier = 0
	// Representable on its own, but not once added to the deposit window end.
	cfg.MaxLockDuration = math.MaxInt64 - 1_000
	if _, err := SanitizeConfig(cfg); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
	cfg.MaxLockDuration = uint64(math.MaxInt64 - cfg.DepositWindowEnd())
	if _, err := SanitizeConfig(cfg); err != nil {
		t.Fatalf("bound should be inclusive: %v", err)
	}
}

func TestUnlockTimestampSaturates(t *testing.T) {
	cfg := testConfig()
	st := NewState()
	entry := &LockEntry{Duration: 4}
	if got := entry.UnlockTimestamp(cfg, st); got != 0 {
		t.Fatalf("expected zero before migration, got %d", got)
	}
	st.Migrated = true
	st.MigratedAt = 2_000
	if got := entry.UnlockTimestamp(cfg, st); got != 2_400 {
		t.Fatalf("expected 2400, got %d", got)
	}
	cases := []struct {
		name       string
		duration   uint64
		unit       uint64
		migratedAt int64
	}{
		{"sum past int64", 11, 1, math.MaxInt64 - 10},
		{"product past uint64", 1 << 40, 1 << 40, 2_000},
		{"product past int64", math.MaxInt64, 2, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg.LockUnitSeconds = tc.unit
			st.MigratedAt = tc.migratedAt
			entry := &LockEntry{Duration: tc.duration}
			if got := entry.UnlockTimestamp(cfg, st); got != math.MaxInt64 {
				t.Fatalf("expected saturation, got %d", got)
			}
		})
	}
}

func TestInitializeOnce(t *testing.T) {
	h := newHarness(t, testConfig())
	cfg, err := h.engine.Config()
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	if cfg.DepositToken != "LP" || cfg.RewardToken != "ASTRO" {
		t.Fatalf("tokens not normalised: %q %q", cfg.DepositToken, cfg.RewardToken)
	}
	if _, err := h.engine.Initialize(testConfig()); !errors.Is(err, ErrAlreadySet) {
		t.Fatalf("expected ErrAlreadySet, got %v", err)
	}
}

func TestDepositPhaseAndValidation(t *testing.T) {
	h := newHarness(t, testConfig())

	h.now = 999
	if _, err := h.engine.Deposit(alice, 4, big.NewInt(10)); !errors.Is(err, ErrPhaseViolation) {
		t.Fatalf("expected phase violation before start, got %v", err)
	}
	h.now = 1_000
	if _, err := h.engine.Deposit(alice, 0, big.NewInt(10)); !errors.Is(err, ErrInvalidDuration) {
		t.Fatalf("expected invalid duration, got %v", err)
	}
	if _, err := h.engine.Deposit(alice, 53, big.NewInt(10)); !errors.Is(err, ErrInvalidDuration) {
		t.Fatalf("expected invalid duration, got %v", err)
	}
	if _, err := h.engine.Deposit(alice, 4, big.NewInt(0)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected invalid amount, got %v", err)
	}
	if _, err := h.engine.Deposit(alice, 4, big.NewInt(20_000)); !errors.Is(err, ErrDownstreamTransferFailed) {
		t.Fatalf("expected downstream failure for unfunded deposit, got %v", err)
	}
	if _, ok, _ := h.state.LockdropEntryGet(alice, 4); ok {
		t.Fatalf("failed deposit must not create an entry")
	}

	entry, err := h.engine.Deposit(alice, 4, big.NewInt(100))
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if entry.Principal.Int64() != 100 || entry.WeightedShare.Int64() != 1_500 {
		t.Fatalf("unexpected entry %+v", entry)
	}
	h.now = 1_700
	entry, err = h.engine.Deposit(alice, 4, big.NewInt(50))
	if err != nil {
		t.Fatalf("deposit after withdrawal window: %v", err)
	}
	if entry.Principal.Int64() != 150 {
		t.Fatalf("expected accumulated principal 150, got %s", entry.Principal)
	}
	h.checkConservation(t)

	h.now = 2_000
	if _, err := h.engine.Deposit(alice, 4, big.NewInt(1)); !errors.Is(err, ErrPhaseViolation) {
		t.Fatalf("expected phase violation after window, got %v", err)
	}
}

func TestWithdrawDecayingCapAndSingleUse(t *testing.T) {
	h := newHarness(t, testConfig())
	h.now = 1_000
	if _, err := h.engine.Deposit(alice, 10, big.NewInt(1_000)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if _, err := h.engine.Deposit(bob, 10, big.NewInt(1_000)); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	h.now = 1_250
	if _, err := h.engine.Withdraw(alice, 10, big.NewInt(501)); !errors.Is(err, ErrInsufficientPrincipal) {
		t.Fatalf("expected cap violation, got %v", err)
	}
	entry, err := h.engine.Withdraw(alice, 10, big.NewInt(500))
	if err != nil {
		t.Fatalf("withdraw at cap: %v", err)
	}
	if entry.Principal.Int64() != 500 || !entry.WithdrawalUsed {
		t.Fatalf("unexpected entry after withdraw %+v", entry)
	}
	if got := h.bank.balance("LP", alice); got.Int64() != 9_500 {
		t.Fatalf("expected alice LP 9500, got %s", got)
	}
	h.checkConservation(t)

	before, _, _ := h.state.LockdropEntryGet(alice, 10)
	if _, err := h.engine.Withdraw(alice, 10, big.NewInt(1)); !errors.Is(err, ErrAlreadyWithdrawn) {
		t.Fatalf("expected ErrAlreadyWithdrawn, got %v", err)
	}
	after, _, _ := h.state.LockdropEntryGet(alice, 10)
	if before.Principal.Cmp(after.Principal) != 0 {
		t.Fatalf("principal changed after rejected withdrawal")
	}

	if _, err := h.engine.Withdraw(bob, 10, big.NewInt(1_001)); !errors.Is(err, ErrInsufficientPrincipal) {
		t.Fatalf("expected insufficient principal, got %v", err)
	}
	if _, err := h.engine.Withdraw(bob, 11, big.NewInt(1)); !errors.Is(err, ErrInsufficientPrincipal) {
		t.Fatalf("expected insufficient principal for missing entry, got %v", err)
	}

	h.now = 1_500
	if _, err := h.engine.Withdraw(bob, 10, big.NewInt(1)); !errors.Is(err, ErrPhaseViolation) {
		t.Fatalf("expected phase violation after withdrawal window, got %v", err)
	}
}

func TestEndToEndRewardsAndPoolShares(t *testing.T) {
	h := newHarness(t, testConfig())
	h.now = 1_100
	if _, err := h.engine.Deposit(alice, 4, big.NewInt(100)); err != nil {
		t.Fatalf("deposit alice: %v", err)
	}
	if _, err := h.engine.Deposit(bob, 52, big.NewInt(300)); err != nil {
		t.Fatalf("deposit bob: %v", err)
	}
	st, _ := h.engine.State()
	if st.TotalWeightedShare.Int64() != 20_400 {
		t.Fatalf("expected total weighted share 20400, got %s", st.TotalWeightedShare)
	}

	h.now = 1_999
	if _, err := h.engine.Migrate(owner); !errors.Is(err, ErrPhaseViolation) {
		t.Fatalf("expected phase violation during deposit window, got %v", err)
	}
	h.now = 2_000
	if _, err := h.engine.Migrate(alice); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	st, err := h.engine.Migrate(owner)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if !st.Migrated || !st.ClaimsAllowed || st.PoolSharesMinted.Int64() != 400 || st.PoolShareToken != "LPS" {
		t.Fatalf("unexpected state after migration %+v", st)
	}
	if h.generator.staked["LPS"].Int64() != 400 {
		t.Fatalf("expected 400 staked shares, got %s", h.generator.staked["LPS"])
	}
	h.checkConservation(t)
	if _, err := h.engine.Migrate(owner); !errors.Is(err, ErrPhaseViolation) {
		t.Fatalf("expected second migration to fail, got %v", err)
	}

	h.now = 2_399
	if _, err := h.engine.Claim(alice, 4); !errors.Is(err, ErrNotYetUnlocked) {
		t.Fatalf("expected not yet unlocked, got %v", err)
	}
	h.now = 2_400
	resA, err := h.engine.Claim(alice, 4)
	if err != nil {
		t.Fatalf("claim alice: %v", err)
	}
	if resA.Rewards.Int64() != 73_529 || resA.PoolShares.Int64() != 100 {
		t.Fatalf("unexpected alice claim %+v", resA)
	}
	if _, err := h.engine.Claim(bob, 52); !errors.Is(err, ErrNotYetUnlocked) {
		t.Fatalf("expected bob locked, got %v", err)
	}
	h.now = 2_000 + 52*100
	resB, err := h.engine.Claim(bob, 52)
	if err != nil {
		t.Fatalf("claim bob: %v", err)
	}
	if resB.Rewards.Int64() != 926_470 || resB.PoolShares.Int64() != 300 {
		t.Fatalf("unexpected bob claim %+v", resB)
	}
	total := new(big.Int).Add(resA.Rewards, resB.Rewards)
	if total.Cmp(big.NewInt(1_000_000)) > 0 {
		t.Fatalf("rewards %s exceed budget", total)
	}
	if got := h.bank.balance("ASTRO", alice); got.Int64() != 73_529 {
		t.Fatalf("alice reward balance %s", got)
	}
	if got := h.bank.balance("LPS", bob); got.Int64() != 300 {
		t.Fatalf("bob pool share balance %s", got)
	}
	rewardDust, shareDust, err := h.engine.RoundingDust()
	if err != nil {
		t.Fatalf("rounding dust: %v", err)
	}
	if rewardDust.Int64() != 1 || shareDust.Sign() != 0 {
		t.Fatalf("unexpected dust reward=%s shares=%s", rewardDust, shareDust)
	}
}

func TestClaimIdempotent(t *testing.T) {
	h := newHarness(t, testConfig())
	h.now = 1_100
	if _, err := h.engine.Deposit(alice, 1, big.NewInt(100)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	h.now = 2_000
	if _, err := h.engine.Migrate(owner); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	h.now = 2_100
	first, err := h.engine.Claim(alice, 1)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if first.Empty() {
		t.Fatalf("first claim should transfer")
	}
	emitted := len(h.emitter.types)
	stBefore, _ := h.engine.State()
	second, err := h.engine.Claim(alice, 1)
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if !second.Empty() {
		t.Fatalf("second claim should transfer nothing, got %+v", second)
	}
	stAfter, _ := h.engine.State()
	if stBefore.TotalRewardsClaimed.Cmp(stAfter.TotalRewardsClaimed) != 0 {
		t.Fatalf("state changed on idempotent claim")
	}
	if len(h.emitter.types) != emitted {
		t.Fatalf("idempotent claim emitted events")
	}
	if got := h.bank.balance("ASTRO", alice); got.Int64() != 1_000_000 {
		t.Fatalf("sole depositor should receive the budget, got %s", got)
	}
}

func TestClaimErrors(t *testing.T) {
	h := newHarness(t, testConfig())
	h.now = 1_100
	if _, err := h.engine.Deposit(alice, 2, big.NewInt(100)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if _, err := h.engine.Claim(alice, 2); !errors.Is(err, ErrPhaseViolation) {
		t.Fatalf("expected phase violation before migration, got %v", err)
	}
	h.now = 2_000
	if _, err := h.engine.Migrate(owner); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if _, err := h.engine.Claim(bob, 2); !errors.Is(err, ErrEntryNotFound) {
		t.Fatalf("expected entry not found, got %v", err)
	}
	if _, err := h.engine.ClaimAll(bob); !errors.Is(err, ErrEntryNotFound) {
		t.Fatalf("expected entry not found from ClaimAll, got %v", err)
	}
}

func TestClaimAllSkipsLockedEntries(t *testing.T) {
	h := newHarness(t, testConfig())
	h.now = 1_100
	for _, d := range []uint64{1, 3, 10} {
		if _, err := h.engine.Deposit(alice, d, big.NewInt(100)); err != nil {
			t.Fatalf("deposit %d: %v", d, err)
		}
	}
	h.now = 2_000
	if _, err := h.engine.Migrate(owner); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	h.now = 2_300
	summary, err := h.engine.ClaimAll(alice)
	if err != nil {
		t.Fatalf("claim all: %v", err)
	}
	if len(summary.Claims) != 2 || len(summary.Skipped) != 1 || summary.Skipped[0] != 10 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if summary.TotalPoolShares.Int64() != 200 {
		t.Fatalf("expected 200 pool shares, got %s", summary.TotalPoolShares)
	}
	info, err := h.engine.UserInfo(alice)
	if err != nil {
		t.Fatalf("user info: %v", err)
	}
	if info.TotalPrincipal.Int64() != 300 || len(info.Entries) != 3 {
		t.Fatalf("unexpected user info %+v", info)
	}
	last := info.Entries[2]
	if last.Unlocked || last.ClaimablePoolShares.Sign() != 0 || last.UnlockTimestamp != 3_000 {
		t.Fatalf("unexpected projection for locked entry %+v", last)
	}
}

func TestClaimLongestLockStaysLockedAfterLateMigration(t *testing.T) {
	cfg := testConfig()
	cfg.LockUnitSeconds = 1
	cfg.MaxLockDuration = math.MaxInt64 - 2_000
	cfg.WeeklyMultiplier = 0
	h := newHarness(t, cfg)
	h.now = 1_100
	if _, err := h.engine.Deposit(alice, cfg.MaxLockDuration, big.NewInt(100)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	h.now = 5_000
	if _, err := h.engine.Migrate(owner); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if _, err := h.engine.Claim(alice, cfg.MaxLockDuration); !errors.Is(err, ErrNotYetUnlocked) {
		t.Fatalf("expected not yet unlocked, got %v", err)
	}
	summary, err := h.engine.ClaimAll(alice)
	if err != nil {
		t.Fatalf("claim all: %v", err)
	}
	if len(summary.Claims) != 0 || len(summary.Skipped) != 1 {
		t.Fatalf("expected the entry to be skipped, got %+v", summary)
	}
	info, err := h.engine.UserInfo(alice)
	if err != nil {
		t.Fatalf("user info: %v", err)
	}
	if entry := info.Entries[0]; entry.Unlocked || entry.UnlockTimestamp != math.MaxInt64 {
		t.Fatalf("unexpected projection %+v", entry)
	}
	if got := h.bank.balance("ASTRO", alice); got.Sign() != 0 {
		t.Fatalf("locked entry paid rewards %s", got)
	}
}

func TestMigrationFailureIsRetryable(t *testing.T) {
	h := newHarness(t, testConfig())
	h.now = 1_100
	if _, err := h.engine.Deposit(alice, 4, big.NewInt(100)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	h.now = 2_000
	h.pool.fail = true
	if _, err := h.engine.Migrate(owner); !errors.Is(err, ErrDownstreamTransferFailed) {
		t.Fatalf("expected downstream failure, got %v", err)
	}
	phase, err := h.engine.Phase()
	if err != nil {
		t.Fatalf("phase: %v", err)
	}
	if phase != PhaseAwaitingMigration {
		t.Fatalf("expected awaiting migration after failure, got %s", phase)
	}
	h.pool.fail = false
	if _, err := h.engine.Migrate(owner); err != nil {
		t.Fatalf("retry migrate: %v", err)
	}
	if phase, _ := h.engine.Phase(); phase != PhaseMigrated {
		t.Fatalf("expected migrated, got %s", phase)
	}
}

func TestMigrateWithoutDeposits(t *testing.T) {
	h := newHarness(t, testConfig())
	h.now = 2_000
	st, err := h.engine.Migrate(owner)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if !st.ClaimsAllowed || h.pool.calls != 0 {
		t.Fatalf("empty migration should open claims without touching the pool")
	}
	rewardDust, _, err := h.engine.RoundingDust()
	if err != nil || rewardDust.Sign() != 0 {
		t.Fatalf("expected no dust without deposits, got %v %v", rewardDust, err)
	}
}

func TestMigrateRequiresCollaboratorConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Pool = [20]byte{}
	cfg.RewardToken = ""
	h := newHarness(t, cfg)
	h.now = 2_000
	if _, err := h.engine.Migrate(owner); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected invalid config without pool, got %v", err)
	}
	pool := addr(0x0F)
	if _, err := h.engine.UpdateConfig(owner, ConfigPatch{Pool: &pool}); err != nil {
		t.Fatalf("set pool: %v", err)
	}
	if _, err := h.engine.Migrate(owner); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected invalid config without reward token, got %v", err)
	}
}

func TestUpdateConfig(t *testing.T) {
	cfg := testConfig()
	cfg.RewardToken = ""
	cfg.Generator = [20]byte{}
	cfg.LockdropIncentives = nil
	h := newHarness(t, cfg)

	token := "astro"
	if _, err := h.engine.UpdateConfig(alice, ConfigPatch{RewardToken: &token}); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if _, err := h.engine.UpdateConfig(owner, ConfigPatch{}); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected invalid empty patch, got %v", err)
	}
	gen := addr(0x0E)
	updated, err := h.engine.UpdateConfig(owner, ConfigPatch{
		RewardToken:        &token,
		Generator:          &gen,
		LockdropIncentives: big.NewInt(500),
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.RewardToken != "ASTRO" || updated.Generator != gen || updated.LockdropIncentives.Int64() != 500 {
		t.Fatalf("unexpected config %+v", updated)
	}
	if _, err := h.engine.UpdateConfig(owner, ConfigPatch{RewardToken: &token}); !errors.Is(err, ErrAlreadySet) {
		t.Fatalf("expected reward token already set, got %v", err)
	}
	pool := addr(0x0F)
	if _, err := h.engine.UpdateConfig(owner, ConfigPatch{Pool: &pool}); !errors.Is(err, ErrAlreadySet) {
		t.Fatalf("expected pool already set, got %v", err)
	}
	if _, err := h.engine.UpdateConfig(owner, ConfigPatch{LockdropIncentives: big.NewInt(1_000_000)}); err != nil {
		t.Fatalf("incentives patch: %v", err)
	}

	h.now = 2_000
	if _, err := h.engine.Migrate(owner); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if _, err := h.engine.UpdateConfig(owner, ConfigPatch{LockdropIncentives: big.NewInt(1)}); !errors.Is(err, ErrPhaseViolation) {
		t.Fatalf("expected config frozen after migration, got %v", err)
	}
}

func TestEventsEmitted(t *testing.T) {
	h := newHarness(t, testConfig())
	h.now = 1_000
	if _, err := h.engine.Deposit(alice, 1, big.NewInt(10)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if _, err := h.engine.Withdraw(alice, 1, big.NewInt(5)); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	h.now = 2_000
	if _, err := h.engine.Migrate(owner); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	h.now = 2_100
	if _, err := h.engine.Claim(alice, 1); err != nil {
		t.Fatalf("claim: %v", err)
	}
	want := []string{EventTypeInitialized, EventTypeDeposited, EventTypeWithdrawn, EventTypeMigrated, EventTypeClaimed}
	if len(h.emitter.types) != len(want) {
		t.Fatalf("expected events %v, got %v", want, h.emitter.types)
	}
	for i := range want {
		if h.emitter.types[i] != want[i] {
			t.Fatalf("event %d: expected %s, got %s", i, want[i], h.emitter.types[i])
		}
	}
}
