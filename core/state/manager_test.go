package state

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"lockdrop/native/lockdrop"
	"lockdrop/storage"
)

func newTestManager(t *testing.T) (*Manager, storage.Database) {
	t.Helper()
	db, err := storage.NewMemLevelDB()
	require.NoError(t, err)
	t.Cleanup(db.Close)
	return NewManager(db), db
}

func TestManagerCommitAndDiscard(t *testing.T) {
	mgr, db := newTestManager(t)
	addr := []byte{0x01, 0x02}

	require.NoError(t, mgr.RegisterToken("lp", "Liquidity", 6))
	require.NoError(t, mgr.SetBalance(addr, "LP", big.NewInt(42)))
	require.Greater(t, mgr.Pending(), 0)

	// Pending writes are visible through the manager but not in the database.
	bal, err := mgr.Balance(addr, "lp")
	require.NoError(t, err)
	require.Equal(t, int64(42), bal.Int64())
	fresh := NewManager(db)
	bal, err = fresh.Balance(addr, "LP")
	require.NoError(t, err)
	require.Zero(t, bal.Sign())

	require.NoError(t, mgr.Commit())
	require.Zero(t, mgr.Pending())
	bal, err = fresh.Balance(addr, "LP")
	require.NoError(t, err)
	require.Equal(t, int64(42), bal.Int64())

	require.NoError(t, mgr.SetBalance(addr, "LP", big.NewInt(7)))
	mgr.Discard()
	bal, err = mgr.Balance(addr, "LP")
	require.NoError(t, err)
	require.Equal(t, int64(42), bal.Int64())
}

func TestManagerTokenRegistry(t *testing.T) {
	mgr, _ := newTestManager(t)
	require.NoError(t, mgr.RegisterToken("astro", "Astro", 6))
	require.NoError(t, mgr.RegisterToken("LP", "Liquidity", 6))
	require.Error(t, mgr.RegisterToken("ASTRO", "Astro", 6))
	require.Error(t, mgr.SetBalance([]byte{0x01}, "UNKNOWN", big.NewInt(1)))
	require.Error(t, mgr.SetBalance([]byte{0x01}, "LP", big.NewInt(-1)))

	list, err := mgr.TokenList()
	require.NoError(t, err)
	require.Equal(t, []string{"ASTRO", "LP"}, list)
	require.True(t, mgr.TokenExists(" lp "))
}

func TestLockdropRecordsPersist(t *testing.T) {
	mgr, db := newTestManager(t)

	_, ok, err := mgr.LockdropConfigGet()
	require.NoError(t, err)
	require.False(t, ok)

	cfg := &lockdrop.Config{
		Owner:              [20]byte{0x01},
		DepositToken:       "LP",
		InitTimestamp:      100_000,
		DepositWindow:      10_000_000,
		WithdrawalWindow:   500_000,
		MinLockDuration:    1,
		MaxLockDuration:    52,
		LockUnitSeconds:    lockdrop.DefaultLockUnitSeconds,
		WeeklyMultiplier:   1,
		WeeklyDivider:      12,
		LockdropIncentives: big.NewInt(1_000_000),
	}
	require.NoError(t, mgr.LockdropConfigPut(cfg))
	require.Error(t, mgr.LockdropConfigPut(&lockdrop.Config{InitTimestamp: -1}))

	st := lockdrop.NewState()
	st.TotalPrincipalDeposited = big.NewInt(400)
	st.MigratedAt = 10_100_000
	st.Migrated = true
	st.TotalRewardsDelegated = big.NewInt(300)
	st.TotalRewardsReturned = big.NewInt(120)
	require.NoError(t, mgr.LockdropStatePut(st))

	user := [20]byte{0xAA}
	for _, d := range []uint64{52, 4, 12} {
		require.NoError(t, mgr.LockdropEntryPut(&lockdrop.LockEntry{User: user, Duration: d, Principal: big.NewInt(int64(d))}))
	}
	// Re-writing an entry must not duplicate the index.
	require.NoError(t, mgr.LockdropEntryPut(&lockdrop.LockEntry{User: user, Duration: 4, Principal: big.NewInt(9), RewardsDelegated: big.NewInt(180)}))
	require.NoError(t, mgr.Commit())

	reloaded := NewManager(db)
	gotCfg, ok, err := reloaded.LockdropConfigGet()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, cfg.InitTimestamp, gotCfg.InitTimestamp)
	require.Equal(t, cfg.DepositWindow, gotCfg.DepositWindow)
	require.Equal(t, 0, cfg.LockdropIncentives.Cmp(gotCfg.LockdropIncentives))

	gotState, err := reloaded.LockdropStateGet()
	require.NoError(t, err)
	require.True(t, gotState.Migrated)
	require.Equal(t, int64(10_100_000), gotState.MigratedAt)
	require.Zero(t, gotState.TotalRewardsClaimed.Sign())
	require.Equal(t, int64(300), gotState.TotalRewardsDelegated.Int64())
	require.Equal(t, int64(120), gotState.TotalRewardsReturned.Int64())

	durations, err := reloaded.LockdropUserDurations(user)
	require.NoError(t, err)
	require.Equal(t, []uint64{4, 12, 52}, durations)
	users, err := reloaded.LockdropUsers()
	require.NoError(t, err)
	require.Equal(t, [][20]byte{user}, users)

	entry, ok, err := reloaded.LockdropEntryGet(user, 4)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(9), entry.Principal.Int64())
	require.NotNil(t, entry.PoolSharesClaimed)
	require.Equal(t, int64(180), entry.RewardsDelegated.Int64())

	_, ok, err = reloaded.LockdropEntryGet(user, 5)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestGeneratorStakeRecords(t *testing.T) {
	mgr, _ := newTestManager(t)
	gen := [20]byte{0x0E}
	owner := [20]byte{0x01}

	stake, err := mgr.GeneratorStakeGet(gen, owner, "lps")
	require.NoError(t, err)
	require.Zero(t, stake.Sign())

	require.NoError(t, mgr.GeneratorStakePut(gen, owner, "lps", big.NewInt(400)))
	require.NoError(t, mgr.GeneratorTotalStakedPut(gen, "LPS", big.NewInt(400)))
	stake, err = mgr.GeneratorStakeGet(gen, owner, "LPS")
	require.NoError(t, err)
	require.Equal(t, int64(400), stake.Int64())
	total, err := mgr.GeneratorTotalStaked(gen, "lps")
	require.NoError(t, err)
	require.Equal(t, int64(400), total.Int64())
	require.Error(t, mgr.GeneratorStakePut(gen, owner, "LPS", big.NewInt(-1)))
}
