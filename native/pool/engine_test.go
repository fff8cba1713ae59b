package pool_test

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	corestate "lockdrop/core/state"
	"lockdrop/native/bank"
	"lockdrop/native/pool"
	"lockdrop/storage"
)

var (
	poolAddr = [20]byte{0x50}
	provider = [20]byte{0xAA}
)

func newPool(t *testing.T, num, den uint64) (*pool.Engine, *bank.Ledger) {
	t.Helper()
	manager := corestate.NewManager(storage.NewMemDB())
	require.NoError(t, manager.RegisterToken("LP", "Pair LP", 6))
	require.NoError(t, manager.RegisterToken("LPS", "Pool Share", 6))
	ledger := bank.NewLedger(manager)
	require.NoError(t, ledger.Mint("LP", provider, big.NewInt(1_000)))

	engine := pool.NewEngine()
	engine.SetState(manager)
	engine.SetBank(ledger)
	_, err := engine.Register(&pool.Definition{
		Address:          poolAddr,
		Asset:            "lp",
		ShareToken:       "lps",
		RatioNumerator:   num,
		RatioDenominator: den,
	})
	require.NoError(t, err)
	return engine, ledger
}

func TestRegisterValidation(t *testing.T) {
	engine, _ := newPool(t, 1, 1)
	_, err := engine.Register(&pool.Definition{Address: poolAddr, Asset: "LP", ShareToken: "LPS", RatioNumerator: 1, RatioDenominator: 1})
	require.ErrorIs(t, err, pool.ErrPoolExists)

	_, err = engine.Register(&pool.Definition{Address: [20]byte{0x51}, Asset: "LP", ShareToken: "LPS"})
	require.ErrorIs(t, err, pool.ErrInvalidRatio)

	_, err = engine.Register(&pool.Definition{Address: [20]byte{0x52}, Asset: "LP", ShareToken: "lp", RatioNumerator: 1, RatioDenominator: 1})
	require.Error(t, err)

	_, err = engine.Pool([20]byte{0x99})
	require.ErrorIs(t, err, pool.ErrPoolNotFound)
}

func TestMintPoolShareAppliesRatio(t *testing.T) {
	engine, ledger := newPool(t, 2, 3)

	share, err := engine.MintPoolShare(poolAddr, provider, "LP", big.NewInt(500))
	require.NoError(t, err)
	require.Equal(t, "LPS", share.Token)
	require.EqualValues(t, 333, share.Amount.Int64())

	reserve, err := ledger.Balance("LP", pool.ReserveAddress(poolAddr))
	require.NoError(t, err)
	require.EqualValues(t, 500, reserve.Int64())
	shares, err := ledger.Balance("LPS", provider)
	require.NoError(t, err)
	require.EqualValues(t, 333, shares.Int64())

	def, err := engine.Pool(poolAddr)
	require.NoError(t, err)
	require.EqualValues(t, 500, def.TotalDeposited.Int64())
	require.EqualValues(t, 333, def.TotalShares.Int64())
}

func TestMintPoolShareRejects(t *testing.T) {
	engine, _ := newPool(t, 1, 1_000)

	_, err := engine.MintPoolShare(poolAddr, provider, "ASTRO", big.NewInt(10))
	require.ErrorIs(t, err, pool.ErrAssetMismatch)
	_, err = engine.MintPoolShare(poolAddr, provider, "LP", big.NewInt(0))
	require.ErrorIs(t, err, pool.ErrInvalidAmount)
	_, err = engine.MintPoolShare(poolAddr, provider, "LP", big.NewInt(999))
	require.ErrorIs(t, err, pool.ErrNothingMinted)
	_, err = engine.MintPoolShare(poolAddr, provider, "LP", big.NewInt(5_000))
	require.ErrorIs(t, err, bank.ErrInsufficientFunds)
}
