package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"lockdrop/config"
	"lockdrop/core"
	"lockdrop/core/types"
	"lockdrop/crypto"
	"lockdrop/storage"
	"lockdrop/storage/eventlog"
)

func writeParams(t *testing.T) string {
	t.Helper()
	owner := crypto.Address{0x01}
	body := strings.Join([]string{
		"owner: " + owner.String(),
		"deposit_token: LP",
		"reward_token: ASTRO",
		"generator: 0x6000000000000000000000000000000000000000",
		"pool:",
		"  address: 0x5000000000000000000000000000000000000000",
		"  share_token: LPS",
		`init_time: "2026-11-01T00:00:00Z"`,
		"deposit_window: 120h",
		"withdrawal_window: 48h",
		"max_lock_duration: 52",
		`incentives: "1000"`,
		"tokens:",
		"  - symbol: LP",
		"  - symbol: ASTRO",
		"  - symbol: LPS",
		"allocations:",
		"  - token: ASTRO",
		"    address: custody",
		`    amount: "1000"`,
	}, "\n") + "\n"
	path := filepath.Join(t.TempDir(), "lockdrop.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestBootstrapAppliesGenesisOnce(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	node, err := core.NewNode(storage.NewMemDB())
	require.NoError(t, err)
	ctx := context.Background()

	require.Error(t, bootstrap(ctx, node, "", logger))

	path := writeParams(t)
	require.NoError(t, bootstrap(ctx, node, path, logger))
	cfg, err := node.Config(ctx)
	require.NoError(t, err)
	require.Equal(t, "LP", cfg.DepositToken)

	// A second start ignores the file, even a missing one.
	require.NoError(t, bootstrap(ctx, node, filepath.Join(t.TempDir(), "missing.yaml"), logger))
}

func TestResolveEventLogDSN(t *testing.T) {
	dir := t.TempDir()
	dsn, err := resolveEventLogDSN(&config.Config{DataDir: dir})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(dsn, "file:"+filepath.Join(dir, "events.db")))

	dsn, err = resolveEventLogDSN(&config.Config{DataDir: dir, EventLogDSN: " postgres://db/lockdrop "})
	require.NoError(t, err)
	require.Equal(t, "postgres://db/lockdrop", dsn)
}

func TestFirstNonEmpty(t *testing.T) {
	require.Equal(t, "b", firstNonEmpty("", "  ", "b", "c"))
	require.Equal(t, "", firstNonEmpty())
}

func TestVerifyAndExportEventLog(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	dir := t.TempDir()
	dsn, err := eventlog.FileDSN(filepath.Join(dir, "events.db"))
	require.NoError(t, err)
	store, err := eventlog.Open(dsn)
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, verifyEventLog(store, logger))
	_, err = store.Append(&types.Event{Type: "lockdrop.test", Attributes: map[string]string{"k": "v"}})
	require.NoError(t, err)
	require.NoError(t, verifyEventLog(store, logger))

	out := filepath.Join(dir, "events.parquet")
	require.NoError(t, exportEvents(store, out, logger))
	info, err := os.Stat(out)
	require.NoError(t, err)
	require.Positive(t, info.Size())
}
