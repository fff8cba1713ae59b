package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math/big"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"lockdrop/core"
	"lockdrop/crypto"
	"lockdrop/native/lockdrop"
	"lockdrop/rpc"
	"lockdrop/storage"
)

type capturedCall struct {
	method   string
	params   interface{}
	withAuth bool
}

func stubRPC(t *testing.T, result string) *[]capturedCall {
	t.Helper()
	calls := &[]capturedCall{}
	original := rpcCall
	rpcCall = func(method string, params interface{}, withAuth bool) (json.RawMessage, *rpcError, error) {
		*calls = append(*calls, capturedCall{method: method, params: params, withAuth: withAuth})
		return json.RawMessage(result), nil, nil
	}
	t.Cleanup(func() { rpcCall = original })
	return calls
}

func TestCommandArgValidation(t *testing.T) {
	calls := stubRPC(t, `{}`)
	alice := crypto.Address{0xA1}.String()
	cases := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"usage", nil, "Usage:"},
		{"unknown", []string{"frobnicate"}, "Unknown command: frobnicate"},
		{"deposit missing duration", []string{"deposit", "--amount", "10"}, "--duration is required"},
		{"deposit zero duration", []string{"deposit", "--duration", "0", "--amount", "10"}, "--duration must be a positive integer"},
		{"deposit bad amount", []string{"deposit", "--duration", "4", "--amount", "1.5"}, "--amount must be an integer"},
		{"deposit negative", []string{"deposit", "--duration", "4", "--amount", "-3"}, "--amount must be positive"},
		{"withdraw bad user", []string{"withdraw", "--user", "nope", "--duration", "4", "--amount", "1"}, "invalid --user"},
		{"balance missing token", []string{"balance", "--address", alice}, "--token is required"},
		{"user missing address", []string{"user"}, "--address is required"},
		{"update-config empty", []string{"update-config"}, "at least one field"},
		{"mint missing to", []string{"mint", "--token", "LP", "--amount", "1"}, "--to is required"},
		{"delegate missing amount", []string{"delegate", "--duration", "4"}, "--amount"},
		{"auction-return missing user", []string{"auction-return", "--duration", "4", "--amount", "1"}, "--user is required"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			code := run(tc.args, &stdout, &stderr)
			require.Equal(t, 1, code)
			require.Contains(t, stderr.String(), tc.wantErr)
		})
	}
	require.Empty(t, *calls)
}

func TestCommandsBuildParams(t *testing.T) {
	calls := stubRPC(t, `{"ok":true}`)
	alice := crypto.Address{0xA1}
	var stdout, stderr bytes.Buffer

	require.Equal(t, 0, run([]string{"deposit", "--user", "0xa1" + strings.Repeat("00", 19), "--duration", "4", "--amount", "1.5e2"}, &stdout, &stderr), stderr.String())
	require.Equal(t, 0, run([]string{"update-config", "--pool", alice.String(), "--incentives", "0"}, &stdout, &stderr), stderr.String())
	require.Equal(t, 0, run([]string{"user", alice.String()}, &stdout, &stderr), stderr.String())
	require.Equal(t, 0, run([]string{"state"}, &stdout, &stderr), stderr.String())
	require.Equal(t, 0, run([]string{"delegate", "--user", alice.String(), "--duration", "4", "--amount", "3e4"}, &stdout, &stderr), stderr.String())
	require.Equal(t, 0, run([]string{"auction-return", "--user", alice.String(), "--duration", "4", "--amount", "100"}, &stdout, &stderr), stderr.String())

	require.Len(t, *calls, 6)
	deposit := (*calls)[0]
	require.Equal(t, "lockdrop_deposit", deposit.method)
	require.True(t, deposit.withAuth)
	require.Equal(t, rpc.LockParams{User: alice.String(), Duration: 4, Amount: "150"}, deposit.params)

	update := (*calls)[1].params.(rpc.UpdateConfigParams)
	require.NotNil(t, update.Pool)
	require.Equal(t, alice.String(), *update.Pool)
	require.Equal(t, "0", *update.LockdropIncentives)
	require.Nil(t, update.RewardToken)
	require.Nil(t, update.Generator)

	require.Equal(t, rpc.UserParams{User: alice.String()}, (*calls)[2].params)
	require.False(t, (*calls)[2].withAuth)
	require.Nil(t, (*calls)[3].params)
	require.Equal(t, "lockdrop_delegateToAuction", (*calls)[4].method)
	require.True(t, (*calls)[4].withAuth)
	require.Equal(t, rpc.LockParams{User: alice.String(), Duration: 4, Amount: "30000"}, (*calls)[4].params)
	require.Equal(t, "lockdrop_returnFromAuction", (*calls)[5].method)
	require.Equal(t, rpc.ReturnParams{User: alice.String(), Duration: 4, Amount: "100"}, (*calls)[5].params)
	require.Contains(t, stdout.String(), `"ok": true`)
}

func TestNormalizeAmount(t *testing.T) {
	cases := map[string]string{
		"100":      "100",
		"1_000":    "1000",
		"100e6":    "100000000",
		"1.5e6":    "1500000",
		"0.25e2":   "25",
		"007":      "7",
		"+12":      "12",
		"2.50e1":   "25",
		"1.000000": "1",
	}
	for in, want := range cases {
		got, err := normalizeAmount(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got, in)
	}
	for _, bad := range []string{"", "abc", "1.5", "0", "1e", "1.2.3", "-1"} {
		_, err := normalizeAmount(bad)
		require.Error(t, err, bad)
	}
}

func TestKeygenAndToken(t *testing.T) {
	dir := t.TempDir()
	keyPath := filepath.Join(dir, "owner.key")
	var stdout, stderr bytes.Buffer
	require.Equal(t, 0, run([]string{"keygen", "--out", keyPath}, &stdout, &stderr), stderr.String())
	address := strings.TrimSpace(stdout.String())
	require.True(t, strings.HasPrefix(address, crypto.AddressPrefix+"1"))
	info, err := os.Stat(keyPath)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	require.Equal(t, 1, run([]string{"keygen", "--out", keyPath}, &stdout, &stderr))

	t.Setenv("TEST_LOCKDROP_SECRET", "cli-test-secret-cli-test-secret-01")
	stdout.Reset()
	require.Equal(t, 0, run([]string{"token", "--key", keyPath, "--secret-env", "TEST_LOCKDROP_SECRET"}, &stdout, &stderr), stderr.String())
	require.Len(t, strings.Split(strings.TrimSpace(stdout.String()), "."), 3)
}

func TestTokenSecretResolution(t *testing.T) {
	t.Setenv("TEST_LOCKDROP_EMPTY", " ")
	var stderr bytes.Buffer
	_, err := resolveSecret("TEST_LOCKDROP_EMPTY", &stderr)
	require.ErrorContains(t, err, "set but empty")

	prev := readSecret
	t.Cleanup(func() { readSecret = prev })
	var asked string
	readSecret = func(envVar string, _ io.Writer) (string, error) {
		asked = envVar
		return "prompted-secret-prompted-secret-01", nil
	}
	var stdout bytes.Buffer
	code := run([]string{"token", "--subject", crypto.Address{0xA1}.String(), "--secret-env", "UNSET_LOCKDROP_SECRET"}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())
	require.Equal(t, "UNSET_LOCKDROP_SECRET", asked)
	require.NotEmpty(t, strings.TrimSpace(stdout.String()))
}

func TestQueriesAgainstServer(t *testing.T) {
	owner := crypto.Address{0x01}
	node, err := core.NewNode(storage.NewMemDB())
	require.NoError(t, err)
	node.SetNowFunc(func() int64 { return 1_100 })
	require.NoError(t, node.ApplyGenesis(context.Background(), &core.Genesis{
		Lockdrop: &lockdrop.Config{
			Owner:              owner,
			DepositToken:       "LP",
			InitTimestamp:      1_000,
			DepositWindow:      1_000,
			WithdrawalWindow:   500,
			MinLockDuration:    1,
			MaxLockDuration:    52,
			WeeklyDivider:      12,
			LockdropIncentives: big.NewInt(0),
		},
		Tokens:      []core.Token{{Symbol: "LP", Name: "Pair LP"}},
		Allocations: []core.Allocation{{Token: "LP", Address: owner, Amount: big.NewInt(10)}},
	}))
	srv := httptest.NewServer(rpc.NewServer(node, rpc.Config{}).Handler())
	defer srv.Close()

	original := rpcEndpoint
	rpcEndpoint = srv.URL
	defer func() { rpcEndpoint = original }()

	var stdout, stderr bytes.Buffer
	require.Equal(t, 0, run([]string{"phase"}, &stdout, &stderr), stderr.String())
	require.Contains(t, stdout.String(), `"withdrawal_open"`)

	stdout.Reset()
	require.Equal(t, 0, run([]string{"deposit", "--user", owner.String(), "--duration", "1", "--amount", "4"}, &stdout, &stderr), stderr.String())
	require.Contains(t, stdout.String(), `"principal": "4"`)

	stderr.Reset()
	require.Equal(t, 1, run([]string{"deposit", "--user", owner.String(), "--duration", "1", "--amount", "400"}, &stdout, &stderr))
	require.Contains(t, stderr.String(), "RPC error")
}
