package main

import (
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"

	"lockdrop/crypto"
	"lockdrop/rpc"
)

func newFlagSet(name string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}

func printError(w io.Writer, msg string) int {
	fmt.Fprintf(w, "Error: %s\n", msg)
	return 1
}

func runQueryCommand(method string, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet(method, stderr)
	if err := fs.Parse(args); err != nil {
		return 1
	}
	return invoke(method, nil, false, stdout, stderr)
}

func runUserCommand(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("user", stderr)
	var address string
	fs.StringVar(&address, "address", "", "account address (bech32 or 0x hex)")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if address == "" && fs.NArg() > 0 {
		address = fs.Arg(0)
	}
	user, err := normalizeAddress("--address", address, true)
	if err != nil {
		return printError(stderr, err.Error())
	}
	return invoke("lockdrop_userInfo", rpc.UserParams{User: user}, false, stdout, stderr)
}

func runEventsCommand(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("events", stderr)
	var (
		limit  int
		prefix string
	)
	fs.IntVar(&limit, "limit", 20, "maximum number of events")
	fs.StringVar(&prefix, "prefix", "", "only events whose type starts with prefix, e.g. lockdrop.")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if limit <= 0 {
		return printError(stderr, "--limit must be positive")
	}
	return invoke("lockdrop_events", rpc.EventsParams{Limit: limit, Prefix: prefix}, false, stdout, stderr)
}

func runLockCommand(name, method string, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet(name, stderr)
	var (
		user        string
		durationStr string
		amountStr   string
	)
	fs.StringVar(&user, "user", "", "account address; defaults to the bearer token subject")
	fs.StringVar(&durationStr, "duration", "", "lock duration in lock units")
	fs.StringVar(&amountStr, "amount", "", "amount in base units (supports 100e6 shorthand)")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	normalizedUser, err := normalizeAddress("--user", user, false)
	if err != nil {
		return printError(stderr, err.Error())
	}
	duration, err := parseDuration(durationStr)
	if err != nil {
		return printError(stderr, err.Error())
	}
	amount, err := normalizeAmount(amountStr)
	if err != nil {
		return printError(stderr, err.Error())
	}
	params := rpc.LockParams{User: normalizedUser, Duration: duration, Amount: amount}
	return invoke(method, params, true, stdout, stderr)
}

func runAuctionReturnCommand(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("auction-return", stderr)
	var caller, user, durationStr, amountStr string
	fs.StringVar(&caller, "caller", "", "auction contract address; defaults to the bearer token subject")
	fs.StringVar(&user, "user", "", "owner of the credited entry")
	fs.StringVar(&durationStr, "duration", "", "lock duration of the credited entry")
	fs.StringVar(&amountStr, "amount", "", "returned rewards in base units")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	normalizedCaller, err := normalizeAddress("--caller", caller, false)
	if err != nil {
		return printError(stderr, err.Error())
	}
	normalizedUser, err := normalizeAddress("--user", user, true)
	if err != nil {
		return printError(stderr, err.Error())
	}
	duration, err := parseDuration(durationStr)
	if err != nil {
		return printError(stderr, err.Error())
	}
	amount, err := normalizeAmount(amountStr)
	if err != nil {
		return printError(stderr, err.Error())
	}
	params := rpc.ReturnParams{Caller: normalizedCaller, User: normalizedUser, Duration: duration, Amount: amount}
	return invoke("lockdrop_returnFromAuction", params, true, stdout, stderr)
}

func runClaimCommand(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("claim", stderr)
	var user, durationStr string
	fs.StringVar(&user, "user", "", "account address; defaults to the bearer token subject")
	fs.StringVar(&durationStr, "duration", "", "lock duration of the entry to claim")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	normalizedUser, err := normalizeAddress("--user", user, false)
	if err != nil {
		return printError(stderr, err.Error())
	}
	duration, err := parseDuration(durationStr)
	if err != nil {
		return printError(stderr, err.Error())
	}
	return invoke("lockdrop_claim", rpc.ClaimParams{User: normalizedUser, Duration: duration}, true, stdout, stderr)
}

func runClaimAllCommand(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("claim-all", stderr)
	var user string
	fs.StringVar(&user, "user", "", "account address; defaults to the bearer token subject")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	normalizedUser, err := normalizeAddress("--user", user, false)
	if err != nil {
		return printError(stderr, err.Error())
	}
	return invoke("lockdrop_claimAll", rpc.UserParams{User: normalizedUser}, true, stdout, stderr)
}

func runMigrateCommand(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("migrate", stderr)
	var caller string
	fs.StringVar(&caller, "caller", "", "owner address; defaults to the bearer token subject")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	normalized, err := normalizeAddress("--caller", caller, false)
	if err != nil {
		return printError(stderr, err.Error())
	}
	return invoke("lockdrop_migrate", rpc.AdminParams{Caller: normalized}, true, stdout, stderr)
}

func runUpdateConfigCommand(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("update-config", stderr)
	var (
		caller      string
		rewardToken string
		auction     string
		generator   string
		pool        string
		incentives  string
	)
	fs.StringVar(&caller, "caller", "", "owner address; defaults to the bearer token subject")
	fs.StringVar(&rewardToken, "reward-token", "", "reward token symbol (set once)")
	fs.StringVar(&auction, "auction", "", "auction contract address (set once)")
	fs.StringVar(&generator, "generator", "", "generator address (set once)")
	fs.StringVar(&pool, "pool", "", "pool address (set once)")
	fs.StringVar(&incentives, "incentives", "", "total reward budget in base units")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	normalizedCaller, err := normalizeAddress("--caller", caller, false)
	if err != nil {
		return printError(stderr, err.Error())
	}
	params := rpc.UpdateConfigParams{Caller: normalizedCaller}
	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	if set["reward-token"] {
		token := strings.TrimSpace(rewardToken)
		params.RewardToken = &token
	}
	addressFlags := []struct {
		name  string
		value string
		dst   **string
	}{
		{"auction", auction, &params.AuctionContract},
		{"generator", generator, &params.Generator},
		{"pool", pool, &params.Pool},
	}
	for _, f := range addressFlags {
		if !set[f.name] {
			continue
		}
		normalized, err := normalizeAddress("--"+f.name, f.value, true)
		if err != nil {
			return printError(stderr, err.Error())
		}
		*f.dst = &normalized
	}
	if set["incentives"] {
		amount := "0"
		if strings.TrimSpace(incentives) != "0" {
			normalized, err := normalizeAmount(incentives)
			if err != nil {
				return printError(stderr, err.Error())
			}
			amount = normalized
		}
		params.LockdropIncentives = &amount
	}
	if params.RewardToken == nil && params.AuctionContract == nil && params.Generator == nil &&
		params.Pool == nil && params.LockdropIncentives == nil {
		return printError(stderr, "at least one field to update is required")
	}
	return invoke("lockdrop_updateConfig", params, true, stdout, stderr)
}

func runBalanceCommand(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("balance", stderr)
	var token, address string
	fs.StringVar(&token, "token", "", "token symbol")
	fs.StringVar(&address, "address", "", "account address")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if strings.TrimSpace(token) == "" {
		return printError(stderr, "--token is required")
	}
	normalized, err := normalizeAddress("--address", address, true)
	if err != nil {
		return printError(stderr, err.Error())
	}
	return invoke("bank_balance", rpc.BalanceParams{Token: token, Address: normalized}, false, stdout, stderr)
}

func runMintCommand(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("mint", stderr)
	var caller, token, to, amountStr string
	fs.StringVar(&caller, "caller", "", "owner address; defaults to the bearer token subject")
	fs.StringVar(&token, "token", "", "token symbol")
	fs.StringVar(&to, "to", "", "recipient address")
	fs.StringVar(&amountStr, "amount", "", "amount in base units (supports 100e6 shorthand)")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	normalizedCaller, err := normalizeAddress("--caller", caller, false)
	if err != nil {
		return printError(stderr, err.Error())
	}
	if strings.TrimSpace(token) == "" {
		return printError(stderr, "--token is required")
	}
	recipient, err := normalizeAddress("--to", to, true)
	if err != nil {
		return printError(stderr, err.Error())
	}
	amount, err := normalizeAmount(amountStr)
	if err != nil {
		return printError(stderr, err.Error())
	}
	params := rpc.MintParams{Caller: normalizedCaller, Token: token, To: recipient, Amount: amount}
	return invoke("bank_mint", params, true, stdout, stderr)
}

// normalizeAddress validates an address flag and returns it in bech32 form.
func normalizeAddress(flagName, value string, required bool) (string, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		if required {
			return "", fmt.Errorf("%s is required", flagName)
		}
		return "", nil
	}
	addr, err := crypto.ParseAddress(trimmed)
	if err != nil {
		return "", fmt.Errorf("invalid %s: %v", flagName, err)
	}
	return addr.String(), nil
}

func parseDuration(value string) (uint64, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, fmt.Errorf("--duration is required")
	}
	duration, err := strconv.ParseUint(trimmed, 10, 64)
	if err != nil || duration == 0 {
		return 0, fmt.Errorf("--duration must be a positive integer")
	}
	return duration, nil
}

// normalizeAmount converts "1.5e6" style shorthand into an integer string.
func normalizeAmount(value string) (string, error) {
	trimmed := strings.ReplaceAll(strings.TrimSpace(value), "_", "")
	if trimmed == "" {
		return "", fmt.Errorf("--amount is required")
	}
	var exponent int
	base := trimmed
	if idx := strings.IndexAny(trimmed, "eE"); idx != -1 {
		base = trimmed[:idx]
		expValue, err := strconv.ParseInt(strings.TrimSpace(trimmed[idx+1:]), 10, 32)
		if err != nil {
			return "", fmt.Errorf("invalid scientific notation in --amount")
		}
		exponent = int(expValue)
	}
	base = strings.TrimSpace(strings.TrimPrefix(base, "+"))
	if strings.HasPrefix(base, "-") {
		return "", fmt.Errorf("--amount must be positive")
	}
	parts := strings.Split(base, ".")
	if len(parts) > 2 {
		return "", fmt.Errorf("invalid amount format")
	}
	fractional := ""
	if len(parts) == 2 {
		fractional = parts[1]
	}
	digits := parts[0] + fractional
	if digits == "" || !isDigits(digits) {
		return "", fmt.Errorf("invalid amount format")
	}
	fractional = strings.TrimRight(fractional, "0")
	digits = strings.TrimLeft(parts[0]+fractional, "0")
	totalExponent := exponent - len(fractional)
	if totalExponent < 0 {
		return "", fmt.Errorf("--amount must be an integer")
	}
	if digits == "" {
		return "", fmt.Errorf("--amount must be positive")
	}
	return digits + strings.Repeat("0", totalExponent), nil
}

func isDigits(value string) bool {
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
