package rpc

import (
	"encoding/json"
	"math/big"

	"lockdrop/crypto"
	"lockdrop/native/lockdrop"
	"lockdrop/storage/eventlog"
)

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      interface{}       `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e *RPCError) Error() string { return e.Message }

// Request parameter objects. Amounts are decimal strings, addresses bech32 or
// 0x-prefixed hex. User and Caller may be omitted when the request carries a
// bearer token; the token subject is used instead.

type LockParams struct {
	User     string `json:"user,omitempty"`
	Duration uint64 `json:"duration"`
	Amount   string `json:"amount"`
}

type ClaimParams struct {
	User     string `json:"user,omitempty"`
	Duration uint64 `json:"duration"`
}

type UserParams struct {
	User string `json:"user,omitempty"`
}

// ReturnParams names the entry credited with rewards handed back by the
// auction contract, which is the caller.
type ReturnParams struct {
	Caller   string `json:"caller,omitempty"`
	User     string `json:"user"`
	Duration uint64 `json:"duration"`
	Amount   string `json:"amount"`
}

type AdminParams struct {
	Caller string `json:"caller,omitempty"`
}

type UpdateConfigParams struct {
	Caller             string  `json:"caller,omitempty"`
	RewardToken        *string `json:"rewardToken,omitempty"`
	AuctionContract    *string `json:"auctionContract,omitempty"`
	Generator          *string `json:"generator,omitempty"`
	Pool               *string `json:"pool,omitempty"`
	LockdropIncentives *string `json:"lockdropIncentives,omitempty"`
}

type EventsParams struct {
	Limit  int    `json:"limit,omitempty"`
	Prefix string `json:"prefix,omitempty"`
}

type BalanceParams struct {
	Token   string `json:"token"`
	Address string `json:"address"`
}

type MintParams struct {
	Caller string `json:"caller,omitempty"`
	Token  string `json:"token"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

// Result objects.

type ConfigResult struct {
	Owner              string `json:"owner"`
	DepositToken       string `json:"depositToken"`
	RewardToken        string `json:"rewardToken,omitempty"`
	AuctionContract    string `json:"auctionContract,omitempty"`
	Generator          string `json:"generator,omitempty"`
	Pool               string `json:"pool,omitempty"`
	InitTimestamp      int64  `json:"initTimestamp"`
	DepositWindow      int64  `json:"depositWindow"`
	WithdrawalWindow   int64  `json:"withdrawalWindow"`
	MinLockDuration    uint64 `json:"minLockDuration"`
	MaxLockDuration    uint64 `json:"maxLockDuration"`
	LockUnitSeconds    uint64 `json:"lockUnitSeconds"`
	WeeklyMultiplier   uint64 `json:"weeklyMultiplier"`
	WeeklyDivider      uint64 `json:"weeklyDivider"`
	LockdropIncentives string `json:"lockdropIncentives"`
}

type StateResult struct {
	Phase                   string `json:"phase"`
	TotalWeightedShare      string `json:"totalWeightedShare"`
	TotalPrincipalDeposited string `json:"totalPrincipalDeposited"`
	TotalPrincipalMigrated  string `json:"totalPrincipalMigrated"`
	PrincipalHeld           string `json:"principalHeld"`
	PoolShareToken          string `json:"poolShareToken,omitempty"`
	PoolSharesMinted        string `json:"poolSharesMinted"`
	MigratedAt              int64  `json:"migratedAt,omitempty"`
	ClaimsAllowed           bool   `json:"claimsAllowed"`
	Migrated                bool   `json:"migrated"`
	TotalRewardsClaimed     string `json:"totalRewardsClaimed"`
	TotalPoolSharesClaimed  string `json:"totalPoolSharesClaimed"`
	TotalRewardsDelegated   string `json:"totalRewardsDelegated"`
	TotalRewardsReturned    string `json:"totalRewardsReturned"`
	RewardDust              string `json:"rewardDust"`
	PoolShareDust           string `json:"poolShareDust"`
}

type PhaseResult struct {
	Phase string `json:"phase"`
	Code  uint8  `json:"code"`
}

type LockEntryResult struct {
	User              string `json:"user"`
	Duration          uint64 `json:"duration"`
	Principal         string `json:"principal"`
	WeightedShare     string `json:"weightedShare"`
	WithdrawalUsed    bool   `json:"withdrawalUsed"`
	RewardsClaimed    string `json:"rewardsClaimed"`
	PoolSharesClaimed string `json:"poolSharesClaimed"`
	RewardsDelegated  string `json:"rewardsDelegated"`
}

type EntryInfoResult struct {
	Duration             uint64 `json:"duration"`
	Principal            string `json:"principal"`
	WeightedShare        string `json:"weightedShare"`
	WithdrawalUsed       bool   `json:"withdrawalUsed"`
	MaxWithdrawable      string `json:"maxWithdrawable"`
	UnlockTimestamp      int64  `json:"unlockTimestamp,omitempty"`
	Unlocked             bool   `json:"unlocked"`
	RewardEntitlement    string `json:"rewardEntitlement"`
	RewardsClaimed       string `json:"rewardsClaimed"`
	RewardsDelegated     string `json:"rewardsDelegated"`
	ClaimableRewards     string `json:"claimableRewards"`
	PoolShareEntitlement string `json:"poolShareEntitlement"`
	PoolSharesClaimed    string `json:"poolSharesClaimed"`
	ClaimablePoolShares  string `json:"claimablePoolShares"`
}

type UserInfoResult struct {
	User                   string            `json:"user"`
	Entries                []EntryInfoResult `json:"entries"`
	TotalPrincipal         string            `json:"totalPrincipal"`
	TotalWeightedShare     string            `json:"totalWeightedShare"`
	TotalRewards           string            `json:"totalRewards"`
	TotalRewardsClaimed    string            `json:"totalRewardsClaimed"`
	TotalRewardsDelegated  string            `json:"totalRewardsDelegated"`
	TotalPoolShares        string            `json:"totalPoolShares"`
	TotalPoolSharesClaimed string            `json:"totalPoolSharesClaimed"`
}

type ClaimResult struct {
	User           string `json:"user"`
	Duration       uint64 `json:"duration"`
	RewardToken    string `json:"rewardToken,omitempty"`
	Rewards        string `json:"rewards"`
	PoolShareToken string `json:"poolShareToken,omitempty"`
	PoolShares     string `json:"poolShares"`
}

type ClaimSummaryResult struct {
	User            string        `json:"user"`
	Claims          []ClaimResult `json:"claims"`
	TotalRewards    string        `json:"totalRewards"`
	TotalPoolShares string        `json:"totalPoolShares"`
	Skipped         []uint64      `json:"skipped,omitempty"`
}

type EventResult struct {
	ID         string            `json:"id"`
	Sequence   uint64            `json:"sequence"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
	CreatedAt  int64             `json:"createdAt"`
}

type BalanceResult struct {
	Address string `json:"address"`
	Token   string `json:"token"`
	Balance string `json:"balance"`
}

type MintResult struct {
	To     string `json:"to"`
	Token  string `json:"token"`
	Amount string `json:"amount"`
}

func amountString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func addressString(addr [20]byte) string {
	a := crypto.Address(addr)
	if a.IsZero() {
		return ""
	}
	return a.String()
}

func formatConfig(cfg *lockdrop.Config) ConfigResult {
	return ConfigResult{
		Owner:              addressString(cfg.Owner),
		DepositToken:       cfg.DepositToken,
		RewardToken:        cfg.RewardToken,
		AuctionContract:    addressString(cfg.AuctionContract),
		Generator:          addressString(cfg.Generator),
		Pool:               addressString(cfg.Pool),
		InitTimestamp:      cfg.InitTimestamp,
		DepositWindow:      cfg.DepositWindow,
		WithdrawalWindow:   cfg.WithdrawalWindow,
		MinLockDuration:    cfg.MinLockDuration,
		MaxLockDuration:    cfg.MaxLockDuration,
		LockUnitSeconds:    cfg.LockUnitSeconds,
		WeeklyMultiplier:   cfg.WeeklyMultiplier,
		WeeklyDivider:      cfg.WeeklyDivider,
		LockdropIncentives: amountString(cfg.LockdropIncentives),
	}
}

func formatState(phase lockdrop.Phase, st *lockdrop.State, rewardDust, shareDust *big.Int) StateResult {
	return StateResult{
		Phase:                   phase.String(),
		TotalWeightedShare:      amountString(st.TotalWeightedShare),
		TotalPrincipalDeposited: amountString(st.TotalPrincipalDeposited),
		TotalPrincipalMigrated:  amountString(st.TotalPrincipalMigrated),
		PrincipalHeld:           amountString(st.PrincipalHeld()),
		PoolShareToken:          st.PoolShareToken,
		PoolSharesMinted:        amountString(st.PoolSharesMinted),
		MigratedAt:              st.MigratedAt,
		ClaimsAllowed:           st.ClaimsAllowed,
		Migrated:                st.Migrated,
		TotalRewardsClaimed:     amountString(st.TotalRewardsClaimed),
		TotalPoolSharesClaimed:  amountString(st.TotalPoolSharesClaimed),
		TotalRewardsDelegated:   amountString(st.TotalRewardsDelegated),
		TotalRewardsReturned:    amountString(st.TotalRewardsReturned),
		RewardDust:              amountString(rewardDust),
		PoolShareDust:           amountString(shareDust),
	}
}

func formatLockEntry(entry *lockdrop.LockEntry) LockEntryResult {
	return LockEntryResult{
		User:              addressString(entry.User),
		Duration:          entry.Duration,
		Principal:         amountString(entry.Principal),
		WeightedShare:     amountString(entry.WeightedShare),
		WithdrawalUsed:    entry.WithdrawalUsed,
		RewardsClaimed:    amountString(entry.RewardsClaimed),
		PoolSharesClaimed: amountString(entry.PoolSharesClaimed),
		RewardsDelegated:  amountString(entry.RewardsDelegated),
	}
}

func formatUserInfo(info *lockdrop.UserInfo) UserInfoResult {
	out := UserInfoResult{
		User:                   addressString(info.User),
		Entries:                make([]EntryInfoResult, 0, len(info.Entries)),
		TotalPrincipal:         amountString(info.TotalPrincipal),
		TotalWeightedShare:     amountString(info.TotalWeightedShare),
		TotalRewards:           amountString(info.TotalRewards),
		TotalRewardsClaimed:    amountString(info.TotalRewardsClaimed),
		TotalRewardsDelegated:  amountString(info.TotalRewardsDelegated),
		TotalPoolShares:        amountString(info.TotalPoolShares),
		TotalPoolSharesClaimed: amountString(info.TotalPoolSharesClaimed),
	}
	for _, e := range info.Entries {
		out.Entries = append(out.Entries, EntryInfoResult{
			Duration:             e.Duration,
			Principal:            amountString(e.Principal),
			WeightedShare:        amountString(e.WeightedShare),
			WithdrawalUsed:       e.WithdrawalUsed,
			MaxWithdrawable:      amountString(e.MaxWithdrawable),
			UnlockTimestamp:      e.UnlockTimestamp,
			Unlocked:             e.Unlocked,
			RewardEntitlement:    amountString(e.RewardEntitlement),
			RewardsClaimed:       amountString(e.RewardsClaimed),
			RewardsDelegated:     amountString(e.RewardsDelegated),
			ClaimableRewards:     amountString(e.ClaimableRewards),
			PoolShareEntitlement: amountString(e.PoolShareEntitlement),
			PoolSharesClaimed:    amountString(e.PoolSharesClaimed),
			ClaimablePoolShares:  amountString(e.ClaimablePoolShares),
		})
	}
	return out
}

func formatClaim(res *lockdrop.ClaimResult) ClaimResult {
	return ClaimResult{
		User:           addressString(res.User),
		Duration:       res.Duration,
		RewardToken:    res.RewardToken,
		Rewards:        amountString(res.Rewards),
		PoolShareToken: res.PoolShareToken,
		PoolShares:     amountString(res.PoolShares),
	}
}

func formatClaimSummary(summary *lockdrop.ClaimSummary) ClaimSummaryResult {
	out := ClaimSummaryResult{
		User:            addressString(summary.User),
		Claims:          make([]ClaimResult, 0, len(summary.Claims)),
		TotalRewards:    amountString(summary.TotalRewards),
		TotalPoolShares: amountString(summary.TotalPoolShares),
		Skipped:         summary.Skipped,
	}
	for _, c := range summary.Claims {
		out.Claims = append(out.Claims, formatClaim(c))
	}
	return out
}

func formatEvent(rec eventlog.Record) (EventResult, error) {
	evt, err := rec.Event()
	if err != nil {
		return EventResult{}, err
	}
	return EventResult{
		ID:         rec.ID.String(),
		Sequence:   rec.Sequence,
		Type:       rec.Type,
		Attributes: evt.Attributes,
		CreatedAt:  rec.CreatedAt.Unix(),
	}, nil
}
