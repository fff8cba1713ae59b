package lockdrop

import (
	"encoding/hex"
	"math/big"
	"strconv"

	"lockdrop/core/events"
	"lockdrop/core/types"
)

const (
	// EventTypeInitialized is emitted once when the lockdrop is configured.
	EventTypeInitialized = "lockdrop.initialized"
	// EventTypeDeposited is emitted for every accepted deposit.
	EventTypeDeposited = "lockdrop.lock.deposited"
	// EventTypeWithdrawn is emitted when principal leaves during the
	// withdrawal window.
	EventTypeWithdrawn = "lockdrop.lock.withdrawn"
	// EventTypeMigrated is emitted when liquidity moves into the pool.
	EventTypeMigrated = "lockdrop.migrated"
	// EventTypeClaimed is emitted when a claim transfers tokens.
	EventTypeClaimed = "lockdrop.lock.claimed"
	// EventTypeConfigUpdated is emitted for administrator patches.
	EventTypeConfigUpdated = "lockdrop.config.updated"
	// EventTypeDelegated is emitted when rewards move to the auction contract.
	EventTypeDelegated = "lockdrop.rewards.delegated"
	EventTypeReturned  = "lockdrop.rewards.returned"
)

type eventEnvelope struct {
	evt *types.Event
}

func (e eventEnvelope) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e eventEnvelope) Event() *types.Event { return e.evt }

// WrapEvent converts a raw event payload into the emitter-friendly envelope.
func WrapEvent(evt *types.Event) events.Event { return eventEnvelope{evt: evt} }

// InitializedEvent describes the lockdrop windows at creation.
func InitializedEvent(cfg *Config) *types.Event {
	return &types.Event{
		Type: EventTypeInitialized,
		Attributes: map[string]string{
			"owner":            hexAddr(cfg.Owner),
			"depositToken":     cfg.DepositToken,
			"initTimestamp":    strconv.FormatInt(cfg.InitTimestamp, 10),
			"depositWindow":    strconv.FormatInt(cfg.DepositWindow, 10),
			"withdrawalWindow": strconv.FormatInt(cfg.WithdrawalWindow, 10),
		},
	}
}

// DepositedEvent captures a deposit into a lock bucket.
func DepositedEvent(user [20]byte, duration uint64, amount, principal, weighted *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypeDeposited,
		Attributes: map[string]string{
			"user":          hexAddr(user),
			"duration":      strconv.FormatUint(duration, 10),
			"amount":        amountString(amount),
			"principal":     amountString(principal),
			"weightedShare": amountString(weighted),
		},
	}
}

// WithdrawnEvent captures a withdrawal from a lock bucket.
func WithdrawnEvent(user [20]byte, duration uint64, amount, principal *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypeWithdrawn,
		Attributes: map[string]string{
			"user":      hexAddr(user),
			"duration":  strconv.FormatUint(duration, 10),
			"amount":    amountString(amount),
			"principal": amountString(principal),
		},
	}
}

// MigratedEvent captures the liquidity migration.
func MigratedEvent(st *State) *types.Event {
	return &types.Event{
		Type: EventTypeMigrated,
		Attributes: map[string]string{
			"principal":      amountString(st.TotalPrincipalMigrated),
			"poolShareToken": st.PoolShareToken,
			"poolShares":     amountString(st.PoolSharesMinted),
			"migratedAt":     strconv.FormatInt(st.MigratedAt, 10),
		},
	}
}

// ClaimedEvent captures the transfers performed by a claim.
func ClaimedEvent(res *ClaimResult) *types.Event {
	return &types.Event{
		Type: EventTypeClaimed,
		Attributes: map[string]string{
			"user":           hexAddr(res.User),
			"duration":       strconv.FormatUint(res.Duration, 10),
			"rewardToken":    res.RewardToken,
			"rewards":        amountString(res.Rewards),
			"poolShareToken": res.PoolShareToken,
			"poolShares":     amountString(res.PoolShares),
		},
	}
}

// DelegatedEvent captures rewards handed to the auction contract.
func DelegatedEvent(user [20]byte, duration uint64, auction [20]byte, amount, delegated *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypeDelegated,
		Attributes: map[string]string{
			"user":      hexAddr(user),
			"duration":  strconv.FormatUint(duration, 10),
			"auction":   hexAddr(auction),
			"amount":    amountString(amount),
			"delegated": amountString(delegated),
		},
	}
}

// ReturnedEvent captures rewards the auction contract handed back.
func ReturnedEvent(user [20]byte, duration uint64, amount, delegated *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypeReturned,
		Attributes: map[string]string{
			"user":      hexAddr(user),
			"duration":  strconv.FormatUint(duration, 10),
			"amount":    amountString(amount),
			"delegated": amountString(delegated),
		},
	}
}

// ConfigUpdatedEvent lists the fields touched by an administrator patch.
func ConfigUpdatedEvent(fields map[string]string) *types.Event {
	attrs := make(map[string]string, len(fields))
	for k, v := range fields {
		attrs[k] = v
	}
	return &types.Event{Type: EventTypeConfigUpdated, Attributes: attrs}
}

func amountString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func hexAddr(addr [20]byte) string {
	return "0x" + hex.EncodeToString(addr[:])
}
