package pool

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"lockdrop/core/events"
	"lockdrop/core/types"
	"lockdrop/native/lockdrop"
)

var (
	errNilState         = errors.New("pool engine: state not configured")
	errNilBank          = errors.New("pool engine: bank not configured")
	ErrPoolNotFound     = errors.New("pool engine: pool not registered")
	ErrPoolExists       = errors.New("pool engine: pool already registered")
	ErrAssetMismatch    = errors.New("pool engine: asset not accepted by pool")
	ErrInvalidRatio     = errors.New("pool engine: conversion ratio must be positive")
	ErrInvalidAmount    = errors.New("pool engine: amount must be positive")
	ErrNothingMinted    = errors.New("pool engine: deposit too small to mint shares")
)

// EventTypeSharesMinted is emitted when the pool takes liquidity and mints
// shares.
const EventTypeSharesMinted = "pool.shares.minted"

type engineState interface {
	PoolDefinitionGet(addr [20]byte) (*Definition, bool, error)
	PoolDefinitionPut(def *Definition) error
}

type ledger interface {
	Transfer(token string, from, to [20]byte, amount *big.Int) error
	Mint(token string, to [20]byte, amount *big.Int) error
}

// Engine is an in-process liquidity pool used as the migration target. It
// takes custody of the deposit asset and mints its share token at the pool's
// configured ratio. It does not price swaps.
type Engine struct {
	state   engineState
	bank    ledger
	emitter events.Emitter
}

var _ lockdrop.LiquidityPool = (*Engine)(nil)

// NewEngine constructs a pool engine.
func NewEngine() *Engine {
	return &Engine{emitter: events.NoopEmitter{}}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetBank configures the ledger that moves assets and mints shares.
func (e *Engine) SetBank(bank ledger) { e.bank = bank }

// SetEmitter configures the event emitter used by the engine.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// ReserveAddress returns the account that holds a pool's deposited assets.
func ReserveAddress(pool [20]byte) [20]byte {
	var addr [20]byte
	copy(addr[:], ethcrypto.Keccak256(append([]byte("pool:reserve:"), pool[:]...))[12:])
	return addr
}

// Register stores a new pool definition.
func (e *Engine) Register(def *Definition) (*Definition, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if def == nil {
		return nil, fmt.Errorf("pool engine: definition required")
	}
	clean := def.Clone()
	clean.Asset = strings.ToUpper(strings.TrimSpace(clean.Asset))
	clean.ShareToken = strings.ToUpper(strings.TrimSpace(clean.ShareToken))
	var zero [20]byte
	switch {
	case clean.Address == zero:
		return nil, fmt.Errorf("pool engine: address required")
	case clean.Asset == "" || clean.ShareToken == "":
		return nil, fmt.Errorf("pool engine: asset and share token required")
	case clean.Asset == clean.ShareToken:
		return nil, fmt.Errorf("pool engine: share token must differ from asset")
	case clean.RatioNumerator == 0 || clean.RatioDenominator == 0:
		return nil, ErrInvalidRatio
	}
	if _, exists, err := e.state.PoolDefinitionGet(clean.Address); err != nil {
		return nil, err
	} else if exists {
		return nil, ErrPoolExists
	}
	clean.TotalDeposited = big.NewInt(0)
	clean.TotalShares = big.NewInt(0)
	if err := e.state.PoolDefinitionPut(clean); err != nil {
		return nil, err
	}
	return clean.Clone(), nil
}

// Pool returns the stored definition.
func (e *Engine) Pool(addr [20]byte) (*Definition, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	def, ok, err := e.state.PoolDefinitionGet(addr)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrPoolNotFound
	}
	return def, nil
}

// MintPoolShare moves amount of asset from the provider into the pool reserve
// and mints floor(amount * numerator / denominator) share tokens to the
// provider.
func (e *Engine) MintPoolShare(poolAddr [20]byte, provider [20]byte, asset string, amount *big.Int) (lockdrop.PoolShare, error) {
	if e == nil || e.state == nil {
		return lockdrop.PoolShare{}, errNilState
	}
	if e.bank == nil {
		return lockdrop.PoolShare{}, errNilBank
	}
	if amount == nil || amount.Sign() <= 0 {
		return lockdrop.PoolShare{}, ErrInvalidAmount
	}
	def, err := e.Pool(poolAddr)
	if err != nil {
		return lockdrop.PoolShare{}, err
	}
	if !strings.EqualFold(strings.TrimSpace(asset), def.Asset) {
		return lockdrop.PoolShare{}, fmt.Errorf("%w: got %s, want %s", ErrAssetMismatch, asset, def.Asset)
	}
	minted := new(big.Int).Mul(amount, new(big.Int).SetUint64(def.RatioNumerator))
	minted.Quo(minted, new(big.Int).SetUint64(def.RatioDenominator))
	if minted.Sign() == 0 {
		return lockdrop.PoolShare{}, ErrNothingMinted
	}
	if err := e.bank.Transfer(def.Asset, provider, ReserveAddress(poolAddr), amount); err != nil {
		return lockdrop.PoolShare{}, err
	}
	if err := e.bank.Mint(def.ShareToken, provider, minted); err != nil {
		return lockdrop.PoolShare{}, err
	}
	def.TotalDeposited.Add(def.TotalDeposited, amount)
	def.TotalShares.Add(def.TotalShares, minted)
	if err := e.state.PoolDefinitionPut(def); err != nil {
		return lockdrop.PoolShare{}, err
	}
	e.emitter.Emit(lockdrop.WrapEvent(&types.Event{
		Type: EventTypeSharesMinted,
		Attributes: map[string]string{
			"pool":       "0x" + hex.EncodeToString(poolAddr[:]),
			"provider":   "0x" + hex.EncodeToString(provider[:]),
			"asset":      def.Asset,
			"amount":     amount.String(),
			"shareToken": def.ShareToken,
			"shares":     minted.String(),
			"ratio":      strconv.FormatUint(def.RatioNumerator, 10) + "/" + strconv.FormatUint(def.RatioDenominator, 10),
		},
	}))
	return lockdrop.PoolShare{Token: def.ShareToken, Amount: new(big.Int).Set(minted)}, nil
}
