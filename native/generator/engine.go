package generator

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"lockdrop/core/events"
	"lockdrop/core/types"
	"lockdrop/native/lockdrop"
)

var (
	errNilState           = errors.New("generator engine: state not configured")
	errNilBank            = errors.New("generator engine: bank not configured")
	ErrInvalidAmount      = errors.New("generator engine: amount must be positive")
	ErrInsufficientStake  = errors.New("generator engine: insufficient stake")
	ErrGeneratorRequired  = errors.New("generator engine: generator address required")
	ErrTokenRequired      = errors.New("generator engine: token required")
)

const (
	// EventTypeStaked is emitted when tokens are staked with a generator.
	EventTypeStaked = "generator.staked"
	// EventTypeUnstaked is emitted when staked tokens are released.
	EventTypeUnstaked = "generator.unstaked"
)

type engineState interface {
	GeneratorStakeGet(generator [20]byte, owner [20]byte, token string) (*big.Int, error)
	GeneratorStakePut(generator [20]byte, owner [20]byte, token string, amount *big.Int) error
	GeneratorTotalStaked(generator [20]byte, token string) (*big.Int, error)
	GeneratorTotalStakedPut(generator [20]byte, token string, amount *big.Int) error
}

type ledger interface {
	Transfer(token string, from, to [20]byte, amount *big.Int) error
}

// Engine is the staking ledger that holds pool shares on behalf of their
// owners. Staked tokens sit in the generator vault account.
type Engine struct {
	state   engineState
	bank    ledger
	emitter events.Emitter
}

var _ lockdrop.Generator = (*Engine)(nil)

// NewEngine constructs a generator engine.
func NewEngine() *Engine {
	return &Engine{emitter: events.NoopEmitter{}}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetBank configures the ledger used to move staked tokens.
func (e *Engine) SetBank(bank ledger) { e.bank = bank }

// SetEmitter configures the event emitter used by the engine.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// VaultAddress returns the account holding tokens staked with generator.
func VaultAddress(generator [20]byte) [20]byte {
	var addr [20]byte
	copy(addr[:], ethcrypto.Keccak256(append([]byte("generator:vault:"), generator[:]...))[12:])
	return addr
}

func (e *Engine) validate(generator [20]byte, token string, amount *big.Int) (string, error) {
	if e == nil || e.state == nil {
		return "", errNilState
	}
	if e.bank == nil {
		return "", errNilBank
	}
	var zero [20]byte
	if generator == zero {
		return "", ErrGeneratorRequired
	}
	symbol := strings.ToUpper(strings.TrimSpace(token))
	if symbol == "" {
		return "", ErrTokenRequired
	}
	if amount == nil || amount.Sign() <= 0 {
		return "", ErrInvalidAmount
	}
	return symbol, nil
}

// Stake moves amount of token from owner into the generator vault and credits
// the owner's stake.
func (e *Engine) Stake(generator [20]byte, owner [20]byte, token string, amount *big.Int) error {
	symbol, err := e.validate(generator, token, amount)
	if err != nil {
		return err
	}
	stake, err := e.state.GeneratorStakeGet(generator, owner, symbol)
	if err != nil {
		return err
	}
	total, err := e.state.GeneratorTotalStaked(generator, symbol)
	if err != nil {
		return err
	}
	if err := e.bank.Transfer(symbol, owner, VaultAddress(generator), amount); err != nil {
		return err
	}
	if err := e.state.GeneratorStakePut(generator, owner, symbol, new(big.Int).Add(stake, amount)); err != nil {
		return err
	}
	if err := e.state.GeneratorTotalStakedPut(generator, symbol, new(big.Int).Add(total, amount)); err != nil {
		return err
	}
	e.emit(EventTypeStaked, generator, owner, symbol, amount)
	return nil
}

// Withdraw releases amount of the owner's staked token back to the owner.
func (e *Engine) Withdraw(generator [20]byte, owner [20]byte, token string, amount *big.Int) error {
	symbol, err := e.validate(generator, token, amount)
	if err != nil {
		return err
	}
	stake, err := e.state.GeneratorStakeGet(generator, owner, symbol)
	if err != nil {
		return err
	}
	if stake.Cmp(amount) < 0 {
		return fmt.Errorf("%w: staked %s, requested %s", ErrInsufficientStake, stake, amount)
	}
	total, err := e.state.GeneratorTotalStaked(generator, symbol)
	if err != nil {
		return err
	}
	if err := e.bank.Transfer(symbol, VaultAddress(generator), owner, amount); err != nil {
		return err
	}
	if err := e.state.GeneratorStakePut(generator, owner, symbol, new(big.Int).Sub(stake, amount)); err != nil {
		return err
	}
	remaining := new(big.Int).Sub(total, amount)
	if remaining.Sign() < 0 {
		remaining = big.NewInt(0)
	}
	if err := e.state.GeneratorTotalStakedPut(generator, symbol, remaining); err != nil {
		return err
	}
	e.emit(EventTypeUnstaked, generator, owner, symbol, amount)
	return nil
}

// Staked returns the owner's staked balance.
func (e *Engine) Staked(generator [20]byte, owner [20]byte, token string) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	return e.state.GeneratorStakeGet(generator, owner, strings.ToUpper(strings.TrimSpace(token)))
}

func (e *Engine) emit(eventType string, generator, owner [20]byte, token string, amount *big.Int) {
	if e.emitter == nil {
		return
	}
	e.emitter.Emit(lockdrop.WrapEvent(&types.Event{
		Type: eventType,
		Attributes: map[string]string{
			"generator": "0x" + hex.EncodeToString(generator[:]),
			"owner":     "0x" + hex.EncodeToString(owner[:]),
			"token":     token,
			"amount":    amount.String(),
		},
	}))
}
