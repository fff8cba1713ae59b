package bank

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"lockdrop/core/events"
	"lockdrop/core/types"
)

var (
	errNilState           = errors.New("bank: state not configured")
	errInvalidAmount      = errors.New("bank: amount must be positive")
	errTokenRequired      = errors.New("bank: token symbol required")
	ErrInsufficientFunds  = errors.New("bank: insufficient balance")
	ErrTokenNotRegistered = errors.New("bank: token not registered")
)

const (
	// EventTypeTransfer is emitted for every balance movement between accounts.
	EventTypeTransfer = "bank.transfer"
	// EventTypeMint is emitted when new units are credited to an account.
	EventTypeMint = "bank.mint"
)

type ledgerState interface {
	Balance(addr []byte, symbol string) (*big.Int, error)
	SetBalance(addr []byte, symbol string, amount *big.Int) error
	TokenExists(symbol string) bool
}

// Ledger is the token ledger used for custody transfers. Balances live in the
// injected state so ledger writes share the journal of the calling operation.
type Ledger struct {
	state   ledgerState
	emitter events.Emitter
}

// NewLedger constructs a ledger backed by the supplied state.
func NewLedger(state ledgerState) *Ledger {
	return &Ledger{state: state, emitter: events.NoopEmitter{}}
}

// SetEmitter configures the event emitter used by the ledger.
func (l *Ledger) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		l.emitter = events.NoopEmitter{}
		return
	}
	l.emitter = emitter
}

func (l *Ledger) emit(evt *types.Event) {
	if l == nil || l.emitter == nil || evt == nil {
		return
	}
	l.emitter.Emit(WrapEvent(evt))
}

func normalize(token string) (string, error) {
	trimmed := strings.ToUpper(strings.TrimSpace(token))
	if trimmed == "" {
		return "", errTokenRequired
	}
	return trimmed, nil
}

// Balance returns the balance of addr in token.
func (l *Ledger) Balance(token string, addr [20]byte) (*big.Int, error) {
	if l == nil || l.state == nil {
		return nil, errNilState
	}
	symbol, err := normalize(token)
	if err != nil {
		return nil, err
	}
	return l.state.Balance(addr[:], symbol)
}

// Mint credits amount of token to the recipient.
func (l *Ledger) Mint(token string, to [20]byte, amount *big.Int) error {
	if l == nil || l.state == nil {
		return errNilState
	}
	symbol, err := normalize(token)
	if err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return errInvalidAmount
	}
	if !l.state.TokenExists(symbol) {
		return fmt.Errorf("%w: %s", ErrTokenNotRegistered, symbol)
	}
	current, err := l.state.Balance(to[:], symbol)
	if err != nil {
		return err
	}
	if err := l.state.SetBalance(to[:], symbol, new(big.Int).Add(current, amount)); err != nil {
		return err
	}
	l.emit(MintEvent(symbol, to, amount))
	return nil
}

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

// TransferEvent describes a balance movement.
func TransferEvent(token string, from, to [20]byte, amount *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypeTransfer,
		Attributes: map[string]string{
			"token":  token,
			"from":   hexAddr(from),
			"to":     hexAddr(to),
			"amount": amount.String(),
		},
	}
}

// MintEvent describes newly credited units.
func MintEvent(token string, to [20]byte, amount *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypeMint,
		Attributes: map[string]string{
			"token":  token,
			"to":     hexAddr(to),
			"amount": amount.String(),
		},
	}
}

func hexAddr(addr [20]byte) string {
	return "0x" + hex.EncodeToString(addr[:])
}
