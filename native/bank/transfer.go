package bank

import (
	"fmt"
	"math/big"
)

// Transfer moves amount of token from one account to another. Either both
// balances change or neither does.
func (l *Ledger) Transfer(token string, from, to [20]byte, amount *big.Int) error {
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
	fromBalance, err := l.state.Balance(from[:], symbol)
	if err != nil {
		return err
	}
	if fromBalance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s has %s %s, needs %s", ErrInsufficientFunds, hexAddr(from), fromBalance, symbol, amount)
	}
	if from == to {
		return nil
	}
	toBalance, err := l.state.Balance(to[:], symbol)
	if err != nil {
		return err
	}
	if err := l.state.SetBalance(from[:], symbol, new(big.Int).Sub(fromBalance, amount)); err != nil {
		return err
	}
	if err := l.state.SetBalance(to[:], symbol, new(big.Int).Add(toBalance, amount)); err != nil {
		return err
	}
	l.emit(TransferEvent(symbol, from, to, amount))
	return nil
}
