package bank

import (
	"errors"
	"math/big"
	"strings"
	"testing"
)

type memState struct {
	tokens   map[string]bool
	balances map[string]*big.Int
}

func newMemState(tokens ...string) *memState {
	s := &memState{tokens: make(map[string]bool), balances: make(map[string]*big.Int)}
	for _, token := range tokens {
		s.tokens[token] = true
	}
	return s
}

func (s *memState) Balance(addr []byte, symbol string) (*big.Int, error) {
	if v, ok := s.balances[symbol+string(addr)]; ok {
		return new(big.Int).Set(v), nil
	}
	return big.NewInt(0), nil
}

func (s *memState) SetBalance(addr []byte, symbol string, amount *big.Int) error {
	s.balances[symbol+string(addr)] = new(big.Int).Set(amount)
	return nil
}

func (s *memState) TokenExists(symbol string) bool { return s.tokens[symbol] }

func TestLedgerMintAndTransfer(t *testing.T) {
	ledger := NewLedger(newMemState("LP"))
	alice := [20]byte{0x01}
	bob := [20]byte{0x02}

	if err := ledger.Mint("lp", alice, big.NewInt(100)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := ledger.Transfer("LP", alice, bob, big.NewInt(40)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	aliceBal, _ := ledger.Balance("LP", alice)
	bobBal, _ := ledger.Balance("LP", bob)
	if aliceBal.Int64() != 60 || bobBal.Int64() != 40 {
		t.Fatalf("unexpected balances alice=%s bob=%s", aliceBal, bobBal)
	}

	err := ledger.Transfer("LP", alice, bob, big.NewInt(61))
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
	if aliceBal, _ = ledger.Balance("LP", alice); aliceBal.Int64() != 60 {
		t.Fatalf("failed transfer changed balance: %s", aliceBal)
	}
}

func TestLedgerRejectsUnknownTokenAndBadAmounts(t *testing.T) {
	ledger := NewLedger(newMemState("LP"))
	addr := [20]byte{0x09}
	if err := ledger.Mint("ASTRO", addr, big.NewInt(1)); !errors.Is(err, ErrTokenNotRegistered) {
		t.Fatalf("expected unregistered token error, got %v", err)
	}
	if err := ledger.Mint("LP", addr, big.NewInt(0)); err == nil || !strings.Contains(err.Error(), "positive") {
		t.Fatalf("expected amount error, got %v", err)
	}
	if err := ledger.Transfer(" ", addr, addr, big.NewInt(1)); err == nil {
		t.Fatalf("expected token required error")
	}
}
