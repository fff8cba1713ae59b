package core

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"go.opentelemetry.io/otel/attribute"

	"lockdrop/native/lockdrop"
	"lockdrop/native/pool"
)

// Token describes a token registered at genesis.
type Token struct {
	Symbol   string
	Name     string
	Decimals uint8
}

// Allocation credits an initial balance at genesis.
type Allocation struct {
	Token   string
	Address [20]byte
	Amount  *big.Int
}

// Genesis is the initial node state: the lockdrop parameters, the tokens they
// reference, the migration pool and any funded balances. Reward funding is an
// allocation to the lockdrop custody account.
type Genesis struct {
	Lockdrop    *lockdrop.Config
	Tokens      []Token
	Pool        *pool.Definition
	Allocations []Allocation
}

// Initialized reports whether genesis has already been applied.
func (n *Node) Initialized(ctx context.Context) (bool, error) {
	_, err := n.Config(ctx)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, lockdrop.ErrNotInitialized):
		return false, nil
	default:
		return false, err
	}
}

// ApplyGenesis writes the genesis state in a single commit.
func (n *Node) ApplyGenesis(ctx context.Context, g *Genesis) error {
	if g == nil || g.Lockdrop == nil {
		return fmt.Errorf("genesis: lockdrop config required")
	}
	return n.execute(ctx, "genesis", func(e *engines) error {
		if _, err := e.lockdrop.Initialize(g.Lockdrop); err != nil {
			return fmt.Errorf("genesis: %w", err)
		}
		for _, token := range g.Tokens {
			if err := e.manager.RegisterToken(token.Symbol, token.Name, token.Decimals); err != nil {
				return fmt.Errorf("genesis: %w", err)
			}
		}
		if g.Pool != nil {
			if _, err := e.pool.Register(g.Pool); err != nil {
				return fmt.Errorf("genesis: register pool: %w", err)
			}
		}
		for _, alloc := range g.Allocations {
			if err := e.bank.Mint(alloc.Token, alloc.Address, alloc.Amount); err != nil {
				return fmt.Errorf("genesis: allocate %s: %w", alloc.Token, err)
			}
		}
		return nil
	}, attribute.Int("allocations", len(g.Allocations)))
}
