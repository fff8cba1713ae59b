package lockdrop

import (
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// Bank moves fungible tokens between accounts. Implementations must either
// move exactly the requested amount or fail without side effects.
type Bank interface {
	Transfer(token string, from, to [20]byte, amount *big.Int) error
}

// PoolShare identifies the share token minted by a liquidity pool.
type PoolShare struct {
	Token  string
	Amount *big.Int
}

// LiquidityPool takes custody of the deposit asset and mints pool shares to
// the provider.
type LiquidityPool interface {
	MintPoolShare(pool [20]byte, provider [20]byte, asset string, amount *big.Int) (PoolShare, error)
}

// Generator stakes pool shares on behalf of an owner and releases them again.
type Generator interface {
	Stake(generator [20]byte, owner [20]byte, token string, amount *big.Int) error
	Withdraw(generator [20]byte, owner [20]byte, token string, amount *big.Int) error
}

// ModuleAddress returns the account that holds deposited principal, the
// reward budget and the staked pool shares.
func ModuleAddress() [20]byte {
	var addr [20]byte
	copy(addr[:], ethcrypto.Keccak256([]byte("module:lockdrop"))[12:])
	return addr
}
