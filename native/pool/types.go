package pool

import "math/big"

// Definition describes a migration pool: the asset it accepts and the share
// token it mints at a fixed conversion ratio.
type Definition struct {
	Address          [20]byte
	Asset            string
	ShareToken       string
	RatioNumerator   uint64
	RatioDenominator uint64
	TotalDeposited   *big.Int
	TotalShares      *big.Int
}

// Clone returns a deep copy of the definition.
func (d *Definition) Clone() *Definition {
	if d == nil {
		return nil
	}
	clone := *d
	clone.TotalDeposited = newBigInt(d.TotalDeposited)
	clone.TotalShares = newBigInt(d.TotalShares)
	return &clone
}

func newBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
