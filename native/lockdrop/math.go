package lockdrop

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
)

func toUint256(v *big.Int) (*uint256.Int, error) {
	if v == nil {
		return new(uint256.Int), nil
	}
	if v.Sign() < 0 {
		return nil, fmt.Errorf("%w: negative operand", ErrArithmeticOverflow)
	}
	out, overflow := uint256.FromBig(v)
	if overflow {
		return nil, fmt.Errorf("%w: operand exceeds 256 bits", ErrArithmeticOverflow)
	}
	return out, nil
}

func mulDiv(a, b, denom *big.Int) (*big.Int, error) {
	x, err := toUint256(a)
	if err != nil {
		return nil, err
	}
	y, err := toUint256(b)
	if err != nil {
		return nil, err
	}
	d, err := toUint256(denom)
	if err != nil {
		return nil, err
	}
	if d.IsZero() {
		return big.NewInt(0), nil
	}
	product, overflow := new(uint256.Int).MulOverflow(x, y)
	if overflow {
		return nil, fmt.Errorf("%w: %s * %s", ErrArithmeticOverflow, a, b)
	}
	return product.Div(product, d).ToBig(), nil
}

func checkedAdd(a, b *big.Int) (*big.Int, error) {
	x, err := toUint256(a)
	if err != nil {
		return nil, err
	}
	y, err := toUint256(b)
	if err != nil {
		return nil, err
	}
	sum, overflow := new(uint256.Int).AddOverflow(x, y)
	if overflow {
		return nil, fmt.Errorf("%w: %s + %s", ErrArithmeticOverflow, a, b)
	}
	return sum.ToBig(), nil
}

// checkedSub returns a-b and fails instead of going negative.
func checkedSub(a, b *big.Int) (*big.Int, error) {
	x, err := toUint256(a)
	if err != nil {
		return nil, err
	}
	y, err := toUint256(b)
	if err != nil {
		return nil, err
	}
	diff, underflow := new(uint256.Int).SubOverflow(x, y)
	if underflow {
		return nil, fmt.Errorf("%w: %s - %s", ErrArithmeticOverflow, a, b)
	}
	return diff.ToBig(), nil
}

// ScaledWeight returns divider + (duration-1) * multiplier, the weight
// coefficient 1 + (duration-1) * multiplier/divider scaled by divider. Keeping
// the scale keeps weights exact; it cancels in every ratio.
func ScaledWeight(cfg *Config, duration uint64) (*big.Int, error) {
	if cfg == nil || duration == 0 {
		return nil, fmt.Errorf("%w: duration must be positive", ErrInvalidDuration)
	}
	extra, overflow := new(uint256.Int).MulOverflow(uint256.NewInt(duration-1), uint256.NewInt(cfg.WeeklyMultiplier))
	if overflow {
		return nil, ErrArithmeticOverflow
	}
	weight, overflow := extra.AddOverflow(extra, uint256.NewInt(cfg.WeeklyDivider))
	if overflow {
		return nil, ErrArithmeticOverflow
	}
	return weight.ToBig(), nil
}

// Weight returns the unscaled weight coefficient for display.
func Weight(cfg *Config, duration uint64) (*big.Rat, error) {
	scaled, err := ScaledWeight(cfg, duration)
	if err != nil {
		return nil, err
	}
	if cfg.WeeklyDivider == 0 {
		return nil, fmt.Errorf("%w: weekly divider must be positive", ErrInvalidConfig)
	}
	return new(big.Rat).SetFrac(scaled, new(big.Int).SetUint64(cfg.WeeklyDivider)), nil
}

// WeightedShare returns principal * ScaledWeight(duration).
func WeightedShare(cfg *Config, principal *big.Int, duration uint64) (*big.Int, error) {
	weight, err := ScaledWeight(cfg, duration)
	if err != nil {
		return nil, err
	}
	return mulDiv(principal, weight, big.NewInt(1))
}

// MaxWithdrawable returns floor(principal * (windowEnd - now) / window). The
// cap is the full principal at the window start and zero from its end on.
func MaxWithdrawable(cfg *Config, principal *big.Int, now int64) (*big.Int, error) {
	if cfg == nil || cfg.WithdrawalWindow <= 0 || principal == nil || principal.Sign() <= 0 {
		return big.NewInt(0), nil
	}
	if now < cfg.InitTimestamp {
		now = cfg.InitTimestamp
	}
	remaining := cfg.WithdrawalWindowEnd() - now
	if remaining <= 0 {
		return big.NewInt(0), nil
	}
	return mulDiv(principal, big.NewInt(remaining), big.NewInt(cfg.WithdrawalWindow))
}

// RewardEntitlement returns floor(budget * weighted / total); zero when either
// the budget or the total weight is zero.
func RewardEntitlement(budget, weighted, total *big.Int) (*big.Int, error) {
	if budget == nil || budget.Sign() == 0 || total == nil || total.Sign() == 0 {
		return big.NewInt(0), nil
	}
	if weighted != nil && weighted.Cmp(total) > 0 {
		return nil, fmt.Errorf("%w: entry weight exceeds total", ErrArithmeticOverflow)
	}
	return mulDiv(budget, weighted, total)
}

// PoolShareEntitlement returns floor(minted * principal / totalMigrated).
func PoolShareEntitlement(minted, principal, totalMigrated *big.Int) (*big.Int, error) {
	if minted == nil || minted.Sign() == 0 || totalMigrated == nil || totalMigrated.Sign() == 0 {
		return big.NewInt(0), nil
	}
	if principal != nil && principal.Cmp(totalMigrated) > 0 {
		return nil, fmt.Errorf("%w: entry principal exceeds migrated total", ErrArithmeticOverflow)
	}
	return mulDiv(minted, principal, totalMigrated)
}

// RoundingDust returns the part of total left undistributed by the floor
// rounding of the supplied entitlements. It is bounded by the number of
// entitlements.
func RoundingDust(total *big.Int, entitlements []*big.Int) *big.Int {
	dust := newBigInt(total)
	for _, amount := range entitlements {
		if amount != nil {
			dust.Sub(dust, amount)
		}
	}
	if dust.Sign() < 0 {
		return big.NewInt(0)
	}
	return dust
}
