package crowdsale

import (
	"fmt"
	"math"
	"math/big"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

var (
	weiPerNative = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	spotScale    = big.NewInt(100_000_000)
	centsPerUSD  = decimal.NewFromInt(100)
)

// spotDecimals is the precision kept from a spot quote before conversion.
const spotDecimals = 8

// TokenPrice returns the native price of one token unit: usdRate × unitPriceCents.
func TokenPrice(usdRate *big.Int, unitPriceCents uint64) (*big.Int, error) {
	if usdRate == nil || usdRate.Sign() <= 0 {
		return nil, ErrInvalidRate
	}
	if unitPriceCents == 0 {
		return nil, fmt.Errorf("%w: zero unit price", ErrInvalidConfig)
	}
	return checkedMul(usdRate, new(big.Int).SetUint64(unitPriceCents))
}

// TokensForValue splits a payment into whole token units. exact is false when
// the payment is not a multiple of the token price.
func TokensForValue(value, price *big.Int) (*big.Int, bool) {
	if value == nil || price == nil || price.Sign() <= 0 {
		return big.NewInt(0), false
	}
	tokens, rem := new(big.Int).QuoRem(value, price, new(big.Int))
	return tokens, rem.Sign() == 0
}

// CentsForValue converts a native amount to whole fiat cents, rounding down.
func CentsForValue(value, usdRate *big.Int) *big.Int {
	if value == nil || usdRate == nil || usdRate.Sign() <= 0 {
		return big.NewInt(0)
	}
	return new(big.Int).Quo(value, usdRate)
}

// UsdTokenAmount returns how many whole token units a fiat amount in cents buys.
func UsdTokenAmount(cents *big.Int, unitPriceCents uint64) *big.Int {
	if cents == nil || cents.Sign() <= 0 || unitPriceCents == 0 {
		return big.NewInt(0)
	}
	return new(big.Int).Quo(cents, new(big.Int).SetUint64(unitPriceCents))
}

// WeiTokenPrice returns the native cost of the given token units.
func WeiTokenPrice(tokens, price *big.Int) (*big.Int, error) {
	if tokens == nil || tokens.Sign() < 0 {
		return nil, ErrInvalidAmount
	}
	return checkedMul(tokens, price)
}

// CentsToWei converts a fiat bound in cents to native units at the given rate.
func CentsToWei(cents uint64, usdRate *big.Int) (*big.Int, error) {
	if usdRate == nil || usdRate.Sign() <= 0 {
		return nil, ErrInvalidRate
	}
	return checkedMul(new(big.Int).SetUint64(cents), usdRate)
}

// UsdRateFromSpot derives the native units per cent from the USD price of one
// native unit, keeping at most eight decimals of the quote:
//
//	floor(1e18 / floor(spot × 1e8)) × 1e8 / 100
func UsdRateFromSpot(spot decimal.Decimal) (*big.Int, error) {
	scaled := spot.Shift(spotDecimals).Floor().BigInt()
	if scaled.Sign() <= 0 {
		return nil, fmt.Errorf("%w: spot price must be positive", ErrInvalidRate)
	}
	rate := new(big.Int).Quo(weiPerNative, scaled)
	rate.Mul(rate, spotScale)
	rate.Quo(rate, big.NewInt(100))
	if rate.Sign() == 0 {
		return nil, fmt.Errorf("%w: spot price too large", ErrInvalidRate)
	}
	return rate, nil
}

// UsdRateFromQuote derives the native units per cent from the native amount
// one USD buys, truncated to nine decimals: floor(q × 1e9) × 1e18 / 1e11.
func UsdRateFromQuote(nativePerUSD decimal.Decimal) (*big.Int, error) {
	scaled := nativePerUSD.Shift(9).Floor().BigInt()
	if scaled.Sign() <= 0 {
		return nil, fmt.Errorf("%w: quote must be positive", ErrInvalidRate)
	}
	rate := new(big.Int).Mul(scaled, weiPerNative)
	rate.Quo(rate, big.NewInt(100_000_000_000))
	if !fitsUint256(rate) {
		return nil, ErrOverflow
	}
	return rate, nil
}

// CentsFromUSD converts a dollar amount to cents. Fractions of a cent are rejected.
func CentsFromUSD(usd decimal.Decimal) (uint64, error) {
	if usd.Sign() < 0 {
		return 0, fmt.Errorf("%w: negative amount %s", ErrInvalidConfig, usd)
	}
	cents := usd.Mul(centsPerUSD)
	if !cents.Equal(cents.Truncate(0)) {
		return 0, fmt.Errorf("%w: %s is not a whole number of cents", ErrInvalidConfig, usd)
	}
	value := cents.BigInt()
	if !value.IsUint64() || value.Uint64() > math.MaxInt64 {
		return 0, fmt.Errorf("%w: amount %s out of range", ErrInvalidConfig, usd)
	}
	return value.Uint64(), nil
}

func fitsUint256(v *big.Int) bool {
	if v == nil || v.Sign() < 0 {
		return false
	}
	_, overflow := uint256.FromBig(v)
	return !overflow
}

func toUint256(v *big.Int) (*uint256.Int, error) {
	if v == nil {
		return new(uint256.Int), nil
	}
	if v.Sign() < 0 {
		return nil, ErrInvalidAmount
	}
	out, overflow := uint256.FromBig(v)
	if overflow {
		return nil, ErrOverflow
	}
	return out, nil
}

func checkedMul(a, b *big.Int) (*big.Int, error) {
	x, err := toUint256(a)
	if err != nil {
		return nil, err
	}
	y, err := toUint256(b)
	if err != nil {
		return nil, err
	}
	product, overflow := new(uint256.Int).MulOverflow(x, y)
	if overflow {
		return nil, ErrOverflow
	}
	return product.ToBig(), nil
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
		return nil, ErrOverflow
	}
	return sum.ToBig(), nil
}

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
		return nil, fmt.Errorf("%w: negative balance", ErrOverflow)
	}
	return diff.ToBig(), nil
}
