package crowdsale

import (
	"errors"
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestUsdRateFromSpot(t *testing.T) {
	rate, err := UsdRateFromSpot(decimal.RequireFromString("158.73"))
	require.NoError(t, err)
	require.Equal(t, "63000063000000", rate.String())

	// Digits past the eighth decimal are dropped before conversion.
	truncated, err := UsdRateFromSpot(decimal.RequireFromString("158.730000009"))
	require.NoError(t, err)
	require.Equal(t, rate.String(), truncated.String())

	_, err = UsdRateFromSpot(decimal.Zero)
	require.ErrorIs(t, err, ErrInvalidRate)
	_, err = UsdRateFromSpot(decimal.RequireFromString("0.000000001"))
	require.ErrorIs(t, err, ErrInvalidRate)
}

func TestUsdRateFromQuote(t *testing.T) {
	rate, err := UsdRateFromQuote(decimal.RequireFromString("0.0063"))
	require.NoError(t, err)
	require.Equal(t, 0, rate.Cmp(testUsdRate))

	price, err := TokenPrice(rate, 75)
	require.NoError(t, err)
	require.Equal(t, 0, price.Cmp(testPrice))

	_, err = UsdRateFromQuote(decimal.RequireFromString("-1"))
	require.ErrorIs(t, err, ErrInvalidRate)
}

func TestTokenPriceRejectsZeroAndOverflow(t *testing.T) {
	_, err := TokenPrice(big.NewInt(0), 75)
	require.ErrorIs(t, err, ErrInvalidRate)

	huge := new(big.Int).Lsh(big.NewInt(1), 255)
	_, err = TokenPrice(huge, 75)
	require.ErrorIs(t, err, ErrOverflow)
}

func TestConversionHelpers(t *testing.T) {
	tokens, exact := TokensForValue(tokensValue(14), testPrice)
	require.True(t, exact)
	require.Equal(t, int64(14), tokens.Int64())

	_, exact = TokensForValue(new(big.Int).Add(tokensValue(14), big.NewInt(1)), testPrice)
	require.False(t, exact)

	require.Equal(t, int64(1050), CentsForValue(tokensValue(14), testUsdRate).Int64())
	require.Equal(t, int64(13), UsdTokenAmount(big.NewInt(999), 75).Int64())
	require.Equal(t, int64(0), UsdTokenAmount(big.NewInt(-5), 75).Int64())

	price, err := WeiTokenPrice(big.NewInt(14), testPrice)
	require.NoError(t, err)
	require.Equal(t, 0, price.Cmp(tokensValue(14)))

	bound, err := CentsToWei(1_000, testUsdRate)
	require.NoError(t, err)
	require.Equal(t, 0, bound.Cmp(new(big.Int).Mul(big.NewInt(1_000), testUsdRate)))
}

func TestCentsFromUSD(t *testing.T) {
	cents, err := CentsFromUSD(decimal.RequireFromString("0.75"))
	require.NoError(t, err)
	require.Equal(t, uint64(75), cents)

	cents, err = CentsFromUSD(decimal.RequireFromString("100"))
	require.NoError(t, err)
	require.Equal(t, uint64(10_000), cents)

	_, err = CentsFromUSD(decimal.RequireFromString("0.755"))
	require.ErrorIs(t, err, ErrInvalidConfig)
	_, err = CentsFromUSD(decimal.RequireFromString("-1"))
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestSplitDeposit(t *testing.T) {
	goal := big.NewInt(100)
	cases := []struct {
		name      string
		raised    int64
		value     int64
		wantGoal  int64
		wantRaise int64
	}{
		{name: "below goal", raised: 0, value: 40, wantGoal: 40, wantRaise: 0},
		{name: "fills goal exactly", raised: 60, value: 40, wantGoal: 40, wantRaise: 0},
		{name: "crosses goal", raised: 90, value: 40, wantGoal: 10, wantRaise: 30},
		{name: "goal full", raised: 100, value: 40, wantGoal: 0, wantRaise: 40},
		{name: "past goal", raised: 250, value: 40, wantGoal: 0, wantRaise: 40},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			toGoal, toRaise := splitDeposit(goal, big.NewInt(tc.raised), big.NewInt(tc.value))
			require.Equal(t, tc.wantGoal, toGoal.Int64())
			require.Equal(t, tc.wantRaise, toRaise.Int64())
		})
	}
}

func TestConfigValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "zero owner", mutate: func(c *Config) { c.SalesOwner = [20]byte{} }},
		{name: "zero wallet", mutate: func(c *Config) { c.Wallet = [20]byte{} }},
		{name: "zero price", mutate: func(c *Config) { c.UnitPriceCents = 0 }},
		{name: "min above max", mutate: func(c *Config) { c.MinPurchaseCents = c.MaxPurchaseCents + 1 }},
		{name: "zero goal", mutate: func(c *Config) { c.Goal = big.NewInt(0) }},
		{name: "inverted window", mutate: func(c *Config) { c.ClosingTime = c.OpeningTime }},
		{name: "unknown policy", mutate: func(c *Config) { c.WithdrawPolicy = WithdrawPolicy(9) }},
	}
	require.NoError(t, testConfig().Validate())
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			require.True(t, errors.Is(err, ErrInvalidConfig), "got %v", err)
		})
	}
}

func TestParseWithdrawPolicy(t *testing.T) {
	policy, err := ParseWithdrawPolicy("")
	require.NoError(t, err)
	require.Equal(t, WithdrawAfterUnlock, policy)

	policy, err = ParseWithdrawPolicy(" Goal ")
	require.NoError(t, err)
	require.Equal(t, WithdrawAfterGoal, policy)
	require.Equal(t, "goal", policy.String())

	_, err = ParseWithdrawPolicy("never")
	require.ErrorIs(t, err, ErrInvalidConfig)
}
