package config

import (
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"onlsale/crypto"
	"onlsale/native/crowdsale"
)

const seedConfig = `RPCAddress = "127.0.0.1:9545"
DataDir = "./data"
NetworkName = "ropsten"
RPCRequestsPerMinute = 120
RPCAuthTokenEnv = "ONLS_TEST_TOKEN"

[networks.development]
MigrateAccount = "0x9d3d491ef92F89091fD8C64e2FAd6661f060ff83"
SalesOwner = "0x207DAe551D4435F0f3A8Bb41D3f07EeaA24dD2f4"
TokenOwner = "0x207DAe551D4435F0f3A8Bb41D3f07EeaA24dD2f4"
FundsWallet = "0xba7b9D6e201F7112eC5654bAC60980642aC5C5A2"

[networks.ropsten]
MigrateAccount = "0x52250807be77a54672e935a60156babda83a3839"
SalesOwner = "0x86ef1acc983a3b9bd76de1335747e4ee47aa97f1"
TokenOwner = "0x86ef1acc983a3b9bd76de1335747e4ee47aa97f1"
FundsWallet = "0x5b96d4ca405cbba1c237b249fc646783ad35600e"

[token]
Name = "ONLS Token"
Symbol = "ONLS"
TotalSupply = "1000000000"

[sale]
SharePercent = "2.25"
UsdPrice = "0.75"
UsdEth = "0.0063"
MinGoalUSD = "100"
MinPurchaseUSD = "10"
MaxPurchaseUSD = "20"
OpeningTime = 1700000000
ClosingDuration = "24h"
WithdrawPolicy = "goal"

[[genesis.alloc]]
Address = "0x1111111111111111111111111111111111111111"
Balance = "1.5"
`

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadSeedSalePlan(t *testing.T) {
	cfg, err := Load(writeConfig(t, seedConfig))
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:9545", cfg.RPCAddress)
	require.Equal(t, 120, cfg.RPCRequestsPerMinute)
	require.Equal(t, filepath.Join("./data", "events.db"), cfg.EventLog())

	plan, err := cfg.Plan()
	require.NoError(t, err)
	require.Equal(t, "ropsten", plan.Network)

	owner, err := crypto.ParseAddress("0x86ef1acc983a3b9bd76de1335747e4ee47aa97f1")
	require.NoError(t, err)
	require.Equal(t, owner, plan.SalesOwner)
	require.Equal(t, owner, plan.TokenOwner)
	require.Equal(t, crypto.DeriveAddress(plan.Deployer, 0), plan.Token)
	require.Equal(t, crypto.DeriveAddress(plan.Deployer, 1), plan.Sale)

	require.Equal(t, "1000000000", plan.TotalSupply.String())
	require.Equal(t, "22500000", plan.SaleShare.String())
	require.Equal(t, uint64(75), plan.UnitPriceCents)
	require.Equal(t, "63000000000000", plan.UsdRate.String())
	require.Equal(t, uint64(1000), plan.MinPurchase)
	require.Equal(t, uint64(2000), plan.MaxPurchase)
	require.Equal(t, "630000000000000000", plan.Goal.String())
	require.Equal(t, crowdsale.WithdrawAfterGoal, plan.WithdrawPolicy)
	require.True(t, plan.EarlyFinalize)

	require.Len(t, plan.Alloc, 1)
	require.Equal(t, "1500000000000000000", plan.Alloc[0].Balance.String())

	sale := plan.SaleConfig(1_600_000_000)
	require.Equal(t, int64(1_700_000_000), sale.OpeningTime)
	require.Equal(t, int64(1_700_000_000)+int64(24*time.Hour/time.Second), sale.ClosingTime)
	require.NoError(t, sale.Validate())

	price, err := crowdsale.TokenPrice(sale.UsdRate, sale.UnitPriceCents)
	require.NoError(t, err)
	require.Equal(t, 0, price.Cmp(big.NewInt(4_725_000_000_000_000)))
}

func TestSaleOpensAtDeploymentByDefault(t *testing.T) {
	cfg, err := Load(writeConfig(t, seedConfig))
	require.NoError(t, err)
	cfg.Sale.OpeningTime = 0
	plan, err := cfg.Plan()
	require.NoError(t, err)
	sale := plan.SaleConfig(1_650_000_000)
	require.Equal(t, int64(1_650_000_000), sale.OpeningTime)
	require.Equal(t, int64(1_650_000_000+86_400), sale.ClosingTime)
}

func TestSpotRateDerivation(t *testing.T) {
	cfg, err := Load(writeConfig(t, seedConfig))
	require.NoError(t, err)
	cfg.Sale.UsdEth = ""
	cfg.Sale.SpotUSD = "158.73"
	plan, err := cfg.Plan()
	require.NoError(t, err)
	require.Equal(t, "63000063000000", plan.UsdRate.String())
}

func TestLoadRejectsUnknownNetwork(t *testing.T) {
	_, err := Load(writeConfig(t, strings.Replace(seedConfig, `NetworkName = "ropsten"`, `NetworkName = "mainnet"`, 1)))
	require.ErrorContains(t, err, "unknown network")
}

func TestLoadRejectsUnknownField(t *testing.T) {
	_, err := Load(writeConfig(t, seedConfig+"\nBogus = true\n"))
	require.ErrorContains(t, err, "unknown field")
}

func TestPlanRejectsBadTerms(t *testing.T) {
	cases := map[string]func(*Config){
		"fractional cents":   func(c *Config) { c.Sale.UsdPrice = "0.755" },
		"share over 100":     func(c *Config) { c.Sale.SharePercent = "101" },
		"fractional share":   func(c *Config) { c.Token.TotalSupply = "10"; c.Sale.SharePercent = "2.25" },
		"min above max":      func(c *Config) { c.Sale.MinPurchaseUSD = "30" },
		"missing rate":       func(c *Config) { c.Sale.UsdEth = "" },
		"bad duration":       func(c *Config) { c.Sale.ClosingDuration = "soon" },
		"bad policy":         func(c *Config) { c.Sale.WithdrawPolicy = "whenever" },
		"zero wallet":        func(c *Config) { acc := c.Networks["ropsten"]; acc.FundsWallet = "0x0000000000000000000000000000000000000000"; c.Networks["ropsten"] = acc },
		"bad alloc":          func(c *Config) { c.Genesis.Alloc[0].Balance = "0.0000000000000000001" },
		"colliding contract": func(c *Config) { acc := c.Networks["ropsten"]; acc.SaleAddress = crypto.FormatAddress(crypto.DeriveAddress(mustParse(acc.MigrateAccount), 0)); c.Networks["ropsten"] = acc },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg, err := Load(writeConfig(t, seedConfig))
			require.NoError(t, err)
			mutate(cfg)
			_, err = cfg.Plan()
			require.Error(t, err)
		})
	}
}

func TestCreateDefaultWritesLoadableFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "development", cfg.NetworkName)

	reloaded, err := Load(path)
	require.NoError(t, err)
	plan, err := reloaded.Plan()
	require.NoError(t, err)
	require.Equal(t, "22500000", plan.SaleShare.String())
	require.Equal(t, crowdsale.WithdrawAfterUnlock, plan.WithdrawPolicy)
}

func TestRPCAuthTokenFromEnv(t *testing.T) {
	cfg, err := Load(writeConfig(t, seedConfig))
	require.NoError(t, err)
	t.Setenv("ONLS_TEST_TOKEN", " secret ")
	require.Equal(t, "secret", cfg.RPCAuthToken())
}

func TestLoadTelemetrySection(t *testing.T) {
	cfg, err := Load(writeConfig(t, seedConfig))
	require.NoError(t, err)
	require.Empty(t, cfg.Telemetry.OTLPEndpoint)

	withTelemetry := seedConfig + `
[telemetry]
OTLPEndpoint = "otel-collector:4318"
Insecure = true
Headers = "api-key=abc"
Traces = true
`
	cfg, err = Load(writeConfig(t, withTelemetry))
	require.NoError(t, err)
	require.Equal(t, "otel-collector:4318", cfg.Telemetry.OTLPEndpoint)
	require.True(t, cfg.Telemetry.Insecure)
	require.True(t, cfg.Telemetry.Traces)
	require.False(t, cfg.Telemetry.Metrics)
	require.Equal(t, "api-key=abc", cfg.Telemetry.Headers)

	_, err = Load(writeConfig(t, strings.Replace(withTelemetry, `"otel-collector:4318"`, `"http://otel-collector:4318"`, 1)))
	require.ErrorContains(t, err, "OTLPEndpoint")
}

func mustParse(value string) [20]byte {
	addr, err := crypto.ParseAddress(value)
	if err != nil {
		panic(err)
	}
	return addr
}
