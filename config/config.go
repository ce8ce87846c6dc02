package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

const (
	defaultNetwork         = "development"
	defaultRPCAddress      = ":8545"
	defaultDataDir         = "./onls-data"
	defaultRequestsPerMin  = 600
	defaultRPCTokenEnv     = "ONLS_RPC_TOKEN"
	defaultClosingDuration = "26280h"
)

type Config struct {
	RPCAddress           string                     `toml:"RPCAddress"`
	DataDir              string                     `toml:"DataDir"`
	NetworkName          string                     `toml:"NetworkName"`
	Environment          string                     `toml:"Environment"`
	LogFile              string                     `toml:"LogFile,omitempty"`
	EventLogPath         string                     `toml:"EventLogPath,omitempty"`
	RPCRequestsPerMinute int                        `toml:"RPCRequestsPerMinute"`
	RPCAuthTokenEnv      string                     `toml:"RPCAuthTokenEnv"`
	Networks             map[string]NetworkAccounts `toml:"networks"`
	Token                TokenParams                `toml:"token"`
	Sale                 SaleParams                 `toml:"sale"`
	Genesis              Genesis                    `toml:"genesis"`
	Telemetry            TelemetryParams            `toml:"telemetry"`
}

// Load loads the configuration from the given path.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("config file %s has unknown field %s", path, undecoded[0].String())
	}

	cfg.applyDefaults()
	if err := ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

// RPCAuthToken reads the bearer token guarding mutating RPC calls from the
// configured environment variable. An empty token disables authentication.
func (c *Config) RPCAuthToken() string {
	if c == nil || c.RPCAuthTokenEnv == "" {
		return ""
	}
	return strings.TrimSpace(os.Getenv(c.RPCAuthTokenEnv))
}

// EventLog returns the path of the event archive, defaulting to a file in the
// data directory.
func (c *Config) EventLog() string {
	if strings.TrimSpace(c.EventLogPath) != "" {
		return c.EventLogPath
	}
	return filepath.Join(c.DataDir, "events.db")
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.NetworkName) == "" {
		c.NetworkName = defaultNetwork
	}
	if strings.TrimSpace(c.RPCAddress) == "" {
		c.RPCAddress = defaultRPCAddress
	}
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = defaultDataDir
	}
	if c.RPCRequestsPerMinute == 0 {
		c.RPCRequestsPerMinute = defaultRequestsPerMin
	}
	if strings.TrimSpace(c.Sale.ClosingDuration) == "" {
		c.Sale.ClosingDuration = defaultClosingDuration
	}
	if strings.TrimSpace(c.Sale.WithdrawPolicy) == "" {
		c.Sale.WithdrawPolicy = "unlock"
	}
	if c.Sale.EarlyFinalize == nil {
		early := true
		c.Sale.EarlyFinalize = &early
	}
	if c.Networks == nil {
		c.Networks = map[string]NetworkAccounts{}
	}
}

// createDefault creates and saves a development configuration file. The
// accounts match the local development network of the seed sale.
func createDefault(path string) (*Config, error) {
	early := true
	cfg := &Config{
		RPCAddress:           defaultRPCAddress,
		DataDir:              defaultDataDir,
		NetworkName:          defaultNetwork,
		Environment:          "dev",
		RPCRequestsPerMinute: defaultRequestsPerMin,
		RPCAuthTokenEnv:      defaultRPCTokenEnv,
		Networks: map[string]NetworkAccounts{
			defaultNetwork: {
				MigrateAccount: "0x9d3d491ef92F89091fD8C64e2FAd6661f060ff83",
				SalesOwner:     "0x207DAe551D4435F0f3A8Bb41D3f07EeaA24dD2f4",
				TokenOwner:     "0x207DAe551D4435F0f3A8Bb41D3f07EeaA24dD2f4",
				FundsWallet:    "0xba7b9D6e201F7112eC5654bAC60980642aC5C5A2",
			},
		},
		Token: TokenParams{
			Name:        "ONLS Token",
			Symbol:      "ONLS",
			TotalSupply: "1000000000",
		},
		Sale: SaleParams{
			SharePercent:    "2.25",
			UsdPrice:        "0.75",
			UsdEth:          "0.0063",
			MinGoalUSD:      "100",
			MinPurchaseUSD:  "10",
			MaxPurchaseUSD:  "20",
			ClosingDuration: defaultClosingDuration,
			WithdrawPolicy:  "unlock",
			EarlyFinalize:   &early,
		},
	}

	if err := persist(path, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
