package config

// NetworkAccounts names the accounts a sale is deployed with on one network.
// SaleAddress and TokenAddress may be left empty; they are then derived from
// the migrate account the way contract addresses are.
type NetworkAccounts struct {
	MigrateAccount string `toml:"MigrateAccount"`
	SalesOwner     string `toml:"SalesOwner"`
	TokenOwner     string `toml:"TokenOwner"`
	FundsWallet    string `toml:"FundsWallet"`
	SaleAddress    string `toml:"SaleAddress,omitempty"`
	TokenAddress   string `toml:"TokenAddress,omitempty"`
}

// TokenParams describes the token minted at deployment.
type TokenParams struct {
	Name        string `toml:"Name"`
	Symbol      string `toml:"Symbol"`
	Decimals    uint8  `toml:"Decimals"`
	TotalSupply string `toml:"TotalSupply"`
}

// SaleParams holds the sale terms in human units. USD amounts and quotes are
// decimal strings so they convert to integers exactly.
type SaleParams struct {
	SharePercent    string `toml:"SharePercent"`
	UsdPrice        string `toml:"UsdPrice"`
	SpotUSD         string `toml:"SpotUSD,omitempty"`
	UsdEth          string `toml:"UsdEth,omitempty"`
	MinGoalUSD      string `toml:"MinGoalUSD"`
	MinPurchaseUSD  string `toml:"MinPurchaseUSD"`
	MaxPurchaseUSD  string `toml:"MaxPurchaseUSD"`
	OpeningTime     int64  `toml:"OpeningTime,omitempty"`
	ClosingDuration string `toml:"ClosingDuration"`
	WithdrawPolicy  string `toml:"WithdrawPolicy"`
	EarlyFinalize   *bool  `toml:"EarlyFinalize,omitempty"`
}

// GenesisAlloc seeds a native balance. Balance is in whole native units and
// may carry up to 18 decimals.
type GenesisAlloc struct {
	Address string `toml:"Address"`
	Balance string `toml:"Balance"`
}

// Genesis lists the native balances present before the sale opens.
type Genesis struct {
	Alloc []GenesisAlloc `toml:"alloc"`
}

// TelemetryParams points the node at an OTLP/HTTP collector. Leaving
// OTLPEndpoint empty turns export off. Headers is a comma separated list of
// key=value pairs.
type TelemetryParams struct {
	OTLPEndpoint string `toml:"OTLPEndpoint,omitempty"`
	Insecure     bool   `toml:"Insecure,omitempty"`
	Headers      string `toml:"Headers,omitempty"`
	Traces       bool   `toml:"Traces,omitempty"`
	Metrics      bool   `toml:"Metrics,omitempty"`
}
