package main

import (
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"

	"onlsale/native/crowdsale"
)

type rateResult struct {
	UsdRate    string `json:"usdRate"`
	TokenPrice string `json:"tokenPrice"`
}

// runRateCommand derives usd rates locally; no node is contacted.
func runRateCommand(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, rateUsage())
		return 1
	}
	var derive func(decimal.Decimal) (*big.Int, error)
	var flagName, help string
	switch args[0] {
	case "from-spot":
		derive, flagName, help = crowdsale.UsdRateFromSpot, "spot", "USD price of one native unit, e.g. 158.73"
	case "from-quote":
		derive, flagName, help = crowdsale.UsdRateFromQuote, "quote", "native units one USD buys, e.g. 0.0063"
	default:
		fmt.Fprintf(stderr, "Unknown rate subcommand: %s\n", args[0])
		fmt.Fprintln(stderr, rateUsage())
		return 1
	}
	fs := newFlagSet("rate "+args[0], stderr)
	var input string
	var priceCents uint64
	fs.StringVar(&input, flagName, "", help)
	fs.Uint64Var(&priceCents, "price-cents", 75, "token unit price in cents")
	if !parseFlags(fs, args[1:], stderr) {
		return 1
	}
	if !requireFlags(stderr, [2]string{flagName, input}) {
		return 1
	}
	value, err := decimal.NewFromString(strings.TrimSpace(input))
	if err != nil {
		fmt.Fprintf(stderr, "Error: invalid --%s: %v\n", flagName, err)
		return 1
	}
	rate, err := derive(value)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	price, err := crowdsale.TokenPrice(rate, priceCents)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	out, err := json.MarshalIndent(rateResult{UsdRate: rate.String(), TokenPrice: price.String()}, "", "  ")
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Fprintln(stdout, string(out))
	return 0
}

func rateUsage() string {
	return strings.TrimSpace(`Usage:
  onls-cli rate <command> [flags]

Commands:
  from-spot   Derive the usd rate from a spot price (--spot)
  from-quote  Derive the usd rate from a native-per-USD quote (--quote)
`)
}
