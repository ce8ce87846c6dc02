package main

import (
	"flag"
	"fmt"
	"io"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"onlsale/core/types"
	"onlsale/crypto"
)

func runSaleCommand(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, saleUsage())
		return 1
	}
	switch args[0] {
	case "info":
		return runSaleView(args[1:], stdout, stderr, "sale info", "crowdsale_info")
	case "status":
		return runSaleView(args[1:], stdout, stderr, "sale status", "crowdsale_status")
	case "buyers":
		return runSaleView(args[1:], stdout, stderr, "sale buyers", "crowdsale_buyers")
	case "buy":
		return runSaleBuy(args[1:], stdout, stderr)
	case "balance":
		return runSaleBalance(args[1:], stdout, stderr)
	case "update-rate":
		return runSaleUpdateRate(args[1:], stdout, stderr)
	case "unlock":
		return runSaleCallerOp(args[1:], stdout, stderr, "sale unlock", "crowdsale_unlockFunds")
	case "withdraw":
		return runSaleCallerOp(args[1:], stdout, stderr, "sale withdraw", "crowdsale_withdraw")
	case "finalize":
		return runSaleCallerOp(args[1:], stdout, stderr, "sale finalize", "crowdsale_finalize")
	case "change-wallet":
		return runSaleChangeWallet(args[1:], stdout, stderr)
	case "withdraw-tokens":
		return runSaleBuyerOp(args[1:], stdout, stderr, "sale withdraw-tokens", "crowdsale_withdrawTokens")
	case "refund":
		return runSaleBuyerOp(args[1:], stdout, stderr, "sale refund", "crowdsale_claimRefund")
	case "events":
		return runSaleEvents(args[1:], stdout, stderr)
	default:
		fmt.Fprintf(stderr, "Unknown sale subcommand: %s\n", args[0])
		fmt.Fprintln(stderr, saleUsage())
		return 1
	}
}

func newFlagSet(name string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}

func parseFlags(fs *flag.FlagSet, args []string, stderr io.Writer) bool {
	if err := fs.Parse(args); err != nil {
		return false
	}
	if fs.NArg() > 0 {
		fmt.Fprintln(stderr, "Error: unexpected positional arguments")
		return false
	}
	return true
}

// requireFlags reports the first empty flag in name order.
func requireFlags(stderr io.Writer, values ...[2]string) bool {
	for _, pair := range values {
		if strings.TrimSpace(pair[1]) == "" {
			fmt.Fprintf(stderr, "Error: --%s is required\n", pair[0])
			return false
		}
	}
	return true
}

func runSaleView(args []string, stdout, stderr io.Writer, name, method string) int {
	fs := newFlagSet(name, stderr)
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	return invoke(stdout, stderr, method, nil, false)
}

func runSaleBuy(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("sale buy", stderr)
	var keyPath, from, beneficiary, value string
	var quote bool
	fs.StringVar(&keyPath, "key", "", "key file of the paying account (from account new)")
	fs.StringVar(&from, "from", "", "purchasing address, for --quote without a key")
	fs.StringVar(&beneficiary, "beneficiary", "", "beneficiary address (must equal the purchaser)")
	fs.StringVar(&value, "value", "", "payment in wei")
	fs.BoolVar(&quote, "quote", false, "only report what the payment would buy")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	if quote {
		if strings.TrimSpace(from) == "" && strings.TrimSpace(keyPath) != "" {
			key, err := loadKey(keyPath)
			if err != nil {
				fmt.Fprintf(stderr, "Error: %v\n", err)
				return 1
			}
			from = key.PubKey().Address().Hex()
		}
		if !requireFlags(stderr, [2]string{"from", from}, [2]string{"value", value}) {
			return 1
		}
		params := map[string]string{"from": strings.TrimSpace(from), "value": strings.TrimSpace(value)}
		return invoke(stdout, stderr, "crowdsale_quote", params, false)
	}
	if !requireFlags(stderr, [2]string{"key", keyPath}, [2]string{"value", value}) {
		return 1
	}
	amount, ok := new(big.Int).SetString(strings.TrimSpace(value), 10)
	if !ok || amount.Sign() <= 0 {
		fmt.Fprintln(stderr, "Error: --value must be a positive amount of wei")
		return 1
	}
	key, err := loadKey(keyPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	purchase := &types.Purchase{From: key.PubKey().Address().Array(), Value: amount}
	if trimmed := strings.TrimSpace(beneficiary); trimmed != "" {
		if purchase.Beneficiary, err = crypto.ParseAddress(trimmed); err != nil {
			fmt.Fprintf(stderr, "Error: invalid --beneficiary: %v\n", err)
			return 1
		}
	}

	var info struct {
		Address string `json:"address"`
	}
	if code := query(stderr, "crowdsale_info", nil, &info); code != 0 {
		return code
	}
	if purchase.Sale, err = crypto.ParseAddress(info.Address); err != nil {
		fmt.Fprintf(stderr, "Error: node reported invalid sale address: %v\n", err)
		return 1
	}
	from = crypto.FormatAddress(purchase.From)
	if code := query(stderr, "account_getNonce", map[string]string{"address": from}, &purchase.Nonce); code != 0 {
		return code
	}
	if err := purchase.Sign(key.PrivateKey); err != nil {
		fmt.Fprintf(stderr, "Error: sign purchase: %v\n", err)
		return 1
	}

	params := map[string]interface{}{
		"sale":      crypto.FormatAddress(purchase.Sale),
		"from":      from,
		"value":     amount.String(),
		"nonce":     purchase.Nonce,
		"signature": hexutil.Encode(purchase.Signature),
	}
	if purchase.Beneficiary != ([20]byte{}) {
		params["beneficiary"] = crypto.FormatAddress(purchase.Beneficiary)
	}
	return invoke(stdout, stderr, "crowdsale_buy", params, false)
}

func runSaleBalance(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("sale balance", stderr)
	var addr string
	var deposits bool
	fs.StringVar(&addr, "addr", "", "buyer address")
	fs.BoolVar(&deposits, "deposits", false, "report the refundable deposit instead of tokens in custody")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	if !requireFlags(stderr, [2]string{"addr", addr}) {
		return 1
	}
	method := "crowdsale_balanceOf"
	if deposits {
		method = "crowdsale_depositsOf"
	}
	return invoke(stdout, stderr, method, map[string]string{"address": strings.TrimSpace(addr)}, false)
}

func runSaleUpdateRate(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("sale update-rate", stderr)
	var caller, rate string
	fs.StringVar(&caller, "caller", "", "sales owner address")
	fs.StringVar(&rate, "rate", "", "new usd rate in wei per cent")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	if !requireFlags(stderr, [2]string{"caller", caller}, [2]string{"rate", rate}) {
		return 1
	}
	params := map[string]string{"caller": strings.TrimSpace(caller), "rate": strings.TrimSpace(rate)}
	return invoke(stdout, stderr, "crowdsale_updateUsdRate", params, true)
}

func runSaleCallerOp(args []string, stdout, stderr io.Writer, name, method string) int {
	fs := newFlagSet(name, stderr)
	var caller string
	fs.StringVar(&caller, "caller", "", "sales owner address")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	if !requireFlags(stderr, [2]string{"caller", caller}) {
		return 1
	}
	return invoke(stdout, stderr, method, map[string]string{"caller": strings.TrimSpace(caller)}, true)
}

func runSaleChangeWallet(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("sale change-wallet", stderr)
	var caller, wallet string
	fs.StringVar(&caller, "caller", "", "sales owner address")
	fs.StringVar(&wallet, "wallet", "", "new funds wallet")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	if !requireFlags(stderr, [2]string{"caller", caller}, [2]string{"wallet", wallet}) {
		return 1
	}
	params := map[string]string{"caller": strings.TrimSpace(caller), "wallet": strings.TrimSpace(wallet)}
	return invoke(stdout, stderr, "crowdsale_changeBeneficiary", params, true)
}

func runSaleBuyerOp(args []string, stdout, stderr io.Writer, name, method string) int {
	fs := newFlagSet(name, stderr)
	var caller, buyer string
	fs.StringVar(&caller, "caller", "", "calling address")
	fs.StringVar(&buyer, "buyer", "", "buyer address")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	if !requireFlags(stderr, [2]string{"caller", caller}, [2]string{"buyer", buyer}) {
		return 1
	}
	params := map[string]string{"caller": strings.TrimSpace(caller), "buyer": strings.TrimSpace(buyer)}
	return invoke(stdout, stderr, method, params, true)
}

func runSaleEvents(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("sale events", stderr)
	var after int64
	var limit int
	fs.Int64Var(&after, "after", 0, "return events after this sequence number")
	fs.IntVar(&limit, "limit", 100, "maximum events to return")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	if after < 0 || limit <= 0 {
		fmt.Fprintln(stderr, "Error: --after must not be negative and --limit must be positive")
		return 1
	}
	params := map[string]interface{}{"after": after, "limit": limit}
	return invoke(stdout, stderr, "crowdsale_listEvents", params, false)
}

func saleUsage() string {
	return strings.TrimSpace(`Usage:
  onls-cli sale <command> [flags]

Commands:
  info             Show the sale parameters
  status           Show the phase and running totals
  buyers           List every purchaser
  buy              Sign and submit a purchase (--key, --value, optional --quote)
  balance          Show tokens in custody for --addr (or --deposits)
  update-rate      Replace the usd rate (owner)
  unlock           Unlock escrowed funds and tokens (owner)
  withdraw         Sweep escrow to the wallet (owner)
  change-wallet    Replace the funds wallet (owner)
  withdraw-tokens  Deliver a buyer's tokens (owner)
  finalize         Close the sale (owner)
  refund           Refund a buyer after a failed sale
  events           Page through the event archive
`)
}
