package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"onlsale/crypto"
)

func runAccountCommand(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, accountUsage())
		return 1
	}
	switch args[0] {
	case "new":
		return runAccountNew(args[1:], stdout, stderr)
	case "balance":
		fs := newFlagSet("account balance", stderr)
		var addr string
		fs.StringVar(&addr, "addr", "", "account address")
		if !parseFlags(fs, args[1:], stderr) {
			return 1
		}
		if !requireFlags(stderr, [2]string{"addr", addr}) {
			return 1
		}
		return invoke(stdout, stderr, "account_getBalance", map[string]string{"address": strings.TrimSpace(addr)}, false)
	default:
		fmt.Fprintf(stderr, "Unknown account subcommand: %s\n", args[0])
		fmt.Fprintln(stderr, accountUsage())
		return 1
	}
}

func runAccountNew(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("account new", stderr)
	var out string
	fs.StringVar(&out, "out", "wallet.key", "file to write the private key to")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	path := strings.TrimSpace(out)
	if _, err := os.Stat(path); err == nil {
		fmt.Fprintf(stderr, "Error: %s already exists\n", path)
		return 1
	}
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		fmt.Fprintf(stderr, "Error: generate key: %v\n", err)
		return 1
	}
	if err := os.WriteFile(path, key.Bytes(), 0o600); err != nil {
		fmt.Fprintf(stderr, "Error: failed to save key to %s: %v\n", path, err)
		return 1
	}
	addr := key.PubKey().Address()
	fmt.Fprintf(stdout, "Generated new key and saved to %s\n", path)
	fmt.Fprintf(stdout, "Address: %s\n", addr.String())
	fmt.Fprintf(stdout, "Hex:     %s\n", addr.Hex())
	fmt.Fprintf(stdout, "Sign purchases with: onls-cli sale buy --key %s --value <wei>\n", path)
	return 0
}

// loadKey reads a raw private key written by account new.
func loadKey(path string) (*crypto.PrivateKey, error) {
	data, err := os.ReadFile(strings.TrimSpace(path))
	if err != nil {
		return nil, fmt.Errorf("read key: %w", err)
	}
	key, err := crypto.PrivateKeyFromBytes(data)
	if err != nil {
		return nil, fmt.Errorf("parse key %s: %w", path, err)
	}
	return key, nil
}

func accountUsage() string {
	return strings.TrimSpace(`Usage:
  onls-cli account <command> [flags]

Commands:
  new      Generate a purchase signing key and print its address
  balance  Show the native balance of --addr
`)
}
