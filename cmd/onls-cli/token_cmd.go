package main

import (
	"fmt"
	"io"
	"strings"
)

func runTokenCommand(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, tokenUsage())
		return 1
	}
	switch args[0] {
	case "info":
		fs := newFlagSet("token info", stderr)
		if !parseFlags(fs, args[1:], stderr) {
			return 1
		}
		return invoke(stdout, stderr, "token_metadata", nil, false)
	case "balance":
		fs := newFlagSet("token balance", stderr)
		var addr string
		fs.StringVar(&addr, "addr", "", "token holder")
		if !parseFlags(fs, args[1:], stderr) {
			return 1
		}
		if !requireFlags(stderr, [2]string{"addr", addr}) {
			return 1
		}
		return invoke(stdout, stderr, "token_balanceOf", map[string]string{"address": strings.TrimSpace(addr)}, false)
	case "allowance":
		fs := newFlagSet("token allowance", stderr)
		var owner, spender string
		fs.StringVar(&owner, "owner", "", "token owner")
		fs.StringVar(&spender, "spender", "", "approved spender")
		if !parseFlags(fs, args[1:], stderr) {
			return 1
		}
		if !requireFlags(stderr, [2]string{"owner", owner}, [2]string{"spender", spender}) {
			return 1
		}
		params := map[string]string{"owner": strings.TrimSpace(owner), "spender": strings.TrimSpace(spender)}
		return invoke(stdout, stderr, "token_allowance", params, false)
	default:
		fmt.Fprintf(stderr, "Unknown token subcommand: %s\n", args[0])
		fmt.Fprintln(stderr, tokenUsage())
		return 1
	}
}

func tokenUsage() string {
	return strings.TrimSpace(`Usage:
  onls-cli token <command> [flags]

Commands:
  info       Show token metadata
  balance    Show the token balance of --addr
  allowance  Show the allowance --owner granted --spender
`)
}
