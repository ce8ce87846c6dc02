package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"onlsale/core/types"
	"onlsale/crypto"
)

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

type recordedCall struct {
	method      string
	param       interface{}
	requireAuth bool
}

func stubRPC(t *testing.T, result string, rpcErr *rpcError) *[]recordedCall {
	t.Helper()
	calls := &[]recordedCall{}
	original := rpcCall
	rpcCall = func(method string, param interface{}, requireAuth bool) (json.RawMessage, *rpcError, error) {
		*calls = append(*calls, recordedCall{method: method, param: param, requireAuth: requireAuth})
		if rpcErr != nil {
			return nil, rpcErr, nil
		}
		return json.RawMessage(result), nil, nil
	}
	t.Cleanup(func() { rpcCall = original })
	return calls
}

func TestSaleCommandArgValidation(t *testing.T) {
	calls := stubRPC(t, `null`, nil)
	cases := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{name: "no_subcommand", args: []string{"sale"}, wantErr: "Usage:"},
		{name: "unknown", args: []string{"sale", "mint"}, wantErr: "Unknown sale subcommand: mint"},
		{name: "buy_missing_key", args: []string{"sale", "buy", "--value", "1"}, wantErr: "--key is required"},
		{name: "buy_missing_value", args: []string{"sale", "buy", "--key", "wallet.key"}, wantErr: "--value is required"},
		{name: "quote_missing_from", args: []string{"sale", "buy", "--quote", "--value", "1"}, wantErr: "--from is required"},
		{name: "rate_missing", args: []string{"sale", "update-rate", "--caller", "0x01"}, wantErr: "--rate is required"},
		{name: "refund_missing_buyer", args: []string{"sale", "refund", "--caller", "0x01"}, wantErr: "--buyer is required"},
		{name: "positional", args: []string{"sale", "info", "extra"}, wantErr: "unexpected positional arguments"},
		{name: "bad_limit", args: []string{"sale", "events", "--limit", "0"}, wantErr: "--limit must be positive"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			stdout := &bytes.Buffer{}
			stderr := &bytes.Buffer{}
			if exit := run(tc.args, stdout, stderr); exit != 1 {
				t.Fatalf("unexpected exit code: got %d, want 1", exit)
			}
			if stdout.Len() != 0 {
				t.Fatalf("expected empty stdout, got %q", stdout.String())
			}
			if !strings.Contains(stderr.String(), tc.wantErr) {
				t.Fatalf("stderr %q does not contain %q", stderr.String(), tc.wantErr)
			}
		})
	}
	if len(*calls) != 0 {
		t.Fatalf("expected no RPC calls, got %d", len(*calls))
	}
}

func writeTestKey(t *testing.T) (string, *crypto.PrivateKey) {
	t.Helper()
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	path := filepath.Join(t.TempDir(), "wallet.key")
	if err := os.WriteFile(path, key.Bytes(), 0o600); err != nil {
		t.Fatalf("write key: %v", err)
	}
	return path, key
}

func TestSaleBuySignsPurchase(t *testing.T) {
	path, key := writeTestKey(t)
	sale := "0x1111111111111111111111111111111111111111"
	var calls []recordedCall
	original := rpcCall
	rpcCall = func(method string, param interface{}, requireAuth bool) (json.RawMessage, *rpcError, error) {
		calls = append(calls, recordedCall{method: method, param: param, requireAuth: requireAuth})
		switch method {
		case "crowdsale_info":
			return json.RawMessage(`{"address":"` + sale + `"}`), nil, nil
		case "account_getNonce":
			return json.RawMessage(`3`), nil, nil
		default:
			return json.RawMessage(`{"operation":"buy","result":"14"}`), nil, nil
		}
	}
	t.Cleanup(func() { rpcCall = original })

	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	exit := run([]string{"sale", "buy", "--key", path, "--value", "66150000000000000"}, stdout, stderr)
	if exit != 0 {
		t.Fatalf("exit %d, stderr %q", exit, stderr.String())
	}
	if len(calls) != 3 || calls[0].method != "crowdsale_info" || calls[1].method != "account_getNonce" {
		t.Fatalf("unexpected calls %+v", calls)
	}
	call := calls[2]
	if call.method != "crowdsale_buy" || call.requireAuth {
		t.Fatalf("unexpected call %+v", call)
	}
	params, ok := call.param.(map[string]interface{})
	if !ok {
		t.Fatalf("unexpected params %#v", call.param)
	}
	if _, ok := params["beneficiary"]; ok {
		t.Fatalf("beneficiary should be omitted when not given")
	}
	signature, err := hexutil.Decode(params["signature"].(string))
	if err != nil {
		t.Fatalf("decode signature: %v", err)
	}
	saleAddr, err := crypto.ParseAddress(params["sale"].(string))
	if err != nil {
		t.Fatalf("parse sale: %v", err)
	}
	from := key.PubKey().Address().Array()
	if params["from"] != crypto.FormatAddress(from) || params["value"] != "66150000000000000" {
		t.Fatalf("unexpected params %#v", params)
	}
	value, _ := new(big.Int).SetString("66150000000000000", 10)
	purchase := &types.Purchase{Sale: saleAddr, From: from, Value: value, Nonce: params["nonce"].(uint64), Signature: signature}
	if purchase.Nonce != 3 {
		t.Fatalf("expected nonce 3, got %d", purchase.Nonce)
	}
	if err := purchase.Verify(); err != nil {
		t.Fatalf("purchase signature does not verify: %v", err)
	}
	if !strings.Contains(stdout.String(), `"result": "14"`) {
		t.Fatalf("unexpected output %q", stdout.String())
	}
}

func TestSaleBuyRejectsUnreadableKey(t *testing.T) {
	calls := stubRPC(t, `{}`, nil)
	stderr := &bytes.Buffer{}
	missing := filepath.Join(t.TempDir(), "missing.key")
	if exit := run([]string{"sale", "buy", "--key", missing, "--value", "1"}, &bytes.Buffer{}, stderr); exit != 1 {
		t.Fatalf("expected failure")
	}
	if !strings.Contains(stderr.String(), "read key") || len(*calls) != 0 {
		t.Fatalf("unexpected stderr %q calls %+v", stderr.String(), *calls)
	}
}

func TestSaleBuyQuoteUsesQuoteMethod(t *testing.T) {
	calls := stubRPC(t, `{"tokens":"14"}`, nil)
	if exit := run([]string{"sale", "buy", "--from", "0xabc", "--value", "1", "--quote"}, &bytes.Buffer{}, &bytes.Buffer{}); exit != 0 {
		t.Fatalf("unexpected exit %d", exit)
	}
	if (*calls)[0].method != "crowdsale_quote" {
		t.Fatalf("unexpected method %s", (*calls)[0].method)
	}
}

func TestOwnerCommandsRequireAuth(t *testing.T) {
	cases := map[string][]string{
		"crowdsale_unlockFunds":       {"sale", "unlock", "--caller", "0x01"},
		"crowdsale_withdraw":          {"sale", "withdraw", "--caller", "0x01"},
		"crowdsale_finalize":          {"sale", "finalize", "--caller", "0x01"},
		"crowdsale_updateUsdRate":     {"sale", "update-rate", "--caller", "0x01", "--rate", "5"},
		"crowdsale_changeBeneficiary": {"sale", "change-wallet", "--caller", "0x01", "--wallet", "0x02"},
		"crowdsale_withdrawTokens":    {"sale", "withdraw-tokens", "--caller", "0x01", "--buyer", "0x03"},
		"crowdsale_claimRefund":       {"sale", "refund", "--caller", "0x01", "--buyer", "0x03"},
	}
	for method, args := range cases {
		calls := stubRPC(t, `{}`, nil)
		if exit := run(args, &bytes.Buffer{}, &bytes.Buffer{}); exit != 0 {
			t.Fatalf("%s: unexpected exit %d", method, exit)
		}
		if len(*calls) != 1 || (*calls)[0].method != method || !(*calls)[0].requireAuth {
			t.Fatalf("%s: unexpected calls %+v", method, *calls)
		}
	}
}

func TestRPCErrorIsReported(t *testing.T) {
	stubRPC(t, "", &rpcError{Code: -32031, Message: "execution reverted: crowdsale: purchase below minimum"})
	stderr := &bytes.Buffer{}
	if exit := run([]string{"sale", "balance", "--addr", "0x01"}, &bytes.Buffer{}, stderr); exit != 1 {
		t.Fatalf("expected exit 1, got %d", exit)
	}
	if got := stderr.String(); got != "RPC error -32031: execution reverted: crowdsale: purchase below minimum\n" {
		t.Fatalf("unexpected stderr %q", got)
	}
}

func TestTokenAndAccountQueries(t *testing.T) {
	calls := stubRPC(t, `"22500000"`, nil)
	stdout := &bytes.Buffer{}
	if exit := run([]string{"token", "allowance", "--owner", "0x01", "--spender", "0x02"}, stdout, &bytes.Buffer{}); exit != 0 {
		t.Fatalf("unexpected exit %d", exit)
	}
	if exit := run([]string{"account", "balance", "--addr", "0x01"}, stdout, &bytes.Buffer{}); exit != 0 {
		t.Fatalf("unexpected exit %d", exit)
	}
	if (*calls)[0].method != "token_allowance" || (*calls)[1].method != "account_getBalance" {
		t.Fatalf("unexpected calls %+v", *calls)
	}
	if !strings.HasPrefix(stdout.String(), "\"22500000\"\n") {
		t.Fatalf("unexpected output %q", stdout.String())
	}
}

func TestRateDerivation(t *testing.T) {
	cases := []struct {
		args      []string
		wantRate  string
		wantPrice string
	}{
		{args: []string{"rate", "from-quote", "--quote", "0.0063"}, wantRate: "63000000000000", wantPrice: "4725000000000000"},
		{args: []string{"rate", "from-spot", "--spot", "158.73"}, wantRate: "63000063000000", wantPrice: "4725004725000000"},
	}
	for _, tc := range cases {
		stdout := &bytes.Buffer{}
		stderr := &bytes.Buffer{}
		if exit := run(tc.args, stdout, stderr); exit != 0 {
			t.Fatalf("%v: exit %d, stderr %q", tc.args, exit, stderr.String())
		}
		var got rateResult
		if err := json.Unmarshal(stdout.Bytes(), &got); err != nil {
			t.Fatalf("decode output: %v", err)
		}
		if got.UsdRate != tc.wantRate || got.TokenPrice != tc.wantPrice {
			t.Fatalf("%v: got %+v", tc.args, got)
		}
	}
}

func TestRateRejectsNonPositiveInput(t *testing.T) {
	stderr := &bytes.Buffer{}
	if exit := run([]string{"rate", "from-spot", "--spot", "0"}, &bytes.Buffer{}, stderr); exit != 1 {
		t.Fatalf("expected failure")
	}
	if !strings.Contains(stderr.String(), "spot price must be positive") {
		t.Fatalf("unexpected stderr %q", stderr.String())
	}
}

func TestAccountNewWritesKeyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wallet.key")
	stdout := &bytes.Buffer{}
	if exit := run([]string{"account", "new", "--out", path}, stdout, &bytes.Buffer{}); exit != 0 {
		t.Fatalf("unexpected exit %d", exit)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat key: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("unexpected key permissions %v", info.Mode().Perm())
	}
	if !strings.Contains(stdout.String(), "Address: onls1") || !strings.Contains(stdout.String(), "sale buy --key") {
		t.Fatalf("unexpected output %q", stdout.String())
	}
	stderr := &bytes.Buffer{}
	if exit := run([]string{"account", "new", "--out", path}, &bytes.Buffer{}, stderr); exit != 1 {
		t.Fatalf("expected refusal to overwrite existing key")
	}
	if _, err := loadKey(path); err != nil {
		t.Fatalf("generated key should load for signing: %v", err)
	}
}

func TestDialErrorIncludesEndpointAndCause(t *testing.T) {
	originalEndpoint := rpcEndpoint
	rpcEndpoint = "http://test.invalid"
	defer func() { rpcEndpoint = originalEndpoint }()

	originalClient := http.DefaultClient
	http.DefaultClient = &http.Client{Transport: roundTripperFunc(func(*http.Request) (*http.Response, error) {
		return nil, errors.New("connect: connection refused (test stub)")
	})}
	defer func() { http.DefaultClient = originalClient }()

	stderr := &bytes.Buffer{}
	if exit := run([]string{"sale", "info"}, &bytes.Buffer{}, stderr); exit != 1 {
		t.Fatalf("expected failure")
	}
	output := stderr.String()
	if !strings.Contains(output, "POST http://test.invalid") || !strings.Contains(output, "connection refused (test stub)") {
		t.Fatalf("unexpected stderr %q", output)
	}
}

func TestPrivilegedCallWithoutTokenFails(t *testing.T) {
	originalToken := rpcAuthToken
	rpcAuthToken = ""
	defer func() { rpcAuthToken = originalToken }()

	stderr := &bytes.Buffer{}
	if exit := run([]string{"sale", "finalize", "--caller", "0x01"}, &bytes.Buffer{}, stderr); exit != 1 {
		t.Fatalf("expected failure")
	}
	if !strings.Contains(stderr.String(), "requires ONLS_RPC_TOKEN") {
		t.Fatalf("unexpected stderr %q", stderr.String())
	}
}

func TestApplyGlobalFlags(t *testing.T) {
	original := rpcEndpoint
	defer func() { rpcEndpoint = original }()
	rest, err := applyGlobalFlags([]string{"--rpc", "http://node:9000", "sale", "info"})
	if err != nil {
		t.Fatalf("apply flags: %v", err)
	}
	if rpcEndpoint != "http://node:9000" || len(rest) != 2 || rest[0] != "sale" {
		t.Fatalf("unexpected result %q %v", rpcEndpoint, rest)
	}
	if _, err := applyGlobalFlags([]string{"--rpc"}); err == nil {
		t.Fatalf("expected error for missing value")
	}
}
