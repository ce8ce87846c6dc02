package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"onlsale/config"
	"onlsale/core"
	"onlsale/core/types"
	"onlsale/crypto"
	"onlsale/native/crowdsale"
	"onlsale/observability/logging"
	"onlsale/rpc/modules"
	"onlsale/storage"
)

const (
	testToken   = "secret-token"
	testOpening = int64(1_700_000_000)
	tokenPrice  = int64(4_725_000_000_000_000)
)

var (
	ownerAddr  = fill(0x01)
	walletAddr = fill(0x02)
	buyerKey   = testKey(0x11)
	buyerAddr  = buyerKey.PubKey().Address().Array()
	otherKey   = testKey(0x12)
)

func testKey(b byte) *crypto.PrivateKey {
	seed := make([]byte, 32)
	for i := range seed {
		seed[i] = b
	}
	key, err := crypto.PrivateKeyFromBytes(seed)
	if err != nil {
		panic(err)
	}
	return key
}

func fill(b byte) [20]byte {
	var out [20]byte
	for i := range out {
		out[i] = b
	}
	return out
}

func hexAddr(addr [20]byte) string { return crypto.FormatAddress(addr) }

func tokensWei(n int64) string {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(tokenPrice)).String()
}

func newTestServer(t *testing.T, cfg ServerConfig) *Server {
	t.Helper()
	node, err := core.NewNode(storage.NewMemDB())
	require.NoError(t, err)
	node.SetNowFunc(func() int64 { return testOpening + 60 })
	deployer := fill(0x0D)
	_, err = node.Deploy(&config.Plan{
		Network:         "development",
		Deployer:        deployer,
		SalesOwner:      ownerAddr,
		TokenOwner:      ownerAddr,
		Wallet:          walletAddr,
		Token:           crypto.DeriveAddress(deployer, 0),
		Sale:            crypto.DeriveAddress(deployer, 1),
		TokenName:       "ONLS Token",
		TokenSymbol:     "ONLS",
		TotalSupply:     big.NewInt(1_000_000_000),
		SaleShare:       big.NewInt(22_500_000),
		UnitPriceCents:  75,
		UsdRate:         big.NewInt(63_000_000_000_000),
		MinPurchase:     1_000,
		MaxPurchase:     2_000,
		Goal:            big.NewInt(100_000_000_000_000_000),
		OpeningTime:     testOpening,
		ClosingDuration: 24 * time.Hour,
		WithdrawPolicy:  crowdsale.WithdrawAfterUnlock,
		EarlyFinalize:   true,
		Alloc: []config.Allocation{
			{Address: buyerAddr, Balance: new(big.Int).Mul(big.NewInt(10), big.NewInt(1_000_000_000_000_000_000))},
		},
	})
	require.NoError(t, err)
	return NewServer(node, cfg)
}

func saleAddress(t *testing.T, server *Server) [20]byte {
	t.Helper()
	deployment, ok := server.node.Deployment()
	require.True(t, ok)
	return deployment.Sale
}

// signedBuy builds crowdsale_buy params for buyerAddr signed with key.
func signedBuy(t *testing.T, sale [20]byte, key *crypto.PrivateKey, value string, nonce uint64) map[string]interface{} {
	t.Helper()
	amount, ok := new(big.Int).SetString(value, 10)
	require.True(t, ok)
	purchase := &types.Purchase{Sale: sale, From: buyerAddr, Value: amount, Nonce: nonce}
	require.NoError(t, purchase.Sign(key.PrivateKey))
	return map[string]interface{}{
		"sale":      hexAddr(sale),
		"from":      hexAddr(buyerAddr),
		"value":     value,
		"nonce":     nonce,
		"signature": hexutil.Encode(purchase.Signature),
	}
}

func call(t *testing.T, handler http.Handler, method string, params interface{}, token string) (*httptest.ResponseRecorder, RPCResponse) {
	t.Helper()
	req := map[string]interface{}{"jsonrpc": "2.0", "id": 1, "method": method}
	if params != nil {
		req["params"] = []interface{}{params}
	}
	body, err := json.Marshal(req)
	require.NoError(t, err)
	httpReq := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	httpReq.RemoteAddr = "192.0.2.10:4000"
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httpReq)
	var resp RPCResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec, resp
}

func TestBuyThenQueryBalances(t *testing.T) {
	server := newTestServer(t, ServerConfig{AuthToken: testToken})
	handler := server.Router()
	sale := saleAddress(t, server)

	rec, resp := call(t, handler, "crowdsale_buy", signedBuy(t, sale, buyerKey, tokensWei(14), 0), "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Nil(t, resp.Error)
	receipt, ok := resp.Result.(map[string]interface{})
	require.True(t, ok)
	require.Equal(t, "buy", receipt["operation"])
	require.Equal(t, "14", receipt["result"])

	_, resp = call(t, handler, "crowdsale_balanceOf", map[string]string{"address": hexAddr(buyerAddr)}, "")
	require.Nil(t, resp.Error)
	require.Equal(t, "14", resp.Result)

	_, resp = call(t, handler, "crowdsale_weiRaised", nil, "")
	require.Equal(t, tokensWei(14), resp.Result)

	_, resp = call(t, handler, "crowdsale_buyers", nil, "")
	require.Equal(t, []interface{}{hexAddr(buyerAddr)}, resp.Result)

	_, resp = call(t, handler, "account_getNonce", map[string]string{"address": hexAddr(buyerAddr)}, "")
	require.Equal(t, float64(1), resp.Result)
}

func TestBuyRequiresBuyerSignature(t *testing.T) {
	server := newTestServer(t, ServerConfig{AuthToken: testToken})
	handler := server.Router()
	sale := saleAddress(t, server)
	balance := func() interface{} {
		_, resp := call(t, handler, "account_getBalance", map[string]string{"address": hexAddr(buyerAddr)}, "")
		return resp.Result
	}
	funded := balance()

	unsigned := signedBuy(t, sale, buyerKey, tokensWei(26), 0)
	delete(unsigned, "signature")
	rec, resp := call(t, handler, "crowdsale_buy", unsigned, testToken)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, codeInvalidParams, resp.Error.Code)

	_, resp = call(t, handler, "crowdsale_buy", signedBuy(t, sale, otherKey, tokensWei(26), 0), testToken)
	require.NotNil(t, resp.Error)
	require.Equal(t, modules.CodeInvalidSignature, resp.Error.Code)

	tampered := signedBuy(t, sale, buyerKey, tokensWei(14), 0)
	tampered["value"] = tokensWei(26)
	_, resp = call(t, handler, "crowdsale_buy", tampered, "")
	require.Equal(t, modules.CodeInvalidSignature, resp.Error.Code)

	_, resp = call(t, handler, "crowdsale_buy", signedBuy(t, fill(0x77), buyerKey, tokensWei(14), 0), "")
	require.Equal(t, modules.CodeInvalidSignature, resp.Error.Code)
	require.Equal(t, funded, balance())

	params := signedBuy(t, sale, buyerKey, tokensWei(14), 0)
	_, resp = call(t, handler, "crowdsale_buy", params, "")
	require.Nil(t, resp.Error)
	_, resp = call(t, handler, "crowdsale_buy", params, "")
	require.Equal(t, modules.CodeNonceMismatch, resp.Error.Code)

	_, resp = call(t, handler, "crowdsale_balanceOf", map[string]string{"address": hexAddr(buyerAddr)}, "")
	require.Equal(t, "14", resp.Result)
}

func TestRevertReturnsSaleErrorCode(t *testing.T) {
	server := newTestServer(t, ServerConfig{})
	handler := server.Router()
	sale := saleAddress(t, server)

	rec, resp := call(t, handler, "crowdsale_buy", signedBuy(t, sale, buyerKey, tokensWei(1), 0), "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, resp.Error)
	require.Equal(t, modules.CodeBelowMinimum, resp.Error.Code)
	require.True(t, strings.HasPrefix(resp.Error.Message, "execution reverted: "))

	_, resp = call(t, handler, "crowdsale_buy", signedBuy(t, sale, buyerKey, "12345", 0), "")
	require.NotNil(t, resp.Error)
	require.Equal(t, modules.CodeInvalidAmount, resp.Error.Code)
}

func TestMutatorsRequireBearerToken(t *testing.T) {
	handler := newTestServer(t, ServerConfig{AuthToken: testToken}).Router()
	params := map[string]string{"caller": hexAddr(ownerAddr)}

	rec, resp := call(t, handler, "crowdsale_unlockFunds", params, "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, codeUnauthorized, resp.Error.Code)

	rec, resp = call(t, handler, "crowdsale_unlockFunds", params, "wrong")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "invalid RPC credentials", resp.Error.Message)

	rec, resp = call(t, handler, "crowdsale_releaseFunds", params, testToken)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Nil(t, resp.Error)

	_, resp = call(t, handler, "crowdsale_isLocked", nil, "")
	require.Equal(t, false, resp.Result)

	_, resp = call(t, handler, "crowdsale_unlockFunds", params, testToken)
	require.Equal(t, modules.CodeAlreadyUnlocked, resp.Error.Code)
}

func TestRejectedCredentialsAreMaskedInLogs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	handler := newTestServer(t, ServerConfig{AuthToken: testToken, Logger: logger}).Router()

	rec, _ := call(t, handler, "crowdsale_withdraw", map[string]string{"caller": hexAddr(ownerAddr)}, "leaked-credential")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Contains(t, buf.String(), "rpc auth rejected")
	require.Contains(t, buf.String(), logging.RedactedValue)
	require.NotContains(t, buf.String(), "leaked-credential")
}

func TestMutatorsRefusedWithoutConfiguredToken(t *testing.T) {
	handler := newTestServer(t, ServerConfig{}).Router()
	rec, resp := call(t, handler, "crowdsale_finalize", map[string]string{"caller": hexAddr(ownerAddr)}, "anything")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "RPC authentication token not configured", resp.Error.Message)
}

func TestNonOwnerCallerIsUnauthorizedRevert(t *testing.T) {
	handler := newTestServer(t, ServerConfig{AuthToken: testToken}).Router()
	rec, resp := call(t, handler, "crowdsale_updateUsdRate", map[string]string{"caller": hexAddr(buyerAddr), "rate": "1"}, testToken)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, modules.CodeUnauthorized, resp.Error.Code)
}

func TestInvalidParamsAndUnknownMethod(t *testing.T) {
	handler := newTestServer(t, ServerConfig{}).Router()

	rec, resp := call(t, handler, "crowdsale_balanceOf", map[string]string{"address": "nope"}, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, codeInvalidParams, resp.Error.Code)

	rec, resp = call(t, handler, "crowdsale_balanceOf", map[string]string{"address": hexAddr(buyerAddr), "extra": "1"}, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, codeInvalidParams, resp.Error.Code)

	rec, resp = call(t, handler, "crowdsale_selfdestruct", nil, "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, codeMethodNotFound, resp.Error.Code)
}

func TestMalformedBody(t *testing.T) {
	handler := newTestServer(t, ServerConfig{}).Router()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var resp RPCResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, codeParseError, resp.Error.Code)
}

func TestRateLimitPerClient(t *testing.T) {
	server := newTestServer(t, ServerConfig{RequestsPerMinute: 2})
	now := time.Unix(testOpening, 0)
	server.nowFn = func() time.Time { return now }
	handler := server.Router()

	for i := 0; i < 2; i++ {
		rec, _ := call(t, handler, "crowdsale_goal", nil, "")
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec, resp := call(t, handler, "crowdsale_goal", nil, "")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, codeRateLimited, resp.Error.Code)

	now = now.Add(time.Minute)
	rec, _ = call(t, handler, "crowdsale_goal", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthAndMetricsRoutes(t *testing.T) {
	handler := newTestServer(t, ServerConfig{}).Router()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", rec.Body.String())

	call(t, handler, "token_totalSupply", nil, "")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "onls_rpc_requests_total")
}

func TestTracingWrapsRouterInSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	original := otel.GetTracerProvider()
	otel.SetTracerProvider(provider)
	t.Cleanup(func() {
		otel.SetTracerProvider(original)
		_ = provider.Shutdown(context.Background())
	})

	handler := newTestServer(t, ServerConfig{Tracing: true}).Router()
	rec, resp := call(t, handler, "token_totalSupply", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "1000000000", resp.Result)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	require.Equal(t, "onls-rpc", spans[0].Name())
}

func TestTokenQueries(t *testing.T) {
	server := newTestServer(t, ServerConfig{})
	handler := server.Router()

	_, resp := call(t, handler, "token_totalSupply", nil, "")
	require.Equal(t, "1000000000", resp.Result)

	_, resp = call(t, handler, "token_allowance", map[string]string{"owner": hexAddr(ownerAddr), "spender": hexAddr(saleAddress(t, server))}, "")
	require.Equal(t, "22500000", resp.Result)

	_, resp = call(t, handler, "account_getBalance", map[string]string{"address": hexAddr(buyerAddr)}, "")
	require.Equal(t, "10000000000000000000", resp.Result)
}
