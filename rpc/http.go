package rpc

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"onlsale/core"
	"onlsale/observability"
	"onlsale/observability/logging"
	"onlsale/rpc/modules"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
	limiterIdleTTL  = 10 * time.Minute
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeUnauthorized   = -32001
	codeServerError    = -32000
	codeRateLimited    = -32020
)

// ServerConfig tunes the JSON-RPC server.
type ServerConfig struct {
	// AuthToken guards every state-changing method. When empty those methods
	// are refused.
	AuthToken         string
	RequestsPerMinute int
	Logger            *slog.Logger
	// Tracing wraps the router in an otelhttp handler so each request opens a
	// span on the global tracer provider.
	Tracing bool
}

type handlerFunc func(ctx context.Context, raw json.RawMessage) (interface{}, *modules.ModuleError)

type method struct {
	module  string
	mutates bool
	call    handlerFunc
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type Server struct {
	node      *core.Node
	sale      *modules.SaleModule
	token     *modules.TokenModule
	methods   map[string]method
	authToken string
	tracing   bool
	logger    *slog.Logger

	limit rate.Limit
	burst int

	mu       sync.Mutex
	limiters map[string]*clientLimiter
	nowFn    func() time.Time
}

func NewServer(node *core.Node, cfg ServerConfig) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		node:      node,
		sale:      modules.NewSaleModule(node),
		token:     modules.NewTokenModule(node),
		authToken: strings.TrimSpace(cfg.AuthToken),
		tracing:   cfg.Tracing,
		logger:    logger,
		limit:     rate.Inf,
		limiters:  make(map[string]*clientLimiter),
		nowFn:     time.Now,
	}
	if cfg.RequestsPerMinute > 0 {
		s.limit = rate.Limit(float64(cfg.RequestsPerMinute) / 60.0)
		s.burst = cfg.RequestsPerMinute
	}
	s.methods = s.buildMethods()
	return s
}

func plain(fn func(json.RawMessage) (interface{}, *modules.ModuleError)) handlerFunc {
	return func(_ context.Context, raw json.RawMessage) (interface{}, *modules.ModuleError) {
		return fn(raw)
	}
}

func (s *Server) buildMethods() map[string]method {
	sale := s.sale
	node := s.node
	view := func(call func(json.RawMessage) (interface{}, *modules.ModuleError)) method {
		return method{module: "crowdsale", call: plain(call)}
	}
	mutator := func(call func(json.RawMessage) (interface{}, *modules.ModuleError)) method {
		return method{module: "crowdsale", mutates: true, call: plain(call)}
	}
	tokenView := func(call func(json.RawMessage) (interface{}, *modules.ModuleError)) method {
		return method{module: "token", call: plain(call)}
	}
	return map[string]method{
		// Purchases are authorised by the buyer's signature, not the bearer token.
		"crowdsale_buy":               {module: "crowdsale", call: plain(sale.Buy)},
		"crowdsale_quote":             view(sale.Quote),
		"crowdsale_updateUsdRate":     mutator(sale.UpdateUsdRate),
		"crowdsale_unlockFunds":       mutator(sale.UnlockFunds),
		"crowdsale_releaseFunds":      mutator(sale.UnlockFunds),
		"crowdsale_withdraw":          mutator(sale.Withdraw),
		"crowdsale_changeBeneficiary": mutator(sale.ChangeBeneficiary),
		"crowdsale_withdrawTokens":    mutator(sale.WithdrawTokens),
		"crowdsale_finalize":          mutator(sale.Finalize),
		"crowdsale_claimRefund":       mutator(sale.ClaimRefund),
		"crowdsale_info":              view(sale.Info),
		"crowdsale_status":            view(sale.Status),
		"crowdsale_getUsdRate":        view(sale.Amount(node.UsdRate)),
		"crowdsale_rate":              view(sale.Amount(node.Rate)),
		"crowdsale_goal":              view(sale.Amount(node.Goal)),
		"crowdsale_goalReached":       view(sale.Flag(node.GoalReached)),
		"crowdsale_weiRaised":         view(sale.Amount(node.WeiRaised)),
		"crowdsale_goalBalance":       view(sale.Amount(node.GoalBalance)),
		"crowdsale_raiseBalance":      view(sale.Amount(node.RaiseBalance)),
		"crowdsale_totalBalance":      view(sale.Amount(node.TotalBalance)),
		"crowdsale_remainingTokens":   view(sale.Amount(node.RemainingTokens)),
		"crowdsale_getMinPurchaseWei": view(sale.Amount(node.GetMinPurchaseWei)),
		"crowdsale_getMaxPurchaseWei": view(sale.Amount(node.GetMaxPurchaseWei)),
		"crowdsale_getUsdTokenAmount": view(sale.GetUsdTokenAmount),
		"crowdsale_getWeiTokenPrice":  view(sale.GetWeiTokenPrice),
		"crowdsale_isLocked":          view(sale.Flag(node.IsLocked)),
		"crowdsale_isFinalized":       view(sale.Flag(node.IsFinalized)),
		"crowdsale_token":             view(sale.Address(node.Token)),
		"crowdsale_wallet":            view(sale.Address(node.Wallet)),
		"crowdsale_balanceOf":         view(sale.BalanceOf),
		"crowdsale_depositsOf":        view(sale.DepositsOf),
		"crowdsale_buyers":            view(sale.Buyers),
		"crowdsale_listEvents":        {module: "crowdsale", call: sale.ListEvents},
		"token_metadata":              tokenView(s.token.Metadata),
		"token_totalSupply":           tokenView(s.token.TotalSupply),
		"token_balanceOf":             tokenView(s.token.BalanceOf),
		"token_allowance":             tokenView(s.token.Allowance),
		"account_getBalance":          {module: "account", call: plain(s.token.AccountBalance)},
		"account_getNonce":            {module: "account", call: plain(s.token.AccountNonce)},
	}
}

// Router mounts the JSON-RPC endpoint alongside health and metrics.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/", s.handle)
	if s.tracing {
		return otelhttp.NewHandler(r, "onls-rpc")
	}
	return r
}

// Start serves the router until ctx is cancelled or the listener fails.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting JSON-RPC server", slog.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      interface{}       `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeModuleError(w http.ResponseWriter, id interface{}, err *modules.ModuleError) {
	if err == nil {
		writeError(w, http.StatusInternalServerError, id, codeServerError, "internal error", nil)
		return
	}
	writeError(w, err.HTTPStatus, id, err.Code, err.Message, err.Data)
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	defer func() {
		_ = reader.Close()
	}()

	w.Header().Set("Content-Type", "application/json")

	body, err := io.ReadAll(reader)
	if err != nil {
		status := http.StatusBadRequest
		message := "failed to read request body"
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			status = http.StatusRequestEntityTooLarge
			message = fmt.Sprintf("request body exceeds %d bytes", maxRequestBytes)
		}
		writeError(w, status, nil, codeInvalidRequest, message, err.Error())
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		writeError(w, http.StatusBadRequest, nil, codeInvalidRequest, "request body required", nil)
		return
	}

	req := &RPCRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version", req.JSONRPC)
		return
	}
	if req.Method == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "method required", nil)
		return
	}

	entry, ok := s.methods[req.Method]
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, fmt.Sprintf("unknown method %s", req.Method), nil)
		return
	}
	metrics := observability.ModuleMetrics()
	if !s.allowSource(clientSource(r)) {
		metrics.RecordThrottle(entry.module, "rate_limit")
		writeError(w, http.StatusTooManyRequests, req.ID, codeRateLimited, "rate limit exceeded", nil)
		return
	}
	if entry.mutates {
		if authErr := s.requireAuth(r); authErr != nil {
			s.logger.Warn("rpc auth rejected",
				slog.String("method", req.Method),
				slog.String("client", clientSource(r)),
				logging.MaskField("authorization", r.Header.Get("Authorization")),
				slog.String("reason", authErr.Message))
			metrics.Observe(entry.module, req.Method, authErr.Code, 0)
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
	}
	if len(req.Params) > 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "too many parameters", nil)
		return
	}
	var raw json.RawMessage
	if len(req.Params) == 1 {
		raw = req.Params[0]
	}

	start := time.Now()
	result, modErr := entry.call(r.Context(), raw)
	if modErr != nil {
		metrics.Observe(entry.module, req.Method, modErr.Code, time.Since(start))
		if modErr.HTTPStatus >= http.StatusInternalServerError {
			s.logger.Error("rpc method failed",
				slog.String("method", req.Method),
				slog.Any("error", modErr.Data))
		}
		writeModuleError(w, req.ID, modErr)
		return
	}
	metrics.Observe(entry.module, req.Method, 0, time.Since(start))
	writeResult(w, req.ID, result)
}

func (s *Server) requireAuth(r *http.Request) *RPCError {
	if s.authToken == "" {
		return &RPCError{Code: codeUnauthorized, Message: "RPC authentication token not configured"}
	}
	header := r.Header.Get("Authorization")
	if header == "" {
		return &RPCError{Code: codeUnauthorized, Message: "missing Authorization header"}
	}
	if !strings.HasPrefix(header, "Bearer ") {
		return &RPCError{Code: codeUnauthorized, Message: "Authorization header must use Bearer scheme"}
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		return &RPCError{Code: codeUnauthorized, Message: "missing bearer token"}
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(s.authToken)) != 1 {
		return &RPCError{Code: codeUnauthorized, Message: "invalid RPC credentials"}
	}
	return nil
}

func (s *Server) allowSource(source string) bool {
	if s.limit == rate.Inf {
		return true
	}
	if source == "" {
		source = "unknown"
	}
	now := s.nowFn()
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, entry := range s.limiters {
		if now.Sub(entry.lastSeen) > limiterIdleTTL {
			delete(s.limiters, key)
		}
	}
	entry, ok := s.limiters[source]
	if !ok {
		entry = &clientLimiter{limiter: rate.NewLimiter(s.limit, s.burst)}
		s.limiters[source] = entry
	}
	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1)
}

func clientSource(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
