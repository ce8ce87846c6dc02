package core

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"onlsale/config"
	coreerrors "onlsale/core/errors"
	"onlsale/core/events"
	"onlsale/core/genesis"
	"onlsale/core/state"
	"onlsale/core/types"
	"onlsale/crypto"
	"onlsale/integrations/eventlog"
	"onlsale/native/crowdsale"
	"onlsale/native/token"
	"onlsale/observability"
	"onlsale/storage"
)

// Node owns the ledger state and serialises every operation against it. An
// operation either commits all of its writes and publishes its events, or
// leaves state untouched and publishes nothing.
type Node struct {
	mu         sync.Mutex
	db         storage.Database
	state      *state.Manager
	deployment *state.Deployment
	sale       *crowdsale.Engine
	token      *token.Engine
	buffer     *events.Buffer
	sinks      events.Fanout
	archive    *eventlog.Store
	metrics    *observability.SaleMetrics
	logger     *slog.Logger
	nowFn      func() int64
}

// NewNode opens the ledger stored in db. When a deployment record exists the
// sale and token engines are bound to it; otherwise Deploy must be called.
func NewNode(db storage.Database) (*Node, error) {
	if db == nil {
		return nil, fmt.Errorf("database must not be nil")
	}
	n := &Node{
		db:     db,
		state:  state.NewManager(db),
		buffer: events.NewBuffer(),
		logger: slog.Default(),
		nowFn:  func() int64 { return time.Now().Unix() },
	}
	deployment, ok, err := n.state.DeploymentGet()
	if err != nil {
		return nil, fmt.Errorf("load deployment: %w", err)
	}
	if ok {
		n.bind(deployment)
	}
	return n, nil
}

func (n *Node) bind(deployment *state.Deployment) {
	n.deployment = deployment
	n.token = token.NewEngine(deployment.Token)
	n.token.SetState(n.state)
	n.token.SetEmitter(n.buffer)
	n.sale = crowdsale.NewEngine(deployment.Sale)
	n.sale.SetState(n.state)
	n.sale.SetTokenLedger(n.token)
	n.sale.SetEmitter(n.buffer)
	n.sale.SetNowFunc(n.nowFn)
}

// SetNowFunc overrides the clock used for the sale window and receipts.
func (n *Node) SetNowFunc(now func() int64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if now == nil {
		now = func() int64 { return time.Now().Unix() }
	}
	n.nowFn = now
	if n.sale != nil {
		n.sale.SetNowFunc(now)
	}
}

// SetLogger configures the logger used to report operation outcomes.
func (n *Node) SetLogger(logger *slog.Logger) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if logger == nil {
		logger = slog.Default()
	}
	n.logger = logger
}

// SetMetrics configures the sale metrics registry.
func (n *Node) SetMetrics(metrics *observability.SaleMetrics) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.metrics = metrics
}

// SetArchive configures the event archive that receives committed receipts.
func (n *Node) SetArchive(archive *eventlog.Store) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.archive = archive
}

// AddSink attaches a subscriber that receives committed events in order.
func (n *Node) AddSink(sink events.Emitter) {
	if sink == nil {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sinks = append(n.sinks, sink)
}

// Deployment returns the stored deployment record, if any.
func (n *Node) Deployment() (*state.Deployment, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.deployment == nil {
		return nil, false
	}
	copied := *n.deployment
	return &copied, true
}

// Deploy creates the token and the sale from the plan. A node that already
// holds a deployment accepts the call only for the same network and returns
// no receipt.
func (n *Node) Deploy(plan *config.Plan) (*Receipt, error) {
	if plan == nil {
		return nil, fmt.Errorf("deployment plan must not be nil")
	}
	n.mu.Lock()
	if n.deployment != nil {
		existing := n.deployment
		n.mu.Unlock()
		if existing.Network != plan.Network {
			return nil, fmt.Errorf("%w: have %s, want %s", coreerrors.ErrNetworkMismatch, existing.Network, plan.Network)
		}
		return nil, nil
	}
	n.mu.Unlock()

	var deployed *state.Deployment
	receipt, err := n.execute("deploy", plan.Deployer, func() (*big.Int, error) {
		deployment, err := genesis.Deploy(plan, n.state, n.nowFn(), n.buffer)
		if err != nil {
			return nil, err
		}
		deployed = deployment
		return nil, nil
	})
	if err != nil {
		return nil, err
	}
	n.mu.Lock()
	n.bind(deployed)
	n.mu.Unlock()
	n.refreshMetrics()
	return receipt, nil
}

// execute runs op as one indivisible unit under the node lock.
func (n *Node) execute(operation string, caller [20]byte, op func() (*big.Int, error)) (*Receipt, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	start := time.Now()
	n.buffer.Reset()

	result, err := op()
	if err == nil {
		var receipt *Receipt
		emitted := n.buffer.Events()
		receipt, err = newReceipt(operation, caller, n.nowFn(), result, emitted)
		if err == nil {
			err = n.state.Commit()
		}
		if err == nil {
			n.buffer.Flush(n.sinks)
			n.archiveReceipt(receipt, emitted)
			n.metrics.ObserveOperation(operation, "", time.Since(start))
			n.logger.Info("sale operation committed",
				slog.String("operation", operation),
				slog.String("receipt", receipt.ID),
				slog.String("caller", receipt.Caller),
				slog.Int("events", len(receipt.Events)))
			return receipt, nil
		}
	}

	n.state.Discard()
	n.buffer.Reset()
	reason := crowdsale.Reason(err)
	n.metrics.ObserveOperation(operation, reason, time.Since(start))
	n.logger.Warn("sale operation reverted",
		slog.String("operation", operation),
		slog.String("caller", crypto.FormatAddress(caller)),
		slog.String("reason", reason),
		slog.Any("error", err))
	return nil, err
}

func (n *Node) archiveReceipt(receipt *Receipt, emitted []events.Event) {
	if n.archive == nil || len(receipt.Events) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := n.archive.Append(ctx, receipt.records(emitted)); err != nil {
		n.logger.Error("archive events failed",
			slog.String("receipt", receipt.ID),
			slog.Any("error", err))
	}
}

func (n *Node) refreshMetrics() {
	if n.metrics == nil {
		return
	}
	status, err := n.Status()
	if err != nil {
		return
	}
	n.metrics.SetBalance("raised", status.Totals.WeiRaised)
	n.metrics.SetBalance("goal", status.Totals.GoalBalance)
	n.metrics.SetBalance("raise", status.Totals.RaiseBalance)
	n.metrics.SetBalance("withdrawn", status.Totals.WeiWithdrawn)
	n.metrics.SetBalance("refunded", status.Totals.WeiRefunded)
	n.metrics.SetTokens("sold", status.Totals.TokensSold)
	n.metrics.SetTokens("pending", status.Totals.TokensPending)
	n.metrics.SetTokens("delivered", status.Totals.TokensDelivered)
	n.metrics.SetTokens("remaining", status.Remaining)
}

func (n *Node) saleOp(operation string, caller [20]byte, op func(sale *crowdsale.Engine) (*big.Int, error)) (*Receipt, error) {
	receipt, err := n.execute(operation, caller, func() (*big.Int, error) {
		if n.sale == nil {
			return nil, crowdsale.ErrNotDeployed
		}
		return op(n.sale)
	})
	if err == nil {
		n.refreshMetrics()
	}
	return receipt, err
}

// Buy is the default payable purchase. The purchase must be signed by the
// account it spends from and carry that account's next nonce; the nonce only
// advances when the purchase commits. The beneficiary, when given, must be
// the purchaser.
func (n *Node) Buy(purchase *types.Purchase) (*Receipt, error) {
	if purchase == nil {
		return nil, fmt.Errorf("purchase must not be nil")
	}
	if err := purchase.Verify(); err != nil {
		return nil, err
	}
	from := purchase.From
	if purchase.Beneficiary != ([20]byte{}) && purchase.Beneficiary != from {
		return nil, coreerrors.ErrBeneficiaryMismatch
	}
	return n.saleOp("buy", from, func(sale *crowdsale.Engine) (*big.Int, error) {
		if purchase.Sale != sale.Address() {
			return nil, coreerrors.ErrSaleMismatch
		}
		account, err := n.state.GetAccount(from[:])
		if err != nil {
			return nil, err
		}
		if account.Nonce != purchase.Nonce {
			return nil, fmt.Errorf("%w: have %d, want %d", coreerrors.ErrNonceMismatch, purchase.Nonce, account.Nonce)
		}
		account.Nonce++
		if err := n.state.PutAccount(from[:], account); err != nil {
			return nil, err
		}
		return sale.Buy(from, purchase.Value)
	})
}

func (n *Node) UpdateUsdRate(caller [20]byte, usdRate *big.Int) (*Receipt, error) {
	return n.saleOp("updateUsdRate", caller, func(sale *crowdsale.Engine) (*big.Int, error) {
		return nil, sale.UpdateUsdRate(caller, usdRate)
	})
}

func (n *Node) UnlockFunds(caller [20]byte) (*Receipt, error) {
	return n.saleOp("unlockFunds", caller, func(sale *crowdsale.Engine) (*big.Int, error) {
		return nil, sale.UnlockFunds(caller)
	})
}

func (n *Node) Withdraw(caller [20]byte) (*Receipt, error) {
	return n.saleOp("withdraw", caller, func(sale *crowdsale.Engine) (*big.Int, error) {
		return sale.Withdraw(caller)
	})
}

func (n *Node) ChangeBeneficiary(caller, wallet [20]byte) (*Receipt, error) {
	return n.saleOp("changeBeneficiary", caller, func(sale *crowdsale.Engine) (*big.Int, error) {
		return nil, sale.ChangeBeneficiary(caller, wallet)
	})
}

func (n *Node) WithdrawTokens(caller, buyer [20]byte) (*Receipt, error) {
	return n.saleOp("withdrawTokens", caller, func(sale *crowdsale.Engine) (*big.Int, error) {
		return sale.WithdrawTokens(caller, buyer)
	})
}

func (n *Node) Finalize(caller [20]byte) (*Receipt, error) {
	return n.saleOp("finalize", caller, func(sale *crowdsale.Engine) (*big.Int, error) {
		return nil, sale.Finalize(caller)
	})
}

// ClaimRefund pays the buyer's deposit back. caller is recorded on the
// receipt only; the payout always goes to buyer.
func (n *Node) ClaimRefund(caller, buyer [20]byte) (*Receipt, error) {
	return n.saleOp("claimRefund", caller, func(sale *crowdsale.Engine) (*big.Int, error) {
		return sale.ClaimRefund(buyer)
	})
}

// ListEvents pages through the event archive.
func (n *Node) ListEvents(ctx context.Context, after int64, limit int) ([]eventlog.Record, error) {
	n.mu.Lock()
	archive := n.archive
	n.mu.Unlock()
	if archive == nil {
		return nil, coreerrors.ErrArchiveDisabled
	}
	return archive.List(ctx, after, limit)
}
