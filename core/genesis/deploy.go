package genesis

import (
	"bytes"
	"fmt"
	"sort"

	"onlsale/config"
	"onlsale/core/events"
	"onlsale/core/state"
	"onlsale/crypto"
	"onlsale/native/crowdsale"
	"onlsale/native/token"
)

// Deploy applies a deployment plan to empty state: genesis balances, the
// token with its full supply on the token owner, the sale, and the owner's
// approval of the sale share. Writes are staged on the manager; the caller
// commits them.
func Deploy(plan *config.Plan, manager *state.Manager, now int64, emitter events.Emitter) (*state.Deployment, error) {
	if plan == nil {
		return nil, fmt.Errorf("deployment plan must not be nil")
	}
	if manager == nil {
		return nil, fmt.Errorf("state manager must not be nil")
	}
	if existing, ok, err := manager.DeploymentGet(); err != nil {
		return nil, fmt.Errorf("load deployment: %w", err)
	} else if ok {
		return nil, fmt.Errorf("%w: network %s at %s", crowdsale.ErrAlreadyDeployed, existing.Network, crypto.FormatAddress(existing.Sale))
	}
	if now < 0 {
		return nil, fmt.Errorf("deployment time must not be negative")
	}

	// 1) Native balances (sorted by address)
	allocs := append([]config.Allocation(nil), plan.Alloc...)
	sort.Slice(allocs, func(i, j int) bool {
		return bytes.Compare(allocs[i].Address[:], allocs[j].Address[:]) < 0
	})
	for _, alloc := range allocs {
		if err := manager.SetBalance(alloc.Address, alloc.Balance); err != nil {
			return nil, fmt.Errorf("alloc[%s]: %w", crypto.FormatAddress(alloc.Address), err)
		}
	}

	// 2) Token, full supply minted to the token owner
	tok := token.NewEngine(plan.Token)
	tok.SetState(manager)
	tok.SetEmitter(emitter)
	if err := tok.Create(&token.Metadata{
		Name:        plan.TokenName,
		Symbol:      plan.TokenSymbol,
		Decimals:    plan.TokenDecimals,
		TotalSupply: plan.TotalSupply,
		Owner:       plan.TokenOwner,
	}); err != nil {
		return nil, fmt.Errorf("create token: %w", err)
	}

	// 3) Sale
	sale := crowdsale.NewEngine(plan.Sale)
	sale.SetState(manager)
	sale.SetTokenLedger(tok)
	sale.SetEmitter(emitter)
	if err := sale.Deploy(plan.SaleConfig(now)); err != nil {
		return nil, fmt.Errorf("deploy sale: %w", err)
	}

	// 4) Sale share approved by the token owner; the sale itself holds no tokens
	if err := tok.Approve(plan.TokenOwner, plan.Sale, plan.SaleShare); err != nil {
		return nil, fmt.Errorf("approve sale share: %w", err)
	}

	deployment := &state.Deployment{
		Network:    plan.Network,
		Deployer:   plan.Deployer,
		Sale:       plan.Sale,
		Token:      plan.Token,
		DeployedAt: uint64(now),
	}
	if err := manager.DeploymentPut(deployment); err != nil {
		return nil, fmt.Errorf("persist deployment: %w", err)
	}
	return deployment, nil
}
