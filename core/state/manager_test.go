package state

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"onlsale/core/types"
	"onlsale/native/crowdsale"
	"onlsale/storage"
)

func testAddr(fill byte) [20]byte {
	var out [20]byte
	for i := range out {
		out[i] = fill
	}
	return out
}

func TestManagerStagesWritesUntilCommit(t *testing.T) {
	db := storage.NewMemDB()
	defer db.Close()
	mgr := NewManager(db)

	require.NoError(t, mgr.SetBalance(testAddr(0x01), big.NewInt(500)))
	require.Equal(t, 1, mgr.Dirty())
	require.Empty(t, db.Keys())

	balance, err := mgr.Balance(testAddr(0x01))
	require.NoError(t, err)
	require.Equal(t, int64(500), balance.Int64())

	require.NoError(t, mgr.Commit())
	require.Equal(t, 0, mgr.Dirty())
	require.Len(t, db.Keys(), 1)

	reopened := NewManager(db)
	balance, err = reopened.Balance(testAddr(0x01))
	require.NoError(t, err)
	require.Equal(t, int64(500), balance.Int64())
}

func TestManagerDiscardDropsWrites(t *testing.T) {
	db := storage.NewMemDB()
	defer db.Close()
	mgr := NewManager(db)

	require.NoError(t, mgr.SetBalance(testAddr(0x02), big.NewInt(7)))
	mgr.Discard()
	require.NoError(t, mgr.Commit())
	require.Empty(t, db.Keys())

	balance, err := mgr.Balance(testAddr(0x02))
	require.NoError(t, err)
	require.Equal(t, 0, balance.Sign())
}

func TestAccountRejectsBadInput(t *testing.T) {
	mgr := NewManager(storage.NewMemDB())
	_, err := mgr.GetAccount([]byte{0x01})
	require.Error(t, err)
	addr := testAddr(0x01)
	err = mgr.PutAccount(addr[:], &types.Account{Balance: big.NewInt(-1)})
	require.Error(t, err)
}

func TestCrowdsaleRecordRoundTrip(t *testing.T) {
	mgr := NewManager(storage.NewMemDB())
	sale := &crowdsale.Sale{
		Config: &crowdsale.Config{
			Address:          testAddr(0xA0),
			SalesOwner:       testAddr(0x01),
			TokenOwner:       testAddr(0x02),
			Wallet:           testAddr(0x03),
			Token:            testAddr(0xB0),
			UnitPriceCents:   75,
			UsdRate:          big.NewInt(63_000_000_000_000),
			MinPurchaseCents: 1_000,
			MaxPurchaseCents: 2_000,
			Goal:             big.NewInt(630_000_000_000_000_000),
			OpeningTime:      1_700_000_000,
			ClosingTime:      1_800_000_000,
			WithdrawPolicy:   crowdsale.WithdrawAfterGoal,
			EarlyFinalize:    true,
		},
		Totals: &crowdsale.Totals{
			WeiRaised:    big.NewInt(42),
			GoalBalance:  big.NewInt(40),
			RaiseBalance: big.NewInt(2),
			TokensSold:   big.NewInt(3),
		},
		Locked:      true,
		Finalized:   true,
		FinalizedAt: 1_750_000_000,
	}
	require.NoError(t, mgr.CrowdsalePut(sale))

	stored, ok, err := mgr.CrowdsaleGet(testAddr(0xA0))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, sale.Config.Wallet, stored.Config.Wallet)
	require.Equal(t, 0, stored.Config.Goal.Cmp(sale.Config.Goal))
	require.Equal(t, sale.Config.OpeningTime, stored.Config.OpeningTime)
	require.Equal(t, crowdsale.WithdrawAfterGoal, stored.Config.WithdrawPolicy)
	require.True(t, stored.Config.EarlyFinalize)
	require.Equal(t, int64(42), stored.Totals.WeiRaised.Int64())
	require.Equal(t, 0, stored.Totals.WeiRefunded.Sign())
	require.True(t, stored.Locked)
	require.True(t, stored.Finalized)
	require.Equal(t, int64(1_750_000_000), stored.FinalizedAt)

	_, ok, err = mgr.CrowdsaleGet(testAddr(0xA1))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCrowdsaleBuyerIndexIsDeduplicated(t *testing.T) {
	mgr := NewManager(storage.NewMemDB())
	sale := testAddr(0xA0)
	buyers, err := mgr.CrowdsaleBuyers(sale)
	require.NoError(t, err)
	require.Empty(t, buyers)

	require.NoError(t, mgr.CrowdsaleRecordBuyer(sale, testAddr(0x11)))
	require.NoError(t, mgr.CrowdsaleRecordBuyer(sale, testAddr(0x12)))
	require.NoError(t, mgr.CrowdsaleRecordBuyer(sale, testAddr(0x11)))

	buyers, err = mgr.CrowdsaleBuyers(sale)
	require.NoError(t, err)
	require.Equal(t, [][20]byte{testAddr(0x11), testAddr(0x12)}, buyers)
}

func TestDeploymentRecord(t *testing.T) {
	mgr := NewManager(storage.NewMemDB())
	_, ok, err := mgr.DeploymentGet()
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, mgr.DeploymentPut(&Deployment{Network: "development", Sale: testAddr(0xA0), Token: testAddr(0xB0), DeployedAt: 99}))
	got, ok, err := mgr.DeploymentGet()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "development", got.Network)
	require.Equal(t, testAddr(0xB0), got.Token)
}
