package token_test

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"onlsale/core/events"
	"onlsale/core/state"
	"onlsale/native/token"
	"onlsale/storage"
)

func addr(fill byte) [20]byte {
	var out [20]byte
	for i := range out {
		out[i] = fill
	}
	return out
}

func newTestToken(t *testing.T) (*token.Engine, *events.Buffer) {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	mgr := state.NewManager(db)
	buf := events.NewBuffer()
	engine := token.NewEngine(addr(0xB0))
	engine.SetState(mgr)
	engine.SetEmitter(buf)
	require.NoError(t, engine.Create(&token.Metadata{
		Name:        "Onlyoneswap",
		Symbol:      "onls",
		Decimals:    0,
		TotalSupply: big.NewInt(1_000_000_000),
		Owner:       addr(0x01),
	}))
	return engine, buf
}

func TestCreateMintsSupplyToOwner(t *testing.T) {
	engine, buf := newTestToken(t)

	meta, err := engine.Metadata()
	require.NoError(t, err)
	require.Equal(t, "ONLS", meta.Symbol)

	balance, err := engine.BalanceOf(addr(0x01))
	require.NoError(t, err)
	require.Equal(t, "1000000000", balance.String())

	supply, err := engine.TotalSupply()
	require.NoError(t, err)
	require.Equal(t, 0, supply.Cmp(balance))

	evts := buf.Flush(nil)
	require.Len(t, evts, 1)
	require.Equal(t, token.EventTypeTransfer, evts[0].EventType())

	err = engine.Create(&token.Metadata{Symbol: "X", TotalSupply: big.NewInt(1), Owner: addr(0x01)})
	require.ErrorIs(t, err, token.ErrAlreadyCreated)
}

func TestTransferFromConsumesAllowance(t *testing.T) {
	engine, buf := newTestToken(t)
	owner, spender, recipient := addr(0x01), addr(0xA0), addr(0x11)

	require.NoError(t, engine.Approve(owner, spender, big.NewInt(100)))
	buf.Reset()

	err := engine.TransferFrom(spender, owner, recipient, big.NewInt(101))
	require.ErrorIs(t, err, token.ErrInsufficientAllowance)

	require.NoError(t, engine.TransferFrom(spender, owner, recipient, big.NewInt(40)))
	evts := buf.Flush(nil)
	require.Len(t, evts, 1)
	require.Equal(t, token.EventTypeTransfer, evts[0].EventType())

	allowance, err := engine.Allowance(owner, spender)
	require.NoError(t, err)
	require.Equal(t, int64(60), allowance.Int64())

	balance, err := engine.BalanceOf(recipient)
	require.NoError(t, err)
	require.Equal(t, int64(40), balance.Int64())
}

func TestTransferGuards(t *testing.T) {
	engine, _ := newTestToken(t)
	owner, other := addr(0x01), addr(0x22)

	require.ErrorIs(t, engine.Transfer(other, owner, big.NewInt(1)), token.ErrInsufficientBalance)
	require.ErrorIs(t, engine.Transfer(owner, [20]byte{}, big.NewInt(1)), token.ErrZeroAddress)
	require.ErrorIs(t, engine.Transfer(owner, other, big.NewInt(-1)), token.ErrInvalidAmount)
	require.ErrorIs(t, engine.Approve(owner, [20]byte{}, big.NewInt(1)), token.ErrZeroAddress)

	require.NoError(t, engine.Transfer(owner, other, big.NewInt(5)))
	require.NoError(t, engine.Transfer(other, other, big.NewInt(5)))
	balance, err := engine.BalanceOf(other)
	require.NoError(t, err)
	require.Equal(t, int64(5), balance.Int64())
}
