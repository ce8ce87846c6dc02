package eventlog

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"onlsale/core/types"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "events.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestAppendAndList(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	at := time.Unix(1_700_000_000, 0).UTC()

	first := []Record{
		{ReceiptID: "r1", Operation: "buy", Type: "token.transfer", Attributes: map[string]string{"amount": "1"}, OccurredAt: at},
		{ReceiptID: "r1", Operation: "buy", Type: "crowdsale.tokensPurchased", Attributes: map[string]string{"value": "10"},
			Log: &types.Log{Address: "0xabc", Topics: []string{"0x01"}, Data: "0x"}, OccurredAt: at},
	}
	require.NoError(t, store.Append(ctx, first))
	require.Equal(t, int64(1), first[0].Sequence)
	require.Equal(t, int64(2), first[1].Sequence)

	second := []Record{{ReceiptID: "r2", Operation: "finalize", Type: "crowdsale.finalized", Attributes: map[string]string{}, OccurredAt: at}}
	require.NoError(t, store.Append(ctx, second))

	all, err := store.List(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, "crowdsale.tokensPurchased", all[1].Type)
	require.Equal(t, "10", all[1].Attributes["value"])
	require.NotNil(t, all[1].Log)
	require.Equal(t, []string{"0x01"}, all[1].Log.Topics)
	require.Nil(t, all[0].Log)
	require.True(t, all[0].OccurredAt.Equal(at))

	page, err := store.List(ctx, 2, 10)
	require.NoError(t, err)
	require.Len(t, page, 1)
	require.Equal(t, "r2", page[0].ReceiptID)

	limited, err := store.List(ctx, 0, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)

	byReceipt, err := store.ByReceipt(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, byReceipt, 2)

	missing, err := store.ByReceipt(ctx, "nope")
	require.NoError(t, err)
	require.Empty(t, missing)
}

func TestAppendEmptyIsNoop(t *testing.T) {
	store := openTestStore(t)
	require.NoError(t, store.Append(context.Background(), nil))
	records, err := store.List(context.Background(), 0, 0)
	require.NoError(t, err)
	require.Empty(t, records)
}
