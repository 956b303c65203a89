package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/web3guy0/spellbot/internal/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestStore_PositionRoundTrip(t *testing.T) {
	s := newTestStore(t)

	entryTime := time.Now().UTC().Truncate(time.Second)
	pos := &types.Position{
		ID:         "pos-1",
		Symbol:     "bitcoin",
		Side:       types.SideLong,
		Quantity:   d("0.01"),
		EntryPrice: d("50000"),
		EntryTime:  entryTime,
		Status:     types.StatusOpen,
	}
	require.NoError(t, s.SavePosition(pos))

	open, err := s.LoadOpenPositions()
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "pos-1", open[0].ID)
	assert.Equal(t, types.SideLong, open[0].Side)
	assert.True(t, open[0].Quantity.Equal(d("0.01")))
	assert.True(t, open[0].EntryPrice.Equal(d("50000")))

	exitTime := entryTime.Add(time.Hour)
	require.NoError(t, s.ClosePosition("pos-1", d("55000"), exitTime, d("50")))

	open, err = s.LoadOpenPositions()
	require.NoError(t, err)
	assert.Empty(t, open)

	history, err := s.PositionHistory("", 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, string(types.StatusClosed), history[0].Status)
	assert.True(t, history[0].ExitPrice.Equal(d("55000")))
	assert.True(t, history[0].PnL.Equal(d("50")))
	require.NotNil(t, history[0].ExitTime)
}

func TestStore_TradeHistoryFilter(t *testing.T) {
	s := newTestStore(t)

	now := time.Now().UTC()
	trades := []types.TradeLog{
		{PositionID: "a", Symbol: "bitcoin", Action: "LONG", Quantity: d("0.01"), Price: d("50000"), Timestamp: now},
		{PositionID: "b", Symbol: "ethereum", Action: "SHORT", Quantity: d("1"), Price: d("3000"), Timestamp: now.Add(time.Second)},
		{PositionID: "a", Symbol: "bitcoin", Action: "CLOSE_LONG", Quantity: d("0.01"), Price: d("55000"), Timestamp: now.Add(2 * time.Second)},
	}
	for _, tr := range trades {
		require.NoError(t, s.LogTrade(tr))
	}

	all, err := s.TradeHistory("", 10)
	require.NoError(t, err)
	require.Len(t, all, 3)
	// newest first
	assert.Equal(t, "CLOSE_LONG", all[0].Action)

	btc, err := s.TradeHistory("bitcoin", 10)
	require.NoError(t, err)
	require.Len(t, btc, 2)

	limited, err := s.TradeHistory("", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestStore_Snapshots(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.SaveSnapshot(d("10050"), d("9500"), d("50"), d("0.5")))
	require.NoError(t, s.SaveSnapshot(d("10100"), d("9500"), d("100"), d("1")))

	snaps, err := s.SnapshotHistory(time.Now().Add(-time.Minute))
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.True(t, snaps[0].TotalValue.Equal(d("10050")))
	assert.True(t, snaps[1].TotalPnLPercent.Equal(d("1")))
}

func TestStore_Reset(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.SavePosition(&types.Position{
		ID: "p", Symbol: "bitcoin", Side: types.SideLong,
		Quantity: d("1"), EntryPrice: d("50000"), EntryTime: time.Now(),
	}))
	require.NoError(t, s.LogTrade(types.TradeLog{PositionID: "p", Symbol: "bitcoin", Action: "LONG", Quantity: d("1"), Price: d("50000"), Timestamp: time.Now()}))
	require.NoError(t, s.SaveSnapshot(d("10000"), d("10000"), decimal.Zero, decimal.Zero))

	require.NoError(t, s.Reset())

	open, err := s.LoadOpenPositions()
	require.NoError(t, err)
	assert.Empty(t, open)

	trades, err := s.TradeHistory("", 10)
	require.NoError(t, err)
	assert.Empty(t, trades)

	snaps, err := s.SnapshotHistory(time.Time{})
	require.NoError(t, err)
	assert.Empty(t, snaps)
}
