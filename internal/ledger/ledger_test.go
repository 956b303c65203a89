package ledger

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/web3guy0/spellbot/internal/types"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func newTestLedger() *Ledger {
	return New(d("10000.00"))
}

func TestLedger_OpenLong(t *testing.T) {

	type test struct {
		quantity string
		price    string
		wantErr  error
		wantCash string
	}

	tests := map[string]test{
		"affordable": {
			quantity: "0.01",
			price:    "50000.00",
			wantCash: "9500",
		},
		"exact-cash": {
			quantity: "0.2",
			price:    "50000.00",
			wantCash: "0",
		},
		"insufficient": {
			quantity: "1.0",
			price:    "50000.00",
			wantErr:  types.ErrInsufficientFunds,
			wantCash: "10000",
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			l := newTestLedger()

			pos, err := l.OpenLong("bitcoin", d(tt.quantity), d(tt.price))

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, pos)
				assert.Empty(t, l.Positions("bitcoin"))
			} else {
				require.NoError(t, err)
				require.NotNil(t, pos)
				assert.NotEmpty(t, pos.ID)
				assert.Equal(t, types.SideLong, pos.Side)
				assert.Equal(t, types.StatusOpen, pos.Status)
				assert.True(t, pos.Quantity.Equal(d(tt.quantity)))
				assert.True(t, pos.EntryPrice.Equal(d(tt.price)))
			}
			assert.True(t, l.Cash().Equal(d(tt.wantCash)), "cash = %s", l.Cash())
		})
	}
}

func TestLedger_OpenShort_MarginOnly(t *testing.T) {
	l := newTestLedger()

	// margin = 1.0 * 50000 * 0.10 = 5000
	pos, err := l.OpenShort("bitcoin", d("1.0"), d("50000.00"))
	require.NoError(t, err)
	assert.Equal(t, types.SideShort, pos.Side)
	assert.True(t, l.Cash().Equal(d("5000")), "cash = %s", l.Cash())

	// a second identical short fits exactly
	_, err = l.OpenShort("bitcoin", d("1.0"), d("50000.00"))
	require.NoError(t, err)
	assert.True(t, l.Cash().IsZero())

	// third one fails and leaves state alone
	_, err = l.OpenShort("bitcoin", d("0.1"), d("50000.00"))
	require.ErrorIs(t, err, types.ErrInsufficientMargin)
	assert.True(t, l.Cash().IsZero())
	assert.Len(t, l.Positions("bitcoin"), 2)
}

// Long 0.01 BTC at 50k, close at 55k.
func TestLedger_LongRoundTrip(t *testing.T) {
	l := newTestLedger()

	_, err := l.OpenLong("bitcoin", d("0.01"), d("50000.00"))
	require.NoError(t, err)
	assert.True(t, l.Cash().Equal(d("9500")))

	result, err := l.ClosePositions("bitcoin", types.FilterAll, d("55000.00"))
	require.NoError(t, err)
	require.Len(t, result.Closed, 1)

	assert.True(t, result.TotalPnL.Equal(d("50")), "pnl = %s", result.TotalPnL)
	assert.True(t, l.Cash().Equal(d("10050")), "cash = %s", l.Cash())

	summary := l.Summary()
	assert.Equal(t, 1, summary.WinningTrades)
	assert.Equal(t, 0, summary.LosingTrades)
	assert.Equal(t, 1, summary.TotalTrades)
	assert.True(t, summary.TotalPnL.Equal(d("50")))
	assert.True(t, summary.TotalPnLPercent.Equal(d("0.5")))
}

// Short 1.0 BTC at 50k, close at 45k. Cash gets only
// the margin back; the 5000 profit shows up in stats, not cash.
func TestLedger_ShortRoundTrip(t *testing.T) {
	l := newTestLedger()

	_, err := l.OpenShort("bitcoin", d("1.0"), d("50000.00"))
	require.NoError(t, err)
	assert.True(t, l.Cash().Equal(d("5000")))

	result, err := l.ClosePositions("bitcoin", types.FilterAll, d("45000.00"))
	require.NoError(t, err)

	assert.True(t, result.TotalPnL.Equal(d("5000")), "pnl = %s", result.TotalPnL)
	assert.True(t, l.Cash().Equal(d("10000")), "cash = %s", l.Cash())

	summary := l.Summary()
	assert.True(t, summary.TotalPnL.Equal(d("5000")))
	assert.Equal(t, 1, summary.WinningTrades)
}

func TestLedger_ClosePositions_Filter(t *testing.T) {

	type test struct {
		filter     types.SideFilter
		wantClosed int
		wantErr    error
	}

	tests := map[string]test{
		"all":        {filter: types.FilterAll, wantClosed: 3},
		"long-only":  {filter: types.FilterLong, wantClosed: 2},
		"short-only": {filter: types.FilterShort, wantClosed: 1},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			l := newTestLedger()
			_, err := l.OpenLong("ethereum", d("1"), d("3000"))
			require.NoError(t, err)
			_, err = l.OpenLong("ethereum", d("0.5"), d("3100"))
			require.NoError(t, err)
			_, err = l.OpenShort("ethereum", d("2"), d("3000"))
			require.NoError(t, err)

			result, err := l.ClosePositions("ethereum", tt.filter, d("3200"))
			require.NoError(t, err)
			assert.Len(t, result.Closed, tt.wantClosed)

			for _, ct := range result.Closed {
				assert.True(t, tt.filter.Matches(ct.Side))
			}
		})
	}
}

func TestLedger_ClosePositions_NoMatch(t *testing.T) {
	l := newTestLedger()

	// empty book
	_, err := l.ClosePositions("bitcoin", types.FilterAll, d("50000"))
	require.ErrorIs(t, err, types.ErrNoMatchingPositions)

	// only a long open, asking for shorts
	_, err = l.OpenLong("bitcoin", d("0.01"), d("50000"))
	require.NoError(t, err)
	_, err = l.ClosePositions("bitcoin", types.FilterShort, d("50000"))
	require.ErrorIs(t, err, types.ErrNoMatchingPositions)
}

func TestLedger_CloseIsIdempotent(t *testing.T) {
	l := newTestLedger()
	_, err := l.OpenLong("bitcoin", d("0.01"), d("50000"))
	require.NoError(t, err)

	_, err = l.ClosePositions("bitcoin", types.FilterAll, d("55000"))
	require.NoError(t, err)

	// already closed positions are excluded from a second close
	_, err = l.ClosePositions("bitcoin", types.FilterAll, d("60000"))
	require.ErrorIs(t, err, types.ErrNoMatchingPositions)

	positions := l.Positions("bitcoin")
	require.Len(t, positions, 1)
	assert.Equal(t, types.StatusClosed, positions[0].Status)
	assert.True(t, positions[0].ExitPrice.Equal(d("55000")))
	assert.False(t, positions[0].ExitTime.IsZero())
}

func TestLedger_ZeroPnLCountsAsLoss(t *testing.T) {
	l := newTestLedger()
	_, err := l.OpenLong("bitcoin", d("0.01"), d("50000"))
	require.NoError(t, err)

	_, err = l.ClosePositions("bitcoin", types.FilterAll, d("50000"))
	require.NoError(t, err)

	summary := l.Summary()
	assert.Equal(t, 0, summary.WinningTrades)
	assert.Equal(t, 1, summary.LosingTrades)
}

func TestLedger_MarkToMarket(t *testing.T) {
	l := newTestLedger()
	_, err := l.OpenLong("bitcoin", d("0.01"), d("50000"))
	require.NoError(t, err)
	_, err = l.OpenShort("ethereum", d("1"), d("3000"))
	require.NoError(t, err)

	// cash = 10000 - 500 - 300 = 9200
	require.True(t, l.Cash().Equal(d("9200")))

	v := l.MarkToMarket(map[string]decimal.Decimal{
		"bitcoin":  d("55000"),
		"ethereum": d("2800"),
	})

	// long: 0.01*55000 = 550, short unrealized: (3000-2800)*1 = 200
	assert.True(t, v.PositionValues["bitcoin"].Equal(d("550")))
	assert.True(t, v.PositionValues["ethereum"].Equal(d("200")))
	assert.True(t, v.TotalValue.Equal(d("9950")), "total = %s", v.TotalValue)
	assert.True(t, v.Cash.Equal(d("9200")))

	// symbols without a price are skipped
	v = l.MarkToMarket(map[string]decimal.Decimal{"bitcoin": d("55000")})
	assert.True(t, v.TotalValue.Equal(d("9750")))
	_, ok := v.PositionValues["ethereum"]
	assert.False(t, ok)
}

func TestLedger_Exposure(t *testing.T) {
	l := newTestLedger()
	assert.True(t, l.Exposure().IsZero())

	_, err := l.OpenLong("bitcoin", d("0.01"), d("50000"))
	require.NoError(t, err)
	_, err = l.OpenShort("ethereum", d("1"), d("3000"))
	require.NoError(t, err)

	assert.True(t, l.Exposure().Equal(d("3500")), "exposure = %s", l.Exposure())

	_, err = l.ClosePositions("bitcoin", types.FilterAll, d("51000"))
	require.NoError(t, err)
	assert.True(t, l.Exposure().Equal(d("3000")))
}

func TestLedger_Restore(t *testing.T) {
	l := newTestLedger()
	l.Restore([]types.Position{
		{ID: "a", Symbol: "bitcoin", Side: types.SideLong, Quantity: d("0.5"), EntryPrice: d("40000"), Status: types.StatusOpen},
		{ID: "b", Symbol: "bitcoin", Side: types.SideLong, Quantity: d("0.1"), EntryPrice: d("42000"), Status: types.StatusClosed},
	})

	// restored positions do not touch cash, closed rows are dropped
	assert.True(t, l.Cash().Equal(d("10000")))
	require.Len(t, l.Positions("bitcoin"), 1)
	assert.Equal(t, "a", l.Positions("bitcoin")[0].ID)
}

func TestLedger_Reset(t *testing.T) {
	l := newTestLedger()
	_, err := l.OpenLong("bitcoin", d("0.01"), d("50000"))
	require.NoError(t, err)
	_, err = l.ClosePositions("bitcoin", types.FilterAll, d("55000"))
	require.NoError(t, err)
	_, err = l.OpenShort("ethereum", d("1"), d("3000"))
	require.NoError(t, err)

	l.Reset()

	assert.True(t, l.Cash().Equal(d("10000")))
	assert.Empty(t, l.Positions(""))

	summary := l.Summary()
	assert.Equal(t, 0, summary.TotalTrades)
	assert.True(t, summary.TotalPnL.IsZero())
	assert.True(t, summary.TotalPnLPercent.IsZero())
}
