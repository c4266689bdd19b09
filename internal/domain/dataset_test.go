package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day0 = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func dayAt(d float64) time.Time {
	return day0.Add(time.Duration(d * float64(24*time.Hour)))
}

func TestWindow_HalfOpen(t *testing.T) {
	w := Window{Start: dayAt(0), End: dayAt(2)}
	assert.True(t, w.Contains(dayAt(0)))
	assert.True(t, w.Contains(dayAt(1.99)))
	assert.False(t, w.Contains(dayAt(2)))
	assert.Equal(t, 2, w.DayUnits())

	assert.Equal(t, 2, Window{Start: dayAt(0), End: dayAt(1.5)}.DayUnits())
	assert.True(t, Window{Start: dayAt(1), End: dayAt(1)}.IsEmpty())
	assert.Equal(t, 0, Window{Start: dayAt(1), End: dayAt(0)}.DayUnits())
}

func TestNewHistoricalDataset_IndexesAndSorts(t *testing.T) {
	ds := NewHistoricalDataset(DatasetParts{
		Window:  Window{Start: dayAt(0), End: dayAt(4)},
		Sources: []DataSourceKind{SourceWallets, SourceTrades},
		Trades: []Trade{
			{ID: "c", Timestamp: dayAt(3)},
			{ID: "a", Timestamp: dayAt(0.5)},
			{ID: "b", Timestamp: dayAt(1)},
		},
		Wallets: []Wallet{{Address: "0xABC", Flagged: true}},
		Alerts:  []Alert{{ID: "al", WalletAddress: "0xAbC"}},
	})

	trades := ds.Trades()
	require.Len(t, trades, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{trades[0].ID, trades[1].ID, trades[2].ID})
	assert.Equal(t, []DataSourceKind{SourceTrades, SourceWallets}, ds.Sources())

	in := ds.TradesIn(Window{Start: dayAt(1), End: dayAt(3)})
	require.Len(t, in, 1)
	assert.Equal(t, "b", in[0].ID)
	assert.Empty(t, ds.TradesIn(Window{Start: dayAt(5), End: dayAt(6)}))

	w, ok := ds.Wallet("0xabc")
	require.True(t, ok)
	assert.True(t, w.Flagged)
	assert.Len(t, ds.AlertsForWallet("0xabc"), 1)

	_, ok = ds.Market("0xmissing")
	assert.False(t, ok)
}

func TestHistoricalDataset_AccessorsReturnCopies(t *testing.T) {
	ds := NewHistoricalDataset(DatasetParts{
		Window:  Window{Start: dayAt(0), End: dayAt(1)},
		Sources: []DataSourceKind{SourceTrades},
		Trades:  []Trade{{ID: "a", Price: 0.5, Timestamp: dayAt(0.1)}},
	})

	trades := ds.Trades()
	trades[0].Price = 0.99
	assert.Equal(t, 0.5, ds.Trades()[0].Price)

	in := ds.TradesIn(ds.Window())
	in[0].ID = "mutated"
	assert.Equal(t, "a", ds.Trades()[0].ID)
}

func TestQualityScore(t *testing.T) {
	w := Window{Start: dayAt(0), End: dayAt(4)}
	trades := []Trade{{Timestamp: dayAt(0.2)}, {Timestamp: dayAt(0.7)}, {Timestamp: dayAt(2.5)}}

	// 4/5 fuentes (70·0.8) + 2 de 4 días con trades (30·0.5)
	q := QualityScore(AllSourceKinds(), []DataSourceKind{SourceAlerts}, trades, w)
	assert.InDelta(t, 71.0, q, 1e-9)

	// Sin trades pedidos la cobertura cuenta completa.
	q = QualityScore([]DataSourceKind{SourceMarkets}, nil, nil, w)
	assert.InDelta(t, 100.0, q, 1e-9)

	assert.Equal(t, 0.0, QualityScore(nil, nil, trades, w))
}

func TestHistoricalDataset_DegradedAndAllFailed(t *testing.T) {
	partial := NewHistoricalDataset(DatasetParts{
		Window:  Window{Start: dayAt(0), End: dayAt(1)},
		Sources: []DataSourceKind{SourceTrades, SourceWallets},
		Failed:  []DataSourceKind{SourceWallets},
	})
	assert.True(t, partial.Degraded())
	assert.False(t, partial.AllFailed())

	dead := NewHistoricalDataset(DatasetParts{
		Window:  Window{Start: dayAt(0), End: dayAt(1)},
		Sources: []DataSourceKind{SourceTrades},
		Failed:  []DataSourceKind{SourceTrades},
	})
	assert.True(t, dead.AllFailed())

	rows := partial.RowCounts()
	assert.Len(t, rows, 2)
	assert.Equal(t, 0, rows[SourceTrades])
}

func TestSourcesKey_Stable(t *testing.T) {
	a := SourcesKey([]DataSourceKind{SourceWallets, SourceTrades, SourceTrades})
	b := SourcesKey([]DataSourceKind{SourceTrades, SourceWallets})
	assert.Equal(t, a, b)
	assert.Equal(t, "TRADES,WALLETS", a)
}
