package backtest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/newthinker/sigsim/internal/core"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// t0 is the signal timestamp used across the scenarios (2023-01-01 00:00:00 UTC)
const t0 int64 = 1672531200

// mockProvider implements SeriesProvider for testing
type mockProvider struct {
	series []core.Bar
	err    error
	calls  []string
}

func (m *mockProvider) Series(ctx context.Context, coin string) ([]core.Bar, error) {
	m.calls = append(m.calls, coin)
	if m.err != nil {
		return nil, m.err
	}
	return m.series, nil
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// bar builds a minute bar n minutes after t0
func bar(n int, open, high, low, close string) core.Bar {
	ts := (t0 + int64(n)*60) * 1000
	return core.Bar{
		Timestamp: ts,
		Label:     time.UnixMilli(ts).UTC().Format("2006-01-02 15:04:05"),
		Open:      d(open),
		High:      d(high),
		Low:       d(low),
		Close:     d(close),
	}
}

func longSignal() core.Signal {
	return core.Signal{
		ID:        "1",
		Coin:      "BTC",
		Direction: core.DirectionLong,
		EntryMin:  d("100"),
		EntryMax:  d("102"),
		Target:    d("110"),
		StopLoss:  d("95"),
		Timestamp: t0,
	}
}

func shortSignal() core.Signal {
	return core.Signal{
		ID:        "2",
		Coin:      "ETH",
		Direction: core.DirectionShort,
		EntryMin:  d("100"),
		EntryMax:  d("102"),
		Target:    d("90"),
		StopLoss:  d("105"),
		Timestamp: t0,
	}
}

func TestEvaluate_LongTargetHit(t *testing.T) {
	series := []core.Bar{
		bar(1, "103", "104", "101", "103"),
		bar(2, "103", "111", "101", "110"),
	}

	out := Evaluate(longSignal(), series)

	require.Equal(t, StateClosed, out.State)
	assert.True(t, out.OpenPrice.Equal(d("101")), "open price %s", out.OpenPrice)
	assert.True(t, out.ClosePrice.Equal(d("111")), "close price %s", out.ClosePrice)
	assert.Equal(t, ReasonTarget, out.Reason)
	assert.True(t, out.MaxDrawdown.IsZero(), "max drawdown %s", out.MaxDrawdown)
	assert.Equal(t, series[0].Label, out.OpenTime)
	assert.Equal(t, series[1].Label, out.CloseTime)

	dur, ok := out.Duration()
	require.True(t, ok)
	assert.Equal(t, time.Minute, dur)
}

func TestEvaluate_LongStopHit(t *testing.T) {
	series := []core.Bar{
		bar(1, "103", "104", "101", "103"),
		bar(2, "100", "101", "90", "92"),
		bar(3, "92", "120", "92", "115"),
	}

	out := Evaluate(longSignal(), series)

	require.Equal(t, StateClosed, out.State)
	assert.True(t, out.ClosePrice.Equal(d("90")))
	assert.Equal(t, ReasonStop, out.Reason)
	assert.Equal(t, series[1].Label, out.CloseTime)
	// the closing bar's low counts toward drawdown
	assert.True(t, out.MaxDrawdown.Equal(d("-11")), "max drawdown %s", out.MaxDrawdown)
}

func TestEvaluate_LongNeverOpens(t *testing.T) {
	series := []core.Bar{
		bar(1, "105", "106", "104", "105"),
		bar(2, "99", "99.5", "98", "99"),
	}

	out := Evaluate(longSignal(), series)

	assert.Equal(t, StateWaiting, out.State)
	assert.False(t, out.IsOpened())
	assert.True(t, out.OpenPrice.IsZero())
	assert.Empty(t, out.OpenTime)
	assert.True(t, out.MaxDrawdown.IsZero())
	_, ok := out.Duration()
	assert.False(t, ok)
}

func TestEvaluate_LongNeverCloses(t *testing.T) {
	series := []core.Bar{
		bar(1, "102", "103", "101", "102"),
		bar(2, "102", "105", "97", "100"),
		bar(3, "100", "108", "99", "107"),
	}

	out := Evaluate(longSignal(), series)

	assert.Equal(t, StateOpen, out.State)
	assert.True(t, out.OpenPrice.Equal(d("101")))
	assert.True(t, out.ClosePrice.IsZero())
	assert.Equal(t, ReasonNone, out.Reason)
	assert.True(t, out.MaxDrawdown.Equal(d("-4")), "max drawdown %s", out.MaxDrawdown)
	_, ok := out.Duration()
	assert.False(t, ok)
}

func TestEvaluate_ShortTargetHit(t *testing.T) {
	series := []core.Bar{
		bar(1, "100", "101.5", "99", "100"),
		bar(2, "95", "96", "89", "90"),
	}

	out := Evaluate(shortSignal(), series)

	require.Equal(t, StateClosed, out.State)
	assert.True(t, out.OpenPrice.Equal(d("101.5")))
	assert.True(t, out.ClosePrice.Equal(d("89")))
	assert.Equal(t, ReasonTarget, out.Reason)
	// drawdown is measured from the intrabar low for both directions
	assert.True(t, out.MaxDrawdown.Equal(d("-12.5")), "max drawdown %s", out.MaxDrawdown)
}

func TestEvaluate_ShortStopHit(t *testing.T) {
	series := []core.Bar{
		bar(1, "100", "102", "100", "101"),
		bar(2, "101", "106", "101", "105"),
	}

	out := Evaluate(shortSignal(), series)

	require.Equal(t, StateClosed, out.State)
	assert.True(t, out.OpenPrice.Equal(d("102")))
	assert.True(t, out.ClosePrice.Equal(d("106")))
	assert.Equal(t, ReasonStop, out.Reason)
}

func TestEvaluate_StopExactlyAtLevelDoesNotClose(t *testing.T) {
	long := longSignal()
	series := []core.Bar{
		bar(1, "101", "101", "101", "101"),
		bar(2, "96", "97", "95", "96"),
	}
	out := Evaluate(long, series)
	assert.Equal(t, StateOpen, out.State, "long stop needs low strictly below stop loss")

	short := shortSignal()
	series = []core.Bar{
		bar(1, "101", "101", "101", "101"),
		bar(2, "104", "105", "103", "104"),
	}
	out = Evaluate(short, series)
	assert.Equal(t, StateOpen, out.State, "short stop needs high strictly above stop loss")
}

func TestEvaluate_TargetWinsOverStopInSameBar(t *testing.T) {
	series := []core.Bar{
		bar(1, "101", "101", "101", "101"),
		bar(2, "100", "112", "90", "100"),
	}

	out := Evaluate(longSignal(), series)

	require.Equal(t, StateClosed, out.State)
	assert.Equal(t, ReasonTarget, out.Reason)
	assert.True(t, out.ClosePrice.Equal(d("112")))

	short := shortSignal()
	series = []core.Bar{
		bar(1, "101", "101", "101", "101"),
		bar(2, "100", "110", "85", "100"),
	}
	out = Evaluate(short, series)
	require.Equal(t, StateClosed, out.State)
	assert.Equal(t, ReasonTarget, out.Reason)
	assert.True(t, out.ClosePrice.Equal(d("85")))
}

func TestEvaluate_OpeningBarDoesNotClose(t *testing.T) {
	// the opening bar's high reaches target, but exits are only checked on later bars
	series := []core.Bar{
		bar(1, "101", "115", "101", "112"),
	}

	out := Evaluate(longSignal(), series)

	assert.Equal(t, StateOpen, out.State)
}

func TestEvaluate_IgnoresBarsAtOrBeforeSignal(t *testing.T) {
	series := []core.Bar{
		bar(-2, "101", "101", "101", "101"),
		bar(0, "101", "101", "101", "101"),
		bar(1, "105", "106", "104", "105"),
	}

	out := Evaluate(longSignal(), series)

	assert.Equal(t, StateWaiting, out.State)
}

func TestEvaluate_EntryWindowInclusive(t *testing.T) {
	tests := []struct {
		name string
		low  string
		want State
	}{
		{"at entry min", "100", StateOpen},
		{"at entry max", "102", StateOpen},
		{"below window", "99.99", StateWaiting},
		{"above window", "102.01", StateWaiting},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			series := []core.Bar{bar(1, "103", "103", tt.low, "103")}
			out := Evaluate(longSignal(), series)
			assert.Equal(t, tt.want, out.State)
			if tt.want == StateOpen {
				assert.True(t, out.OpenPrice.Equal(d(tt.low)))
			}
		})
	}
}

func TestEvaluate_OpensOnFirstTouch(t *testing.T) {
	series := []core.Bar{
		bar(1, "104", "105", "103", "104"),
		bar(2, "103", "103", "102", "103"),
		bar(3, "101", "101", "100", "101"),
	}

	out := Evaluate(longSignal(), series)

	assert.True(t, out.OpenPrice.Equal(d("102")))
	assert.Equal(t, series[1].Label, out.OpenTime)
}

func TestEvaluate_DrawdownNeverPositiveAndMonotonic(t *testing.T) {
	sig := longSignal()
	sig.Target = d("1000")
	sig.StopLoss = d("1")

	series := []core.Bar{
		bar(1, "101", "101", "101", "101"),
		bar(2, "99", "100", "98", "99"),
		bar(3, "104", "106", "103", "105"),
		bar(4, "97", "99", "96", "97"),
		bar(5, "100", "100", "99", "100"),
	}

	prev := decimal.Zero
	for i := 1; i <= len(series); i++ {
		out := Evaluate(sig, series[:i])
		require.True(t, out.MaxDrawdown.LessThanOrEqual(decimal.Zero), "drawdown positive after %d bars", i)
		require.True(t, out.MaxDrawdown.LessThanOrEqual(prev), "drawdown increased after %d bars", i)
		prev = out.MaxDrawdown
	}
	assert.True(t, prev.Equal(d("-5")))
}

func TestEvaluate_Deterministic(t *testing.T) {
	series := []core.Bar{
		bar(1, "103", "104", "101", "103"),
		bar(2, "100", "101", "97", "100"),
		bar(3, "103", "111", "101", "110"),
	}

	first := Evaluate(longSignal(), series)
	second := Evaluate(longSignal(), series)

	assert.Equal(t, first, second)
}

func TestEvaluate_EmptySeries(t *testing.T) {
	out := Evaluate(longSignal(), nil)

	assert.Equal(t, StateWaiting, out.State)
	assert.Equal(t, "1", out.SignalID)
	assert.Equal(t, "BTC", out.Coin)
	assert.Equal(t, core.DirectionLong, out.Direction)
}

func TestBacktester_Run(t *testing.T) {
	provider := &mockProvider{series: []core.Bar{
		bar(1, "103", "104", "101", "103"),
		bar(2, "103", "111", "101", "110"),
	}}
	bt := New(provider)

	out, err := bt.Run(context.Background(), longSignal())
	require.NoError(t, err)

	assert.Equal(t, []string{"BTC"}, provider.calls)
	assert.Equal(t, StateClosed, out.State)
}

func TestBacktester_Run_ProviderError(t *testing.T) {
	provider := &mockProvider{err: core.WrapError(core.ErrDataUnavailable, errors.New("status 404"))}
	bt := New(provider)

	_, err := bt.Run(context.Background(), longSignal())
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrDataUnavailable)
}

func TestBacktester_Run_ContextCancellation(t *testing.T) {
	provider := &mockProvider{}
	bt := New(provider)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := bt.Run(ctx, longSignal())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, provider.calls)
}
