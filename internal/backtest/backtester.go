package backtest

import (
	"context"
	"sort"
	"time"

	"github.com/newthinker/sigsim/internal/core"
	"github.com/shopspring/decimal"
)

// SeriesProvider defines the interface for loading a coin's minute bars.
// Bars must be sorted ascending by timestamp.
type SeriesProvider interface {
	Series(ctx context.Context, coin string) ([]core.Bar, error)
}

// Backtester evaluates signals against the series supplied by a provider
type Backtester struct {
	provider SeriesProvider
}

// New creates a new Backtester with the given series provider
func New(provider SeriesProvider) *Backtester {
	return &Backtester{
		provider: provider,
	}
}

// Run resolves the signal's series and evaluates it.
// Provider errors are returned unchanged so callers can tell unavailable data apart.
func (b *Backtester) Run(ctx context.Context, sig core.Signal) (*Outcome, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	series, err := b.provider.Series(ctx, sig.Coin)
	if err != nil {
		return nil, err
	}

	out := Evaluate(sig, series)
	return &out, nil
}

// Evaluate scans the bars after the signal timestamp once, in order, and
// returns the trade outcome. series must be sorted ascending by timestamp.
//
// Within a bar the target is checked before the stop, so a bar that spans
// both levels is recorded as a target hit.
func Evaluate(sig core.Signal, series []core.Bar) Outcome {
	out := Outcome{
		SignalID:    sig.ID,
		Coin:        sig.Coin,
		Direction:   sig.Direction,
		State:       StateWaiting,
		MaxDrawdown: decimal.Zero,
	}

	start := sort.Search(len(series), func(i int) bool {
		return series[i].After(sig.Timestamp)
	})

	for _, bar := range series[start:] {
		switch out.State {
		case StateWaiting:
			if price, ok := entryPrice(sig, bar); ok {
				out.State = StateOpen
				out.OpenPrice = price
				out.OpenTime = bar.Label
				out.OpenedAt = barTime(bar)
			}
		case StateOpen:
			if price, reason, ok := exitPrice(sig, bar); ok {
				out.State = StateClosed
				out.ClosePrice = price
				out.CloseTime = bar.Label
				out.ClosedAt = barTime(bar)
				out.Reason = reason
			}
		}

		// the opening and closing bars both count toward drawdown
		if out.State != StateWaiting {
			out.MaxDrawdown = decimal.Min(out.MaxDrawdown, bar.IntrabarLow().Sub(out.OpenPrice))
		}
		if out.State == StateClosed {
			break
		}
	}

	return out
}

// entryPrice returns the fill price when the bar touches the entry window
func entryPrice(sig core.Signal, bar core.Bar) (decimal.Decimal, bool) {
	var touch decimal.Decimal
	switch sig.Direction {
	case core.DirectionLong:
		touch = bar.IntrabarLow()
	case core.DirectionShort:
		touch = bar.IntrabarHigh()
	default:
		return decimal.Zero, false
	}

	if touch.LessThan(sig.EntryMin) || touch.GreaterThan(sig.EntryMax) {
		return decimal.Zero, false
	}
	return touch, true
}

// exitPrice returns the exit price and reason when the bar reaches target or stop
func exitPrice(sig core.Signal, bar core.Bar) (decimal.Decimal, CloseReason, bool) {
	low, high := bar.IntrabarLow(), bar.IntrabarHigh()

	switch sig.Direction {
	case core.DirectionLong:
		if high.GreaterThanOrEqual(sig.Target) {
			return high, ReasonTarget, true
		}
		if low.LessThan(sig.StopLoss) {
			return low, ReasonStop, true
		}
	case core.DirectionShort:
		if low.LessThanOrEqual(sig.Target) {
			return low, ReasonTarget, true
		}
		if high.GreaterThan(sig.StopLoss) {
			return high, ReasonStop, true
		}
	}
	return decimal.Zero, ReasonNone, false
}

func barTime(bar core.Bar) time.Time {
	return time.UnixMilli(bar.Timestamp).UTC()
}
