package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/newthinker/sigsim/internal/backtest"
	"github.com/newthinker/sigsim/internal/core"
	"github.com/newthinker/sigsim/internal/metrics"
	"github.com/newthinker/sigsim/internal/report"
	"github.com/newthinker/sigsim/internal/series"
	"github.com/newthinker/sigsim/internal/signals"
	"go.uber.org/zap"
)

// Signal statuses recorded per processed row
const (
	StatusEvaluated = "evaluated"
	StatusSkipped   = "skipped"
	StatusFailed    = "failed"
)

// Simulator runs every signal of a file through the backtester, one at a time
type Simulator struct {
	backtester *backtest.Backtester
	logger     *zap.Logger
	metrics    *metrics.Registry
}

// New creates a Simulator that loads series from provider.
// reg may be nil when metrics are not collected.
func New(provider backtest.SeriesProvider, logger *zap.Logger, reg *metrics.Registry) *Simulator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Simulator{
		backtester: backtest.New(provider),
		logger:     logger,
		metrics:    reg,
	}
}

// Run reads the signal file at path and simulates each signal.
// An unreadable file is the only fatal input error; malformed rows and coins
// without data become failures. On cancellation the outcomes gathered so far
// are returned together with the context error.
func (s *Simulator) Run(ctx context.Context, path string) (*report.Result, error) {
	entries, err := signals.ReadFile(path)
	if err != nil {
		return nil, err
	}

	s.logger.Info("simulation starting",
		zap.String("signals", path),
		zap.Int("count", len(entries)),
	)

	return s.RunEntries(ctx, entries)
}

// RunEntries simulates already-read signal entries in order
func (s *Simulator) RunEntries(ctx context.Context, entries []signals.Entry) (*report.Result, error) {
	start := time.Now()
	res := &report.Result{}

	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		if e.Err != nil {
			s.logger.Warn("malformed signal",
				zap.Int("line", e.Line),
				zap.String("signal_id", e.Signal.ID),
				zap.Error(e.Err),
			)
			s.fail(res, e, StatusFailed, e.Err)
			continue
		}

		out, err := s.backtester.Run(ctx, e.Signal)
		if cerr := ctx.Err(); cerr != nil {
			return res, cerr
		}
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return res, err
			}
			s.skip(res, e, err)
			continue
		}

		s.logOutcome(out)
		s.record(StatusEvaluated)
		if s.metrics != nil {
			s.metrics.RecordOutcome(out.State.String(), string(out.Reason))
		}
		res.Outcomes = append(res.Outcomes, *out)
	}

	if s.metrics != nil {
		s.metrics.RecordSimulation(time.Since(start).Seconds())
	}
	s.logger.Info("simulation completed",
		zap.Int("outcomes", len(res.Outcomes)),
		zap.Int("failures", len(res.Failures)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return res, nil
}

// WriteReport renders res to path in format; an empty format is derived from the path
func (s *Simulator) WriteReport(res *report.Result, path, format string) error {
	if format == "" {
		format = report.FormatFromPath(path)
	}
	renderer, err := report.New(format)
	if err != nil {
		return err
	}
	if err := report.WriteFile(path, *res, renderer); err != nil {
		return err
	}

	s.logger.Info("report written", zap.String("path", path), zap.String("format", format))
	return nil
}

func (s *Simulator) skip(res *report.Result, e signals.Entry, err error) {
	status := StatusFailed
	if series.IsUnavailable(err) {
		status = StatusSkipped
	}
	s.logger.Warn("skipping signal",
		zap.String("signal_id", e.Signal.ID),
		zap.String("coin", e.Signal.Coin),
		zap.Error(err),
	)
	s.fail(res, e, status, err)
}

func (s *Simulator) fail(res *report.Result, e signals.Entry, status string, err error) {
	s.record(status)
	res.Failures = append(res.Failures, report.Failure{
		SignalID: e.Signal.ID,
		Coin:     e.Signal.Coin,
		Line:     e.Line,
		Reason:   failureReason(err),
	})
}

func (s *Simulator) record(status string) {
	if s.metrics != nil {
		s.metrics.RecordSignal(status)
	}
}

func (s *Simulator) logOutcome(out *backtest.Outcome) {
	fields := []zap.Field{
		zap.String("signal_id", out.SignalID),
		zap.String("coin", out.Coin),
		zap.String("state", out.State.String()),
	}

	switch out.State {
	case backtest.StateWaiting:
		s.logger.Info("signal never opened", fields...)
	case backtest.StateOpen:
		s.logger.Info("trade opened, not closed",
			append(fields, zap.String("open_price", out.OpenPrice.String()), zap.String("open_time", out.OpenTime))...)
	case backtest.StateClosed:
		s.logger.Info("trade closed",
			append(fields,
				zap.String("reason", string(out.Reason)),
				zap.String("open_price", out.OpenPrice.String()),
				zap.String("close_price", out.ClosePrice.String()),
				zap.String("max_drawdown", out.MaxDrawdown.String()),
			)...)
	}
}

// failureReason prefers the coded message over the full error chain
func failureReason(err error) string {
	var cerr *core.Error
	if errors.As(err, &cerr) && cerr.Cause != nil {
		return fmt.Sprintf("%s: %v", cerr.Message, cerr.Cause)
	}
	return err.Error()
}
