package series

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/newthinker/sigsim/internal/collector"
	"github.com/newthinker/sigsim/internal/core"
	"github.com/newthinker/sigsim/internal/metrics"
	"github.com/newthinker/sigsim/internal/storage/archive"
	"go.uber.org/zap"
)

// DefaultCacheName is the file name used for a coin's cached series
const DefaultCacheName = "Binance_{coin}USDT_2023_minute.csv"

// Provider resolves a coin's minute bars from the cache, fetching on a miss.
// Each coin is resolved at most once per Provider; failures are remembered too.
// A Provider is not safe for concurrent use.
type Provider struct {
	fetcher   collector.Fetcher
	storage   archive.Storage
	cacheName string
	logger    *zap.Logger
	metrics   *metrics.Registry

	resolved map[string]result
}

type result struct {
	bars []core.Bar
	err  error
}

// Option configures a Provider
type Option func(*Provider)

// WithCacheName sets the cache file name template; {coin} is replaced with the coin symbol.
func WithCacheName(tmpl string) Option {
	return func(p *Provider) {
		if tmpl != "" {
			p.cacheName = tmpl
		}
	}
}

// WithMetrics records cache lookups and fetches in reg
func WithMetrics(reg *metrics.Registry) Option {
	return func(p *Provider) {
		p.metrics = reg
	}
}

// NewProvider creates a Provider backed by fetcher and storage
func NewProvider(fetcher collector.Fetcher, storage archive.Storage, logger *zap.Logger, opts ...Option) *Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Provider{
		fetcher:   fetcher,
		storage:   storage,
		cacheName: DefaultCacheName,
		logger:    logger,
		resolved:  make(map[string]result),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// CacheName returns the storage path of coin's series
func (p *Provider) CacheName(coin string) string {
	return strings.ReplaceAll(p.cacheName, "{coin}", coin)
}

// Series returns coin's bars sorted ascending by timestamp.
// Errors carry core.ErrDataUnavailable when the source could not deliver,
// core.ErrMalformedSeries when a row is unreadable and core.ErrNoData for an empty series.
func (p *Provider) Series(ctx context.Context, coin string) ([]core.Bar, error) {
	if r, ok := p.resolved[coin]; ok {
		return r.bars, r.err
	}

	bars, err := p.load(ctx, coin)
	if err != nil && ctx.Err() != nil {
		// a load cut short by cancellation says nothing about the coin, so it is not remembered
		return nil, err
	}
	p.resolved[coin] = result{bars: bars, err: err}
	return bars, err
}

func (p *Provider) load(ctx context.Context, coin string) ([]core.Bar, error) {
	name := p.CacheName(coin)

	exists, err := p.storage.Exists(ctx, name)
	if err != nil {
		return nil, core.WrapError(core.ErrDataUnavailable, fmt.Errorf("checking cache %s: %w", name, err))
	}
	p.recordCacheLookup(exists)

	if exists {
		data, err := p.storage.Read(ctx, name)
		if err != nil {
			return nil, core.WrapError(core.ErrDataUnavailable, fmt.Errorf("reading cache %s: %w", name, err))
		}
		p.logger.Debug("series loaded from cache", zap.String("coin", coin), zap.String("path", name))
		return parseSeries(data)
	}

	p.logger.Info("historical data not cached, fetching",
		zap.String("coin", coin),
		zap.String("source", p.fetcher.Name()),
	)

	raw, err := p.fetcher.Fetch(ctx, coin)
	p.recordFetch(err == nil)
	if err != nil {
		return nil, core.WrapError(core.ErrDataUnavailable, fmt.Errorf("fetching %s from %s: %w", coin, p.fetcher.Name(), err))
	}

	data := StripHeader(raw)
	bars, err := parseSeries(data)
	if err != nil {
		// a bad download is not cached so the next run fetches again
		return nil, err
	}

	if err := p.storage.Write(ctx, name, data); err != nil {
		p.logger.Warn("caching series failed", zap.String("coin", coin), zap.Error(err))
	} else {
		p.logger.Info("fetched historical data", zap.String("coin", coin), zap.Int("bars", len(bars)))
	}
	return bars, nil
}

func parseSeries(data []byte) ([]core.Bar, error) {
	bars, err := Parse(data)
	if err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return nil, core.ErrNoData
	}
	return bars, nil
}

func (p *Provider) recordCacheLookup(hit bool) {
	if p.metrics != nil {
		p.metrics.RecordCacheLookup(hit)
	}
}

func (p *Provider) recordFetch(ok bool) {
	if p.metrics != nil {
		p.metrics.RecordFetch(p.fetcher.Name(), ok)
	}
}

// IsUnavailable reports whether err means the coin's data could not be obtained
func IsUnavailable(err error) bool {
	return errors.Is(err, core.ErrDataUnavailable) || errors.Is(err, core.ErrNoData)
}
