package series

import (
	"context"
	"errors"
	"testing"

	"github.com/newthinker/sigsim/internal/core"
	"github.com/newthinker/sigsim/internal/metrics"
	"github.com/newthinker/sigsim/internal/storage/archive"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeFetcher serves canned bodies per coin and counts calls
type fakeFetcher struct {
	bodies map[string]string
	calls  map[string]int
}

func newFakeFetcher(bodies map[string]string) *fakeFetcher {
	return &fakeFetcher{bodies: bodies, calls: map[string]int{}}
}

func (f *fakeFetcher) Name() string { return "fake" }

func (f *fakeFetcher) Fetch(ctx context.Context, coin string) ([]byte, error) {
	f.calls[coin]++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	body, ok := f.bodies[coin]
	if !ok {
		return nil, errors.New("unexpected status: 404")
	}
	return []byte(body), nil
}

func newLocalStorage(t *testing.T) *archive.LocalFS {
	t.Helper()
	fs, err := archive.NewLocalFS(t.TempDir())
	require.NoError(t, err)
	return fs
}

func TestProvider_FetchesAndCachesOnMiss(t *testing.T) {
	ctx := context.Background()
	storage := newLocalStorage(t)
	fetcher := newFakeFetcher(map[string]string{"BTC": cddFile})
	p := NewProvider(fetcher, storage, nil)

	bars, err := p.Series(ctx, "BTC")
	require.NoError(t, err)
	assert.Len(t, bars, 3)
	assert.Equal(t, 1, fetcher.calls["BTC"])

	cached, err := storage.Read(ctx, "Binance_BTCUSDT_2023_minute.csv")
	require.NoError(t, err)
	assert.Equal(t, string(StripHeader([]byte(cddFile))), string(cached), "cache holds the stripped file")
}

func TestProvider_CacheHitSkipsNetwork(t *testing.T) {
	ctx := context.Background()
	storage := newLocalStorage(t)
	require.NoError(t, storage.Write(ctx, "Binance_ETHUSDT_2023_minute.csv",
		[]byte("1672531260000,2023-01-01 00:01:00,ETH/USDT,1196.1,1197.0,1195.8,1196.5\n")))

	fetcher := newFakeFetcher(nil)
	p := NewProvider(fetcher, storage, nil)

	bars, err := p.Series(ctx, "ETH")
	require.NoError(t, err)
	require.Len(t, bars, 1)
	assert.Equal(t, "1196.1", bars[0].Open.String())
	assert.Zero(t, fetcher.calls["ETH"])
}

func TestProvider_ReusesCacheAcrossProviders(t *testing.T) {
	ctx := context.Background()
	storage := newLocalStorage(t)
	fetcher := newFakeFetcher(map[string]string{"BTC": cddFile})

	first, err := NewProvider(fetcher, storage, nil).Series(ctx, "BTC")
	require.NoError(t, err)
	second, err := NewProvider(fetcher, storage, nil).Series(ctx, "BTC")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, fetcher.calls["BTC"])
}

func TestProvider_FetchFailureIsTerminalForRun(t *testing.T) {
	ctx := context.Background()
	storage := newLocalStorage(t)
	fetcher := newFakeFetcher(nil)
	p := NewProvider(fetcher, storage, nil)

	_, err := p.Series(ctx, "NOPE")
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrDataUnavailable), "got %v", err)
	assert.True(t, IsUnavailable(err))

	_, err = p.Series(ctx, "NOPE")
	require.Error(t, err)
	assert.Equal(t, 1, fetcher.calls["NOPE"], "failed coin must not be fetched again")

	exists, _ := storage.Exists(ctx, p.CacheName("NOPE"))
	assert.False(t, exists)
}

func TestProvider_MalformedDownloadNotCached(t *testing.T) {
	ctx := context.Background()
	storage := newLocalStorage(t)
	fetcher := newFakeFetcher(map[string]string{"BAD": "1672531260000,2023-01-01 00:01:00,BAD/USDT,1,x,1,1\n"})
	p := NewProvider(fetcher, storage, nil)

	_, err := p.Series(ctx, "BAD")
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrMalformedSeries))
	assert.False(t, IsUnavailable(err))

	exists, _ := storage.Exists(ctx, p.CacheName("BAD"))
	assert.False(t, exists)
}

func TestProvider_EmptyDownload(t *testing.T) {
	storage := newLocalStorage(t)
	fetcher := newFakeFetcher(map[string]string{"NEW": "Unix,Date,Symbol,Open,High,Low,Close\n"})
	p := NewProvider(fetcher, storage, nil)

	_, err := p.Series(context.Background(), "NEW")
	assert.True(t, errors.Is(err, core.ErrNoData), "got %v", err)
}

func TestProvider_CanceledNotRemembered(t *testing.T) {
	storage := newLocalStorage(t)
	fetcher := newFakeFetcher(map[string]string{"BTC": cddFile})
	p := NewProvider(fetcher, storage, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Series(ctx, "BTC")
	require.Error(t, err)

	bars, err := p.Series(context.Background(), "BTC")
	require.NoError(t, err)
	assert.Len(t, bars, 3)
}

// cancelingFetcher cancels the run while the download completes
type cancelingFetcher struct {
	body   string
	cancel context.CancelFunc
}

func (f *cancelingFetcher) Name() string { return "canceling" }

func (f *cancelingFetcher) Fetch(ctx context.Context, coin string) ([]byte, error) {
	f.cancel()
	return []byte(f.body), nil
}

func TestProvider_CanceledAfterSuccessfulLoad(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := NewProvider(&cancelingFetcher{body: cddFile, cancel: cancel}, newLocalStorage(t), nil)

	bars, err := p.Series(ctx, "BTC")
	require.NoError(t, err)
	assert.Len(t, bars, 3, "a completed load is returned even when the context ends")
}

func TestProvider_CacheNameTemplate(t *testing.T) {
	p := NewProvider(newFakeFetcher(nil), newLocalStorage(t), nil, WithCacheName("minute/{coin}.csv"))
	assert.Equal(t, "minute/SOL.csv", p.CacheName("SOL"))

	def := NewProvider(newFakeFetcher(nil), newLocalStorage(t), nil, WithCacheName(""))
	assert.Equal(t, "Binance_SOLUSDT_2023_minute.csv", def.CacheName("SOL"))
}

func TestProvider_RecordsMetrics(t *testing.T) {
	ctx := context.Background()
	reg := metrics.NewRegistry()
	fetcher := newFakeFetcher(map[string]string{"BTC": cddFile})
	p := NewProvider(fetcher, newLocalStorage(t), nil, WithMetrics(reg))

	_, err := p.Series(ctx, "BTC")
	require.NoError(t, err)

	mfs, err := reg.Gather()
	require.NoError(t, err)

	names := map[string]bool{}
	for _, mf := range mfs {
		names[mf.GetName()] = true
	}
	assert.True(t, names["sigsim_cache_lookups_total"])
	assert.True(t, names["sigsim_series_fetches_total"])
}
