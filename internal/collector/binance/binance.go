package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/newthinker/sigsim/internal/collector"
)

const (
	baseURL = "https://api.binance.com"

	// klineLimit is the maximum number of klines Binance returns per request
	klineLimit = 1000
)

// Binance downloads minute klines and renders them as a minute data file
type Binance struct {
	client  *http.Client
	baseURL string
	quote   string
	start   time.Time
	end     time.Time
}

// New creates a new Binance fetcher for klines in [start, end)
func New(client *http.Client, quote string, start, end time.Time) *Binance {
	if client == nil {
		client = &http.Client{
			Timeout: 10 * time.Second,
		}
	}
	return &Binance{
		client:  client,
		baseURL: baseURL,
		quote:   quote,
		start:   start,
		end:     end,
	}
}

// WithBaseURL overrides the API endpoint (for testing and regional mirrors)
func (b *Binance) WithBaseURL(url string) *Binance {
	b.baseURL = url
	return b
}

func (b *Binance) Name() string {
	return "binance"
}

// Fetch pages through the 1m klines of coin over the configured range.
// Rows are written newest first, matching the cryptodatadownload files.
func (b *Binance) Fetch(ctx context.Context, coin string) ([]byte, error) {
	pair := PairSymbol(coin, b.quote)
	if err := ValidatePair(pair); err != nil {
		return nil, err
	}

	var rows []collector.MinuteRow
	from := b.start
	for from.Before(b.end) {
		page, err := b.fetchKlines(ctx, pair, from)
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			break
		}

		display := DisplaySymbol(pair, b.quote)
		for _, k := range page {
			rows = append(rows, k.minuteRow(display))
		}

		from = time.UnixMilli(page[len(page)-1].OpenTime).Add(time.Minute)
		if len(page) < klineLimit {
			break
		}
	}

	if len(rows) == 0 {
		return nil, fmt.Errorf("no klines for %s between %s and %s", pair,
			b.start.Format(time.DateOnly), b.end.Format(time.DateOnly))
	}

	return collector.EncodeMinuteFile(rows)
}

// fetchKlines fetches up to klineLimit minute klines starting at from
func (b *Binance) fetchKlines(ctx context.Context, pair string, from time.Time) ([]kline, error) {
	url := fmt.Sprintf("%s/api/v3/klines?symbol=%s&interval=1m&startTime=%d&endTime=%d&limit=%d",
		b.baseURL, pair, from.UnixMilli(), b.end.UnixMilli()-1, klineLimit)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching klines: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var raw [][]any
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	klines := make([]kline, 0, len(raw))
	for _, k := range raw {
		if len(k) < 6 {
			continue
		}

		openTime, _ := k[0].(float64)
		openStr, _ := k[1].(string)
		highStr, _ := k[2].(string)
		lowStr, _ := k[3].(string)
		closeStr, _ := k[4].(string)
		volumeStr, _ := k[5].(string)

		klines = append(klines, kline{
			OpenTime: int64(openTime),
			Open:     openStr,
			High:     highStr,
			Low:      lowStr,
			Close:    closeStr,
			Volume:   volumeStr,
		})
	}

	return klines, nil
}

// kline is one Binance candlestick; prices stay strings to keep their exact decimal form
type kline struct {
	OpenTime int64
	Open     string
	High     string
	Low      string
	Close    string
	Volume   string
}

func (k kline) minuteRow(symbol string) collector.MinuteRow {
	return collector.MinuteRow{
		OpenTime: k.OpenTime,
		Symbol:   symbol,
		Open:     k.Open,
		High:     k.High,
		Low:      k.Low,
		Close:    k.Close,
		Volume:   k.Volume,
	}
}
