package okx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/newthinker/sigsim/internal/collector"
)

const (
	baseURL = "https://www.okx.com"

	// candleLimit is the maximum page size of the history-candles endpoint
	candleLimit = 100
)

// OKX downloads minute candles from the OKX history endpoint
type OKX struct {
	client  *http.Client
	baseURL string
	quote   string
	start   time.Time
	end     time.Time
}

// New creates a new OKX fetcher for candles in [start, end)
func New(client *http.Client, quote string, start, end time.Time) *OKX {
	if client == nil {
		client = &http.Client{
			Timeout: 10 * time.Second,
		}
	}
	return &OKX{
		client:  client,
		baseURL: baseURL,
		quote:   strings.ToUpper(quote),
		start:   start,
		end:     end,
	}
}

// WithBaseURL overrides the API endpoint (for testing)
func (o *OKX) WithBaseURL(url string) *OKX {
	o.baseURL = url
	return o
}

func (o *OKX) Name() string {
	return "okx"
}

// InstID converts a coin to an OKX instrument ID
// BTC -> BTC-USDT, btc/usdt -> BTC-USDT
func InstID(coin, quote string) string {
	s := strings.ToUpper(strings.TrimSpace(coin))
	s = strings.NewReplacer("-", "", "/", "", "_", "").Replace(s)
	q := strings.ToUpper(quote)
	if strings.HasSuffix(s, q) && len(s) > len(q) {
		s = strings.TrimSuffix(s, q)
	}
	return s + "-" + q
}

// Fetch pages backwards from the end of the configured range, 100 candles a request.
func (o *OKX) Fetch(ctx context.Context, coin string) ([]byte, error) {
	instID := InstID(coin, o.quote)
	symbol := strings.Replace(instID, "-", "/", 1)

	var newestFirst []collector.MinuteRow
	after := o.end.UnixMilli()
	for {
		page, err := o.fetchCandles(ctx, instID, after)
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			break
		}

		for _, c := range page {
			if c.ts < o.start.UnixMilli() {
				continue
			}
			newestFirst = append(newestFirst, c.minuteRow(symbol))
		}

		oldest := page[len(page)-1].ts
		if oldest <= o.start.UnixMilli() || len(page) < candleLimit || oldest >= after {
			break
		}
		after = oldest
	}

	if len(newestFirst) == 0 {
		return nil, fmt.Errorf("no candles for %s between %s and %s", instID,
			o.start.Format(time.DateOnly), o.end.Format(time.DateOnly))
	}

	rows := make([]collector.MinuteRow, len(newestFirst))
	for i, r := range newestFirst {
		rows[len(rows)-1-i] = r
	}
	return collector.EncodeMinuteFile(rows)
}

// fetchCandles returns up to candleLimit candles older than after, newest first
func (o *OKX) fetchCandles(ctx context.Context, instID string, after int64) ([]candle, error) {
	url := fmt.Sprintf("%s/api/v5/market/history-candles?instId=%s&bar=1m&after=%d&limit=%d",
		o.baseURL, instID, after, candleLimit)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching candles: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var result okxCandleResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	if result.Code != "0" {
		return nil, fmt.Errorf("okx error: %s", result.Msg)
	}

	candles := make([]candle, 0, len(result.Data))
	for _, c := range result.Data {
		if len(c) < 6 {
			continue
		}
		ts, err := strconv.ParseInt(c[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parsing candle time %q: %w", c[0], err)
		}
		candles = append(candles, candle{
			ts:     ts,
			open:   c[1],
			high:   c[2],
			low:    c[3],
			close:  c[4],
			volume: c[5],
		})
	}

	return candles, nil
}

type candle struct {
	ts     int64
	open   string
	high   string
	low    string
	close  string
	volume string
}

func (c candle) minuteRow(symbol string) collector.MinuteRow {
	return collector.MinuteRow{
		OpenTime: c.ts,
		Symbol:   symbol,
		Open:     c.open,
		High:     c.high,
		Low:      c.low,
		Close:    c.close,
		Volume:   c.volume,
	}
}

// OKX API response types
type okxCandleResponse struct {
	Code string     `json:"code"`
	Msg  string     `json:"msg"`
	Data [][]string `json:"data"`
}
