// Package cdd downloads yearly minute files published by cryptodatadownload.com.
package cdd

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultURLTemplate is the 2023 Binance USDT minute file
const DefaultURLTemplate = "https://www.cryptodatadownload.com/cdd/Binance_{coin}USDT_2023_minute.csv"

// CDD fetches one csv file per coin from a URL template
type CDD struct {
	client      *http.Client
	urlTemplate string
}

// New creates a new CDD fetcher. urlTemplate must contain {coin}.
func New(client *http.Client, urlTemplate string) *CDD {
	if client == nil {
		client = &http.Client{
			Timeout: 2 * time.Minute,
		}
	}
	if urlTemplate == "" {
		urlTemplate = DefaultURLTemplate
	}
	return &CDD{
		client:      client,
		urlTemplate: urlTemplate,
	}
}

func (c *CDD) Name() string {
	return "cdd"
}

// URL returns the download URL of coin with the symbol percent-encoded
func (c *CDD) URL(coin string) string {
	return strings.ReplaceAll(c.urlTemplate, "{coin}", url.PathEscape(coin))
}

// Fetch downloads the raw file for coin
func (c *CDD) Fetch(ctx context.Context, coin string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL(coin), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "text/csv")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", coin, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	return body, nil
}
