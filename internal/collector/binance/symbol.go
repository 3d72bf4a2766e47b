package binance

import (
	"fmt"
	"regexp"
	"strings"
)

// validPair matches Binance trading pair symbols
var validPair = regexp.MustCompile(`^[A-Z0-9]{2,20}$`)

// PairSymbol converts a coin to the Binance pair quoted in quote.
// Input formats: "BTC", "btc", "BTC-USDT", "BTC/USDT", "btcusdt"
// Output (quote "USDT"): "BTCUSDT"
func PairSymbol(coin, quote string) string {
	if coin == "" {
		return ""
	}

	// Uppercase and remove common separators
	s := strings.ToUpper(strings.TrimSpace(coin))
	s = strings.ReplaceAll(s, "-", "")
	s = strings.ReplaceAll(s, "/", "")
	s = strings.ReplaceAll(s, "_", "")

	q := strings.ToUpper(quote)
	// Ensure there's a base currency left (symbol must be longer than quote)
	if strings.HasSuffix(s, q) && len(s) > len(q) {
		return s
	}
	return s + q
}

// DisplaySymbol renders a pair the way minute data files label it, e.g. "BTC/USDT"
func DisplaySymbol(pair, quote string) string {
	q := strings.ToUpper(quote)
	if strings.HasSuffix(pair, q) && len(pair) > len(q) {
		return strings.TrimSuffix(pair, q) + "/" + q
	}
	return pair
}

// ValidatePair checks if a pair symbol has valid format
func ValidatePair(pair string) error {
	if pair == "" {
		return fmt.Errorf("symbol cannot be empty")
	}
	if !validPair.MatchString(pair) {
		return fmt.Errorf("invalid symbol format: %s", pair)
	}
	return nil
}
