package core

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Direction represents the side of a signal
type Direction string

const (
	DirectionLong  Direction = "Long"
	DirectionShort Direction = "Short"
)

// ParseDirection converts a signal file value to a Direction (case-insensitive)
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "long":
		return DirectionLong, nil
	case "short":
		return DirectionShort, nil
	default:
		return "", fmt.Errorf("unknown direction %q", s)
	}
}

// Signal represents a proposed trade anchored to a timestamp
type Signal struct {
	ID        string
	Coin      string
	Direction Direction
	EntryMin  decimal.Decimal
	EntryMax  decimal.Decimal
	Target    decimal.Decimal
	StopLoss  decimal.Decimal
	Timestamp int64 // epoch seconds
}

// Validate checks the signal invariants
func (s Signal) Validate() error {
	if s.Coin == "" {
		return fmt.Errorf("coin is empty")
	}
	if s.Direction != DirectionLong && s.Direction != DirectionShort {
		return fmt.Errorf("unknown direction %q", s.Direction)
	}
	if s.EntryMin.GreaterThan(s.EntryMax) {
		return fmt.Errorf("entry min %s greater than entry max %s", s.EntryMin, s.EntryMax)
	}
	return nil
}

// Bar represents one minute OHLC record
type Bar struct {
	Timestamp int64  // epoch millis
	Label     string // open time as written by the data source
	Open      decimal.Decimal
	High      decimal.Decimal
	Low       decimal.Decimal
	Close     decimal.Decimal
}

// IntrabarLow returns the intrabar minimum of the four price fields.
func (b Bar) IntrabarLow() decimal.Decimal {
	return decimal.Min(b.Open, b.High, b.Low, b.Close)
}

// IntrabarHigh returns the intrabar maximum of the four price fields.
func (b Bar) IntrabarHigh() decimal.Decimal {
	return decimal.Max(b.Open, b.High, b.Low, b.Close)
}

// After reports whether the bar starts strictly after the given epoch second.
func (b Bar) After(epochSec int64) bool {
	return b.Timestamp > epochSec*1000
}
