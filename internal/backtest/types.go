package backtest

import (
	"time"

	"github.com/newthinker/sigsim/internal/core"
	"github.com/shopspring/decimal"
)

// State is the lifecycle stage of a simulated trade
type State int

const (
	StateWaiting State = iota // waiting for price to enter the entry window
	StateOpen                 // filled, neither target nor stop reached yet
	StateClosed               // exited via target or stop
)

func (s State) String() string {
	switch s {
	case StateWaiting:
		return "not_opened"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// CloseReason tells which threshold ended a trade
type CloseReason string

const (
	ReasonNone   CloseReason = ""
	ReasonTarget CloseReason = "target"
	ReasonStop   CloseReason = "stop"
)

// Outcome holds the simulated result of a single signal.
// Fields of stages the trade never reached are left zero.
type Outcome struct {
	SignalID  string
	Coin      string
	Direction core.Direction
	State     State

	OpenPrice decimal.Decimal
	OpenTime  string // bar label
	OpenedAt  time.Time

	ClosePrice decimal.Decimal
	CloseTime  string // bar label
	ClosedAt   time.Time
	Reason     CloseReason

	// MaxDrawdown is the most negative intrabar low minus open price while open. Never positive.
	MaxDrawdown decimal.Decimal
}

// IsOpened returns true if the trade was ever filled
func (o Outcome) IsOpened() bool {
	return o.State != StateWaiting
}

// IsClosed returns true if the trade has an exit
func (o Outcome) IsClosed() bool {
	return o.State == StateClosed
}

// Duration returns the time between fill and exit. ok is false unless both happened.
func (o Outcome) Duration() (d time.Duration, ok bool) {
	if !o.IsClosed() {
		return 0, false
	}
	return o.ClosedAt.Sub(o.OpenedAt), true
}
