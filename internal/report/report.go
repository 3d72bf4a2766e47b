// Package report renders simulation results.
package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/newthinker/sigsim/internal/backtest"
)

// Supported output formats
const (
	FormatHTML = "html"
	FormatCSV  = "csv"
	FormatJSON = "json"
)

// NotAvailable is rendered in place of a missing duration
const NotAvailable = "N/A"

// Columns is the fixed column order of every report format
var Columns = []string{
	"Signal ID",
	"Coin",
	"Direction",
	"Open Price",
	"Open Time",
	"Close Price",
	"Close Time",
	"Close Reason",
	"Duration",
	"Max Drawdown",
}

// Failure describes a signal that produced no outcome row
type Failure struct {
	SignalID string `json:"signal_id"`
	Coin     string `json:"coin"`
	Line     int    `json:"line"`
	Reason   string `json:"reason"`
}

// Result is everything a simulation run produced, in signal input order
type Result struct {
	Outcomes []backtest.Outcome
	Failures []Failure
}

// Row is the rendered form of one outcome. Values of stages the trade
// never reached are empty strings.
type Row struct {
	SignalID    string `json:"signal_id"`
	Coin        string `json:"coin"`
	Direction   string `json:"direction"`
	OpenPrice   string `json:"open_price"`
	OpenTime    string `json:"open_time"`
	ClosePrice  string `json:"close_price"`
	CloseTime   string `json:"close_time"`
	CloseReason string `json:"close_reason"`
	Duration    string `json:"duration"`
	MaxDrawdown string `json:"max_drawdown"`
}

// Values returns the row in Columns order
func (r Row) Values() []string {
	return []string{
		r.SignalID,
		r.Coin,
		r.Direction,
		r.OpenPrice,
		r.OpenTime,
		r.ClosePrice,
		r.CloseTime,
		r.CloseReason,
		r.Duration,
		r.MaxDrawdown,
	}
}

// NewRow converts an outcome to its rendered form
func NewRow(o backtest.Outcome) Row {
	row := Row{
		SignalID:    o.SignalID,
		Coin:        o.Coin,
		Direction:   string(o.Direction),
		CloseReason: string(o.Reason),
		Duration:    NotAvailable,
		MaxDrawdown: o.MaxDrawdown.String(),
	}
	if o.IsOpened() {
		row.OpenPrice = o.OpenPrice.String()
		row.OpenTime = o.OpenTime
	}
	if o.IsClosed() {
		row.ClosePrice = o.ClosePrice.String()
		row.CloseTime = o.CloseTime
	}
	if d, ok := o.Duration(); ok {
		row.Duration = d.String()
	}
	return row
}

// Rows converts all outcomes of the result
func (r Result) Rows() []Row {
	rows := make([]Row, len(r.Outcomes))
	for i, o := range r.Outcomes {
		rows[i] = NewRow(o)
	}
	return rows
}

// Renderer writes a Result in one output format
type Renderer interface {
	Render(w io.Writer, r Result) error
}

// New returns the renderer for format. An empty format selects HTML.
func New(format string) (Renderer, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case FormatHTML, "":
		return newHTMLRenderer()
	case FormatCSV:
		return csvRenderer{}, nil
	case FormatJSON:
		return jsonRenderer{}, nil
	default:
		return nil, fmt.Errorf("unknown report format %q", format)
	}
}

// FormatFromPath guesses the format from a file extension, falling back to HTML
func FormatFromPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FormatCSV
	case ".json":
		return FormatJSON
	default:
		return FormatHTML
	}
}

// WriteFile renders the result to path. The file is replaced only after a
// complete render.
func WriteFile(path string, r Result, renderer Renderer) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating report directory: %w", err)
		}
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("creating report: %w", err)
	}

	if err := renderer.Render(f, r); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("rendering report: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("closing report: %w", err)
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("writing report: %w", err)
	}
	return nil
}
