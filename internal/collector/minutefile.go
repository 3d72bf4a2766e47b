package collector

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"
)

// MinuteFileHeader is the column header of the minute data files
var MinuteFileHeader = []string{"Unix", "Date", "Symbol", "Open", "High", "Low", "Close", "Volume"}

// MinuteRow is one bar of a minute data file. Prices stay strings so the
// exchange's decimal form is written unchanged.
type MinuteRow struct {
	OpenTime int64 // epoch millis
	Symbol   string
	Open     string
	High     string
	Low      string
	Close    string
	Volume   string
}

func (r MinuteRow) record() []string {
	return []string{
		strconv.FormatInt(r.OpenTime, 10),
		time.UnixMilli(r.OpenTime).UTC().Format(time.DateTime),
		r.Symbol,
		r.Open,
		r.High,
		r.Low,
		r.Close,
		r.Volume,
	}
}

// EncodeMinuteFile renders ascending rows newest first under MinuteFileHeader,
// the layout of the cryptodatadownload files
func EncodeMinuteFile(rows []MinuteRow) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(MinuteFileHeader); err != nil {
		return nil, fmt.Errorf("encoding header: %w", err)
	}
	for i := len(rows) - 1; i >= 0; i-- {
		if err := w.Write(rows[i].record()); err != nil {
			return nil, fmt.Errorf("encoding row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("encoding rows: %w", err)
	}
	return buf.Bytes(), nil
}
