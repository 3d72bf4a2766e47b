package series

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/newthinker/sigsim/internal/core"
	"github.com/shopspring/decimal"
)

// Column positions of a minute data row
const (
	colTimestamp = 0
	colLabel     = 1
	colOpen      = 3
	colHigh      = 4
	colLow       = 5
	colClose     = 6

	minFields = 7
)

// secondsCutoff separates second from millisecond timestamps; 1e11 ms is March 1973
const secondsCutoff = 100_000_000_000

// StripHeader drops leading lines that are not data rows, such as the source
// banner and the column header line.
func StripHeader(data []byte) []byte {
	for len(data) > 0 {
		line := data
		next := len(data)
		if i := bytes.IndexByte(data, '\n'); i >= 0 {
			line, next = data[:i], i+1
		}
		if isDataRow(line) {
			break
		}
		data = data[next:]
	}
	return data
}

func isDataRow(line []byte) bool {
	first, _, _ := strings.Cut(strings.TrimSpace(string(line)), ",")
	_, err := parseTimestamp(first)
	return err == nil
}

// Parse reads data rows into bars sorted ascending by timestamp.
// Rows sharing a timestamp keep their file order.
func Parse(data []byte) ([]core.Bar, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.ReuseRecord = true

	var bars []core.Bar
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, core.WrapError(core.ErrMalformedSeries, err)
		}

		bar, err := parseRow(rec)
		if err != nil {
			line, _ := r.FieldPos(0)
			return nil, core.WrapError(core.ErrMalformedSeries, fmt.Errorf("line %d: %w", line, err))
		}
		bars = append(bars, bar)
	}

	sort.SliceStable(bars, func(i, j int) bool {
		return bars[i].Timestamp < bars[j].Timestamp
	})
	return bars, nil
}

func parseRow(rec []string) (core.Bar, error) {
	if len(rec) < minFields {
		return core.Bar{}, fmt.Errorf("expected at least %d fields, got %d", minFields, len(rec))
	}

	ts, err := parseTimestamp(rec[colTimestamp])
	if err != nil {
		return core.Bar{}, fmt.Errorf("parsing timestamp: %w", err)
	}

	bar := core.Bar{
		Timestamp: ts,
		Label:     strings.TrimSpace(rec[colLabel]),
	}

	prices := []struct {
		name string
		col  int
		dst  *decimal.Decimal
	}{
		{"open", colOpen, &bar.Open},
		{"high", colHigh, &bar.High},
		{"low", colLow, &bar.Low},
		{"close", colClose, &bar.Close},
	}
	for _, p := range prices {
		v, err := decimal.NewFromString(strings.TrimSpace(rec[p.col]))
		if err != nil {
			return core.Bar{}, fmt.Errorf("parsing %s price: %w", p.name, err)
		}
		*p.dst = v
	}

	return bar, nil
}

// parseTimestamp returns epoch millis, accepting second resolution and float notation
func parseTimestamp(s string) (int64, error) {
	s = strings.TrimSpace(s)
	ts, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			return 0, err
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, fmt.Errorf("timestamp %q not finite", s)
		}
		ts = int64(f)
	}
	if ts <= 0 {
		return 0, fmt.Errorf("timestamp %q not positive", s)
	}
	if ts < secondsCutoff {
		ts *= 1000
	}
	return ts, nil
}
