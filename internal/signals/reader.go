// Package signals reads trading signal files.
package signals

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/newthinker/sigsim/internal/core"
	"github.com/shopspring/decimal"
)

// Column names looked up in the header row. Matching ignores case and treats
// underscores and dashes as spaces. The signal id is always the first column.
var columns = map[string][]string{
	"coin":      {"coin"},
	"direction": {"direction"},
	"entry_min": {"entry min"},
	"entry_max": {"entry max"},
	"target":    {"short term target", "target"},
	"stop_loss": {"stop loss"},
	"timestamp": {"unix timestamp", "timestamp"},
}

// Entry is one data row of a signal file. Err is set when the row is malformed.
type Entry struct {
	Line   int
	Signal core.Signal
	Err    error
}

// ReadFile reads the signal file at path
func ReadFile(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening signal file: %w", err)
	}
	defer f.Close()

	return Read(f)
}

// Read parses a signal file with a header row. A malformed row yields an
// Entry with Err set and reading continues; only an unusable header or an
// unreadable stream fail the whole file.
func Read(r io.Reader) ([]Entry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, core.WrapError(core.ErrMalformedSignal, errors.New("signal file is empty"))
	}
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	idx, err := resolveColumns(header)
	if err != nil {
		return nil, core.WrapError(core.ErrMalformedSignal, err)
	}

	var entries []Entry
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				entries = append(entries, Entry{Line: perr.Line, Err: core.WrapError(core.ErrMalformedSignal, err)})
				continue
			}
			return nil, fmt.Errorf("reading signals: %w", err)
		}

		line, _ := cr.FieldPos(0)
		sig, err := parseRow(rec, idx)
		if err != nil {
			err = core.WrapError(core.ErrMalformedSignal, fmt.Errorf("line %d: %w", line, err))
		}
		entries = append(entries, Entry{Line: line, Signal: sig, Err: err})
	}

	return entries, nil
}

func normalize(name string) string {
	name = strings.ToLower(name)
	name = strings.NewReplacer("_", " ", "-", " ").Replace(name)
	return strings.Join(strings.Fields(name), " ")
}

func resolveColumns(header []string) (map[string]int, error) {
	positions := make(map[string]int, len(header))
	for i, h := range header {
		n := normalize(strings.TrimPrefix(h, "\ufeff"))
		if _, dup := positions[n]; !dup {
			positions[n] = i
		}
	}

	idx := make(map[string]int, len(columns))
	var missing []string
	for key, names := range columns {
		found := false
		for _, name := range names {
			if i, ok := positions[name]; ok {
				idx[key] = i
				found = true
				break
			}
		}
		if !found {
			missing = append(missing, names[0])
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("missing columns: %s", strings.Join(missing, ", "))
	}
	return idx, nil
}

func parseRow(rec []string, idx map[string]int) (core.Signal, error) {
	field := func(key string) (string, error) {
		i := idx[key]
		if i >= len(rec) {
			return "", fmt.Errorf("missing %s field", strings.ReplaceAll(key, "_", " "))
		}
		return strings.TrimSpace(rec[i]), nil
	}
	price := func(key string) (decimal.Decimal, error) {
		s, err := field(key)
		if err != nil {
			return decimal.Zero, err
		}
		v, err := decimal.NewFromString(s)
		if err != nil {
			return decimal.Zero, fmt.Errorf("parsing %s: %w", strings.ReplaceAll(key, "_", " "), err)
		}
		return v, nil
	}

	sig := core.Signal{ID: strings.TrimSpace(rec[0])}

	var err error
	if sig.Coin, err = field("coin"); err != nil {
		return sig, err
	}
	dir, err := field("direction")
	if err != nil {
		return sig, err
	}
	if sig.Direction, err = core.ParseDirection(dir); err != nil {
		return sig, err
	}
	if sig.EntryMin, err = price("entry_min"); err != nil {
		return sig, err
	}
	if sig.EntryMax, err = price("entry_max"); err != nil {
		return sig, err
	}
	if sig.Target, err = price("target"); err != nil {
		return sig, err
	}
	if sig.StopLoss, err = price("stop_loss"); err != nil {
		return sig, err
	}

	ts, err := field("timestamp")
	if err != nil {
		return sig, err
	}
	if sig.Timestamp, err = parseEpochSeconds(ts); err != nil {
		return sig, err
	}

	return sig, sig.Validate()
}

// parseEpochSeconds accepts integer or float notation; fractions are floored,
// which keeps comparisons against whole-second bar times unchanged
func parseEpochSeconds(s string) (int64, error) {
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("parsing timestamp %q", s)
	}
	return int64(math.Floor(f)), nil
}
