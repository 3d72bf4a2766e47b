package report

import (
	"encoding/csv"
	"io"
)

// csvRenderer writes outcome rows only; failures are reported in logs
type csvRenderer struct{}

func (csvRenderer) Render(w io.Writer, r Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return err
	}
	for _, row := range r.Rows() {
		if err := cw.Write(row.Values()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
