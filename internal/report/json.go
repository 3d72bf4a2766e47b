package report

import (
	"encoding/json"
	"io"
)

type jsonReport struct {
	Outcomes []Row     `json:"outcomes"`
	Failures []Failure `json:"failures"`
}

type jsonRenderer struct{}

func (jsonRenderer) Render(w io.Writer, r Result) error {
	rep := jsonReport{
		Outcomes: r.Rows(),
		Failures: r.Failures,
	}
	if rep.Failures == nil {
		rep.Failures = []Failure{}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rep)
}
