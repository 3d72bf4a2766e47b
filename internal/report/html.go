package report

import (
	"embed"
	"fmt"
	"html/template"
	"io"
)

//go:embed templates/*
var templateFS embed.FS

type htmlRenderer struct {
	tmpl *template.Template
}

type htmlPage struct {
	Columns  []string
	Rows     [][]string
	Failures []Failure
}

func newHTMLRenderer() (*htmlRenderer, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/report.html")
	if err != nil {
		return nil, fmt.Errorf("parsing embedded template: %w", err)
	}
	return &htmlRenderer{tmpl: tmpl}, nil
}

func (h *htmlRenderer) Render(w io.Writer, r Result) error {
	page := htmlPage{
		Columns:  Columns,
		Failures: r.Failures,
	}
	for _, row := range r.Rows() {
		page.Rows = append(page.Rows, row.Values())
	}
	return h.tmpl.ExecuteTemplate(w, "report.html", page)
}
