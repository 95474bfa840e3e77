package parser

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strings"
)

// CSVParser extracts comma-separated files as line-per-row text.
type CSVParser struct{}

func (p *CSVParser) SupportedFormats() []string { return []string{"csv"} }

func (p *CSVParser) Parse(ctx context.Context, path string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening CSV: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1 // ragged rows are common in real exports

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading CSV: %w", err)
	}

	var sb strings.Builder
	for _, row := range records {
		sb.WriteString(strings.Join(row, " "))
		sb.WriteString("\n")
	}

	return &Result{
		Text: sb.String(),
		Metadata: map[string]string{
			"rows": fmt.Sprintf("%d", len(records)),
		},
	}, nil
}
