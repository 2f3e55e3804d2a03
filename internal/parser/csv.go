package parser

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/dgallion1/kbchat/internal/doctree"
)

// CSVParser handles CSV files. Each data row becomes a "header: value" line,
// grouped into sections of rowsPerSection rows.
type CSVParser struct{}

const rowsPerSection = 20

func (p *CSVParser) Parse(r io.Reader, filename string) (*doctree.DocTree, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}

	tree := &doctree.DocTree{Title: trimExt(filename)}
	if len(records) == 0 {
		return tree, nil
	}

	headers := records[0]
	rows := records[1:]
	for start := 0; start < len(rows); start += rowsPerSection {
		end := min(start+rowsPerSection, len(rows))

		lines := make([]string, 0, end-start)
		for _, row := range rows[start:end] {
			cells := make([]string, 0, len(row))
			for j, cell := range row {
				if j < len(headers) && headers[j] != "" {
					cells = append(cells, headers[j]+": "+cell)
				} else {
					cells = append(cells, cell)
				}
			}
			lines = append(lines, strings.Join(cells, ", "))
		}
		tree.Children = append(tree.Children, &doctree.DocNode{Text: strings.Join(lines, "\n")})
	}
	return tree, nil
}
