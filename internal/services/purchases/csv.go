package purchases

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	PreviewRows    = 8
	PreviewColumns = 6
	PreviewCell    = 30
)

var ErrNoHeader = errors.New("csv has no header row")

// Sheet is a parsed CSV with a header row.
type Sheet struct {
	Header []string
	Rows   [][]string
}

// ParseCSV reads a CSV whose first non-empty line is the header. Blank lines
// and rows with only empty cells are skipped; short and long rows are kept.
func ParseCSV(r io.Reader) (*Sheet, error) {
	const op = "purchases.ParseCSV"

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var sheet Sheet
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if blank(rec) {
			continue
		}
		if sheet.Header == nil {
			sheet.Header = rec
			continue
		}
		sheet.Rows = append(sheet.Rows, rec)
	}

	if sheet.Header == nil {
		return nil, fmt.Errorf("%s: %w", op, ErrNoHeader)
	}
	return &sheet, nil
}

func blank(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

// Encode writes the header and rows back as CSV.
func (s *Sheet) Encode() ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(s.Header); err != nil {
		return nil, err
	}
	if err := w.WriteAll(s.Rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type Preview struct {
	Header []string
	Rows   [][]string
	Total  int
}

// Preview shows the first rows and columns with cells cut short.
func (s *Sheet) Preview() Preview {
	p := Preview{Header: head(s.Header, PreviewColumns), Total: len(s.Rows)}
	for _, row := range head(s.Rows, PreviewRows) {
		cells := make([]string, 0, PreviewColumns)
		for _, c := range head(row, PreviewColumns) {
			cells = append(cells, cut(c, PreviewCell))
		}
		p.Rows = append(p.Rows, cells)
	}
	return p
}

func head[T any](s []T, n int) []T {
	if len(s) > n {
		return s[:n]
	}
	return s
}

func cut(s string, n int) string {
	r := []rune(s)
	if len(r) > n {
		return string(r[:n])
	}
	return s
}
