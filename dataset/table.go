package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Column names written by the exploration loggers.
const (
	ColTimeElapsed     = "time_elapsed"
	ColCoveragePercent = "coverage_percent"
	ColOverlapTime     = "Time Elapsed (s)"
	ColOverlap         = "Coverage Overlap (%)"
	ColMergedCoverage  = "merged_12_coverage"
	ColRobot           = "Robot"

	// FailureColumnSuffix ends every per-condition failure coverage column,
	// e.g. "Failure Coverage (%)" or "Manual Failure Coverage (%)".
	FailureColumnSuffix = "Failure Coverage (%)"
)

var ErrMissingColumn = errors.New("missing column")

// Table is one parsed CSV log.
type Table struct {
	Name    string
	header  []string
	index   map[string]int
	records [][]string
}

// ReadTable reads a CSV stream whose first row is the header.
func ReadTable(name string, r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%s: empty file", name)
	}
	if err != nil {
		return nil, fmt.Errorf("while reading header of %s: %w", name, err)
	}

	t := &Table{
		Name:   name,
		header: make([]string, len(header)),
		index:  make(map[string]int, len(header)),
	}
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		t.header[i] = h
		if _, ok := t.index[h]; !ok {
			t.index[h] = i
		}
	}

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("while reading %s: %w", name, err)
		}
		if len(record) == 1 && strings.TrimSpace(record[0]) == "" {
			continue
		}
		t.records = append(t.records, record)
	}
	return t, nil
}

// Header returns the column names in file order.
func (t *Table) Header() []string {
	return append([]string(nil), t.header...)
}

// Len is the number of data rows.
func (t *Table) Len() int {
	return len(t.records)
}

func (t *Table) Has(col string) bool {
	_, ok := t.index[col]
	return ok
}

// FindSuffix returns the first column whose name ends with suffix.
func (t *Table) FindSuffix(suffix string) (string, bool) {
	for _, h := range t.header {
		if strings.HasSuffix(h, suffix) {
			return h, true
		}
	}
	return "", false
}

// Strings returns the raw cells of col.
func (t *Table) Strings(col string) ([]string, error) {
	i, ok := t.index[col]
	if !ok {
		return nil, fmt.Errorf("%s: %w %q", t.Name, ErrMissingColumn, col)
	}
	out := make([]string, len(t.records))
	for r, record := range t.records {
		if i < len(record) {
			out[r] = strings.TrimSpace(record[i])
		}
	}
	return out, nil
}

// Floats parses col as float64. Empty or malformed cells are errors.
func (t *Table) Floats(col string) ([]float64, error) {
	cells, err := t.Strings(col)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(cells))
	for r, cell := range cells {
		v, err := strconv.ParseFloat(cell, 64)
		if err != nil {
			// +2: header row and 1-based line numbers.
			return nil, fmt.Errorf("%s line %d column %q: %w", t.Name, r+2, col, err)
		}
		out[r] = v
	}
	return out, nil
}
