// Package dataset provides record sources for the batching pipeline. All
// datasets here load lazily: construction scans the files once to build an
// index and a length table, and individual records are read on demand.
package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/protbatch/protbatch/collate"
)

// CSVDataset reads sequence records from CSV files matching a glob
// pattern. Every file must share one header. The sequence column is
// required; an ancestor column and a "split" column filter are optional.
//
// Construction scans all files once to build a row index and the length
// table; records are then fetched with targeted reads.
type CSVDataset struct {
	// Pattern used to find the CSV files (e.g. "assets/uniref/*.csv").
	Pattern string

	csvPaths    []string
	colIndex    map[string]int
	seqCol      string
	ancestorCol string
	split       string

	rows    []rowRef
	lengths []int
}

// rowRef locates one usable record: file position in csvPaths and the
// data-row index within that file (header excluded).
type rowRef struct {
	file int
	row  int
}

const splitColumn = "split"

// NewCSVDataset builds a dataset over all CSV files matching pattern.
// seqCol defaults to "sequence" when empty. A non-empty ancestorCol adds
// that column to each record; a non-empty split keeps only rows whose
// "split" column equals it.
func NewCSVDataset(pattern, seqCol, ancestorCol, split string) (*CSVDataset, error) {
	csvPaths, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to glob pattern %s: %w", pattern, err)
	}
	if len(csvPaths) == 0 {
		return nil, fmt.Errorf("no CSV files found matching pattern: %s", pattern)
	}
	if seqCol == "" {
		seqCol = "sequence"
	}

	d := &CSVDataset{
		Pattern:     pattern,
		csvPaths:    csvPaths,
		seqCol:      strings.ToLower(seqCol),
		ancestorCol: strings.ToLower(ancestorCol),
		split:       split,
	}
	if err := d.initializeColumns(); err != nil {
		return nil, err
	}
	if err := d.buildIndex(); err != nil {
		return nil, err
	}
	return d, nil
}

// initializeColumns reads the first CSV to determine column indices.
func (d *CSVDataset) initializeColumns() error {
	file, err := os.Open(d.csvPaths[0])
	if err != nil {
		return fmt.Errorf("failed to open first CSV %s: %w", d.csvPaths[0], err)
	}
	defer file.Close()

	header, err := csv.NewReader(file).Read()
	if err != nil {
		return fmt.Errorf("failed to read header: %w", err)
	}
	d.colIndex = make(map[string]int)
	for i, col := range header {
		d.colIndex[strings.TrimSpace(strings.ToLower(col))] = i
	}

	required := []string{d.seqCol}
	if d.ancestorCol != "" {
		required = append(required, d.ancestorCol)
	}
	if d.split != "" {
		required = append(required, splitColumn)
	}
	for _, col := range required {
		if _, ok := d.colIndex[col]; !ok {
			return fmt.Errorf("required column %q not found in CSV", col)
		}
	}
	return nil
}

// buildIndex walks every file once, recording the location and sequence
// length of each usable row.
func (d *CSVDataset) buildIndex() error {
	for fileIdx, path := range d.csvPaths {
		if err := d.indexFile(fileIdx, path); err != nil {
			return fmt.Errorf("failed to index %s: %w", path, err)
		}
	}
	if len(d.rows) == 0 {
		return fmt.Errorf("no usable rows found for pattern %s", d.Pattern)
	}
	return nil
}

func (d *CSVDataset) indexFile(fileIdx int, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	if _, err := reader.Read(); err != nil {
		return fmt.Errorf("failed to read header: %w", err)
	}

	rowIdx := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read row %d: %w", rowIdx, err)
		}
		if d.split == "" || strings.TrimSpace(record[d.colIndex[splitColumn]]) == d.split {
			seq := strings.TrimSpace(record[d.colIndex[d.seqCol]])
			d.rows = append(d.rows, rowRef{file: fileIdx, row: rowIdx})
			d.lengths = append(d.lengths, len([]rune(seq)))
		}
		rowIdx++
	}
	return nil
}

// Len returns the number of usable records across all files.
func (d *CSVDataset) Len() int { return len(d.rows) }

// Length returns the sequence length of record i. It satisfies the
// batcher's length lookup contract.
func (d *CSVDataset) Length(i int) int { return d.lengths[i] }

// Lengths returns a copy of the precomputed length table, index-aligned
// with Record.
func (d *CSVDataset) Lengths() []int {
	out := make([]int, len(d.lengths))
	copy(out, d.lengths)
	return out
}

// Name returns the dataset name.
func (d *CSVDataset) Name() string { return "CSVDataset" }

// Record reads the record at global index i.
func (d *CSVDataset) Record(i int) (collate.Record, error) {
	if i < 0 || i >= len(d.rows) {
		return collate.Record{}, fmt.Errorf("index %d out of range [0, %d)", i, len(d.rows))
	}
	ref := d.rows[i]

	file, err := os.Open(d.csvPaths[ref.file])
	if err != nil {
		return collate.Record{}, fmt.Errorf("failed to open CSV: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	if _, err := reader.Read(); err != nil {
		return collate.Record{}, fmt.Errorf("failed to read header: %w", err)
	}
	for skip := 0; skip < ref.row; skip++ {
		if _, err := reader.Read(); err != nil {
			return collate.Record{}, fmt.Errorf("failed to skip to row %d: %w", ref.row, err)
		}
	}
	record, err := reader.Read()
	if err != nil {
		return collate.Record{}, fmt.Errorf("failed to read row %d: %w", ref.row, err)
	}

	out := collate.Record{Sequence: strings.TrimSpace(record[d.colIndex[d.seqCol]])}
	if d.ancestorCol != "" {
		out.Ancestor = strings.TrimSpace(record[d.colIndex[d.ancestorCol]])
	}
	return out, nil
}
