package dataset

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/protbatch/protbatch/collate"
)

// FastaDataset reads consensus sequences from a single FASTA file in which
// every sequence occupies exactly one line below its header. Construction
// scans the file once, recording the byte offset and length of every
// sequence line; records are then fetched with a seek and a single read.
//
// An optional splits file (JSON mapping split names to index lists)
// restricts the dataset to one split, and an optional StructureStore
// attaches structural measurements to records by their global index.
type FastaDataset struct {
	path    string
	offsets []int64
	lengths []int

	// indices maps dataset position to global sequence index. Without a
	// split it is the identity.
	indices []int

	store StructureStore
}

// NewFastaDataset indexes the FASTA file at path.
func NewFastaDataset(path string) (*FastaDataset, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open FASTA %s: %w", path, err)
	}
	defer file.Close()

	d := &FastaDataset{path: path}
	reader := bufio.NewReader(file)
	var offset int64
	expectSequence := false
	for {
		line, err := reader.ReadString('\n')
		if len(line) > 0 {
			trimmed := strings.TrimRight(line, "\r\n")
			if strings.HasPrefix(trimmed, ">") {
				expectSequence = true
			} else if expectSequence {
				d.offsets = append(d.offsets, offset)
				d.lengths = append(d.lengths, len([]rune(trimmed)))
				expectSequence = false
			}
			offset += int64(len(line))
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to scan FASTA %s: %w", path, err)
		}
	}
	if len(d.offsets) == 0 {
		return nil, fmt.Errorf("no sequences found in %s", path)
	}

	d.indices = make([]int, len(d.offsets))
	for i := range d.indices {
		d.indices[i] = i
	}
	return d, nil
}

// UseSplit restricts the dataset to the named split from a JSON file
// mapping split names to lists of global sequence indices.
func (d *FastaDataset) UseSplit(splitsPath, split string) error {
	file, err := os.Open(splitsPath)
	if err != nil {
		return fmt.Errorf("failed to open splits %s: %w", splitsPath, err)
	}
	defer file.Close()

	var splits map[string][]int
	if err := json.NewDecoder(file).Decode(&splits); err != nil {
		return fmt.Errorf("failed to decode splits %s: %w", splitsPath, err)
	}
	indices, ok := splits[split]
	if !ok {
		return fmt.Errorf("split %q not found in %s", split, splitsPath)
	}
	for _, idx := range indices {
		if idx < 0 || idx >= len(d.offsets) {
			return fmt.Errorf("split %q references index %d outside [0, %d)", split, idx, len(d.offsets))
		}
	}
	d.indices = indices
	return nil
}

// SetStructureStore attaches a structure source. Records whose structure
// is absent from the store simply carry none.
func (d *FastaDataset) SetStructureStore(store StructureStore) { d.store = store }

// Len returns the number of records in the active split.
func (d *FastaDataset) Len() int { return len(d.indices) }

// Length returns the sequence length of record i. It satisfies the
// batcher's length lookup contract.
func (d *FastaDataset) Length(i int) int { return d.lengths[d.indices[i]] }

// Lengths returns the length table for the active split, index-aligned
// with Record.
func (d *FastaDataset) Lengths() []int {
	out := make([]int, len(d.indices))
	for i, idx := range d.indices {
		out[i] = d.lengths[idx]
	}
	return out
}

// Name returns the dataset name.
func (d *FastaDataset) Name() string { return "FastaDataset" }

// Record reads the record at position i of the active split.
func (d *FastaDataset) Record(i int) (collate.Record, error) {
	if i < 0 || i >= len(d.indices) {
		return collate.Record{}, fmt.Errorf("index %d out of range [0, %d)", i, len(d.indices))
	}
	global := d.indices[i]

	file, err := os.Open(d.path)
	if err != nil {
		return collate.Record{}, fmt.Errorf("failed to open FASTA: %w", err)
	}
	defer file.Close()

	if _, err := file.Seek(d.offsets[global], io.SeekStart); err != nil {
		return collate.Record{}, fmt.Errorf("failed to seek to sequence %d: %w", global, err)
	}
	line, err := bufio.NewReader(file).ReadString('\n')
	if err != nil && err != io.EOF {
		return collate.Record{}, fmt.Errorf("failed to read sequence %d: %w", global, err)
	}

	rec := collate.Record{Sequence: strings.TrimRight(line, "\r\n")}
	if d.store != nil {
		st, err := d.store.Load(global)
		if err != nil {
			return collate.Record{}, fmt.Errorf("failed to load structure %d: %w", global, err)
		}
		rec.Structure = st
	}
	return rec, nil
}
