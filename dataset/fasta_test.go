package dataset

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func writeFasta(t *testing.T, path string, entries map[string]string, order []string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create fasta %s: %v", path, err)
	}
	defer f.Close()
	for _, name := range order {
		if _, err := f.WriteString(">" + name + "\n" + entries[name] + "\n"); err != nil {
			t.Fatalf("failed to write fasta: %v", err)
		}
	}
}

func TestFastaDatasetOffsetsAndRecords(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "consensus.fasta")
	entries := map[string]string{
		"seq0": "MKVAH",
		"seq1": "AC",
		"seq2": "GHILMNP",
	}
	writeFasta(t, path, entries, []string{"seq0", "seq1", "seq2"})

	ds, err := NewFastaDataset(path)
	if err != nil {
		t.Fatalf("NewFastaDataset failed: %v", err)
	}
	if ds.Len() != 3 {
		t.Fatalf("expected 3 records, got %d", ds.Len())
	}

	wantLens := []int{5, 2, 7}
	for i, w := range wantLens {
		if ds.Length(i) != w {
			t.Fatalf("Length(%d): got %d want %d", i, ds.Length(i), w)
		}
	}

	wantSeqs := []string{"MKVAH", "AC", "GHILMNP"}
	for i, w := range wantSeqs {
		rec, err := ds.Record(i)
		if err != nil {
			t.Fatalf("Record(%d) failed: %v", i, err)
		}
		if rec.Sequence != w {
			t.Fatalf("Record(%d): got %q want %q", i, rec.Sequence, w)
		}
		if rec.Structure != nil {
			t.Fatalf("Record(%d) has structure without a store", i)
		}
	}
}

func TestFastaDatasetSplits(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "consensus.fasta")
	writeFasta(t, path, map[string]string{
		"a": "MKV", "b": "ACDEF", "c": "GH", "d": "WYWY",
	}, []string{"a", "b", "c", "d"})

	splitsPath := filepath.Join(tmp, "splits.json")
	splits := map[string][]int{"train": {0, 3}, "valid": {1}, "test": {2}}
	data, err := json.Marshal(splits)
	if err != nil {
		t.Fatalf("marshal splits: %v", err)
	}
	if err := os.WriteFile(splitsPath, data, 0o644); err != nil {
		t.Fatalf("write splits: %v", err)
	}

	ds, err := NewFastaDataset(path)
	if err != nil {
		t.Fatalf("NewFastaDataset failed: %v", err)
	}
	if err := ds.UseSplit(splitsPath, "train"); err != nil {
		t.Fatalf("UseSplit failed: %v", err)
	}
	if ds.Len() != 2 {
		t.Fatalf("expected 2 train records, got %d", ds.Len())
	}
	rec, err := ds.Record(1)
	if err != nil {
		t.Fatalf("Record(1) failed: %v", err)
	}
	if rec.Sequence != "WYWY" {
		t.Fatalf("split indexing wrong: got %q", rec.Sequence)
	}
	if ds.Length(1) != 4 {
		t.Fatalf("split length table wrong: got %d", ds.Length(1))
	}

	if err := ds.UseSplit(splitsPath, "nope"); err == nil {
		t.Fatalf("expected error for unknown split")
	}
}

func TestFastaDatasetStructureStore(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "consensus.fasta")
	writeFasta(t, path, map[string]string{"a": "MKV", "b": "AC"}, []string{"a", "b"})

	// Structure only for global index 0.
	structDir := filepath.Join(tmp, "structures")
	if err := os.Mkdir(structDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	row := func(n int) [][]float64 {
		out := make([][]float64, n)
		for i := range out {
			out[i] = make([]float64, n)
		}
		return out
	}
	payload := map[string][][]float64{
		"dist": row(3), "omega": row(3), "theta": row(3), "phi": row(3),
	}
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal structure: %v", err)
	}
	if err := os.WriteFile(filepath.Join(structDir, "00000000.json"), data, 0o644); err != nil {
		t.Fatalf("write structure: %v", err)
	}

	ds, err := NewFastaDataset(path)
	if err != nil {
		t.Fatalf("NewFastaDataset failed: %v", err)
	}
	ds.SetStructureStore(NewDirStructureStore(structDir))

	rec, err := ds.Record(0)
	if err != nil {
		t.Fatalf("Record(0) failed: %v", err)
	}
	if rec.Structure == nil {
		t.Fatalf("expected structure for record 0")
	}
	if rec.Structure.Len() != 3 {
		t.Fatalf("structure should cover 3 residues, got %d", rec.Structure.Len())
	}

	rec, err = ds.Record(1)
	if err != nil {
		t.Fatalf("Record(1) failed: %v", err)
	}
	if rec.Structure != nil {
		t.Fatalf("record 1 should have no structure")
	}
}

func TestDirStructureStoreRejectsRagged(t *testing.T) {
	tmp := t.TempDir()
	bad := map[string][][]float64{
		"dist":  {{0, 1}, {1}},
		"omega": {{0, 1}, {1, 0}},
		"theta": {{0, 1}, {1, 0}},
		"phi":   {{0, 1}, {1, 0}},
	}
	data, err := json.Marshal(bad)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(filepath.Join(tmp, "00000007.json"), data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	store := NewDirStructureStore(tmp)
	if _, err := store.Load(7); err == nil {
		t.Fatalf("expected error for ragged matrix")
	}
	st, err := store.Load(99)
	if err != nil || st != nil {
		t.Fatalf("missing structure should be (nil, nil), got %v %v", st, err)
	}
}
