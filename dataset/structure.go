package dataset

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/mat"

	"github.com/protbatch/protbatch/geometry"
)

// StructureStore loads structural measurements by global sequence index.
// A missing structure is not an error: implementations return (nil, nil)
// and the collator treats the example as sequence-only.
type StructureStore interface {
	Load(idx int) (*geometry.Structure, error)
}

// DirStructureStore reads structures from a directory of JSON files named
// by zero-padded global index ("00000042.json"), each holding the four
// square matrices as nested arrays.
type DirStructureStore struct {
	Dir string
}

// NewDirStructureStore builds a store over the given directory.
func NewDirStructureStore(dir string) *DirStructureStore {
	return &DirStructureStore{Dir: dir}
}

// structureFile is the on-disk layout of one structure record.
type structureFile struct {
	Dist  [][]float64 `json:"dist"`
	Omega [][]float64 `json:"omega"`
	Theta [][]float64 `json:"theta"`
	Phi   [][]float64 `json:"phi"`
}

// Load implements StructureStore.
func (s *DirStructureStore) Load(idx int) (*geometry.Structure, error) {
	path := filepath.Join(s.Dir, fmt.Sprintf("%08d.json", idx))
	file, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open structure %s: %w", path, err)
	}
	defer file.Close()

	var raw structureFile
	if err := json.NewDecoder(file).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode structure %s: %w", path, err)
	}

	st := &geometry.Structure{}
	for _, m := range []struct {
		name string
		rows [][]float64
		dst  **mat.Dense
	}{
		{"dist", raw.Dist, &st.Dist},
		{"omega", raw.Omega, &st.Omega},
		{"theta", raw.Theta, &st.Theta},
		{"phi", raw.Phi, &st.Phi},
	} {
		dense, err := denseFromRows(m.rows)
		if err != nil {
			return nil, fmt.Errorf("structure %s, matrix %s: %w", path, m.name, err)
		}
		*m.dst = dense
	}
	if err := st.Validate(); err != nil {
		return nil, fmt.Errorf("structure %s: %w", path, err)
	}
	return st, nil
}

func denseFromRows(rows [][]float64) (*mat.Dense, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("matrix is empty")
	}
	cols := len(rows[0])
	flat := make([]float64, 0, len(rows)*cols)
	for i, row := range rows {
		if len(row) != cols {
			return nil, fmt.Errorf("row %d has %d columns, want %d", i, len(row), cols)
		}
		flat = append(flat, row...)
	}
	return mat.NewDense(len(rows), cols, flat), nil
}
