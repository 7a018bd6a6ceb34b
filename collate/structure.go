package collate

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/protbatch/protbatch/geometry"
)

// Featurizer supplies the geometric feature derivations the structure
// collator orchestrates. geometry.Featurizer is the production
// implementation; tests substitute stubs.
type Featurizer interface {
	NodeFeatures(st *geometry.Structure) ([][]float64, error)
	KNeighbors(st *geometry.Structure, k int) ([][]int, error)
	EdgeFeatures(st *geometry.Structure, neighbors [][]int) ([][][]float64, error)
	EdgeMask(edges [][][]float64) [][]float64
	ReplaceNaN(edges [][][]float64)
}

var _ Featurizer = geometry.Featurizer{}

// StructureCollator wraps a sequence collator and extends its output with
// padded structural tensors: node features, edge features, neighbor
// indices and a per-edge validity mask.
//
// Row 0 of every structural tensor is reserved and never written, so
// residue i of the raw sequence lands in row i+1, matching the offset the
// START symbol introduces in the sequence tensors. Examples without a
// structure, and examples dropped by the PDrop draw, keep all-zero
// tensors and an all-zero validity mask.
type StructureCollator struct {
	seqs Collator
	geo  Featurizer

	// PDrop is the probability that a present structure is discarded
	// anyway, forcing the model to handle sequence-only examples.
	PDrop float64

	// NConnections is the fixed neighbor slot count per residue. Sequences
	// shorter than this leave the remaining slots zero and invalid.
	NConnections int

	rng *rand.Rand
}

// NewStructureCollator wraps seqs with structural feature assembly. A nil
// rng gets a time-seeded generator.
func NewStructureCollator(seqs Collator, geo Featurizer, pDrop float64, nConnections int, rng *rand.Rand) (*StructureCollator, error) {
	if seqs == nil {
		return nil, fmt.Errorf("sequence collator cannot be nil")
	}
	if geo == nil {
		return nil, fmt.Errorf("featurizer cannot be nil")
	}
	if pDrop < 0 || pDrop > 1 {
		return nil, fmt.Errorf("structure drop probability %f out of [0, 1]", pDrop)
	}
	if nConnections < 1 {
		return nil, fmt.Errorf("connection count must be >= 1, got %d", nConnections)
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &StructureCollator{seqs: seqs, geo: geo, PDrop: pDrop, NConnections: nConnections, rng: rng}, nil
}

// Collate implements Collator.
func (c *StructureCollator) Collate(batch []Record) (*Result, error) {
	res, err := c.seqs.Collate(batch)
	if err != nil {
		return nil, err
	}

	ells := make([]int, len(batch))
	maxEll := 0
	for i, rec := range batch {
		ells[i] = len([]rune(rec.Sequence))
		if ells[i] > maxEll {
			maxEll = ells[i]
		}
	}
	maxEll++ // row 0 is reserved for the START offset

	n := len(batch)
	nodes := NewFloatTensor(n, maxEll, geometry.NodeFeatureDim)
	edges := NewFloatTensor(n, maxEll, c.NConnections, geometry.EdgeFeatureDim)
	connections := NewIntTensor(n, maxEll, c.NConnections)
	edgeMask := NewFloatTensor(n, maxEll, c.NConnections, 1)

	for i, rec := range batch {
		st := rec.Structure
		if st == nil {
			continue
		}
		if c.rng.Float64() < c.PDrop {
			continue
		}
		if st.Len() != ells[i] {
			return nil, fmt.Errorf("example %d: structure covers %d residues, sequence has %d",
				i, st.Len(), ells[i])
		}

		v, err := c.geo.NodeFeatures(st)
		if err != nil {
			return nil, fmt.Errorf("example %d node features: %w", i, err)
		}
		nbr, err := c.geo.KNeighbors(st, c.NConnections)
		if err != nil {
			return nil, fmt.Errorf("example %d neighbors: %w", i, err)
		}
		e, err := c.geo.EdgeFeatures(st, nbr)
		if err != nil {
			return nil, fmt.Errorf("example %d edge features: %w", i, err)
		}
		m := c.geo.EdgeMask(e)
		c.geo.ReplaceNaN(e)

		nc := ells[i]
		if c.NConnections < nc {
			nc = c.NConnections
		}
		for r := 0; r < ells[i]; r++ {
			for d, val := range v[r] {
				nodes.Set(float32(val), i, r+1, d)
			}
			for s := 0; s < nc && s < len(nbr[r]); s++ {
				connections.Set(int32(nbr[r][s]), i, r+1, s)
				for d, val := range e[r][s] {
					edges.Set(float32(val), i, r+1, s, d)
				}
				edgeMask.Set(float32(m[r][s]), i, r+1, s, 0)
			}
		}
	}

	res.Nodes = nodes
	res.Edges = edges
	res.Connections = connections
	res.EdgeMask = edgeMask
	return res, nil
}
