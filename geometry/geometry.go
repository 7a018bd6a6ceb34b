// Package geometry derives per-residue graph features from raw structural
// measurements: a residue-residue distance map and three inter-residue
// angle maps (omega, theta, phi). The collators consume these functions
// through a small interface and only orchestrate shape bookkeeping, so this
// package stays free of any batching concerns.
package geometry

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// NodeFeatureDim is the width of a residue's node feature vector: sine and
// cosine of the five backbone-adjacent angle entries omega(i,i+1),
// theta(i,i+1), theta(i+1,i), phi(i,i+1) and phi(i+1,i).
const NodeFeatureDim = 10

// EdgeFeatureDim is the width of an edge feature vector: sine and cosine
// of omega, theta and phi between a residue and its neighbor.
const EdgeFeatureDim = 6

// Structure holds the raw geometric measurements for one sequence. All
// four matrices are L x L where L is the sequence length; entries may be
// NaN where a measurement is missing (unresolved residues).
type Structure struct {
	Dist  *mat.Dense
	Omega *mat.Dense
	Theta *mat.Dense
	Phi   *mat.Dense
}

// Len returns the number of residues covered by the structure.
func (s *Structure) Len() int {
	r, _ := s.Dist.Dims()
	return r
}

// Validate checks that all four matrices are square and share one size.
func (s *Structure) Validate() error {
	if s.Dist == nil || s.Omega == nil || s.Theta == nil || s.Phi == nil {
		return fmt.Errorf("structure has nil matrices")
	}
	r, c := s.Dist.Dims()
	if r != c {
		return fmt.Errorf("distance map is %dx%d, want square", r, c)
	}
	for name, m := range map[string]*mat.Dense{"omega": s.Omega, "theta": s.Theta, "phi": s.Phi} {
		mr, mc := m.Dims()
		if mr != r || mc != r {
			return fmt.Errorf("%s map is %dx%d, want %dx%d", name, mr, mc, r, r)
		}
	}
	return nil
}

// Featurizer exposes the package's feature derivations as methods so they
// can be supplied to a collator (or stubbed in tests) behind an interface.
type Featurizer struct{}

// NodeFeatures implements the node derivation, see the function of the same name.
func (Featurizer) NodeFeatures(s *Structure) ([][]float64, error) { return NodeFeatures(s) }

// KNeighbors implements the neighbor derivation, see the function of the same name.
func (Featurizer) KNeighbors(s *Structure, k int) ([][]int, error) { return KNeighbors(s, k) }

// EdgeFeatures implements the edge derivation, see the function of the same name.
func (Featurizer) EdgeFeatures(s *Structure, neighbors [][]int) ([][][]float64, error) {
	return EdgeFeatures(s, neighbors)
}

// EdgeMask implements the validity derivation, see the function of the same name.
func (Featurizer) EdgeMask(edges [][][]float64) [][]float64 { return EdgeMask(edges) }

// ReplaceNaN implements the sanitation pass, see the function of the same name.
func (Featurizer) ReplaceNaN(edges [][][]float64) { ReplaceNaN(edges) }

// NodeFeatures returns an L x NodeFeatureDim matrix of per-residue
// features. Each residue is described by the angles to its successor along
// the backbone; the last residue, and any entry whose measurement is
// missing, is left at zero.
func NodeFeatures(s *Structure) ([][]float64, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	ell := s.Len()
	out := make([][]float64, ell)
	for i := range out {
		out[i] = make([]float64, NodeFeatureDim)
		j := i + 1
		if j >= ell {
			continue
		}
		angles := []float64{
			s.Omega.At(i, j),
			s.Theta.At(i, j),
			s.Theta.At(j, i),
			s.Phi.At(i, j),
			s.Phi.At(j, i),
		}
		for a, v := range angles {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			out[i][2*a] = math.Sin(v)
			out[i][2*a+1] = math.Cos(v)
		}
	}
	return out, nil
}

// KNeighbors returns, for every residue, the indices of its min(L, k)
// nearest residues by the distance map, itself included (self-distance is
// zero, so a residue is always its own first neighbor). NaN distances sort
// last.
func KNeighbors(s *Structure, k int) ([][]int, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if k < 1 {
		return nil, fmt.Errorf("neighbor count must be >= 1, got %d", k)
	}
	ell := s.Len()
	nc := k
	if ell < nc {
		nc = ell
	}
	out := make([][]int, ell)
	for i := range out {
		// Selection by repeated minimum: nc is small relative to L and this
		// keeps NaN handling explicit.
		row := make([]float64, ell)
		for j := range row {
			row[j] = s.Dist.At(i, j)
		}
		picked := make([]int, 0, nc)
		used := make([]bool, ell)
		for len(picked) < nc {
			best := -1
			for j := 0; j < ell; j++ {
				if used[j] {
					continue
				}
				if best == -1 {
					best = j
					continue
				}
				a, b := row[j], row[best]
				switch {
				case math.IsNaN(a):
					// keep current best
				case math.IsNaN(b), a < b:
					best = j
				}
			}
			used[best] = true
			picked = append(picked, best)
		}
		out[i] = picked
	}
	return out, nil
}

// EdgeFeatures returns an L x nc x EdgeFeatureDim tensor of features for
// each residue-neighbor pair: sine and cosine of omega, theta and phi from
// the residue toward the neighbor. Missing measurements produce NaN
// entries; callers derive the validity mask before sanitizing them.
func EdgeFeatures(s *Structure, neighbors [][]int) ([][][]float64, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	ell := s.Len()
	if len(neighbors) != ell {
		return nil, fmt.Errorf("neighbor table has %d rows, want %d", len(neighbors), ell)
	}
	out := make([][][]float64, ell)
	for i := range out {
		out[i] = make([][]float64, len(neighbors[i]))
		for n, j := range neighbors[i] {
			if j < 0 || j >= ell {
				return nil, fmt.Errorf("neighbor index %d out of range [0, %d)", j, ell)
			}
			f := make([]float64, EdgeFeatureDim)
			angles := []float64{s.Omega.At(i, j), s.Theta.At(i, j), s.Phi.At(i, j)}
			for a, v := range angles {
				f[2*a] = math.Sin(v)
				f[2*a+1] = math.Cos(v)
			}
			out[i][n] = f
		}
	}
	return out, nil
}

// EdgeMask returns a per-edge validity mask: 1 where every feature of the
// edge is finite, 0 otherwise. It must be derived before ReplaceNaN wipes
// the evidence.
func EdgeMask(edges [][][]float64) [][]float64 {
	out := make([][]float64, len(edges))
	for i, row := range edges {
		out[i] = make([]float64, len(row))
		for n, f := range row {
			valid := 1.0
			for _, v := range f {
				if math.IsNaN(v) || math.IsInf(v, 0) {
					valid = 0
					break
				}
			}
			out[i][n] = valid
		}
	}
	return out
}

// ReplaceNaN zeroes every non-finite edge feature in place.
func ReplaceNaN(edges [][][]float64) {
	for _, row := range edges {
		for _, f := range row {
			for i, v := range f {
				if math.IsNaN(v) || math.IsInf(v, 0) {
					f[i] = 0
				}
			}
		}
	}
}
