package collate

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/protbatch/protbatch/alphabet"
)

// maskFraction is the share of positions corrupted per sequence.
const maskFraction = 0.15

// MLMCollator prepares masked-token prediction batches. For every
// sequence, round(0.15*L) positions (at least one) are chosen without
// replacement; each chosen position is kept as-is with probability 0.10,
// swapped for a different random amino acid with probability 0.10, and
// replaced by the MASK symbol otherwise. The loss mask is 1 at every
// chosen position regardless of which branch fired.
//
// Zero-length sequences carry nothing to corrupt and are dropped from the
// batch before assembly, keeping source, target and mask aligned.
type MLMCollator struct {
	tok *alphabet.Tokenizer
	rng *rand.Rand
}

// NewMLMCollator builds a masked-token collator. The alphabet must contain
// the PAD and MASK symbols plus every canonical amino acid. A nil rng gets
// a time-seeded generator; pass a seeded one for reproducible corruption.
func NewMLMCollator(tok *alphabet.Tokenizer, rng *rand.Rand) (*MLMCollator, error) {
	if tok == nil {
		return nil, fmt.Errorf("tokenizer cannot be nil")
	}
	if tok.PadIndex() < 0 || tok.MaskIndex() < 0 {
		return nil, fmt.Errorf("alphabet must contain the PAD and MASK symbols")
	}
	for _, aa := range alphabet.AminoAcids {
		if _, err := tok.Index(aa); err != nil {
			return nil, fmt.Errorf("alphabet is missing amino acid %q: %w", aa, err)
		}
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &MLMCollator{tok: tok, rng: rng}, nil
}

// Collate implements Collator.
func (c *MLMCollator) Collate(batch []Record) (*Result, error) {
	var srcs, tgts []string
	var masks [][]float32
	for _, rec := range batch {
		if len(rec.Sequence) == 0 {
			continue
		}
		src, mask := c.corrupt(rec.Sequence)
		srcs = append(srcs, src)
		tgts = append(tgts, rec.Sequence)
		masks = append(masks, mask)
	}
	if len(srcs) == 0 {
		return nil, fmt.Errorf("collate: %w", ErrEmptyBatch)
	}

	srcIDs := make([][]int32, len(srcs))
	tgtIDs := make([][]int32, len(tgts))
	for i := range srcs {
		var err error
		if srcIDs[i], err = c.tok.Tokenize(srcs[i]); err != nil {
			return nil, fmt.Errorf("tokenizing source %d: %w", i, err)
		}
		if tgtIDs[i], err = c.tok.Tokenize(tgts[i]); err != nil {
			return nil, fmt.Errorf("tokenizing target %d: %w", i, err)
		}
	}
	pad := int32(c.tok.PadIndex())
	return &Result{
		Src:  padTokens(srcIDs, pad),
		Tgt:  padTokens(tgtIDs, pad),
		Mask: padFloats(masks, 0),
	}, nil
}

// corrupt applies the corruption policy to one sequence and returns the
// corrupted string plus its position mask.
func (c *MLMCollator) corrupt(seq string) (string, []float32) {
	runes := []rune(seq)
	ell := len(runes)
	n := int(math.Round(maskFraction * float64(ell)))
	if n < 1 {
		n = 1
	}
	positions := c.rng.Perm(ell)[:n]

	mask := make([]float32, ell)
	for _, pos := range positions {
		mask[pos] = 1
		p := c.rng.Float64()
		switch {
		case p <= 0.10:
			// keep the original symbol
		case p <= 0.20:
			runes[pos] = c.randomOtherAminoAcid(runes[pos])
		default:
			runes[pos] = alphabet.Mask
		}
	}
	return string(runes), mask
}

// randomOtherAminoAcid draws uniformly from the canonical amino acids,
// excluding the original symbol.
func (c *MLMCollator) randomOtherAminoAcid(orig rune) rune {
	candidates := make([]rune, 0, len(alphabet.AminoAcids))
	for _, aa := range alphabet.AminoAcids {
		if aa != orig {
			candidates = append(candidates, aa)
		}
	}
	return candidates[c.rng.Intn(len(candidates))]
}
