package collate

import (
	"fmt"

	"github.com/protbatch/protbatch/alphabet"
)

// LMCollator prepares next-token prediction batches. Forward, the source
// is the sequence behind a START symbol and the target the sequence ahead
// of a STOP symbol; backwards, the sequence is reversed and the roles of
// START and STOP swap, so the model predicts the chain from its other end.
type LMCollator struct {
	tok       *alphabet.Tokenizer
	backwards bool
}

// NewLMCollator builds a next-token collator. The alphabet must contain
// the PAD, START and STOP symbols.
func NewLMCollator(tok *alphabet.Tokenizer, backwards bool) (*LMCollator, error) {
	if err := requireControls(tok); err != nil {
		return nil, err
	}
	return &LMCollator{tok: tok, backwards: backwards}, nil
}

// Collate implements Collator.
func (c *LMCollator) Collate(batch []Record) (*Result, error) {
	if len(batch) == 0 {
		return nil, fmt.Errorf("collate: %w", ErrEmptyBatch)
	}
	srcs := make([]string, len(batch))
	tgts := make([]string, len(batch))
	for i, rec := range batch {
		if c.backwards {
			r := reverse(rec.Sequence)
			srcs[i] = string(alphabet.Stop) + r
			tgts[i] = r + string(alphabet.Start)
		} else {
			srcs[i] = string(alphabet.Start) + rec.Sequence
			tgts[i] = rec.Sequence + string(alphabet.Stop)
		}
	}
	return tokenizeAndMask(c.tok, srcs, tgts)
}

// AncestorCollator prepares generation batches conditioned on each
// sequence's evolutionary ancestor: one positional stream carries the
// sequence, a STOP separator, and the ancestor, so a single forward pass
// predicts the sequence continuing into its ancestor.
type AncestorCollator struct {
	tok       *alphabet.Tokenizer
	backwards bool
}

// NewAncestorCollator builds an ancestor-conditioned collator. The
// alphabet must contain the PAD, START and STOP symbols.
func NewAncestorCollator(tok *alphabet.Tokenizer, backwards bool) (*AncestorCollator, error) {
	if err := requireControls(tok); err != nil {
		return nil, err
	}
	return &AncestorCollator{tok: tok, backwards: backwards}, nil
}

// Collate implements Collator. Each record must carry an Ancestor.
func (c *AncestorCollator) Collate(batch []Record) (*Result, error) {
	if len(batch) == 0 {
		return nil, fmt.Errorf("collate: %w", ErrEmptyBatch)
	}
	srcs := make([]string, len(batch))
	tgts := make([]string, len(batch))
	for i, rec := range batch {
		seq, anc := rec.Sequence, rec.Ancestor
		if c.backwards {
			seq = reverse(seq)
			anc = reverse(anc)
		}
		srcs[i] = string(alphabet.Start) + seq + string(alphabet.Stop) + anc
		tgts[i] = seq + string(alphabet.Stop) + anc + string(alphabet.Stop)
	}
	return tokenizeAndMask(c.tok, srcs, tgts)
}

func requireControls(tok *alphabet.Tokenizer) error {
	if tok == nil {
		return fmt.Errorf("tokenizer cannot be nil")
	}
	if tok.PadIndex() < 0 || tok.StartIndex() < 0 || tok.StopIndex() < 0 {
		return fmt.Errorf("alphabet must contain the PAD, START and STOP symbols")
	}
	return nil
}
