// Package collate turns batches of raw sequence records into aligned,
// padded integer tensors plus the loss and validity masks a training loop
// consumes. Every collator implements the single Collator interface; the
// variants differ only in how they assemble source, target and mask from
// the raw strings.
package collate

import (
	"errors"
	"fmt"

	"github.com/gomlx/gomlx/pkg/core/tensors"

	"github.com/protbatch/protbatch/alphabet"
	"github.com/protbatch/protbatch/geometry"
)

// ErrEmptyBatch is returned when zero usable sequences reach a collator.
var ErrEmptyBatch = errors.New("no usable sequences in batch")

// ErrLengthMismatch is returned when an unpadded batch mixes sequence
// lengths.
var ErrLengthMismatch = errors.New("sequences in an unpadded batch must share one length")

// Record is one dataset example. Sequence is always set; Ancestor and
// Structure are filled only by datasets that carry them, and collators
// that do not use them ignore them.
type Record struct {
	Sequence  string
	Ancestor  string
	Structure *geometry.Structure
}

// Result carries the tensors a collator produced. Which fields are set
// depends on the collator: SimpleCollator fills Tokens; the source/target
// collators fill Src, Tgt and Mask; StructureCollator additionally fills
// Nodes, Edges, Connections and EdgeMask.
type Result struct {
	Tokens *IntTensor

	Src  *IntTensor
	Tgt  *IntTensor
	Mask *FloatTensor

	Nodes       *FloatTensor
	Edges       *FloatTensor
	Connections *IntTensor
	EdgeMask    *FloatTensor
}

// InputTensors returns the model-input tensors in gomlx form: the source
// (or plain token) tensor followed by any structural tensors.
func (r *Result) InputTensors() []*tensors.Tensor {
	var out []*tensors.Tensor
	switch {
	case r.Src != nil:
		out = append(out, r.Src.ToGomlx())
	case r.Tokens != nil:
		out = append(out, r.Tokens.ToGomlx())
	}
	if r.Nodes != nil {
		out = append(out, r.Nodes.ToGomlx(), r.Edges.ToGomlx(), r.Connections.ToGomlx(), r.EdgeMask.ToGomlx())
	}
	return out
}

// LabelTensors returns the target and mask tensors in gomlx form, or nil
// for collators that produce no targets.
func (r *Result) LabelTensors() []*tensors.Tensor {
	var out []*tensors.Tensor
	if r.Tgt != nil {
		out = append(out, r.Tgt.ToGomlx())
	}
	if r.Mask != nil {
		out = append(out, r.Mask.ToGomlx())
	}
	return out
}

// Collator prepares a batch of records for model consumption. Callers must
// not pass empty batches; all collators reject them with ErrEmptyBatch.
type Collator interface {
	Collate(batch []Record) (*Result, error)
}

// SimpleCollator tokenizes a batch and stacks it into one rectangular
// tensor. With Pad set, shorter sequences are filled with the PAD id up to
// the longest sequence in the batch; without it, all sequences must
// already share one length.
type SimpleCollator struct {
	tok *alphabet.Tokenizer
	pad bool
}

// NewSimpleCollator builds a collator over the given tokenizer. Padding
// requires the alphabet to contain the PAD symbol.
func NewSimpleCollator(tok *alphabet.Tokenizer, pad bool) (*SimpleCollator, error) {
	if tok == nil {
		return nil, fmt.Errorf("tokenizer cannot be nil")
	}
	if pad && tok.PadIndex() < 0 {
		return nil, fmt.Errorf("padding requires the PAD symbol in the alphabet")
	}
	return &SimpleCollator{tok: tok, pad: pad}, nil
}

// Collate implements Collator.
func (c *SimpleCollator) Collate(batch []Record) (*Result, error) {
	if len(batch) == 0 {
		return nil, fmt.Errorf("collate: %w", ErrEmptyBatch)
	}
	seqs := make([][]int32, len(batch))
	for i, rec := range batch {
		ids, err := c.tok.Tokenize(rec.Sequence)
		if err != nil {
			return nil, fmt.Errorf("tokenizing sequence %d: %w", i, err)
		}
		seqs[i] = ids
	}
	if c.pad {
		return &Result{Tokens: padTokens(seqs, int32(c.tok.PadIndex()))}, nil
	}
	stacked, err := stackTokens(seqs)
	if err != nil {
		return nil, err
	}
	return &Result{Tokens: stacked}, nil
}

// padTokens stacks tokenized sequences into a (batch, maxLen) tensor,
// filling the tail of shorter rows with fill.
func padTokens(seqs [][]int32, fill int32) *IntTensor {
	maxLen := 0
	for _, s := range seqs {
		if len(s) > maxLen {
			maxLen = len(s)
		}
	}
	t := NewIntTensor(len(seqs), maxLen)
	if fill != 0 {
		t.Fill(fill)
	}
	for r, s := range seqs {
		copy(t.Data[r*maxLen:], s)
	}
	return t
}

// padFloats stacks float rows into a (batch, maxLen) tensor, padding with
// fill.
func padFloats(rows [][]float32, fill float32) *FloatTensor {
	maxLen := 0
	for _, r := range rows {
		if len(r) > maxLen {
			maxLen = len(r)
		}
	}
	t := NewFloatTensor(len(rows), maxLen)
	if fill != 0 {
		for i := range t.Data {
			t.Data[i] = fill
		}
	}
	for r, row := range rows {
		copy(t.Data[r*maxLen:], row)
	}
	return t
}

// stackTokens stacks equal-length sequences without padding.
func stackTokens(seqs [][]int32) (*IntTensor, error) {
	length := len(seqs[0])
	for i, s := range seqs {
		if len(s) != length {
			return nil, fmt.Errorf("sequence %d has length %d, batch expects %d: %w",
				i, len(s), length, ErrLengthMismatch)
		}
	}
	t := NewIntTensor(len(seqs), length)
	for r, s := range seqs {
		copy(t.Data[r*length:], s)
	}
	return t, nil
}

// reverse returns s with its symbols in reverse order.
func reverse(s string) string {
	runes := []rune(s)
	for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
		runes[i], runes[j] = runes[j], runes[i]
	}
	return string(runes)
}

// tokenizeAndMask tokenizes aligned source/target string pairs, pads both
// with PAD and builds an all-ones loss mask over the real target positions
// (padding columns carry mask 0).
func tokenizeAndMask(tok *alphabet.Tokenizer, srcs, tgts []string) (*Result, error) {
	srcIDs := make([][]int32, len(srcs))
	tgtIDs := make([][]int32, len(tgts))
	masks := make([][]float32, len(tgts))
	for i := range srcs {
		var err error
		if srcIDs[i], err = tok.Tokenize(srcs[i]); err != nil {
			return nil, fmt.Errorf("tokenizing source %d: %w", i, err)
		}
		if tgtIDs[i], err = tok.Tokenize(tgts[i]); err != nil {
			return nil, fmt.Errorf("tokenizing target %d: %w", i, err)
		}
		m := make([]float32, len(tgtIDs[i]))
		for j := range m {
			m[j] = 1
		}
		masks[i] = m
	}
	pad := int32(tok.PadIndex())
	return &Result{
		Src:  padTokens(srcIDs, pad),
		Tgt:  padTokens(tgtIDs, pad),
		Mask: padFloats(masks, 0),
	}, nil
}
