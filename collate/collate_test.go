package collate

import (
	"errors"
	"testing"

	"github.com/protbatch/protbatch/alphabet"
)

func proteinTokenizer(t *testing.T) *alphabet.Tokenizer {
	t.Helper()
	tok, err := alphabet.NewTokenizer(alphabet.Protein())
	if err != nil {
		t.Fatalf("NewTokenizer failed: %v", err)
	}
	return tok
}

func records(seqs ...string) []Record {
	out := make([]Record, len(seqs))
	for i, s := range seqs {
		out[i] = Record{Sequence: s}
	}
	return out
}

func TestSimpleCollatorPads(t *testing.T) {
	tok := proteinTokenizer(t)
	c, err := NewSimpleCollator(tok, true)
	if err != nil {
		t.Fatalf("NewSimpleCollator failed: %v", err)
	}

	res, err := c.Collate(records("MKV", "ACDEF", "G"))
	if err != nil {
		t.Fatalf("Collate failed: %v", err)
	}
	tks := res.Tokens
	if tks.Dims[0] != 3 || tks.Dims[1] != 5 {
		t.Fatalf("unexpected shape %v, want [3 5]", tks.Dims)
	}

	pad := int32(tok.PadIndex())
	wantRows := []struct {
		seq string
		ell int
	}{{"MKV", 3}, {"ACDEF", 5}, {"G", 1}}
	for r, w := range wantRows {
		ids, err := tok.Tokenize(w.seq)
		if err != nil {
			t.Fatalf("Tokenize failed: %v", err)
		}
		row := tks.Row(r)
		for j := 0; j < w.ell; j++ {
			if row[j] != ids[j] {
				t.Fatalf("row %d position %d: got %d want %d", r, j, row[j], ids[j])
			}
		}
		for j := w.ell; j < 5; j++ {
			if row[j] != pad {
				t.Fatalf("row %d position %d should be PAD, got %d", r, j, row[j])
			}
		}
	}
}

func TestSimpleCollatorPaddingIdempotence(t *testing.T) {
	tok := proteinTokenizer(t)
	padded, err := NewSimpleCollator(tok, true)
	if err != nil {
		t.Fatalf("NewSimpleCollator failed: %v", err)
	}
	unpadded, err := NewSimpleCollator(tok, false)
	if err != nil {
		t.Fatalf("NewSimpleCollator failed: %v", err)
	}

	batch := records("MKVA", "ACDE", "GHIL")
	a, err := padded.Collate(batch)
	if err != nil {
		t.Fatalf("padded Collate failed: %v", err)
	}
	b, err := unpadded.Collate(batch)
	if err != nil {
		t.Fatalf("unpadded Collate failed: %v", err)
	}
	if len(a.Tokens.Data) != len(b.Tokens.Data) {
		t.Fatalf("size mismatch: %d vs %d", len(a.Tokens.Data), len(b.Tokens.Data))
	}
	for i := range a.Tokens.Data {
		if a.Tokens.Data[i] != b.Tokens.Data[i] {
			t.Fatalf("padded and unpadded outputs differ at %d", i)
		}
	}
}

func TestSimpleCollatorLengthMismatch(t *testing.T) {
	tok := proteinTokenizer(t)
	c, err := NewSimpleCollator(tok, false)
	if err != nil {
		t.Fatalf("NewSimpleCollator failed: %v", err)
	}
	_, err = c.Collate(records("MKV", "AC"))
	if !errors.Is(err, ErrLengthMismatch) {
		t.Fatalf("expected ErrLengthMismatch, got %v", err)
	}
}

func TestSimpleCollatorUnknownSymbol(t *testing.T) {
	tok := proteinTokenizer(t)
	c, err := NewSimpleCollator(tok, true)
	if err != nil {
		t.Fatalf("NewSimpleCollator failed: %v", err)
	}
	_, err = c.Collate(records("MK9"))
	var unknown *alphabet.UnknownSymbolError
	if !errors.As(err, &unknown) {
		t.Fatalf("expected UnknownSymbolError, got %v", err)
	}
}

func TestCollatorsRejectEmptyBatch(t *testing.T) {
	tok := proteinTokenizer(t)
	simple, _ := NewSimpleCollator(tok, true)
	lm, _ := NewLMCollator(tok, false)
	anc, _ := NewAncestorCollator(tok, false)

	for name, c := range map[string]Collator{"simple": simple, "lm": lm, "ancestor": anc} {
		if _, err := c.Collate(nil); !errors.Is(err, ErrEmptyBatch) {
			t.Fatalf("%s: expected ErrEmptyBatch, got %v", name, err)
		}
	}
}

func TestPadCollatorRequiresPadSymbol(t *testing.T) {
	tok, err := alphabet.NewTokenizer(alphabet.AminoAcids)
	if err != nil {
		t.Fatalf("NewTokenizer failed: %v", err)
	}
	if _, err := NewSimpleCollator(tok, true); err == nil {
		t.Fatalf("expected error for alphabet without PAD")
	}
	if _, err := NewSimpleCollator(tok, false); err != nil {
		t.Fatalf("unpadded collator should not require PAD: %v", err)
	}
}
