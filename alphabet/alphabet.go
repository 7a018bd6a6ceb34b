// Package alphabet defines the residue alphabets used throughout the
// pipeline and a tokenizer that maps symbols to dense integer ids.
//
// An alphabet is an ordered string of unique symbols; a symbol's id is its
// position in that string. The control symbols below are reserved entries
// appended to the biological symbol set; they are not valid residues on
// their own.
package alphabet

import "fmt"

// Control symbols. These are single characters so that sequences with
// control markers can be assembled by plain string concatenation before
// tokenization.
const (
	Pad   = '!'
	Start = '@'
	Stop  = '*'
	Mask  = '#'
	Gap   = '-'
)

// AminoAcids is the canonical 20-letter amino-acid alphabet. Random
// replacements in masked-token corruption draw from this set.
const AminoAcids = "ACDEFGHIKLMNPQRSTVWY"

// Extended holds the ambiguous and rare residue codes that appear in
// real UniRef data but are not sampled as replacements.
const Extended = "BXZJOU"

// Protein returns the full protein alphabet: canonical residues, extended
// codes, the gap symbol, and all four control symbols.
func Protein() string {
	return AminoAcids + Extended + string(Gap) + string(Start) + string(Stop) + string(Mask) + string(Pad)
}

// UnknownSymbolError reports a symbol that is not part of the tokenizer's
// alphabet.
type UnknownSymbolError struct {
	Symbol rune
}

func (e *UnknownSymbolError) Error() string {
	return fmt.Sprintf("symbol %q is not in the alphabet", e.Symbol)
}

// Tokenizer is a bijective mapping between alphabet symbols and integer
// ids. The id of a symbol is its index in the alphabet string, so the
// mapping is fixed at construction and never changes.
type Tokenizer struct {
	alphabet []rune
	toIndex  map[rune]int
}

// NewTokenizer builds a tokenizer over the given alphabet. The alphabet
// must not contain duplicate symbols.
func NewTokenizer(alpha string) (*Tokenizer, error) {
	runes := []rune(alpha)
	if len(runes) == 0 {
		return nil, fmt.Errorf("alphabet is empty")
	}
	toIndex := make(map[rune]int, len(runes))
	for i, r := range runes {
		if _, ok := toIndex[r]; ok {
			return nil, fmt.Errorf("alphabet contains duplicate symbol %q", r)
		}
		toIndex[r] = i
	}
	return &Tokenizer{alphabet: runes, toIndex: toIndex}, nil
}

// Len returns the number of symbols in the alphabet.
func (t *Tokenizer) Len() int { return len(t.alphabet) }

// Alphabet returns the alphabet as a string, in id order.
func (t *Tokenizer) Alphabet() string { return string(t.alphabet) }

// Index returns the id for a single symbol, or an UnknownSymbolError.
func (t *Tokenizer) Index(r rune) (int, error) {
	i, ok := t.toIndex[r]
	if !ok {
		return 0, &UnknownSymbolError{Symbol: r}
	}
	return i, nil
}

// Tokenize maps every symbol of s to its id.
func (t *Tokenizer) Tokenize(s string) ([]int32, error) {
	out := make([]int32, 0, len(s))
	for _, r := range s {
		i, ok := t.toIndex[r]
		if !ok {
			return nil, &UnknownSymbolError{Symbol: r}
		}
		out = append(out, int32(i))
	}
	return out, nil
}

// Untokenize maps ids back to their symbols, inverting Tokenize exactly.
func (t *Tokenizer) Untokenize(ids []int32) (string, error) {
	out := make([]rune, 0, len(ids))
	for _, id := range ids {
		if id < 0 || int(id) >= len(t.alphabet) {
			return "", fmt.Errorf("token id %d out of range [0, %d)", id, len(t.alphabet))
		}
		out = append(out, t.alphabet[id])
	}
	return string(out), nil
}

// PadIndex returns the id of the PAD symbol, or -1 if the alphabet has none.
func (t *Tokenizer) PadIndex() int { return t.controlIndex(Pad) }

// StartIndex returns the id of the START symbol, or -1 if the alphabet has none.
func (t *Tokenizer) StartIndex() int { return t.controlIndex(Start) }

// StopIndex returns the id of the STOP symbol, or -1 if the alphabet has none.
func (t *Tokenizer) StopIndex() int { return t.controlIndex(Stop) }

// MaskIndex returns the id of the MASK symbol, or -1 if the alphabet has none.
func (t *Tokenizer) MaskIndex() int { return t.controlIndex(Mask) }

func (t *Tokenizer) controlIndex(r rune) int {
	if i, ok := t.toIndex[r]; ok {
		return i
	}
	return -1
}
