package sampler

import "fmt"

// LengthLookup maps a dataset index to the length of its sequence. It must
// be consistent with whatever the dataset returns for that index.
type LengthLookup func(idx int) int

// BudgetViolationError reports an index whose sequence cannot fit into any
// batch: even alone it would exceed the token budget.
type BudgetViolationError struct {
	Index     int
	Length    int
	MaxTokens int
}

func (e *BudgetViolationError) Error() string {
	return fmt.Sprintf("index %d with length %d exceeds the token budget %d on its own",
		e.Index, e.Length, e.MaxTokens)
}

// TokenBatcher packs an index stream into batches bounded by a token
// budget and a maximum batch size. The token cost of a batch is its size
// times the longest sequence in it, which is exactly the footprint of the
// padded tensor the collators build from it.
//
// Packing is greedy and single-pass: an index joins the current batch if
// admitting it keeps (size+1) * max(currentMax, itsLength) within
// MaxTokens, otherwise the current batch is emitted and the index opens the
// next one. A long sequence therefore caps how many later short sequences
// fit alongside it; that approximation is intentional and keeps packing
// streaming with no lookahead.
type TokenBatcher struct {
	lengths   LengthLookup
	maxTokens int
	maxBatch  int
}

// NewTokenBatcher builds a batcher over the given length lookup.
func NewTokenBatcher(lengths LengthLookup, maxTokens, maxBatch int) (*TokenBatcher, error) {
	if lengths == nil {
		return nil, fmt.Errorf("length lookup cannot be nil")
	}
	if maxTokens < 1 {
		return nil, fmt.Errorf("max tokens must be >= 1, got %d", maxTokens)
	}
	if maxBatch < 1 {
		return nil, fmt.Errorf("max batch must be >= 1, got %d", maxBatch)
	}
	return &TokenBatcher{lengths: lengths, maxTokens: maxTokens, maxBatch: maxBatch}, nil
}

// Batches packs indices in order. Every returned batch b satisfies
// len(b) <= MaxBatch and len(b) * max(lengths in b) <= MaxTokens; a
// trailing partial batch is always flushed, and empty batches are never
// emitted. An index that cannot fit even in a batch of one yields a
// BudgetViolationError.
func (b *TokenBatcher) Batches(indices []int) ([][]int, error) {
	var out [][]int
	var batch []int
	maxLen := 0

	for _, idx := range indices {
		length := b.lengths(idx)
		if length > b.maxTokens {
			return nil, &BudgetViolationError{Index: idx, Length: length, MaxTokens: b.maxTokens}
		}

		candidate := maxLen
		if length > candidate {
			candidate = length
		}
		if (len(batch)+1)*candidate <= b.maxTokens {
			batch = append(batch, idx)
			maxLen = candidate
			if len(batch) == b.maxBatch {
				out = append(out, batch)
				batch = nil
				maxLen = 0
			}
			continue
		}

		out = append(out, batch)
		batch = []int{idx}
		maxLen = length
	}

	if len(batch) > 0 {
		out = append(out, batch)
	}
	return out, nil
}
