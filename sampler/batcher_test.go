package sampler

import (
	"errors"
	"math/rand"
	"testing"
)

func lookupFor(lengths []int) LengthLookup {
	return func(idx int) int { return lengths[idx] }
}

func TestTokenBatcherWorkedTrace(t *testing.T) {
	// Sorted-ascending lengths; the greedy rule admits an index while
	// (size+1)*max(current, candidate) stays within the budget of 8.
	lengths := []int{1, 1, 2, 3, 4, 5, 6}
	b, err := NewTokenBatcher(lookupFor(lengths), 8, 10)
	if err != nil {
		t.Fatalf("NewTokenBatcher failed: %v", err)
	}

	batches, err := b.Batches([]int{0, 1, 2, 3, 4, 5, 6})
	if err != nil {
		t.Fatalf("Batches failed: %v", err)
	}

	want := [][]int{{0, 1, 2}, {3, 4}, {5}, {6}}
	if len(batches) != len(want) {
		t.Fatalf("expected %d batches, got %d: %v", len(want), len(batches), batches)
	}
	for i := range want {
		if len(batches[i]) != len(want[i]) {
			t.Fatalf("batch %d: got %v want %v", i, batches[i], want[i])
		}
		for j := range want[i] {
			if batches[i][j] != want[i][j] {
				t.Fatalf("batch %d: got %v want %v", i, batches[i], want[i])
			}
		}
	}
}

func TestTokenBatcherInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	lengths := make([]int, 200)
	indices := make([]int, 200)
	for i := range lengths {
		lengths[i] = 1 + rng.Intn(50)
		indices[i] = i
	}
	rng.Shuffle(len(indices), func(a, b int) { indices[a], indices[b] = indices[b], indices[a] })

	const maxTokens, maxBatch = 120, 16
	b, err := NewTokenBatcher(lookupFor(lengths), maxTokens, maxBatch)
	if err != nil {
		t.Fatalf("NewTokenBatcher failed: %v", err)
	}
	batches, err := b.Batches(indices)
	if err != nil {
		t.Fatalf("Batches failed: %v", err)
	}

	seen := 0
	for bi, batch := range batches {
		if len(batch) == 0 {
			t.Fatalf("batch %d is empty", bi)
		}
		if len(batch) > maxBatch {
			t.Fatalf("batch %d has %d items, cap is %d", bi, len(batch), maxBatch)
		}
		maxLen := 0
		for _, idx := range batch {
			if lengths[idx] > maxLen {
				maxLen = lengths[idx]
			}
		}
		if len(batch)*maxLen > maxTokens {
			t.Fatalf("batch %d over budget: %d*%d > %d", bi, len(batch), maxLen, maxTokens)
		}
		seen += len(batch)
	}
	// Trailing batch is flushed: every input index is packed exactly once.
	if seen != len(indices) {
		t.Fatalf("packed %d indices, want %d", seen, len(indices))
	}

	// Input order is preserved across batch boundaries.
	pos := 0
	for _, batch := range batches {
		for _, idx := range batch {
			if idx != indices[pos] {
				t.Fatalf("order not preserved at position %d: got %d want %d", pos, idx, indices[pos])
			}
			pos++
		}
	}
}

func TestTokenBatcherBudgetViolation(t *testing.T) {
	lengths := []int{4, 12, 3}
	b, err := NewTokenBatcher(lookupFor(lengths), 10, 4)
	if err != nil {
		t.Fatalf("NewTokenBatcher failed: %v", err)
	}
	_, err = b.Batches([]int{0, 1, 2})
	if err == nil {
		t.Fatalf("expected budget violation for single over-long sequence")
	}
	var bv *BudgetViolationError
	if !errors.As(err, &bv) {
		t.Fatalf("expected BudgetViolationError, got %T: %v", err, err)
	}
	if bv.Index != 1 || bv.Length != 12 {
		t.Fatalf("unexpected violation detail: %+v", bv)
	}
}

func TestTokenBatcherMaxBatchCap(t *testing.T) {
	lengths := make([]int, 10)
	indices := make([]int, 10)
	for i := range lengths {
		lengths[i] = 1
		indices[i] = i
	}
	b, err := NewTokenBatcher(lookupFor(lengths), 1000, 4)
	if err != nil {
		t.Fatalf("NewTokenBatcher failed: %v", err)
	}
	batches, err := b.Batches(indices)
	if err != nil {
		t.Fatalf("Batches failed: %v", err)
	}
	wantSizes := []int{4, 4, 2}
	if len(batches) != len(wantSizes) {
		t.Fatalf("expected %d batches, got %d", len(wantSizes), len(batches))
	}
	for i, w := range wantSizes {
		if len(batches[i]) != w {
			t.Fatalf("batch %d has size %d, want %d", i, len(batches[i]), w)
		}
	}
}

func TestTokenBatcherRejectsBadArguments(t *testing.T) {
	if _, err := NewTokenBatcher(nil, 10, 1); err == nil {
		t.Fatalf("expected error for nil lookup")
	}
	if _, err := NewTokenBatcher(lookupFor([]int{1}), 0, 1); err == nil {
		t.Fatalf("expected error for zero token budget")
	}
	if _, err := NewTokenBatcher(lookupFor([]int{1}), 10, 0); err == nil {
		t.Fatalf("expected error for zero batch cap")
	}
}
