// Package sampler produces length-aware index orderings and packs them
// into token-budgeted batches for training on variable-length sequences.
package sampler

import (
	"fmt"
	"math/rand"
	"sort"
)

// SortishSampler emits index permutations in which sequences of similar
// length sit close together. Indices are sorted by length once at
// construction and partitioned into fixed-size buckets; each epoch the
// contents of every bucket and the order of the buckets are reshuffled, so
// batches stay length-homogeneous without imposing a monotonic length
// curriculum across training.
//
// The sampler supports sharded consumption for distributed training: each
// of numShards ranks receives a disjoint round-robin slice of the epoch's
// stream, padded cyclically so that all shards see the same number of
// indices.
type SortishSampler struct {
	buckets    [][]int
	numShards  int
	rank       int
	numSamples int
	totalSize  int
	epoch      int
}

// NewSortishSampler builds an unsharded sampler over one length per
// dataset index.
func NewSortishSampler(lengths []int, bucketSize int) (*SortishSampler, error) {
	return NewShardedSortishSampler(lengths, bucketSize, 1, 0)
}

// NewShardedSortishSampler builds a sampler that yields the shard for the
// given rank out of numShards.
func NewShardedSortishSampler(lengths []int, bucketSize, numShards, rank int) (*SortishSampler, error) {
	if len(lengths) == 0 {
		return nil, fmt.Errorf("no sequence lengths provided")
	}
	if bucketSize < 1 {
		return nil, fmt.Errorf("bucket size must be >= 1, got %d", bucketSize)
	}
	if numShards < 1 {
		return nil, fmt.Errorf("number of shards must be >= 1, got %d", numShards)
	}
	if rank < 0 || rank >= numShards {
		return nil, fmt.Errorf("shard rank %d out of range [0, %d)", rank, numShards)
	}

	order := make([]int, len(lengths))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return lengths[order[a]] < lengths[order[b]]
	})

	var buckets [][]int
	for start := 0; start < len(order); start += bucketSize {
		end := start + bucketSize
		if end > len(order) {
			end = len(order)
		}
		buckets = append(buckets, order[start:end])
	}

	numSamples := (len(lengths) + numShards - 1) / numShards
	return &SortishSampler{
		buckets:    buckets,
		numShards:  numShards,
		rank:       rank,
		numSamples: numSamples,
		totalSize:  numSamples * numShards,
	}, nil
}

// Len returns the number of indices this shard yields per epoch.
func (s *SortishSampler) Len() int { return s.numSamples }

// Epoch returns the current epoch value.
func (s *SortishSampler) Epoch() int { return s.epoch }

// SetEpoch sets the seed for subsequent calls to Indices. The training
// loop is expected to call this once before each epoch.
func (s *SortishSampler) SetEpoch(epoch int) { s.epoch = epoch }

// Indices returns this shard's index stream for the current epoch. The
// shuffle is driven by a generator owned by this call and seeded only from
// the epoch value, so the same epoch always reproduces the same stream and
// no global random state is touched.
func (s *SortishSampler) Indices() []int {
	rng := rand.New(rand.NewSource(int64(s.epoch)))

	shuffled := make([][]int, len(s.buckets))
	for i, b := range s.buckets {
		c := make([]int, len(b))
		copy(c, b)
		rng.Shuffle(len(c), func(a, b int) { c[a], c[b] = c[b], c[a] })
		shuffled[i] = c
	}
	rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })

	flat := make([]int, 0, s.totalSize)
	for _, b := range shuffled {
		flat = append(flat, b...)
	}

	// Pad cyclically from the front so every shard gets numSamples indices.
	n := len(flat)
	for i := 0; len(flat) < s.totalSize; i++ {
		flat = append(flat, flat[i%n])
	}

	out := make([]int, 0, s.numSamples)
	for i := s.rank; i < s.totalSize; i += s.numShards {
		out = append(out, flat[i])
	}
	return out
}
