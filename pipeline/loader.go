// Package pipeline composes the sampler, the token batcher, a dataset and
// a collator into a gomlx train.Dataset: each Yield produces one collated
// batch as gomlx tensors, and epochs are driven through Reset.
package pipeline

import (
	"fmt"
	"io"

	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/train"
	"github.com/rs/zerolog"

	"github.com/protbatch/protbatch/collate"
	"github.com/protbatch/protbatch/sampler"
)

// Dataset is the record source the loader pulls from. Implementations
// must be index-aligned with the length table the sampler and batcher
// were built from.
type Dataset interface {
	Len() int
	Record(i int) (collate.Record, error)
}

// Loader walks one epoch of token-budgeted batches at a time. The order
// of batches is determined by the sampler's epoch; Reset moves to the
// next epoch, SetEpoch selects one explicitly.
type Loader struct {
	data     Dataset
	sortish  *sampler.SortishSampler
	batcher  *sampler.TokenBatcher
	collator collate.Collator

	log  zerolog.Logger
	name string

	epoch   int
	built   bool
	batches [][]int
	cursor  int
}

// Option configures a Loader.
type Option func(*Loader)

// WithLogger attaches a structured logger; without it the loader is
// silent.
func WithLogger(log zerolog.Logger) Option {
	return func(l *Loader) { l.log = log }
}

// WithName overrides the dataset name reported to the training loop.
func WithName(name string) Option {
	return func(l *Loader) { l.name = name }
}

// NewLoader builds a loader over the given components.
func NewLoader(data Dataset, sortish *sampler.SortishSampler, batcher *sampler.TokenBatcher,
	collator collate.Collator, opts ...Option) (*Loader, error) {
	if data == nil {
		return nil, fmt.Errorf("dataset cannot be nil")
	}
	if sortish == nil {
		return nil, fmt.Errorf("sampler cannot be nil")
	}
	if batcher == nil {
		return nil, fmt.Errorf("batcher cannot be nil")
	}
	if collator == nil {
		return nil, fmt.Errorf("collator cannot be nil")
	}
	l := &Loader{
		data:     data,
		sortish:  sortish,
		batcher:  batcher,
		collator: collator,
		log:      zerolog.Nop(),
		name:     "protbatch",
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

var _ train.Dataset = (*Loader)(nil)

// Name implements train.Dataset.
func (l *Loader) Name() string { return l.name }

// Epoch returns the epoch the loader is currently serving.
func (l *Loader) Epoch() int { return l.epoch }

// SetEpoch selects the epoch for the next iteration and discards any
// partially consumed one.
func (l *Loader) SetEpoch(epoch int) {
	l.epoch = epoch
	l.built = false
	l.batches = nil
	l.cursor = 0
}

// Reset implements train.Dataset. After an epoch has been served (fully
// or in part), Reset advances to the next one; calling it before the
// first Yield keeps epoch 0.
func (l *Loader) Reset() {
	if l.built {
		l.SetEpoch(l.epoch + 1)
		return
	}
	l.cursor = 0
}

// Yield implements train.Dataset: it returns the next batch of the
// current epoch as input and label tensors, and io.EOF once the epoch is
// exhausted.
func (l *Loader) Yield() (spec any, inputs []*tensors.Tensor, labels []*tensors.Tensor, err error) {
	if !l.built {
		if err := l.build(); err != nil {
			return nil, nil, nil, err
		}
	}
	if l.cursor >= len(l.batches) {
		return nil, nil, nil, io.EOF
	}
	indices := l.batches[l.cursor]
	l.cursor++

	records := make([]collate.Record, len(indices))
	for i, idx := range indices {
		rec, err := l.data.Record(idx)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("fetching record %d: %w", idx, err)
		}
		records[i] = rec
	}
	res, err := l.collator.Collate(records)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("collating batch %d: %w", l.cursor-1, err)
	}
	return nil, res.InputTensors(), res.LabelTensors(), nil
}

// build packs the current epoch's index stream into batches.
func (l *Loader) build() error {
	l.sortish.SetEpoch(l.epoch)
	indices := l.sortish.Indices()
	batches, err := l.batcher.Batches(indices)
	if err != nil {
		return fmt.Errorf("packing epoch %d: %w", l.epoch, err)
	}
	l.batches = batches
	l.cursor = 0
	l.built = true
	l.log.Debug().
		Int("epoch", l.epoch).
		Int("indices", len(indices)).
		Int("batches", len(batches)).
		Msg("epoch packed")
	return nil
}
