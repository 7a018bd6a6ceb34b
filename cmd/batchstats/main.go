// Command batchstats reports how well the length-bucketed sampler and the
// token-budget batcher pack a dataset: batches per epoch, batch sizes, and
// how much of each padded tensor is real tokens versus padding. It can
// also render the distributions as PNG plots.
//
// Examples:
//
//	batchstats -csv 'assets/uniref/*.csv' -max-tokens 16384 -max-batch 64
//	batchstats -fasta assets/consensus.fasta -epochs 3 -plot -out output
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/protbatch/protbatch/dataset"
	"github.com/protbatch/protbatch/sampler"
)

func main() {
	var (
		csvPattern = flag.String("csv", "", "glob pattern of CSV files with a sequence column")
		seqCol     = flag.String("seq-col", "sequence", "name of the sequence column")
		split      = flag.String("split", "", "only use rows whose split column equals this value")
		fastaPath  = flag.String("fasta", "", "path to a FASTA file (alternative to -csv)")
		splitsPath = flag.String("splits", "", "splits.json for the FASTA dataset")
		bucketSize = flag.Int("bucket-size", 1000, "sampler bucket size")
		maxTokens  = flag.Int("max-tokens", 16384, "token budget per batch")
		maxBatch   = flag.Int("max-batch", 100, "maximum examples per batch")
		epochs     = flag.Int("epochs", 1, "number of epochs to simulate")
		numShards  = flag.Int("shards", 1, "number of distributed shards")
		shardRank  = flag.Int("rank", 0, "shard rank to simulate")
		makePlots  = flag.Bool("plot", false, "write packing plots as PNG")
		outDir     = flag.String("out", "output", "directory for plots")
		verbose    = flag.Bool("v", false, "enable debug logging")
	)
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()
	if !*verbose {
		log = log.Level(zerolog.InfoLevel)
	}

	lengths, name, err := loadLengths(*csvPattern, *seqCol, *split, *fastaPath, *splitsPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load dataset")
	}
	log.Info().Str("dataset", name).Int("sequences", len(lengths)).Msg("length table ready")

	srt, err := sampler.NewShardedSortishSampler(lengths, *bucketSize, *numShards, *shardRank)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build sampler")
	}
	btc, err := sampler.NewTokenBatcher(func(i int) int { return lengths[i] }, *maxTokens, *maxBatch)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build batcher")
	}

	var fills plotter.Values
	var sizeByLen plotter.XYs
	for epoch := 0; epoch < *epochs; epoch++ {
		srt.SetEpoch(epoch)
		batches, err := btc.Batches(srt.Indices())
		if err != nil {
			log.Fatal().Err(err).Int("epoch", epoch).Msg("packing failed")
		}

		totalTokens, realTokens, totalExamples := 0, 0, 0
		for _, batch := range batches {
			maxLen, sum := 0, 0
			for _, idx := range batch {
				l := lengths[idx]
				sum += l
				if l > maxLen {
					maxLen = l
				}
			}
			totalTokens += len(batch) * maxLen
			realTokens += sum
			totalExamples += len(batch)
			fills = append(fills, float64(sum)/float64(len(batch)*maxLen))
			sizeByLen = append(sizeByLen, plotter.XY{X: float64(maxLen), Y: float64(len(batch))})
			log.Debug().Int("size", len(batch)).Int("max_len", maxLen).Msg("batch")
		}

		log.Info().
			Int("epoch", epoch).
			Int("batches", len(batches)).
			Float64("mean_batch_size", float64(totalExamples)/float64(len(batches))).
			Float64("fill", float64(realTokens)/float64(totalTokens)).
			Msg("epoch packed")
	}

	if *makePlots {
		if err := os.MkdirAll(*outDir, 0o755); err != nil {
			log.Fatal().Err(err).Msg("failed to create output directory")
		}
		if err := plotPacking(*outDir, fills, sizeByLen); err != nil {
			log.Fatal().Err(err).Msg("failed to generate plots")
		}
		log.Info().Str("dir", *outDir).Msg("packing plots written")
	}
}

// loadLengths builds the length table from whichever source was selected.
func loadLengths(csvPattern, seqCol, split, fastaPath, splitsPath string) ([]int, string, error) {
	switch {
	case csvPattern != "" && fastaPath != "":
		return nil, "", fmt.Errorf("choose either -csv or -fasta, not both")
	case csvPattern != "":
		ds, err := dataset.NewCSVDataset(csvPattern, seqCol, "", split)
		if err != nil {
			return nil, "", err
		}
		return ds.Lengths(), ds.Name(), nil
	case fastaPath != "":
		ds, err := dataset.NewFastaDataset(fastaPath)
		if err != nil {
			return nil, "", err
		}
		if splitsPath != "" && split != "" {
			if err := ds.UseSplit(splitsPath, split); err != nil {
				return nil, "", err
			}
		}
		return ds.Lengths(), ds.Name(), nil
	default:
		return nil, "", fmt.Errorf("one of -csv or -fasta is required")
	}
}

// plotPacking writes a histogram of per-batch fill ratios and a scatter of
// batch size against batch max length.
func plotPacking(outDir string, fills plotter.Values, sizeByLen plotter.XYs) error {
	p := plot.New()
	p.Title.Text = "Per-batch fill ratio (real tokens / padded tokens)"
	p.X.Label.Text = "fill ratio"
	p.Y.Label.Text = "batches"
	hist, err := plotter.NewHist(fills, 20)
	if err != nil {
		return err
	}
	p.Add(hist)
	if err := p.Save(6*vg.Inch, 4*vg.Inch, filepath.Join(outDir, "fill_hist.png")); err != nil {
		return err
	}

	p = plot.New()
	p.Title.Text = "Batch size vs. max sequence length"
	p.X.Label.Text = "max length in batch"
	p.Y.Label.Text = "batch size"
	scatter, err := plotter.NewScatter(sizeByLen)
	if err != nil {
		return err
	}
	scatter.GlyphStyle.Radius = vg.Points(1.8)
	p.Add(scatter)
	p.Add(plotter.NewGrid())
	return p.Save(6*vg.Inch, 4*vg.Inch, filepath.Join(outDir, "size_by_length.png"))
}
