package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tsawler/go-superres/vision/dataloader"
	"github.com/tsawler/go-superres/vision/dataset"
)

var benchmarkBatches int

var benchmarkCmd = &cobra.Command{
	Use:   "benchmark",
	Short: "Time batch loading over the configured dataset",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := setup()
		if err != nil {
			return err
		}

		ds, err := dataset.NewPairedDataset(
			cfg.Data.LowResDir, cfg.Data.HighResDir,
			cfg.Data.HighResCropSize, cfg.Data.Scale,
			dataset.WithLogger(log),
		)
		if err != nil {
			return err
		}
		if ds.Len() == 0 {
			return fmt.Errorf("dataset is empty")
		}

		loader, err := dataloader.NewPairLoader(ds, dataloader.Config{
			BatchSize:    cfg.Loader.BatchSize,
			Shuffle:      cfg.Loader.Shuffle,
			Seed:         cfg.Loader.Seed,
			NumWorkers:   cfg.Loader.NumWorkers,
			MaxCacheSize: cfg.Loader.MaxCacheSize,
			HRCropSize:   cfg.Data.HighResCropSize,
			Scale:        cfg.Data.Scale,
			Logger:       &log,
		})
		if err != nil {
			return err
		}

		start := time.Now()
		batches := 0
		samples := 0

		for batches < benchmarkBatches {
			batch, err := loader.NextBatch()
			if err != nil {
				return err
			}
			if batch == nil {
				loader.Reset()
				continue
			}
			batches++
			samples += batch.Size
		}

		elapsed := time.Since(start)
		fmt.Printf("loaded %d batches (%d samples) in %v (%.1f samples/s)\n",
			batches, samples, elapsed.Round(time.Millisecond),
			float64(samples)/elapsed.Seconds())
		fmt.Println(loader.Stats())
		return nil
	},
}

func init() {
	benchmarkCmd.Flags().IntVarP(&benchmarkBatches, "batches", "b", 10, "Number of batches to load")
	rootCmd.AddCommand(benchmarkCmd)
}
