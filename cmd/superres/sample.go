package main

import (
	"fmt"
	"image/png"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/tsawler/go-superres/vision/dataset"
	"github.com/tsawler/go-superres/vision/preprocessing"
)

var (
	sampleCount  int
	sampleOutDir string
)

var sampleCmd = &cobra.Command{
	Use:   "sample",
	Short: "Write example crop pairs back out as PNG files",
	Long: "Draws crop pairs from the configured dataset and writes them to " +
		"the output directory as <name>_lr.png / <name>_hr.png, useful for " +
		"eyeballing crop alignment.",
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

		if err := os.MkdirAll(sampleOutDir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}

		count := sampleCount
		if count > ds.Len() {
			count = ds.Len()
		}

		for i := 0; i < count; i++ {
			lrTensor, hrTensor, err := ds.GetItem(i)
			if err != nil {
				log.Warn().Int("index", i).Err(err).Msg("skipping sample")
				continue
			}

			name := fmt.Sprintf("sample_%03d", i)
			if err := writePNG(filepath.Join(sampleOutDir, name+"_lr.png"), lrTensor); err != nil {
				return err
			}
			if err := writePNG(filepath.Join(sampleOutDir, name+"_hr.png"), hrTensor); err != nil {
				return err
			}
		}

		fmt.Printf("wrote %d crop pairs to %s\n", count, sampleOutDir)
		return nil
	},
}

func writePNG(path string, t *preprocessing.Tensor) error {
	img, err := preprocessing.ToImage(t)
	if err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer file.Close()

	if err := png.Encode(file, img); err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return nil
}

func init() {
	sampleCmd.Flags().IntVarP(&sampleCount, "count", "n", 4, "Number of crop pairs to write")
	sampleCmd.Flags().StringVarP(&sampleOutDir, "out", "o", "samples", "Output directory")
	rootCmd.AddCommand(sampleCmd)
}
