package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tsawler/go-superres/vision/dataset"
)

var inspectVerify bool

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Summarize the configured paired dataset",
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

		fmt.Println(ds.String())

		names := ds.Names()
		show := len(names)
		if show > 5 {
			show = 5
		}
		for _, name := range names[:show] {
			fmt.Printf("  %s\n", name)
		}
		if len(names) > show {
			fmt.Printf("  ... and %d more\n", len(names)-show)
		}

		if inspectVerify {
			if err := ds.Verify(); err != nil {
				return fmt.Errorf("verification failed: %w", err)
			}
			fmt.Println("all high-res counterparts present")
		}

		return nil
	},
}

func init() {
	inspectCmd.Flags().BoolVar(&inspectVerify, "verify", false, "Check that every high-res counterpart exists")
	rootCmd.AddCommand(inspectCmd)
}
