package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tsawler/go-superres/checkpoints"
)

var checkpointCmd = &cobra.Command{
	Use:   "checkpoint",
	Short: "Checkpoint operations",
}

var checkpointInspectCmd = &cobra.Command{
	Use:   "inspect PATH",
	Short: "Print a summary of a checkpoint file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]

		format := checkpoints.FormatJSON
		if strings.EqualFold(filepath.Ext(path), checkpoints.FormatBinary.Ext()) {
			format = checkpoints.FormatBinary
		}

		cp, err := checkpoints.NewSaver(format).LoadCheckpoint(path)
		if err != nil {
			return err
		}

		fmt.Printf("format:    %s\n", format)
		fmt.Printf("framework: %s %s\n", cp.Metadata.Framework, cp.Metadata.Version)
		if !cp.Metadata.CreatedAt.IsZero() {
			fmt.Printf("created:   %s\n", cp.Metadata.CreatedAt.Format("2006-01-02 15:04:05"))
		}
		fmt.Printf("epoch:     %d (step %d)\n", cp.TrainingState.Epoch, cp.TrainingState.Step)

		params := 0
		for _, w := range cp.Weights {
			params += len(w.Data)
		}
		fmt.Printf("weights:   %d tensors, %d parameters\n", len(cp.Weights), params)

		if cp.OptimizerState != nil {
			fmt.Printf("optimizer: %s, %d state tensors\n",
				cp.OptimizerState.Type, len(cp.OptimizerState.StateData))
		}
		return nil
	},
}

func init() {
	checkpointCmd.AddCommand(checkpointInspectCmd)
	rootCmd.AddCommand(checkpointCmd)
}
