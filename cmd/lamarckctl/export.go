package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"lamarck/pkg/lamarck"
)

func newExportCmd(g *globals) *cobra.Command {
	var experiment, outDir string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write generations.csv and learning.csv for an experiment",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := g.openClient()
			if err != nil {
				return err
			}
			defer func() {
				_ = client.Close()
			}()

			paths, err := client.Export(cmd.Context(), lamarck.ExportRequest{ExperimentID: experiment, OutDir: outDir})
			if err != nil {
				return err
			}
			for _, p := range paths {
				fmt.Fprintf(g.out, "exported %s\n", p)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&experiment, "experiment", "opt", "experiment id")
	cmd.Flags().StringVar(&outDir, "out", "", "output directory (default exports/<experiment>)")
	return cmd
}

func newPlotCmd(g *globals) *cobra.Command {
	var (
		experiment string
		outPath    string
		learnerID  string
		learning   bool
	)
	cmd := &cobra.Command{
		Use:   "plot",
		Short: "Render fitness, learning-delta or learner curves as PNG",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := g.openClient()
			if err != nil {
				return err
			}
			defer func() {
				_ = client.Close()
			}()

			path, err := client.Plot(cmd.Context(), lamarck.PlotRequest{
				ExperimentID: experiment,
				OutPath:      outPath,
				LearnerID:    learnerID,
				Learning:     learning,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(g.out, "plot written to %s\n", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&experiment, "experiment", "opt", "experiment id")
	cmd.Flags().StringVar(&outPath, "out", "fitness.png", "output PNG path")
	cmd.Flags().StringVar(&learnerID, "learner", "", "plot one learner's inner generations instead")
	cmd.Flags().BoolVar(&learning, "learning", false, "plot learning deltas instead of population fitness")
	return cmd
}
