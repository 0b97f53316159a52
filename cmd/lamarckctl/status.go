package main

import (
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"lamarck/pkg/lamarck"
)

func newStatusCmd(g *globals) *cobra.Command {
	var experiment string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "List the checkpoints of an experiment, or all experiments",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := g.openClient()
			if err != nil {
				return err
			}
			defer func() {
				_ = client.Close()
			}()

			if g.storeKind != "memory" {
				if info, err := os.Stat(g.dbPath); err == nil {
					fmt.Fprintf(g.out, "store=%s path=%s size=%s\n", g.storeKind, g.dbPath, humanize.Bytes(uint64(info.Size())))
				}
			}

			if experiment == "" {
				ids, err := client.Experiments(cmd.Context())
				if err != nil {
					return err
				}
				if len(ids) == 0 {
					fmt.Fprintln(g.out, "no experiments")
					return nil
				}
				for _, id := range ids {
					fmt.Fprintf(g.out, "experiment=%s\n", id)
				}
				return nil
			}

			status, err := client.Status(cmd.Context(), experiment)
			if err != nil {
				return err
			}
			printStatus(g, status)
			return nil
		},
	}
	cmd.Flags().StringVar(&experiment, "experiment", "", "experiment id")
	return cmd
}

func printStatus(g *globals, status lamarck.StatusSummary) {
	hp := status.Hyperparameters
	fmt.Fprintf(g.out, "experiment=%s generation=%d/%d sessions=%d fitness_mode=%s\n",
		status.ExperimentID,
		status.GenerationIndex,
		hp.NumGenerations,
		len(status.Sessions),
		hp.FitnessMode,
	)
	fmt.Fprintf(g.out, "latest best=%.6f mean=%.6f min=%.6f std=%.6f\n",
		status.Latest.Best,
		status.Latest.Mean,
		status.Latest.Min,
		status.Latest.StdDev,
	)
	for _, cp := range status.Checkpoints {
		fmt.Fprintf(g.out, "checkpoint generation=%d session=%s written=%s\n",
			cp.GenerationIndex,
			cp.SessionID,
			humanize.Time(time.Unix(cp.CreatedAtUnix, 0)),
		)
	}
}

func newLearningCmd(g *globals) *cobra.Command {
	var (
		experiment string
		limit      int
	)
	cmd := &cobra.Command{
		Use:   "learning",
		Short: "Summarize the learning records of an experiment per generation",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := g.openClient()
			if err != nil {
				return err
			}
			defer func() {
				_ = client.Close()
			}()

			summaries, err := client.Learning(cmd.Context(), lamarck.LearningRequest{ExperimentID: experiment, Limit: limit})
			if err != nil {
				return err
			}
			if len(summaries) == 0 {
				fmt.Fprintln(g.out, "no learning records")
				return nil
			}
			for _, s := range summaries {
				fmt.Fprintf(g.out, "generation=%d learners=%d improved=%d mean_before=%.6f mean_after=%.6f mean_delta=%.6f best_delta=%.6f\n",
					s.GenerationIndex, s.Count, s.Improved, s.MeanBefore, s.MeanAfter, s.MeanDelta, s.BestDelta)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&experiment, "experiment", "opt", "experiment id")
	cmd.Flags().IntVar(&limit, "limit", 0, "show only the last N generations (0 shows all)")
	return cmd
}
