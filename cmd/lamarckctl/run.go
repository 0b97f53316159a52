package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"lamarck/internal/config"
	"lamarck/internal/evo"
	"lamarck/internal/telemetry"
	"lamarck/pkg/lamarck"
)

type runFlags struct {
	experiment  string
	configPath  string
	seed        uint64
	pop         int
	offspring   int
	gens        int
	fitnessMode string
	workers     int
	metricsAddr string
}

func newRunCmd(g *globals) *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run an experiment, resuming from its latest checkpoint when one exists",
		RunE: func(cmd *cobra.Command, args []string) error {
			exp, err := resolveExperiment(cmd, f)
			if err != nil {
				return err
			}
			override := 0
			if cmd.Flags().Changed("gens") {
				override = f.gens
			}
			return runExperiment(cmd.Context(), g, exp, override, f.metricsAddr)
		},
	}
	bindRunFlags(cmd.Flags(), f)
	return cmd
}

func bindRunFlags(fs *pflag.FlagSet, f *runFlags) {
	fs.StringVar(&f.experiment, "experiment", "opt", "experiment id")
	fs.StringVar(&f.configPath, "config", "", "experiment config file (.yaml, .yml or .toml)")
	fs.Uint64Var(&f.seed, "seed", 28, "random seed for a new experiment")
	fs.IntVar(&f.pop, "pop", 50, "population size")
	fs.IntVar(&f.offspring, "offspring", 25, "offspring per generation")
	fs.IntVar(&f.gens, "gens", 100, "generation target; also extends a resumed experiment")
	fs.StringVar(&f.fitnessMode, "fitness-mode", "delta", "fitness mode: delta|after|plain")
	fs.IntVar(&f.workers, "workers", 0, "parallel simulations (0 uses GOMAXPROCS)")
	fs.StringVar(&f.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
}

// resolveExperiment layers defaults, the config file and explicitly set
// flags, in that order.
func resolveExperiment(cmd *cobra.Command, f *runFlags) (config.Experiment, error) {
	exp := config.DefaultExperiment()
	if f.configPath != "" {
		loaded, err := config.Load(f.configPath)
		if err != nil {
			return config.Experiment{}, err
		}
		exp = loaded
	}
	cmd.Flags().Visit(func(flag *pflag.Flag) {
		switch flag.Name {
		case "experiment":
			exp.ExperimentID = f.experiment
		case "seed":
			exp.Seed = f.seed
		case "pop":
			exp.PopulationSize = f.pop
		case "offspring":
			exp.OffspringSize = f.offspring
		case "gens":
			exp.NumGenerations = f.gens
		case "fitness-mode":
			exp.FitnessMode = f.fitnessMode
		case "workers":
			exp.Workers = f.workers
		}
	})
	return exp, exp.Validate()
}

func runExperiment(ctx context.Context, g *globals, exp config.Experiment, generationsOverride int, metricsAddr string) error {
	client, err := g.openClient()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	req := lamarck.RunRequest{Experiment: exp, GenerationsOverride: generationsOverride}
	if metricsAddr != "" {
		metrics := telemetry.NewMetrics()
		req.Observers = append(req.Observers, metrics)
		serveCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go func() {
			if err := metrics.Serve(serveCtx, metricsAddr, g.logger); err != nil {
				g.logger.Error("metrics server stopped", "error", err)
			}
		}()
	}

	summary, err := client.Run(ctx, req)
	if err != nil {
		if errors.Is(err, evo.ErrIncompatibleState) {
			return fmt.Errorf("experiment %q cannot be resumed from %s: %w", exp.ExperimentID, g.dbPath, err)
		}
		return err
	}
	fmt.Fprintf(g.out, "experiment=%s session=%s resumed=%t generation=%d state=%s best_fitness=%.6f\n",
		summary.ExperimentID,
		summary.SessionID,
		summary.Resumed,
		summary.GenerationIndex,
		summary.State,
		summary.FinalBestFitness,
	)
	return nil
}
