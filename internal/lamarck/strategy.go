package lamarck

import (
	"context"
	"fmt"
	"log/slog"

	"lamarck/internal/evo"
	"lamarck/internal/genotype"
	"lamarck/internal/model"
	"lamarck/internal/physics"
	"lamarck/internal/rng"
	"lamarck/internal/tuning"
)

type Evaluator interface {
	Evaluate(ctx context.Context, stream *rng.Stream, generation int, genomes []model.Genome) (evo.Evaluation, error)
}

// Strategy couples the genome library, an evaluator and tournament selection.
type Strategy struct {
	evo.TournamentSelection
	Library   *genotype.Library
	Evaluator Evaluator
}

func (s *Strategy) Evaluate(ctx context.Context, stream *rng.Stream, generation int, genomes []model.Genome) (evo.Evaluation, error) {
	return s.Evaluator.Evaluate(ctx, stream, generation, genomes)
}

func (s *Strategy) Crossover(stream *rng.Stream, parents []model.Genome) (model.Genome, error) {
	return s.Library.Crossover(stream.Rand, parents)
}

func (s *Strategy) Mutate(stream *rng.Stream, g model.Genome) (model.Genome, error) {
	return s.Library.Mutate(stream.Rand, g)
}

func (s *Strategy) Registries() (map[string]string, error) {
	return s.Library.Registries()
}

func (s *Strategy) RestoreRegistries(registries map[string]string) error {
	return s.Library.RestoreRegistries(registries)
}

// Deps are the process-level collaborators shared by every strategy built
// for one experiment.
type Deps struct {
	ExperimentID string
	Runner       physics.Runner
	Learners     tuning.Factory
	Logger       *slog.Logger
}

func LibraryConfig(spec model.GenomeSpec) genotype.LibraryConfig {
	return genotype.LibraryConfig{
		GridSize:            spec.GridSize,
		NumInitialMutations: spec.NumInitialMutations,
		MutationProbability: spec.MutationProbability,
		MutationBound:       spec.MutationBound,
	}
}

// NewStrategy builds the strategy for hp.
func NewStrategy(deps Deps, hp model.Hyperparameters) (*Strategy, error) {
	lib, err := genotype.NewLibrary(LibraryConfig(hp.Genome))
	if err != nil {
		return nil, err
	}
	sim := &Simulator{Runner: deps.Runner}

	var evaluator Evaluator
	switch hp.FitnessMode {
	case FitnessPlain:
		evaluator = &PlainEvaluator{Simulator: sim, Simulation: hp.Simulation}
	case "", FitnessDelta, FitnessAfter:
		if deps.Learners == nil {
			return nil, fmt.Errorf("fitness mode %q requires a learner factory", hp.FitnessMode)
		}
		evaluator = &Orchestrator{
			Simulator:    sim,
			Learners:     deps.Learners,
			ExperimentID: deps.ExperimentID,
			Simulation:   hp.Simulation,
			Learner:      hp.Learner,
			FitnessMode:  hp.FitnessMode,
			Logger:       deps.Logger,
		}
	default:
		return nil, fmt.Errorf("unsupported fitness mode: %q", hp.FitnessMode)
	}

	return &Strategy{
		TournamentSelection: evo.TournamentSelection{Config: evo.TournamentConfig{
			ParentsPerGroup:        hp.ParentsPerGroup,
			ParentTournamentSize:   hp.ParentTournamentSize,
			SurvivorTournamentSize: hp.SurvivorTournamentSize,
		}},
		Library:   lib,
		Evaluator: evaluator,
	}, nil
}

// Builder adapts NewStrategy to evo.StrategyBuilder.
func Builder(deps Deps) evo.StrategyBuilder {
	return func(hp model.Hyperparameters) (evo.Strategy, error) {
		return NewStrategy(deps, hp)
	}
}
