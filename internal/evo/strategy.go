package evo

import (
	"context"

	"lamarck/internal/model"
	"lamarck/internal/rng"
)

// Evaluation is the result of scoring a batch of genomes. Fitness is
// index-aligned with the evaluated genomes. Genomes, when set, replaces the
// evaluated genomes, which lets an evaluator write learned parameters back.
type Evaluation struct {
	Fitness  []float64
	Genomes  []model.Genome
	Learning []model.LearningRecord
}

// Strategy supplies every problem-specific decision of the engine. All
// randomness must be drawn from the stream passed in.
type Strategy interface {
	Evaluate(ctx context.Context, stream *rng.Stream, generation int, genomes []model.Genome) (Evaluation, error)
	Crossover(stream *rng.Stream, parents []model.Genome) (model.Genome, error)
	Mutate(stream *rng.Stream, genome model.Genome) (model.Genome, error)
	SelectParents(stream *rng.Stream, fitnesses []float64, numGroups int) ([][]int, error)
	SelectSurvivors(stream *rng.Stream, oldFitnesses, newFitnesses []float64, numSurvivors int) ([]int, []int, error)
}

// RegistryCarrier is implemented by strategies whose genome library keeps
// state that must be checkpointed with the engine.
type RegistryCarrier interface {
	Registries() (map[string]string, error)
	RestoreRegistries(map[string]string) error
}

// StrategyBuilder builds the strategy for a set of hyperparameters. Resume
// calls it with the persisted hyperparameters.
type StrategyBuilder func(model.Hyperparameters) (Strategy, error)

// TournamentSelection implements the selection half of Strategy with the
// tournament functions.
type TournamentSelection struct {
	Config TournamentConfig
}

func (s TournamentSelection) SelectParents(stream *rng.Stream, fitnesses []float64, numGroups int) ([][]int, error) {
	parents := s.Config.ParentsPerGroup
	if parents == 0 {
		parents = 2
	}
	return SelectParentsTournament(stream.Rand, fitnesses, numGroups, parents, s.Config.ParentTournamentSize)
}

func (s TournamentSelection) SelectSurvivors(stream *rng.Stream, oldFitnesses, newFitnesses []float64, numSurvivors int) ([]int, []int, error) {
	return SelectSurvivorsTournament(stream.Rand, oldFitnesses, newFitnesses, numSurvivors, s.Config.SurvivorTournamentSize)
}
