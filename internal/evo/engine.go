package evo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"lamarck/internal/model"
	"lamarck/internal/rng"
	"lamarck/internal/storage"
)

type State int

const (
	StateUninitialized State = iota
	StateActive
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateActive:
		return "active"
	case StateTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// GenerationReport describes one committed generation.
type GenerationReport struct {
	ExperimentID    string
	GenerationIndex int
	Fitness         []float64
	Learning        []model.LearningRecord
	Duration        time.Duration
}

type Observer interface {
	ObserveGeneration(report GenerationReport)
}

type Config struct {
	Store        storage.Store
	Build        StrategyBuilder
	ExperimentID string
	SessionID    string
	Logger       *slog.Logger
	Observers    []Observer

	// Hyperparameters is used by New. Resume restores the persisted set.
	Hyperparameters model.Hyperparameters
	// GenerationsOverride, when positive, replaces the persisted generation
	// target on Resume.
	GenerationsOverride int
}

// Engine drives the generational loop of one experiment. It is not safe for
// concurrent use.
type Engine struct {
	store        storage.Store
	strategy     Strategy
	experimentID string
	sessionID    string
	hp           model.Hyperparameters
	stream       *rng.Stream
	logger       *slog.Logger
	observers    []Observer

	state      State
	generation int
	population []model.Individual
	halted     error
}

func validateHyperparameters(hp model.Hyperparameters) error {
	if hp.PopulationSize <= 0 {
		return fmt.Errorf("%w: population size must be > 0", ErrInvalidArgument)
	}
	if hp.OffspringSize <= 0 {
		return fmt.Errorf("%w: offspring size must be > 0", ErrInvalidArgument)
	}
	if hp.NumGenerations < 0 {
		return fmt.Errorf("%w: generations must be >= 0", ErrInvalidArgument)
	}
	return nil
}

func newEngine(cfg Config, hp model.Hyperparameters, stream *rng.Stream) (*Engine, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("%w: store is required", ErrInvalidArgument)
	}
	if cfg.Build == nil {
		return nil, fmt.Errorf("%w: strategy builder is required", ErrInvalidArgument)
	}
	if cfg.ExperimentID == "" {
		return nil, fmt.Errorf("%w: experiment id is required", ErrInvalidArgument)
	}
	if err := validateHyperparameters(hp); err != nil {
		return nil, err
	}
	strategy, err := cfg.Build(hp)
	if err != nil {
		return nil, fmt.Errorf("build strategy: %w", err)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:        cfg.Store,
		strategy:     strategy,
		experimentID: cfg.ExperimentID,
		sessionID:    cfg.SessionID,
		hp:           hp,
		stream:       stream,
		logger:       logger.With("experiment", cfg.ExperimentID),
		observers:    cfg.Observers,
	}, nil
}

// New evaluates the initial population, checkpoints generation 0 and
// returns an active engine. initial must hold exactly PopulationSize genomes.
func New(ctx context.Context, cfg Config, stream *rng.Stream, initial []model.Genome) (*Engine, error) {
	if stream == nil {
		return nil, fmt.Errorf("%w: random stream is required", ErrInvalidArgument)
	}
	e, err := newEngine(cfg, cfg.Hyperparameters, stream)
	if err != nil {
		return nil, err
	}
	if len(initial) != e.hp.PopulationSize {
		return nil, fmt.Errorf("%w: initial population has %d genomes, population size is %d", ErrInvalidArgument, len(initial), e.hp.PopulationSize)
	}

	started := time.Now()
	e.logger.Info("starting experiment",
		"population_size", e.hp.PopulationSize,
		"offspring_size", e.hp.OffspringSize,
		"generations", e.hp.NumGenerations,
		"fitness_mode", e.hp.FitnessMode,
	)
	eval, err := e.evaluate(ctx, 0, initial)
	if err != nil {
		return nil, err
	}

	newcomers := make([]model.Individual, len(initial))
	slots := make([]model.PopulationSlot, len(initial))
	for i := range initial {
		newcomers[i] = model.Individual{Generation: 0, Genome: eval.Genomes[i], Fitness: eval.Fitness[i]}
		slots[i] = model.PopulationSlot{NewcomerRef: i}
	}
	population, err := e.commit(ctx, 0, newcomers, slots, eval.Learning)
	if err != nil {
		return nil, err
	}
	e.population = population
	e.generation = 0
	e.state = StateActive
	e.checkTermination()
	e.notify(eval.Learning, time.Since(started))
	return e, nil
}

// Resume restores the latest checkpoint of cfg.ExperimentID. It returns
// ErrStateNotFound when the experiment has never been checkpointed.
func Resume(ctx context.Context, cfg Config) (*Engine, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("%w: store is required", ErrInvalidArgument)
	}
	persisted, ok, err := cfg.Store.LatestEngineState(ctx, cfg.ExperimentID)
	if err != nil {
		if storage.IsIncompatible(err) {
			return nil, fmt.Errorf("%w: %v", ErrIncompatibleState, err)
		}
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrStateNotFound, cfg.ExperimentID)
	}
	if persisted.ExperimentID != cfg.ExperimentID {
		return nil, fmt.Errorf("%w: checkpoint belongs to %q", ErrIncompatibleState, persisted.ExperimentID)
	}
	stream, err := rng.Restore(persisted.RNGState)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIncompatibleState, err)
	}

	hp := persisted.Hyperparameters
	if cfg.GenerationsOverride > 0 {
		hp.NumGenerations = cfg.GenerationsOverride
	}
	e, err := newEngine(cfg, hp, stream)
	if err != nil {
		return nil, err
	}
	if carrier, ok := e.strategy.(RegistryCarrier); ok {
		if err := carrier.RestoreRegistries(persisted.Registries); err != nil {
			return nil, fmt.Errorf("%w: restore registries: %v", ErrIncompatibleState, err)
		}
	}

	population, ok, err := cfg.Store.GetGeneration(ctx, cfg.ExperimentID, persisted.GenerationIndex)
	if err != nil {
		if storage.IsIncompatible(err) {
			return nil, fmt.Errorf("%w: %v", ErrIncompatibleState, err)
		}
		return nil, err
	}
	if !ok || len(population) != hp.PopulationSize {
		return nil, fmt.Errorf("%w: generation %d has %d members, population size is %d", ErrIncompatibleState, persisted.GenerationIndex, len(population), hp.PopulationSize)
	}

	e.population = population
	e.generation = persisted.GenerationIndex
	e.state = StateActive
	e.checkTermination()
	e.logger.Info("resumed experiment",
		"generation", e.generation,
		"generations", hp.NumGenerations,
		"previous_session", persisted.SessionID,
		"state", e.state.String(),
	)
	return e, nil
}

func (e *Engine) State() State                           { return e.state }
func (e *Engine) GenerationIndex() int                   { return e.generation }
func (e *Engine) Hyperparameters() model.Hyperparameters { return e.hp }

// Population returns a copy of the active generation.
func (e *Engine) Population() []model.Individual {
	return append([]model.Individual(nil), e.population...)
}

func (e *Engine) Fitnesses() []float64 {
	out := make([]float64, len(e.population))
	for i, ind := range e.population {
		out[i] = ind.Fitness
	}
	return out
}

// Step runs one generation. Nothing is persisted unless the whole
// generation completes; after a failed step the engine refuses further steps
// so the stream never diverges from the last checkpoint.
func (e *Engine) Step(ctx context.Context) error {
	if e.halted != nil {
		return fmt.Errorf("%w: %v", ErrHalted, e.halted)
	}
	if e.state != StateActive {
		return fmt.Errorf("%w: %s", ErrNotActive, e.state)
	}
	if err := e.step(ctx); err != nil {
		e.halted = err
		return err
	}
	return nil
}

func (e *Engine) step(ctx context.Context) error {
	started := time.Now()
	next := e.generation + 1
	fitnesses := e.Fitnesses()

	groups, err := e.strategy.SelectParents(e.stream, fitnesses, e.hp.OffspringSize)
	if err != nil {
		return fmt.Errorf("select parents: %w", err)
	}
	if len(groups) != e.hp.OffspringSize {
		return fmt.Errorf("select parents: got %d groups, want %d", len(groups), e.hp.OffspringSize)
	}

	offspring := make([]model.Genome, len(groups))
	parentIDs := make([][]int64, len(groups))
	for i, group := range groups {
		parents := make([]model.Genome, len(group))
		ids := make([]int64, len(group))
		for j, idx := range group {
			if idx < 0 || idx >= len(e.population) {
				return fmt.Errorf("select parents: index %d outside population of %d", idx, len(e.population))
			}
			parents[j] = e.population[idx].Genome
			ids[j] = e.population[idx].ID
		}
		child, err := e.strategy.Crossover(e.stream, parents)
		if err != nil {
			return fmt.Errorf("crossover: %w", err)
		}
		if child, err = e.strategy.Mutate(e.stream, child); err != nil {
			return fmt.Errorf("mutate: %w", err)
		}
		offspring[i] = child
		parentIDs[i] = ids
	}

	eval, err := e.evaluate(ctx, next, offspring)
	if err != nil {
		return err
	}

	oldIdx, newIdx, err := e.strategy.SelectSurvivors(e.stream, fitnesses, eval.Fitness, e.hp.PopulationSize)
	if err != nil {
		return fmt.Errorf("select survivors: %w", err)
	}
	if len(oldIdx)+len(newIdx) != e.hp.PopulationSize {
		return fmt.Errorf("select survivors: %d old + %d new, want %d", len(oldIdx), len(newIdx), e.hp.PopulationSize)
	}

	newcomers := make([]model.Individual, len(offspring))
	for i := range offspring {
		newcomers[i] = model.Individual{
			Generation: next,
			ParentIDs:  parentIDs[i],
			Genome:     eval.Genomes[i],
			Fitness:    eval.Fitness[i],
		}
	}
	slots := make([]model.PopulationSlot, 0, e.hp.PopulationSize)
	for _, idx := range oldIdx {
		if idx < 0 || idx >= len(e.population) {
			return fmt.Errorf("select survivors: old index %d outside population of %d", idx, len(e.population))
		}
		slots = append(slots, model.PopulationSlot{IndividualID: e.population[idx].ID})
	}
	for _, idx := range newIdx {
		if idx < 0 || idx >= len(newcomers) {
			return fmt.Errorf("select survivors: new index %d outside offspring of %d", idx, len(newcomers))
		}
		slots = append(slots, model.PopulationSlot{NewcomerRef: idx})
	}

	population, err := e.commit(ctx, next, newcomers, slots, eval.Learning)
	if err != nil {
		return err
	}
	e.population = population
	e.generation = next
	e.checkTermination()
	e.notify(eval.Learning, time.Since(started))
	return nil
}

// Run steps until the engine terminates.
func (e *Engine) Run(ctx context.Context) error {
	for e.state == StateActive {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := e.Step(ctx); err != nil {
			return err
		}
	}
	e.logger.Info("experiment finished", "generation", e.generation)
	return nil
}

func (e *Engine) evaluate(ctx context.Context, generation int, genomes []model.Genome) (Evaluation, error) {
	eval, err := e.strategy.Evaluate(ctx, e.stream, generation, genomes)
	if err != nil {
		return Evaluation{}, fmt.Errorf("evaluate generation %d: %w", generation, err)
	}
	if len(eval.Fitness) != len(genomes) {
		return Evaluation{}, fmt.Errorf("evaluate generation %d: got %d fitness values for %d genomes", generation, len(eval.Fitness), len(genomes))
	}
	if eval.Genomes == nil {
		eval.Genomes = genomes
	}
	if len(eval.Genomes) != len(genomes) {
		return Evaluation{}, fmt.Errorf("evaluate generation %d: got %d genomes back for %d", generation, len(eval.Genomes), len(genomes))
	}
	return eval, nil
}

// commit persists the generation and returns the resulting population with
// store-assigned ids.
func (e *Engine) commit(ctx context.Context, generation int, newcomers []model.Individual, slots []model.PopulationSlot, learning []model.LearningRecord) ([]model.Individual, error) {
	rngState, err := e.stream.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("snapshot rng: %w", err)
	}
	var registries map[string]string
	if carrier, ok := e.strategy.(RegistryCarrier); ok {
		if registries, err = carrier.Registries(); err != nil {
			return nil, fmt.Errorf("snapshot registries: %w", err)
		}
	}
	ids, err := e.store.CommitGeneration(ctx, model.GenerationCommit{
		ExperimentID: e.experimentID,
		State: model.EngineState{
			ExperimentID:    e.experimentID,
			SessionID:       e.sessionID,
			GenerationIndex: generation,
			RNGState:        rngState,
			Registries:      registries,
			Hyperparameters: e.hp,
		},
		Newcomers:  newcomers,
		Population: slots,
		Learning:   learning,
	})
	if err != nil {
		return nil, fmt.Errorf("commit generation %d: %w", generation, err)
	}
	if len(ids) != len(newcomers) {
		return nil, errors.New("store returned wrong number of individual ids")
	}

	byID := make(map[int64]model.Individual, len(e.population))
	for _, ind := range e.population {
		byID[ind.ID] = ind
	}
	population := make([]model.Individual, len(slots))
	for i, slot := range slots {
		if slot.IndividualID > 0 {
			population[i] = byID[slot.IndividualID]
			continue
		}
		ind := newcomers[slot.NewcomerRef]
		ind.ID = ids[slot.NewcomerRef]
		population[i] = ind
	}
	return population, nil
}

// checkTermination stops the engine once the generation target is reached or
// already exceeded.
func (e *Engine) checkTermination() {
	if e.generation >= e.hp.NumGenerations {
		e.state = StateTerminated
	}
}

func (e *Engine) notify(learning []model.LearningRecord, took time.Duration) {
	report := GenerationReport{
		ExperimentID:    e.experimentID,
		GenerationIndex: e.generation,
		Fitness:         e.Fitnesses(),
		Learning:        learning,
		Duration:        took,
	}
	best, mean, worst := summarize(report.Fitness)
	e.logger.Info("generation committed",
		"generation", e.generation,
		"best", best,
		"mean", mean,
		"min", worst,
		"duration", took,
	)
	for _, o := range e.observers {
		o.ObserveGeneration(report)
	}
}

func summarize(values []float64) (best, mean, worst float64) {
	if len(values) == 0 {
		return 0, 0, 0
	}
	return floats.Max(values), stat.Mean(values, nil), floats.Min(values)
}
