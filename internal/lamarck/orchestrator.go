package lamarck

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"lamarck/internal/evo"
	"lamarck/internal/genotype"
	"lamarck/internal/model"
	"lamarck/internal/rng"
	"lamarck/internal/tuning"
)

const (
	FitnessDelta = "delta"
	FitnessAfter = "after"
	FitnessPlain = "plain"
)

// LearnerID names the inner search of one individual. Every outer generation
// and population slot gets its own identifier so inner checkpoints never
// collide across individuals.
func LearnerID(experimentID string, generation, individual int) string {
	return fmt.Sprintf("%s/openaies/%d/%d", experimentID, generation, individual)
}

// Orchestrator runs a learning period for every evaluated individual and
// writes the learned controller back into a copy of its genome.
type Orchestrator struct {
	Simulator    *Simulator
	Learners     tuning.Factory
	ExperimentID string
	Simulation   model.Simulation
	Learner      model.LearnerSpec
	FitnessMode  string
	Logger       *slog.Logger
}

func (o *Orchestrator) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

// Evaluate scores genomes before learning, learns each individual in order,
// scores the learned genomes and reports learning_delta (or fitness_after)
// as the fitness. A failure anywhere fails the whole batch.
func (o *Orchestrator) Evaluate(ctx context.Context, stream *rng.Stream, generation int, genomes []model.Genome) (evo.Evaluation, error) {
	before, err := o.Simulator.EvaluateGenomes(ctx, o.Simulation, genomes)
	if err != nil {
		return evo.Evaluation{}, fmt.Errorf("evaluate before learning: %w", err)
	}

	o.logger().Info("starting learning period",
		"generation", generation,
		"individuals", len(genomes),
		"population_size", o.Learner.PopulationSize,
		"sigma", o.Learner.Sigma,
		"learning_rate", o.Learner.LearningRate,
		"generations", o.Learner.NumGenerations,
		"simulation_time", o.Learner.Simulation.SimulationTime,
		"sampling_frequency", o.Learner.Simulation.SamplingFrequency,
		"control_frequency", o.Learner.Simulation.ControlFrequency,
	)
	learned := make([]model.Genome, len(genomes))
	for i, g := range genomes {
		if learned[i], err = o.Learn(ctx, stream, generation, i, g); err != nil {
			return evo.Evaluation{}, fmt.Errorf("learning period for individual %d: %w", i, err)
		}
	}

	after, err := o.Simulator.EvaluateGenomes(ctx, o.Simulation, learned)
	if err != nil {
		return evo.Evaluation{}, fmt.Errorf("evaluate after learning: %w", err)
	}

	fitness := make([]float64, len(genomes))
	records := make([]model.LearningRecord, len(genomes))
	for i := range genomes {
		delta := after[i] - before[i]
		records[i] = model.LearningRecord{
			GenerationIndex: generation,
			IndividualIndex: i,
			FitnessBefore:   before[i],
			FitnessAfter:    after[i],
			LearningDelta:   delta,
		}
		fitness[i] = delta
		if o.FitnessMode == FitnessAfter {
			fitness[i] = after[i]
		}
		o.logger().Debug("learning result",
			"generation", generation,
			"individual", i,
			"fitness_before", before[i],
			"fitness_after", after[i],
			"learning_delta", delta,
		)
	}
	return evo.Evaluation{Fitness: fitness, Genomes: learned, Learning: records}, nil
}

// Learn runs (or resumes) the inner search of one individual and returns a
// new genome carrying the best controller found. The input genome is not
// modified. One child stream is always drawn from stream so the outer
// trajectory does not depend on whether the inner search resumed.
func (o *Orchestrator) Learn(ctx context.Context, stream *rng.Stream, generation, individual int, g model.Genome) (model.Genome, error) {
	child := stream.Child()

	phenotype, err := genotype.Develop(g)
	if err != nil {
		return model.Genome{}, err
	}
	if len(phenotype.Hinges) == 0 {
		return genotype.CloneGenome(g), nil
	}

	eval := func(ctx context.Context, params [][]float64) ([]float64, error) {
		return o.Simulator.EvaluateParams(ctx, o.Learner.Simulation, phenotype.Hinges, params)
	}
	id := LearnerID(o.ExperimentID, generation, individual)
	learner, err := o.Learners.Resume(ctx, id, eval)
	if errors.Is(err, tuning.ErrStateNotFound) {
		learner, err = o.Learners.New(ctx, id, o.Learner, phenotype.Params, child, eval)
	}
	if err != nil {
		return model.Genome{}, err
	}
	if err := learner.Run(ctx); err != nil {
		return model.Genome{}, err
	}
	best, _, err := learner.BestIndividual(ctx)
	if err != nil {
		return model.Genome{}, err
	}

	brain, err := genotype.WithControllerParams(g.Brain, phenotype.Hinges, best)
	if err != nil {
		return model.Genome{}, err
	}
	out := genotype.CloneGenome(g)
	out.Brain = brain
	return out, nil
}

// PlainEvaluator scores genomes without any learning.
type PlainEvaluator struct {
	Simulator  *Simulator
	Simulation model.Simulation
}

func (p *PlainEvaluator) Evaluate(ctx context.Context, _ *rng.Stream, _ int, genomes []model.Genome) (evo.Evaluation, error) {
	fitness, err := p.Simulator.EvaluateGenomes(ctx, p.Simulation, genomes)
	if err != nil {
		return evo.Evaluation{}, err
	}
	return evo.Evaluation{Fitness: fitness}, nil
}
