package lamarck

import (
	"context"
	"fmt"

	"lamarck/internal/cpg"
	"lamarck/internal/genotype"
	"lamarck/internal/model"
	"lamarck/internal/physics"
)

// Simulator turns genomes and controller parameters into physics batches and
// scores each environment by its planar displacement.
type Simulator struct {
	Runner physics.Runner
}

func newEnvironment(hinges []genotype.Hinge, params []float64) physics.Environment {
	joints := make([]physics.Joint, len(hinges))
	for i, h := range hinges {
		joints[i] = physics.Joint{X: h.X, Y: h.Y}
	}
	return physics.Environment{
		Actor:      physics.Actor{Joints: joints},
		Controller: cpg.New(params),
	}
}

func (s *Simulator) run(ctx context.Context, sim model.Simulation, envs []physics.Environment) ([]float64, error) {
	result, err := s.Runner.RunBatch(ctx, physics.Batch{
		SimulationTime:    sim.SimulationTime,
		SamplingFrequency: sim.SamplingFrequency,
		ControlFrequency:  sim.ControlFrequency,
		Environments:      envs,
	})
	if err != nil {
		return nil, err
	}
	if len(result.Environments) != len(envs) {
		return nil, fmt.Errorf("%w: runner returned %d results for %d environments", physics.ErrSimulationFailure, len(result.Environments), len(envs))
	}
	fitness := make([]float64, len(envs))
	for i, env := range result.Environments {
		fitness[i] = physics.Displacement(env)
	}
	return fitness, nil
}

// EvaluateGenomes develops every genome and simulates the batch.
func (s *Simulator) EvaluateGenomes(ctx context.Context, sim model.Simulation, genomes []model.Genome) ([]float64, error) {
	envs := make([]physics.Environment, len(genomes))
	for i, g := range genomes {
		phenotype, err := genotype.Develop(g)
		if err != nil {
			return nil, fmt.Errorf("develop genome %d: %w", i, err)
		}
		envs[i] = newEnvironment(phenotype.Hinges, phenotype.Params)
	}
	return s.run(ctx, sim, envs)
}

// EvaluateParams simulates one body under several controller parameter sets.
func (s *Simulator) EvaluateParams(ctx context.Context, sim model.Simulation, hinges []genotype.Hinge, params [][]float64) ([]float64, error) {
	envs := make([]physics.Environment, len(params))
	for i, p := range params {
		if len(p) != len(hinges) {
			return nil, fmt.Errorf("controller params %d: got %d values for %d hinges", i, len(p), len(hinges))
		}
		envs[i] = newEnvironment(hinges, p)
	}
	return s.run(ctx, sim, envs)
}
