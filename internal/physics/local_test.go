package physics

import (
	"context"
	"errors"
	"testing"

	"lamarck/internal/cpg"
)

type stuckController struct{ outputs int }

func (c stuckController) Step(float64) {}

func (c stuckController) Targets(dst []float64) []float64 {
	dst = dst[:0]
	for i := 0; i < c.outputs; i++ {
		dst = append(dst, 0)
	}
	return dst
}

func testBatch(envs ...Environment) Batch {
	return Batch{SimulationTime: 5, SamplingFrequency: 5, ControlFrequency: 60, Environments: envs}
}

func TestLocalRunnerSamplesAtSamplingFrequency(t *testing.T) {
	env := Environment{
		Actor:      Actor{Joints: []Joint{{X: 1, Y: 0}}},
		Controller: cpg.New([]float64{2}),
	}
	res, err := NewLocalRunner(2).RunBatch(context.Background(), testBatch(env))
	if err != nil {
		t.Fatalf("run batch: %v", err)
	}
	if len(res.Environments) != 1 {
		t.Fatalf("expected one result, got %d", len(res.Environments))
	}
	if got := len(res.Environments[0].States); got != 26 {
		t.Fatalf("expected 26 samples, got %d", got)
	}
	if Displacement(res.Environments[0]) <= 0 {
		t.Fatal("expected oscillating joint to move the actor")
	}
}

func TestLocalRunnerPreservesEnvironmentOrder(t *testing.T) {
	moving := Environment{Actor: Actor{Joints: []Joint{{X: 0, Y: 1}}}, Controller: cpg.New([]float64{3})}
	still := Environment{Actor: Actor{Joints: []Joint{{X: 0, Y: 1}}}, Controller: stuckController{outputs: 1}}

	res, err := NewLocalRunner(4).RunBatch(context.Background(), testBatch(still, moving, still))
	if err != nil {
		t.Fatalf("run batch: %v", err)
	}
	if Displacement(res.Environments[0]) != 0 || Displacement(res.Environments[2]) != 0 {
		t.Fatal("expected stuck actors to stay in place")
	}
	if Displacement(res.Environments[1]) == 0 {
		t.Fatal("expected moving actor at index 1")
	}
}

func TestLocalRunnerDeterministic(t *testing.T) {
	run := func() float64 {
		env := Environment{
			Actor:      Actor{Joints: []Joint{{X: 1, Y: 0}, {X: 0, Y: -1}}},
			Controller: cpg.New([]float64{1.5, -0.7}),
		}
		res, err := NewLocalRunner(1).RunBatch(context.Background(), testBatch(env))
		if err != nil {
			t.Fatalf("run batch: %v", err)
		}
		return Displacement(res.Environments[0])
	}
	if a, b := run(), run(); a != b {
		t.Fatalf("expected identical displacement, got %f and %f", a, b)
	}
}

func TestLocalRunnerReportsSimulationFailure(t *testing.T) {
	bad := Environment{Actor: Actor{Joints: []Joint{{X: 1, Y: 0}}}, Controller: stuckController{outputs: 3}}
	_, err := NewLocalRunner(1).RunBatch(context.Background(), testBatch(bad))
	if !errors.Is(err, ErrSimulationFailure) {
		t.Fatalf("expected simulation failure, got %v", err)
	}

	_, err = NewLocalRunner(1).RunBatch(context.Background(), Batch{Environments: []Environment{bad}})
	if !errors.Is(err, ErrSimulationFailure) {
		t.Fatalf("expected invalid batch failure, got %v", err)
	}
}

func TestLocalRunnerEmptyBatch(t *testing.T) {
	res, err := NewLocalRunner(1).RunBatch(context.Background(), testBatch())
	if err != nil {
		t.Fatalf("run empty batch: %v", err)
	}
	if len(res.Environments) != 0 {
		t.Fatalf("expected no results, got %d", len(res.Environments))
	}
}
