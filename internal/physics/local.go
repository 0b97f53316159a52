package physics

import (
	"context"
	"fmt"
	"math"
	"runtime"

	"github.com/sourcegraph/conc/pool"
)

const (
	strokeGain   = 0.05
	recoveryDrag = 0.3
	turnGain     = 0.02
)

// LocalRunner is a kinematic surrogate of a rigid body simulator. Each joint
// pushes the actor along its arm direction when its target decreases and
// drags it back by a smaller amount when the target increases, so only
// oscillating controllers produce net motion.
type LocalRunner struct {
	Workers int
}

func NewLocalRunner(workers int) *LocalRunner {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &LocalRunner{Workers: workers}
}

func (r *LocalRunner) RunBatch(ctx context.Context, batch Batch) (BatchResult, error) {
	if err := validateBatch(batch); err != nil {
		return BatchResult{}, err
	}
	workers := r.Workers
	if workers <= 0 {
		workers = 1
	}

	results := make([]EnvironmentResult, len(batch.Environments))
	p := pool.New().WithContext(ctx).WithMaxGoroutines(workers).WithCancelOnError().WithFirstError()
	for i := range batch.Environments {
		p.Go(func(ctx context.Context) error {
			res, err := simulate(ctx, batch, batch.Environments[i])
			if err != nil {
				return fmt.Errorf("%w: environment %d: %v", ErrSimulationFailure, i, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return BatchResult{}, err
	}
	return BatchResult{Environments: results}, nil
}

func validateBatch(batch Batch) error {
	if batch.SimulationTime <= 0 {
		return fmt.Errorf("%w: simulation time must be positive", ErrSimulationFailure)
	}
	if batch.ControlFrequency <= 0 || batch.SamplingFrequency <= 0 {
		return fmt.Errorf("%w: control and sampling frequency must be positive", ErrSimulationFailure)
	}
	if batch.SamplingFrequency > batch.ControlFrequency {
		return fmt.Errorf("%w: sampling frequency %.2f exceeds control frequency %.2f", ErrSimulationFailure, batch.SamplingFrequency, batch.ControlFrequency)
	}
	for i, env := range batch.Environments {
		if env.Controller == nil {
			return fmt.Errorf("%w: environment %d has no controller", ErrSimulationFailure, i)
		}
	}
	return nil
}

func simulate(ctx context.Context, batch Batch, env Environment) (EnvironmentResult, error) {
	dt := 1 / batch.ControlFrequency
	steps := int(math.Round(batch.SimulationTime * batch.ControlFrequency))
	sampleEvery := int(math.Max(1, math.Round(batch.ControlFrequency/batch.SamplingFrequency)))

	arms := make([]Vec3, len(env.Actor.Joints))
	for i, joint := range env.Actor.Joints {
		length := math.Hypot(float64(joint.X), float64(joint.Y))
		if length > 0 {
			arms[i] = Vec3{X: float64(joint.X) / length, Y: float64(joint.Y) / length}
		}
	}

	pos := env.Position
	yaw := 0.0
	prev := env.Controller.Targets(make([]float64, 0, len(arms)))
	if len(prev) != len(arms) {
		return EnvironmentResult{}, fmt.Errorf("controller has %d outputs for %d joints", len(prev), len(arms))
	}
	cur := make([]float64, 0, len(arms))
	states := make([]ActorState, 0, steps/sampleEvery+2)
	states = append(states, ActorState{Position: pos, Orientation: YawQuaternion(yaw)})

	for step := 1; step <= steps; step++ {
		if step%256 == 0 {
			if err := ctx.Err(); err != nil {
				return EnvironmentResult{}, err
			}
		}
		env.Controller.Step(dt)
		cur = env.Controller.Targets(cur)

		var local Vec3
		var torque float64
		for i, arm := range arms {
			delta := cur[i] - prev[i]
			push := -delta
			if delta > 0 {
				push = -recoveryDrag * delta
			}
			local.X += arm.X * push * strokeGain
			local.Y += arm.Y * push * strokeGain
			torque += (arm.X - arm.Y) * push
		}
		yaw += turnGain * torque
		sin, cos := math.Sincos(yaw)
		pos.X += cos*local.X - sin*local.Y
		pos.Y += sin*local.X + cos*local.Y
		if math.IsNaN(pos.X) || math.IsNaN(pos.Y) {
			return EnvironmentResult{}, fmt.Errorf("state diverged at step %d", step)
		}
		prev, cur = cur, prev

		if step%sampleEvery == 0 {
			states = append(states, ActorState{Position: pos, Orientation: YawQuaternion(yaw)})
		}
	}
	return EnvironmentResult{States: states}, nil
}
