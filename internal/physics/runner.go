// Package physics defines the batched simulator contract used by the
// evaluators and a local kinematic runner implementing it.
package physics

import (
	"context"
	"errors"
	"math"
)

// ErrSimulationFailure wraps every error produced while simulating a batch.
var ErrSimulationFailure = errors.New("simulation failure")

type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

type Quaternion struct {
	W float64 `json:"w"`
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// YawQuaternion returns the rotation of angle radians around the z axis.
func YawQuaternion(angle float64) Quaternion {
	return Quaternion{W: math.Cos(angle / 2), Z: math.Sin(angle / 2)}
}

type ActorState struct {
	Position    Vec3       `json:"position"`
	Orientation Quaternion `json:"orientation"`
}

// Controller produces joint targets for one actor.
type Controller interface {
	Step(dt float64)
	Targets(dst []float64) []float64
}

// Joint is an actuated hinge at a grid cell relative to the actor core.
type Joint struct {
	X int
	Y int
}

type Actor struct {
	Joints []Joint
}

// Environment is one independent simulation: a single posed actor and the
// controller stepping it.
type Environment struct {
	Actor      Actor
	Controller Controller
	Position   Vec3
}

type Batch struct {
	SimulationTime    float64
	SamplingFrequency float64
	ControlFrequency  float64
	Environments      []Environment
}

// EnvironmentResult holds the sampled actor states of one environment,
// starting with the state at t=0.
type EnvironmentResult struct {
	States []ActorState
}

// BatchResult is index-aligned with Batch.Environments.
type BatchResult struct {
	Environments []EnvironmentResult
}

type Runner interface {
	RunBatch(ctx context.Context, batch Batch) (BatchResult, error)
}

// Displacement is the planar distance between the first and last sampled state.
func Displacement(result EnvironmentResult) float64 {
	if len(result.States) == 0 {
		return 0
	}
	begin := result.States[0].Position
	end := result.States[len(result.States)-1].Position
	return math.Hypot(end.X-begin.X, end.Y-begin.Y)
}
