// Package cpg implements the central pattern generator controller developed
// from a genome's per-hinge brain weights. Every hinge drives one oscillator
// pair; oscillators are uncoupled and advanced by their exact rotation.
package cpg

import "math"

// InitialState is the uniform starting value of every oscillator neuron.
const InitialState = 0.5 * math.Pi / 2

// Network is a set of independent two-neuron oscillators, one per hinge.
// Output i is the x neuron of oscillator i, clamped to [-DOFRange, DOFRange].
type Network struct {
	weights  []float64
	state    []float64
	DOFRange float64
}

// New builds a network with one oscillator per weight.
func New(weights []float64) *Network {
	state := make([]float64, 2*len(weights))
	for i := range state {
		state[i] = InitialState
	}
	return &Network{
		weights:  append([]float64(nil), weights...),
		state:    state,
		DOFRange: 1,
	}
}

func (n *Network) NumOutputs() int { return len(n.weights) }

// Step advances every oscillator by dt along dx = w*y, dy = -w*x. The step
// is the closed-form rotation by w*dt, so amplitude is preserved for any
// weight and step size.
func (n *Network) Step(dt float64) {
	for i, w := range n.weights {
		sin, cos := math.Sincos(w * dt)
		x := n.state[2*i]
		y := n.state[2*i+1]
		n.state[2*i] = x*cos + y*sin
		n.state[2*i+1] = y*cos - x*sin
	}
}

// Targets writes the current joint targets into dst and returns it.
func (n *Network) Targets(dst []float64) []float64 {
	dst = dst[:0]
	for i := range n.weights {
		dst = append(dst, clamp(n.state[2*i], n.DOFRange))
	}
	return dst
}

func clamp(v, limit float64) float64 {
	if v > limit {
		return limit
	}
	if v < -limit {
		return -limit
	}
	return v
}
