package genotype

import (
	"errors"
	"fmt"
	"math"

	"lamarck/internal/model"
)

// ErrGridIndexOutOfRange reports a body cell that has no slot in the brain
// grid. It signals a body/brain configuration mismatch and is never clamped.
var ErrGridIndexOutOfRange = errors.New("grid index out of range")

// GridIndex maps a body cell to its brain weight slot. The grid is centered at
// gridSize²/2 and indexed row-major by y.
func GridIndex(x, y, gridSize int) (int, error) {
	if gridSize <= 0 {
		return 0, fmt.Errorf("%w: grid size %d", ErrGridIndexOutOfRange, gridSize)
	}
	cells := gridSize * gridSize
	idx := int(math.Floor(float64(x) + float64(y)*float64(gridSize) + float64(cells)/2))
	if idx < 0 || idx >= cells {
		return 0, fmt.Errorf("%w: cell (%d, %d) maps to %d, grid size %d", ErrGridIndexOutOfRange, x, y, idx, gridSize)
	}
	return idx, nil
}

// InGrid reports whether a cell maps to a valid brain slot.
func InGrid(x, y, gridSize int) bool {
	_, err := GridIndex(x, y, gridSize)
	return err == nil
}

// ControllerParams reads one brain weight per hinge, in hinge order.
func ControllerParams(brain model.BrainGenome, hinges []Hinge) ([]float64, error) {
	if len(brain.Weights) != brain.GridSize*brain.GridSize {
		return nil, fmt.Errorf("%w: brain has %d weights for grid size %d", ErrGridIndexOutOfRange, len(brain.Weights), brain.GridSize)
	}
	params := make([]float64, 0, len(hinges))
	for _, hinge := range hinges {
		idx, err := GridIndex(hinge.X, hinge.Y, brain.GridSize)
		if err != nil {
			return nil, err
		}
		params = append(params, brain.Weights[idx])
	}
	return params, nil
}

// WithControllerParams returns a copy of brain with params written back at
// each hinge's slot. The input brain is left untouched.
func WithControllerParams(brain model.BrainGenome, hinges []Hinge, params []float64) (model.BrainGenome, error) {
	if len(params) != len(hinges) {
		return model.BrainGenome{}, fmt.Errorf("controller params mismatch: got=%d want=%d", len(params), len(hinges))
	}
	if len(brain.Weights) != brain.GridSize*brain.GridSize {
		return model.BrainGenome{}, fmt.Errorf("%w: brain has %d weights for grid size %d", ErrGridIndexOutOfRange, len(brain.Weights), brain.GridSize)
	}
	out := CloneBrain(brain)
	for i, hinge := range hinges {
		idx, err := GridIndex(hinge.X, hinge.Y, brain.GridSize)
		if err != nil {
			return model.BrainGenome{}, err
		}
		out.Weights[idx] = params[i]
	}
	return out, nil
}
