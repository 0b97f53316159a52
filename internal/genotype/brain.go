package genotype

import (
	"fmt"
	"math/rand/v2"

	"lamarck/internal/model"
)

// RandomBrain draws gridSize² standard-normal weights.
func RandomBrain(rng *rand.Rand, gridSize int) model.BrainGenome {
	weights := make([]float64, gridSize*gridSize)
	for i := range weights {
		weights[i] = rng.NormFloat64()
	}
	return model.BrainGenome{Weights: weights, GridSize: gridSize}
}

// CrossoverBrain picks every weight uniformly from one of the parents.
func CrossoverBrain(rng *rand.Rand, parents []model.BrainGenome) (model.BrainGenome, error) {
	if len(parents) == 0 {
		return model.BrainGenome{}, fmt.Errorf("brain crossover requires at least one parent")
	}
	size := parents[0].GridSize
	for _, p := range parents {
		if p.GridSize != size || len(p.Weights) != size*size {
			return model.BrainGenome{}, fmt.Errorf("brain crossover grid mismatch: %d vs %d", p.GridSize, size)
		}
	}
	out := CloneBrain(parents[0])
	for i := range out.Weights {
		out.Weights[i] = parents[rng.IntN(len(parents))].Weights[i]
	}
	return out, nil
}

// MutateBrain perturbs each weight with probability prob by a uniform draw
// from [-bound, bound]. Weights that are not selected keep their value.
func MutateBrain(rng *rand.Rand, brain model.BrainGenome, prob, bound float64) model.BrainGenome {
	out := CloneBrain(brain)
	for i := range out.Weights {
		if rng.Float64() < prob {
			out.Weights[i] += (rng.Float64()*2 - 1) * bound
		}
	}
	return out
}
