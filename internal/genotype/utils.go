package genotype

import (
	"fmt"
	"math/rand/v2"
)

// RandomElement picks one value uniformly from the stream.
func RandomElement[T any](rng *rand.Rand, values []T) (T, error) {
	var zero T
	if len(values) == 0 {
		return zero, fmt.Errorf("values are required")
	}
	if rng == nil {
		return zero, fmt.Errorf("rng is required")
	}
	return values[rng.IntN(len(values))], nil
}
