package evo

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"sort"
)

// TournamentConfig parameterizes the tournament selection functions.
type TournamentConfig struct {
	ParentsPerGroup        int
	ParentTournamentSize   int
	SurvivorTournamentSize int
}

// rankOrder returns population indices sorted by fitness, best first. Ties
// keep their original index order.
func rankOrder(fitnesses []float64) []int {
	order := make([]int, len(fitnesses))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return fitnesses[order[a]] > fitnesses[order[b]]
	})
	return order
}

// sampleDistinct draws k distinct elements of pool uniformly without
// replacement. pool is reordered in place.
func sampleDistinct(rng *rand.Rand, pool []int, k int) []int {
	for i := 0; i < k; i++ {
		j := i + rng.IntN(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	return pool[:k]
}

// SelectParentsTournament forms numGroups parent groups. Each group draws
// tournamentSize distinct ranks and keeps the numParents best of them.
// Returned indices refer to the fitnesses slice.
func SelectParentsTournament(rng *rand.Rand, fitnesses []float64, numGroups, numParents, tournamentSize int) ([][]int, error) {
	if rng == nil {
		return nil, fmt.Errorf("%w: random source is required", ErrInvalidArgument)
	}
	if numGroups < 0 {
		return nil, fmt.Errorf("%w: negative parent group count %d", ErrInvalidArgument, numGroups)
	}
	if tournamentSize <= 0 || tournamentSize > len(fitnesses) {
		return nil, fmt.Errorf("%w: tournament size %d for pool of %d", ErrInvalidArgument, tournamentSize, len(fitnesses))
	}
	if numParents <= 0 || numParents > tournamentSize {
		return nil, fmt.Errorf("%w: %d parents from tournament of %d", ErrInvalidArgument, numParents, tournamentSize)
	}

	order := rankOrder(fitnesses)
	ranks := make([]int, len(order))
	groups := make([][]int, 0, numGroups)
	for g := 0; g < numGroups; g++ {
		for i := range ranks {
			ranks[i] = i
		}
		drawn := slices.Clone(sampleDistinct(rng, ranks, tournamentSize))
		slices.Sort(drawn)
		group := make([]int, numParents)
		for i := range group {
			group[i] = order[drawn[i]]
		}
		groups = append(groups, group)
	}
	return groups, nil
}

// SelectSurvivorsTournament picks numSurvivors distinct members of the pool
// old ++ new. Every round draws up to tournamentSize distinct ranks from the
// ranks not yet chosen and keeps the best one. The result is partitioned into
// indices of old and indices of new, each in selection order.
func SelectSurvivorsTournament(rng *rand.Rand, oldFitnesses, newFitnesses []float64, numSurvivors, tournamentSize int) ([]int, []int, error) {
	if rng == nil {
		return nil, nil, fmt.Errorf("%w: random source is required", ErrInvalidArgument)
	}
	poolSize := len(oldFitnesses) + len(newFitnesses)
	if tournamentSize <= 0 || tournamentSize > poolSize {
		return nil, nil, fmt.Errorf("%w: tournament size %d for pool of %d", ErrInvalidArgument, tournamentSize, poolSize)
	}
	if numSurvivors < 0 || numSurvivors > poolSize {
		return nil, nil, fmt.Errorf("%w: %d survivors from pool of %d", ErrInvalidArgument, numSurvivors, poolSize)
	}

	fitnesses := make([]float64, 0, poolSize)
	fitnesses = append(fitnesses, oldFitnesses...)
	fitnesses = append(fitnesses, newFitnesses...)
	order := rankOrder(fitnesses)

	eligible := make([]int, poolSize)
	for i := range eligible {
		eligible[i] = i
	}
	scratch := make([]int, poolSize)
	oldIdx := make([]int, 0, numSurvivors)
	newIdx := make([]int, 0, numSurvivors)
	for s := 0; s < numSurvivors; s++ {
		k := min(tournamentSize, len(eligible))
		scratch = append(scratch[:0], eligible...)
		winner := slices.Min(sampleDistinct(rng, scratch, k))

		pos, _ := slices.BinarySearch(eligible, winner)
		eligible = slices.Delete(eligible, pos, pos+1)

		idx := order[winner]
		if idx < len(oldFitnesses) {
			oldIdx = append(oldIdx, idx)
		} else {
			newIdx = append(newIdx, idx-len(oldFitnesses))
		}
	}
	return oldIdx, newIdx, nil
}
