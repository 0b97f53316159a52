package evo

import (
	"errors"
	"testing"

	"lamarck/internal/rng"
)

func TestSelectParentsTournamentBounds(t *testing.T) {
	fitnesses := []float64{0.1, -3, 2, 2, 0.5, 7, -1}
	stream := rng.New(42)
	for round := 0; round < 50; round++ {
		groups, err := SelectParentsTournament(stream.Rand, fitnesses, 5, 2, 4)
		if err != nil {
			t.Fatalf("select parents: %v", err)
		}
		if len(groups) != 5 {
			t.Fatalf("expected 5 groups, got %d", len(groups))
		}
		for _, group := range groups {
			if len(group) != 2 || group[0] == group[1] {
				t.Fatalf("expected two distinct parents, got %v", group)
			}
			for _, idx := range group {
				if idx < 0 || idx >= len(fitnesses) {
					t.Fatalf("parent index %d outside pool", idx)
				}
			}
			if fitnesses[group[0]] < fitnesses[group[1]] {
				t.Fatalf("expected parents ordered best first, got %v", group)
			}
		}
	}
}

func TestSelectParentsFullTournamentPicksBestWithStableTies(t *testing.T) {
	fitnesses := []float64{1, 5, 5, 3}
	groups, err := SelectParentsTournament(rng.New(1).Rand, fitnesses, 3, 2, len(fitnesses))
	if err != nil {
		t.Fatalf("select parents: %v", err)
	}
	for _, group := range groups {
		if group[0] != 1 || group[1] != 2 {
			t.Fatalf("expected ranks 1,2 with tie order preserved, got %v", group)
		}
	}
}

func TestSelectParentsInvalidArguments(t *testing.T) {
	stream := rng.New(1)
	cases := []struct {
		name       string
		fitnesses  []float64
		parents    int
		tournament int
	}{
		{name: "tournament exceeds pool", fitnesses: []float64{1, 2}, parents: 1, tournament: 3},
		{name: "zero tournament", fitnesses: []float64{1, 2}, parents: 1, tournament: 0},
		{name: "parents exceed tournament", fitnesses: []float64{1, 2, 3}, parents: 3, tournament: 2},
		{name: "no parents", fitnesses: []float64{1, 2, 3}, parents: 0, tournament: 2},
	}
	for _, tc := range cases {
		_, err := SelectParentsTournament(stream.Rand, tc.fitnesses, 1, tc.parents, tc.tournament)
		if !errors.Is(err, ErrInvalidArgument) {
			t.Fatalf("%s: expected invalid argument, got %v", tc.name, err)
		}
	}
}

func TestSelectSurvivorsPartition(t *testing.T) {
	old := []float64{3, 1, 4, 1, 5}
	offspring := []float64{9, 2, 6}
	stream := rng.New(7)
	for round := 0; round < 100; round++ {
		oldIdx, newIdx, err := SelectSurvivorsTournament(stream.Rand, old, offspring, len(old), 3)
		if err != nil {
			t.Fatalf("select survivors: %v", err)
		}
		if len(oldIdx)+len(newIdx) != len(old) {
			t.Fatalf("expected %d survivors, got %d+%d", len(old), len(oldIdx), len(newIdx))
		}
		assertUniqueInRange(t, oldIdx, len(old))
		assertUniqueInRange(t, newIdx, len(offspring))
	}
}

func TestSelectSurvivorsFullTournamentKeepsBest(t *testing.T) {
	old := []float64{3, 1, 4}
	offspring := []float64{9, 2}
	oldIdx, newIdx, err := SelectSurvivorsTournament(rng.New(3).Rand, old, offspring, 3, 5)
	if err != nil {
		t.Fatalf("select survivors: %v", err)
	}
	if len(newIdx) != 1 || newIdx[0] != 0 {
		t.Fatalf("expected best offspring to survive, got %v", newIdx)
	}
	if len(oldIdx) != 2 || oldIdx[0] != 2 || oldIdx[1] != 0 {
		t.Fatalf("expected old survivors [2 0] in rank order, got %v", oldIdx)
	}
}

func TestSelectSurvivorsTournamentLargerThanRemainingPool(t *testing.T) {
	oldIdx, newIdx, err := SelectSurvivorsTournament(rng.New(5).Rand, []float64{1, 2}, []float64{3}, 3, 3)
	if err != nil {
		t.Fatalf("select survivors: %v", err)
	}
	if len(oldIdx) != 2 || len(newIdx) != 1 {
		t.Fatalf("expected whole pool to survive, got %v %v", oldIdx, newIdx)
	}
}

func TestSelectSurvivorsInvalidArguments(t *testing.T) {
	stream := rng.New(1)
	if _, _, err := SelectSurvivorsTournament(stream.Rand, []float64{1}, []float64{2}, 1, 3); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected invalid tournament size, got %v", err)
	}
	if _, _, err := SelectSurvivorsTournament(stream.Rand, []float64{1}, []float64{2}, 3, 1); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected invalid survivor count, got %v", err)
	}
}

func TestSelectionDeterministicForEqualStreams(t *testing.T) {
	fitnesses := []float64{0.3, 0.9, 0.1, 0.5, 0.7, 0.2}
	a, err := SelectParentsTournament(rng.New(99).Rand, fitnesses, 4, 2, 3)
	if err != nil {
		t.Fatalf("first selection: %v", err)
	}
	b, err := SelectParentsTournament(rng.New(99).Rand, fitnesses, 4, 2, 3)
	if err != nil {
		t.Fatalf("second selection: %v", err)
	}
	for i := range a {
		if a[i][0] != b[i][0] || a[i][1] != b[i][1] {
			t.Fatalf("selection diverged at group %d: %v vs %v", i, a[i], b[i])
		}
	}
}

func assertUniqueInRange(t *testing.T, indices []int, size int) {
	t.Helper()
	seen := make(map[int]bool, len(indices))
	for _, idx := range indices {
		if idx < 0 || idx >= size {
			t.Fatalf("index %d outside [0, %d)", idx, size)
		}
		if seen[idx] {
			t.Fatalf("duplicate index %d in %v", idx, indices)
		}
		seen[idx] = true
	}
}
