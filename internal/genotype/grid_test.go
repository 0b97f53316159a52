package genotype

import (
	"errors"
	"testing"

	"lamarck/internal/model"
)

func TestGridIndexCenteredRowMajor(t *testing.T) {
	cases := []struct {
		x, y, size int
		want       int
	}{
		{x: 1, y: 1, size: 4, want: 13},
		{x: 0, y: 0, size: 4, want: 8},
		{x: -2, y: -1, size: 4, want: 2},
		{x: 3, y: 1, size: 4, want: 15},
		{x: 0, y: 0, size: 5, want: 12},
		{x: 0, y: 0, size: 22, want: 242},
	}
	for _, tc := range cases {
		got, err := GridIndex(tc.x, tc.y, tc.size)
		if err != nil {
			t.Fatalf("grid index (%d,%d,%d): %v", tc.x, tc.y, tc.size, err)
		}
		if got != tc.want {
			t.Fatalf("grid index (%d,%d,%d): got=%d want=%d", tc.x, tc.y, tc.size, got, tc.want)
		}
	}
}

func TestGridIndexOutOfRangeIsError(t *testing.T) {
	for _, c := range [][2]int{{0, 2}, {-3, -2}, {-2, -2}, {4, 1}} {
		if _, err := GridIndex(c[0], c[1], 4); !errors.Is(err, ErrGridIndexOutOfRange) {
			t.Fatalf("expected out of range for %v, got %v", c, err)
		}
	}
	if _, err := GridIndex(0, 0, 0); !errors.Is(err, ErrGridIndexOutOfRange) {
		t.Fatalf("expected out of range for empty grid, got %v", err)
	}
}

func TestWithControllerParamsCopyOnWrite(t *testing.T) {
	brain := model.BrainGenome{Weights: make([]float64, 16), GridSize: 4}
	hinges := []Hinge{{X: 1, Y: 1}, {X: -1, Y: 0}}

	updated, err := WithControllerParams(brain, hinges, []float64{0.5, -0.25})
	if err != nil {
		t.Fatalf("write back: %v", err)
	}
	if brain.Weights[13] != 0 || brain.Weights[7] != 0 {
		t.Fatalf("input brain was modified: %v", brain.Weights)
	}
	params, err := ControllerParams(updated, hinges)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if params[0] != 0.5 || params[1] != -0.25 {
		t.Fatalf("unexpected params: %v", params)
	}
	if _, err := WithControllerParams(brain, hinges, []float64{1}); err == nil {
		t.Fatal("expected length mismatch error")
	}
}

func TestDevelopRejectsHingeOutsideBrain(t *testing.T) {
	g := model.Genome{
		Body: model.BodyGenome{Modules: []model.ModuleGene{
			{Innovation: 1, X: 1, Y: 0, Kind: model.ModuleHinge},
			{Innovation: 2, X: 1, Y: 1, Kind: model.ModuleHinge},
			{Innovation: 3, X: 1, Y: 2, Kind: model.ModuleHinge},
		}},
		Brain: model.BrainGenome{Weights: make([]float64, 16), GridSize: 4},
	}
	if _, err := Develop(g); !errors.Is(err, ErrGridIndexOutOfRange) {
		t.Fatalf("expected grid mapping error, got %v", err)
	}
}
