package report

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"lamarck/internal/model"
	"lamarck/internal/storage"
)

func seededStore(t *testing.T) storage.Store {
	t.Helper()
	ctx := context.Background()
	store := storage.NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	genome := model.Genome{Brain: model.BrainGenome{Weights: []float64{0, 0, 0, 0}, GridSize: 2}}
	state := func(generation int) model.EngineState {
		return model.EngineState{ExperimentID: "opt", SessionID: "s", GenerationIndex: generation, RNGState: []byte{1}}
	}
	ids, err := store.CommitGeneration(ctx, model.GenerationCommit{
		ExperimentID: "opt",
		State:        state(0),
		Newcomers: []model.Individual{
			{Genome: genome, Fitness: 1},
			{Genome: genome, Fitness: 3},
		},
		Population: []model.PopulationSlot{{NewcomerRef: 0}, {NewcomerRef: 1}},
		Learning: []model.LearningRecord{
			{GenerationIndex: 0, IndividualIndex: 0, FitnessBefore: 0.5, FitnessAfter: 1.5, LearningDelta: 1},
			{GenerationIndex: 0, IndividualIndex: 1, FitnessBefore: 1, FitnessAfter: 4, LearningDelta: 3},
		},
	})
	if err != nil {
		t.Fatalf("commit 0: %v", err)
	}
	if _, err := store.CommitGeneration(ctx, model.GenerationCommit{
		ExperimentID: "opt",
		State:        state(1),
		Newcomers:    []model.Individual{{Generation: 1, ParentIDs: ids, Genome: genome, Fitness: 5}},
		Population:   []model.PopulationSlot{{IndividualID: ids[1]}, {NewcomerRef: 0}},
		Learning: []model.LearningRecord{
			{GenerationIndex: 1, IndividualIndex: 0, FitnessBefore: 2, FitnessAfter: 1, LearningDelta: -1},
		},
	}); err != nil {
		t.Fatalf("commit 1: %v", err)
	}
	return store
}

func TestSummarize(t *testing.T) {
	s := Summarize(4, []float64{1, 2, 3, 6})
	if s.GenerationIndex != 4 || s.Size != 4 || s.Best != 6 || s.Min != 1 || s.Mean != 3 {
		t.Fatalf("unexpected summary: %+v", s)
	}
	if math.Abs(s.StdDev-math.Sqrt(3.5)) > 1e-12 {
		t.Fatalf("unexpected population std dev: %f", s.StdDev)
	}
	if empty := Summarize(0, nil); empty.Size != 0 || empty.Best != 0 {
		t.Fatalf("expected zero summary, got %+v", empty)
	}
}

func TestGenerations(t *testing.T) {
	stats, err := Generations(context.Background(), seededStore(t), "opt")
	if err != nil {
		t.Fatalf("generations: %v", err)
	}
	if len(stats) != 2 {
		t.Fatalf("expected 2 generations, got %d", len(stats))
	}
	if stats[0].Best != 3 || stats[0].Mean != 2 {
		t.Fatalf("unexpected generation 0 stats: %+v", stats[0])
	}
	if stats[1].GenerationIndex != 1 || stats[1].Best != 5 || stats[1].Min != 3 {
		t.Fatalf("unexpected generation 1 stats: %+v", stats[1])
	}
}

func TestSummarizeLearning(t *testing.T) {
	summaries := SummarizeLearning([]model.LearningRecord{
		{GenerationIndex: 1, LearningDelta: -1, FitnessBefore: 2, FitnessAfter: 1},
		{GenerationIndex: 0, LearningDelta: 1, FitnessBefore: 0, FitnessAfter: 1},
		{GenerationIndex: 0, LearningDelta: 3, FitnessBefore: 1, FitnessAfter: 4},
	})
	if len(summaries) != 2 || summaries[0].GenerationIndex != 0 || summaries[1].GenerationIndex != 1 {
		t.Fatalf("expected summaries sorted by generation, got %+v", summaries)
	}
	g0 := summaries[0]
	if g0.Count != 2 || g0.Improved != 2 || g0.MeanDelta != 2 || g0.BestDelta != 3 || g0.StdDelta != 1 {
		t.Fatalf("unexpected generation 0 summary: %+v", g0)
	}
	if summaries[1].Improved != 0 || summaries[1].MeanAfter != 1 {
		t.Fatalf("unexpected generation 1 summary: %+v", summaries[1])
	}
}

func TestSummarizeLearner(t *testing.T) {
	curve := SummarizeLearner([]model.LearnerSample{
		{Generation: 1, Position: 0, Fitness: 4},
		{Generation: 0, Position: 0, Fitness: 1},
		{Generation: 0, Position: 1, Fitness: 3},
		{Generation: 1, Position: 1, Fitness: 2},
	})
	if len(curve) != 2 || curve[0].Best != 3 || curve[0].Mean != 2 || curve[1].Best != 4 || curve[1].Mean != 3 {
		t.Fatalf("unexpected learner curve: %+v", curve)
	}
}

func TestExport(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	paths, err := Export(context.Background(), seededStore(t), "opt", dir)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if len(paths) != 2 {
		t.Fatalf("expected 2 files, got %v", paths)
	}

	generations := readCSV(t, filepath.Join(dir, GenerationsFile))
	if len(generations) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(generations))
	}
	if generations[0][0] != "generation" || generations[2][2] != "5" {
		t.Fatalf("unexpected generations csv: %v", generations)
	}

	learning := readCSV(t, filepath.Join(dir, LearningFile))
	if len(learning) != 4 {
		t.Fatalf("expected header + 3 rows, got %d", len(learning))
	}
	if learning[3][4] != "-1" {
		t.Fatalf("unexpected learning delta cell: %v", learning[3])
	}
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return rows
}

func TestPlotsWritePNG(t *testing.T) {
	dir := t.TempDir()
	store := seededStore(t)
	stats, err := Generations(context.Background(), store, "opt")
	if err != nil {
		t.Fatalf("generations: %v", err)
	}
	records, err := store.ListLearningRecords(context.Background(), "opt")
	if err != nil {
		t.Fatalf("learning: %v", err)
	}

	fitnessPath := filepath.Join(dir, "fitness.png")
	if err := PlotFitness(stats, "opt", fitnessPath); err != nil {
		t.Fatalf("plot fitness: %v", err)
	}
	learningPath := filepath.Join(dir, "learning.png")
	if err := PlotLearning(SummarizeLearning(records), "opt", learningPath); err != nil {
		t.Fatalf("plot learning: %v", err)
	}
	learnerPath := filepath.Join(dir, "learner.png")
	curve := []LearnerCurve{{Generation: 0, Best: 1, Mean: 0.5}, {Generation: 1, Best: 2, Mean: 1}}
	if err := PlotLearner(curve, "learner", learnerPath); err != nil {
		t.Fatalf("plot learner: %v", err)
	}

	pngMagic := []byte("\x89PNG")
	for _, path := range []string{fitnessPath, learningPath, learnerPath} {
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("read %s: %v", path, err)
		}
		if !bytes.HasPrefix(data, pngMagic) {
			t.Fatalf("%s is not a png", path)
		}
	}
}

func TestPlotRejectsEmpty(t *testing.T) {
	if err := PlotFitness(nil, "x", filepath.Join(t.TempDir(), "f.png")); !errors.Is(err, ErrNoData) {
		t.Fatalf("expected ErrNoData, got %v", err)
	}
}
