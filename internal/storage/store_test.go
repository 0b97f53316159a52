package storage

import (
	"context"
	"errors"
	"testing"

	"lamarck/internal/model"
)

func testGenome(weight float64) model.Genome {
	return model.Genome{
		Body: model.BodyGenome{Modules: []model.ModuleGene{
			{Innovation: 1, X: 1, Y: 0, Kind: model.ModuleHinge},
		}},
		Brain: model.BrainGenome{Weights: []float64{weight, 0, 0, 0}, GridSize: 2},
	}
}

func testState(experimentID string, generation int) model.EngineState {
	return model.EngineState{
		ExperimentID:    experimentID,
		SessionID:       "session-a",
		GenerationIndex: generation,
		RNGState:        []byte{1, 2, 3, byte(generation)},
		Registries:      map[string]string{"body": "{}"},
		Hyperparameters: model.Hyperparameters{PopulationSize: 2, OffspringSize: 1, NumGenerations: 5},
	}
}

// exerciseStore runs the behavior every Store implementation must share.
func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	if _, ok, err := store.LatestEngineState(ctx, "opt"); err != nil || ok {
		t.Fatalf("expected no state before first commit, ok=%t err=%v", ok, err)
	}

	ids, err := store.CommitGeneration(ctx, model.GenerationCommit{
		ExperimentID: "opt",
		State:        testState("opt", 0),
		Newcomers: []model.Individual{
			{Generation: 0, Genome: testGenome(0.5), Fitness: 1.5},
			{Generation: 0, Genome: testGenome(-0.5), Fitness: -2},
		},
		Population: []model.PopulationSlot{{NewcomerRef: 0}, {NewcomerRef: 1}},
		Learning: []model.LearningRecord{
			{GenerationIndex: 0, IndividualIndex: 0, FitnessBefore: 1, FitnessAfter: 2.5, LearningDelta: 1.5},
			{GenerationIndex: 0, IndividualIndex: 1, FitnessBefore: 3, FitnessAfter: 1, LearningDelta: -2},
		},
	})
	if err != nil {
		t.Fatalf("commit generation 0: %v", err)
	}
	if len(ids) != 2 || ids[0] == ids[1] || ids[0] <= 0 {
		t.Fatalf("unexpected newcomer ids: %v", ids)
	}

	childIDs, err := store.CommitGeneration(ctx, model.GenerationCommit{
		ExperimentID: "opt",
		State:        testState("opt", 1),
		Newcomers: []model.Individual{
			{Generation: 1, ParentIDs: []int64{ids[0], ids[1]}, Genome: testGenome(0.75), Fitness: 3},
		},
		Population: []model.PopulationSlot{{NewcomerRef: 0}, {IndividualID: ids[0]}},
	})
	if err != nil {
		t.Fatalf("commit generation 1: %v", err)
	}

	state, ok, err := store.LatestEngineState(ctx, "opt")
	if err != nil || !ok {
		t.Fatalf("latest state: ok=%t err=%v", ok, err)
	}
	if state.GenerationIndex != 1 || string(state.RNGState) != string([]byte{1, 2, 3, 1}) {
		t.Fatalf("unexpected latest state: %+v", state)
	}
	if state.SchemaVersion != CurrentSchemaVersion || state.Registries["body"] != "{}" {
		t.Fatalf("state lost fields on round trip: %+v", state)
	}

	population, ok, err := store.GetGeneration(ctx, "opt", 1)
	if err != nil || !ok {
		t.Fatalf("get generation 1: ok=%t err=%v", ok, err)
	}
	if len(population) != 2 {
		t.Fatalf("expected 2 members, got %d", len(population))
	}
	if population[0].ID != childIDs[0] || population[1].ID != ids[0] {
		t.Fatalf("unexpected member order: %d %d", population[0].ID, population[1].ID)
	}
	if population[0].Fitness != 3 || len(population[0].ParentIDs) != 2 {
		t.Fatalf("unexpected child record: %+v", population[0])
	}
	if population[1].Genome.Brain.Weights[0] != 0.5 {
		t.Fatalf("unexpected genome for survivor: %+v", population[1].Genome)
	}

	if _, ok, err := store.GetGeneration(ctx, "opt", 7); err != nil || ok {
		t.Fatalf("expected missing generation, ok=%t err=%v", ok, err)
	}

	checkpoints, err := store.ListCheckpoints(ctx, "opt")
	if err != nil {
		t.Fatalf("list checkpoints: %v", err)
	}
	if len(checkpoints) != 2 || checkpoints[0].GenerationIndex != 0 || checkpoints[1].GenerationIndex != 1 {
		t.Fatalf("unexpected checkpoints: %+v", checkpoints)
	}

	records, err := store.ListLearningRecords(ctx, "opt")
	if err != nil {
		t.Fatalf("list learning records: %v", err)
	}
	if len(records) != 2 || records[1].LearningDelta != -2 {
		t.Fatalf("unexpected learning records: %+v", records)
	}

	experiments, err := store.ListExperiments(ctx)
	if err != nil {
		t.Fatalf("list experiments: %v", err)
	}
	if len(experiments) != 1 || experiments[0] != "opt" {
		t.Fatalf("unexpected experiments: %v", experiments)
	}

	_, err = store.CommitGeneration(ctx, model.GenerationCommit{
		ExperimentID: "opt",
		State:        testState("opt", 2),
		Population:   []model.PopulationSlot{{IndividualID: 9999}},
	})
	if !errors.Is(err, ErrUnknownIndividual) {
		t.Fatalf("expected unknown individual error, got %v", err)
	}
	if state, _, _ := store.LatestEngineState(ctx, "opt"); state.GenerationIndex != 1 {
		t.Fatalf("failed commit must not advance checkpoint, got %d", state.GenerationIndex)
	}

	_, err = store.CommitGeneration(ctx, model.GenerationCommit{
		ExperimentID: "opt",
		State:        testState("opt", 2),
		Population:   []model.PopulationSlot{{NewcomerRef: 3}},
	})
	if err == nil {
		t.Fatal("expected dangling newcomer reference error")
	}
}

func exerciseLearnerStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()
	id := "opt/openaies/0/1"

	if _, ok, err := store.LatestLearnerState(ctx, id); err != nil || ok {
		t.Fatalf("expected no learner state, ok=%t err=%v", ok, err)
	}
	for generation := 1; generation <= 2; generation++ {
		state := model.LearnerState{LearnerID: id, Generation: generation, Mean: []float64{float64(generation)}, RNGState: []byte{9}}
		samples := []model.LearnerSample{
			{Generation: generation, Position: 0, Params: []float64{1}, Fitness: float64(generation)},
			{Generation: generation, Position: 1, Params: []float64{2}, Fitness: 1.5},
		}
		if err := store.SaveLearnerGeneration(ctx, state, samples); err != nil {
			t.Fatalf("save learner generation %d: %v", generation, err)
		}
	}

	state, ok, err := store.LatestLearnerState(ctx, id)
	if err != nil || !ok {
		t.Fatalf("latest learner state: ok=%t err=%v", ok, err)
	}
	if state.Generation != 2 || state.Mean[0] != 2 {
		t.Fatalf("unexpected learner state: %+v", state)
	}

	best, ok, err := store.BestLearnerSample(ctx, id)
	if err != nil || !ok {
		t.Fatalf("best sample: ok=%t err=%v", ok, err)
	}
	if best.Generation != 2 || best.Position != 0 {
		t.Fatalf("unexpected best sample: %+v", best)
	}

	samples, err := store.ListLearnerSamples(ctx, id)
	if err != nil {
		t.Fatalf("list samples: %v", err)
	}
	if len(samples) != 4 || samples[0].Generation != 1 || samples[3].Position != 1 {
		t.Fatalf("unexpected samples: %+v", samples)
	}

	if _, ok, err := store.BestLearnerSample(ctx, "other"); err != nil || ok {
		t.Fatalf("expected no samples for other learner, ok=%t err=%v", ok, err)
	}
}
