package report

import (
	"context"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"lamarck/internal/model"
	"lamarck/internal/storage"
)

// Summarize computes fitness statistics for one generation. An empty
// generation yields a zero-sized summary.
func Summarize(generation int, fitnesses []float64) model.GenerationStats {
	out := model.GenerationStats{GenerationIndex: generation, Size: len(fitnesses)}
	if len(fitnesses) == 0 {
		return out
	}
	out.Best = floats.Max(fitnesses)
	out.Min = floats.Min(fitnesses)
	out.Mean, out.StdDev = stat.PopMeanStdDev(fitnesses, nil)
	return out
}

// Generations loads every checkpointed generation of an experiment and
// summarizes its fitness values in generation order.
func Generations(ctx context.Context, store storage.Store, experimentID string) ([]model.GenerationStats, error) {
	checkpoints, err := store.ListCheckpoints(ctx, experimentID)
	if err != nil {
		return nil, err
	}
	out := make([]model.GenerationStats, 0, len(checkpoints))
	for _, cp := range checkpoints {
		individuals, ok, err := store.GetGeneration(ctx, experimentID, cp.GenerationIndex)
		if err != nil {
			return nil, fmt.Errorf("load generation %d: %w", cp.GenerationIndex, err)
		}
		if !ok {
			continue
		}
		fitnesses := make([]float64, len(individuals))
		for i, ind := range individuals {
			fitnesses[i] = ind.Fitness
		}
		out = append(out, Summarize(cp.GenerationIndex, fitnesses))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GenerationIndex < out[j].GenerationIndex })
	return out, nil
}

// LearningSummary aggregates the learning records of one generation.
type LearningSummary struct {
	GenerationIndex int     `json:"generation_index"`
	Count           int     `json:"count"`
	Improved        int     `json:"improved"`
	MeanBefore      float64 `json:"mean_before"`
	MeanAfter       float64 `json:"mean_after"`
	MeanDelta       float64 `json:"mean_delta"`
	StdDelta        float64 `json:"std_delta"`
	BestDelta       float64 `json:"best_delta"`
}

// SummarizeLearning groups records by generation. Records may be in any
// order; the result is sorted by generation.
func SummarizeLearning(records []model.LearningRecord) []LearningSummary {
	byGeneration := map[int][]model.LearningRecord{}
	for _, rec := range records {
		byGeneration[rec.GenerationIndex] = append(byGeneration[rec.GenerationIndex], rec)
	}
	out := make([]LearningSummary, 0, len(byGeneration))
	for generation, recs := range byGeneration {
		before := make([]float64, len(recs))
		after := make([]float64, len(recs))
		deltas := make([]float64, len(recs))
		improved := 0
		for i, rec := range recs {
			before[i] = rec.FitnessBefore
			after[i] = rec.FitnessAfter
			deltas[i] = rec.LearningDelta
			if rec.LearningDelta > 0 {
				improved++
			}
		}
		meanDelta, stdDelta := stat.PopMeanStdDev(deltas, nil)
		out = append(out, LearningSummary{
			GenerationIndex: generation,
			Count:           len(recs),
			Improved:        improved,
			MeanBefore:      stat.Mean(before, nil),
			MeanAfter:       stat.Mean(after, nil),
			MeanDelta:       meanDelta,
			StdDelta:        stdDelta,
			BestDelta:       floats.Max(deltas),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GenerationIndex < out[j].GenerationIndex })
	return out
}

// LearnerCurve is the per-generation fitness summary of one inner search.
type LearnerCurve struct {
	Generation int
	Best       float64
	Mean       float64
}

func SummarizeLearner(samples []model.LearnerSample) []LearnerCurve {
	byGeneration := map[int][]float64{}
	for _, s := range samples {
		byGeneration[s.Generation] = append(byGeneration[s.Generation], s.Fitness)
	}
	out := make([]LearnerCurve, 0, len(byGeneration))
	for generation, values := range byGeneration {
		out = append(out, LearnerCurve{
			Generation: generation,
			Best:       floats.Max(values),
			Mean:       stat.Mean(values, nil),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Generation < out[j].Generation })
	return out
}
