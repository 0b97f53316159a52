package storage

import (
	"context"
	"errors"

	"lamarck/internal/model"
)

var ErrUnknownIndividual = errors.New("unknown individual")

// Store persists experiments: individuals, generation membership, engine
// checkpoints, learning records and inner learner progress. Experiment and
// learner identifiers share no namespace, so outer and inner checkpoints
// coexist in one store.
type Store interface {
	Init(ctx context.Context) error

	// CommitGeneration writes newcomers, the population membership, learning
	// records and the engine state as one unit and returns the ids assigned to
	// the newcomers in order.
	CommitGeneration(ctx context.Context, commit model.GenerationCommit) ([]int64, error)
	LatestEngineState(ctx context.Context, experimentID string) (model.EngineState, bool, error)
	ListCheckpoints(ctx context.Context, experimentID string) ([]model.CheckpointInfo, error)
	GetGeneration(ctx context.Context, experimentID string, generation int) ([]model.Individual, bool, error)
	ListLearningRecords(ctx context.Context, experimentID string) ([]model.LearningRecord, error)
	ListExperiments(ctx context.Context) ([]string, error)

	SaveLearnerGeneration(ctx context.Context, state model.LearnerState, samples []model.LearnerSample) error
	LatestLearnerState(ctx context.Context, learnerID string) (model.LearnerState, bool, error)
	BestLearnerSample(ctx context.Context, learnerID string) (model.LearnerSample, bool, error)
	ListLearnerSamples(ctx context.Context, learnerID string) ([]model.LearnerSample, error)
}

func betterSample(a, b model.LearnerSample) bool {
	if a.Fitness != b.Fitness {
		return a.Fitness > b.Fitness
	}
	if a.Generation != b.Generation {
		return a.Generation < b.Generation
	}
	return a.Position < b.Position
}
