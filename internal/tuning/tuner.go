package tuning

import (
	"context"
	"log/slog"

	"lamarck/internal/model"
	"lamarck/internal/rng"
)

// Learner is the call contract of an inner per-individual search.
type Learner interface {
	Run(ctx context.Context) error
	BestIndividual(ctx context.Context) ([]float64, float64, error)
}

// Factory starts or resumes learners by identifier.
type Factory interface {
	New(ctx context.Context, learnerID string, spec model.LearnerSpec, initialMean []float64, stream *rng.Stream, eval BatchFitnessFn) (Learner, error)
	Resume(ctx context.Context, learnerID string, eval BatchFitnessFn) (Learner, error)
}

type OpenAIESFactory struct {
	Store  LearnerStore
	Logger *slog.Logger
}

func (f OpenAIESFactory) New(ctx context.Context, learnerID string, spec model.LearnerSpec, initialMean []float64, stream *rng.Stream, eval BatchFitnessFn) (Learner, error) {
	o, err := New(ctx, f.Store, learnerID, spec, initialMean, stream, eval)
	if err != nil {
		return nil, err
	}
	o.Logger = f.Logger
	return o, nil
}

func (f OpenAIESFactory) Resume(ctx context.Context, learnerID string, eval BatchFitnessFn) (Learner, error) {
	o, err := Resume(ctx, f.Store, learnerID, eval)
	if err != nil {
		return nil, err
	}
	o.Logger = f.Logger
	return o, nil
}
