package tuning

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"lamarck/internal/model"
	"lamarck/internal/rng"
)

var ErrStateNotFound = errors.New("learner state not found")

// BatchFitnessFn scores a batch of controller parameter vectors. Results are
// index-aligned with params.
type BatchFitnessFn func(ctx context.Context, params [][]float64) ([]float64, error)

// LearnerStore is the persistence an OpenAIES search needs.
type LearnerStore interface {
	SaveLearnerGeneration(ctx context.Context, state model.LearnerState, samples []model.LearnerSample) error
	LatestLearnerState(ctx context.Context, learnerID string) (model.LearnerState, bool, error)
	BestLearnerSample(ctx context.Context, learnerID string) (model.LearnerSample, bool, error)
}

// OpenAIES is a natural evolution strategy with isotropic Gaussian search
// noise and standardized rewards. Every inner generation is checkpointed, so
// an interrupted search resumes at the next generation with the same noise.
type OpenAIES struct {
	store      LearnerStore
	id         string
	spec       model.LearnerSpec
	mean       []float64
	generation int
	stream     *rng.Stream
	eval       BatchFitnessFn
	Logger     *slog.Logger
}

func validateSpec(spec model.LearnerSpec) error {
	if spec.PopulationSize <= 1 {
		return fmt.Errorf("learner population size must be > 1, got %d", spec.PopulationSize)
	}
	if spec.Sigma <= 0 {
		return fmt.Errorf("learner sigma must be > 0, got %f", spec.Sigma)
	}
	if spec.LearningRate <= 0 {
		return fmt.Errorf("learner learning rate must be > 0, got %f", spec.LearningRate)
	}
	if spec.NumGenerations < 0 {
		return fmt.Errorf("learner generations must be >= 0, got %d", spec.NumGenerations)
	}
	return nil
}

// New starts a fresh search around initialMean and persists its generation-0
// state under learnerID.
func New(ctx context.Context, store LearnerStore, learnerID string, spec model.LearnerSpec, initialMean []float64, stream *rng.Stream, eval BatchFitnessFn) (*OpenAIES, error) {
	if store == nil {
		return nil, errors.New("learner store is required")
	}
	if learnerID == "" {
		return nil, errors.New("learner id is required")
	}
	if stream == nil {
		return nil, errors.New("random stream is required")
	}
	if eval == nil {
		return nil, errors.New("fitness function is required")
	}
	if err := validateSpec(spec); err != nil {
		return nil, err
	}
	o := &OpenAIES{
		store:  store,
		id:     learnerID,
		spec:   spec,
		mean:   append([]float64(nil), initialMean...),
		stream: stream,
		eval:   eval,
	}
	if err := o.checkpoint(ctx, nil); err != nil {
		return nil, err
	}
	return o, nil
}

// Resume restores the latest checkpoint of learnerID. It returns
// ErrStateNotFound when the learner has never been started.
func Resume(ctx context.Context, store LearnerStore, learnerID string, eval BatchFitnessFn) (*OpenAIES, error) {
	if store == nil {
		return nil, errors.New("learner store is required")
	}
	if eval == nil {
		return nil, errors.New("fitness function is required")
	}
	state, ok, err := store.LatestLearnerState(ctx, learnerID)
	if err != nil {
		return nil, fmt.Errorf("load learner %s: %w", learnerID, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrStateNotFound, learnerID)
	}
	stream, err := rng.Restore(state.RNGState)
	if err != nil {
		return nil, err
	}
	return &OpenAIES{
		store:      store,
		id:         learnerID,
		spec:       state.Spec,
		mean:       state.Mean,
		generation: state.Generation,
		stream:     stream,
		eval:       eval,
	}, nil
}

func (o *OpenAIES) ID() string              { return o.id }
func (o *OpenAIES) Generation() int         { return o.generation }
func (o *OpenAIES) Spec() model.LearnerSpec { return o.spec }

func (o *OpenAIES) Mean() []float64 {
	return append([]float64(nil), o.mean...)
}

func (o *OpenAIES) Done() bool {
	return o.generation >= o.spec.NumGenerations
}

// Run completes the remaining inner generations.
func (o *OpenAIES) Run(ctx context.Context) error {
	for !o.Done() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := o.step(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (o *OpenAIES) step(ctx context.Context) error {
	dim := len(o.mean)
	pop := o.spec.PopulationSize

	noise := make([][]float64, pop)
	candidates := make([][]float64, pop)
	for i := range noise {
		noise[i] = make([]float64, dim)
		for j := range noise[i] {
			noise[i][j] = o.stream.NormFloat64()
		}
		candidates[i] = append([]float64(nil), o.mean...)
		floats.AddScaled(candidates[i], o.spec.Sigma, noise[i])
	}

	fitness, err := o.eval(ctx, candidates)
	if err != nil {
		return fmt.Errorf("learner %s generation %d: %w", o.id, o.generation+1, err)
	}
	if len(fitness) != pop {
		return fmt.Errorf("learner %s: fitness count mismatch: got=%d want=%d", o.id, len(fitness), pop)
	}

	mean, std := stat.PopMeanStdDev(fitness, nil)
	if std > 0 {
		scale := o.spec.LearningRate / (float64(pop) * o.spec.Sigma)
		for i := range noise {
			floats.AddScaled(o.mean, scale*(fitness[i]-mean)/std, noise[i])
		}
	}
	o.generation++

	samples := make([]model.LearnerSample, pop)
	for i := range candidates {
		samples[i] = model.LearnerSample{
			Generation: o.generation,
			Position:   i,
			Params:     candidates[i],
			Fitness:    fitness[i],
		}
	}
	if err := o.checkpoint(ctx, samples); err != nil {
		return err
	}
	o.logger().Debug("learner generation",
		"learner", o.id,
		"generation", o.generation,
		"mean_fitness", mean,
		"max_fitness", floats.Max(fitness),
	)
	return nil
}

// BestIndividual returns the highest-scoring candidate evaluated so far. A
// search that has not evaluated anything yet returns its current mean.
func (o *OpenAIES) BestIndividual(ctx context.Context) ([]float64, float64, error) {
	best, ok, err := o.store.BestLearnerSample(ctx, o.id)
	if err != nil {
		return nil, 0, err
	}
	if !ok {
		return o.Mean(), 0, nil
	}
	if len(best.Params) != len(o.mean) {
		return nil, 0, fmt.Errorf("learner %s: best sample has %d params, mean has %d", o.id, len(best.Params), len(o.mean))
	}
	return best.Params, best.Fitness, nil
}

func (o *OpenAIES) checkpoint(ctx context.Context, samples []model.LearnerSample) error {
	rngState, err := o.stream.MarshalBinary()
	if err != nil {
		return err
	}
	state := model.LearnerState{
		LearnerID:  o.id,
		Generation: o.generation,
		Mean:       o.Mean(),
		RNGState:   rngState,
		Spec:       o.spec,
	}
	if err := o.store.SaveLearnerGeneration(ctx, state, samples); err != nil {
		return fmt.Errorf("save learner %s: %w", o.id, err)
	}
	return nil
}

func (o *OpenAIES) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}
