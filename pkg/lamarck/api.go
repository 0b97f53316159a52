package lamarck

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/floats"

	"lamarck/internal/config"
	"lamarck/internal/evo"
	orchestration "lamarck/internal/lamarck"
	"lamarck/internal/model"
	"lamarck/internal/physics"
	"lamarck/internal/report"
	"lamarck/internal/rng"
	"lamarck/internal/storage"
	"lamarck/internal/telemetry"
	"lamarck/internal/tuning"
)

const (
	defaultDBPath     = "lamarck.db"
	defaultExportsDir = "exports"
)

type Options struct {
	StoreKind  string
	DBPath     string
	ExportsDir string
	Logger     *slog.Logger
}

type Client struct {
	store      storage.Store
	dbPath     string
	exportsDir string
	logger     *slog.Logger
}

type RunRequest struct {
	Experiment config.Experiment
	// Runner overrides the local kinematic runner.
	Runner    physics.Runner
	Observers []evo.Observer
	// GenerationsOverride, when positive, replaces the persisted generation
	// target of a resumed experiment.
	GenerationsOverride int
}

type RunSummary struct {
	ExperimentID     string
	SessionID        string
	Resumed          bool
	GenerationIndex  int
	State            string
	FinalBestFitness float64
}

type StatusSummary struct {
	ExperimentID    string
	Checkpoints     []model.CheckpointInfo
	Sessions        []string
	GenerationIndex int
	Hyperparameters model.Hyperparameters
	Latest          model.GenerationStats
}

type LearningRequest struct {
	ExperimentID string
	// Limit keeps only the last Limit generations when positive.
	Limit int
}

type ExportRequest struct {
	ExperimentID string
	OutDir       string
}

type PlotRequest struct {
	ExperimentID string
	OutPath      string
	// LearnerID selects the inner-search curve of one learner.
	LearnerID string
	// Learning plots learning deltas instead of population fitness.
	Learning bool
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	exportsDir := opts.ExportsDir
	if exportsDir == "" {
		exportsDir = defaultExportsDir
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}
	if err := store.Init(context.Background()); err != nil {
		_ = storage.CloseIfSupported(store)
		return nil, err
	}
	return &Client{
		store:      store,
		dbPath:     dbPath,
		exportsDir: exportsDir,
		logger:     logger,
	}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

// DBPath is the sqlite file backing the client. It is meaningless for the
// memory store.
func (c *Client) DBPath() string { return c.dbPath }

// Run resumes the experiment from its latest checkpoint or, when none
// exists, starts it from a random initial population. It returns once the
// engine terminates.
func (c *Client) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	exp := req.Experiment
	if err := exp.Validate(); err != nil {
		return RunSummary{}, err
	}
	sessionID := uuid.NewString()
	logger := c.logger.With("session", sessionID)

	runner := req.Runner
	if runner == nil {
		runner = physics.NewLocalRunner(exp.Workers)
	}
	deps := orchestration.Deps{
		ExperimentID: exp.ExperimentID,
		Runner:       runner,
		Learners:     tuning.OpenAIESFactory{Store: c.store, Logger: logger},
		Logger:       logger,
	}
	observers := append([]evo.Observer{telemetry.LearningLogger{Logger: logger}}, req.Observers...)
	cfg := evo.Config{
		Store:               c.store,
		Build:               orchestration.Builder(deps),
		ExperimentID:        exp.ExperimentID,
		SessionID:           sessionID,
		Logger:              logger,
		Observers:           observers,
		GenerationsOverride: req.GenerationsOverride,
	}

	resumed := true
	engine, err := evo.Resume(ctx, cfg)
	if errors.Is(err, evo.ErrStateNotFound) {
		resumed = false
		engine, err = c.start(ctx, cfg, deps, exp)
	}
	if err != nil {
		return RunSummary{}, err
	}
	if err := engine.Run(ctx); err != nil {
		return RunSummary{}, err
	}

	return RunSummary{
		ExperimentID:     exp.ExperimentID,
		SessionID:        sessionID,
		Resumed:          resumed,
		GenerationIndex:  engine.GenerationIndex(),
		State:            engine.State().String(),
		FinalBestFitness: floats.Max(engine.Fitnesses()),
	}, nil
}

func (c *Client) start(ctx context.Context, cfg evo.Config, deps orchestration.Deps, exp config.Experiment) (*evo.Engine, error) {
	hp := exp.Hyperparameters()
	strategy, err := orchestration.NewStrategy(deps, hp)
	if err != nil {
		return nil, err
	}
	stream := rng.New(exp.Seed)
	initial := strategy.Library.RandomPopulation(stream.Rand, hp.PopulationSize)

	cfg.Hyperparameters = hp
	cfg.Build = func(model.Hyperparameters) (evo.Strategy, error) { return strategy, nil }
	return evo.New(ctx, cfg, stream, initial)
}

func (c *Client) Experiments(ctx context.Context) ([]string, error) {
	return c.store.ListExperiments(ctx)
}

func (c *Client) Status(ctx context.Context, experimentID string) (StatusSummary, error) {
	if experimentID == "" {
		return StatusSummary{}, errors.New("experiment id is required")
	}
	checkpoints, err := c.store.ListCheckpoints(ctx, experimentID)
	if err != nil {
		return StatusSummary{}, err
	}
	if len(checkpoints) == 0 {
		return StatusSummary{}, fmt.Errorf("%w: %s", evo.ErrStateNotFound, experimentID)
	}
	state, ok, err := c.store.LatestEngineState(ctx, experimentID)
	if err != nil {
		return StatusSummary{}, err
	}
	if !ok {
		return StatusSummary{}, fmt.Errorf("%w: %s", evo.ErrStateNotFound, experimentID)
	}
	population, _, err := c.store.GetGeneration(ctx, experimentID, state.GenerationIndex)
	if err != nil {
		return StatusSummary{}, err
	}
	fitnesses := make([]float64, len(population))
	for i, ind := range population {
		fitnesses[i] = ind.Fitness
	}

	seen := map[string]bool{}
	var sessions []string
	for _, cp := range checkpoints {
		if cp.SessionID != "" && !seen[cp.SessionID] {
			seen[cp.SessionID] = true
			sessions = append(sessions, cp.SessionID)
		}
	}
	return StatusSummary{
		ExperimentID:    experimentID,
		Checkpoints:     checkpoints,
		Sessions:        sessions,
		GenerationIndex: state.GenerationIndex,
		Hyperparameters: state.Hyperparameters,
		Latest:          report.Summarize(state.GenerationIndex, fitnesses),
	}, nil
}

func (c *Client) Learning(ctx context.Context, req LearningRequest) ([]report.LearningSummary, error) {
	if req.ExperimentID == "" {
		return nil, errors.New("experiment id is required")
	}
	if req.Limit < 0 {
		return nil, errors.New("limit must be >= 0")
	}
	records, err := c.store.ListLearningRecords(ctx, req.ExperimentID)
	if err != nil {
		return nil, err
	}
	summaries := report.SummarizeLearning(records)
	if req.Limit > 0 && len(summaries) > req.Limit {
		summaries = summaries[len(summaries)-req.Limit:]
	}
	return summaries, nil
}

// Export writes the experiment CSV files and returns their paths.
func (c *Client) Export(ctx context.Context, req ExportRequest) ([]string, error) {
	if req.ExperimentID == "" {
		return nil, errors.New("experiment id is required")
	}
	outDir := req.OutDir
	if outDir == "" {
		outDir = filepath.Join(c.exportsDir, req.ExperimentID)
	}
	return report.Export(ctx, c.store, req.ExperimentID, outDir)
}

// Plot renders a PNG and returns its path.
func (c *Client) Plot(ctx context.Context, req PlotRequest) (string, error) {
	if req.ExperimentID == "" && req.LearnerID == "" {
		return "", errors.New("experiment id or learner id is required")
	}
	outPath := req.OutPath
	if outPath == "" {
		outPath = "fitness.png"
	}

	switch {
	case req.LearnerID != "":
		samples, err := c.store.ListLearnerSamples(ctx, req.LearnerID)
		if err != nil {
			return "", err
		}
		if err := report.PlotLearner(report.SummarizeLearner(samples), req.LearnerID, outPath); err != nil {
			return "", err
		}
	case req.Learning:
		records, err := c.store.ListLearningRecords(ctx, req.ExperimentID)
		if err != nil {
			return "", err
		}
		if err := report.PlotLearning(report.SummarizeLearning(records), req.ExperimentID, outPath); err != nil {
			return "", err
		}
	default:
		stats, err := report.Generations(ctx, c.store, req.ExperimentID)
		if err != nil {
			return "", err
		}
		if err := report.PlotFitness(stats, req.ExperimentID, outPath); err != nil {
			return "", err
		}
	}
	return outPath, nil
}

// LearnerID names the inner search of one individual.
func LearnerID(experimentID string, generation, individual int) string {
	return orchestration.LearnerID(experimentID, generation, individual)
}
