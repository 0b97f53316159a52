package telemetry

import (
	"log/slog"

	"gonum.org/v1/gonum/stat"

	"lamarck/internal/evo"
)

// LearningLogger logs a per-generation summary of the learning records.
type LearningLogger struct {
	Logger *slog.Logger
}

func (l LearningLogger) ObserveGeneration(r evo.GenerationReport) {
	if len(r.Learning) == 0 {
		return
	}
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	deltas := make([]float64, len(r.Learning))
	improved := 0
	for i, rec := range r.Learning {
		deltas[i] = rec.LearningDelta
		if rec.LearningDelta > 0 {
			improved++
		}
	}
	mean, std := stat.MeanStdDev(deltas, nil)
	logger.Info("learning summary",
		"experiment", r.ExperimentID,
		"generation", r.GenerationIndex,
		"learners", len(r.Learning),
		"improved", improved,
		"mean_delta", mean,
		"std_delta", std,
	)
}
