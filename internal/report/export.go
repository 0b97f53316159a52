package report

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"

	"lamarck/internal/model"
	"lamarck/internal/storage"
)

const (
	GenerationsFile = "generations.csv"
	LearningFile    = "learning.csv"
)

// Export writes generations.csv and learning.csv for an experiment into
// outDir and returns the written paths.
func Export(ctx context.Context, store storage.Store, experimentID, outDir string) ([]string, error) {
	stats, err := Generations(ctx, store, experimentID)
	if err != nil {
		return nil, err
	}
	records, err := store.ListLearningRecords(ctx, experimentID)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, err
	}
	generationsPath := filepath.Join(outDir, GenerationsFile)
	if err := WriteGenerationsCSV(generationsPath, stats); err != nil {
		return nil, err
	}
	learningPath := filepath.Join(outDir, LearningFile)
	if err := WriteLearningCSV(learningPath, records); err != nil {
		return nil, err
	}
	return []string{generationsPath, learningPath}, nil
}

func WriteGenerationsCSV(path string, stats []model.GenerationStats) error {
	rows := make([][]string, 0, len(stats))
	for _, s := range stats {
		rows = append(rows, []string{
			strconv.Itoa(s.GenerationIndex),
			strconv.Itoa(s.Size),
			formatFloat(s.Best),
			formatFloat(s.Mean),
			formatFloat(s.Min),
			formatFloat(s.StdDev),
		})
	}
	return writeCSV(path, []string{"generation", "size", "best", "mean", "min", "std_dev"}, rows)
}

func WriteLearningCSV(path string, records []model.LearningRecord) error {
	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		rows = append(rows, []string{
			strconv.Itoa(rec.GenerationIndex),
			strconv.Itoa(rec.IndividualIndex),
			formatFloat(rec.FitnessBefore),
			formatFloat(rec.FitnessAfter),
			formatFloat(rec.LearningDelta),
		})
	}
	return writeCSV(path, []string{"generation", "individual", "fitness_before", "fitness_after", "learning_delta"}, rows)
}

func writeCSV(path string, header []string, rows [][]string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(header); err != nil {
		return err
	}
	if err := writer.WriteAll(rows); err != nil {
		return err
	}
	return writer.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
