package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"lamarck/internal/model"
)

var ErrInvalidConfig = errors.New("invalid experiment config")

// Experiment is the file-level description of one optimization run.
type Experiment struct {
	ExperimentID           string     `yaml:"experiment_id" toml:"experiment_id"`
	Seed                   uint64     `yaml:"seed" toml:"seed"`
	Workers                int        `yaml:"workers" toml:"workers"`
	PopulationSize         int        `yaml:"population_size" toml:"population_size"`
	OffspringSize          int        `yaml:"offspring_size" toml:"offspring_size"`
	NumGenerations         int        `yaml:"num_generations" toml:"num_generations"`
	ParentsPerGroup        int        `yaml:"parents_per_group" toml:"parents_per_group"`
	ParentTournamentSize   int        `yaml:"parent_tournament_size" toml:"parent_tournament_size"`
	SurvivorTournamentSize int        `yaml:"survivor_tournament_size" toml:"survivor_tournament_size"`
	FitnessMode            string     `yaml:"fitness_mode" toml:"fitness_mode"`
	Genome                 Genome     `yaml:"genome" toml:"genome"`
	Simulation             Simulation `yaml:"simulation" toml:"simulation"`
	Learner                Learner    `yaml:"learner" toml:"learner"`
}

type Genome struct {
	GridSize            int     `yaml:"grid_size" toml:"grid_size"`
	NumInitialMutations int     `yaml:"num_initial_mutations" toml:"num_initial_mutations"`
	MutationProbability float64 `yaml:"mutation_probability" toml:"mutation_probability"`
	MutationBound       float64 `yaml:"mutation_bound" toml:"mutation_bound"`
}

type Simulation struct {
	SimulationTime    float64 `yaml:"simulation_time" toml:"simulation_time"`
	SamplingFrequency float64 `yaml:"sampling_frequency" toml:"sampling_frequency"`
	ControlFrequency  float64 `yaml:"control_frequency" toml:"control_frequency"`
}

// Learner configures the inner search. A zero Simulation inherits the outer one.
type Learner struct {
	PopulationSize int        `yaml:"population_size" toml:"population_size"`
	Sigma          float64    `yaml:"sigma" toml:"sigma"`
	LearningRate   float64    `yaml:"learning_rate" toml:"learning_rate"`
	NumGenerations int        `yaml:"num_generations" toml:"num_generations"`
	Simulation     Simulation `yaml:"simulation" toml:"simulation"`
}

func DefaultExperiment() Experiment {
	return Experiment{
		ExperimentID:           "opt",
		Seed:                   28,
		PopulationSize:         50,
		OffspringSize:          25,
		NumGenerations:         100,
		ParentsPerGroup:        2,
		ParentTournamentSize:   10,
		SurvivorTournamentSize: 10,
		FitnessMode:            "delta",
		Genome: Genome{
			GridSize:            22,
			NumInitialMutations: 10,
			MutationProbability: 0.8,
			MutationBound:       1,
		},
		Simulation: Simulation{
			SimulationTime:    15,
			SamplingFrequency: 5,
			ControlFrequency:  60,
		},
		Learner: Learner{
			PopulationSize: 20,
			Sigma:          0.1,
			LearningRate:   0.05,
			NumGenerations: 10,
		},
	}
}

// Load reads a YAML or TOML file on top of DefaultExperiment. The format is
// chosen by extension.
func Load(path string) (Experiment, error) {
	cfg := DefaultExperiment()
	data, err := os.ReadFile(path)
	if err != nil {
		return Experiment{}, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Experiment{}, fmt.Errorf("parse %s: %w", path, err)
		}
	case ".toml":
		if _, err := toml.Decode(string(data), &cfg); err != nil {
			return Experiment{}, fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		return Experiment{}, fmt.Errorf("%w: unsupported config extension %q", ErrInvalidConfig, ext)
	}
	return cfg, nil
}

func (e Experiment) Validate() error {
	if strings.TrimSpace(e.ExperimentID) == "" {
		return fmt.Errorf("%w: experiment id is required", ErrInvalidConfig)
	}
	positive := []struct {
		name  string
		value int
	}{
		{"population_size", e.PopulationSize},
		{"offspring_size", e.OffspringSize},
		{"num_generations", e.NumGenerations},
		{"parents_per_group", e.ParentsPerGroup},
		{"parent_tournament_size", e.ParentTournamentSize},
		{"survivor_tournament_size", e.SurvivorTournamentSize},
		{"genome.grid_size", e.Genome.GridSize},
	}
	for _, p := range positive {
		if p.value <= 0 {
			return fmt.Errorf("%w: %s must be > 0, got %d", ErrInvalidConfig, p.name, p.value)
		}
	}
	if e.Workers < 0 {
		return fmt.Errorf("%w: workers must be >= 0", ErrInvalidConfig)
	}
	if e.Genome.NumInitialMutations < 0 {
		return fmt.Errorf("%w: genome.num_initial_mutations must be >= 0", ErrInvalidConfig)
	}
	if e.Genome.MutationProbability < 0 || e.Genome.MutationProbability > 1 {
		return fmt.Errorf("%w: genome.mutation_probability must be in [0, 1]", ErrInvalidConfig)
	}
	if e.ParentTournamentSize > e.PopulationSize {
		return fmt.Errorf("%w: parent_tournament_size %d exceeds population_size %d", ErrInvalidConfig, e.ParentTournamentSize, e.PopulationSize)
	}
	if e.ParentsPerGroup > e.ParentTournamentSize {
		return fmt.Errorf("%w: parents_per_group %d exceeds parent_tournament_size %d", ErrInvalidConfig, e.ParentsPerGroup, e.ParentTournamentSize)
	}
	if e.SurvivorTournamentSize > e.PopulationSize+e.OffspringSize {
		return fmt.Errorf("%w: survivor_tournament_size %d exceeds the survivor pool", ErrInvalidConfig, e.SurvivorTournamentSize)
	}
	switch e.FitnessMode {
	case "delta", "after", "plain":
	default:
		return fmt.Errorf("%w: unknown fitness_mode %q", ErrInvalidConfig, e.FitnessMode)
	}
	if err := e.Simulation.validate("simulation"); err != nil {
		return err
	}
	if e.FitnessMode != "plain" {
		if e.Learner.PopulationSize <= 0 || e.Learner.NumGenerations <= 0 {
			return fmt.Errorf("%w: learner population_size and num_generations must be > 0", ErrInvalidConfig)
		}
		if e.Learner.Sigma <= 0 || e.Learner.LearningRate <= 0 {
			return fmt.Errorf("%w: learner sigma and learning_rate must be > 0", ErrInvalidConfig)
		}
		if e.Learner.Simulation != (Simulation{}) {
			if err := e.Learner.Simulation.validate("learner.simulation"); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s Simulation) validate(prefix string) error {
	if s.SimulationTime <= 0 || s.SamplingFrequency <= 0 || s.ControlFrequency <= 0 {
		return fmt.Errorf("%w: %s time and frequencies must be > 0", ErrInvalidConfig, prefix)
	}
	if s.SamplingFrequency > s.ControlFrequency {
		return fmt.Errorf("%w: %s sampling_frequency exceeds control_frequency", ErrInvalidConfig, prefix)
	}
	return nil
}

func (s Simulation) model() model.Simulation {
	return model.Simulation{
		SimulationTime:    s.SimulationTime,
		SamplingFrequency: s.SamplingFrequency,
		ControlFrequency:  s.ControlFrequency,
	}
}

// Hyperparameters converts the experiment into the persisted engine form.
func (e Experiment) Hyperparameters() model.Hyperparameters {
	learnerSim := e.Learner.Simulation
	if learnerSim == (Simulation{}) {
		learnerSim = e.Simulation
	}
	return model.Hyperparameters{
		PopulationSize:         e.PopulationSize,
		OffspringSize:          e.OffspringSize,
		NumGenerations:         e.NumGenerations,
		ParentsPerGroup:        e.ParentsPerGroup,
		ParentTournamentSize:   e.ParentTournamentSize,
		SurvivorTournamentSize: e.SurvivorTournamentSize,
		FitnessMode:            e.FitnessMode,
		Genome: model.GenomeSpec{
			GridSize:            e.Genome.GridSize,
			NumInitialMutations: e.Genome.NumInitialMutations,
			MutationProbability: e.Genome.MutationProbability,
			MutationBound:       e.Genome.MutationBound,
		},
		Simulation: e.Simulation.model(),
		Learner: model.LearnerSpec{
			PopulationSize: e.Learner.PopulationSize,
			Sigma:          e.Learner.Sigma,
			LearningRate:   e.Learner.LearningRate,
			NumGenerations: e.Learner.NumGenerations,
			Simulation:     learnerSim.model(),
		},
	}
}
