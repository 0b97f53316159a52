package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestDefaultExperimentIsValid(t *testing.T) {
	cfg := DefaultExperiment()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default experiment invalid: %v", err)
	}
	hp := cfg.Hyperparameters()
	if hp.PopulationSize != 50 || hp.OffspringSize != 25 || hp.NumGenerations != 100 {
		t.Fatalf("unexpected sizes: %+v", hp)
	}
	if hp.Learner.Simulation != hp.Simulation {
		t.Fatalf("learner simulation should inherit the outer one: %+v vs %+v", hp.Learner.Simulation, hp.Simulation)
	}
	if hp.Genome.GridSize != 22 || hp.Genome.NumInitialMutations != 10 {
		t.Fatalf("unexpected genome spec: %+v", hp.Genome)
	}
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	path := writeFile(t, "exp.yaml", `
experiment_id: walkers
population_size: 12
offspring_size: 6
parent_tournament_size: 4
survivor_tournament_size: 4
learner:
  sigma: 0.2
  simulation:
    simulation_time: 5
    sampling_frequency: 5
    control_frequency: 60
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ExperimentID != "walkers" || cfg.PopulationSize != 12 || cfg.OffspringSize != 6 {
		t.Fatalf("yaml values not applied: %+v", cfg)
	}
	if cfg.NumGenerations != 100 || cfg.Learner.LearningRate != 0.05 {
		t.Fatalf("unset fields should keep defaults: %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	hp := cfg.Hyperparameters()
	if hp.Learner.Sigma != 0.2 || hp.Learner.Simulation.SimulationTime != 5 {
		t.Fatalf("learner overrides lost: %+v", hp.Learner)
	}
}

func TestLoadTOML(t *testing.T) {
	path := writeFile(t, "exp.toml", `
experiment_id = "toml-run"
seed = 7
fitness_mode = "after"

[simulation]
simulation_time = 3.0
sampling_frequency = 5.0
control_frequency = 30.0
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ExperimentID != "toml-run" || cfg.Seed != 7 || cfg.FitnessMode != "after" {
		t.Fatalf("toml values not applied: %+v", cfg)
	}
	if cfg.Simulation.ControlFrequency != 30 {
		t.Fatalf("simulation not applied: %+v", cfg.Simulation)
	}
}

func TestLoadRejectsUnknownExtension(t *testing.T) {
	path := writeFile(t, "exp.json", `{}`)
	if _, err := Load(path); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestValidateRejects(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Experiment)
	}{
		{"empty id", func(e *Experiment) { e.ExperimentID = " " }},
		{"zero population", func(e *Experiment) { e.PopulationSize = 0 }},
		{"negative offspring", func(e *Experiment) { e.OffspringSize = -1 }},
		{"tournament above population", func(e *Experiment) { e.ParentTournamentSize = 51 }},
		{"parents above tournament", func(e *Experiment) { e.ParentsPerGroup = 11 }},
		{"survivor tournament above pool", func(e *Experiment) { e.SurvivorTournamentSize = 76 }},
		{"unknown fitness mode", func(e *Experiment) { e.FitnessMode = "best" }},
		{"sampling above control", func(e *Experiment) { e.Simulation.SamplingFrequency = 120 }},
		{"zero sigma", func(e *Experiment) { e.Learner.Sigma = 0 }},
		{"mutation probability above one", func(e *Experiment) { e.Genome.MutationProbability = 1.5 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultExperiment()
			tc.mutate(&cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestValidatePlainIgnoresLearner(t *testing.T) {
	cfg := DefaultExperiment()
	cfg.FitnessMode = "plain"
	cfg.Learner = Learner{}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("plain experiment should not need a learner: %v", err)
	}
}
