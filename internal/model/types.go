package model

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// Genome is the heritable description of one robot: a modular body and a
// Lamarckian array brain laid out on the same square grid.
type Genome struct {
	VersionedRecord
	Body  BodyGenome  `json:"body"`
	Brain BrainGenome `json:"brain"`
}

type BodyGenome struct {
	Modules []ModuleGene `json:"modules"`
}

// ModuleGene places one module at a grid cell relative to the core at (0, 0).
type ModuleGene struct {
	Innovation int64  `json:"innovation"`
	X          int    `json:"x"`
	Y          int    `json:"y"`
	Kind       string `json:"kind"`
}

const (
	ModuleHinge = "hinge"
	ModuleBrick = "brick"
)

// BrainGenome is a flat grid_size*grid_size weight vector indexed row-major by y.
type BrainGenome struct {
	Weights  []float64 `json:"weights"`
	GridSize int       `json:"grid_size"`
}

// Individual is one persisted population member. ID is zero until the
// individual has been committed to a store.
type Individual struct {
	ID         int64   `json:"id"`
	Generation int     `json:"generation"`
	ParentIDs  []int64 `json:"parent_ids,omitempty"`
	Genome     Genome  `json:"genome"`
	Fitness    float64 `json:"fitness"`
}

// Hyperparameters are persisted with every checkpoint and restored on resume.
type Hyperparameters struct {
	PopulationSize         int         `json:"population_size"`
	OffspringSize          int         `json:"offspring_size"`
	NumGenerations         int         `json:"num_generations"`
	ParentsPerGroup        int         `json:"parents_per_group"`
	ParentTournamentSize   int         `json:"parent_tournament_size"`
	SurvivorTournamentSize int         `json:"survivor_tournament_size"`
	FitnessMode            string      `json:"fitness_mode"`
	Genome                 GenomeSpec  `json:"genome"`
	Simulation             Simulation  `json:"simulation"`
	Learner                LearnerSpec `json:"learner"`
}

// GenomeSpec configures the genome library.
type GenomeSpec struct {
	GridSize            int     `json:"grid_size"`
	NumInitialMutations int     `json:"num_initial_mutations"`
	MutationProbability float64 `json:"mutation_probability"`
	MutationBound       float64 `json:"mutation_bound"`
}

type Simulation struct {
	SimulationTime    float64 `json:"simulation_time"`
	SamplingFrequency float64 `json:"sampling_frequency"`
	ControlFrequency  float64 `json:"control_frequency"`
}

// LearnerSpec configures the inner evolution-strategy search.
type LearnerSpec struct {
	PopulationSize int        `json:"population_size"`
	Sigma          float64    `json:"sigma"`
	LearningRate   float64    `json:"learning_rate"`
	NumGenerations int        `json:"num_generations"`
	Simulation     Simulation `json:"simulation"`
}

// EngineState is the unit of checkpointing for the outer engine.
type EngineState struct {
	VersionedRecord
	ExperimentID    string            `json:"experiment_id"`
	SessionID       string            `json:"session_id"`
	GenerationIndex int               `json:"generation_index"`
	RNGState        []byte            `json:"rng_state"`
	Registries      map[string]string `json:"registries,omitempty"`
	Hyperparameters Hyperparameters   `json:"hyperparameters"`
}

// LearningRecord is appended once per individual per generation by the
// Lamarckian evaluator.
type LearningRecord struct {
	GenerationIndex int     `json:"generation_index"`
	IndividualIndex int     `json:"individual_index"`
	FitnessBefore   float64 `json:"fitness_before"`
	FitnessAfter    float64 `json:"fitness_after"`
	LearningDelta   float64 `json:"learning_delta"`
}

// GenerationCommit is written atomically at the end of every generation.
// Newcomers are persisted first; Population then refers to them by position
// through NewcomerRefs.
type GenerationCommit struct {
	ExperimentID string
	State        EngineState
	Newcomers    []Individual
	Population   []PopulationSlot
	Learning     []LearningRecord
}

// PopulationSlot references either an already persisted individual or an
// entry of GenerationCommit.Newcomers.
type PopulationSlot struct {
	IndividualID int64
	NewcomerRef  int
}

// CheckpointInfo summarizes one persisted engine state.
type CheckpointInfo struct {
	ExperimentID    string `json:"experiment_id"`
	GenerationIndex int    `json:"generation_index"`
	SessionID       string `json:"session_id"`
	CreatedAtUnix   int64  `json:"created_at_unix"`
}

// LearnerState is the checkpoint of one inner evolution-strategy search.
type LearnerState struct {
	VersionedRecord
	LearnerID  string      `json:"learner_id"`
	Generation int         `json:"generation"`
	Mean       []float64   `json:"mean"`
	RNGState   []byte      `json:"rng_state"`
	Spec       LearnerSpec `json:"spec"`
}

// LearnerSample is one evaluated candidate of an inner search generation.
type LearnerSample struct {
	Generation int       `json:"generation"`
	Position   int       `json:"position"`
	Params     []float64 `json:"params"`
	Fitness    float64   `json:"fitness"`
}

type GenerationStats struct {
	GenerationIndex int     `json:"generation_index"`
	Size            int     `json:"size"`
	Best            float64 `json:"best"`
	Mean            float64 `json:"mean"`
	Min             float64 `json:"min"`
	StdDev          float64 `json:"std_dev"`
}
