package genotype

import (
	"fmt"
	"math/rand/v2"

	"lamarck/internal/model"
)

const bodyRegistryKey = "body"

// LibraryConfig parameterizes genome construction and variation.
type LibraryConfig struct {
	GridSize            int
	NumInitialMutations int
	MutationProbability float64
	MutationBound       float64
}

func DefaultLibraryConfig() LibraryConfig {
	return LibraryConfig{
		GridSize:            22,
		NumInitialMutations: 10,
		MutationProbability: 0.8,
		MutationBound:       1,
	}
}

// Library owns the innovation registry shared by all genomes of one
// experiment. It is not safe for concurrent mutation; the engine drives it
// from a single step.
type Library struct {
	cfg      LibraryConfig
	registry *InnovationRegistry
}

func NewLibrary(cfg LibraryConfig) (*Library, error) {
	if cfg.GridSize <= 0 {
		return nil, fmt.Errorf("grid size must be positive, got %d", cfg.GridSize)
	}
	if cfg.MutationProbability < 0 || cfg.MutationProbability > 1 {
		return nil, fmt.Errorf("mutation probability must be in [0, 1], got %f", cfg.MutationProbability)
	}
	return &Library{cfg: cfg, registry: NewInnovationRegistry()}, nil
}

func (l *Library) Config() LibraryConfig { return l.cfg }

// Random grows a body of NumInitialMutations modules, the first of them a
// hinge, and pairs it with a fresh random brain.
func (l *Library) Random(rng *rand.Rand) model.Genome {
	return model.Genome{
		Body:  GrowBody(rng, model.BodyGenome{}, l.registry, l.cfg.GridSize, l.cfg.NumInitialMutations),
		Brain: RandomBrain(rng, l.cfg.GridSize),
	}
}

// RandomPopulation draws n genomes in order from the same stream.
func (l *Library) RandomPopulation(rng *rand.Rand, n int) []model.Genome {
	out := make([]model.Genome, n)
	for i := range out {
		out[i] = l.Random(rng)
	}
	return out
}

func (l *Library) Mutate(rng *rand.Rand, g model.Genome) (model.Genome, error) {
	out := CloneGenome(g)
	out.Body = MutateBody(rng, g.Body, l.registry, l.cfg.GridSize)
	out.Brain = MutateBrain(rng, g.Brain, l.cfg.MutationProbability, l.cfg.MutationBound)
	return out, nil
}

func (l *Library) Crossover(rng *rand.Rand, parents []model.Genome) (model.Genome, error) {
	if len(parents) == 0 {
		return model.Genome{}, fmt.Errorf("crossover requires at least one parent")
	}
	bodies := make([]model.BodyGenome, len(parents))
	brains := make([]model.BrainGenome, len(parents))
	for i, p := range parents {
		bodies[i] = p.Body
		brains[i] = p.Brain
	}
	brain, err := CrossoverBrain(rng, brains)
	if err != nil {
		return model.Genome{}, err
	}
	return model.Genome{
		Body:  CrossoverBody(rng, bodies),
		Brain: brain,
	}, nil
}

func (l *Library) Develop(g model.Genome) (Phenotype, error) {
	return Develop(g)
}

// Registries exposes the serialized innovation registry for checkpointing.
func (l *Library) Registries() (map[string]string, error) {
	data, err := l.registry.Serialize()
	if err != nil {
		return nil, err
	}
	return map[string]string{bodyRegistryKey: data}, nil
}

func (l *Library) RestoreRegistries(registries map[string]string) error {
	data, ok := registries[bodyRegistryKey]
	if !ok {
		return fmt.Errorf("checkpoint has no %q registry", bodyRegistryKey)
	}
	return l.registry.Deserialize(data)
}
