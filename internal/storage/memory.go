package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"lamarck/internal/model"
)

type memoryIndividual struct {
	generation int
	parentIDs  []int64
	genome     []byte
	fitness    float64
}

type memoryCheckpoint struct {
	payload []byte
	info    model.CheckpointInfo
}

type memoryExperiment struct {
	individuals map[int64]memoryIndividual
	generations map[int][]int64
	checkpoints map[int]memoryCheckpoint
	learning    []model.LearningRecord
}

type memoryLearner struct {
	states  map[int][]byte
	samples []model.LearnerSample
}

// MemoryStore keeps encoded records in process memory. Records go through the
// same codec as the sqlite store so reads never alias caller data.
type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	nextID      int64
	experiments map[string]*memoryExperiment
	learners    map[string]*memoryLearner
	now         func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: time.Now}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initialized {
		return nil
	}
	s.initialized = true
	s.nextID = 1
	s.experiments = make(map[string]*memoryExperiment)
	s.learners = make(map[string]*memoryLearner)
	return nil
}

func (s *MemoryStore) CommitGeneration(_ context.Context, commit model.GenerationCommit) ([]int64, error) {
	if err := validateCommit(commit); err != nil {
		return nil, err
	}
	state, err := EncodeEngineState(commit.State)
	if err != nil {
		return nil, err
	}
	genomes := make([][]byte, len(commit.Newcomers))
	for i, ind := range commit.Newcomers {
		if genomes[i], err = EncodeGenome(ind.Genome); err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return nil, errors.New("store is not initialized")
	}

	exp, ok := s.experiments[commit.ExperimentID]
	if !ok {
		exp = &memoryExperiment{
			individuals: make(map[int64]memoryIndividual),
			generations: make(map[int][]int64),
			checkpoints: make(map[int]memoryCheckpoint),
		}
	}
	for _, slot := range commit.Population {
		if slot.IndividualID <= 0 {
			continue
		}
		if _, known := exp.individuals[slot.IndividualID]; !known {
			return nil, fmt.Errorf("%w: %d", ErrUnknownIndividual, slot.IndividualID)
		}
	}

	ids := make([]int64, len(commit.Newcomers))
	for i, ind := range commit.Newcomers {
		ids[i] = s.nextID
		s.nextID++
		exp.individuals[ids[i]] = memoryIndividual{
			generation: ind.Generation,
			parentIDs:  append([]int64(nil), ind.ParentIDs...),
			genome:     genomes[i],
			fitness:    ind.Fitness,
		}
	}
	members := make([]int64, len(commit.Population))
	for i, slot := range commit.Population {
		if slot.IndividualID > 0 {
			members[i] = slot.IndividualID
		} else {
			members[i] = ids[slot.NewcomerRef]
		}
	}
	generation := commit.State.GenerationIndex
	exp.generations[generation] = members
	exp.learning = append(exp.learning, commit.Learning...)
	exp.checkpoints[generation] = memoryCheckpoint{
		payload: state,
		info: model.CheckpointInfo{
			ExperimentID:    commit.ExperimentID,
			GenerationIndex: generation,
			SessionID:       commit.State.SessionID,
			CreatedAtUnix:   s.now().Unix(),
		},
	}
	s.experiments[commit.ExperimentID] = exp
	return ids, nil
}

func (s *MemoryStore) LatestEngineState(_ context.Context, experimentID string) (model.EngineState, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	exp, ok := s.experiments[experimentID]
	if !ok || len(exp.checkpoints) == 0 {
		return model.EngineState{}, false, nil
	}
	latest := -1
	for generation := range exp.checkpoints {
		if generation > latest {
			latest = generation
		}
	}
	state, err := DecodeEngineState(exp.checkpoints[latest].payload)
	if err != nil {
		return model.EngineState{}, false, fmt.Errorf("decode engine state %s/%d: %w", experimentID, latest, err)
	}
	return state, true, nil
}

func (s *MemoryStore) ListCheckpoints(_ context.Context, experimentID string) ([]model.CheckpointInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	exp, ok := s.experiments[experimentID]
	if !ok {
		return nil, nil
	}
	out := make([]model.CheckpointInfo, 0, len(exp.checkpoints))
	for _, cp := range exp.checkpoints {
		out = append(out, cp.info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GenerationIndex < out[j].GenerationIndex })
	return out, nil
}

func (s *MemoryStore) GetGeneration(_ context.Context, experimentID string, generation int) ([]model.Individual, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	exp, ok := s.experiments[experimentID]
	if !ok {
		return nil, false, nil
	}
	members, ok := exp.generations[generation]
	if !ok {
		return nil, false, nil
	}
	out := make([]model.Individual, 0, len(members))
	for _, id := range members {
		stored := exp.individuals[id]
		genome, err := DecodeGenome(stored.genome)
		if err != nil {
			return nil, false, fmt.Errorf("decode genome %d: %w", id, err)
		}
		out = append(out, model.Individual{
			ID:         id,
			Generation: stored.generation,
			ParentIDs:  append([]int64(nil), stored.parentIDs...),
			Genome:     genome,
			Fitness:    stored.fitness,
		})
	}
	return out, true, nil
}

func (s *MemoryStore) ListLearningRecords(_ context.Context, experimentID string) ([]model.LearningRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	exp, ok := s.experiments[experimentID]
	if !ok {
		return nil, nil
	}
	return append([]model.LearningRecord(nil), exp.learning...), nil
}

func (s *MemoryStore) ListExperiments(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.experiments))
	for id := range s.experiments {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

func (s *MemoryStore) SaveLearnerGeneration(_ context.Context, state model.LearnerState, samples []model.LearnerSample) error {
	if state.LearnerID == "" {
		return errors.New("learner id is required")
	}
	payload, err := EncodeLearnerState(state)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return errors.New("store is not initialized")
	}

	learner, ok := s.learners[state.LearnerID]
	if !ok {
		learner = &memoryLearner{states: make(map[int][]byte)}
		s.learners[state.LearnerID] = learner
	}
	kept := learner.samples[:0]
	for _, sample := range learner.samples {
		if sample.Generation != state.Generation {
			kept = append(kept, sample)
		}
	}
	learner.samples = kept
	for _, sample := range samples {
		sample.Params = append([]float64(nil), sample.Params...)
		learner.samples = append(learner.samples, sample)
	}
	learner.states[state.Generation] = payload
	return nil
}

func (s *MemoryStore) LatestLearnerState(_ context.Context, learnerID string) (model.LearnerState, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	learner, ok := s.learners[learnerID]
	if !ok || len(learner.states) == 0 {
		return model.LearnerState{}, false, nil
	}
	latest := -1
	for generation := range learner.states {
		if generation > latest {
			latest = generation
		}
	}
	state, err := DecodeLearnerState(learner.states[latest])
	if err != nil {
		return model.LearnerState{}, false, fmt.Errorf("decode learner state %s: %w", learnerID, err)
	}
	return state, true, nil
}

func (s *MemoryStore) BestLearnerSample(_ context.Context, learnerID string) (model.LearnerSample, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	learner, ok := s.learners[learnerID]
	if !ok || len(learner.samples) == 0 {
		return model.LearnerSample{}, false, nil
	}
	best := learner.samples[0]
	for _, sample := range learner.samples[1:] {
		if betterSample(sample, best) {
			best = sample
		}
	}
	best.Params = append([]float64(nil), best.Params...)
	return best, true, nil
}

func (s *MemoryStore) ListLearnerSamples(_ context.Context, learnerID string) ([]model.LearnerSample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	learner, ok := s.learners[learnerID]
	if !ok {
		return nil, nil
	}
	out := make([]model.LearnerSample, len(learner.samples))
	for i, sample := range learner.samples {
		sample.Params = append([]float64(nil), sample.Params...)
		out[i] = sample
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Generation != out[j].Generation {
			return out[i].Generation < out[j].Generation
		}
		return out[i].Position < out[j].Position
	})
	return out, nil
}

func validateCommit(commit model.GenerationCommit) error {
	if commit.ExperimentID == "" {
		return errors.New("experiment id is required")
	}
	if commit.State.ExperimentID != commit.ExperimentID {
		return fmt.Errorf("engine state belongs to %q, commit to %q", commit.State.ExperimentID, commit.ExperimentID)
	}
	for i, slot := range commit.Population {
		if slot.IndividualID > 0 {
			continue
		}
		if slot.NewcomerRef < 0 || slot.NewcomerRef >= len(commit.Newcomers) {
			return fmt.Errorf("population slot %d references newcomer %d of %d", i, slot.NewcomerRef, len(commit.Newcomers))
		}
	}
	return nil
}
