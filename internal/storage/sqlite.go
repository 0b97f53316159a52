package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"lamarck/internal/model"

	_ "modernc.org/sqlite"
)

type SQLiteStore struct {
	path string
	now  func() time.Time

	mu sync.RWMutex
	db *sql.DB
}

func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{path: path, now: time.Now}
}

func (s *SQLiteStore) Path() string { return s.path }

func (s *SQLiteStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return errors.New("sqlite path is required")
	}
	if s.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return err
	}
	// A single connection serializes writers and keeps :memory: databases shared.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return err
	}

	if err := createTables(ctx, db); err != nil {
		_ = db.Close()
		return err
	}

	s.db = db
	return nil
}

func (s *SQLiteStore) CommitGeneration(ctx context.Context, commit model.GenerationCommit) ([]int64, error) {
	if err := validateCommit(commit); err != nil {
		return nil, err
	}
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}
	state, err := EncodeEngineState(commit.State)
	if err != nil {
		return nil, err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	ids := make([]int64, len(commit.Newcomers))
	for i, ind := range commit.Newcomers {
		genome, err := EncodeGenome(ind.Genome)
		if err != nil {
			return nil, err
		}
		parents, err := EncodeParentIDs(ind.ParentIDs)
		if err != nil {
			return nil, err
		}
		version := CurrentVersion()
		res, err := tx.ExecContext(ctx, `
			INSERT INTO individuals (experiment_id, generation, parent_ids, schema_version, codec_version, genome, fitness)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, commit.ExperimentID, ind.Generation, parents, version.SchemaVersion, version.CodecVersion, genome, ind.Fitness)
		if err != nil {
			return nil, fmt.Errorf("insert individual: %w", err)
		}
		if ids[i], err = res.LastInsertId(); err != nil {
			return nil, err
		}
	}

	generation := commit.State.GenerationIndex
	if _, err := tx.ExecContext(ctx, `DELETE FROM generations WHERE experiment_id = ? AND generation_index = ?`, commit.ExperimentID, generation); err != nil {
		return nil, err
	}
	for position, slot := range commit.Population {
		id := slot.IndividualID
		if id <= 0 {
			id = ids[slot.NewcomerRef]
		} else {
			var owner string
			err := tx.QueryRowContext(ctx, `SELECT experiment_id FROM individuals WHERE id = ?`, id).Scan(&owner)
			if errors.Is(err, sql.ErrNoRows) || (err == nil && owner != commit.ExperimentID) {
				return nil, fmt.Errorf("%w: %d", ErrUnknownIndividual, id)
			}
			if err != nil {
				return nil, err
			}
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO generations (experiment_id, generation_index, position, individual_id)
			VALUES (?, ?, ?, ?)
		`, commit.ExperimentID, generation, position, id); err != nil {
			return nil, fmt.Errorf("insert generation member: %w", err)
		}
	}

	for _, record := range commit.Learning {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO learning_records (experiment_id, generation_index, individual_index, fitness_before, fitness_after, learning_delta)
			VALUES (?, ?, ?, ?, ?, ?)
		`, commit.ExperimentID, record.GenerationIndex, record.IndividualIndex, record.FitnessBefore, record.FitnessAfter, record.LearningDelta); err != nil {
			return nil, fmt.Errorf("insert learning record: %w", err)
		}
	}

	version := CurrentVersion()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO engine_states (experiment_id, generation_index, session_id, created_at, schema_version, codec_version, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(experiment_id, generation_index) DO UPDATE SET
			session_id = excluded.session_id,
			created_at = excluded.created_at,
			schema_version = excluded.schema_version,
			codec_version = excluded.codec_version,
			payload = excluded.payload
	`, commit.ExperimentID, generation, commit.State.SessionID, s.now().Unix(), version.SchemaVersion, version.CodecVersion, state); err != nil {
		return nil, fmt.Errorf("insert engine state: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *SQLiteStore) LatestEngineState(ctx context.Context, experimentID string) (model.EngineState, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return model.EngineState{}, false, err
	}

	var (
		generation int
		payload    []byte
	)
	err = db.QueryRowContext(ctx, `
		SELECT generation_index, payload FROM engine_states
		WHERE experiment_id = ?
		ORDER BY generation_index DESC
		LIMIT 1
	`, experimentID).Scan(&generation, &payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.EngineState{}, false, nil
		}
		return model.EngineState{}, false, err
	}

	state, err := DecodeEngineState(payload)
	if err != nil {
		return model.EngineState{}, false, fmt.Errorf("decode engine state %s/%d: %w", experimentID, generation, err)
	}
	return state, true, nil
}

func (s *SQLiteStore) ListCheckpoints(ctx context.Context, experimentID string) ([]model.CheckpointInfo, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT generation_index, session_id, created_at FROM engine_states
		WHERE experiment_id = ?
		ORDER BY generation_index
	`, experimentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.CheckpointInfo
	for rows.Next() {
		info := model.CheckpointInfo{ExperimentID: experimentID}
		if err := rows.Scan(&info.GenerationIndex, &info.SessionID, &info.CreatedAtUnix); err != nil {
			return nil, err
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) GetGeneration(ctx context.Context, experimentID string, generation int) ([]model.Individual, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, false, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT i.id, i.generation, i.parent_ids, i.genome, i.fitness
		FROM generations g
		JOIN individuals i ON i.id = g.individual_id
		WHERE g.experiment_id = ? AND g.generation_index = ?
		ORDER BY g.position
	`, experimentID, generation)
	if err != nil {
		return nil, false, err
	}
	defer rows.Close()

	var out []model.Individual
	for rows.Next() {
		var (
			ind     model.Individual
			parents []byte
			genome  []byte
		)
		if err := rows.Scan(&ind.ID, &ind.Generation, &parents, &genome, &ind.Fitness); err != nil {
			return nil, false, err
		}
		if ind.ParentIDs, err = DecodeParentIDs(parents); err != nil {
			return nil, false, fmt.Errorf("decode parents of %d: %w", ind.ID, err)
		}
		if ind.Genome, err = DecodeGenome(genome); err != nil {
			return nil, false, fmt.Errorf("decode genome %d: %w", ind.ID, err)
		}
		out = append(out, ind)
	}
	if err := rows.Err(); err != nil {
		return nil, false, err
	}
	if len(out) == 0 {
		return nil, false, nil
	}
	return out, true, nil
}

func (s *SQLiteStore) ListLearningRecords(ctx context.Context, experimentID string) ([]model.LearningRecord, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT generation_index, individual_index, fitness_before, fitness_after, learning_delta
		FROM learning_records
		WHERE experiment_id = ?
		ORDER BY rowid
	`, experimentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.LearningRecord
	for rows.Next() {
		var r model.LearningRecord
		if err := rows.Scan(&r.GenerationIndex, &r.IndividualIndex, &r.FitnessBefore, &r.FitnessAfter, &r.LearningDelta); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) ListExperiments(ctx context.Context) ([]string, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `SELECT DISTINCT experiment_id FROM engine_states ORDER BY experiment_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) SaveLearnerGeneration(ctx context.Context, state model.LearnerState, samples []model.LearnerSample) error {
	if state.LearnerID == "" {
		return errors.New("learner id is required")
	}
	db, err := s.getDB()
	if err != nil {
		return err
	}
	payload, err := EncodeLearnerState(state)
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, sample := range samples {
		params, err := EncodeParams(sample.Params)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO learner_samples (learner_id, generation, position, params, fitness)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(learner_id, generation, position) DO UPDATE SET
				params = excluded.params,
				fitness = excluded.fitness
		`, state.LearnerID, sample.Generation, sample.Position, params, sample.Fitness); err != nil {
			return fmt.Errorf("insert learner sample: %w", err)
		}
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO learner_states (learner_id, generation, payload)
		VALUES (?, ?, ?)
		ON CONFLICT(learner_id, generation) DO UPDATE SET
			payload = excluded.payload
	`, state.LearnerID, state.Generation, payload); err != nil {
		return fmt.Errorf("insert learner state: %w", err)
	}
	return tx.Commit()
}

func (s *SQLiteStore) LatestLearnerState(ctx context.Context, learnerID string) (model.LearnerState, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return model.LearnerState{}, false, err
	}

	var payload []byte
	err = db.QueryRowContext(ctx, `
		SELECT payload FROM learner_states
		WHERE learner_id = ?
		ORDER BY generation DESC
		LIMIT 1
	`, learnerID).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.LearnerState{}, false, nil
		}
		return model.LearnerState{}, false, err
	}

	state, err := DecodeLearnerState(payload)
	if err != nil {
		return model.LearnerState{}, false, fmt.Errorf("decode learner state %s: %w", learnerID, err)
	}
	return state, true, nil
}

func (s *SQLiteStore) BestLearnerSample(ctx context.Context, learnerID string) (model.LearnerSample, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return model.LearnerSample{}, false, err
	}

	var (
		sample model.LearnerSample
		params []byte
	)
	err = db.QueryRowContext(ctx, `
		SELECT generation, position, params, fitness FROM learner_samples
		WHERE learner_id = ?
		ORDER BY fitness DESC, generation, position
		LIMIT 1
	`, learnerID).Scan(&sample.Generation, &sample.Position, &params, &sample.Fitness)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.LearnerSample{}, false, nil
		}
		return model.LearnerSample{}, false, err
	}
	if sample.Params, err = DecodeParams(params); err != nil {
		return model.LearnerSample{}, false, err
	}
	return sample, true, nil
}

func (s *SQLiteStore) ListLearnerSamples(ctx context.Context, learnerID string) ([]model.LearnerSample, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT generation, position, params, fitness FROM learner_samples
		WHERE learner_id = ?
		ORDER BY generation, position
	`, learnerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.LearnerSample
	for rows.Next() {
		var (
			sample model.LearnerSample
			params []byte
		)
		if err := rows.Scan(&sample.Generation, &sample.Position, &params, &sample.Fitness); err != nil {
			return nil, err
		}
		if sample.Params, err = DecodeParams(params); err != nil {
			return nil, err
		}
		out = append(out, sample)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *SQLiteStore) getDB() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, errors.New("store is not initialized")
	}
	return s.db, nil
}

func createTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS individuals (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			experiment_id TEXT NOT NULL,
			generation INTEGER NOT NULL,
			parent_ids BLOB NOT NULL,
			schema_version INTEGER NOT NULL,
			codec_version INTEGER NOT NULL,
			genome BLOB NOT NULL,
			fitness REAL NOT NULL
		);
		CREATE TABLE IF NOT EXISTS generations (
			experiment_id TEXT NOT NULL,
			generation_index INTEGER NOT NULL,
			position INTEGER NOT NULL,
			individual_id INTEGER NOT NULL REFERENCES individuals(id),
			PRIMARY KEY (experiment_id, generation_index, position)
		);
		CREATE TABLE IF NOT EXISTS engine_states (
			experiment_id TEXT NOT NULL,
			generation_index INTEGER NOT NULL,
			session_id TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			schema_version INTEGER NOT NULL,
			codec_version INTEGER NOT NULL,
			payload BLOB NOT NULL,
			PRIMARY KEY (experiment_id, generation_index)
		);
		CREATE TABLE IF NOT EXISTS learning_records (
			experiment_id TEXT NOT NULL,
			generation_index INTEGER NOT NULL,
			individual_index INTEGER NOT NULL,
			fitness_before REAL NOT NULL,
			fitness_after REAL NOT NULL,
			learning_delta REAL NOT NULL
		);
		CREATE TABLE IF NOT EXISTS learner_states (
			learner_id TEXT NOT NULL,
			generation INTEGER NOT NULL,
			payload BLOB NOT NULL,
			PRIMARY KEY (learner_id, generation)
		);
		CREATE TABLE IF NOT EXISTS learner_samples (
			learner_id TEXT NOT NULL,
			generation INTEGER NOT NULL,
			position INTEGER NOT NULL,
			params BLOB NOT NULL,
			fitness REAL NOT NULL,
			PRIMARY KEY (learner_id, generation, position)
		);
	`)
	return err
}
