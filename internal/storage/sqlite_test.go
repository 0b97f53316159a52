package storage

import (
	"context"
	"path/filepath"
	"testing"

	"lamarck/internal/model"
)

func newSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store := NewSQLiteStore(filepath.Join(t.TempDir(), "lamarck.db"))
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

func commitFixture() model.GenerationCommit {
	return model.GenerationCommit{
		ExperimentID: "opt",
		State:        testState("opt", 0),
		Newcomers:    []model.Individual{{Genome: testGenome(1), Fitness: 1}},
		Population:   []model.PopulationSlot{{NewcomerRef: 0}},
	}
}

func TestSQLiteStoreGenerations(t *testing.T) {
	exerciseStore(t, newSQLiteStore(t))
}

func TestSQLiteStoreLearners(t *testing.T) {
	exerciseLearnerStore(t, newSQLiteStore(t))
}

func TestSQLiteStoreReopenKeepsCheckpoints(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "lamarck.db")

	first := NewSQLiteStore(path)
	if err := first.Init(ctx); err != nil {
		t.Fatalf("init first: %v", err)
	}
	if _, err := first.CommitGeneration(ctx, commitFixture()); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	second := NewSQLiteStore(path)
	if err := second.Init(ctx); err != nil {
		t.Fatalf("init second: %v", err)
	}
	t.Cleanup(func() { _ = second.Close() })

	state, ok, err := second.LatestEngineState(ctx, "opt")
	if err != nil || !ok {
		t.Fatalf("latest state after reopen: ok=%t err=%v", ok, err)
	}
	if state.SessionID != "session-a" {
		t.Fatalf("unexpected session id: %q", state.SessionID)
	}
}

func TestSQLiteStoreRejectsForeignVersion(t *testing.T) {
	ctx := context.Background()
	store := newSQLiteStore(t)
	if _, err := store.CommitGeneration(ctx, commitFixture()); err != nil {
		t.Fatalf("commit: %v", err)
	}
	db, err := store.getDB()
	if err != nil {
		t.Fatalf("get db: %v", err)
	}
	if _, err := db.ExecContext(ctx, `UPDATE engine_states SET payload = ?`, []byte(`{"schema_version":9,"codec_version":1}`)); err != nil {
		t.Fatalf("corrupt payload: %v", err)
	}
	if _, _, err := store.LatestEngineState(ctx, "opt"); !IsIncompatible(err) {
		t.Fatalf("expected incompatible state error, got %v", err)
	}
}

func TestSQLiteStoreRequiresPath(t *testing.T) {
	if err := NewSQLiteStore("").Init(context.Background()); err == nil {
		t.Fatal("expected missing path error")
	}
}
