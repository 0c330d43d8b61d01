package stores

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store, err := NewSQLiteStore(Config{
		Path: filepath.Join(t.TempDir(), "history.db"),
	})
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	return store
}

func TestRunLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	started := time.Now().UTC().Truncate(time.Millisecond)
	run := &Run{
		ID:        "run-1",
		Topology:  "demo-lab",
		Status:    RunStatusRunning,
		StartedAt: started,
	}
	if err := store.CreateRun(ctx, run); err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}

	got, err := store.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if got.Status != RunStatusRunning {
		t.Errorf("Expected running status, got %s", got.Status)
	}
	if !got.StartedAt.Equal(started) {
		t.Errorf("Expected started_at %v, got %v", started, got.StartedAt)
	}
	if got.CompletedAt != nil {
		t.Errorf("Expected nil completed_at for a running run, got %v", got.CompletedAt)
	}

	completed := started.Add(2 * time.Second)
	if err := store.FinishRun(ctx, "run-1", RunStatusSucceeded, completed, nil); err != nil {
		t.Fatalf("FinishRun failed: %v", err)
	}

	got, err = store.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun failed after finish: %v", err)
	}
	if got.Status != RunStatusSucceeded {
		t.Errorf("Expected succeeded status, got %s", got.Status)
	}
	if got.CompletedAt == nil || !got.CompletedAt.Equal(completed) {
		t.Errorf("Expected completed_at %v, got %v", completed, got.CompletedAt)
	}
}

func TestFinishRun_NotFound(t *testing.T) {
	store := newTestStore(t)

	err := store.FinishRun(context.Background(), "ghost", RunStatusFailed, time.Now(), nil)
	if err == nil {
		t.Fatal("Expected error for unknown run")
	}
}

func TestStepsRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	run := &Run{
		ID:        "run-2",
		Topology:  "demo-lab",
		Status:    RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}
	if err := store.CreateRun(ctx, run); err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}

	errMsg := "device with this name already exists"
	steps := []*Step{
		{
			RunID: "run-2", Seq: 1, Kind: "role", Name: "role",
			Method: "POST", Path: "/api/extras/roles/",
			Status: StepStatusSucceeded, Display: "network_device", DurationMS: 12,
		},
		{
			RunID: "run-2", Seq: 2, Kind: "device", Name: "device:ceos-01",
			Method: "POST", Path: "/api/dcim/devices/",
			Status: StepStatusFailed, Error: &errMsg, DurationMS: 40,
		},
	}
	for _, step := range steps {
		if err := store.AppendStep(ctx, step); err != nil {
			t.Fatalf("AppendStep %d failed: %v", step.Seq, err)
		}
	}

	got, err := store.ListSteps(ctx, "run-2")
	if err != nil {
		t.Fatalf("ListSteps failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 steps, got %d", len(got))
	}
	if got[0].Seq != 1 || got[1].Seq != 2 {
		t.Errorf("Expected steps in plan order, got %d, %d", got[0].Seq, got[1].Seq)
	}
	if got[1].Error == nil || *got[1].Error != errMsg {
		t.Errorf("Expected failure message preserved, got %v", got[1].Error)
	}
	if got[0].Display != "network_device" {
		t.Errorf("Expected display preserved, got %q", got[0].Display)
	}
}

func TestListRuns_NewestFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC()
	for i, id := range []string{"old", "mid", "new"} {
		run := &Run{
			ID:        id,
			Status:    RunStatusSucceeded,
			StartedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := store.CreateRun(ctx, run); err != nil {
			t.Fatalf("CreateRun %s failed: %v", id, err)
		}
	}

	runs, err := store.ListRuns(ctx, 2, 0)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("Expected 2 runs, got %d", len(runs))
	}
	if runs[0].ID != "new" || runs[1].ID != "mid" {
		t.Errorf("Expected newest first, got %s, %s", runs[0].ID, runs[1].ID)
	}
}
