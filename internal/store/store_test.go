package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"caterpillar/internal/quality"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestNewStore(t *testing.T) {
	tmpDir := t.TempDir()

	s, err := NewStore(tmpDir)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	defer func() { _ = s.Close() }()

	if s.Path() != filepath.Join(tmpDir, "runs.db") {
		t.Errorf("unexpected path %s", s.Path())
	}
	if _, err := os.Stat(s.Path()); os.IsNotExist(err) {
		t.Error("Database file should be created")
	}
}

func TestNewStore_InvalidDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	invalidPath := filepath.Join(tmpDir, "file.txt")
	_ = os.WriteFile(invalidPath, []byte("test"), 0o644)

	if _, err := NewStore(invalidPath); err == nil {
		t.Error("Expected error when creating store in invalid directory")
	}
}

func TestSaveRun_Results(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	run := Run{
		ID:        uuid.NewString(),
		Kind:      "train",
		StartedAt: time.Now(),
		Config:    map[string]any{"k_fold": 6},
	}
	results := []Result{
		{Label: "fold 0", Metrics: quality.Metrics{Runs: 10, TruePositives: 7, Precision: 0.7, F1: 0.6}},
		{Label: "fold 1", Metrics: quality.Metrics{Runs: 10, TruePositives: 3, Precision: 0.3, F1: 0.2}},
	}
	if err := s.SaveRun(ctx, run, results); err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}

	got, err := s.Results(ctx, run.ID)
	if err != nil {
		t.Fatalf("Results failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 results, got %d", len(got))
	}
	if got[0].Label != "fold 0" || got[1].Label != "fold 1" {
		t.Errorf("results out of order: %+v", got)
	}
	if got[0].Metrics != results[0].Metrics {
		t.Errorf("metrics changed in round trip: %+v", got[0].Metrics)
	}

	// Saving again replaces the results
	if err := s.SaveRun(ctx, run, results[:1]); err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}
	got, _ = s.Results(ctx, run.ID)
	if len(got) != 1 {
		t.Errorf("expected 1 result after replace, got %d", len(got))
	}
}

func TestListRuns(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, kind := range []string{"evaluate", "sweep", "train"} {
		run := Run{ID: kind, Kind: kind, StartedAt: base.Add(time.Duration(i) * time.Hour)}
		m := quality.Metrics{Runs: 1, TruePositives: i, Precision: float64(i) / 4}
		if err := s.SaveRun(ctx, run, []Result{{Label: "x", Metrics: m}, {Label: "y", Metrics: m}}); err != nil {
			t.Fatalf("SaveRun failed: %v", err)
		}
	}

	runs, err := s.ListRuns(ctx, 2)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].ID != "train" || runs[1].ID != "sweep" {
		t.Errorf("expected newest first, got %s, %s", runs[0].ID, runs[1].ID)
	}
	if runs[0].Results != 2 || runs[0].Total.Runs != 2 || runs[0].Total.TruePositives != 4 {
		t.Errorf("unexpected summary %+v", runs[0])
	}
	if !runs[0].StartedAt.Equal(base.Add(2 * time.Hour)) {
		t.Errorf("unexpected start time %v", runs[0].StartedAt)
	}
}

func TestDeleteRun(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.SaveRun(ctx, Run{ID: "a", Kind: "train", StartedAt: time.Now()}, []Result{{Label: "fold 0"}}); err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}
	if err := s.DeleteRun(ctx, "a"); err != nil {
		t.Fatalf("DeleteRun failed: %v", err)
	}
	if _, err := s.Results(ctx, "a"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound, got %v", err)
	}
	if err := s.DeleteRun(ctx, "a"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound, got %v", err)
	}
}
