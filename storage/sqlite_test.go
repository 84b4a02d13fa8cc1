package storage

import (
	"path/filepath"
	"testing"
	"time"

	"japanhouse/models"
)

func newTestHistory(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("create sqlite store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteRunLifecycle(t *testing.T) {
	store := newTestHistory(t)

	run := &models.ScrapeRun{
		RunUID:    "uid-1",
		SiteID:    "suumo",
		StartedAt: time.Now(),
		Status:    models.RunStatusRunning,
	}
	id, err := store.CreateRun(run)
	if err != nil {
		t.Fatalf("create run: %v", err)
	}
	if id == 0 {
		t.Fatalf("expected assigned run id")
	}

	run.ID = id
	finished := time.Now()
	run.FinishedAt = &finished
	run.Status = models.RunStatusCompleted
	run.ListingsFound = 12
	run.ListingsNew = 8
	run.Updated = 2
	run.Skipped = 2
	if err := store.UpdateRun(run); err != nil {
		t.Fatalf("update run: %v", err)
	}

	runs, err := store.GetRecentRuns(10)
	if err != nil {
		t.Fatalf("get recent runs: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 run, got %d", len(runs))
	}
	got := runs[0]
	if got.Status != models.RunStatusCompleted || got.ListingsFound != 12 || got.ListingsNew != 8 {
		t.Fatalf("unexpected run record: %+v", got)
	}
	if got.FinishedAt == nil {
		t.Fatalf("expected finished_at set")
	}
}

func TestSQLiteSiteStats(t *testing.T) {
	store := newTestHistory(t)

	for i := 0; i < 2; i++ {
		run := &models.ScrapeRun{
			RunUID:    "uid",
			SiteID:    "homes",
			StartedAt: time.Now().Add(time.Duration(i) * time.Minute),
			Status:    models.RunStatusCompleted,
		}
		id, err := store.CreateRun(run)
		if err != nil {
			t.Fatalf("create run: %v", err)
		}
		run.ID = id
		run.ListingsFound = 5
		if err := store.UpdateRun(run); err != nil {
			t.Fatalf("update run: %v", err)
		}
		if err := store.UpdateSiteStats("homes"); err != nil {
			t.Fatalf("update site stats: %v", err)
		}
	}

	stats, err := store.GetSiteStats("homes")
	if err != nil {
		t.Fatalf("get site stats: %v", err)
	}
	if stats == nil {
		t.Fatalf("expected stats row")
	}
	if stats.TotalRuns != 2 || stats.TotalListings != 10 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if stats.LastRunAt == nil {
		t.Fatalf("expected last run timestamp")
	}

	missing, err := store.GetSiteStats("athome")
	if err != nil {
		t.Fatalf("get missing stats: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil for unknown site, got %+v", missing)
	}
}

func TestSQLiteLastRunTime(t *testing.T) {
	store := newTestHistory(t)

	last, err := store.GetLastRunTime("suumo")
	if err != nil {
		t.Fatalf("last run time for unknown site: %v", err)
	}
	if !last.IsZero() {
		t.Fatalf("expected zero time before any run, got %v", last)
	}

	run := &models.ScrapeRun{
		RunUID:    "uid",
		SiteID:    "suumo",
		StartedAt: time.Now(),
		Status:    models.RunStatusCompleted,
	}
	if _, err := store.CreateRun(run); err != nil {
		t.Fatalf("create run: %v", err)
	}
	if err := store.UpdateSiteStats("suumo"); err != nil {
		t.Fatalf("update site stats: %v", err)
	}

	last, err = store.GetLastRunTime("suumo")
	if err != nil {
		t.Fatalf("last run time: %v", err)
	}
	if last.IsZero() {
		t.Fatalf("expected recorded last run time")
	}
}

func TestSQLiteLog(t *testing.T) {
	store := newTestHistory(t)

	runID := int64(1)
	if err := store.Log(&runID, models.LogLevelWarn, "page 3 fetch failed", "suumo"); err != nil {
		t.Fatalf("log with run id: %v", err)
	}
	if err := store.Log(nil, models.LogLevelInfo, "run started", ""); err != nil {
		t.Fatalf("log without run id: %v", err)
	}
}
