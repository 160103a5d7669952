package main

import (
	"path/filepath"
	"testing"
	"time"
)

func openTestDB(t *testing.T) {
	t.Helper()
	if err := openJobDB(filepath.Join(t.TempDir(), "jobs.db")); err != nil {
		t.Fatalf("openJobDB() error = %v", err)
	}
	t.Cleanup(closeJobDB)
}

func TestPersistAndLoadJob(t *testing.T) {
	setupTest(t)
	openTestDB(t)

	job := &Job{
		ID:        "dbvid1",
		URL:       "https://example.com/watch?v=dbvid1",
		Strategy:  StrategyNative,
		Status:    StatusProcessing,
		CreatedAt: time.Now(),
	}
	if err := persistJob(job); err != nil {
		t.Fatalf("persistJob() error = %v", err)
	}

	got, err := loadJob("dbvid1")
	if err != nil {
		t.Fatalf("loadJob() error = %v", err)
	}
	if got == nil {
		t.Fatal("loadJob() = nil")
	}
	if got.URL != job.URL || got.Strategy != StrategyNative || got.Status != StatusProcessing {
		t.Errorf("loaded job = %+v", got)
	}
}

func TestPersistJobUpsertsTransitions(t *testing.T) {
	setupTest(t)
	openTestDB(t)

	job := &Job{ID: "dbvid2", URL: "u", Strategy: StrategyOnline, Status: StatusPending, CreatedAt: time.Now()}
	if err := persistJob(job); err != nil {
		t.Fatal(err)
	}
	job.Status = StatusReady
	job.Format = "mp3"
	job.CompletedAt = time.Now()
	if err := persistJob(job); err != nil {
		t.Fatal(err)
	}

	got, err := loadJob("dbvid2")
	if err != nil || got == nil {
		t.Fatalf("loadJob() = %v, %v", got, err)
	}
	if got.Status != StatusReady || got.Format != "mp3" {
		t.Errorf("after upsert: %+v", got)
	}
}

func TestLoadJobUnknownID(t *testing.T) {
	setupTest(t)
	openTestDB(t)

	got, err := loadJob("missing1")
	if err != nil {
		t.Fatalf("loadJob() error = %v", err)
	}
	if got != nil {
		t.Fatalf("loadJob() = %+v, want nil", got)
	}
}

func TestRecoverStaleJobs(t *testing.T) {
	setupTest(t)
	openTestDB(t)

	stale := &Job{ID: "stale1", URL: "u", Strategy: StrategyNative, Status: StatusProcessing, CreatedAt: time.Now()}
	done := &Job{ID: "done1", URL: "u", Strategy: StrategyNative, Status: StatusReady, CreatedAt: time.Now()}
	for _, j := range []*Job{stale, done} {
		if err := persistJob(j); err != nil {
			t.Fatal(err)
		}
	}

	n, err := recoverStaleJobs()
	if err != nil {
		t.Fatalf("recoverStaleJobs() error = %v", err)
	}
	if n != 1 {
		t.Fatalf("recovered %d, want 1", n)
	}

	got, _ := loadJob("stale1")
	if got.Status != StatusFailed || got.Error == "" {
		t.Errorf("stale job after recovery = %+v", got)
	}
	got, _ = loadJob("done1")
	if got.Status != StatusReady {
		t.Errorf("finished job was touched: %+v", got)
	}
}

func TestLookupJobReturnsCopy(t *testing.T) {
	setupTest(t)

	job := &Job{ID: "copyvid1", URL: "u", Strategy: StrategyNative, CreatedAt: time.Now()}
	updateJobStatus(job, StatusProcessing, "")

	got := lookupJob("copyvid1")
	if got == nil {
		t.Fatal("lookupJob() = nil")
	}
	if got == job {
		t.Fatal("lookupJob returned the shared store entry")
	}

	got.Status = StatusFailed
	got.Error = "mutated by caller"

	jobStore.RLock()
	stored := jobStore.jobs["copyvid1"]
	jobStore.RUnlock()
	if stored.Status != StatusProcessing || stored.Error != "" {
		t.Fatalf("caller mutation reached the store: %+v", stored)
	}
}

func TestLookupJobFallsBackToDurableStore(t *testing.T) {
	setupTest(t)
	openTestDB(t)

	job := &Job{ID: "dbvid3", URL: "u", Strategy: StrategyNative, Status: StatusFailed, Error: "boom", CreatedAt: time.Now()}
	if err := persistJob(job); err != nil {
		t.Fatal(err)
	}
	// Not present in the in-memory store, as after a restart.
	got := lookupJob("dbvid3")
	if got == nil || got.Status != StatusFailed || got.Error != "boom" {
		t.Fatalf("lookupJob() = %+v", got)
	}
}
