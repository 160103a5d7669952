package main

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// First-serve times. The grace-period timer is armed exactly once per
// identifier; repeat downloads inside the window succeed without extending
// it.
var served = struct {
	sync.Mutex
	at map[string]time.Time
}{at: make(map[string]time.Time)}

// markServed arms the delayed deletion the first time an artifact is served.
// Deletion happens after the grace period whether or not the transfer
// completed; a late in-flight reader may see a truncated stream, which is the
// documented trade-off.
func markServed(id string) {
	served.Lock()
	if _, armed := served.at[id]; armed {
		served.Unlock()
		return
	}
	served.at[id] = time.Now()
	served.Unlock()

	jobStore.Lock()
	var snapshot *Job
	if job, ok := jobStore.jobs[id]; ok {
		job.FirstServedAt = time.Now()
		cp := *job
		snapshot = &cp
	}
	jobStore.Unlock()
	if snapshot != nil {
		saveJobToRedis(snapshot)
	}

	dir := cfg.WorkDir
	time.AfterFunc(cfg.ServeGracePeriod, func() {
		reapServed(dir, id)
	})
}

func reapServed(dir, id string) {
	reapArtifact(dir, id)
	served.Lock()
	delete(served.at, id)
	served.Unlock()
	dropJob(id)
}

func reapArtifact(dir, id string) {
	for _, ext := range audioExtensions {
		p := filepath.Join(dir, id+"."+ext)
		if err := os.Remove(p); err == nil {
			log.Printf("reaper: removed %s", p)
		}
	}
}

// startArtifactSweep periodically deletes artifacts older than
// MaxArtifactAge, reclaiming storage for files that were produced but never
// downloaded, and evicts the matching finished job entries.
func startArtifactSweep() {
	ticker := time.NewTicker(cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if n := sweepArtifacts(cfg.WorkDir, cfg.MaxArtifactAge); n > 0 {
				log.Printf("reaper: swept %d stale artifact(s)", n)
			}
			if n := evictStaleJobs(cfg.MaxArtifactAge); n > 0 {
				log.Printf("reaper: evicted %d finished job entries", n)
			}
		case <-ctx.Done():
			return
		}
	}
}

// evictStaleJobs drops terminal jobs older than maxAge from the in-memory
// store. Without this, failed and never-downloaded jobs would pin their
// entries forever; the redis mirror expires on its own TTL.
func evictStaleJobs(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)
	jobStore.Lock()
	defer jobStore.Unlock()
	removed := 0
	for id, job := range jobStore.jobs {
		if job.Status != StatusReady && job.Status != StatusFailed {
			continue
		}
		if job.CompletedAt.Before(cutoff) {
			delete(jobStore.jobs, id)
			removed++
		}
	}
	return removed
}

func sweepArtifacts(dir string, maxAge time.Duration) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.TrimPrefix(filepath.Ext(e.Name()), ".")
		if _, known := contentTypes[ext]; !known {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue
		}
		if fi.ModTime().Before(cutoff) {
			if os.Remove(filepath.Join(dir, e.Name())) == nil {
				removed++
			}
		}
	}
	return removed
}
