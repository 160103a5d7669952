package main

import (
	"fmt"
	"log"
	"os"
	"sync/atomic"
	"time"
)

func startWorker(workerID int) {
	for job := range jobQueue {
		processJob(job, workerID)
	}
}

func processJob(job *Job, workerID int) {
	atomic.AddInt64(&activeJobs, 1)
	atomic.AddInt64(&queuedJobs, -1)

	log.Printf("Worker %d: job %s (%s) via %s\n", workerID, job.ID, job.URL, job.Strategy)

	jobStore.Lock()
	job.StartedAt = time.Now()
	jobStore.Unlock()
	updateJobStatus(job, StatusProcessing, "")

	if err := os.MkdirAll(cfg.WorkDir, 0755); err != nil {
		finishJob(job, nil, fmt.Errorf("create work dir: %w", err))
		return
	}

	art, err := runAcquisition(ctx, job)
	finishJob(job, art, err)
}

// finishJob records the terminal state, releases the in-flight claim and
// wakes waiters. There is no automatic retry: a failed identifier runs again
// only when a fresh request arrives, which overwrites any previous state.
// The job is shared with the store, so field writes go under its lock.
func finishJob(job *Job, art *Artifact, err error) {
	jobStore.Lock()
	job.CompletedAt = time.Now()
	if err == nil {
		job.FilePath = art.Path
		job.Format = art.Format
	}
	jobStore.Unlock()

	if err != nil {
		atomic.AddInt64(&failedJobs, 1)
		updateJobStatus(job, StatusFailed, err.Error())
	} else {
		atomic.AddInt64(&completedJobs, 1)
		updateJobStatus(job, StatusReady, "")
		log.Printf("Job %s ready: %s (%s)\n", job.ID, art.Path, formatSize(art.Size))
	}
	atomic.AddInt64(&activeJobs, -1)
	releaseJob(job.ID)
	notifyJobCompletion(job)
}
