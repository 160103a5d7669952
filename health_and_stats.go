package main

import (
	"net/http"
	"sync/atomic"
	"time"
)

func handleHealth(w http.ResponseWriter, r *http.Request) {
	enableCORS(w)

	status := "healthy"
	if atomic.LoadInt64(&activeJobs) > int64(cfg.Workers*2) {
		status = "overloaded"
	}

	health := HealthStatus{
		Status:        status,
		ActiveJobs:    atomic.LoadInt64(&activeJobs),
		QueuedJobs:    atomic.LoadInt64(&queuedJobs),
		CompletedJobs: atomic.LoadInt64(&completedJobs),
		FailedJobs:    atomic.LoadInt64(&failedJobs),
		Workers:       cfg.Workers,
		Uptime:        time.Since(serverStartTime).String(),
	}

	writeJSON(w, http.StatusOK, health)
}

func handleMetrics(w http.ResponseWriter, r *http.Request) {
	enableCORS(w)

	metrics := map[string]interface{}{
		"active_jobs":    atomic.LoadInt64(&activeJobs),
		"queued_jobs":    atomic.LoadInt64(&queuedJobs),
		"completed_jobs": atomic.LoadInt64(&completedJobs),
		"failed_jobs":    atomic.LoadInt64(&failedJobs),
		"workers":        cfg.Workers,
		"queue_capacity": cfg.QueueCapacity,
		"rate_limit":     RequestsPerSecond,
		"uptime_seconds": time.Since(serverStartTime).Seconds(),
	}

	writeJSON(w, http.StatusOK, metrics)
}

func handleStats(w http.ResponseWriter, r *http.Request) {
	enableCORS(w)

	jobStore.RLock()
	totalJobs := len(jobStore.jobs)
	jobStore.RUnlock()

	completed := atomic.LoadInt64(&completedJobs)
	failed := atomic.LoadInt64(&failedJobs)
	successRate := 0.0
	if completed+failed > 0 {
		successRate = float64(completed) / float64(completed+failed)
	}

	stats := map[string]interface{}{
		"total_jobs":     totalJobs,
		"active_jobs":    atomic.LoadInt64(&activeJobs),
		"queued_jobs":    atomic.LoadInt64(&queuedJobs),
		"completed_jobs": completed,
		"failed_jobs":    failed,
		"success_rate":   successRate,
	}

	writeJSON(w, http.StatusOK, stats)
}
