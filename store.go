package main

import (
	"database/sql"
	"log"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const jobSchema = `
CREATE TABLE IF NOT EXISTS jobs (
    id           TEXT PRIMARY KEY,
    url          TEXT NOT NULL,
    strategy     TEXT NOT NULL,
    status       TEXT NOT NULL,
    format       TEXT,
    file_path    TEXT,
    error        TEXT,
    created_at   DATETIME,
    completed_at DATETIME
);
CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status);
`

// jobDB is the durable job table. Nil when the database could not be opened;
// every accessor degrades to the in-memory store in that case.
var jobDB *sql.DB

func openJobDB(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return err
	}
	if _, err := db.Exec(jobSchema); err != nil {
		db.Close()
		return err
	}
	jobDB = db
	return nil
}

func closeJobDB() {
	if jobDB != nil {
		jobDB.Close()
		jobDB = nil
	}
}

func persistJob(job *Job) error {
	if jobDB == nil {
		return nil
	}
	_, err := jobDB.Exec(
		`INSERT INTO jobs (id, url, strategy, status, format, file_path, error, created_at, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   url = excluded.url, strategy = excluded.strategy, status = excluded.status,
		   format = excluded.format, file_path = excluded.file_path, error = excluded.error,
		   completed_at = excluded.completed_at`,
		job.ID, job.URL, string(job.Strategy), string(job.Status),
		job.Format, job.FilePath, job.Error, job.CreatedAt, job.CompletedAt,
	)
	return err
}

func loadJob(id string) (*Job, error) {
	if jobDB == nil {
		return nil, nil
	}
	row := jobDB.QueryRow(
		`SELECT id, url, strategy, status, COALESCE(format, ''), COALESCE(file_path, ''),
		        COALESCE(error, ''), created_at, completed_at
		 FROM jobs WHERE id = ?`, id)

	var job Job
	var strategy, status string
	var createdAt, completedAt sql.NullTime
	if err := row.Scan(&job.ID, &job.URL, &strategy, &status, &job.Format,
		&job.FilePath, &job.Error, &createdAt, &completedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	job.Strategy = StrategyID(strategy)
	job.Status = JobStatus(status)
	job.CreatedAt = createdAt.Time
	job.CompletedAt = completedAt.Time
	return &job, nil
}

// recoverStaleJobs marks jobs left non-terminal by a previous process as
// failed, so pollers see a terminal state instead of waiting forever.
func recoverStaleJobs() (int64, error) {
	if jobDB == nil {
		return 0, nil
	}
	res, err := jobDB.Exec(
		`UPDATE jobs SET status = ?, error = ?, completed_at = ?
		 WHERE status IN (?, ?)`,
		string(StatusFailed), "interrupted by restart", time.Now(),
		string(StatusPending), string(StatusProcessing),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// updateJobStatus applies a state transition and propagates it to every
// store: memory, redis mirror and the durable table. The snapshot for the
// external stores is taken under the lock so they never see torn fields.
func updateJobStatus(job *Job, status JobStatus, errMsg string) {
	jobStore.Lock()
	job.Status = status
	job.Error = errMsg
	jobStore.jobs[job.ID] = job
	snapshot := *job
	jobStore.Unlock()
	saveJobToRedis(&snapshot)
	if err := persistJob(&snapshot); err != nil {
		log.Printf("job %s: persist: %v", job.ID, err)
	}
}

// lookupJob finds a job in memory first, then in the redis mirror, then in
// the durable table. Returns nil for identifiers never submitted. The result
// is always a copy; callers never share fields with the running worker.
func lookupJob(id string) *Job {
	jobStore.RLock()
	job, ok := jobStore.jobs[id]
	if ok {
		cp := *job
		jobStore.RUnlock()
		return &cp
	}
	jobStore.RUnlock()
	if j, err := getJobFromRedis(id); err == nil && j != nil {
		return j
	}
	if j, err := loadJob(id); err == nil && j != nil {
		return j
	}
	return nil
}

func dropJob(id string) {
	jobStore.Lock()
	delete(jobStore.jobs, id)
	jobStore.Unlock()
}
