package main

import (
	"context"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

var (
	cfg = defaultConfig()

	jobQueue chan *Job

	jobStore = struct {
		sync.RWMutex
		jobs map[string]*Job
	}{jobs: make(map[string]*Job)}

	// In-flight dedup: a second request for an identifier that is already
	// being acquired attaches to the running job instead of starting a
	// second writer for the same canonical path.
	inflight = struct {
		sync.Mutex
		m map[string]*Job
	}{m: make(map[string]*Job)}

	// Metrics
	activeJobs    int64
	queuedJobs    int64
	completedJobs int64
	failedJobs    int64

	// Rate limiter
	rateLimiter = rate.NewLimiter(rate.Limit(RequestsPerSecond), BurstSize)

	// Redis client, nil when redis is unreachable
	redisClient *redis.Client

	// Server start time
	serverStartTime = time.Now()

	// Context for graceful shutdown
	ctx, cancel = context.WithCancel(context.Background())
)

// Waiters notified when a job reaches a terminal state (ready or failed).
var jobWaiters = struct {
	sync.Mutex
	m map[string][]chan *Job
}{m: make(map[string][]chan *Job)}
