package main

import "time"

// JobStatus is the explicit lifecycle state of an acquisition job. Pollers
// read this state instead of inferring everything from file existence, so a
// failed job is distinguishable from one that is still running.
type JobStatus string

const (
	StatusPending    JobStatus = "pending"
	StatusProcessing JobStatus = "processing"
	StatusReady      JobStatus = "ready"
	StatusFailed     JobStatus = "failed"
)

// StrategyID names one of the ordered acquisition methods.
type StrategyID string

const (
	// StrategyNative: downloader and transcoder both present, fetch and
	// transcode to mp3 in one pass.
	StrategyNative StrategyID = "native"
	// StrategyDirectAudio: downloader only, grab the best-fitting audio
	// track in whatever container it comes in.
	StrategyDirectAudio StrategyID = "direct-audio"
	// StrategyOnline: no local tools, race third-party conversion services
	// and fall back to a synthesized placeholder.
	StrategyOnline StrategyID = "online"
)

// Metadata holds the display info resolved for a request identifier.
// Duration may be the fixed placeholder value and is advisory only.
type Metadata struct {
	Title     string  `json:"title"`
	Thumbnail string  `json:"thumbnail"`
	Duration  float64 `json:"duration"`
}

// Job tracks a single acquisition request, keyed by the opaque identifier
// derived from the source URL.
type Job struct {
	ID            string     `json:"id"`
	URL           string     `json:"url"`
	Strategy      StrategyID `json:"strategy"`
	Status        JobStatus  `json:"status"`
	Format        string     `json:"format,omitempty"`
	FilePath      string     `json:"file_path,omitempty"`
	Error         string     `json:"error,omitempty"`
	Metadata      *Metadata  `json:"metadata,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	StartedAt     time.Time  `json:"started_at,omitempty"`
	CompletedAt   time.Time  `json:"completed_at,omitempty"`
	FirstServedAt time.Time  `json:"first_served_at,omitempty"`
}

// Artifact is the finished audio file at its canonical location.
type Artifact struct {
	Path   string
	Format string
	Size   int64
}

// Capabilities is a transient snapshot of which external tools are usable.
type Capabilities struct {
	HasDownloader     bool      `json:"hasDownloader"`
	HasTranscoder     bool      `json:"hasTranscoder"`
	DownloaderVersion string    `json:"downloaderVersion,omitempty"`
	TranscoderVersion string    `json:"transcoderVersion,omitempty"`
	ProbedAt          time.Time `json:"probedAt"`
}

type ConvertRequest struct {
	VideoID string `json:"videoId"`
	URL     string `json:"url"`
}

type ConvertResponse struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Thumbnail   string  `json:"thumbnail"`
	Duration    float64 `json:"duration"`
	FileSize    int64   `json:"fileSize"`
	DownloadURL string  `json:"downloadUrl"`
	Quality     string  `json:"quality"`
	Format      string  `json:"format"`
	Status      string  `json:"status"`
	Error       string  `json:"error,omitempty"`
}

type ProgressResponse struct {
	Exists   bool    `json:"exists"`
	Ready    bool    `json:"ready"`
	Size     int64   `json:"size,omitempty"`
	SizeInMB float64 `json:"sizeInMB,omitempty"`
	Format   string  `json:"format,omitempty"`
	Status   string  `json:"status,omitempty"`
	Error    string  `json:"error,omitempty"`
}

type HealthStatus struct {
	Status        string `json:"status"`
	ActiveJobs    int64  `json:"active_jobs"`
	QueuedJobs    int64  `json:"queued_jobs"`
	CompletedJobs int64  `json:"completed_jobs"`
	FailedJobs    int64  `json:"failed_jobs"`
	Workers       int    `json:"workers"`
	Uptime        string `json:"uptime"`
}
