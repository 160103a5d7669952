package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

// handleConvert validates the request, resolves metadata and starts (or
// attaches to) the acquisition job, answering within the fast-path window.
func handleConvert(w http.ResponseWriter, r *http.Request) {
	enableCORS(w)

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "Invalid request method", http.StatusMethodNotAllowed)
		return
	}

	var req ConvertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.URL == "" {
		writeJSONError(w, http.StatusBadRequest, "missing url")
		return
	}
	if _, err := url.ParseRequestURI(req.URL); err != nil {
		writeJSONError(w, http.StatusBadRequest, "malformed url")
		return
	}
	id := req.VideoID
	if id == "" {
		id = deriveID(req.URL)
	}
	if !validID(id) {
		writeJSONError(w, http.StatusBadRequest, "invalid identifier")
		return
	}

	meta := getInfo(r.Context(), req.URL, id)
	if meta == nil {
		// Distinct from a download failure: no job was started.
		writeJSONError(w, http.StatusUnprocessableEntity, "could not resolve video info")
		return
	}

	// Artifact still on disk from an earlier run: answer ready right away.
	if _, format, size, ok := probeArtifact(id); ok {
		writeJSON(w, http.StatusOK, convertResponse(id, meta, StatusReady, format, size, ""))
		return
	}

	job := &Job{
		ID:        id,
		URL:       req.URL,
		Strategy:  selectStrategy(getCapabilities(r.Context())),
		Status:    StatusPending,
		Metadata:  meta,
		CreatedAt: time.Now(),
	}

	claimed, isNew := claimJob(job)
	if !isNew {
		// Attach to the in-flight run instead of racing a second writer.
		resultCh := registerJobWaiter(claimed.ID)
		respondAfterFastPath(w, claimed, meta, resultCh)
		return
	}

	updateJobStatus(job, StatusPending, "")
	resultCh := registerJobWaiter(job.ID)

	select {
	case jobQueue <- job:
		atomic.AddInt64(&queuedJobs, 1)
	default:
		unregisterJobWaiter(job.ID, resultCh)
		releaseJob(job.ID)
		// The pending state already reached the durable stores above; leave
		// a terminal state behind so pollers never see a job that was in
		// fact never started.
		updateJobStatus(job, StatusFailed, "rejected: queue full")
		writeJSONError(w, http.StatusServiceUnavailable, "server busy, try again later")
		return
	}

	respondAfterFastPath(w, job, meta, resultCh)
}

// respondAfterFastPath waits briefly so quick conversions answer in a single
// round trip; everything slower reports processing and is picked up via
// /progress polling.
func respondAfterFastPath(w http.ResponseWriter, job *Job, meta *Metadata, resultCh chan *Job) {
	select {
	case done, ok := <-resultCh:
		if !ok || done == nil {
			writeJSON(w, http.StatusOK, convertResponse(job.ID, meta, StatusProcessing, "", 0, ""))
			return
		}
		if done.Status == StatusReady {
			_, format, size, _ := probeArtifact(done.ID)
			writeJSON(w, http.StatusOK, convertResponse(done.ID, meta, StatusReady, format, size, ""))
		} else {
			writeJSON(w, http.StatusOK, convertResponse(done.ID, meta, StatusFailed, "", 0, done.Error))
		}
	case <-time.After(cfg.FastPathWait):
		unregisterJobWaiter(job.ID, resultCh)
		writeJSON(w, http.StatusOK, convertResponse(job.ID, meta, StatusProcessing, "", 0, ""))
	}
}

func convertResponse(id string, meta *Metadata, status JobStatus, format string, size int64, errMsg string) ConvertResponse {
	if format == "" {
		format = "mp3"
	}
	return ConvertResponse{
		ID:          id,
		Title:       meta.Title,
		Thumbnail:   meta.Thumbnail,
		Duration:    meta.Duration,
		FileSize:    size,
		DownloadURL: fmt.Sprintf("%s/download/%s?format=%s", cfg.PublicBaseURL, id, format),
		Quality:     strings.TrimSuffix(cfg.AudioBitrate, "k") + "kbps",
		Format:      format,
		Status:      string(status),
		Error:       errMsg,
	}
}

// handleProgress answers "is the file for this identifier ready yet". File
// presence at the canonical path means ready; otherwise the explicit job
// state distinguishes a failed run from one still in flight.
func handleProgress(w http.ResponseWriter, r *http.Request) {
	enableCORS(w)

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/progress/")
	if !validID(id) {
		writeJSONError(w, http.StatusBadRequest, "invalid identifier")
		return
	}

	resp := ProgressResponse{}
	if _, format, size, ok := probeArtifact(id); ok {
		resp = ProgressResponse{
			Exists:   true,
			Ready:    true,
			Size:     size,
			SizeInMB: sizeInMB(size),
			Format:   format,
			Status:   string(StatusReady),
		}
	} else if job := lookupJob(id); job != nil {
		resp.Status = string(job.Status)
		resp.Error = job.Error
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleDownload streams the finished artifact and arms the reaper's grace
// period on first serve. Repeat downloads inside the window serve the same
// bytes.
func handleDownload(w http.ResponseWriter, r *http.Request) {
	enableCORS(w)

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	name := strings.TrimPrefix(r.URL.Path, "/download/")
	id := strings.TrimSuffix(name, filepath.Ext(name))
	if !validID(id) {
		writeJSONError(w, http.StatusBadRequest, "invalid identifier")
		return
	}

	path, format, size, ok := probeArtifact(id)
	if !ok {
		http.Error(w, "File not found or conversion not completed", http.StatusNotFound)
		return
	}

	file, err := os.Open(path)
	if err != nil {
		http.Error(w, "Error opening file", http.StatusInternalServerError)
		return
	}
	defer file.Close()

	w.Header().Set("Content-Type", contentTypes[format])
	w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", id+"."+format))
	w.Header().Set("Cache-Control", "public, max-age=3600")
	io.Copy(w, file)

	markServed(id)
}

// handleSystemCheck runs a fresh capability probe and reports remediation
// hints. Diagnostic only.
func handleSystemCheck(w http.ResponseWriter, r *http.Request) {
	enableCORS(w)

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	caps := probeCapabilities(r.Context())
	var hints []string
	if !caps.HasDownloader {
		hints = append(hints, fmt.Sprintf("downloader %q not found; install yt-dlp or set downloader_bin", cfg.DownloaderBin))
	}
	if !caps.HasTranscoder {
		hints = append(hints, fmt.Sprintf("transcoder %q not found; install ffmpeg or set transcoder_bin", cfg.TranscoderBin))
	}
	if len(hints) == 0 {
		hints = append(hints, "all external tools available")
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"capabilities": caps,
		"strategy":     selectStrategy(caps),
		"hints":        hints,
	})
}
