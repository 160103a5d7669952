package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Canonical artifact extensions, in preference order when several exist.
var audioExtensions = []string{"mp3", "m4a", "webm", "opus", "aac", "wav"}

var contentTypes = map[string]string{
	"mp3":  "audio/mpeg",
	"m4a":  "audio/mp4",
	"webm": "audio/webm",
	"opus": "audio/opus",
	"aac":  "audio/aac",
	"wav":  "audio/wav",
}

func artifactPath(id, ext string) string {
	return filepath.Join(cfg.WorkDir, id+"."+ext)
}

// probeArtifact reports whether a finished artifact exists for id. The
// runner only publishes complete files at the canonical path, so presence
// means ready.
func probeArtifact(id string) (path, format string, size int64, ok bool) {
	for _, ext := range audioExtensions {
		p := artifactPath(id, ext)
		if fi, err := os.Stat(p); err == nil && !fi.IsDir() {
			return p, ext, fi.Size(), true
		}
	}
	return "", "", 0, false
}

// claimJob registers job as the in-flight writer for its identifier. When
// another run already holds the claim, that job is returned instead.
func claimJob(job *Job) (*Job, bool) {
	inflight.Lock()
	defer inflight.Unlock()
	if existing, ok := inflight.m[job.ID]; ok {
		return existing, false
	}
	inflight.m[job.ID] = job
	return job, true
}

func releaseJob(id string) {
	inflight.Lock()
	delete(inflight.m, id)
	inflight.Unlock()
}

// runAcquisition executes the job's strategy in an isolated staging
// directory and publishes the result with an atomic rename, so partial
// output never appears at the canonical path. The staging directory and any
// leftovers are removed on every exit path.
func runAcquisition(parent context.Context, job *Job) (*Artifact, error) {
	staging := filepath.Join(cfg.WorkDir, fmt.Sprintf("staging-%s-%s", job.ID, uuid.New().String()))
	if err := os.MkdirAll(staging, 0755); err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}
	defer os.RemoveAll(staging)

	actx, done := context.WithTimeout(parent, cfg.AcquireTimeout)
	defer done()

	strat := strategyFor(job.Strategy)
	if err := strat.Fetch(actx, job.URL, staging); err != nil {
		return nil, err
	}
	return finalizeArtifact(staging, job.ID)
}

// finalizeArtifact locates whichever known extension the strategy produced,
// validates it and moves it to the canonical {id}.{ext} path. An extension
// outside the allowlist or a zero-byte file counts as job failure.
func finalizeArtifact(staging, id string) (*Artifact, error) {
	entries, err := os.ReadDir(staging)
	if err != nil {
		return nil, err
	}

	var src, format string
	var size int64
scan:
	for _, want := range audioExtensions {
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			if strings.TrimPrefix(filepath.Ext(e.Name()), ".") != want {
				continue
			}
			fi, err := e.Info()
			if err != nil || fi.Size() == 0 {
				continue
			}
			src = filepath.Join(staging, e.Name())
			format = want
			size = fi.Size()
			break scan
		}
	}
	if src == "" {
		return nil, fmt.Errorf("no usable artifact produced for %s", id)
	}

	// Drop stale siblings first so at most one artifact exists per
	// identifier once the rename lands.
	for _, old := range audioExtensions {
		if old != format {
			os.Remove(artifactPath(id, old))
		}
	}

	dst := artifactPath(id, format)
	if err := os.Rename(src, dst); err != nil {
		// Cross-device fallback.
		if cerr := copyFile(src, dst); cerr != nil {
			return nil, cerr
		}
		os.Remove(src)
	}
	return &Artifact{Path: dst, Format: format, Size: size}, nil
}

// copyFile stages the copy in the destination directory and renames it into
// place, so the canonical path never holds a partially written file.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".copy-*")
	if err != nil {
		return err
	}
	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Chmod(0644); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), dst)
}
