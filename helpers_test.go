package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// setupTest resets the package globals and points the work dir at a
// throwaway location. Tests in this package run sequentially and share
// state, so every test starts here.
func setupTest(t *testing.T) {
	t.Helper()

	old := cfg
	cfg = defaultConfig()
	cfg.WorkDir = t.TempDir()
	cfg.FastPathWait = 500 * time.Millisecond
	cfg.ServeGracePeriod = time.Hour

	redisClient = nil
	closeJobDB()

	jobStore.Lock()
	jobStore.jobs = make(map[string]*Job)
	jobStore.Unlock()
	inflight.Lock()
	inflight.m = make(map[string]*Job)
	inflight.Unlock()
	jobWaiters.Lock()
	jobWaiters.m = make(map[string][]chan *Job)
	jobWaiters.Unlock()
	metaCache.Lock()
	metaCache.m = make(map[string]*Metadata)
	metaCache.Unlock()
	served.Lock()
	served.at = make(map[string]time.Time)
	served.Unlock()
	resetCapabilityCache()

	jobQueue = make(chan *Job, 16)

	t.Cleanup(func() {
		closeJobDB()
		cfg = old
	})
}

// startTestWorker runs one worker against the current queue and shuts it
// down with the test.
func startTestWorker(t *testing.T) {
	t.Helper()
	q := jobQueue
	go startWorker(0)
	t.Cleanup(func() { close(q) })
}

func stubTools(t *testing.T, hasDownloader, hasTranscoder bool) {
	t.Helper()
	old := probeTool
	probeTool = func(_ context.Context, bin string, _ ...string) (string, bool) {
		if bin == cfg.DownloaderBin {
			return "stub 2026.01.01", hasDownloader
		}
		return "stub 7.0", hasTranscoder
	}
	resetCapabilityCache()
	t.Cleanup(func() {
		probeTool = old
		resetCapabilityCache()
	})
}

func stubRichInfo(t *testing.T, meta *Metadata, err error) *int {
	t.Helper()
	old := fetchRichInfo
	calls := 0
	fetchRichInfo = func(_ context.Context, _ string) (*Metadata, error) {
		calls++
		if err != nil {
			return nil, err
		}
		cp := *meta
		return &cp, nil
	}
	t.Cleanup(func() { fetchRichInfo = old })
	return &calls
}

func stubStrategy(t *testing.T, s strategy) {
	t.Helper()
	old := strategyFor
	strategyFor = func(StrategyID) strategy { return s }
	t.Cleanup(func() { strategyFor = old })
}

// fakeStrategy writes fixed bytes as audio.{ext} into the staging dir.
type fakeStrategy struct {
	ext     string
	data    []byte
	err     error
	fetched int
}

func (f *fakeStrategy) ID() StrategyID { return StrategyNative }

func (f *fakeStrategy) Fetch(_ context.Context, _ string, dir string) error {
	f.fetched++
	if f.err != nil {
		return f.err
	}
	return os.WriteFile(filepath.Join(dir, "audio."+f.ext), f.data, 0644)
}

// blockingStrategy holds every fetch until released, to exercise the
// processing state and in-flight dedup.
type blockingStrategy struct {
	fakeStrategy
	release chan struct{}
}

func (b *blockingStrategy) Fetch(ctx context.Context, rawURL, dir string) error {
	select {
	case <-b.release:
	case <-ctx.Done():
		return ctx.Err()
	}
	return b.fakeStrategy.Fetch(ctx, rawURL, dir)
}

func writeArtifact(t *testing.T, id, ext string, data []byte) string {
	t.Helper()
	p := artifactPath(id, ext)
	if err := os.WriteFile(p, data, 0644); err != nil {
		t.Fatalf("write artifact: %v", err)
	}
	return p
}
