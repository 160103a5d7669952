package main

import (
	"context"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// probeTool checks that a binary exists and answers a version query within
// the probe timeout, so a missing or wedged tool cannot stall request
// handling. Swappable in tests.
var probeTool = func(parent context.Context, bin string, args ...string) (string, bool) {
	if _, err := exec.LookPath(bin); err != nil {
		return "", false
	}
	pctx, done := context.WithTimeout(parent, cfg.ProbeTimeout)
	defer done()
	out, err := exec.CommandContext(pctx, bin, args...).Output()
	if err != nil {
		return "", false
	}
	line := strings.TrimSpace(string(out))
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = strings.TrimSpace(line[:i])
	}
	return line, true
}

var capCache = struct {
	sync.Mutex
	snap Capabilities
}{}

func probeCapabilities(parent context.Context) Capabilities {
	dlVer, hasDL := probeTool(parent, cfg.DownloaderBin, "--version")
	tcVer, hasTC := probeTool(parent, cfg.TranscoderBin, "-version")
	return Capabilities{
		HasDownloader:     hasDL,
		HasTranscoder:     hasTC,
		DownloaderVersion: dlVer,
		TranscoderVersion: tcVer,
		ProbedAt:          time.Now(),
	}
}

// getCapabilities returns a cached snapshot, probing again once the cache
// entry is older than CapabilityCacheTTL. The probe runs outside the lock;
// concurrent cold callers may probe twice, but none of them blocks behind a
// multi-second exec.
func getCapabilities(parent context.Context) Capabilities {
	capCache.Lock()
	snap := capCache.snap
	capCache.Unlock()
	if !snap.ProbedAt.IsZero() && time.Since(snap.ProbedAt) < cfg.CapabilityCacheTTL {
		return snap
	}

	fresh := probeCapabilities(parent)

	capCache.Lock()
	if capCache.snap.ProbedAt.Before(fresh.ProbedAt) {
		capCache.snap = fresh
	}
	snap = capCache.snap
	capCache.Unlock()
	return snap
}

func resetCapabilityCache() {
	capCache.Lock()
	capCache.snap = Capabilities{}
	capCache.Unlock()
}

// selectStrategy picks the acquisition strategy for the given capability
// flags. Pure function, no side effects.
func selectStrategy(caps Capabilities) StrategyID {
	switch {
	case caps.HasDownloader && caps.HasTranscoder:
		return StrategyNative
	case caps.HasDownloader:
		return StrategyDirectAudio
	default:
		return StrategyOnline
	}
}
