package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os/exec"
	"strings"
	"sync"
	"time"
)

const thumbnailURLTemplate = "https://i.ytimg.com/vi/%s/hqdefault.jpg"

// In-memory metadata cache, used when redis is unavailable. Entries are
// evicted by timer rather than on access.
var metaCache = struct {
	sync.Mutex
	m map[string]*Metadata
}{m: make(map[string]*Metadata)}

// fetchRichInfo resolves metadata via the downloader's JSON dump. Swappable
// in tests.
var fetchRichInfo = fetchInfoFromDownloader

// getInfo resolves title/thumbnail/duration for an identifier, cached for
// MetadataTTL. The rich source is tried first under a hard timeout, then the
// lightweight oEmbed endpoint under a shorter one. Returns nil when both
// fail; callers surface that as a resolution failure distinct from a
// download failure.
func getInfo(parent context.Context, rawURL, id string) *Metadata {
	if meta := cachedMetadata(id); meta != nil {
		return meta
	}

	meta, err := fetchRichInfo(parent, rawURL)
	if err != nil {
		log.Printf("metadata: rich source failed for %s: %v", id, err)
		meta, err = fetchOEmbed(parent, rawURL)
		if err != nil {
			log.Printf("metadata: oembed fallback failed for %s: %v", id, err)
			return nil
		}
	}

	if meta.Thumbnail == "" {
		meta.Thumbnail = fmt.Sprintf(thumbnailURLTemplate, id)
	}
	if meta.Duration <= 0 {
		meta.Duration = PlaceholderDuration
	}

	cacheMetadata(id, meta)
	return meta
}

func cachedMetadata(id string) *Metadata {
	if redisClient != nil {
		if meta, err := getMetadataFromRedis(id); err == nil && meta != nil {
			return meta
		}
	}
	metaCache.Lock()
	defer metaCache.Unlock()
	return metaCache.m[id]
}

func cacheMetadata(id string, meta *Metadata) {
	if redisClient != nil {
		if err := saveMetadataToRedis(id, meta); err == nil {
			return
		}
	}
	metaCache.Lock()
	metaCache.m[id] = meta
	metaCache.Unlock()
	time.AfterFunc(cfg.MetadataTTL, func() {
		metaCache.Lock()
		delete(metaCache.m, id)
		metaCache.Unlock()
	})
}

func fetchInfoFromDownloader(parent context.Context, rawURL string) (*Metadata, error) {
	mctx, done := context.WithTimeout(parent, cfg.MetadataTimeout)
	defer done()

	cmd := exec.CommandContext(mctx, cfg.DownloaderBin, "-J", "--no-warnings", "--skip-download", rawURL)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s metadata error: %v | %s", cfg.DownloaderBin, err, strings.TrimSpace(stderr.String()))
	}

	var info struct {
		Title     string  `json:"title"`
		Thumbnail string  `json:"thumbnail"`
		Duration  float64 `json:"duration"`
	}
	if err := json.Unmarshal(stdout.Bytes(), &info); err != nil {
		return nil, fmt.Errorf("%s metadata parse error: %v", cfg.DownloaderBin, err)
	}
	return &Metadata{Title: info.Title, Thumbnail: info.Thumbnail, Duration: info.Duration}, nil
}

func fetchOEmbed(parent context.Context, rawURL string) (*Metadata, error) {
	octx, done := context.WithTimeout(parent, cfg.OEmbedTimeout)
	defer done()

	endpoint := cfg.OEmbedEndpoint + "?format=json&url=" + url.QueryEscape(rawURL)
	req, err := http.NewRequestWithContext(octx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("oembed request error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("oembed status %d", resp.StatusCode)
	}

	var body struct {
		Title        string `json:"title"`
		ThumbnailURL string `json:"thumbnail_url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("oembed parse error: %v", err)
	}
	return &Metadata{Title: body.Title, Thumbnail: body.ThumbnailURL}, nil
}
