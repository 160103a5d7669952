package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
)

// strategy is the uniform contract for acquisition methods: write output
// into dir, report an error otherwise. The runner decides what counts as a
// finished artifact.
type strategy interface {
	ID() StrategyID
	Fetch(ctx context.Context, rawURL, dir string) error
}

// strategyFor maps the selected StrategyID to an implementation. Swappable
// in tests.
var strategyFor = func(id StrategyID) strategy {
	switch id {
	case StrategyNative:
		return &nativeStrategy{}
	case StrategyDirectAudio:
		return &directAudioStrategy{}
	default:
		return &onlineStrategy{services: cfg.OnlineServices}
	}
}

func runTool(ctx context.Context, bin string, args ...string) error {
	cmd := exec.CommandContext(ctx, bin, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s failed: %v | %s", bin, err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

// nativeStrategy uses the full toolchain: download and transcode to mp3 in
// one downloader invocation.
type nativeStrategy struct{}

func (s *nativeStrategy) ID() StrategyID { return StrategyNative }

func (s *nativeStrategy) Fetch(ctx context.Context, rawURL, dir string) error {
	out := filepath.Join(dir, "audio.%(ext)s")
	return runTool(ctx, cfg.DownloaderBin,
		"-x",
		"--audio-format", "mp3",
		"--audio-quality", cfg.AudioBitrate,
		"--no-playlist",
		"--no-warnings",
		"-o", out,
		rawURL,
	)
}

// directAudioStrategy has no transcoder: it downloads the best-fitting audio
// track as-is, so the resulting container is whatever the source serves.
type directAudioStrategy struct{}

func (s *directAudioStrategy) ID() StrategyID { return StrategyDirectAudio }

func (s *directAudioStrategy) Fetch(ctx context.Context, rawURL, dir string) error {
	formatID, err := pickAudioFormat(ctx, rawURL)
	if err != nil {
		log.Printf("direct-audio: format probe failed (%v), letting the downloader pick", err)
		formatID = "bestaudio/best"
	}
	out := filepath.Join(dir, "audio.%(ext)s")
	return runTool(ctx, cfg.DownloaderBin,
		"-f", formatID,
		"--no-playlist",
		"--no-warnings",
		"-o", out,
		rawURL,
	)
}

type downloaderFormat struct {
	FormatID string  `json:"format_id"`
	ACodec   string  `json:"acodec"`
	VCodec   string  `json:"vcodec"`
	Ext      string  `json:"ext"`
	Protocol string  `json:"protocol"`
	URL      string  `json:"url"`
	ABR      float64 `json:"abr"`
	TBR      float64 `json:"tbr"`
}

// pickAudioFormat dumps the available formats and picks the highest-scoring
// audio-only track.
func pickAudioFormat(ctx context.Context, rawURL string) (string, error) {
	cmd := exec.CommandContext(ctx, cfg.DownloaderBin, "-J", "--no-warnings", "--skip-download", rawURL)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("format dump error: %v | %s", err, strings.TrimSpace(stderr.String()))
	}

	var info struct {
		Formats []downloaderFormat `json:"formats"`
	}
	if err := json.Unmarshal(stdout.Bytes(), &info); err != nil {
		return "", fmt.Errorf("format dump parse error: %v", err)
	}

	candidates := make([]downloaderFormat, 0, len(info.Formats))
	for _, f := range info.Formats {
		if f.URL == "" {
			continue
		}
		if (f.VCodec == "none" || f.VCodec == "") && f.ACodec != "none" {
			candidates = append(candidates, f)
		}
	}
	if len(candidates) == 0 {
		for _, f := range info.Formats {
			if f.URL != "" && f.ACodec != "none" {
				candidates = append(candidates, f)
			}
		}
	}
	if len(candidates) == 0 {
		return "", fmt.Errorf("no usable audio formats found")
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		si, sj := scoreFormat(candidates[i]), scoreFormat(candidates[j])
		if si == sj {
			return candidates[i].ABR > candidates[j].ABR
		}
		return si > sj
	})
	return candidates[0].FormatID, nil
}

func scoreFormat(f downloaderFormat) int {
	score := 0
	switch strings.ToLower(f.Ext) {
	case "m4a":
		score += 100
	case "webm":
		score += 90
	case "ogg", "opus":
		score += 85
	case "mp4":
		score += 70
	default:
		score += 60
	}
	p := strings.ToLower(f.Protocol)
	if strings.HasPrefix(p, "https") {
		score += 30
	} else if strings.HasPrefix(p, "http") {
		score += 25
	} else if strings.Contains(p, "m3u8") || strings.Contains(p, "hls") {
		score += 20
	} else if strings.Contains(p, "dash") {
		score += 15
	}
	if f.ABR > 0 {
		score += int(f.ABR)
	} else if f.TBR > 0 {
		score += int(f.TBR / 2)
	}
	return score
}

// onlineStrategy races third-party conversion services with
// first-success-wins semantics; losers are cancelled. When every service
// fails (or none is configured) it synthesizes a silent placeholder so the
// job still yields an artifact.
type onlineStrategy struct {
	services []string
	client   *http.Client
}

func (s *onlineStrategy) ID() StrategyID { return StrategyOnline }

func (s *onlineStrategy) Fetch(ctx context.Context, rawURL, dir string) error {
	if len(s.services) > 0 {
		err := s.race(ctx, rawURL, dir)
		if err == nil {
			return nil
		}
		log.Printf("online: all services failed: %v", err)
	}
	return writeSilentWAV(filepath.Join(dir, "audio.wav"), placeholderAudioSeconds)
}

func (s *onlineStrategy) race(parent context.Context, rawURL, dir string) error {
	rctx, abort := context.WithCancel(parent)
	defer abort()

	type result struct {
		path string
		err  error
	}
	results := make(chan result, len(s.services))
	for i, svc := range s.services {
		go func(i int, svc string) {
			dest := filepath.Join(dir, fmt.Sprintf("svc-%d.part", i))
			path, err := s.fetchOne(rctx, svc, rawURL, dest)
			results <- result{path, err}
		}(i, svc)
	}

	var errs []string
	for range s.services {
		res := <-results
		if res.err == nil {
			// Losers are abandoned; their partials vanish with the
			// staging directory.
			abort()
			return os.Rename(res.path, filepath.Join(dir, "audio.mp3"))
		}
		errs = append(errs, res.err.Error())
	}
	return fmt.Errorf("%s", strings.Join(errs, "; "))
}

func (s *onlineStrategy) fetchOne(ctx context.Context, endpoint, rawURL, dest string) (string, error) {
	target := endpoint
	if strings.Contains(endpoint, "{url}") {
		target = strings.ReplaceAll(endpoint, "{url}", url.QueryEscape(rawURL))
	} else {
		sep := "?"
		if strings.Contains(endpoint, "?") {
			sep = "&"
		}
		target = endpoint + sep + "url=" + url.QueryEscape(rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", err
	}
	client := s.client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%s: status %d", endpoint, resp.StatusCode)
	}

	f, err := os.Create(dest)
	if err != nil {
		return "", err
	}
	n, err := io.Copy(f, resp.Body)
	f.Close()
	if err != nil {
		os.Remove(dest)
		return "", err
	}
	if n == 0 {
		os.Remove(dest)
		return "", fmt.Errorf("%s: empty response", endpoint)
	}
	return dest, nil
}
