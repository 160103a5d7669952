package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func mkStaging(t *testing.T, files map[string][]byte) string {
	t.Helper()
	dir := filepath.Join(cfg.WorkDir, "staging-test")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	for name, data := range files {
		if err := os.WriteFile(filepath.Join(dir, name), data, 0644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestFinalizeArtifactMovesToCanonicalPath(t *testing.T) {
	setupTest(t)
	staging := mkStaging(t, map[string][]byte{"audio.m4a": []byte("m4a-bytes")})

	art, err := finalizeArtifact(staging, "vidA")
	if err != nil {
		t.Fatalf("finalizeArtifact() error = %v", err)
	}
	if art.Format != "m4a" {
		t.Errorf("Format = %q, want m4a", art.Format)
	}
	if art.Path != artifactPath("vidA", "m4a") {
		t.Errorf("Path = %q", art.Path)
	}
	data, err := os.ReadFile(art.Path)
	if err != nil || string(data) != "m4a-bytes" {
		t.Fatalf("canonical file = %q, %v", data, err)
	}
}

func TestFinalizeArtifactPrefersEarlierExtension(t *testing.T) {
	setupTest(t)
	staging := mkStaging(t, map[string][]byte{
		"audio.webm": []byte("webm"),
		"audio.mp3":  []byte("mp3"),
	})

	art, err := finalizeArtifact(staging, "vidB")
	if err != nil {
		t.Fatalf("finalizeArtifact() error = %v", err)
	}
	if art.Format != "mp3" {
		t.Errorf("Format = %q, want mp3", art.Format)
	}
}

func TestFinalizeArtifactRejectsUnknownExtension(t *testing.T) {
	setupTest(t)
	staging := mkStaging(t, map[string][]byte{"audio.xyz": []byte("mystery")})

	if _, err := finalizeArtifact(staging, "vidC"); err == nil {
		t.Fatal("expected failure for unknown extension")
	}
	if _, _, _, ok := probeArtifact("vidC"); ok {
		t.Fatal("artifact published despite unknown extension")
	}
}

func TestFinalizeArtifactRejectsEmptyFile(t *testing.T) {
	setupTest(t)
	staging := mkStaging(t, map[string][]byte{"audio.mp3": {}})

	if _, err := finalizeArtifact(staging, "vidD"); err == nil {
		t.Fatal("expected failure for zero-byte output")
	}
}

func TestFinalizeArtifactRemovesStaleSiblings(t *testing.T) {
	setupTest(t)
	writeArtifact(t, "vidE", "m4a", []byte("old run"))
	staging := mkStaging(t, map[string][]byte{"audio.mp3": []byte("new run")})

	if _, err := finalizeArtifact(staging, "vidE"); err != nil {
		t.Fatalf("finalizeArtifact() error = %v", err)
	}

	count := 0
	for _, ext := range audioExtensions {
		if _, err := os.Stat(artifactPath("vidE", ext)); err == nil {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("artifacts on disk = %d, want exactly 1", count)
	}
	if _, format, _, _ := probeArtifact("vidE"); format != "mp3" {
		t.Errorf("surviving format = %q, want mp3", format)
	}
}

func TestRunAcquisitionCleansStagingOnFailure(t *testing.T) {
	setupTest(t)
	stubStrategy(t, &fakeStrategy{err: errors.New("tool exploded")})

	job := &Job{ID: "vidF", URL: "https://example.com/v", Strategy: StrategyNative}
	if _, err := runAcquisition(context.Background(), job); err == nil {
		t.Fatal("expected acquisition error")
	}

	entries, err := os.ReadDir(cfg.WorkDir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "staging-") {
			t.Fatalf("staging leftover: %s", e.Name())
		}
	}
}

func TestCopyFilePublishesWholeFileOnly(t *testing.T) {
	src := filepath.Join(t.TempDir(), "src.mp3")
	if err := os.WriteFile(src, []byte("complete payload"), 0644); err != nil {
		t.Fatal(err)
	}
	destDir := t.TempDir()
	dst := filepath.Join(destDir, "out.mp3")

	if err := copyFile(src, dst); err != nil {
		t.Fatalf("copyFile() error = %v", err)
	}

	data, err := os.ReadFile(dst)
	if err != nil || string(data) != "complete payload" {
		t.Fatalf("destination = %q, %v", data, err)
	}
	// The staging name must not survive next to the destination.
	entries, err := os.ReadDir(destDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "out.mp3" {
		t.Fatalf("destination dir contents = %v, want only out.mp3", entries)
	}
}

func TestClaimJobDedup(t *testing.T) {
	setupTest(t)

	first := &Job{ID: "vidG"}
	second := &Job{ID: "vidG"}

	got, isNew := claimJob(first)
	if !isNew || got != first {
		t.Fatal("first claim should win")
	}
	got, isNew = claimJob(second)
	if isNew {
		t.Fatal("second claim for the same id must attach, not start")
	}
	if got != first {
		t.Fatal("second claim should return the in-flight job")
	}

	releaseJob("vidG")
	if _, isNew := claimJob(second); !isNew {
		t.Fatal("claim after release should start fresh")
	}
}

func TestProbeArtifactUnknownID(t *testing.T) {
	setupTest(t)
	if _, _, _, ok := probeArtifact("never-submitted"); ok {
		t.Fatal("probeArtifact reported ready for unknown id")
	}
}
