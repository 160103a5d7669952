package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/joho/godotenv"
)

func main() {
	// Optional .env for local development; real deployments set env vars.
	godotenv.Load()

	configPath := flag.String("config", "config.toml", "path to the TOML config file")
	flag.Parse()

	cfg = loadConfig(*configPath)

	if err := os.MkdirAll(cfg.WorkDir, 0755); err != nil {
		log.Fatalf("work dir %s: %v", cfg.WorkDir, err)
	}

	initRedis()

	if err := openJobDB(cfg.DBPath); err != nil {
		log.Printf("⚠️  job database unavailable (%v), job state is memory-only", err)
	} else if n, err := recoverStaleJobs(); err != nil {
		log.Printf("stale job recovery: %v", err)
	} else if n > 0 {
		log.Printf("marked %d interrupted job(s) as failed", n)
	}

	jobQueue = make(chan *Job, cfg.QueueCapacity)
	for i := 0; i < cfg.Workers; i++ {
		go startWorker(i)
	}
	go startArtifactSweep()

	caps := getCapabilities(ctx)
	log.Printf("capabilities: downloader=%v transcoder=%v, strategy %s",
		caps.HasDownloader, caps.HasTranscoder, selectStrategy(caps))

	http.HandleFunc("/convert", rateLimitMiddleware(handleConvert))
	http.HandleFunc("/progress/", rateLimitMiddleware(handleProgress))
	http.HandleFunc("/download/", rateLimitMiddleware(handleDownload))
	http.HandleFunc("/system-check", handleSystemCheck)
	http.HandleFunc("/health", handleHealth)
	http.HandleFunc("/metrics", handleMetrics)
	http.HandleFunc("/stats", handleStats)

	srv := &http.Server{Addr: cfg.Addr}
	setupGracefulShutdown(srv)

	fmt.Printf("🚀 Server running on %s with %d workers\n", cfg.Addr, cfg.Workers)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal(err)
	}
}
