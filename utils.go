package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"regexp"
	"strings"
	"syscall"
	"time"
)

var idPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{4,64}$`)

func validID(id string) bool {
	return idPattern.MatchString(id)
}

// deriveID extracts a stable identifier from the source URL: the v query
// parameter or short-link path when present, otherwise a digest of the URL.
func deriveID(rawURL string) string {
	if u, err := url.Parse(rawURL); err == nil {
		if v := u.Query().Get("v"); v != "" {
			return v
		}
		if strings.TrimPrefix(u.Host, "www.") == "youtu.be" {
			if p := strings.Trim(u.Path, "/"); p != "" && !strings.Contains(p, "/") {
				return p
			}
		}
	}
	sum := sha256.Sum256([]byte(rawURL))
	return hex.EncodeToString(sum[:])[:16]
}

func formatSize(n int64) string {
	const mb = 1 << 20
	if n >= mb {
		return fmt.Sprintf("%.2f MB", float64(n)/mb)
	}
	return fmt.Sprintf("%d B", n)
}

func sizeInMB(n int64) float64 {
	return float64(int64(float64(n)/(1<<20)*100)) / 100
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func setupGracefulShutdown(srv *http.Server) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		log.Println("🛑 Graceful shutdown initiated...")
		cancel()
		close(jobQueue)
		shctx, done := context.WithTimeout(context.Background(), 10*time.Second)
		defer done()
		srv.Shutdown(shctx)
		closeJobDB()
		log.Println("✅ Graceful shutdown completed")
		os.Exit(0)
	}()
}
