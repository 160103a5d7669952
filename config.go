package main

import (
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	// Rate Limiting
	RequestsPerSecond = 50
	BurstSize         = 100

	// Redis mirror expiration
	JobExpiration = 24 * time.Hour

	// Advisory duration reported when the metadata sources return none.
	PlaceholderDuration = 180

	// Length of the synthesized silent fallback artifact.
	placeholderAudioSeconds = 3
)

// Config holds runtime settings. The basic deployment values map to
// config.toml keys; the duration tunables keep their defaults unless changed
// programmatically.
type Config struct {
	Addr           string   `toml:"addr"`
	PublicBaseURL  string   `toml:"public_base_url"`
	WorkDir        string   `toml:"work_dir"`
	DBPath         string   `toml:"db_path"`
	DownloaderBin  string   `toml:"downloader_bin"`
	TranscoderBin  string   `toml:"transcoder_bin"`
	AudioBitrate   string   `toml:"audio_bitrate"`
	OnlineServices []string `toml:"online_services"`
	OEmbedEndpoint string   `toml:"oembed_endpoint"`
	RedisAddr      string   `toml:"redis_addr"`
	RedisPassword  string   `toml:"redis_password"`
	RedisDB        int      `toml:"redis_db"`
	Workers        int      `toml:"workers"`
	QueueCapacity  int      `toml:"queue_capacity"`

	MetadataTimeout    time.Duration `toml:"-"`
	OEmbedTimeout      time.Duration `toml:"-"`
	ProbeTimeout       time.Duration `toml:"-"`
	AcquireTimeout     time.Duration `toml:"-"`
	CapabilityCacheTTL time.Duration `toml:"-"`
	MetadataTTL        time.Duration `toml:"-"`
	FastPathWait       time.Duration `toml:"-"`
	ServeGracePeriod   time.Duration `toml:"-"`
	MaxArtifactAge     time.Duration `toml:"-"`
	SweepInterval      time.Duration `toml:"-"`
}

func defaultConfig() *Config {
	return &Config{
		Addr:           ":8080",
		PublicBaseURL:  "http://localhost:8080",
		WorkDir:        filepath.Join(os.TempDir(), "audiopress"),
		DBPath:         "audiopress.db",
		DownloaderBin:  "yt-dlp",
		TranscoderBin:  "ffmpeg",
		AudioBitrate:   "192k",
		OEmbedEndpoint: "https://www.youtube.com/oembed",
		RedisAddr:      "localhost:6379",
		Workers:        8,
		QueueCapacity:  256,

		MetadataTimeout:    8 * time.Second,
		OEmbedTimeout:      3 * time.Second,
		ProbeTimeout:       3 * time.Second,
		AcquireTimeout:     10 * time.Minute,
		CapabilityCacheTTL: 5 * time.Minute,
		MetadataTTL:        time.Hour,
		FastPathWait:       8 * time.Second,
		ServeGracePeriod:   5 * time.Minute,
		MaxArtifactAge:     time.Hour,
		SweepInterval:      10 * time.Minute,
	}
}

// loadConfig builds the runtime config from defaults, an optional TOML file
// and environment overrides, in that order.
func loadConfig(path string) *Config {
	c := defaultConfig()
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, c); err != nil {
				log.Printf("⚠️  config %s: %v (using defaults)", path, err)
			}
		}
	}
	applyEnvOverrides(c)
	return c
}

func applyEnvOverrides(c *Config) {
	if v := os.Getenv("AUDIOPRESS_ADDR"); v != "" {
		c.Addr = v
	}
	if v := os.Getenv("AUDIOPRESS_BASE_URL"); v != "" {
		c.PublicBaseURL = v
	}
	if v := os.Getenv("AUDIOPRESS_WORK_DIR"); v != "" {
		c.WorkDir = v
	}
	if v := os.Getenv("AUDIOPRESS_DB"); v != "" {
		c.DBPath = v
	}
	if v := os.Getenv("AUDIOPRESS_DOWNLOADER"); v != "" {
		c.DownloaderBin = v
	}
	if v := os.Getenv("AUDIOPRESS_TRANSCODER"); v != "" {
		c.TranscoderBin = v
	}
	if v := os.Getenv("AUDIOPRESS_REDIS_ADDR"); v != "" {
		c.RedisAddr = v
	}
	if v := os.Getenv("AUDIOPRESS_REDIS_PASSWORD"); v != "" {
		c.RedisPassword = v
	}
	if v := os.Getenv("AUDIOPRESS_REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.RedisDB = n
		}
	}
	if v := os.Getenv("AUDIOPRESS_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Workers = n
		}
	}
}
