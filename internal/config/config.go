// Package config は環境変数からアプリケーション設定を読み込む。
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Server
	ServerPort        string
	BaseURL           string
	CORSAllowedOrigin string

	// Logging
	LogLevel string

	// Feed
	FetchTimeout time.Duration
	FetchMaxSize int64
	EpisodeCap   int

	// Match
	MatchThreshold float64
	MatchPrefixes  []string
	MatchSuffixes  []string

	// YouTube
	YouTubeAPIKey     string
	YouTubeMaxUploads int
	YouTubeTimeout    time.Duration
	YouTubeInterval   time.Duration

	// Artwork
	SupabaseURL        string
	SupabaseServiceKey string
	SupabaseBucket     string

	// Sweep
	SweepInterval        time.Duration
	SweepConcurrency     int
	SweepRetryAttempts   int
	SweepRetryBackoff    time.Duration
	SweepRetryMaxBackoff time.Duration

	// Rate Limit (req/min/user)
	RateLimitGeneral int
	RateLimitSync    int
}

// YouTubeEnabled はYouTube APIキーが設定されているかを返す。
func (c *Config) YouTubeEnabled() bool {
	return c.YouTubeAPIKey != ""
}

// ArtworkMirrorEnabled はカバー画像の複製先ストレージが設定されているかを返す。
func (c *Config) ArtworkMirrorEnabled() bool {
	return c.SupabaseURL != "" && c.SupabaseServiceKey != ""
}

// Load は環境変数からConfigを読み込む。
// カレントディレクトリに.envがあれば先に読み込む。既存の環境変数は上書きしない。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.BaseURL = os.Getenv("BASE_URL")
	if cfg.BaseURL == "" {
		missing = append(missing, "BASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", cfg.BaseURL)
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")

	cfg.FetchTimeout = getEnvDuration("FETCH_TIMEOUT", 10*time.Second)
	cfg.FetchMaxSize = getEnvInt64("FETCH_MAX_SIZE", 10485760)
	cfg.EpisodeCap = getEnvInt("SYNC_EPISODE_CAP", 150)

	cfg.MatchThreshold = getEnvFloat("MATCH_THRESHOLD", 0.25)
	cfg.MatchPrefixes = getEnvList("MATCH_PREFIXES")
	cfg.MatchSuffixes = getEnvList("MATCH_SUFFIXES")

	cfg.YouTubeAPIKey = getEnvString("YOUTUBE_API_KEY", "")
	cfg.YouTubeMaxUploads = getEnvInt("YOUTUBE_MAX_UPLOADS", 200)
	cfg.YouTubeTimeout = getEnvDuration("YOUTUBE_TIMEOUT", 30*time.Second)
	cfg.YouTubeInterval = getEnvDuration("YOUTUBE_PAGE_INTERVAL", 200*time.Millisecond)

	cfg.SupabaseURL = strings.TrimRight(getEnvString("SUPABASE_URL", ""), "/")
	cfg.SupabaseServiceKey = getEnvString("SUPABASE_SERVICE_KEY", "")
	cfg.SupabaseBucket = getEnvString("SUPABASE_BUCKET", "artwork")

	cfg.SweepInterval = getEnvDuration("SWEEP_INTERVAL", 1*time.Hour)
	cfg.SweepConcurrency = getEnvInt("SWEEP_CONCURRENCY", 4)
	cfg.SweepRetryAttempts = getEnvInt("SWEEP_RETRY_ATTEMPTS", 1)
	cfg.SweepRetryBackoff = getEnvDuration("SWEEP_RETRY_BACKOFF", 5*time.Second)
	cfg.SweepRetryMaxBackoff = getEnvDuration("SWEEP_RETRY_MAX_BACKOFF", 1*time.Minute)

	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitSync = getEnvInt("RATE_LIMIT_SYNC", 6)

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

// getEnvList はカンマ区切りの値を空要素を除いて返す。
func getEnvList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
