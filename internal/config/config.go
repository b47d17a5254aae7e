package config

import (
	"database/sql"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

type Config struct {
	Port          int
	DatabaseURL   string
	RedisAddr     string
	DataDir       string
	FramesDir     string
	TempDir       string
	FFmpegPath    string
	FFprobePath   string
	YtDlpPath     string
	PythonPath    string
	WhisperScript string
	FrameScript   string
	WhisperModel  string
	OpenAIKey     string
	OpenAIModel   string

	FetchTimeout      time.Duration
	TranscribeTimeout time.Duration
	MaxJobs           int
	FramesEnabled     bool
}

func Load() *Config {
	dataDir := env("DATA_DIR", "/data")
	return &Config{
		Port:          envInt("PORT", 8080),
		DatabaseURL:   env("DATABASE_URL", "postgres://codelens:codelens@db:5432/codelens?sslmode=disable"),
		RedisAddr:     env("REDIS_ADDR", "127.0.0.1:6379"),
		DataDir:       dataDir,
		FramesDir:     env("FRAMES_DIR", filepath.Join(dataDir, "frames")),
		TempDir:       env("TEMP_DIR", filepath.Join(os.TempDir(), "codelens")),
		FFmpegPath:    env("FFMPEG_PATH", "ffmpeg"),
		FFprobePath:   env("FFPROBE_PATH", "ffprobe"),
		YtDlpPath:     env("YTDLP_PATH", "yt-dlp"),
		PythonPath:    env("PYTHON_PATH", "python3"),
		WhisperScript: env("WHISPER_SCRIPT", "scripts/transcribe.py"),
		FrameScript:   env("FRAME_SCRIPT", "scripts/frame_extractor.py"),
		WhisperModel:  env("WHISPER_MODEL", "base"),
		OpenAIKey:     env("OPENAI_API_KEY", ""),
		OpenAIModel:   env("OPENAI_MODEL", "gpt-4o"),

		FetchTimeout:      envDuration("FETCH_TIMEOUT", 10*time.Minute),
		TranscribeTimeout: envDuration("TRANSCRIBE_TIMEOUT", 30*time.Minute),
		MaxJobs:           envInt("MAX_JOBS", 2),
		FramesEnabled:     envBool("FRAMES_ENABLED", true),
	}
}

// MergeFromDB overlays runtime-editable settings on top of the env config.
func (c *Config) MergeFromDB(db *sql.DB) {
	rows, err := db.Query("SELECT key, value FROM settings")
	if err != nil {
		log.Printf("config: skipping DB merge: %v", err)
		return
	}
	defer rows.Close()

	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			continue
		}
		switch key {
		case "whisper_model":
			c.WhisperModel = value
		case "openai_model":
			c.OpenAIModel = value
		case "frames_enabled":
			c.FramesEnabled = value == "true"
		case "max_jobs":
			if v, err := strconv.Atoi(value); err == nil {
				c.MaxJobs = v
			}
		}
	}
}

func (c *Config) SnippetsEnabled() bool {
	return c.OpenAIKey != ""
}

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
