package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Settings holds the process configuration, sourced from environment
// variables with sensible local-development defaults.
type Settings struct {
	ListenAddr     string
	AllowedOrigins []string
	CacheDir       string

	S3Endpoint  string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string
	S3Region    string

	// OCREndpoint is the HTTP address of the OCR inference sidecar.
	OCREndpoint string

	// CleanupMaxAgeHours controls how old a cached file or abandoned
	// upload directory must be before the sweeper removes it.
	CleanupMaxAgeHours int
}

// Load reads settings from the environment.
func Load() *Settings {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("LISTEN_ADDR", ":8080")
	v.SetDefault("ALLOWED_ORIGINS", "http://localhost:7860,http://127.0.0.1:7860")
	v.SetDefault("CACHE_DIR", "cache")
	v.SetDefault("S3_ENDPOINT", "")
	v.SetDefault("S3_BUCKET", "subvision")
	v.SetDefault("S3_ACCESS_KEY", "minioadmin")
	v.SetDefault("S3_SECRET_KEY", "minioadmin")
	v.SetDefault("S3_REGION", "us-east-1")
	v.SetDefault("OCR_ENDPOINT", "http://localhost:8868")
	v.SetDefault("CLEANUP_MAX_AGE_HOURS", 24)

	origins := make([]string, 0, 2)
	for _, o := range strings.Split(v.GetString("ALLOWED_ORIGINS"), ",") {
		o = strings.TrimSpace(o)
		if o != "" {
			origins = append(origins, o)
		}
	}

	return &Settings{
		ListenAddr:         v.GetString("LISTEN_ADDR"),
		AllowedOrigins:     origins,
		CacheDir:           v.GetString("CACHE_DIR"),
		S3Endpoint:         v.GetString("S3_ENDPOINT"),
		S3Bucket:           v.GetString("S3_BUCKET"),
		S3AccessKey:        v.GetString("S3_ACCESS_KEY"),
		S3SecretKey:        v.GetString("S3_SECRET_KEY"),
		S3Region:           v.GetString("S3_REGION"),
		OCREndpoint:        v.GetString("OCR_ENDPOINT"),
		CleanupMaxAgeHours: v.GetInt("CLEANUP_MAX_AGE_HOURS"),
	}
}

// LocalOnly reports whether object storage is disabled and files are
// served from the local cache directory.
func (s *Settings) LocalOnly() bool {
	return s.S3Endpoint == ""
}
